package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"meatshop/internal/domain"
	"meatshop/internal/logger"
)

const (
	SubjectOrderCreated       = "order.created"
	SubjectOrderCancelled     = "order.cancelled"
	SubjectOrderStatusChanged = "order.status_changed"
)

// OrderEvent полезная нагрузка всех событий заказа
type OrderEvent struct {
	OrderID        string             `json:"order_id"`
	OrderNumber    string             `json:"order_number"`
	UserID         string             `json:"user_id"`
	Status         domain.OrderStatus `json:"status"`
	PreviousStatus domain.OrderStatus `json:"previous_status,omitempty"`
	TotalAmount    string             `json:"total_amount"`
	Items          []EventItem        `json:"items"`
	OccurredAt     string             `json:"occurred_at"`
}

type EventItem struct {
	ProductID string `json:"product_id"`
	Quantity  int64  `json:"quantity"`
}

func newOrderEvent(o *domain.Order, previous domain.OrderStatus, at time.Time) OrderEvent {
	items := make([]EventItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, EventItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return OrderEvent{
		OrderID:        o.ID,
		OrderNumber:    o.OrderNumber(),
		UserID:         o.UserID,
		Status:         o.Status,
		PreviousStatus: previous,
		TotalAmount:    o.TotalAmount.String(),
		Items:          items,
		OccurredAt:     at.UTC().Format(time.RFC3339),
	}
}

// conn часть *nats.Conn, нужная публикатору
type conn interface {
	Publish(subject string, data []byte) error
	FlushTimeout(timeout time.Duration) error
	IsConnected() bool
	Close()
}

type NatsPublisher struct {
	nc         conn
	logger     *logger.Logger
	retries    int
	retryDelay time.Duration
	now        func() time.Time
}

const (
	defaultRetries    = 3
	defaultRetryDelay = 2 * time.Second
	flushTimeout      = 2 * time.Second
	connectTimeout    = 10 * time.Second
)

// retry вызывает fn до attempts раз с паузой delay между попытками.
// Отмена ctx прерывает ожидание и возвращает ctx.Err().
func retry(ctx context.Context, attempts int, delay time.Duration, fn func(attempt int) error) error {
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err = fn(attempt); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}

func connectOptions(logger *logger.Logger) []nats.Option {
	return []nats.Option{
		nats.Name("Meat Shop API"),
		nats.MaxReconnects(5),
		nats.ReconnectWait(defaultRetryDelay),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
	}
}

// NewNatsPublisher подключается к NATS, повторяя попытки с теми же параметрами, что и публикация
func NewNatsPublisher(url string, logger *logger.Logger) (*NatsPublisher, error) {
	p := newPublisher(nil, logger)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	var nc *nats.Conn
	err := retry(ctx, p.retries, p.retryDelay, func(attempt int) error {
		var err error
		nc, err = nats.Connect(url, connectOptions(logger)...)
		if err != nil {
			logger.Warn("Failed to connect to NATS", "attempt", attempt, "error", err)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}

	logger.Info("Connected to NATS", "url", url)
	p.nc = nc
	return p, nil
}

func newPublisher(nc conn, logger *logger.Logger) *NatsPublisher {
	return &NatsPublisher{
		nc:         nc,
		logger:     logger,
		retries:    defaultRetries,
		retryDelay: defaultRetryDelay,
		now:        time.Now,
	}
}

func (p *NatsPublisher) PublishOrderCreated(ctx context.Context, order *domain.Order) error {
	return p.publish(ctx, SubjectOrderCreated, newOrderEvent(order, "", p.now()))
}

func (p *NatsPublisher) PublishOrderCancelled(ctx context.Context, order *domain.Order) error {
	return p.publish(ctx, SubjectOrderCancelled, newOrderEvent(order, "", p.now()))
}

func (p *NatsPublisher) PublishOrderStatusChanged(ctx context.Context, order *domain.Order, previous domain.OrderStatus) error {
	return p.publish(ctx, SubjectOrderStatusChanged, newOrderEvent(order, previous, p.now()))
}

func (p *NatsPublisher) publish(ctx context.Context, subject string, event OrderEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = retry(ctx, p.retries, p.retryDelay, func(attempt int) error {
		if err := p.nc.Publish(subject, data); err != nil {
			p.logger.Warn("Failed to publish to NATS", "subject", subject, "attempt", attempt, "error", err)
			return err
		}
		if err := p.nc.FlushTimeout(flushTimeout); err != nil {
			p.logger.Warn("Failed to flush NATS connection", "subject", subject, "attempt", attempt, "error", err)
			return err
		}
		return nil
	})
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		p.logger.Warn("Context cancelled while publishing to NATS", "subject", subject)
		return err
	}
	if err != nil {
		return fmt.Errorf("failed to publish %s after %d attempts: %w", subject, p.retries, err)
	}

	p.logger.Debug("Published order event", "subject", subject, "order_id", event.OrderID)
	return nil
}

func (p *NatsPublisher) Close() {
	if p.nc != nil && p.nc.IsConnected() {
		p.nc.Close()
		p.logger.Info("NATS connection closed")
	}
}

// NoopPublisher используется, когда NATS не настроен или недоступен
type NoopPublisher struct{}

func (NoopPublisher) PublishOrderCreated(ctx context.Context, order *domain.Order) error {
	return nil
}

func (NoopPublisher) PublishOrderCancelled(ctx context.Context, order *domain.Order) error {
	return nil
}

func (NoopPublisher) PublishOrderStatusChanged(ctx context.Context, order *domain.Order, previous domain.OrderStatus) error {
	return nil
}

func (NoopPublisher) Close() {}
