package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"meatshop/internal/domain"
	"meatshop/internal/logger"
	"meatshop/internal/repository"
)

// EstimatedDeliveryDelay срок доставки от момента оформления
const EstimatedDeliveryDelay = 48 * time.Hour

// OrderService реализует логику заказов: создание, отмена, смена статуса, списки
type OrderService struct {
	products repository.ProductRepository
	orders   repository.OrderRepository
	users    repository.UserRepository
	tx       repository.TxManager
	events   OrderEventPublisher
	logger   *logger.Logger
	now      func() time.Time
}

func NewOrderService(
	products repository.ProductRepository,
	orders repository.OrderRepository,
	users repository.UserRepository,
	tx repository.TxManager,
	events OrderEventPublisher,
	logger *logger.Logger,
) *OrderService {
	return &OrderService{
		products: products,
		orders:   orders,
		users:    users,
		tx:       tx,
		events:   events,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ItemInput запрошенная позиция заказа
type ItemInput struct {
	ProductID string
	Quantity  int64
}

// CreateOrderInput данные нового заказа
type CreateOrderInput struct {
	Items           []ItemInput
	DeliveryAddress domain.DeliveryAddress
	Notes           string
}

func (in CreateOrderInput) validate() error {
	verr := &ValidationError{}
	if len(in.Items) == 0 {
		verr.add("items", "Order must contain at least one item")
	}
	for i, it := range in.Items {
		if strings.TrimSpace(it.ProductID) == "" {
			verr.add(fmt.Sprintf("items[%d].product", i), "Invalid product ID")
		}
		if it.Quantity < 1 {
			verr.add(fmt.Sprintf("items[%d].quantity", i), "Quantity must be at least 1")
		}
	}
	if !in.DeliveryAddress.Complete() {
		verr.add("deliveryAddress", "Street, city, state, ZIP code and phone are required")
	}
	return verr.orNil()
}

// CreateOrder проверяет наличие, атомарно списывает остаток по каждой позиции и сохраняет заказ.
// Все списания и вставка заказа выполняются в одной транзакции: при ошибке на любой позиции
// остатки не меняются.
func (s *OrderService) CreateOrder(ctx context.Context, actor domain.Actor, in CreateOrderInput) (*domain.OrderDetails, error) {
	if actor.UserID == "" {
		return nil, ErrUnauthorized
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	var created *domain.Order
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		items := make([]domain.OrderItem, 0, len(in.Items))
		for _, it := range in.Items {
			p, err := s.products.GetByID(ctx, it.ProductID)
			if errors.Is(err, repository.ErrNotFound) || (err == nil && !p.IsActive) {
				return fmt.Errorf("%w: product %s", ErrNotFound, it.ProductID)
			}
			if err != nil {
				return err
			}
			// reserve
			if err := s.products.DecrementStock(ctx, p.ID, it.Quantity); err != nil {
				if errors.Is(err, repository.ErrInsufficientStock) {
					return s.insufficientStock(ctx, p)
				}
				return err
			}
			items = append(items, domain.OrderItem{
				ProductID: p.ID,
				Quantity:  it.Quantity,
				Price:     p.Price,
			})
		}

		now := s.now()
		o := domain.Order{
			UserID:            actor.UserID,
			Items:             items,
			Status:            domain.OrderStatusPending,
			PaymentStatus:     domain.PaymentPending,
			DeliveryAddress:   in.DeliveryAddress,
			Notes:             strings.TrimSpace(in.Notes),
			EstimatedDelivery: now.Add(EstimatedDeliveryDelay),
		}
		o.TotalAmount = o.ComputeTotal()
		if err := s.orders.Create(ctx, &o); err != nil {
			return err
		}
		created = &o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order created",
		"order_id", created.ID,
		"user_id", created.UserID,
		"items", len(created.Items),
		"total", created.TotalAmount.String())
	s.publish("order.created", created, func(ctx context.Context) error {
		return s.events.PublishOrderCreated(ctx, created)
	})
	return s.populate(ctx, created, newRefCache()), nil
}

// insufficientStock reports the stock visible inside the current transaction
func (s *OrderService) insufficientStock(ctx context.Context, p *domain.Product) error {
	available := p.Stock
	if cur, err := s.products.GetByID(ctx, p.ID); err == nil {
		available = cur.Stock
	}
	return &InsufficientStockError{ProductID: p.ID, ProductName: p.Name, Available: available}
}

// GetOrder доступен владельцу заказа и администратору
func (s *OrderService) GetOrder(ctx context.Context, actor domain.Actor, id string) (*domain.OrderDetails, error) {
	if actor.UserID == "" {
		return nil, ErrUnauthorized
	}
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.UserID != actor.UserID && !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	return s.populate(ctx, o, newRefCache()), nil
}

// CancelOrder отменяет заказ владельца и возвращает товары на склад
func (s *OrderService) CancelOrder(ctx context.Context, actor domain.Actor, id string) (*domain.OrderDetails, error) {
	if actor.UserID == "" {
		return nil, ErrUnauthorized
	}
	var updated *domain.Order
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if o.UserID != actor.UserID {
			return ErrForbidden
		}
		if !o.Status.Cancellable() {
			return fmt.Errorf("%w: order cannot be cancelled at this stage", ErrInvalidState)
		}
		// return stock
		for _, it := range o.Items {
			if err := s.products.IncrementStock(ctx, it.ProductID, it.Quantity); err != nil {
				return err
			}
		}
		o.Status = domain.OrderStatusCancelled
		if err := s.orders.Update(ctx, o); err != nil {
			return err
		}
		updated = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order cancelled", "order_id", updated.ID, "user_id", actor.UserID)
	s.publish("order.cancelled", updated, func(ctx context.Context) error {
		return s.events.PublishOrderCancelled(ctx, updated)
	})
	return s.populate(ctx, updated, newRefCache()), nil
}

// UpdateOrderStatus административная смена статуса; переходы проверяются по таблице
// domain.CanTransition. Остаток при этом не меняется.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, actor domain.Actor, id string, status domain.OrderStatus) (*domain.OrderDetails, error) {
	if err := Authorize(actor, CapManageOrders); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, invalid("status", "Invalid order status")
	}

	var (
		updated  *domain.Order
		previous domain.OrderStatus
	)
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !domain.CanTransition(o.Status, status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidState, o.Status, status)
		}
		previous = o.Status
		o.Status = status
		if status == domain.OrderStatusDelivered {
			now := s.now()
			o.DeliveredAt = &now
		}
		if err := s.orders.Update(ctx, o); err != nil {
			return err
		}
		updated = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order status updated", "order_id", updated.ID, "from", previous, "to", status)
	s.publish("order.status_changed", updated, func(ctx context.Context) error {
		return s.events.PublishOrderStatusChanged(ctx, updated, previous)
	})
	return s.populate(ctx, updated, newRefCache()), nil
}

// ListOrders администратор видит все заказы, остальные только свои
func (s *OrderService) ListOrders(ctx context.Context, actor domain.Actor, q repository.OrderQuery) (domain.Paged[domain.OrderDetails], error) {
	if actor.UserID == "" {
		return domain.Paged[domain.OrderDetails]{}, ErrUnauthorized
	}
	if !Can(actor, CapViewAllOrders) {
		q.UserID = actor.UserID
	}
	return s.list(ctx, q)
}

// ListMyOrders заказы вызывающего независимо от роли
func (s *OrderService) ListMyOrders(ctx context.Context, actor domain.Actor, q repository.OrderQuery) (domain.Paged[domain.OrderDetails], error) {
	if actor.UserID == "" {
		return domain.Paged[domain.OrderDetails]{}, ErrUnauthorized
	}
	q.UserID = actor.UserID
	return s.list(ctx, q)
}

func (s *OrderService) list(ctx context.Context, q repository.OrderQuery) (domain.Paged[domain.OrderDetails], error) {
	if q.Status != "" && !q.Status.Valid() {
		return domain.Paged[domain.OrderDetails]{}, invalid("status", "Invalid order status")
	}
	if q.Sort.Field != "" && !repository.ValidOrderSort(q.Sort.Field) {
		return domain.Paged[domain.OrderDetails]{}, invalid("sortBy", fmt.Sprintf("cannot sort by %q", q.Sort.Field))
	}
	q.Page = q.Page.Normalize()
	orders, total, err := s.orders.List(ctx, q)
	if err != nil {
		return domain.Paged[domain.OrderDetails]{}, err
	}
	cache := newRefCache()
	items := make([]domain.OrderDetails, 0, len(orders))
	for i := range orders {
		items = append(items, *s.populate(ctx, &orders[i], cache))
	}
	return domain.Paged[domain.OrderDetails]{Items: items, Pagination: domain.NewPagination(q.Page, total)}, nil
}

type refCache struct {
	users    map[string]*domain.UserRef
	products map[string]*domain.ProductRef
}

func newRefCache() *refCache {
	return &refCache{
		users:    make(map[string]*domain.UserRef),
		products: make(map[string]*domain.ProductRef),
	}
}

// populate раскрывает ссылки на пользователя и товары; отсутствующие ссылки остаются nil
func (s *OrderService) populate(ctx context.Context, o *domain.Order, cache *refCache) *domain.OrderDetails {
	d := &domain.OrderDetails{
		Order:       *o,
		OrderNumber: o.OrderNumber(),
		User:        s.userRef(ctx, o.UserID, cache),
		Items:       make([]domain.ItemDetails, 0, len(o.Items)),
	}
	for _, it := range o.Items {
		d.Items = append(d.Items, domain.ItemDetails{OrderItem: it, Product: s.productRef(ctx, it.ProductID, cache)})
	}
	return d
}

func (s *OrderService) userRef(ctx context.Context, id string, cache *refCache) *domain.UserRef {
	if ref, ok := cache.users[id]; ok {
		return ref
	}
	var ref *domain.UserRef
	if u, err := s.users.GetByID(ctx, id); err == nil {
		ref = &domain.UserRef{ID: u.ID, Name: u.Name, Email: u.Email}
	} else if !errors.Is(err, repository.ErrNotFound) {
		s.logger.Warn("failed to resolve order user", "user_id", id, "error", err)
	}
	cache.users[id] = ref
	return ref
}

func (s *OrderService) productRef(ctx context.Context, id string, cache *refCache) *domain.ProductRef {
	if ref, ok := cache.products[id]; ok {
		return ref
	}
	var ref *domain.ProductRef
	if p, err := s.products.GetByID(ctx, id); err == nil {
		ref = &domain.ProductRef{ID: p.ID, Name: p.Name, Price: p.Price, Unit: p.Unit, Category: p.Category}
	} else if !errors.Is(err, repository.ErrNotFound) {
		s.logger.Warn("failed to resolve order product", "product_id", id, "error", err)
	}
	cache.products[id] = ref
	return ref
}

// publish отправляет событие в фоне; ошибка публикации не влияет на результат операции
func (s *OrderService) publish(subject string, o *domain.Order, send func(ctx context.Context) error) {
	if s.events == nil {
		return
	}
	go func() {
		pubCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := send(pubCtx); err != nil {
			s.logger.Warn("failed to publish order event", "subject", subject, "order_id", o.ID, "error", err)
		}
	}()
}

