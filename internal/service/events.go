package service

import (
	"context"

	"meatshop/internal/domain"
)

// OrderEventPublisher уведомления о жизненном цикле заказа; публикуются после фиксации транзакции
type OrderEventPublisher interface {
	PublishOrderCreated(ctx context.Context, order *domain.Order) error
	PublishOrderCancelled(ctx context.Context, order *domain.Order) error
	PublishOrderStatusChanged(ctx context.Context, order *domain.Order, previous domain.OrderStatus) error
}
