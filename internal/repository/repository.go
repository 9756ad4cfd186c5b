package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"meatshop/internal/domain"
)

var (
	// ErrNotFound возвращается, когда сущность не найдена
	ErrNotFound = errors.New("not found")
	// ErrInsufficientStock условное списание не прошло: остаток меньше запрошенного
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrDuplicate нарушение уникальности (email пользователя)
	ErrDuplicate = errors.New("duplicate")
)

// Sort поле сортировки и направление
type Sort struct {
	Field string
	Desc  bool
}

// DefaultSort сначала новые
var DefaultSort = Sort{Field: "createdAt", Desc: true}

var (
	productSortFields = map[string]bool{"createdAt": true, "updatedAt": true, "price": true, "name": true, "stock": true}
	orderSortFields   = map[string]bool{"createdAt": true, "updatedAt": true, "totalAmount": true, "status": true}
)

func ValidProductSort(field string) bool { return productSortFields[field] }
func ValidOrderSort(field string) bool   { return orderSortFields[field] }

// ProductQuery параметры фильтрации списка товаров; фильтры объединяются через AND
type ProductQuery struct {
	Category   domain.Category
	Search     string
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
	ActiveOnly bool
	Sort       Sort
	Page       domain.Page
}

// OrderQuery параметры фильтрации списка заказов
type OrderQuery struct {
	UserID string
	Status domain.OrderStatus
	Sort   Sort
	Page   domain.Page
}

// ProductRepository интерфейс репозитория товаров
type ProductRepository interface {
	Create(ctx context.Context, p *domain.Product) error
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	Update(ctx context.Context, p *domain.Product) error
	List(ctx context.Context, q ProductQuery) ([]domain.Product, int64, error)
	// DecrementStock атомарно уменьшает остаток, только если stock >= qty
	DecrementStock(ctx context.Context, id string, qty int64) error
	IncrementStock(ctx context.Context, id string, qty int64) error
}

// OrderRepository интерфейс репозитория заказов
type OrderRepository interface {
	Create(ctx context.Context, o *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	Update(ctx context.Context, o *domain.Order) error
	List(ctx context.Context, q OrderQuery) ([]domain.Order, int64, error)
}

// UserRepository интерфейс репозитория пользователей
type UserRepository interface {
	Create(ctx context.Context, u *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Update(ctx context.Context, u *domain.User) error
}

// TxManager абстракция транзакции: записи внутри fn фиксируются вместе или не фиксируются вовсе
type TxManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// helper: case-insensitive contains
func containsIgnoreCase(s, substr string) bool {
	if substr == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
