package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Category категория товара
type Category string

const (
	CategoryChicken     Category = "chicken"
	CategoryMutton      Category = "mutton"
	CategorySeafood     Category = "seafood"
	CategoryEggs        Category = "eggs"
	CategoryReadyToCook Category = "ready-to-cook"
)

var Categories = []Category{CategoryChicken, CategoryMutton, CategorySeafood, CategoryEggs, CategoryReadyToCook}

func (c Category) Valid() bool {
	for _, v := range Categories {
		if c == v {
			return true
		}
	}
	return false
}

// Unit единица продажи
type Unit string

const (
	UnitKg    Unit = "kg"
	UnitPiece Unit = "piece"
	UnitSet   Unit = "set"
)

func (u Unit) Valid() bool {
	return u == UnitKg || u == UnitPiece || u == UnitSet
}

// LowStockThreshold ниже этого остатка товар считается заканчивающимся
const LowStockThreshold = 10

// Product представляет товар в каталоге магазина
type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    Category        `json:"category"`
	Unit        Unit            `json:"unit"`
	Stock       int64           `json:"stock"`
	IsActive    bool            `json:"isActive"`
	Tags        []string        `json:"tags,omitempty"`
	CreatedBy   string          `json:"createdBy"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// FormattedPrice цена для витрины, например "₹450/kg"
func (p Product) FormattedPrice() string {
	return fmt.Sprintf("₹%s/%s", p.Price.String(), p.Unit)
}

func (p Product) StockStatus() string {
	switch {
	case p.Stock <= 0:
		return "out-of-stock"
	case p.Stock < LowStockThreshold:
		return "low-stock"
	default:
		return "in-stock"
	}
}

// OrderStatus тип статуса заказа
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

func (s OrderStatus) Valid() bool {
	for _, v := range OrderStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Cancellable заказ можно отменить, пока он не отправлен
func (s OrderStatus) Cancellable() bool {
	switch s {
	case OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return false
	}
	return s.Valid()
}

// statusTransitions разрешённые переходы статуса администратором.
// Граф полный: любой статус может следовать за любым.
var statusTransitions = func() map[OrderStatus][]OrderStatus {
	m := make(map[OrderStatus][]OrderStatus, len(OrderStatuses))
	for _, from := range OrderStatuses {
		m[from] = OrderStatuses
	}
	return m
}()

// CanTransition сообщает, допустим ли переход from -> to
func CanTransition(from, to OrderStatus) bool {
	for _, s := range statusTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// PaymentStatus статус оплаты
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// DeliveryAddress адрес доставки, все поля обязательны
type DeliveryAddress struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zipCode"`
	Phone   string `json:"phone"`
}

func (a DeliveryAddress) Complete() bool {
	for _, v := range []string{a.Street, a.City, a.State, a.ZipCode, a.Phone} {
		if strings.TrimSpace(v) == "" {
			return false
		}
	}
	return true
}

// OrderItem позиция в заказе; Price фиксируется в момент оформления
type OrderItem struct {
	ProductID string          `json:"product"`
	Quantity  int64           `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

func (it OrderItem) Subtotal() decimal.Decimal {
	return it.Price.Mul(decimal.NewFromInt(it.Quantity))
}

// Order сущность заказа
type Order struct {
	ID                string          `json:"id"`
	UserID            string          `json:"user"`
	Items             []OrderItem     `json:"items"`
	TotalAmount       decimal.Decimal `json:"totalAmount"`
	Status            OrderStatus     `json:"status"`
	PaymentStatus     PaymentStatus   `json:"paymentStatus"`
	DeliveryAddress   DeliveryAddress `json:"deliveryAddress"`
	Notes             string          `json:"orderNotes,omitempty"`
	EstimatedDelivery time.Time       `json:"estimatedDelivery"`
	DeliveredAt       *time.Time      `json:"deliveredAt,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

// ComputeTotal сумма price*quantity по всем позициям
func (o Order) ComputeTotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range o.Items {
		total = total.Add(it.Subtotal())
	}
	return total
}

// OrderNumber человекочитаемый номер заказа: ORD- и последние 8 символов id
func (o Order) OrderNumber() string {
	id := strings.ReplaceAll(o.ID, "-", "")
	if len(id) > 8 {
		id = id[len(id)-8:]
	}
	return "ORD-" + strings.ToUpper(id)
}
