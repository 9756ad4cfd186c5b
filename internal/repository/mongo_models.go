package repository

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"meatshop/internal/domain"
)

type ProductDocument struct {
	ID          string               `bson:"_id"`
	Name        string               `bson:"name"`
	Description string               `bson:"description"`
	Price       primitive.Decimal128 `bson:"price"`
	Category    string               `bson:"category"`
	Unit        string               `bson:"unit"`
	Stock       int64                `bson:"stock"`
	IsActive    bool                 `bson:"isActive"`
	Tags        []string             `bson:"tags,omitempty"`
	CreatedBy   string               `bson:"createdBy"`
	CreatedAt   time.Time            `bson:"createdAt"`
	UpdatedAt   time.Time            `bson:"updatedAt"`
}

type OrderDocument struct {
	ID                string               `bson:"_id"`
	UserID            string               `bson:"user"`
	Items             []ItemDocument       `bson:"items"`
	TotalAmount       primitive.Decimal128 `bson:"totalAmount"`
	Status            string               `bson:"status"`
	PaymentStatus     string               `bson:"paymentStatus"`
	DeliveryAddress   AddressDocument      `bson:"deliveryAddress"`
	Notes             string               `bson:"orderNotes,omitempty"`
	EstimatedDelivery time.Time            `bson:"estimatedDelivery"`
	DeliveredAt       *time.Time           `bson:"deliveredAt,omitempty"`
	CreatedAt         time.Time            `bson:"createdAt"`
	UpdatedAt         time.Time            `bson:"updatedAt"`
}

type ItemDocument struct {
	ProductID string               `bson:"product"`
	Quantity  int64                `bson:"quantity"`
	Price     primitive.Decimal128 `bson:"price"`
}

type AddressDocument struct {
	Street  string `bson:"street"`
	City    string `bson:"city"`
	State   string `bson:"state"`
	ZipCode string `bson:"zipCode"`
	Phone   string `bson:"phone"`
}

type UserDocument struct {
	ID           string    `bson:"_id"`
	Name         string    `bson:"name"`
	Email        string    `bson:"email"`
	Phone        string    `bson:"phone,omitempty"`
	PasswordHash string    `bson:"password"`
	Role         string    `bson:"role"`
	CreatedAt    time.Time `bson:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt"`
}

// toDecimal128 ошибка, если значение не помещается в 34 значащие цифры decimal128
func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("amount %s is not representable as decimal128: %w", d.String(), err)
	}
	return v, nil
}

func fromDecimal128(v primitive.Decimal128) decimal.Decimal {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero
	}
	return d
}

func toProductDocument(p *domain.Product) (*ProductDocument, error) {
	price, err := toDecimal128(p.Price)
	if err != nil {
		return nil, err
	}
	return &ProductDocument{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       price,
		Category:    string(p.Category),
		Unit:        string(p.Unit),
		Stock:       p.Stock,
		IsActive:    p.IsActive,
		Tags:        p.Tags,
		CreatedBy:   p.CreatedBy,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}, nil
}

func toProductEntity(doc *ProductDocument) *domain.Product {
	return &domain.Product{
		ID:          doc.ID,
		Name:        doc.Name,
		Description: doc.Description,
		Price:       fromDecimal128(doc.Price),
		Category:    domain.Category(doc.Category),
		Unit:        domain.Unit(doc.Unit),
		Stock:       doc.Stock,
		IsActive:    doc.IsActive,
		Tags:        doc.Tags,
		CreatedBy:   doc.CreatedBy,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}
}

func toOrderDocument(o *domain.Order) (*OrderDocument, error) {
	total, err := toDecimal128(o.TotalAmount)
	if err != nil {
		return nil, err
	}
	doc := &OrderDocument{
		ID:            o.ID,
		UserID:        o.UserID,
		TotalAmount:   total,
		Status:        string(o.Status),
		PaymentStatus: string(o.PaymentStatus),
		DeliveryAddress: AddressDocument{
			Street:  o.DeliveryAddress.Street,
			City:    o.DeliveryAddress.City,
			State:   o.DeliveryAddress.State,
			ZipCode: o.DeliveryAddress.ZipCode,
			Phone:   o.DeliveryAddress.Phone,
		},
		Notes:             o.Notes,
		EstimatedDelivery: o.EstimatedDelivery,
		DeliveredAt:       o.DeliveredAt,
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
		Items:             make([]ItemDocument, len(o.Items)),
	}

	for i, item := range o.Items {
		price, err := toDecimal128(item.Price)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		doc.Items[i] = ItemDocument{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     price,
		}
	}

	return doc, nil
}

func toOrderEntity(doc *OrderDocument) *domain.Order {
	items := make([]domain.OrderItem, len(doc.Items))
	for i, item := range doc.Items {
		items[i] = domain.OrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     fromDecimal128(item.Price),
		}
	}

	return &domain.Order{
		ID:            doc.ID,
		UserID:        doc.UserID,
		Items:         items,
		TotalAmount:   fromDecimal128(doc.TotalAmount),
		Status:        domain.OrderStatus(doc.Status),
		PaymentStatus: domain.PaymentStatus(doc.PaymentStatus),
		DeliveryAddress: domain.DeliveryAddress{
			Street:  doc.DeliveryAddress.Street,
			City:    doc.DeliveryAddress.City,
			State:   doc.DeliveryAddress.State,
			ZipCode: doc.DeliveryAddress.ZipCode,
			Phone:   doc.DeliveryAddress.Phone,
		},
		Notes:             doc.Notes,
		EstimatedDelivery: doc.EstimatedDelivery,
		DeliveredAt:       doc.DeliveredAt,
		CreatedAt:         doc.CreatedAt,
		UpdatedAt:         doc.UpdatedAt,
	}
}

func toUserDocument(u *domain.User) *UserDocument {
	return &UserDocument{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		Phone:        u.Phone,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func toUserEntity(doc *UserDocument) *domain.User {
	return &domain.User{
		ID:           doc.ID,
		Name:         doc.Name,
		Email:        doc.Email,
		Phone:        doc.Phone,
		PasswordHash: doc.PasswordHash,
		Role:         domain.Role(doc.Role),
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
	}
}
