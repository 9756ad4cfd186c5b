package domain

import "github.com/shopspring/decimal"

// UserRef краткие данные пользователя для отображения в заказе
type UserRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// CreatorRef автор товара в публичном каталоге, без контактных данных
type CreatorRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ProductRef краткие данные товара для отображения в позиции заказа
type ProductRef struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Unit     Unit            `json:"unit"`
	Category Category        `json:"category"`
}

// ItemDetails позиция заказа с раскрытой ссылкой на товар
type ItemDetails struct {
	OrderItem
	Product *ProductRef `json:"productDetails,omitempty"`
}

// OrderDetails заказ с раскрытыми ссылками на пользователя и товары
type OrderDetails struct {
	Order
	OrderNumber string        `json:"orderNumber"`
	User        *UserRef      `json:"userDetails,omitempty"`
	Items       []ItemDetails `json:"items"`
}
