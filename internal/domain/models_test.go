package domain

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestProduct_Virtuals(t *testing.T) {
	p := Product{Price: decimal.NewFromInt(450), Unit: UnitKg}
	assert.Equal(t, "₹450/kg", p.FormattedPrice())

	p.Stock = 0
	assert.Equal(t, "out-of-stock", p.StockStatus())
	p.Stock = 9
	assert.Equal(t, "low-stock", p.StockStatus())
	p.Stock = 10
	assert.Equal(t, "in-stock", p.StockStatus())
}

func TestOrder_ComputeTotal(t *testing.T) {
	o := Order{Items: []OrderItem{
		{ProductID: "a", Quantity: 3, Price: decimal.RequireFromString("100.50")},
		{ProductID: "b", Quantity: 2, Price: decimal.RequireFromString("0.25")},
	}}
	assert.True(t, o.ComputeTotal().Equal(decimal.RequireFromString("302")))
	assert.True(t, Order{}.ComputeTotal().IsZero())
}

func TestOrder_OrderNumber(t *testing.T) {
	o := Order{ID: "0b7c5e0e-2b7d-4f55-9a3c-1f2e3d4c5b6a"}
	assert.Equal(t, "ORD-3D4C5B6A", o.OrderNumber())
	assert.Equal(t, "ORD-ABC", Order{ID: "abc"}.OrderNumber())
}

func TestOrderStatus_Cancellable(t *testing.T) {
	cases := map[OrderStatus]bool{
		OrderStatusPending:    true,
		OrderStatusConfirmed:  true,
		OrderStatusProcessing: true,
		OrderStatusShipped:    false,
		OrderStatusDelivered:  false,
		OrderStatusCancelled:  false,
		OrderStatus("bogus"):  false,
	}
	for s, want := range cases {
		assert.Equal(t, want, s.Cancellable(), s)
	}
}

func TestCanTransition_Permissive(t *testing.T) {
	for _, from := range OrderStatuses {
		for _, to := range OrderStatuses {
			assert.True(t, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
	assert.False(t, CanTransition(OrderStatusPending, OrderStatus("lost")))
}

func TestEnums_Valid(t *testing.T) {
	assert.True(t, CategoryReadyToCook.Valid())
	assert.False(t, Category("beef").Valid())
	assert.True(t, UnitPiece.Valid())
	assert.False(t, Unit("litre").Valid())
}

func TestDeliveryAddress_Complete(t *testing.T) {
	a := DeliveryAddress{Street: "1 Main", City: "Pune", State: "MH", ZipCode: "411001", Phone: "+919876543210"}
	assert.True(t, a.Complete())
	a.City = "  "
	assert.False(t, a.Complete())
}

func TestNewPagination(t *testing.T) {
	p := NewPagination(Page{Number: 2, Size: 10}, 25)
	assert.Equal(t, 3, p.TotalPages)
	assert.True(t, p.HasNextPage)
	assert.True(t, p.HasPrevPage)

	p = NewPagination(Page{}, 0)
	assert.Equal(t, 1, p.CurrentPage)
	assert.Equal(t, DefaultPageSize, p.ItemsPerPage)
	assert.Equal(t, 0, p.TotalPages)
	assert.False(t, p.HasNextPage)

	p = NewPagination(Page{Number: 1, Size: 500}, 100)
	assert.Equal(t, MaxPageSize, p.ItemsPerPage)
	assert.Equal(t, 1, p.TotalPages)
}

func TestValidPrice(t *testing.T) {
	cases := []struct {
		price string
		want  bool
	}{
		{"0", true},
		{"320", true},
		{"299.5", true},
		{"10.000", true},
		{"999999999999.99", true},
		{"1000000000000", false},
		{"0.005", false},
		{"-1", false},
		{"123456789012345678901234567890123456789", false},
		{"1.0000000000000000000000000000000000001", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ValidPrice(decimal.RequireFromString(tc.price)), tc.price)
	}
}

func TestMoney_JSONNumbers(t *testing.T) {
	p := Product{ID: "p1", Price: decimal.RequireFromString("450.75"), Unit: UnitKg}
	b, err := json.Marshal(p)
	assert.NoError(t, err)
	assert.Contains(t, string(b), `"price":450.75`)

	o := Order{TotalAmount: decimal.NewFromInt(300), Items: []OrderItem{{ProductID: "p1", Quantity: 2, Price: decimal.NewFromInt(150)}}}
	b, err = json.Marshal(o)
	assert.NoError(t, err)
	assert.Contains(t, string(b), `"totalAmount":300`)
	assert.Contains(t, string(b), `"price":150`)
}
