package repository

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"meatshop/internal/domain"
)

func TestDecimal128_PreservesPrice(t *testing.T) {
	d := decimal.RequireFromString("450.75")
	v, err := toDecimal128(d)
	require.NoError(t, err)
	assert.True(t, fromDecimal128(v).Equal(d))
}

func TestDecimal128_RejectsUnrepresentable(t *testing.T) {
	for _, s := range []string{
		"123456789012345678901234567890123456789",
		"1.0000000000000000000000000000000000001",
	} {
		_, err := toDecimal128(decimal.RequireFromString(s))
		assert.Error(t, err, s)
	}
}

func TestProductDocument_UnrepresentablePrice(t *testing.T) {
	p := &domain.Product{ID: "p1", Name: "Prawns", Price: decimal.RequireFromString("123456789012345678901234567890123456789")}
	doc, err := toProductDocument(p)
	assert.Error(t, err)
	assert.Nil(t, doc)

	o := &domain.Order{ID: "o1", TotalAmount: decimal.NewFromInt(1), Items: []domain.OrderItem{
		{ProductID: "p1", Quantity: 1, Price: p.Price},
	}}
	_, err = toOrderDocument(o)
	assert.ErrorContains(t, err, "item 0")
}

func TestOrderDocument_SnapshotPrices(t *testing.T) {
	o := &domain.Order{
		ID:     "o1",
		UserID: "u1",
		Items: []domain.OrderItem{
			{ProductID: "p1", Quantity: 3, Price: decimal.NewFromInt(100)},
		},
		TotalAmount: decimal.NewFromInt(300),
		Status:      domain.OrderStatusPending,
	}
	doc, err := toOrderDocument(o)
	require.NoError(t, err)
	got := toOrderEntity(doc)
	require.Len(t, got.Items, 1)
	assert.True(t, got.Items[0].Price.Equal(decimal.NewFromInt(100)))
	assert.True(t, got.TotalAmount.Equal(decimal.NewFromInt(300)))
	assert.Equal(t, domain.OrderStatusPending, got.Status)
}

func TestProductFilter(t *testing.T) {
	minPrice := decimal.NewFromInt(10)
	f, err := productFilter(ProductQuery{
		Category:   domain.CategorySeafood,
		Search:     "prawn",
		MinPrice:   &minPrice,
		ActiveOnly: true,
	})
	require.NoError(t, err)
	assert.Equal(t, true, f["isActive"])
	assert.Equal(t, "seafood", f["category"])
	assert.Equal(t, bson.M{"$search": "prawn"}, f["$text"])
	price, ok := f["price"].(bson.M)
	require.True(t, ok)
	assert.Contains(t, price, "$gte")
	assert.NotContains(t, price, "$lte")

	empty, err := productFilter(ProductQuery{})
	require.NoError(t, err)
	assert.Empty(t, empty)

	huge := decimal.RequireFromString("123456789012345678901234567890123456789")
	_, err = productFilter(ProductQuery{MaxPrice: &huge})
	assert.ErrorContains(t, err, "maxPrice")
}

func TestFindOptions_DefaultSortAndPage(t *testing.T) {
	opts := findOptions(Sort{}, domain.Page{Number: 3, Size: 20})
	require.NotNil(t, opts.Skip)
	require.NotNil(t, opts.Limit)
	assert.Equal(t, int64(40), *opts.Skip)
	assert.Equal(t, int64(20), *opts.Limit)
	assert.Equal(t, bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}, opts.Sort)
}
