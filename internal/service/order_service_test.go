package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"meatshop/internal/domain"
	"meatshop/internal/logger"
	"meatshop/internal/repository"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishOrderCreated(ctx context.Context, o *domain.Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *MockPublisher) PublishOrderCancelled(ctx context.Context, o *domain.Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *MockPublisher) PublishOrderStatusChanged(ctx context.Context, o *domain.Order, previous domain.OrderStatus) error {
	args := m.Called(ctx, o, previous)
	return args.Error(0)
}

type fixture struct {
	store  *repository.MemoryStore
	users  *repository.MemoryUsers
	ps     *ProductService
	os     *OrderService
	orders *repository.MemoryOrders
}

func setup(t *testing.T, events OrderEventPublisher) *fixture {
	t.Helper()
	store := repository.NewMemoryStore()
	orders := repository.NewMemoryOrders(store)
	users := repository.NewMemoryUsers(store)
	tx := repository.NewMemoryTx(store)
	return &fixture{
		store:  store,
		users:  users,
		orders: orders,
		ps:     NewProductService(store, users, tx),
		os:     NewOrderService(store, orders, users, tx, events, logger.Nop()),
	}
}

func (f *fixture) product(t *testing.T, name string, price, stock int64) *domain.Product {
	t.Helper()
	p, err := f.ps.Create(context.Background(), admin, chicken(name, price, stock))
	require.NoError(t, err)
	return p
}

func (f *fixture) stock(t *testing.T, id string) int64 {
	t.Helper()
	p, err := f.store.GetByID(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

var address = domain.DeliveryAddress{
	Street:  "12 MG Road",
	City:    "Bengaluru",
	State:   "Karnataka",
	ZipCode: "560001",
	Phone:   "9876543210",
}

func orderOf(items ...ItemInput) CreateOrderInput {
	return CreateOrderInput{Items: items, DeliveryAddress: address}
}

func TestCreateOrderAndCancel(t *testing.T) {
	ctx := context.Background()
	f := setup(t, nil)
	p := f.product(t, "Chicken Breast", 100, 5)

	o, err := f.os.CreateOrder(ctx, customer, orderOf(ItemInput{ProductID: p.ID, Quantity: 3}))
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, o.Status)
	assert.Equal(t, domain.PaymentPending, o.PaymentStatus)
	assert.True(t, o.TotalAmount.Equal(decimal.NewFromInt(300)))
	assert.Equal(t, customer.UserID, o.UserID)
	assert.Equal(t, int64(2), f.stock(t, p.ID))
	require.Len(t, o.Items, 1)
	require.NotNil(t, o.Items[0].Product)
	assert.Equal(t, "Chicken Breast", o.Items[0].Product.Name)
	assert.Equal(t, o.Order.OrderNumber(), o.OrderNumber)

	c, err := f.os.CancelOrder(ctx, customer, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, c.Status)
	assert.Equal(t, int64(5), f.stock(t, p.ID))

	_, err = f.os.CancelOrder(ctx, customer, o.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, int64(5), f.stock(t, p.ID))
}

func TestCreateOrder_EstimatedDelivery(t *testing.T) {
	ctx := context.Background()
	f := setup(t, nil)
	fixed := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	f.os.now = func() time.Time { return fixed }
	p := f.product(t, "Chicken Breast", 100, 5)

	o, err := f.os.CreateOrder(ctx, customer, orderOf(ItemInput{ProductID: p.ID, Quantity: 1}))
	require.NoError(t, err)
	assert.Equal(t, fixed.Add(48*time.Hour), o.EstimatedDelivery)
}

func TestCreateOrder_InsufficientStockIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	f := setup(t, nil)
	a := f.product(t, "Chicken Breast", 100, 5)
	b := f.product(t, "Chicken Wings", 80, 1)

	_, err := f.os.CreateOrder(ctx, customer, orderOf(
		ItemInput{ProductID: a.ID, Quantity: 4},
		ItemInput{ProductID: b.ID, Quantity: 2},
	))
	require.ErrorIs(t, err, ErrNotEnoughStock)

	var serr *InsufficientStockError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, "Chicken Wings", serr.ProductName)
	assert.Equal(t, int64(1), serr.Available)
	assert.Equal(t, "Insufficient stock for Chicken Wings. Available: 1", serr.Error())

	// first item was reserved before the failure and must be rolled back
	assert.Equal(t, int64(5), f.stock(t, a.ID))
	assert.Equal(t, int64(1), f.stock(t, b.ID))
	_, total, _ := f.orders.List(ctx, repository.OrderQuery{})
	assert.Zero(t, total)
}

func TestCreateOrder_SameProductTwice(t *testing.T) {
	ctx := context.Background()
	f := setup(t, nil)
	p := f.product(t, "Tiger Prawns", 600, 4)

	_, err := f.os.CreateOrder(ctx, customer, orderOf(
		ItemInput{ProductID: p.ID, Quantity: 3},
		ItemInput{ProductID: p.ID, Quantity: 2},
	))
	assert.ErrorIs(t, err, ErrNotEnoughStock)
	assert.Equal(t, int64(4), f.stock(t, p.ID))
}

func TestCreateOrder_UnknownOrInactiveProduct(t *testing.T) {
	ctx := context.Background()
	f := setup(t, nil)
	p := f.product(t, "Chicken Breast", 100, 5)
	gone := f.product(t, "Chicken Liver", 90, 5)
	require.NoError(t, f.ps.Delete(ctx, admin, gone.ID))

	_, err := f.os.CreateOrder(ctx, customer, orderOf(
		ItemInput{ProductID: p.ID, Quantity: 1},
		ItemInput{ProductID: "missing", Quantity: 1},
	))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.os.CreateOrder(ctx, customer, orderOf(ItemInput{ProductID: gone.ID, Quantity: 1}))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int64(5), f.stock(t, p.ID))
	assert.Equal(t, int64(5), f.stock(t, gone.ID))
}

func TestCreateOrder_Validation(t *testing.T) {
	ctx := context.Background()
	f := setup(t, nil)
	p := f.product(t, "Chicken Breast", 100, 5)

	_, err := f.os.CreateOrder(ctx, customer, orderOf())
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.os.CreateOrder(ctx, customer, orderOf(ItemInput{ProductID: p.ID, Quantity: 0}))
	assert.ErrorIs(t, err, ErrInvalidInput)

	in := orderOf(ItemInput{ProductID: p.ID, Quantity: 1})
	in.DeliveryAddress.ZipCode = ""
	_, err = f.os.CreateOrder(ctx, customer, in)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "deliveryAddress", verr.Fields[0].Field)

	_, err = f.os.CreateOrder(ctx, domain.Actor{}, orderOf(ItemInput{ProductID: p.ID, Quantity: 1}))
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, int64(5), f.stock(t, p.ID))
}

func TestCreateOrder_PriceSnapshot(t *testing.T) {
	ctx := context.Background()
	f := setup(t, nil)
	p := f.product(t, "Mutton Chops", 700, 5)

	o, err := f.os.CreateOrder(ctx, customer, orderOf(ItemInput{ProductID: p.ID, Quantity: 2}))
	require.NoError(t, err)

	price := decimal.NewFromInt(900)
	_, err = f.ps.Update(ctx, admin, p.ID, ProductPatch{Price: &price})
	require.NoError(t, err)

	got, err := f.os.GetOrder(ctx, customer, o.ID)
	require.NoError(t, err)
	assert.True(t, got.Items[0].Price.Equal(decimal.NewFromInt(700)))
	assert.True(t, got.TotalAmount.Equal(decimal.NewFromInt(1400)))
	// details show the current catalog price
	assert.True(t, got.Items[0].Product.Price.Equal(price))
}

func TestGetOrder_Access(t *testing.T) {
	ctx := context.Background()
	f := setup(t, nil)
	p := f.product(t, "Chicken Breast", 100, 5)

	u := domain.User{Name: "Asha", Email: "asha@example.com", Role: domain.RoleUser}
	require.NoError(t, f.users.Create(ctx, &u))
	owner := domain.Actor{UserID: u.ID, Role: domain.RoleUser}

	o, err := f.os.CreateOrder(ctx, owner, orderOf(ItemInput{ProductID: p.ID, Quantity: 1}))
	require.NoError(t, err)
	require.NotNil(t, o.User)
	assert.Equal(t, "asha@example.com", o.User.Email)

	_, err = f.os.GetOrder(ctx, customer, o.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	got, err := f.os.GetOrder(ctx, admin, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)

	_, err = f.os.GetOrder(ctx, owner, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCancelOrder_OwnerOnly(t *testing.T) {
	ctx := context.Background()
	f := setup(t, nil)
	p := f.product(t, "Chicken Breast", 100, 5)
	o, err := f.os.CreateOrder(ctx, customer, orderOf(ItemInput{ProductID: p.ID, Quantity: 2}))
	require.NoError(t, err)

	other := domain.Actor{UserID: "user-2", Role: domain.RoleUser}
	_, err = f.os.CancelOrder(ctx, other, o.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.os.CancelOrder(ctx, admin, o.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, int64(3), f.stock(t, p.ID))

	_, err = f.os.CancelOrder(ctx, customer, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCancelOrder_NotCancellableStages(t *testing.T) {
	ctx := context.Background()
	f := setup(t, nil)
	p := f.product(t, "Chicken Breast", 100, 10)

	for _, st := range []domain.OrderStatus{domain.OrderStatusShipped, domain.OrderStatusDelivered} {
		t.Run(string(st), func(t *testing.T) {
			o, err := f.os.CreateOrder(ctx, customer, orderOf(ItemInput{ProductID: p.ID, Quantity: 1}))
			require.NoError(t, err)
			_, err = f.os.UpdateOrderStatus(ctx, admin, o.ID, st)
			require.NoError(t, err)
			before := f.stock(t, p.ID)

			_, err = f.os.CancelOrder(ctx, customer, o.ID)
			assert.ErrorIs(t, err, ErrInvalidState)
			assert.Equal(t, before, f.stock(t, p.ID))
		})
	}

	o, err := f.os.CreateOrder(ctx, customer, orderOf(ItemInput{ProductID: p.ID, Quantity: 1}))
	require.NoError(t, err)
	_, err = f.os.UpdateOrderStatus(ctx, admin, o.ID, domain.OrderStatusProcessing)
	require.NoError(t, err)
	_, err = f.os.CancelOrder(ctx, customer, o.ID)
	assert.NoError(t, err)
}

func TestUpdateOrderStatus(t *testing.T) {
	ctx := context.Background()
	f := setup(t, nil)
	fixed := time.Date(2025, 3, 2, 8, 30, 0, 0, time.UTC)
	f.os.now = func() time.Time { return fixed }
	p := f.product(t, "Chicken Breast", 100, 5)
	o, err := f.os.CreateOrder(ctx, customer, orderOf(ItemInput{ProductID: p.ID, Quantity: 2}))
	require.NoError(t, err)

	_, err = f.os.UpdateOrderStatus(ctx, customer, o.ID, domain.OrderStatusConfirmed)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.os.UpdateOrderStatus(ctx, admin, o.ID, "teleported")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.os.UpdateOrderStatus(ctx, admin, "missing", domain.OrderStatusConfirmed)
	assert.ErrorIs(t, err, ErrNotFound)

	up, err := f.os.UpdateOrderStatus(ctx, admin, o.ID, domain.OrderStatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusDelivered, up.Status)
	require.NotNil(t, up.DeliveredAt)
	assert.Equal(t, fixed, *up.DeliveredAt)

	// admin status changes never touch stock, cancelled included
	_, err = f.os.UpdateOrderStatus(ctx, admin, o.ID, domain.OrderStatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, int64(3), f.stock(t, p.ID))
}

func TestListOrders_Scoping(t *testing.T) {
	ctx := context.Background()
	f := setup(t, nil)
	p := f.product(t, "Chicken Breast", 100, 50)
	other := domain.Actor{UserID: "user-2", Role: domain.RoleUser}

	for i := 0; i < 3; i++ {
		_, err := f.os.CreateOrder(ctx, customer, orderOf(ItemInput{ProductID: p.ID, Quantity: 1}))
		require.NoError(t, err)
	}
	o, err := f.os.CreateOrder(ctx, other, orderOf(ItemInput{ProductID: p.ID, Quantity: 1}))
	require.NoError(t, err)
	_, err = f.os.UpdateOrderStatus(ctx, admin, o.ID, domain.OrderStatusConfirmed)
	require.NoError(t, err)

	mine, err := f.os.ListMyOrders(ctx, customer, repository.OrderQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), mine.Pagination.TotalItems)
	for _, d := range mine.Items {
		assert.Equal(t, customer.UserID, d.UserID)
	}

	// a non-admin asking for all orders only sees their own
	scoped, err := f.os.ListOrders(ctx, other, repository.OrderQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), scoped.Pagination.TotalItems)

	all, err := f.os.ListOrders(ctx, admin, repository.OrderQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(4), all.Pagination.TotalItems)

	confirmed, err := f.os.ListOrders(ctx, admin, repository.OrderQuery{Status: domain.OrderStatusConfirmed})
	require.NoError(t, err)
	assert.Equal(t, int64(1), confirmed.Pagination.TotalItems)

	paged, err := f.os.ListOrders(ctx, admin, repository.OrderQuery{Page: domain.Page{Number: 2, Size: 3}})
	require.NoError(t, err)
	assert.Len(t, paged.Items, 1)
	assert.Equal(t, 2, paged.Pagination.TotalPages)
	assert.False(t, paged.Pagination.HasNextPage)
	assert.True(t, paged.Pagination.HasPrevPage)

	_, err = f.os.ListOrders(ctx, admin, repository.OrderQuery{Status: "lost"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = f.os.ListMyOrders(ctx, domain.Actor{}, repository.OrderQuery{})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestConcurrentOrders_NeverOversell(t *testing.T) {
	ctx := context.Background()
	f := setup(t, nil)
	p := f.product(t, "Chicken Breast", 100, 10)

	var wg sync.WaitGroup
	var mu sync.Mutex
	placed := 0
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.os.CreateOrder(ctx, customer, orderOf(ItemInput{ProductID: p.ID, Quantity: 1})); err == nil {
				mu.Lock()
				placed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, placed)
	assert.Equal(t, int64(0), f.stock(t, p.ID))
}

func TestOrderEvents_Published(t *testing.T) {
	ctx := context.Background()
	pub := new(MockPublisher)
	f := setup(t, pub)
	p := f.product(t, "Chicken Breast", 100, 5)

	var wg sync.WaitGroup
	wg.Add(3)
	pub.On("PublishOrderCreated", mock.Anything, mock.AnythingOfType("*domain.Order")).
		Return(nil).
		Run(func(args mock.Arguments) { wg.Done() })
	pub.On("PublishOrderStatusChanged", mock.Anything, mock.AnythingOfType("*domain.Order"), domain.OrderStatusPending).
		Return(nil).
		Run(func(args mock.Arguments) { wg.Done() })
	pub.On("PublishOrderCancelled", mock.Anything, mock.AnythingOfType("*domain.Order")).
		Return(errors.New("nats: connection closed")).
		Run(func(args mock.Arguments) { wg.Done() })

	o, err := f.os.CreateOrder(ctx, customer, orderOf(ItemInput{ProductID: p.ID, Quantity: 1}))
	require.NoError(t, err)
	_, err = f.os.UpdateOrderStatus(ctx, admin, o.ID, domain.OrderStatusConfirmed)
	require.NoError(t, err)
	// publish failure does not fail the operation
	_, err = f.os.CancelOrder(ctx, customer, o.ID)
	require.NoError(t, err)

	wg.Wait()
	pub.AssertExpectations(t)
}

func TestOrderEvents_NotPublishedOnFailure(t *testing.T) {
	ctx := context.Background()
	pub := new(MockPublisher)
	f := setup(t, pub)
	p := f.product(t, "Chicken Breast", 100, 1)

	_, err := f.os.CreateOrder(ctx, customer, orderOf(ItemInput{ProductID: p.ID, Quantity: 2}))
	require.Error(t, err)
	pub.AssertNotCalled(t, "PublishOrderCreated", mock.Anything, mock.Anything)
}
