package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"meatshop/internal/domain"
)

// MemoryStore объединённое in-memory хранилище товаров, заказов и пользователей
type MemoryStore struct {
	mu           sync.RWMutex
	productsByID map[string]domain.Product
	ordersByID   map[string]domain.Order
	usersByID    map[string]domain.User
	// insertion order keeps listings deterministic when sort keys tie
	productIDs []string
	orderIDs   []string
	now        func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		productsByID: make(map[string]domain.Product),
		ordersByID:   make(map[string]domain.Order),
		usersByID:    make(map[string]domain.User),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// transaction-aware locking helpers
type txKey struct{}

func isTx(ctx context.Context) bool {
	v := ctx.Value(txKey{})
	if v == nil {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

func (m *MemoryStore) rlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.RLock()
	}
}
func (m *MemoryStore) runlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.RUnlock()
	}
}
func (m *MemoryStore) wlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.Lock()
	}
}
func (m *MemoryStore) wunlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.Unlock()
	}
}

// Ensure interfaces
var (
	_ ProductRepository = (*MemoryStore)(nil)
	_ OrderRepository   = (*MemoryOrders)(nil)
	_ UserRepository    = (*MemoryUsers)(nil)
	_ TxManager         = (*MemoryTx)(nil)
)

func copyProduct(p domain.Product) domain.Product {
	if p.Tags != nil {
		p.Tags = append([]string(nil), p.Tags...)
	}
	return p
}

func copyOrder(o domain.Order) domain.Order {
	o.Items = append([]domain.OrderItem(nil), o.Items...)
	if o.DeliveredAt != nil {
		t := *o.DeliveredAt
		o.DeliveredAt = &t
	}
	return o
}

// ProductRepository implementation
func (m *MemoryStore) Create(ctx context.Context, p *domain.Product) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.CreatedAt = m.now()
	p.UpdatedAt = p.CreatedAt
	m.productsByID[p.ID] = copyProduct(*p)
	m.productIDs = append(m.productIDs, p.ID)
	return nil
}

func (m *MemoryStore) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	p, ok := m.productsByID[id]
	if !ok {
		return nil, ErrNotFound
	}
	// return copy
	cp := copyProduct(p)
	return &cp, nil
}

func (m *MemoryStore) Update(ctx context.Context, p *domain.Product) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	cur, ok := m.productsByID[p.ID]
	if !ok {
		return ErrNotFound
	}
	p.CreatedAt = cur.CreatedAt
	p.UpdatedAt = m.now()
	m.productsByID[p.ID] = copyProduct(*p)
	return nil
}

func (m *MemoryStore) DecrementStock(ctx context.Context, id string, qty int64) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	p, ok := m.productsByID[id]
	if !ok {
		return ErrNotFound
	}
	if p.Stock < qty {
		return ErrInsufficientStock
	}
	p.Stock -= qty
	p.UpdatedAt = m.now()
	m.productsByID[id] = p
	return nil
}

func (m *MemoryStore) IncrementStock(ctx context.Context, id string, qty int64) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	p, ok := m.productsByID[id]
	if !ok {
		return ErrNotFound
	}
	p.Stock += qty
	p.UpdatedAt = m.now()
	m.productsByID[id] = p
	return nil
}

func (m *MemoryStore) List(ctx context.Context, q ProductQuery) ([]domain.Product, int64, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	out := make([]domain.Product, 0)
	for _, id := range m.productIDs {
		p := m.productsByID[id]
		if q.ActiveOnly && !p.IsActive {
			continue
		}
		if q.Category != "" && p.Category != q.Category {
			continue
		}
		if !matchesText(q.Search, p.Name, p.Description) {
			continue
		}
		if q.MinPrice != nil && p.Price.LessThan(*q.MinPrice) {
			continue
		}
		if q.MaxPrice != nil && p.Price.GreaterThan(*q.MaxPrice) {
			continue
		}
		out = append(out, copyProduct(p))
	}
	sortProducts(out, q.Sort)
	return paginate(out, q.Page)
}

// matchesText approximates a text index: any search term found in any field
func matchesText(search string, fields ...string) bool {
	terms := strings.Fields(search)
	if len(terms) == 0 {
		return true
	}
	for _, term := range terms {
		for _, f := range fields {
			if containsIgnoreCase(f, term) {
				return true
			}
		}
	}
	return false
}

func sortProducts(list []domain.Product, s Sort) {
	if s.Field == "" {
		s = DefaultSort
	}
	less := func(a, b domain.Product) int {
		switch s.Field {
		case "price":
			return a.Price.Cmp(b.Price)
		case "name":
			return strings.Compare(a.Name, b.Name)
		case "stock":
			return cmpInt(a.Stock, b.Stock)
		case "updatedAt":
			return a.UpdatedAt.Compare(b.UpdatedAt)
		default:
			return a.CreatedAt.Compare(b.CreatedAt)
		}
	}
	sort.SliceStable(list, func(i, j int) bool {
		c := less(list[i], list[j])
		if s.Desc {
			return c > 0
		}
		return c < 0
	})
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func paginate[T any](all []T, p domain.Page) ([]T, int64, error) {
	p = p.Normalize()
	total := int64(len(all))
	start := p.Offset()
	if start > len(all) {
		start = len(all)
	}
	end := start + p.Size
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

// OrderRepository implementation on wrapper type
type MemoryOrders struct{ store *MemoryStore }

func NewMemoryOrders(store *MemoryStore) *MemoryOrders { return &MemoryOrders{store: store} }

func (mo *MemoryOrders) Create(ctx context.Context, o *domain.Order) error {
	mo.store.wlock(ctx)
	defer mo.store.wunlock(ctx)
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	o.CreatedAt = mo.store.now()
	o.UpdatedAt = o.CreatedAt
	mo.store.ordersByID[o.ID] = copyOrder(*o)
	mo.store.orderIDs = append(mo.store.orderIDs, o.ID)
	return nil
}

func (mo *MemoryOrders) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	mo.store.rlock(ctx)
	defer mo.store.runlock(ctx)
	o, ok := mo.store.ordersByID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := copyOrder(o)
	return &cp, nil
}

func (mo *MemoryOrders) Update(ctx context.Context, o *domain.Order) error {
	mo.store.wlock(ctx)
	defer mo.store.wunlock(ctx)
	cur, ok := mo.store.ordersByID[o.ID]
	if !ok {
		return ErrNotFound
	}
	o.CreatedAt = cur.CreatedAt
	o.UpdatedAt = mo.store.now()
	mo.store.ordersByID[o.ID] = copyOrder(*o)
	return nil
}

func (mo *MemoryOrders) List(ctx context.Context, q OrderQuery) ([]domain.Order, int64, error) {
	mo.store.rlock(ctx)
	defer mo.store.runlock(ctx)
	out := make([]domain.Order, 0)
	for _, id := range mo.store.orderIDs {
		o := mo.store.ordersByID[id]
		if q.UserID != "" && o.UserID != q.UserID {
			continue
		}
		if q.Status != "" && o.Status != q.Status {
			continue
		}
		out = append(out, copyOrder(o))
	}
	sortOrders(out, q.Sort)
	return paginate(out, q.Page)
}

func sortOrders(list []domain.Order, s Sort) {
	if s.Field == "" {
		s = DefaultSort
	}
	less := func(a, b domain.Order) int {
		switch s.Field {
		case "totalAmount":
			return a.TotalAmount.Cmp(b.TotalAmount)
		case "status":
			return strings.Compare(string(a.Status), string(b.Status))
		case "updatedAt":
			return a.UpdatedAt.Compare(b.UpdatedAt)
		default:
			return a.CreatedAt.Compare(b.CreatedAt)
		}
	}
	sort.SliceStable(list, func(i, j int) bool {
		c := less(list[i], list[j])
		if s.Desc {
			return c > 0
		}
		return c < 0
	})
}

// UserRepository implementation
type MemoryUsers struct{ store *MemoryStore }

func NewMemoryUsers(store *MemoryStore) *MemoryUsers { return &MemoryUsers{store: store} }

func (mu *MemoryUsers) Create(ctx context.Context, u *domain.User) error {
	mu.store.wlock(ctx)
	defer mu.store.wunlock(ctx)
	u.Email = normalizeEmail(u.Email)
	for _, existing := range mu.store.usersByID {
		if existing.Email == u.Email {
			return ErrDuplicate
		}
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.CreatedAt = mu.store.now()
	u.UpdatedAt = u.CreatedAt
	mu.store.usersByID[u.ID] = *u
	return nil
}

func (mu *MemoryUsers) GetByID(ctx context.Context, id string) (*domain.User, error) {
	mu.store.rlock(ctx)
	defer mu.store.runlock(ctx)
	u, ok := mu.store.usersByID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (mu *MemoryUsers) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	mu.store.rlock(ctx)
	defer mu.store.runlock(ctx)
	email = normalizeEmail(email)
	for _, u := range mu.store.usersByID {
		if u.Email == email {
			cp := u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (mu *MemoryUsers) Update(ctx context.Context, u *domain.User) error {
	mu.store.wlock(ctx)
	defer mu.store.wunlock(ctx)
	cur, ok := mu.store.usersByID[u.ID]
	if !ok {
		return ErrNotFound
	}
	u.CreatedAt = cur.CreatedAt
	u.UpdatedAt = mu.store.now()
	mu.store.usersByID[u.ID] = *u
	return nil
}

// Tx manager using write lock to emulate transaction boundary
type MemoryTx struct{ store *MemoryStore }

func NewMemoryTx(store *MemoryStore) *MemoryTx { return &MemoryTx{store: store} }

// WithTransaction держит блокировку записи на время fn и откатывает изменения, если fn вернула ошибку
func (tx *MemoryTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if isTx(ctx) {
		return fn(ctx)
	}
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	snap := tx.store.snapshot()
	ctx = context.WithValue(ctx, txKey{}, true)
	if err := fn(ctx); err != nil {
		tx.store.restore(snap)
		return err
	}
	return nil
}

type memorySnapshot struct {
	products   map[string]domain.Product
	orders     map[string]domain.Order
	users      map[string]domain.User
	productIDs []string
	orderIDs   []string
}

// stored values are never mutated in place, so shallow map copies are enough
func (m *MemoryStore) snapshot() memorySnapshot {
	s := memorySnapshot{
		products:   make(map[string]domain.Product, len(m.productsByID)),
		orders:     make(map[string]domain.Order, len(m.ordersByID)),
		users:      make(map[string]domain.User, len(m.usersByID)),
		productIDs: append([]string(nil), m.productIDs...),
		orderIDs:   append([]string(nil), m.orderIDs...),
	}
	for k, v := range m.productsByID {
		s.products[k] = v
	}
	for k, v := range m.ordersByID {
		s.orders[k] = v
	}
	for k, v := range m.usersByID {
		s.users[k] = v
	}
	return s
}

func (m *MemoryStore) restore(s memorySnapshot) {
	m.productsByID = s.products
	m.ordersByID = s.orders
	m.usersByID = s.users
	m.productIDs = s.productIDs
	m.orderIDs = s.orderIDs
}
