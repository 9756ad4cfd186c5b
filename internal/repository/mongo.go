package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"meatshop/internal/domain"
	"meatshop/internal/logger"
)

// MongoStore хранилище поверх MongoDB: коллекции products, orders, users
type MongoStore struct {
	client   *mongo.Client
	products *mongo.Collection
	orders   *mongo.Collection
	users    *mongo.Collection
	logger   *logger.Logger
}

func NewMongoStore(uri, dbName string, logger *logger.Logger) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(dbName)
	s := &MongoStore{
		client:   client,
		products: db.Collection("products"),
		orders:   db.Collection("orders"),
		users:    db.Collection("users"),
		logger:   logger,
	}

	if err := s.ensureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.products.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "category", Value: 1}, {Key: "isActive", Value: 1}}},
		{Keys: bson.D{{Key: "name", Value: "text"}, {Key: "description", Value: "text"}}},
		{Keys: bson.D{{Key: "price", Value: 1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
	})
	if err != nil {
		return err
	}
	_, err = s.orders.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
	})
	if err != nil {
		return err
	}
	_, err = s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) Products() *MongoProducts { return &MongoProducts{store: s} }
func (s *MongoStore) Orders() *MongoOrders     { return &MongoOrders{store: s} }
func (s *MongoStore) Users() *MongoUsers       { return &MongoUsers{store: s} }
func (s *MongoStore) Tx() *MongoTx             { return &MongoTx{client: s.client} }

var (
	_ ProductRepository = (*MongoProducts)(nil)
	_ OrderRepository   = (*MongoOrders)(nil)
	_ UserRepository    = (*MongoUsers)(nil)
	_ TxManager         = (*MongoTx)(nil)
)

func findOptions(sort Sort, page domain.Page) *options.FindOptions {
	if sort.Field == "" {
		sort = DefaultSort
	}
	dir := 1
	if sort.Desc {
		dir = -1
	}
	page = page.Normalize()
	return options.Find().
		SetSort(bson.D{{Key: sort.Field, Value: dir}, {Key: "_id", Value: dir}}).
		SetSkip(int64(page.Offset())).
		SetLimit(int64(page.Size))
}

// MongoProducts реализация ProductRepository
type MongoProducts struct{ store *MongoStore }

func (r *MongoProducts) Create(ctx context.Context, p *domain.Product) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.CreatedAt = time.Now().UTC()
	p.UpdatedAt = p.CreatedAt

	doc, err := toProductDocument(p)
	if err != nil {
		return err
	}
	if _, err := r.store.products.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to insert product: %w", err)
	}
	return nil
}

func (r *MongoProducts) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	var doc ProductDocument
	err := r.store.products.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find product: %w", err)
	}
	return toProductEntity(&doc), nil
}

func (r *MongoProducts) Update(ctx context.Context, p *domain.Product) error {
	p.UpdatedAt = time.Now().UTC()
	doc, err := toProductDocument(p)
	if err != nil {
		return err
	}
	result, err := r.store.products.UpdateOne(ctx, bson.M{"_id": p.ID}, bson.M{"$set": bson.M{
		"name":        doc.Name,
		"description": doc.Description,
		"price":       doc.Price,
		"category":    doc.Category,
		"unit":        doc.Unit,
		"stock":       doc.Stock,
		"isActive":    doc.IsActive,
		"tags":        doc.Tags,
		"updatedAt":   doc.UpdatedAt,
	}})
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoProducts) DecrementStock(ctx context.Context, id string, qty int64) error {
	result, err := r.store.products.UpdateOne(ctx,
		bson.M{"_id": id, "stock": bson.M{"$gte": qty}},
		bson.M{
			"$inc": bson.M{"stock": -qty},
			"$set": bson.M{"updatedAt": time.Now().UTC()},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to decrement stock: %w", err)
	}
	if result.MatchedCount > 0 {
		return nil
	}
	n, err := r.store.products.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to check product: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrInsufficientStock
}

func (r *MongoProducts) IncrementStock(ctx context.Context, id string, qty int64) error {
	result, err := r.store.products.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{
			"$inc": bson.M{"stock": qty},
			"$set": bson.M{"updatedAt": time.Now().UTC()},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to increment stock: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func productFilter(q ProductQuery) (bson.M, error) {
	filter := bson.M{}
	if q.ActiveOnly {
		filter["isActive"] = true
	}
	if q.Category != "" {
		filter["category"] = string(q.Category)
	}
	if q.Search != "" {
		filter["$text"] = bson.M{"$search": q.Search}
	}
	if q.MinPrice != nil || q.MaxPrice != nil {
		price := bson.M{}
		if q.MinPrice != nil {
			v, err := toDecimal128(*q.MinPrice)
			if err != nil {
				return nil, fmt.Errorf("minPrice: %w", err)
			}
			price["$gte"] = v
		}
		if q.MaxPrice != nil {
			v, err := toDecimal128(*q.MaxPrice)
			if err != nil {
				return nil, fmt.Errorf("maxPrice: %w", err)
			}
			price["$lte"] = v
		}
		filter["price"] = price
	}
	return filter, nil
}

func (r *MongoProducts) List(ctx context.Context, q ProductQuery) ([]domain.Product, int64, error) {
	filter, err := productFilter(q)
	if err != nil {
		return nil, 0, err
	}

	cursor, err := r.store.products.Find(ctx, filter, findOptions(q.Sort, q.Page))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}
	var docs []ProductDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("failed to decode products: %w", err)
	}

	total, err := r.store.products.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	out := make([]domain.Product, 0, len(docs))
	for i := range docs {
		out = append(out, *toProductEntity(&docs[i]))
	}
	return out, total, nil
}

// MongoOrders реализация OrderRepository
type MongoOrders struct{ store *MongoStore }

func (r *MongoOrders) Create(ctx context.Context, o *domain.Order) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	o.CreatedAt = time.Now().UTC()
	o.UpdatedAt = o.CreatedAt

	doc, err := toOrderDocument(o)
	if err != nil {
		return err
	}
	if _, err := r.store.orders.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

func (r *MongoOrders) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	var doc OrderDocument
	err := r.store.orders.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find order: %w", err)
	}
	return toOrderEntity(&doc), nil
}

func (r *MongoOrders) Update(ctx context.Context, o *domain.Order) error {
	o.UpdatedAt = time.Now().UTC()
	doc, err := toOrderDocument(o)
	if err != nil {
		return err
	}
	result, err := r.store.orders.ReplaceOne(ctx, bson.M{"_id": o.ID}, doc)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}

	if result.ModifiedCount == 0 {
		r.store.logger.Debug("order document unchanged", "order_id", o.ID)
	}
	return nil
}

func (r *MongoOrders) List(ctx context.Context, q OrderQuery) ([]domain.Order, int64, error) {
	filter := bson.M{}
	if q.UserID != "" {
		filter["user"] = q.UserID
	}
	if q.Status != "" {
		filter["status"] = string(q.Status)
	}

	cursor, err := r.store.orders.Find(ctx, filter, findOptions(q.Sort, q.Page))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	var docs []OrderDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("failed to decode orders: %w", err)
	}

	total, err := r.store.orders.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	out := make([]domain.Order, 0, len(docs))
	for i := range docs {
		out = append(out, *toOrderEntity(&docs[i]))
	}
	return out, total, nil
}

// MongoUsers реализация UserRepository
type MongoUsers struct{ store *MongoStore }

func (r *MongoUsers) Create(ctx context.Context, u *domain.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.Email = normalizeEmail(u.Email)
	u.CreatedAt = time.Now().UTC()
	u.UpdatedAt = u.CreatedAt

	if _, err := r.store.users.InsertOne(ctx, toUserDocument(u)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (r *MongoUsers) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	var doc UserDocument
	err := r.store.users.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return toUserEntity(&doc), nil
}

func (r *MongoUsers) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoUsers) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"email": normalizeEmail(email)})
}

func (r *MongoUsers) Update(ctx context.Context, u *domain.User) error {
	u.UpdatedAt = time.Now().UTC()
	result, err := r.store.users.UpdateOne(ctx, bson.M{"_id": u.ID}, bson.M{"$set": bson.M{
		"name":      u.Name,
		"phone":     u.Phone,
		"password":  u.PasswordHash,
		"role":      string(u.Role),
		"updatedAt": u.UpdatedAt,
	}})
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// MongoTx выполняет fn в multi-document транзакции (нужен replica set)
type MongoTx struct{ client *mongo.Client }

func (tx *MongoTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}
	sess, err := tx.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}
