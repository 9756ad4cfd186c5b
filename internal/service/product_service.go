package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"meatshop/internal/domain"
	"meatshop/internal/repository"
)

// ProductService инкапсулирует бизнес-логику вокруг товаров
type ProductService struct {
	repo  repository.ProductRepository
	users repository.UserRepository
	tx    repository.TxManager
}

func NewProductService(repo repository.ProductRepository, users repository.UserRepository, tx repository.TxManager) *ProductService {
	return &ProductService{repo: repo, users: users, tx: tx}
}

// ProductInput данные нового товара
type ProductInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Category    domain.Category
	Unit        domain.Unit
	Stock       int64
	Tags        []string
}

// ProductPatch частичное обновление: nil означает "не менять"
type ProductPatch struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Category    *domain.Category
	Unit        *domain.Unit
	Stock       *int64
	Tags        []string
	IsActive    *bool
}

func validateProduct(p domain.Product) error {
	verr := &ValidationError{}
	if n := utf8.RuneCountInString(p.Name); n < 2 || n > 100 {
		verr.add("name", "Product name must be between 2 and 100 characters")
	}
	if n := utf8.RuneCountInString(p.Description); n < 10 || n > 1000 {
		verr.add("description", "Description must be between 10 and 1000 characters")
	}
	switch {
	case p.Price.IsNegative():
		verr.add("price", "Price cannot be negative")
	case !domain.ValidPrice(p.Price):
		verr.add("price", fmt.Sprintf("Price must have at most %d decimal places and %d integer digits", domain.PriceScale, domain.PriceIntDigits))
	}
	if !p.Category.Valid() {
		verr.add("category", "Invalid category")
	}
	if !p.Unit.Valid() {
		verr.add("unit", "Invalid unit")
	}
	if p.Stock < 0 {
		verr.add("stock", "Stock cannot be negative")
	}
	return verr.orNil()
}

func (s *ProductService) Create(ctx context.Context, actor domain.Actor, in ProductInput) (*domain.Product, error) {
	if err := Authorize(actor, CapManageCatalog); err != nil {
		return nil, err
	}
	p := domain.Product{
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Price:       in.Price,
		Category:    domain.Category(strings.ToLower(string(in.Category))),
		Unit:        in.Unit,
		Stock:       in.Stock,
		Tags:        in.Tags,
		IsActive:    true,
		CreatedBy:   actor.UserID,
	}
	if p.Unit == "" {
		p.Unit = domain.UnitKg
	}
	if err := validateProduct(p); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByID возвращает активный товар; снятый с продажи считается отсутствующим
func (s *ProductService) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	if id == "" {
		return nil, ErrInvalidInput
	}
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, ErrNotFound
	}
	return p, nil
}

func (s *ProductService) Update(ctx context.Context, actor domain.Actor, id string, patch ProductPatch) (*domain.Product, error) {
	if err := Authorize(actor, CapManageCatalog); err != nil {
		return nil, err
	}
	var updated *domain.Product
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		p, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		applyPatch(p, patch)
		if err := validateProduct(*p); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, p); err != nil {
			return err
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func applyPatch(p *domain.Product, patch ProductPatch) {
	if patch.Name != nil {
		p.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		p.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Price != nil {
		p.Price = *patch.Price
	}
	if patch.Category != nil {
		p.Category = domain.Category(strings.ToLower(string(*patch.Category)))
	}
	if patch.Unit != nil {
		p.Unit = *patch.Unit
	}
	if patch.Stock != nil {
		p.Stock = *patch.Stock
	}
	if patch.Tags != nil {
		p.Tags = patch.Tags
	}
	if patch.IsActive != nil {
		p.IsActive = *patch.IsActive
	}
}

// Delete мягкое удаление: товар скрывается из каталога, остаток и заказы не трогаются
func (s *ProductService) Delete(ctx context.Context, actor domain.Actor, id string) error {
	if err := Authorize(actor, CapManageCatalog); err != nil {
		return err
	}
	return s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		p, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		p.IsActive = false
		return s.repo.Update(ctx, p)
	})
}

// List каталог: только активные товары
func (s *ProductService) List(ctx context.Context, q repository.ProductQuery) (domain.Paged[domain.Product], error) {
	if q.Sort.Field != "" && !repository.ValidProductSort(q.Sort.Field) {
		return domain.Paged[domain.Product]{}, invalid("sortBy", fmt.Sprintf("cannot sort by %q", q.Sort.Field))
	}
	if q.Category != "" && !q.Category.Valid() {
		return domain.Paged[domain.Product]{}, invalid("category", "Invalid category")
	}
	if q.MinPrice != nil && q.MaxPrice != nil && q.MinPrice.GreaterThan(*q.MaxPrice) {
		return domain.Paged[domain.Product]{}, invalid("minPrice", "minPrice cannot exceed maxPrice")
	}
	q.ActiveOnly = true
	q.Page = q.Page.Normalize()
	items, total, err := s.repo.List(ctx, q)
	if err != nil {
		return domain.Paged[domain.Product]{}, err
	}
	return domain.Paged[domain.Product]{Items: items, Pagination: domain.NewPagination(q.Page, total)}, nil
}

// Creators раскрывает createdBy товаров: id автора -> имя. Удалённые авторы дают nil.
func (s *ProductService) Creators(ctx context.Context, products ...domain.Product) map[string]*domain.CreatorRef {
	refs := make(map[string]*domain.CreatorRef, len(products))
	for _, p := range products {
		if p.CreatedBy == "" {
			continue
		}
		if _, seen := refs[p.CreatedBy]; seen {
			continue
		}
		var ref *domain.CreatorRef
		if u, err := s.users.GetByID(ctx, p.CreatedBy); err == nil {
			ref = &domain.CreatorRef{ID: u.ID, Name: u.Name}
		}
		refs[p.CreatedBy] = ref
	}
	return refs
}

func (s *ProductService) ListByCategory(ctx context.Context, category domain.Category, page domain.Page) (domain.Paged[domain.Product], error) {
	if !category.Valid() {
		return domain.Paged[domain.Product]{}, invalid("category", "Invalid category")
	}
	return s.List(ctx, repository.ProductQuery{Category: category, Page: page})
}
