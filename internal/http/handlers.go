package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"meatshop/internal/domain"
	"meatshop/internal/logger"
	"meatshop/internal/repository"
	"meatshop/internal/service"
)

type Options struct {
	Env       string
	ClientURL string
}

type Server struct {
	engine    *gin.Engine
	products  *service.ProductService
	orders    *service.OrderService
	auth      *service.AuthService
	logger    *logger.Logger
	env       string
	clientURL string
}

func NewServer(products *service.ProductService, orders *service.OrderService, auth *service.AuthService, logger *logger.Logger, opts Options) *Server {
	registerValidators()

	r := gin.New()
	s := &Server{
		engine:    r,
		products:  products,
		orders:    orders,
		auth:      auth,
		logger:    logger,
		env:       opts.Env,
		clientURL: opts.ClientURL,
	}
	if s.clientURL == "" {
		s.clientURL = "*"
	}
	r.Use(s.requestLogger(), gin.Recovery(), s.cors())
	s.registerRoutes()
	return s
}

func (s *Server) Engine() *gin.Engine { return s.engine }

func (s *Server) registerRoutes() {
	// Swagger UI
	s.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	s.engine.GET("/health", s.health)
	s.engine.NoRoute(func(c *gin.Context) {
		fail(c, http.StatusNotFound, "Route "+c.Request.URL.Path+" not found", nil)
	})

	api := s.engine.Group("/api")
	api.GET("", s.index)
	{
		auth := api.Group("/auth")
		auth.POST("/register", s.register)
		auth.POST("/login", s.login)
		auth.GET("/me", s.authenticate(), s.me)
		auth.PUT("/profile", s.authenticate(), s.updateProfile)

		products := api.Group("/products")
		products.GET("", s.listProducts)
		products.GET("/category/:category", s.listProductsByCategory)
		products.GET("/:id", s.getProduct)
		admin := products.Group("", s.authenticate(), s.requireCapability(service.CapManageCatalog))
		admin.POST("", s.createProduct)
		admin.PUT("/:id", s.updateProduct)
		admin.DELETE("/:id", s.deleteProduct)

		orders := api.Group("/orders", s.authenticate())
		orders.POST("", s.createOrder)
		orders.GET("/my-orders", s.listMyOrders)
		orders.GET("/:id", s.getOrder)
		orders.PUT("/:id/cancel", s.cancelOrder)
		orders.GET("", s.requireCapability(service.CapViewAllOrders), s.listOrders)
		orders.PUT("/:id/status", s.requireCapability(service.CapManageOrders), s.updateOrderStatus)
	}
}

// @Summary Health check
// @Tags system
// @Produce json
// @Success 200 {object} envelope
// @Router /health [get]
func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"message":     "Server is running",
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"environment": s.env,
	})
}

// @Summary API index
// @Tags system
// @Produce json
// @Success 200 {object} envelope
// @Router /api [get]
func (s *Server) index(c *gin.Context) {
	routes := s.engine.Routes()
	endpoints := make([]string, 0, len(routes))
	for _, r := range routes {
		endpoints = append(endpoints, r.Method+" "+r.Path)
	}
	respond(c, http.StatusOK, "Fresh Meat Shop API", gin.H{"version": "1.0.0", "endpoints": endpoints})
}

// Product handlers

// productView товар вместе с вычисляемыми полями и раскрытым автором
type productView struct {
	domain.Product
	CreatedBy      *domain.CreatorRef `json:"createdBy"`
	FormattedPrice string             `json:"formattedPrice"`
	StockStatus    string             `json:"stockStatus"`
}

func (s *Server) viewProducts(c *gin.Context, list ...domain.Product) []productView {
	creators := s.products.Creators(c, list...)
	out := make([]productView, 0, len(list))
	for _, p := range list {
		out = append(out, productView{
			Product:        p,
			CreatedBy:      creators[p.CreatedBy],
			FormattedPrice: p.FormattedPrice(),
			StockStatus:    p.StockStatus(),
		})
	}
	return out
}

func (s *Server) viewProduct(c *gin.Context, p domain.Product) productView {
	return s.viewProducts(c, p)[0]
}

type createProductReq struct {
	Name        string           `json:"name" binding:"required,min=2,max=100"`
	Description string           `json:"description" binding:"required,min=10,max=1000"`
	Price       *decimal.Decimal `json:"price" binding:"required"`
	Category    string           `json:"category" binding:"required,oneof=chicken mutton seafood eggs ready-to-cook"`
	Unit        string           `json:"unit" binding:"omitempty,oneof=kg piece set"`
	Stock       *int64           `json:"stock" binding:"required,min=0"`
	Tags        []string         `json:"tags"`
}

// @Summary Create product
// @Tags products
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param input body createProductReq true "Product"
// @Success 201 {object} envelope
// @Failure 400 {object} envelope
// @Failure 401 {object} envelope
// @Failure 403 {object} envelope
// @Router /api/products [post]
func (s *Server) createProduct(c *gin.Context) {
	var req createProductReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Validation failed", bindingErrors(err))
		return
	}
	actor, _ := actorFrom(c)
	p, err := s.products.Create(c, actor, service.ProductInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       *req.Price,
		Category:    domain.Category(req.Category),
		Unit:        domain.Unit(req.Unit),
		Stock:       *req.Stock,
		Tags:        req.Tags,
	})
	if err != nil {
		s.respondError(c, err, "Product not found")
		return
	}
	respond(c, http.StatusCreated, "Product created successfully", gin.H{"product": s.viewProduct(c, *p)})
}

// @Summary Get product by id
// @Tags products
// @Produce json
// @Param id path string true "Product ID"
// @Success 200 {object} envelope
// @Failure 404 {object} envelope
// @Router /api/products/{id} [get]
func (s *Server) getProduct(c *gin.Context) {
	p, err := s.products.GetByID(c, c.Param("id"))
	if err != nil {
		s.respondError(c, err, "Product not found")
		return
	}
	respond(c, http.StatusOK, "", gin.H{"product": s.viewProduct(c, *p)})
}

type updateProductReq struct {
	Name        *string          `json:"name" binding:"omitempty,min=2,max=100"`
	Description *string          `json:"description" binding:"omitempty,min=10,max=1000"`
	Price       *decimal.Decimal `json:"price"`
	Category    *string          `json:"category" binding:"omitempty,oneof=chicken mutton seafood eggs ready-to-cook"`
	Unit        *string          `json:"unit" binding:"omitempty,oneof=kg piece set"`
	Stock       *int64           `json:"stock" binding:"omitempty,min=0"`
	Tags        []string         `json:"tags"`
	IsActive    *bool            `json:"isActive"`
}

func (r updateProductReq) patch() service.ProductPatch {
	p := service.ProductPatch{
		Name:        r.Name,
		Description: r.Description,
		Price:       r.Price,
		Stock:       r.Stock,
		Tags:        r.Tags,
		IsActive:    r.IsActive,
	}
	if r.Category != nil {
		cat := domain.Category(*r.Category)
		p.Category = &cat
	}
	if r.Unit != nil {
		unit := domain.Unit(*r.Unit)
		p.Unit = &unit
	}
	return p
}

// @Summary Update product
// @Tags products
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Product ID"
// @Param input body updateProductReq true "Fields to change"
// @Success 200 {object} envelope
// @Failure 400 {object} envelope
// @Failure 404 {object} envelope
// @Router /api/products/{id} [put]
func (s *Server) updateProduct(c *gin.Context) {
	var req updateProductReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Validation failed", bindingErrors(err))
		return
	}
	actor, _ := actorFrom(c)
	p, err := s.products.Update(c, actor, c.Param("id"), req.patch())
	if err != nil {
		s.respondError(c, err, "Product not found")
		return
	}
	respond(c, http.StatusOK, "Product updated successfully", gin.H{"product": s.viewProduct(c, *p)})
}

// @Summary Delete product (soft)
// @Tags products
// @Security BearerAuth
// @Produce json
// @Param id path string true "Product ID"
// @Success 200 {object} envelope
// @Failure 404 {object} envelope
// @Router /api/products/{id} [delete]
func (s *Server) deleteProduct(c *gin.Context) {
	actor, _ := actorFrom(c)
	if err := s.products.Delete(c, actor, c.Param("id")); err != nil {
		s.respondError(c, err, "Product not found")
		return
	}
	respond(c, http.StatusOK, "Product deleted successfully", nil)
}

type pageQuery struct {
	Page      int    `form:"page" binding:"omitempty,min=1"`
	Limit     int    `form:"limit" binding:"omitempty,min=1"`
	SortBy    string `form:"sortBy"`
	SortOrder string `form:"sortOrder" binding:"omitempty,oneof=asc desc"`
}

func (q pageQuery) page() domain.Page {
	return domain.Page{Number: q.Page, Size: q.Limit}
}

func (q pageQuery) sort() repository.Sort {
	return repository.Sort{Field: q.SortBy, Desc: q.SortOrder != "asc"}
}

type productListQuery struct {
	pageQuery
	Category string `form:"category"`
	Search   string `form:"search"`
	MinPrice string `form:"minPrice"`
	MaxPrice string `form:"maxPrice"`
}

func parsePrice(field, v string) (*decimal.Decimal, []service.FieldError) {
	if v == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return nil, []service.FieldError{{Field: field, Message: field + " must be a number"}}
	}
	if !domain.ValidPrice(d) {
		return nil, []service.FieldError{{Field: field, Message: fmt.Sprintf(
			"%s must be a non-negative amount with at most %d decimal places and %d integer digits",
			field, domain.PriceScale, domain.PriceIntDigits)}}
	}
	return &d, nil
}

// @Summary List products
// @Tags products
// @Produce json
// @Param page query int false "Page (from 1)"
// @Param limit query int false "Page size"
// @Param category query string false "Category"
// @Param search query string false "Full-text search"
// @Param minPrice query number false "Min price"
// @Param maxPrice query number false "Max price"
// @Param sortBy query string false "createdAt|updatedAt|price|name|stock"
// @Param sortOrder query string false "asc|desc"
// @Success 200 {object} envelope
// @Failure 400 {object} envelope
// @Router /api/products [get]
func (s *Server) listProducts(c *gin.Context) {
	var q productListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		fail(c, http.StatusBadRequest, "Validation failed", queryErrors(err))
		return
	}
	minPrice, ferr := parsePrice("minPrice", q.MinPrice)
	if ferr != nil {
		fail(c, http.StatusBadRequest, "Validation failed", ferr)
		return
	}
	maxPrice, ferr := parsePrice("maxPrice", q.MaxPrice)
	if ferr != nil {
		fail(c, http.StatusBadRequest, "Validation failed", ferr)
		return
	}
	page, err := s.products.List(c, repository.ProductQuery{
		Category: domain.Category(q.Category),
		Search:   q.Search,
		MinPrice: minPrice,
		MaxPrice: maxPrice,
		Sort:     q.sort(),
		Page:     q.page(),
	})
	if err != nil {
		s.respondError(c, err, "Product not found")
		return
	}
	respond(c, http.StatusOK, "", gin.H{"products": s.viewProducts(c, page.Items...), "pagination": page.Pagination})
}

// @Summary List products by category
// @Tags products
// @Produce json
// @Param category path string true "Category"
// @Param page query int false "Page (from 1)"
// @Param limit query int false "Page size"
// @Success 200 {object} envelope
// @Failure 400 {object} envelope
// @Router /api/products/category/{category} [get]
func (s *Server) listProductsByCategory(c *gin.Context) {
	var q pageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		fail(c, http.StatusBadRequest, "Validation failed", queryErrors(err))
		return
	}
	page, err := s.products.ListByCategory(c, domain.Category(c.Param("category")), q.page())
	if err != nil {
		s.respondError(c, err, "Product not found")
		return
	}
	respond(c, http.StatusOK, "", gin.H{"products": s.viewProducts(c, page.Items...), "pagination": page.Pagination})
}

// Order handlers

type orderItemReq struct {
	Product  string `json:"product" binding:"required"`
	Quantity int64  `json:"quantity" binding:"required,min=1"`
}

type addressReq struct {
	Street  string `json:"street" binding:"required"`
	City    string `json:"city" binding:"required"`
	State   string `json:"state" binding:"required"`
	ZipCode string `json:"zipCode" binding:"required"`
	Phone   string `json:"phone" binding:"required,phone"`
}

type createOrderReq struct {
	Items           []orderItemReq `json:"items" binding:"required,min=1,dive"`
	DeliveryAddress addressReq     `json:"deliveryAddress"`
	OrderNotes      string         `json:"orderNotes" binding:"max=500"`
}

// @Summary Create order
// @Tags orders
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param input body createOrderReq true "Order"
// @Success 201 {object} envelope
// @Failure 400 {object} envelope
// @Failure 404 {object} envelope
// @Router /api/orders [post]
func (s *Server) createOrder(c *gin.Context) {
	var req createOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Validation failed", bindingErrors(err))
		return
	}
	items := make([]service.ItemInput, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, service.ItemInput{ProductID: it.Product, Quantity: it.Quantity})
	}
	actor, _ := actorFrom(c)
	o, err := s.orders.CreateOrder(c, actor, service.CreateOrderInput{
		Items: items,
		DeliveryAddress: domain.DeliveryAddress{
			Street:  req.DeliveryAddress.Street,
			City:    req.DeliveryAddress.City,
			State:   req.DeliveryAddress.State,
			ZipCode: req.DeliveryAddress.ZipCode,
			Phone:   req.DeliveryAddress.Phone,
		},
		Notes: req.OrderNotes,
	})
	if err != nil {
		s.respondError(c, err, "Product not found")
		return
	}
	respond(c, http.StatusCreated, "Order created successfully", gin.H{"order": o})
}

type orderListQuery struct {
	pageQuery
	Status string `form:"status"`
}

func (q orderListQuery) query() repository.OrderQuery {
	return repository.OrderQuery{
		Status: domain.OrderStatus(q.Status),
		Sort:   q.sort(),
		Page:   q.page(),
	}
}

// @Summary List my orders
// @Tags orders
// @Security BearerAuth
// @Produce json
// @Param page query int false "Page (from 1)"
// @Param limit query int false "Page size"
// @Param status query string false "Status"
// @Success 200 {object} envelope
// @Router /api/orders/my-orders [get]
func (s *Server) listMyOrders(c *gin.Context) {
	var q orderListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		fail(c, http.StatusBadRequest, "Validation failed", queryErrors(err))
		return
	}
	actor, _ := actorFrom(c)
	page, err := s.orders.ListMyOrders(c, actor, q.query())
	if err != nil {
		s.respondError(c, err, "Order not found")
		return
	}
	respond(c, http.StatusOK, "", gin.H{"orders": page.Items, "pagination": page.Pagination})
}

// @Summary List all orders
// @Tags orders
// @Security BearerAuth
// @Produce json
// @Param page query int false "Page (from 1)"
// @Param limit query int false "Page size"
// @Param status query string false "Status"
// @Param sortBy query string false "createdAt|updatedAt|totalAmount|status"
// @Param sortOrder query string false "asc|desc"
// @Success 200 {object} envelope
// @Failure 403 {object} envelope
// @Router /api/orders [get]
func (s *Server) listOrders(c *gin.Context) {
	var q orderListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		fail(c, http.StatusBadRequest, "Validation failed", queryErrors(err))
		return
	}
	actor, _ := actorFrom(c)
	page, err := s.orders.ListOrders(c, actor, q.query())
	if err != nil {
		s.respondError(c, err, "Order not found")
		return
	}
	respond(c, http.StatusOK, "", gin.H{"orders": page.Items, "pagination": page.Pagination})
}

// @Summary Get order by id
// @Tags orders
// @Security BearerAuth
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} envelope
// @Failure 403 {object} envelope
// @Failure 404 {object} envelope
// @Router /api/orders/{id} [get]
func (s *Server) getOrder(c *gin.Context) {
	actor, _ := actorFrom(c)
	o, err := s.orders.GetOrder(c, actor, c.Param("id"))
	if err != nil {
		s.respondError(c, err, "Order not found")
		return
	}
	respond(c, http.StatusOK, "", gin.H{"order": o})
}

// @Summary Cancel order
// @Tags orders
// @Security BearerAuth
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} envelope
// @Failure 400 {object} envelope
// @Failure 403 {object} envelope
// @Failure 404 {object} envelope
// @Router /api/orders/{id}/cancel [put]
func (s *Server) cancelOrder(c *gin.Context) {
	actor, _ := actorFrom(c)
	o, err := s.orders.CancelOrder(c, actor, c.Param("id"))
	if err != nil {
		s.respondError(c, err, "Order not found")
		return
	}
	respond(c, http.StatusOK, "Order cancelled successfully", gin.H{"order": o})
}

type updateStatusReq struct {
	Status string `json:"status" binding:"required,oneof=pending confirmed processing shipped delivered cancelled"`
}

// @Summary Update order status
// @Tags orders
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Order ID"
// @Param input body updateStatusReq true "New status"
// @Success 200 {object} envelope
// @Failure 400 {object} envelope
// @Failure 404 {object} envelope
// @Router /api/orders/{id}/status [put]
func (s *Server) updateOrderStatus(c *gin.Context) {
	var req updateStatusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Validation failed", bindingErrors(err))
		return
	}
	actor, _ := actorFrom(c)
	o, err := s.orders.UpdateOrderStatus(c, actor, c.Param("id"), domain.OrderStatus(req.Status))
	if err != nil {
		s.respondError(c, err, "Order not found")
		return
	}
	respond(c, http.StatusOK, "Order status updated successfully", gin.H{"order": o})
}
