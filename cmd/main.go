package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"meatshop/internal/config"
	"meatshop/internal/events"
	httpapi "meatshop/internal/http"
	"meatshop/internal/logger"
	"meatshop/internal/repository"
	"meatshop/internal/service"

	_ "meatshop/docs"
)

// @title Fresh Meat Shop API
// @version 1.0.0
// @description Catalog, ordering and stock reservation for a fresh meat shop.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.NewLogger(false, "info").Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg.Log.JSON, cfg.Log.Level)
	if !cfg.IsDev() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg, log); err != nil {
		log.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
}

type stores struct {
	products repository.ProductRepository
	orders   repository.OrderRepository
	users    repository.UserRepository
	tx       repository.TxManager
	close    func() error
}

func openStores(cfg *config.Config, log *logger.Logger) (*stores, error) {
	if cfg.Store.Driver == config.DriverMongo {
		log.Info("Connecting to MongoDB", "uri", cfg.Mongo.URI, "db", cfg.Mongo.DB)
		m, err := repository.NewMongoStore(cfg.Mongo.URI, cfg.Mongo.DB, log)
		if err != nil {
			return nil, err
		}
		log.Info("Connected to MongoDB successfully")
		return &stores{products: m.Products(), orders: m.Orders(), users: m.Users(), tx: m.Tx(), close: m.Close}, nil
	}

	log.Info("Using in-memory store")
	store := repository.NewMemoryStore()
	return &stores{
		products: store,
		orders:   repository.NewMemoryOrders(store),
		users:    repository.NewMemoryUsers(store),
		tx:       repository.NewMemoryTx(store),
		close:    func() error { return nil },
	}, nil
}

type eventPublisher interface {
	service.OrderEventPublisher
	Close()
}

func initNATS(cfg *config.Config, log *logger.Logger) eventPublisher {
	if cfg.NATS.URL == "" {
		log.Info("NATS URL not set, event publishing disabled")
		return events.NoopPublisher{}
	}
	publisher, err := events.NewNatsPublisher(cfg.NATS.URL, log)
	if err != nil {
		log.Warn("Failed to connect to NATS, continuing without event publishing", "error", err, "url", cfg.NATS.URL)
		return events.NoopPublisher{}
	}
	return publisher
}

func run(cfg *config.Config, log *logger.Logger) error {
	st, err := openStores(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.close(); err != nil {
			log.Warn("Failed to close store", "error", err)
		}
	}()

	publisher := initNATS(cfg, log)
	defer publisher.Close()

	productsSvc := service.NewProductService(st.products, st.users, st.tx)
	ordersSvc := service.NewOrderService(st.products, st.orders, st.users, st.tx, publisher, log)
	authSvc := service.NewAuthService(st.users, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	if cfg.Admin.Email != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		admin, err := authSvc.EnsureAdmin(ctx, cfg.Admin.Name, cfg.Admin.Email, cfg.Admin.Password)
		cancel()
		if err != nil {
			return err
		}
		log.Info("Admin account ready", "email", admin.Email)
	}

	srv := httpapi.NewServer(productsSvc, ordersSvc, authSvc, log, httpapi.Options{
		Env:       cfg.Env,
		ClientURL: cfg.HTTP.ClientURL,
	})

	httpServer := &http.Server{
		Addr:              ":" + cfg.HTTP.Port,
		Handler:           srv.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", "addr", httpServer.Addr, "env", cfg.Env)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return err
	case sig := <-quit:
		log.Info("Received shutdown signal", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Warn("Graceful shutdown failed", "error", err)
	}
	return nil
}
