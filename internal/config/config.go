package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env   string
	HTTP  HTTPConfig
	Store StoreConfig
	Mongo MongoConfig
	NATS  NATSConfig
	Auth  AuthConfig
	Admin AdminConfig
	Log   LogConfig
}

type HTTPConfig struct {
	Port            string
	ClientURL       string
	ShutdownTimeout time.Duration
}

type StoreConfig struct {
	Driver string
}

type MongoConfig struct {
	URI string
	DB  string
}

type NATSConfig struct {
	URL string
}

type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// AdminConfig учётная запись администратора, создаваемая при старте; пустой email отключает
type AdminConfig struct {
	Name     string
	Email    string
	Password string
}

type LogConfig struct {
	JSON  bool
	Level string
}

const (
	DriverMemory = "memory"
	DriverMongo  = "mongo"
)

const devJWTSecret = "dev-secret-change-me"

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env: getEnv("APP_ENV", "development"),
		HTTP: HTTPConfig{
			Port:            getEnv("PORT", "3000"),
			ClientURL:       getEnv("CLIENT_URL", "http://localhost:3000"),
			ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 5*time.Second),
		},
		Store: StoreConfig{
			Driver: strings.ToLower(getEnv("STORE_DRIVER", DriverMemory)),
		},
		Mongo: MongoConfig{
			URI: getEnv("MONGO_URI", "mongodb://localhost:27017"),
			DB:  getEnv("MONGO_DB", "meatshop"),
		},
		NATS: NATSConfig{
			URL: getEnv("NATS_URL", ""),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			TokenTTL:  getDuration("JWT_EXPIRE", 7*24*time.Hour),
		},
		Admin: AdminConfig{
			Name:     getEnv("ADMIN_NAME", "Admin"),
			Email:    getEnv("ADMIN_EMAIL", ""),
			Password: getEnv("ADMIN_PASSWORD", ""),
		},
		Log: LogConfig{
			JSON:  getBool("LOG_JSON", false),
			Level: strings.ToLower(getEnv("LOG_LEVEL", "info")),
		},
	}

	if cfg.Auth.JWTSecret == "" && cfg.IsDev() {
		cfg.Auth.JWTSecret = devJWTSecret
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development" || c.Env == "dev" || c.Env == "test"
}

func (c *Config) Validate() error {
	if c.HTTP.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	switch c.Store.Driver {
	case DriverMemory:
	case DriverMongo:
		if c.Mongo.URI == "" {
			return fmt.Errorf("MONGO_URI is required")
		}
		if c.Mongo.DB == "" {
			return fmt.Errorf("MONGO_DB is required")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("JWT_EXPIRE must be positive")
	}
	if c.Admin.Email != "" && len(c.Admin.Password) < 6 {
		return fmt.Errorf("ADMIN_PASSWORD must be at least 6 characters")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	switch getEnv(key, "") {
	case "1", "true", "TRUE":
		return true
	case "0", "false", "FALSE":
		return false
	}
	return defaultValue
}

// getDuration принимает "30s", "168h" или число секунд
func getDuration(key string, defaultValue time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	// day suffix, e.g. "7d"
	if strings.HasSuffix(v, "d") {
		if n, err := strconv.Atoi(strings.TrimSuffix(v, "d")); err == nil {
			return time.Duration(n) * 24 * time.Hour
		}
	}
	return defaultValue
}
