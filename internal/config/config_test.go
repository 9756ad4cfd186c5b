package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("JWT_SECRET", "")

	// empty STORE_DRIVER is an explicit value, not a default
	_, err := Load()
	require.Error(t, err)

	t.Setenv("STORE_DRIVER", "memory")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, cfg.Store.Driver)
	assert.Equal(t, devJWTSecret, cfg.Auth.JWTSecret)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.TokenTTL)
}

func TestLoad_ProductionRequiresSecret(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.ErrorContains(t, err, "JWT_SECRET")

	t.Setenv("JWT_SECRET", "s3cr3t")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t", cfg.Auth.JWTSecret)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			HTTP:  HTTPConfig{Port: "3000"},
			Store: StoreConfig{Driver: DriverMongo},
			Mongo: MongoConfig{URI: "mongodb://localhost:27017", DB: "meatshop"},
			Auth:  AuthConfig{JWTSecret: "x", TokenTTL: time.Hour},
		}
	}

	tests := []struct {
		name    string
		mut     func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"no port", func(c *Config) { c.HTTP.Port = "" }, "PORT"},
		{"mongo without uri", func(c *Config) { c.Mongo.URI = "" }, "MONGO_URI"},
		{"mongo without db", func(c *Config) { c.Mongo.DB = "" }, "MONGO_DB"},
		{"memory ignores mongo", func(c *Config) { c.Store.Driver = DriverMemory; c.Mongo = MongoConfig{} }, ""},
		{"unknown driver", func(c *Config) { c.Store.Driver = "postgres" }, "STORE_DRIVER"},
		{"zero ttl", func(c *Config) { c.Auth.TokenTTL = 0 }, "JWT_EXPIRE"},
		{"weak admin password", func(c *Config) { c.Admin = AdminConfig{Email: "a@b.c", Password: "123"} }, "ADMIN_PASSWORD"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mut(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestGetDuration(t *testing.T) {
	def := time.Minute
	cases := map[string]time.Duration{
		"":      def,
		"90s":   90 * time.Second,
		"3600":  time.Hour,
		"7d":    7 * 24 * time.Hour,
		"weird": def,
	}
	for in, want := range cases {
		t.Setenv("TEST_DURATION", in)
		assert.Equal(t, want, getDuration("TEST_DURATION", def), in)
	}
}
