package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/artpar/storefront/internal/core/pricing"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// =============================================================================
// Config Types
// =============================================================================

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	Pricing  PricingConfig  `mapstructure:"pricing"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Cart     CartConfig     `mapstructure:"cart"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Address returns the server address in host:port format.
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// PricingConfig holds the checkout pricing rules. Amounts are decimal
// strings so that no float ever touches money.
type PricingConfig struct {
	FreeShippingThreshold string `mapstructure:"free_shipping_threshold"`
	StandardCost          string `mapstructure:"standard_cost"`
	ExpressCost           string `mapstructure:"express_cost"`
	TaxMode               string `mapstructure:"tax_mode"`
	TaxRate               string `mapstructure:"tax_rate"`
	FlatTax               string `mapstructure:"flat_tax"`
	MinorUnits            int32  `mapstructure:"minor_units"`
}

// AuthConfig holds account and session configuration.
type AuthConfig struct {
	SessionTTL        time.Duration `mapstructure:"session_ttl"`
	BcryptCost        int           `mapstructure:"bcrypt_cost"`
	AllowSellerSignup bool          `mapstructure:"allow_seller_signup"`
	SecureCookies     bool          `mapstructure:"secure_cookies"`

	// BootstrapAdmin is the email of an existing account that is promoted
	// to admin at start-up. Empty disables promotion.
	BootstrapAdmin string `mapstructure:"bootstrap_admin"`
}

// CartConfig holds cart retention configuration.
type CartConfig struct {
	// TTL is how long an untouched cart is kept. Zero keeps carts forever.
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// CatalogConfig holds catalog seeding configuration.
type CatalogConfig struct {
	SeedFile string `mapstructure:"seed_file"`
}

// =============================================================================
// Config Loading
// =============================================================================

// LoadConfig loads configuration from file and environment.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("database.dsn", "./data/storefront.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("pricing.free_shipping_threshold", "200.00")
	v.SetDefault("pricing.standard_cost", "20.00")
	v.SetDefault("pricing.express_cost", "15.00")
	v.SetDefault("pricing.tax_mode", "rate")
	v.SetDefault("pricing.tax_rate", "0.10")
	v.SetDefault("pricing.flat_tax", "0")
	v.SetDefault("pricing.minor_units", 2)

	v.SetDefault("auth.session_ttl", "168h")
	v.SetDefault("auth.bcrypt_cost", 12)
	v.SetDefault("auth.allow_seller_signup", false)
	v.SetDefault("auth.secure_cookies", false)
	v.SetDefault("auth.bootstrap_admin", "")

	v.SetDefault("cart.ttl", "720h")
	v.SetDefault("cart.cleanup_interval", "10m")

	v.SetDefault("catalog.seed_file", "")

	// Load from file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigParseError); ok {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
			var pathErr *os.PathError
			if !errors.As(err, &pathErr) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			// File not found is OK, we'll use defaults
		}
	}

	// Enable environment variable overrides
	v.SetEnvPrefix("STOREFRONT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// =============================================================================
// Validation
// =============================================================================

// Validate checks the values the server cannot start without.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("database.dsn is required")
	}
	if c.Auth.SessionTTL <= 0 {
		return errors.New("auth.session_ttl must be positive")
	}
	if c.Cart.TTL < 0 {
		return errors.New("cart.ttl cannot be negative")
	}
	if _, err := c.Pricing.Build(); err != nil {
		return err
	}
	return nil
}

// Build converts the configured strings into a validated pricing.Config.
func (p PricingConfig) Build() (pricing.Config, error) {
	var cfg pricing.Config

	amounts := []struct {
		key string
		raw string
		dst *decimal.Decimal
	}{
		{"pricing.free_shipping_threshold", p.FreeShippingThreshold, &cfg.FreeShippingThreshold},
		{"pricing.standard_cost", p.StandardCost, &cfg.StandardCost},
		{"pricing.express_cost", p.ExpressCost, &cfg.ExpressCost},
		{"pricing.tax_rate", p.TaxRate, &cfg.TaxRate},
		{"pricing.flat_tax", p.FlatTax, &cfg.FlatTax},
	}

	for _, a := range amounts {
		raw := strings.TrimSpace(a.raw)
		if raw == "" {
			raw = "0"
		}
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return pricing.Config{}, fmt.Errorf("%w: %s: %q is not a decimal", pricing.ErrInvalidConfig, a.key, a.raw)
		}
		*a.dst = d
	}

	cfg.TaxMode = pricing.TaxMode(strings.ToLower(strings.TrimSpace(p.TaxMode)))
	cfg.MinorUnits = p.MinorUnits

	if err := cfg.Validate(); err != nil {
		return pricing.Config{}, err
	}
	return cfg, nil
}

// =============================================================================
// Logger Setup
// =============================================================================

// SetupLogger creates a logger with the configured level and format.
func SetupLogger(cfg *Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Log.Format) == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
