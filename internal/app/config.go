package app

import (
	"os"
	"slices"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (STOREFRONT_ prefix), flags, a .env file or YAML
// config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (STOREFRONT_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Catalog     CatalogConfig
	Promotions  PromotionsConfig
	Storage     StorageConfig
	Orders      OrdersConfig
	Cart        CartConfig
	Session     SessionConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// CatalogConfig selects the catalog provider.
type CatalogConfig struct {
	Source string `default:"file" usage:"Catalog source: file or postgres"`
	File   string `default:"db/seed/catalog.json" usage:"Catalog JSON file, optionally gzipped"`
}

// PromotionsConfig selects where promotion codes come from.
type PromotionsConfig struct {
	Source string `default:"builtin" usage:"Promotion source: builtin, file or postgres"`
	File   string `default:"db/seed/promotions.csv" usage:"Promotion CSV file, optionally gzipped"`
}

// StorageConfig selects the snapshot backend for carts and wishlists.
type StorageConfig struct {
	Driver      string        `default:"memory" usage:"Snapshot storage: memory, postgres, redis or sqlite"`
	SQLitePath  string        `default:"storefront.db" env:"SQLITE_PATH" usage:"SQLite database path"`
	RedisURL    string        `env:"REDIS_URL" usage:"Redis URL (STOREFRONT_STORAGE_REDIS_URL or REDIS_URL)"`
	RedisPrefix string        `default:"storefront:" env:"REDIS_PREFIX" usage:"Redis key prefix"`
	RedisTTL    time.Duration `default:"720h" env:"REDIS_TTL" usage:"Redis snapshot TTL; 0 keeps snapshots forever"`
}

// OrdersConfig selects the order sink.
type OrdersConfig struct {
	Sink          string        `default:"log" usage:"Order sink: log or postgres"`
	SubmitTimeout time.Duration `default:"30s" usage:"Timeout of one background order submission"`
}

// CartConfig holds the cart defaults.
type CartConfig struct {
	TaxRate    string `default:"0.07" env:"TAX_RATE" usage:"Tax rate of new carts"`
	MaxPerLine int    `default:"10" env:"MAX_PER_LINE" usage:"Quantity cap of one cart line"`
	Inventory  string `default:"fixed" usage:"Inventory cap policy: fixed or counted"`
}

// SessionConfig controls the session registry.
type SessionConfig struct {
	IdleTTL         time.Duration `default:"30m" env:"IDLE_TTL" usage:"Evict session stores idle for this long"`
	CleanupInterval time.Duration `default:"5m" env:"CLEANUP_INTERVAL" usage:"Idle session sweep interval"`
	SecureCookie    bool          `default:"false" env:"SECURE_COOKIE" usage:"Mark the session cookie Secure" flag:"secure-cookie"`
}

// RateLimitConfig bounds promotion code attempts per session.
type RateLimitConfig struct {
	Max    int           `default:"10" usage:"Promotion attempts per window"`
	Window time.Duration `default:"1m" usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"true" env:"ALLOW_CREDENTIALS" usage:"Allow credentials (session cookie)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s" env:"READINESS_DELAY" usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" env:"SHUTDOWN_TIMEOUT" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig reads .env when present, then environment variables, flags and
// YAML files, applies platform defaults and validates the result.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrap(err, "load .env")
	}
	return loadConfig(aconfig.Config{
		EnvPrefix: "STOREFRONT",
		Files:     []string{"config.yaml", "/etc/storefront/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
}

func loadConfig(ac aconfig.Config) (*Config, error) {
	var cfg Config
	if err := aconfig.LoaderFor(&cfg, ac).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps the unprefixed variables hosting platforms
// provide (PORT, DATABASE_URL, REDIS_URL) onto the configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.Storage.RedisURL == "" {
		c.Storage.RedisURL = os.Getenv("REDIS_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}

func oneOf(field, value string, allowed ...string) error {
	if !slices.Contains(allowed, value) {
		return errors.Errorf("%s: %q is not one of %v", field, value, allowed)
	}
	return nil
}

// Validate checks enumerations and the settings each choice requires.
func (c *Config) Validate() error {
	for _, err := range []error{
		oneOf("catalog.source", c.Catalog.Source, "file", "postgres"),
		oneOf("promotions.source", c.Promotions.Source, "builtin", "file", "postgres"),
		oneOf("storage.driver", c.Storage.Driver, "memory", "postgres", "redis", "sqlite"),
		oneOf("orders.sink", c.Orders.Sink, "log", "postgres"),
		oneOf("cart.inventory", c.Cart.Inventory, "fixed", "counted"),
	} {
		if err != nil {
			return err
		}
	}
	if _, err := c.TaxRate(); err != nil {
		return err
	}
	if c.Cart.MaxPerLine < 1 {
		return errors.New("cart.maxPerLine must be at least 1")
	}
	if c.UsesPostgres() && c.DatabaseURL == "" {
		return errors.New("database URL is required: set STOREFRONT_DATABASE_URL or DATABASE_URL")
	}
	if c.Storage.Driver == "redis" && c.Storage.RedisURL == "" {
		return errors.New("redis URL is required: set STOREFRONT_STORAGE_REDIS_URL or REDIS_URL")
	}
	return nil
}

// TaxRate parses Cart.TaxRate.
func (c *Config) TaxRate() (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(c.Cart.TaxRate)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "cart.taxRate")
	}
	if rate.IsNegative() {
		return decimal.Zero, errors.New("cart.taxRate must not be negative")
	}
	return rate, nil
}

// UsesPostgres reports whether any component is backed by PostgreSQL.
func (c *Config) UsesPostgres() bool {
	return c.Catalog.Source == "postgres" ||
		c.Promotions.Source == "postgres" ||
		c.Storage.Driver == "postgres" ||
		c.Orders.Sink == "postgres"
}
