package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "POS"

type Config struct {
	App      AppConfig
	HTTP     HTTPConfig
	GRPC     GRPCConfig
	Store    StoreConfig
	Redis    RedisConfig
	Checkout CheckoutConfig
	Log      LogConfig
	Report   ReportConfig
}

type AppConfig struct {
	Name string
	Env  string
}

type HTTPConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type GRPCConfig struct {
	Addr string
}

// StoreConfig selects the catalog and ledger backend.
type StoreConfig struct {
	Driver          string // memory, mysql, postgres
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	SeedSampleData  bool
}

// RedisConfig is optional; an empty Addr keeps carts and idempotency keys in
// process memory.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
	CartTTL  time.Duration
}

type CheckoutConfig struct {
	RateLimit      float64 // checkouts per second across all terminals
	RateBurst      int
	IdempotencyTTL time.Duration
}

type LogConfig struct {
	Level  string
	Format string
	Output string
}

type ReportConfig struct {
	LowStockThreshold int
}

// Load reads config.toml from the working directory or /etc/pos, then
// applies POS_ environment overrides (POS_STORE_DRIVER, POS_REDIS_ADDR, ...).
func Load() (*Config, error) {
	return load(".", "/etc/pos")
}

func load(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
		},
		HTTP: HTTPConfig{
			Addr:            v.GetString("http.addr"),
			ReadTimeout:     v.GetDuration("http.read_timeout"),
			WriteTimeout:    v.GetDuration("http.write_timeout"),
			ShutdownTimeout: v.GetDuration("http.shutdown_timeout"),
		},
		GRPC: GRPCConfig{
			Addr: v.GetString("grpc.addr"),
		},
		Store: StoreConfig{
			Driver:          strings.ToLower(v.GetString("store.driver")),
			DSN:             v.GetString("store.dsn"),
			MaxOpenConns:    v.GetInt("store.max_open_conns"),
			MaxIdleConns:    v.GetInt("store.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("store.conn_max_lifetime"),
			SeedSampleData:  !v.IsSet("store.seed_sample_data") || v.GetBool("store.seed_sample_data"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			PoolSize: v.GetInt("redis.pool_size"),
			CartTTL:  v.GetDuration("redis.cart_ttl"),
		},
		Checkout: CheckoutConfig{
			RateLimit:      v.GetFloat64("checkout.rate_limit"),
			RateBurst:      v.GetInt("checkout.rate_burst"),
			IdempotencyTTL: v.GetDuration("checkout.idempotency_ttl"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Report: ReportConfig{
			LowStockThreshold: v.GetInt("report.low_stock_threshold"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "retail-pos"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 10 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 10 * time.Second
	}
	if cfg.HTTP.ShutdownTimeout == 0 {
		cfg.HTTP.ShutdownTimeout = 5 * time.Second
	}
	if cfg.GRPC.Addr == "" {
		cfg.GRPC.Addr = ":50051"
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = "memory"
	}
	if cfg.Store.MaxOpenConns == 0 {
		cfg.Store.MaxOpenConns = 50
	}
	if cfg.Store.MaxIdleConns == 0 {
		cfg.Store.MaxIdleConns = 25
	}
	if cfg.Store.ConnMaxLifetime == 0 {
		cfg.Store.ConnMaxLifetime = 5 * time.Minute
	}
	if cfg.Redis.PoolSize == 0 {
		cfg.Redis.PoolSize = 100
	}
	if cfg.Redis.CartTTL == 0 {
		cfg.Redis.CartTTL = 12 * time.Hour
	}
	if cfg.Checkout.RateLimit == 0 {
		cfg.Checkout.RateLimit = 200
	}
	if cfg.Checkout.RateBurst == 0 {
		cfg.Checkout.RateBurst = 50
	}
	if cfg.Checkout.IdempotencyTTL == 0 {
		cfg.Checkout.IdempotencyTTL = 24 * time.Hour
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		if cfg.App.Env == "production" {
			cfg.Log.Format = "json"
		} else {
			cfg.Log.Format = "console"
		}
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.Report.LowStockThreshold == 0 {
		cfg.Report.LowStockThreshold = 10
	}
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case "memory":
	case "mysql", "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for driver %s", c.Store.Driver)
		}
	default:
		return fmt.Errorf("store.driver must be memory, mysql or postgres, got %q", c.Store.Driver)
	}

	if c.Store.MaxOpenConns <= 0 {
		return fmt.Errorf("store.max_open_conns must be positive")
	}
	if c.Store.MaxIdleConns < 0 {
		return fmt.Errorf("store.max_idle_conns cannot be negative")
	}
	if c.Store.MaxIdleConns > c.Store.MaxOpenConns {
		return fmt.Errorf("store.max_idle_conns (%d) cannot exceed store.max_open_conns (%d)",
			c.Store.MaxIdleConns, c.Store.MaxOpenConns)
	}
	if c.Redis.PoolSize <= 0 {
		return fmt.Errorf("redis.pool_size must be positive")
	}
	if c.Checkout.RateLimit <= 0 {
		return fmt.Errorf("checkout.rate_limit must be positive")
	}
	if c.Checkout.RateBurst <= 0 {
		return fmt.Errorf("checkout.rate_burst must be positive")
	}
	if c.Report.LowStockThreshold < 0 {
		return fmt.Errorf("report.low_stock_threshold cannot be negative")
	}
	return nil
}

// UsesSQL reports whether the catalog and ledger live in a relational store.
func (c StoreConfig) UsesSQL() bool {
	return c.Driver == "mysql" || c.Driver == "postgres"
}
