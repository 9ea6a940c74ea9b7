package config

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const defaultConfigPath = "./config/local.yaml"

type HTTPServer struct {
	Addr         string        `yaml:"address" env:"HTTP_ADDRESS" env-default:":8080"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT" env-default:"10s"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"15s"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
}

type Database struct {
	Host            string        `yaml:"PG_HOST" env:"PG_HOST" env-default:"localhost"`
	Port            string        `yaml:"PG_PORT" env:"PG_PORT" env-default:"5432"`
	User            string        `yaml:"PG_USER" env:"PG_USER" env-required:"true"`
	Password        string        `yaml:"PG_PASSWORD" env:"PG_PASSWORD" env-required:"true"`
	Name            string        `yaml:"PG_DBNAME" env:"PG_DBNAME" env-required:"true"`
	SSLMode         string        `yaml:"PG_SSLMODE" env:"PG_SSLMODE" env-default:"require"`
	MaxOpenConns    int           `yaml:"MAX_OPEN_CONNS" env:"PG_MAX_OPEN_CONNS" env-default:"25"`
	MaxIdleConns    int           `yaml:"MAX_IDLE_CONNS" env:"PG_MAX_IDLE_CONNS" env-default:"10"`
	ConnMaxLifetime time.Duration `yaml:"CONN_MAX_LIFETIME" env:"PG_CONN_MAX_LIFETIME" env-default:"30m"`
	ConnMaxIdleTime time.Duration `yaml:"CONN_MAX_IDLE_TIME" env:"PG_CONN_MAX_IDLE_TIME" env-default:"5m"`
	AutoMigrate     bool          `yaml:"AUTO_MIGRATE" env:"PG_AUTO_MIGRATE" env-default:"true"`
}

type RedisConnect struct {
	Host     string `yaml:"REDIS_HOST" env:"REDIS_HOST" env-default:"localhost"`
	Port     string `yaml:"REDIS_PORT" env:"REDIS_PORT" env-default:"6379"`
	Username string `yaml:"REDIS_USER" env:"REDIS_USER" env-required:"true"`
	Password string `yaml:"REDIS_PASSWORD" env:"REDIS_PASSWORD" env-required:"true"`
	DB       int    `yaml:"REDIS_DB" env:"REDIS_DB" env-default:"0"`
}

// RateConfig bounds checkout attempts per owner in a sliding window.
type RateConfig struct {
	MaxAttempts int64         `yaml:"MAX_ATTEMPTS" env:"MAX_ATTEMPTS" env-default:"10"`
	WindowSize  time.Duration `yaml:"WINDOW_SIZE" env:"WINDOW_SIZE" env-default:"1m"`
}

type Security struct {
	JWTKey string `yaml:"JWT_KEY" env:"JWT_KEY" env-required:"true"`
}

type CacheConfig struct {
	DefaultTTL time.Duration `yaml:"default_ttl" env:"CACHE_DEFAULT_TTL" env-default:"5m"`
	MaxJitter  time.Duration `yaml:"max_jitter" env:"CACHE_MAX_JITTER" env-default:"0s"`
}

type Otel struct {
	ServiceName      string  `yaml:"SERVICE_NAME" env:"OTEL_SERVICE_NAME" env-default:"storefront-checkout"`
	ExporterEndpoint string  `yaml:"EXPORTER_ENDPOINT" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	SamplerRatio     float64 `yaml:"SAMPLER_RATIO" env:"OTEL_SAMPLER_RATIO" env-default:"1.0"`
}

type SendGrid struct {
	APIKey    string `yaml:"API_KEY" env:"SENDGRID_API_KEY"`
	FromEmail string `yaml:"FROM_EMAIL" env:"SENDGRID_FROM_EMAIL" env-default:"orders@storefront.local"`
	FromName  string `yaml:"FROM_NAME" env:"SENDGRID_FROM_NAME" env-default:"Storefront"`
}

// Checkout holds the bounds applied around cart consolidation.
type Checkout struct {
	LockBackend        string        `yaml:"lock_backend" env:"CHECKOUT_LOCK_BACKEND" env-default:"redis"`
	LockTTL            time.Duration `yaml:"lock_ttl" env:"CHECKOUT_LOCK_TTL" env-default:"30s"`
	LockWait           time.Duration `yaml:"lock_wait" env:"CHECKOUT_LOCK_WAIT" env-default:"3s"`
	PersistTimeout     time.Duration `yaml:"persist_timeout" env:"CHECKOUT_PERSIST_TIMEOUT" env-default:"5s"`
	ClearTimeout       time.Duration `yaml:"clear_timeout" env:"CHECKOUT_CLEAR_TIMEOUT" env-default:"2s"`
	CatalogConcurrency int           `yaml:"catalog_concurrency" env:"CHECKOUT_CATALOG_CONCURRENCY" env-default:"8"`
}

// HoldBudget is how long a consolidation may spend between asking for the
// owner lock and committing the order. What is left of LockTTL after it
// covers the cart clear plus a tenth of the TTL for clock drift, so the lock
// cannot expire before the clear is done.
func (c Checkout) HoldBudget() time.Duration {
	return c.LockTTL - c.ClearTimeout - c.LockTTL/10
}

// Validate rejects bounds under which the owner lock could expire while a
// consolidation still relies on it.
func (c Checkout) Validate() error {
	switch {
	case c.LockBackend != "redis" && c.LockBackend != "local":
		return fmt.Errorf("checkout.lock_backend must be redis or local, got %q", c.LockBackend)
	case c.LockTTL <= 0 || c.LockWait <= 0 || c.PersistTimeout <= 0 || c.ClearTimeout <= 0:
		return errors.New("checkout lock and step timeouts must be positive")
	case c.CatalogConcurrency < 1:
		return fmt.Errorf("checkout.catalog_concurrency must be at least 1, got %d", c.CatalogConcurrency)
	case c.HoldBudget() <= c.PersistTimeout:
		return fmt.Errorf("checkout.lock_ttl %s is too short: it must exceed persist_timeout %s plus clear_timeout %s plus a tenth of itself",
			c.LockTTL, c.PersistTimeout, c.ClearTimeout)
	}

	return nil
}

type Catalog struct {
	BreakerMaxFailures uint32        `yaml:"breaker_max_failures" env:"CATALOG_BREAKER_MAX_FAILURES" env-default:"5"`
	BreakerOpenTimeout time.Duration `yaml:"breaker_open_timeout" env:"CATALOG_BREAKER_OPEN_TIMEOUT" env-default:"30s"`
}

type Kafka struct {
	Brokers      []string      `yaml:"brokers" env:"KAFKA_BROKERS" env-separator:","`
	Topic        string        `yaml:"topic" env:"KAFKA_TOPIC" env-default:"orders.created"`
	PollInterval time.Duration `yaml:"poll_interval" env:"KAFKA_POLL_INTERVAL" env-default:"1s"`
	BatchSize    int           `yaml:"batch_size" env:"KAFKA_BATCH_SIZE" env-default:"100"`
}

type Config struct {
	Env          string `yaml:"env" env:"ENV" env-required:"true"`
	HTTPServer   `yaml:"http_server"`
	Database     Database     `yaml:"database"`
	RedisConnect RedisConnect `yaml:"redis"`
	RateConfig   RateConfig   `yaml:"rateConfig"`
	Security     Security     `yaml:"security"`
	Cache        CacheConfig  `yaml:"cache"`
	Otel         Otel         `yaml:"otel"`
	SendGrid     SendGrid     `yaml:"sendgrid"`
	Checkout     Checkout     `yaml:"checkout"`
	Catalog      Catalog      `yaml:"catalog"`
	Kafka        Kafka        `yaml:"kafka"`
}

func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")

	if configPath == "" {
		flags := flag.String("config", "", "path to the yaml config file")
		flag.Parse()

		configPath = *flags
	}

	if configPath == "" {
		configPath = defaultConfigPath
	}

	cfg, err := LoadConfigFromPath(configPath)
	if err != nil {
		log.Fatalf("can not load config: %s", err.Error())
	}

	return cfg
}

func LoadConfigFromPath(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("can not read config file: %w", err)
	}

	if err := cfg.Checkout.Validate(); err != nil {
		return nil, fmt.Errorf("invalid checkout config: %w", err)
	}

	return &cfg, nil
}

func (d *Database) GetDSN() string {
	return fmt.Sprintf("postgresql://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

func (r *RedisConnect) GetDSN() string {
	return fmt.Sprintf("redis://%s:%s@%s:%s", r.Username, r.Password, r.Host, r.Port)
}
