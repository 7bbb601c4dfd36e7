package config

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverDynamoDB = "dynamodb"
)

type HTTPServer struct {
	Addr string `yaml:"address" env:"HTTP_ADDRESS" env-default:":8080"`
}

type Security struct {
	JWTKey string `yaml:"JWT_KEY" env:"JWT_KEY" env-required:"true"`
}

// Store selects the durable backend and bounds every call made to it.
type Store struct {
	Driver      string        `yaml:"driver" env:"STORE_DRIVER" env-default:"postgres"`
	Timeout     time.Duration `yaml:"timeout" env:"STORE_TIMEOUT" env-default:"2s"`
	AutoMigrate bool          `yaml:"auto_migrate" env:"STORE_AUTO_MIGRATE" env-default:"false"`
}

type Database struct {
	Host            string        `yaml:"PG_HOST" env:"PG_HOST" env-default:"localhost"`
	Port            string        `yaml:"PG_PORT" env:"PG_PORT" env-default:"5432"`
	User            string        `yaml:"PG_USER" env:"PG_USER"`
	Password        string        `yaml:"PG_PASSWORD" env:"PG_PASSWORD"`
	Name            string        `yaml:"PG_DBNAME" env:"PG_DBNAME"`
	SSLMode         string        `yaml:"PG_SSLMODE" env:"PG_SSLMODE" env-default:"require"`
	MaxOpenConns    int           `yaml:"MAX_OPEN_CONNS" env:"PG_MAX_OPEN_CONNS" env-default:"25"`
	MaxIdleConns    int           `yaml:"MAX_IDLE_CONNS" env:"PG_MAX_IDLE_CONNS" env-default:"25"`
	ConnMaxLifetime time.Duration `yaml:"CONN_MAX_LIFETIME" env:"PG_CONN_MAX_LIFETIME" env-default:"5m"`
	ConnMaxIdleTime time.Duration `yaml:"CONN_MAX_IDLE_TIME" env:"PG_CONN_MAX_IDLE_TIME" env-default:"1m"`
}

type RedisConnect struct {
	Host     string `yaml:"REDIS_HOST" env:"REDIS_HOST" env-default:"localhost"`
	Port     string `yaml:"REDIS_PORT" env:"REDIS_PORT" env-default:"6379"`
	Username string `yaml:"REDIS_USER" env:"REDIS_USER"`
	Password string `yaml:"REDIS_PASSWORD" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"REDIS_DB" env:"REDIS_DB" env-default:"0"`
}

type DynamoDB struct {
	Region   string `yaml:"AWS_REGION" env:"AWS_REGION" env-default:"us-east-1"`
	Table    string `yaml:"DYNAMODB_TABLE_NAME" env:"DYNAMODB_TABLE_NAME" env-default:"carts"`
	Endpoint string `yaml:"DYNAMODB_ENDPOINT" env:"DYNAMODB_ENDPOINT"`
}

type Pricing struct {
	TaxRate               float64 `yaml:"tax_rate" env:"PRICING_TAX_RATE" env-default:"0"`
	ShippingFee           float64 `yaml:"shipping_fee" env:"PRICING_SHIPPING_FEE" env-default:"0"`
	FreeShippingThreshold float64 `yaml:"free_shipping_threshold" env:"PRICING_FREE_SHIPPING_THRESHOLD" env-default:"0"`
}

type Reconciler struct {
	Interval       time.Duration `yaml:"interval" env:"RECONCILE_INTERVAL" env-default:"15s"`
	InitialBackoff time.Duration `yaml:"initial_backoff" env:"RECONCILE_INITIAL_BACKOFF" env-default:"1s"`
	MaxBackoff     time.Duration `yaml:"max_backoff" env:"RECONCILE_MAX_BACKOFF" env-default:"5m"`
	MaxDirty       int           `yaml:"max_dirty" env:"RECONCILE_MAX_DIRTY" env-default:"1000"`
}

type Tracing struct {
	Endpoint    string `yaml:"endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName string `yaml:"service_name" env:"OTEL_SERVICE_NAME" env-default:"dual-tier-cart"`
	Insecure    bool   `yaml:"insecure" env:"OTEL_EXPORTER_OTLP_INSECURE" env-default:"true"`
}

type Config struct {
	Env          string `yaml:"env" env:"ENV" env-required:"true"`
	HTTPServer   `yaml:"http_server"`
	Security     Security     `yaml:"security"`
	Store        Store        `yaml:"store"`
	Database     Database     `yaml:"database"`
	RedisConnect RedisConnect `yaml:"redis"`
	DynamoDB     DynamoDB     `yaml:"dynamodb"`
	Pricing      Pricing      `yaml:"pricing"`
	Reconciler   Reconciler   `yaml:"reconciler"`
	Tracing      Tracing      `yaml:"tracing"`
}

// Load reads the YAML file at configPath; environment variables override it.
func Load(configPath string) (*Config, error) {

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("can not read config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func MustLoad() *Config {

	configPath := os.Getenv("CONFIG_PATH")

	if configPath == "" {

		flags := flag.String("config", "", "gets the config flag value")

		flag.Parse()

		configPath = *flags

		if configPath == "" {

			log.Fatal("Config path is not set")

		}

	}

	cfg, err := Load(configPath)
	if err != nil {
		log.Fatal(err.Error())
	}

	return cfg

}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case DriverPostgres:
		if c.Database.User == "" || c.Database.Name == "" {
			return fmt.Errorf("postgres store requires PG_USER and PG_DBNAME")
		}
	case DriverRedis, DriverDynamoDB:
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}

	if c.Store.Timeout <= 0 {
		return fmt.Errorf("store timeout must be positive")
	}

	if c.Reconciler.Interval <= 0 {
		return fmt.Errorf("reconciler interval must be positive")
	}

	return nil
}

func (d *Database) GetDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

func (r *RedisConnect) GetDSN() string {
	return fmt.Sprintf("redis://%s:%s@%s:%s/%d", r.Username, r.Password, r.Host, r.Port, r.DB)
}
