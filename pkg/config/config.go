package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/freshmandi/freshmandi-backend/pkg/enums"
)

// EnvPrefix namespaces every environment variable the engine reads.
const EnvPrefix = "freshmandi"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Routing      RoutingConfig
	Weather      WeatherConfig
	Reservation  ReservationConfig
	Payments     PaymentsConfig
	Cron         CronConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if !cfg.Routing.Mode.IsValid() {
		return nil, fmt.Errorf("invalid routing mode %q", cfg.Routing.Mode)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"FRESHMANDI_APP_ENV" required:"true"`
	Port         string `envconfig:"FRESHMANDI_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"FRESHMANDI_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"FRESHMANDI_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"FRESHMANDI_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"FRESHMANDI_DB_DSN"`
	Driver string `envconfig:"FRESHMANDI_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"FRESHMANDI_DB_HOST"`
	Port     int    `envconfig:"FRESHMANDI_DB_PORT" default:"5432"`
	User     string `envconfig:"FRESHMANDI_DB_USER"`
	Password string `envconfig:"FRESHMANDI_DB_PASSWORD"`
	Name     string `envconfig:"FRESHMANDI_DB_NAME"`
	SSLMode  string `envconfig:"FRESHMANDI_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"FRESHMANDI_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"FRESHMANDI_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"FRESHMANDI_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FRESHMANDI_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (d *DBConfig) ensureDSN() error {
	if d.DSN != "" {
		return nil
	}
	if d.Host == "" || d.User == "" || d.Name == "" {
		return fmt.Errorf("either FRESHMANDI_DB_DSN or host/user/name parts are required")
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.Name,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	d.DSN = u.String()
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"FRESHMANDI_REDIS_URL"`
	Address      string        `envconfig:"FRESHMANDI_REDIS_ADDR" default:"localhost:6379"`
	Password     string        `envconfig:"FRESHMANDI_REDIS_PASSWORD"`
	DB           int           `envconfig:"FRESHMANDI_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FRESHMANDI_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FRESHMANDI_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FRESHMANDI_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FRESHMANDI_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FRESHMANDI_REDIS_WRITE_TIMEOUT" default:"5s"`
	KeyPrefix    string        `envconfig:"FRESHMANDI_REDIS_KEY_PREFIX" default:"fm"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"FRESHMANDI_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	OrderEventsTopic string        `envconfig:"FRESHMANDI_PUBSUB_ORDER_EVENTS_TOPIC" default:"order-events"`
	PublishTimeout   time.Duration `envconfig:"FRESHMANDI_PUBSUB_PUBLISH_TIMEOUT" default:"5s"`
	Disabled         bool          `envconfig:"FRESHMANDI_PUBSUB_DISABLED" default:"false"`
}

type RoutingConfig struct {
	Mode enums.RoutingMode `envconfig:"FRESHMANDI_ROUTING_MODE" default:"subcategory_exclusive"`
}

type WeatherConfig struct {
	ProviderURL    string        `envconfig:"FRESHMANDI_WEATHER_PROVIDER_URL"`
	PollInterval   time.Duration `envconfig:"FRESHMANDI_WEATHER_POLL_INTERVAL" default:"15m"`
	StaleTTL       time.Duration `envconfig:"FRESHMANDI_WEATHER_STALE_TTL" default:"30m"`
	RequestTimeout time.Duration `envconfig:"FRESHMANDI_WEATHER_REQUEST_TIMEOUT" default:"10s"`
}

type ReservationConfig struct {
	HoldTTL     time.Duration `envconfig:"FRESHMANDI_RESERVATION_HOLD_TTL" default:"10m"`
	MaxRetries  int           `envconfig:"FRESHMANDI_RESERVATION_MAX_RETRIES" default:"5"`
	BaseBackoff time.Duration `envconfig:"FRESHMANDI_RESERVATION_BASE_BACKOFF" default:"20ms"`
}

type PaymentsConfig struct {
	BaseURL        string        `envconfig:"FRESHMANDI_PAYMENTS_BASE_URL"`
	RequestTimeout time.Duration `envconfig:"FRESHMANDI_PAYMENTS_REQUEST_TIMEOUT" default:"10s"`
	WebhookSecret  string        `envconfig:"FRESHMANDI_PAYMENTS_WEBHOOK_SECRET"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"FRESHMANDI_CRON_INTERVAL" default:"1m"`
	LockTTL  time.Duration `envconfig:"FRESHMANDI_CRON_LOCK_TTL" default:"5m"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"FRESHMANDI_AUTO_MIGRATE" default:"false"`
}
