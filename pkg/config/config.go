package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Pricing      PricingConfig
	Kitchen      KitchenConfig
	Realtime     RealtimeConfig
	Relay        RelayConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	RabbitMQ     RabbitMQConfig
	Cron         CronConfig
	Brain        BrainConfig
	Monitor      MonitorConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if _, err := cfg.Pricing.Rate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"DINEIN_APP_ENV" required:"true"`
	Port         string   `envconfig:"DINEIN_APP_PORT" default:"8080"`
	LogLevel     string   `envconfig:"DINEIN_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"DINEIN_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"DINEIN_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"DINEIN_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"DINEIN_DB_DSN"`
	Driver string `envconfig:"DINEIN_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"DINEIN_DB_HOST"`
	LegacyPort     int    `envconfig:"DINEIN_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"DINEIN_DB_USER"`
	LegacyPassword string `envconfig:"DINEIN_DB_PASSWORD"`
	LegacyName     string `envconfig:"DINEIN_DB_NAME"`
	LegacySSLMode  string `envconfig:"DINEIN_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"DINEIN_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"DINEIN_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"DINEIN_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"DINEIN_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"DINEIN_REDIS_URL" required:"true"`
	Address      string        `envconfig:"DINEIN_REDIS_ADDR"`
	Password     string        `envconfig:"DINEIN_REDIS_PASSWORD"`
	DB           int           `envconfig:"DINEIN_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"DINEIN_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"DINEIN_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"DINEIN_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"DINEIN_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"DINEIN_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"DINEIN_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"DINEIN_JWT_ISSUER" default:"dinein"`
	ExpirationMinutes int    `envconfig:"DINEIN_JWT_EXPIRATION_MINUTES" default:"720"`
}

// TTL returns the staff token lifetime.
func (j JWTConfig) TTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"DINEIN_AUTO_MIGRATE" default:"false"`
	RequireAuth bool `envconfig:"DINEIN_REQUIRE_AUTH" default:"true"`
}

type PricingConfig struct {
	TaxRate string `envconfig:"DINEIN_TAX_RATE" default:"0"`
}

// Rate parses the configured tax rate as a fraction (0.0825 for 8.25%).
func (p PricingConfig) Rate() (decimal.Decimal, error) {
	raw := strings.TrimSpace(p.TaxRate)
	if raw == "" {
		return decimal.Zero, nil
	}
	rate, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q: %w", EnvTaxRate, raw, err)
	}
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return decimal.Zero, fmt.Errorf("%s must be in [0,1), got %s", EnvTaxRate, raw)
	}
	return rate, nil
}

type KitchenConfig struct {
	WarningAfter time.Duration `envconfig:"DINEIN_KITCHEN_WARNING_AFTER" default:"10m"`
	UrgentAfter  time.Duration `envconfig:"DINEIN_KITCHEN_URGENT_AFTER" default:"20m"`
}

type RealtimeConfig struct {
	ChannelPrefix string        `envconfig:"DINEIN_REALTIME_CHANNEL_PREFIX" default:"dinein:realtime"`
	WriteTimeout  time.Duration `envconfig:"DINEIN_REALTIME_WRITE_TIMEOUT" default:"10s"`
	PingInterval  time.Duration `envconfig:"DINEIN_REALTIME_PING_INTERVAL" default:"30s"`
	AllowedOrigin string        `envconfig:"DINEIN_REALTIME_ALLOWED_ORIGIN" default:"*"`
}

type RelayConfig struct {
	BatchSize      int `envconfig:"DINEIN_RELAY_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"DINEIN_RELAY_POLL_MS" default:"250"`
	MaxAttempts    int `envconfig:"DINEIN_RELAY_MAX_ATTEMPTS" default:"10"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"DINEIN_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	ChangesTopic string `envconfig:"DINEIN_PUBSUB_TOPIC"`
}

// Enabled reports whether changes should also be forwarded to Pub/Sub.
func (p PubSubConfig) Enabled() bool {
	return strings.TrimSpace(p.ChangesTopic) != ""
}

type RabbitMQConfig struct {
	URL             string `envconfig:"DINEIN_RABBITMQ_URL"`
	KitchenExchange string `envconfig:"DINEIN_RABBITMQ_KITCHEN_EXCHANGE" default:"kitchen_topic"`
}

func (r RabbitMQConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != ""
}

type CronConfig struct {
	Interval          time.Duration `envconfig:"DINEIN_CRON_INTERVAL" default:"5m"`
	ChangeRetention   time.Duration `envconfig:"DINEIN_CRON_CHANGE_RETENTION" default:"72h"`
	StaleOrderAfter   time.Duration `envconfig:"DINEIN_CRON_STALE_ORDER_AFTER" default:"6h"`
	LockTTL           time.Duration `envconfig:"DINEIN_CRON_LOCK_TTL" default:"4m"`
	RetentionBatchMax int           `envconfig:"DINEIN_CRON_RETENTION_BATCH" default:"1000"`
}

// BrainConfig points table-side clients at the command API.
type BrainConfig struct {
	BaseURL string        `envconfig:"DINEIN_BRAIN_URL" default:"http://localhost:8080"`
	Token   string        `envconfig:"DINEIN_BRAIN_TOKEN"`
	Timeout time.Duration `envconfig:"DINEIN_BRAIN_TIMEOUT" default:"10s"`
}

type MonitorConfig struct {
	TableID     string `envconfig:"DINEIN_MONITOR_TABLE_ID"`
	TableNumber int    `envconfig:"DINEIN_MONITOR_TABLE_NUMBER" default:"0"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
