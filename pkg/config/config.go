package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Billing      BillingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	BigQuery     BigQueryConfig
	Outbox       OutboxConfig
	RateLimit    RateLimitConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Billing.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"INKLEDGER_APP_ENV" required:"true"`
	Port         string `envconfig:"INKLEDGER_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"INKLEDGER_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"INKLEDGER_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"INKLEDGER_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"INKLEDGER_DB_DSN"`
	Driver string `envconfig:"INKLEDGER_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"INKLEDGER_DB_HOST"`
	LegacyPort     int    `envconfig:"INKLEDGER_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"INKLEDGER_DB_USER"`
	LegacyPassword string `envconfig:"INKLEDGER_DB_PASSWORD"`
	LegacyName     string `envconfig:"INKLEDGER_DB_NAME"`
	LegacySSLMode  string `envconfig:"INKLEDGER_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"INKLEDGER_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"INKLEDGER_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"INKLEDGER_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"INKLEDGER_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"INKLEDGER_REDIS_URL" required:"true"`
	Address      string        `envconfig:"INKLEDGER_REDIS_ADDR"`
	Password     string        `envconfig:"INKLEDGER_REDIS_PASSWORD"`
	DB           int           `envconfig:"INKLEDGER_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"INKLEDGER_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"INKLEDGER_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"INKLEDGER_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"INKLEDGER_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"INKLEDGER_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig describes the actor tokens minted by the studio auth service.
// The billing API only verifies them.
type JWTConfig struct {
	Secret string `envconfig:"INKLEDGER_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"INKLEDGER_JWT_ISSUER" required:"true"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"INKLEDGER_AUTO_MIGRATE" default:"false"`
}

type BillingConfig struct {
	DefaultCurrency   string        `envconfig:"INKLEDGER_BILLING_DEFAULT_CURRENCY" default:"TWD"`
	WalletMatchWindow time.Duration `envconfig:"INKLEDGER_BILLING_WALLET_MATCH_WINDOW" default:"10m"`
	IdempotencyTTL    time.Duration `envconfig:"INKLEDGER_BILLING_IDEMPOTENCY_TTL" default:"24h"`
	ExportPageSize    int           `envconfig:"INKLEDGER_BILLING_EXPORT_PAGE_SIZE" default:"500"`
}

func (b BillingConfig) validate() error {
	if strings.TrimSpace(b.DefaultCurrency) == "" {
		return fmt.Errorf("%s is required", EnvBillingCurrency)
	}
	if b.WalletMatchWindow <= 0 {
		return fmt.Errorf("%s must be positive", EnvBillingMatchWindow)
	}
	return nil
}

type GCPConfig struct {
	ProjectID              string `envconfig:"INKLEDGER_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"INKLEDGER_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"INKLEDGER_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	BillingTopic string `envconfig:"INKLEDGER_PUBSUB_BILLING_TOPIC" required:"true"`
	WalletTopic  string `envconfig:"INKLEDGER_PUBSUB_WALLET_TOPIC" default:"ink-wallet-events"`
}

type BigQueryConfig struct {
	Dataset    string `envconfig:"INKLEDGER_BIGQUERY_DATASET" default:"inkledger"`
	BillsTable string `envconfig:"INKLEDGER_BIGQUERY_BILLS_TABLE" default:"bill_report_rows"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"INKLEDGER_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"INKLEDGER_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"INKLEDGER_OUTBOX_MAX_ATTEMPTS" default:"10"`
	PublishTimeout time.Duration `envconfig:"INKLEDGER_OUTBOX_PUBLISH_TIMEOUT" default:"15s"`
}

// RateLimitConfig throttles mutating API calls per actor and per client IP.
// A zero window disables throttling.
type RateLimitConfig struct {
	Window     time.Duration `envconfig:"INKLEDGER_RATE_LIMIT_WINDOW" default:"1m"`
	ActorLimit int           `envconfig:"INKLEDGER_RATE_LIMIT_ACTOR" default:"120"`
	IPLimit    int           `envconfig:"INKLEDGER_RATE_LIMIT_IP" default:"300"`
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
