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
	Settlement   SettlementConfig
	Cron         CronConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"TABLESIDE_APP_ENV" required:"true"`
	Port         string `envconfig:"TABLESIDE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"TABLESIDE_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"TABLESIDE_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"TABLESIDE_LOG_WARN_STACK" default:"false"`

	CORSAllowedOrigins []string `envconfig:"TABLESIDE_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"TABLESIDE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"TABLESIDE_DB_DSN"`
	Driver string `envconfig:"TABLESIDE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"TABLESIDE_DB_HOST"`
	LegacyPort     int    `envconfig:"TABLESIDE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"TABLESIDE_DB_USER"`
	LegacyPassword string `envconfig:"TABLESIDE_DB_PASSWORD"`
	LegacyName     string `envconfig:"TABLESIDE_DB_NAME"`
	LegacySSLMode  string `envconfig:"TABLESIDE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TABLESIDE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TABLESIDE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TABLESIDE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TABLESIDE_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"TABLESIDE_DB_SLOW_QUERY_THRESHOLD" default:"200ms"`
}

// IsSQLite reports whether the configured driver is the embedded sqlite driver.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"TABLESIDE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"TABLESIDE_REDIS_ADDR"`
	Password     string        `envconfig:"TABLESIDE_REDIS_PASSWORD"`
	DB           int           `envconfig:"TABLESIDE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TABLESIDE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TABLESIDE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TABLESIDE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TABLESIDE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TABLESIDE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"TABLESIDE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"TABLESIDE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"TABLESIDE_JWT_EXPIRATION_MINUTES" default:"720"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"TABLESIDE_AUTO_MIGRATE" default:"false"`
}

// SettlementConfig tunes the settle workflow and its reconciliation.
type SettlementConfig struct {
	LockTTL             time.Duration `envconfig:"TABLESIDE_SETTLEMENT_LOCK_TTL" default:"30s"`
	DeductionParallel   int           `envconfig:"TABLESIDE_SETTLEMENT_DEDUCTION_PARALLEL" default:"4"`
	ReconcileGrace      time.Duration `envconfig:"TABLESIDE_SETTLEMENT_RECONCILE_GRACE" default:"5m"`
	ConsistencyLookback time.Duration `envconfig:"TABLESIDE_SETTLEMENT_CONSISTENCY_LOOKBACK" default:"24h"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"TABLESIDE_CRON_INTERVAL" default:"10m"`
	LockTTL  time.Duration `envconfig:"TABLESIDE_CRON_LOCK_TTL" default:"15m"`

	OutboxRetention time.Duration `envconfig:"TABLESIDE_CRON_OUTBOX_RETENTION" default:"720h"`
	DLQRetention    time.Duration `envconfig:"TABLESIDE_CRON_DLQ_RETENTION" default:"2160h"`
	PruneBatchSize  int           `envconfig:"TABLESIDE_CRON_PRUNE_BATCH_SIZE" default:"500"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"TABLESIDE_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"TABLESIDE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"TABLESIDE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	SettlementsTopic        string `envconfig:"TABLESIDE_PUBSUB_SETTLEMENTS_TOPIC" default:"tableside-settlements"`
	InventoryTopic          string `envconfig:"TABLESIDE_PUBSUB_INVENTORY_TOPIC" default:"tableside-inventory"`
	SettlementsSubscription string `envconfig:"TABLESIDE_PUBSUB_SETTLEMENTS_SUBSCRIPTION"`
	InventorySubscription   string `envconfig:"TABLESIDE_PUBSUB_INVENTORY_SUBSCRIPTION"`

	ProcessedTTL time.Duration `envconfig:"TABLESIDE_PUBSUB_PROCESSED_TTL" default:"168h"`
}

type OutboxConfig struct {
	BatchSize       int `envconfig:"TABLESIDE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS  int `envconfig:"TABLESIDE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts     int `envconfig:"TABLESIDE_OUTBOX_MAX_ATTEMPTS" default:"10"`
	PublishParallel int `envconfig:"TABLESIDE_OUTBOX_PUBLISH_PARALLEL" default:"8"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		return fmt.Errorf("%s is required for the sqlite driver", EnvDBDSN)
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
		Path:   "/" + db.LegacyName,
	}
	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
