package config

const EnvPrefix = "TABLESIDE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const (
	EnvAppEnv    = "TABLESIDE_APP_ENV"
	EnvPort      = "TABLESIDE_APP_PORT"
	EnvLogLevel  = "TABLESIDE_LOG_LEVEL"
	EnvLogFormat = "TABLESIDE_LOG_FORMAT"

	EnvDBDSN    = "TABLESIDE_DB_DSN"
	EnvDBDriver = "TABLESIDE_DB_DRIVER"
	EnvDBHost   = "TABLESIDE_DB_HOST"
	EnvDBUser   = "TABLESIDE_DB_USER"
	EnvDBName   = "TABLESIDE_DB_NAME"

	EnvRedisURL = "TABLESIDE_REDIS_URL"

	EnvJWTSecret = "TABLESIDE_JWT_SECRET"
	EnvJWTIssuer = "TABLESIDE_JWT_ISSUER"

	EnvSettlementLockTTL   = "TABLESIDE_SETTLEMENT_LOCK_TTL"
	EnvSettlementParallel  = "TABLESIDE_SETTLEMENT_DEDUCTION_PARALLEL"
	EnvPubSubSettlementsTp = "TABLESIDE_PUBSUB_SETTLEMENTS_TOPIC"
	EnvPubSubInventorySub  = "TABLESIDE_PUBSUB_INVENTORY_SUBSCRIPTION"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
