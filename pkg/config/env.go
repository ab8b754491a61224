package config

// EnvPrefix is handed to envconfig; every field carries an explicit name.
const EnvPrefix = "INKLEDGER"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "INKLEDGER_APP_ENV"
	EnvPort     = "INKLEDGER_APP_PORT"
	EnvLogLevel = "INKLEDGER_LOG_LEVEL"

	EnvDBDSN  = "INKLEDGER_DB_DSN"
	EnvDBHost = "INKLEDGER_DB_HOST"
	EnvDBUser = "INKLEDGER_DB_USER"
	EnvDBName = "INKLEDGER_DB_NAME"

	EnvRedisURL = "INKLEDGER_REDIS_URL"

	EnvJWTSecret = "INKLEDGER_JWT_SECRET"
	EnvJWTIssuer = "INKLEDGER_JWT_ISSUER"

	EnvBillingCurrency    = "INKLEDGER_BILLING_DEFAULT_CURRENCY"
	EnvBillingMatchWindow = "INKLEDGER_BILLING_WALLET_MATCH_WINDOW"

	EnvGCPProjectID       = "INKLEDGER_GCP_PROJECT_ID"
	EnvPubSubBillingTopic = "INKLEDGER_PUBSUB_BILLING_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
