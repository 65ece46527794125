package config

const EnvPrefix = "DINEIN"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv    = "DINEIN_APP_ENV"
	EnvPort      = "DINEIN_APP_PORT"
	EnvLogLevel  = "DINEIN_LOG_LEVEL"
	EnvDBDSN     = "DINEIN_DB_DSN"
	EnvDBHost    = "DINEIN_DB_HOST"
	EnvDBPort    = "DINEIN_DB_PORT"
	EnvDBUser    = "DINEIN_DB_USER"
	EnvDBPass    = "DINEIN_DB_PASSWORD"
	EnvDBName    = "DINEIN_DB_NAME"
	EnvRedisURL  = "DINEIN_REDIS_URL"
	EnvJWTSecret = "DINEIN_JWT_SECRET"
	EnvJWTIssuer = "DINEIN_JWT_ISSUER"
	EnvTaxRate   = "DINEIN_TAX_RATE"

	EnvPubSubTopic  = "DINEIN_PUBSUB_TOPIC"
	EnvGCPProjectID = "DINEIN_GCP_PROJECT_ID"
	EnvRabbitMQURL  = "DINEIN_RABBITMQ_URL"
	EnvBrainURL     = "DINEIN_BRAIN_URL"
	EnvKitchenWarn  = "DINEIN_KITCHEN_WARNING_AFTER"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
