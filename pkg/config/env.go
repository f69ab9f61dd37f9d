package config

// EnvPrefix is passed to envconfig.Process; individual fields carry explicit
// names, so the prefix only matters for fields without a tag.
const EnvPrefix = "terravest"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

// Environment variable names, shared with tests and operational tooling.
const (
	EnvAppEnv   = "TERRAVEST_APP_ENV"
	EnvPort     = "TERRAVEST_APP_PORT"
	EnvLogLevel = "TERRAVEST_LOG_LEVEL"

	EnvDBDSN  = "TERRAVEST_DB_DSN"
	EnvDBHost = "TERRAVEST_DB_HOST"
	EnvDBUser = "TERRAVEST_DB_USER"
	EnvDBName = "TERRAVEST_DB_NAME"

	EnvRedisURL = "TERRAVEST_REDIS_URL"

	EnvJWTSecret = "TERRAVEST_JWT_SECRET"
	EnvJWTIssuer = "TERRAVEST_JWT_ISSUER"

	EnvGCPProjectID = "TERRAVEST_GCP_PROJECT_ID"

	EnvPubSubEventsTopic = "TERRAVEST_PUBSUB_EVENTS_TOPIC"
	EnvPubSubEventsSub   = "TERRAVEST_PUBSUB_EVENTS_SUBSCRIPTION"
	EnvPubSubDomainTopic = "TERRAVEST_PUBSUB_DOMAIN_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
