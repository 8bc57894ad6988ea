package config

const (
	EnvPrefix = "OMNI"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "OMNI_APP_ENV"
	EnvPort     = "OMNI_APP_PORT"
	EnvHost     = "OMNI_HOST"
	EnvLogLevel = "OMNI_LOG_LEVEL"

	EnvDBDSN  = "OMNI_DB_DSN"
	EnvDBHost = "OMNI_DB_HOST"
	EnvDBUser = "OMNI_DB_USER"
	EnvDBName = "OMNI_DB_NAME"

	EnvRedisURL = "OMNI_REDIS_URL"

	EnvIdentityMode       = "OMNI_IDENTITY_MODE"
	EnvIdentityURL        = "OMNI_IDENTITY_URL"
	EnvIdentityServiceKey = "OMNI_IDENTITY_SERVICE_KEY"
	EnvIdentityJWTSecret  = "OMNI_IDENTITY_JWT_SECRET"

	EnvStripeAPIKey = "OMNI_STRIPE_API_KEY"
	EnvStripeSecret = "OMNI_STRIPE_WEBHOOK_SECRET"
	EnvStripeEnv    = "OMNI_STRIPE_ENV"

	EnvCompletionEndpoint = "OMNI_COMPLETION_ENDPOINT"
	EnvCompletionAPIKey   = "OMNI_COMPLETION_API_KEY"

	EnvCheckoutStateSecret = "OMNI_CHECKOUT_STATE_SECRET"
	EnvCheckoutRequire     = "OMNI_CHECKOUT_REQUIRE_STATE"

	EnvUseSQLite = "OMNI_USE_SQLITE"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
