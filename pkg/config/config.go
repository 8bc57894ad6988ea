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
	DB           DBConfig
	Redis        RedisConfig
	Identity     IdentityConfig
	Stripe       StripeConfig
	Completion   CompletionConfig
	Checkout     CheckoutConfig
	Entitlement  EntitlementConfig
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Identity.validate(); err != nil {
		return nil, err
	}
	if err := cfg.App.normalizeHost(); err != nil {
		return nil, err
	}
	if cfg.Checkout.RequireState && strings.TrimSpace(cfg.Checkout.StateSecret) == "" {
		return nil, fmt.Errorf("%s is required when %s is enabled", EnvCheckoutStateSecret, EnvCheckoutRequire)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"OMNI_APP_ENV" required:"true"`
	Port         string   `envconfig:"OMNI_APP_PORT" default:"8000"`
	Host         string   `envconfig:"OMNI_HOST" required:"true"`
	LogLevel     string   `envconfig:"OMNI_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"OMNI_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"OMNI_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

// HomeURL is the base URL end users land on after a checkout round trip.
func (a AppConfig) HomeURL() string {
	return a.Host
}

// URL joins path onto the configured host.
func (a AppConfig) URL(path string) string {
	return a.Host + strings.TrimLeft(path, "/")
}

func (a *AppConfig) normalizeHost() error {
	host := strings.TrimSpace(a.Host)
	u, err := url.Parse(host)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL, got %q", EnvHost, a.Host)
	}
	if !strings.HasSuffix(host, "/") {
		host += "/"
	}
	a.Host = host
	return nil
}

type DBConfig struct {
	DSN    string `envconfig:"OMNI_DB_DSN"`
	Driver string `envconfig:"OMNI_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"OMNI_DB_HOST"`
	LegacyPort     int    `envconfig:"OMNI_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"OMNI_DB_USER"`
	LegacyPassword string `envconfig:"OMNI_DB_PASSWORD"`
	LegacyName     string `envconfig:"OMNI_DB_NAME"`
	LegacySSLMode  string `envconfig:"OMNI_DB_SSLMODE" default:"require"`

	MaxOpenConns    int           `envconfig:"OMNI_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"OMNI_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"OMNI_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"OMNI_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// RedisConfig is optional; with neither URL nor address set the status
// cache, nonce guard, webhook dedupe and rate limiting are disabled.
type RedisConfig struct {
	URL          string        `envconfig:"OMNI_REDIS_URL"`
	Address      string        `envconfig:"OMNI_REDIS_ADDR"`
	Password     string        `envconfig:"OMNI_REDIS_PASSWORD"`
	DB           int           `envconfig:"OMNI_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"OMNI_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"OMNI_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"OMNI_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"OMNI_REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"OMNI_REDIS_WRITE_TIMEOUT" default:"3s"`
}

func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

const (
	IdentityModeJWT    = "jwt"
	IdentityModeRemote = "remote"
)

type IdentityConfig struct {
	Mode       string        `envconfig:"OMNI_IDENTITY_MODE" default:"jwt"`
	URL        string        `envconfig:"OMNI_IDENTITY_URL"`
	ServiceKey string        `envconfig:"OMNI_IDENTITY_SERVICE_KEY"`
	JWTSecret  string        `envconfig:"OMNI_IDENTITY_JWT_SECRET"`
	Audience   string        `envconfig:"OMNI_IDENTITY_JWT_AUDIENCE" default:"authenticated"`
	Timeout    time.Duration `envconfig:"OMNI_IDENTITY_TIMEOUT" default:"5s"`
}

func (i *IdentityConfig) validate() error {
	i.Mode = strings.ToLower(strings.TrimSpace(i.Mode))
	switch i.Mode {
	case IdentityModeJWT:
		if strings.TrimSpace(i.JWTSecret) == "" {
			return fmt.Errorf("%s is required for identity mode %q", EnvIdentityJWTSecret, IdentityModeJWT)
		}
	case IdentityModeRemote:
		if strings.TrimSpace(i.URL) == "" || strings.TrimSpace(i.ServiceKey) == "" {
			return fmt.Errorf("%s and %s are required for identity mode %q", EnvIdentityURL, EnvIdentityServiceKey, IdentityModeRemote)
		}
	default:
		return fmt.Errorf("%s must be %q or %q", EnvIdentityMode, IdentityModeJWT, IdentityModeRemote)
	}
	return nil
}

type StripeConfig struct {
	APIKey  string        `envconfig:"OMNI_STRIPE_API_KEY" required:"true"`
	Secret  string        `envconfig:"OMNI_STRIPE_WEBHOOK_SECRET"`
	Env     string        `envconfig:"OMNI_STRIPE_ENV" default:"test"`
	Timeout time.Duration `envconfig:"OMNI_STRIPE_TIMEOUT" default:"10s"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type CompletionConfig struct {
	Endpoint    string        `envconfig:"OMNI_COMPLETION_ENDPOINT"`
	APIKey      string        `envconfig:"OMNI_COMPLETION_API_KEY"`
	Deployment  string        `envconfig:"OMNI_COMPLETION_DEPLOYMENT" default:"gpt-4o-mini"`
	APIVersion  string        `envconfig:"OMNI_COMPLETION_API_VERSION" default:"2024-10-21"`
	MaxTokens   int           `envconfig:"OMNI_COMPLETION_MAX_TOKENS" default:"100"`
	Temperature float64       `envconfig:"OMNI_COMPLETION_TEMPERATURE" default:"0.7"`
	Timeout     time.Duration `envconfig:"OMNI_COMPLETION_TIMEOUT" default:"20s"`
}

func (c CompletionConfig) Enabled() bool {
	return strings.TrimSpace(c.Endpoint) != "" && strings.TrimSpace(c.APIKey) != ""
}

type CheckoutConfig struct {
	StateSecret  string        `envconfig:"OMNI_CHECKOUT_STATE_SECRET"`
	StateTTL     time.Duration `envconfig:"OMNI_CHECKOUT_STATE_TTL" default:"24h"`
	TrialDays    int64         `envconfig:"OMNI_CHECKOUT_TRIAL_DAYS" default:"7"`
	RequireState bool          `envconfig:"OMNI_CHECKOUT_REQUIRE_STATE" default:"true"`
}

type EntitlementConfig struct {
	StatusCacheTTL time.Duration `envconfig:"OMNI_ENTITLEMENT_CACHE_TTL" default:"60s"`
}

type RateLimitConfig struct {
	SuggestWindow time.Duration `envconfig:"OMNI_RATE_LIMIT_SUGGEST_WINDOW" default:"1m"`
	SuggestLimit  int           `envconfig:"OMNI_RATE_LIMIT_SUGGEST_LIMIT" default:"60"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"OMNI_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"OMNI_AUTO_MIGRATE" default:"false"`
}

const (
	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
)

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if useSQLite {
		db.Driver = DBDriverSQLite
		if db.DSN == "" {
			db.DSN = "file:omni.db?_foreign_keys=on"
		}
		return nil
	}
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
