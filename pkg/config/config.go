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
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Commission   CommissionConfig
	Payout       PayoutConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Commission.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Payout.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"TERRAVEST_APP_ENV" required:"true"`
	Port         string `envconfig:"TERRAVEST_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"TERRAVEST_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"TERRAVEST_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"TERRAVEST_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"TERRAVEST_DB_DSN"`
	Driver string `envconfig:"TERRAVEST_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"TERRAVEST_DB_HOST"`
	LegacyPort     int    `envconfig:"TERRAVEST_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"TERRAVEST_DB_USER"`
	LegacyPassword string `envconfig:"TERRAVEST_DB_PASSWORD"`
	LegacyName     string `envconfig:"TERRAVEST_DB_NAME"`
	LegacySSLMode  string `envconfig:"TERRAVEST_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TERRAVEST_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TERRAVEST_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TERRAVEST_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TERRAVEST_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"TERRAVEST_REDIS_URL" required:"true"`
	Address      string        `envconfig:"TERRAVEST_REDIS_ADDR"`
	Password     string        `envconfig:"TERRAVEST_REDIS_PASSWORD"`
	DB           int           `envconfig:"TERRAVEST_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TERRAVEST_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TERRAVEST_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TERRAVEST_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TERRAVEST_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TERRAVEST_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig covers verification of member tokens issued by the identity
// service; this backend never mints tokens itself.
type JWTConfig struct {
	Secret string `envconfig:"TERRAVEST_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"TERRAVEST_JWT_ISSUER" required:"true"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"TERRAVEST_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"TERRAVEST_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"TERRAVEST_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"TERRAVEST_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"TERRAVEST_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	EventsTopic        string `envconfig:"TERRAVEST_PUBSUB_EVENTS_TOPIC" required:"true"`
	EventsSubscription string `envconfig:"TERRAVEST_PUBSUB_EVENTS_SUBSCRIPTION" required:"true"`
	DomainTopic        string `envconfig:"TERRAVEST_PUBSUB_DOMAIN_TOPIC" default:"tv-domain-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"TERRAVEST_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"TERRAVEST_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"TERRAVEST_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

// CommissionConfig carries the payout-plan knobs. Rates are fractions, not
// percentages: "0.02" means 2%.
type CommissionConfig struct {
	DirectRate     decimal.Decimal `envconfig:"TERRAVEST_COMMISSION_DIRECT_RATE" default:"0.02"`
	BinaryRate     decimal.Decimal `envconfig:"TERRAVEST_COMMISSION_BINARY_RATE" default:"0.10"`
	DailyBinaryCap decimal.Decimal `envconfig:"TERRAVEST_COMMISSION_DAILY_BINARY_CAP" default:"100000"`
	LevelDepth     int             `envconfig:"TERRAVEST_COMMISSION_LEVEL_DEPTH" default:"10"`
}

func (c CommissionConfig) validate() error {
	if c.DirectRate.IsNegative() || c.BinaryRate.IsNegative() {
		return fmt.Errorf("commission rates must not be negative")
	}
	if c.DailyBinaryCap.IsNegative() {
		return fmt.Errorf("daily binary cap must not be negative")
	}
	if c.LevelDepth < 0 {
		return fmt.Errorf("level depth must not be negative")
	}
	return nil
}

type PayoutConfig struct {
	AdminChargeRate decimal.Decimal `envconfig:"TERRAVEST_PAYOUT_ADMIN_CHARGE_RATE" default:"0.02"`
	MinAmount       decimal.Decimal `envconfig:"TERRAVEST_PAYOUT_MIN_AMOUNT" default:"500"`
	MaxAmount       decimal.Decimal `envconfig:"TERRAVEST_PAYOUT_MAX_AMOUNT" default:"1000000"`
}

func (p PayoutConfig) validate() error {
	if p.AdminChargeRate.IsNegative() || p.AdminChargeRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("admin charge rate must be in [0, 1)")
	}
	if p.MinAmount.IsNegative() || p.MaxAmount.LessThan(p.MinAmount) {
		return fmt.Errorf("payout amount bounds are inconsistent")
	}
	return nil
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
