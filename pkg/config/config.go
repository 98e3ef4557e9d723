package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is empty because every field carries its fully-qualified
// AURORA_* variable name in its envconfig tag.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "AURORA_DB_DSN"
	EnvDBHost = "AURORA_DB_HOST"
	EnvDBUser = "AURORA_DB_USER"
	EnvDBName = "AURORA_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	VNPay        VNPayConfig
	Checkout     CheckoutConfig
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
	Env          string `envconfig:"AURORA_APP_ENV" required:"true"`
	Port         string `envconfig:"AURORA_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"AURORA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"AURORA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"AURORA_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"AURORA_DB_DSN"`
	Driver string `envconfig:"AURORA_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"AURORA_DB_HOST"`
	LegacyPort     int    `envconfig:"AURORA_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"AURORA_DB_USER"`
	LegacyPassword string `envconfig:"AURORA_DB_PASSWORD"`
	LegacyName     string `envconfig:"AURORA_DB_NAME"`
	LegacySSLMode  string `envconfig:"AURORA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"AURORA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"AURORA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"AURORA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"AURORA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"AURORA_REDIS_URL" required:"true"`
	Address      string        `envconfig:"AURORA_REDIS_ADDR"`
	Password     string        `envconfig:"AURORA_REDIS_PASSWORD"`
	DB           int           `envconfig:"AURORA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"AURORA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"AURORA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"AURORA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"AURORA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"AURORA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"AURORA_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"AURORA_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"AURORA_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"AURORA_AUTO_MIGRATE" default:"false"`
}

// VNPayConfig carries the merchant credentials and endpoints for the
// redirect-based payment gateway.
type VNPayConfig struct {
	TmnCode    string        `envconfig:"AURORA_VNPAY_TMN_CODE" required:"true"`
	HashSecret string        `envconfig:"AURORA_VNPAY_HASH_SECRET" required:"true"`
	PayURL     string        `envconfig:"AURORA_VNPAY_PAY_URL" default:"https://sandbox.vnpayment.vn/paymentv2/vpcpay.html"`
	ReturnURL  string        `envconfig:"AURORA_VNPAY_RETURN_URL" required:"true"`
	Version    string        `envconfig:"AURORA_VNPAY_VERSION" default:"2.1.0"`
	ExpireIn   time.Duration `envconfig:"AURORA_VNPAY_EXPIRE_IN" default:"15m"`
	// ExpiredCodes lists the gateway response codes treated as a timed-out
	// payment attempt rather than a generic decline.
	ExpiredCodes []string `envconfig:"AURORA_VNPAY_EXPIRED_CODES" default:"11,15"`
}

// CheckoutConfig holds the explicit policy switches of the order workflow.
type CheckoutConfig struct {
	// AutoAdvanceOnPayment moves a pending order to processing as soon as
	// the gateway confirms payment.
	AutoAdvanceOnPayment bool `envconfig:"AURORA_CHECKOUT_AUTO_ADVANCE_ON_PAYMENT" default:"true"`
	// CashPaidOnDelivery marks a cash order paid inside the
	// delivery-confirmation transition. When false, staff record the
	// payment separately.
	CashPaidOnDelivery bool `envconfig:"AURORA_CHECKOUT_CASH_PAID_ON_DELIVERY" default:"true"`
	// SingleFlightTTL bounds how long a customer's checkout lock is held
	// while an order-creation call is in flight.
	SingleFlightTTL time.Duration `envconfig:"AURORA_CHECKOUT_SINGLE_FLIGHT_TTL" default:"30s"`
	// VerificationTTL bounds the per-reference serialization lock taken by
	// the payment return verifier.
	VerificationTTL time.Duration `envconfig:"AURORA_CHECKOUT_VERIFICATION_TTL" default:"10s"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"AURORA_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	OrdersTopic        string `envconfig:"AURORA_PUBSUB_ORDERS_TOPIC" default:"aurora-order-events"`
	OrdersSubscription string `envconfig:"AURORA_PUBSUB_ORDERS_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"AURORA_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"AURORA_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"AURORA_OUTBOX_MAX_ATTEMPTS" default:"10"`
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
