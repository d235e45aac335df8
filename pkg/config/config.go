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
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Packages PackagesConfig
	Loyalty  LoyaltyConfig
	Returns  ReturnsConfig
	Cron     CronConfig
	Outbox   OutboxConfig
	Payment  PaymentConfig
	Email    EmailConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Loyalty.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"BOUTIQUE_APP_ENV" required:"true"`
	Port         string `envconfig:"BOUTIQUE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"BOUTIQUE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"BOUTIQUE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"BOUTIQUE_DB_DSN"`
	Driver string `envconfig:"BOUTIQUE_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"BOUTIQUE_DB_HOST"`
	Port     int    `envconfig:"BOUTIQUE_DB_PORT" default:"5432"`
	User     string `envconfig:"BOUTIQUE_DB_USER"`
	Password string `envconfig:"BOUTIQUE_DB_PASSWORD"`
	Name     string `envconfig:"BOUTIQUE_DB_NAME"`
	SSLMode  string `envconfig:"BOUTIQUE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BOUTIQUE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BOUTIQUE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BOUTIQUE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BOUTIQUE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"BOUTIQUE_REDIS_URL"`
	Address      string        `envconfig:"BOUTIQUE_REDIS_ADDR"`
	Password     string        `envconfig:"BOUTIQUE_REDIS_PASSWORD"`
	DB           int           `envconfig:"BOUTIQUE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BOUTIQUE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BOUTIQUE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BOUTIQUE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BOUTIQUE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BOUTIQUE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"BOUTIQUE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"BOUTIQUE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"BOUTIQUE_JWT_EXPIRATION_MINUTES" default:"60"`
}

// PackagesConfig holds the open-package aggregation window settings.
type PackagesConfig struct {
	WindowHours            int `envconfig:"BOUTIQUE_PACKAGE_WINDOW_HOURS" default:"72"`
	ClosingWarningHours    int `envconfig:"BOUTIQUE_PACKAGE_CLOSING_WARNING_HOURS" default:"12"`
	MaxAdvisoryWeightGrams int `envconfig:"BOUTIQUE_PACKAGE_MAX_ADVISORY_WEIGHT_GRAMS" default:"20000"`
}

// Window returns the fixed aggregation window duration.
func (p PackagesConfig) Window() time.Duration {
	return time.Duration(p.WindowHours) * time.Hour
}

// ClosingWarningLead returns how long before the deadline the warning fires.
func (p PackagesConfig) ClosingWarningLead() time.Duration {
	return time.Duration(p.ClosingWarningHours) * time.Hour
}

// LoyaltyConfig drives cashback earning and the promotional gift threshold.
type LoyaltyConfig struct {
	CashbackRatePercent string `envconfig:"BOUTIQUE_LOYALTY_CASHBACK_RATE_PERCENT" default:"5"`
	GiftThresholdEuros  string `envconfig:"BOUTIQUE_LOYALTY_GIFT_THRESHOLD_EUROS" default:"69"`
	GiftValueEuros      string `envconfig:"BOUTIQUE_LOYALTY_GIFT_VALUE_EUROS" default:"10"`

	cashbackRate  decimal.Decimal
	giftThreshold decimal.Decimal
	giftValue     decimal.Decimal
}

// NewLoyaltyConfig builds a LoyaltyConfig from raw values without going
// through envconfig. Used where the environment is not the source.
func NewLoyaltyConfig(ratePercent, thresholdEuros, valueEuros string) (LoyaltyConfig, error) {
	cfg := LoyaltyConfig{
		CashbackRatePercent: ratePercent,
		GiftThresholdEuros:  thresholdEuros,
		GiftValueEuros:      valueEuros,
	}
	if err := cfg.validate(); err != nil {
		return LoyaltyConfig{}, err
	}
	return cfg, nil
}

func (l *LoyaltyConfig) validate() error {
	rate, err := decimal.NewFromString(l.CashbackRatePercent)
	if err != nil || rate.IsNegative() {
		return fmt.Errorf("invalid cashback rate %q", l.CashbackRatePercent)
	}
	threshold, err := decimal.NewFromString(l.GiftThresholdEuros)
	if err != nil || threshold.IsNegative() {
		return fmt.Errorf("invalid gift threshold %q", l.GiftThresholdEuros)
	}
	value, err := decimal.NewFromString(l.GiftValueEuros)
	if err != nil || value.IsNegative() {
		return fmt.Errorf("invalid gift value %q", l.GiftValueEuros)
	}
	l.cashbackRate = rate.Div(decimal.NewFromInt(100))
	l.giftThreshold = threshold
	l.giftValue = value
	return nil
}

// CashbackRate returns the fraction of an order total earned as loyalty euros.
func (l LoyaltyConfig) CashbackRate() decimal.Decimal { return l.cashbackRate }

// GiftThreshold returns the order total above which the promotional gift is granted.
func (l LoyaltyConfig) GiftThreshold() decimal.Decimal { return l.giftThreshold }

// GiftValue returns the value deducted when a gift must be clawed back.
func (l LoyaltyConfig) GiftValue() decimal.Decimal { return l.giftValue }

type ReturnsConfig struct {
	EligibilityDays int `envconfig:"BOUTIQUE_RETURN_ELIGIBILITY_DAYS" default:"14"`
}

// EligibilityWindow returns how long after delivery a return may be declared.
func (r ReturnsConfig) EligibilityWindow() time.Duration {
	return time.Duration(r.EligibilityDays) * 24 * time.Hour
}

type CronConfig struct {
	Interval time.Duration `envconfig:"BOUTIQUE_CRON_INTERVAL" default:"5m"`
	LockTTL  time.Duration `envconfig:"BOUTIQUE_CRON_LOCK_TTL" default:"10m"`
}

type OutboxConfig struct {
	BatchSize    int           `envconfig:"BOUTIQUE_OUTBOX_BATCH_SIZE" default:"50"`
	PollInterval time.Duration `envconfig:"BOUTIQUE_OUTBOX_POLL_INTERVAL" default:"5s"`
	MaxAttempts  int           `envconfig:"BOUTIQUE_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type PaymentConfig struct {
	WebhookSecret string `envconfig:"BOUTIQUE_PAYMENT_WEBHOOK_SECRET"`
}

type EmailConfig struct {
	ResendAPIKey string `envconfig:"BOUTIQUE_RESEND_API_KEY"`
	FromAddress  string `envconfig:"BOUTIQUE_EMAIL_FROM" default:"La Boutique de Morgane <bonjour@laboutiquedemorgane.fr>"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range requiredDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
