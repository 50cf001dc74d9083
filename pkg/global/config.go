package global

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

type Config struct {
	Port     string `envconfig:"PORT" default:"8000"`
	Env      string `envconfig:"ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	MongoURI          string `envconfig:"MONGODB_URI" default:"mongodb://localhost:27017"`
	MongoDatabase     string `envconfig:"MONGODB_DATABASE" default:"storefront"`
	MongoTransactions bool   `envconfig:"MONGODB_TRANSACTIONS" default:"false"`

	RedisAddress  string        `envconfig:"REDIS_ADDRESS" default:"localhost:6379"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	CacheTTL      time.Duration `envconfig:"CACHE_TTL" default:"24h"`

	JWTSecret string        `envconfig:"JWT_ACCESS_SECRET" default:"change-me"`
	JWTTTL    time.Duration `envconfig:"JWT_ACCESS_TTL" default:"24h"`

	Currency           string        `envconfig:"CURRENCY" default:"SAR"`
	InstallationPolicy string        `envconfig:"INSTALLATION_POLICY" default:"reject"`
	UpstreamTimeout    time.Duration `envconfig:"UPSTREAM_TIMEOUT" default:"10s"`
	NotifyTimeout      time.Duration `envconfig:"NOTIFY_TIMEOUT" default:"30s"`
	WebhookLockTTL     time.Duration `envconfig:"WEBHOOK_LOCK_TTL" default:"2m"`

	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"http://localhost:3000,http://localhost:5173"`

	PaymentGateway string        `envconfig:"PAYMENT_GATEWAY" default:"paytabs"`
	PayTabs        PayTabsConfig `envconfig:"PAYTABS"`
	Stripe         StripeConfig  `envconfig:"STRIPE"`
	Mail           MailConfig    `envconfig:"MAIL"`
	Kafka          KafkaConfig   `envconfig:"KAFKA"`
}

type PayTabsConfig struct {
	BaseURL     string `envconfig:"BASE_URL" default:"https://secure.paytabs.sa"`
	ProfileID   int    `envconfig:"PROFILE_ID"`
	ServerKey   string `envconfig:"SERVER_KEY"`
	CallbackURL string `envconfig:"CALLBACK_URL"`
	ReturnURL   string `envconfig:"RETURN_URL"`
}

type StripeConfig struct {
	SecretKey     string `envconfig:"SECRET_KEY"`
	WebhookSecret string `envconfig:"WEBHOOK_SECRET"`
	SuccessURL    string `envconfig:"SUCCESS_URL"`
	CancelURL     string `envconfig:"CANCEL_URL"`
}

type MailConfig struct {
	Host     string `envconfig:"HOST"`
	Port     int    `envconfig:"PORT" default:"587"`
	Username string `envconfig:"USERNAME"`
	Password string `envconfig:"PASSWORD"`
	From     string `envconfig:"FROM" default:"no-reply@storefront.local"`
}

type KafkaConfig struct {
	Brokers []string `envconfig:"BROKERS"`
	Topic   string   `envconfig:"TOPIC" default:"orders.created"`
}

// LoadConfig reads an optional .env file and then the process environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return cfg, errors.Wrap(err, "load .env")
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, errors.Wrap(err, "process env")
	}
	return cfg, nil
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}
