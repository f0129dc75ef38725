package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (SHOP_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `env:"DATABASE_URL" usage:"PostgreSQL connection URL (SHOP_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	ImageBaseURL string `env:"IMAGE_BASE_URL" default:"" usage:"Base URL for product images (e.g. https://cdn.example.com/images)" flag:"image-base-url"`
	Mongo        MongoConfig
	Redis        RedisConfig
	Stripe       StripeConfig
	Auth         AuthConfig
	Mail         MailConfig
	Kafka        KafkaConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// MongoConfig locates the cart database. Carts are kept in memory when URI
// is empty.
type MongoConfig struct {
	URI      string `env:"URI" default:"" usage:"MongoDB connection URI for carts"`
	Database string `default:"storefront" usage:"MongoDB database name"`
}

// RedisConfig controls the cart cache. Caching is off when Addr is empty.
type RedisConfig struct {
	Addr     string        `default:"" usage:"Redis address for the cart cache"`
	Password string        `default:"" usage:"Redis password"`
	TTL      time.Duration `env:"TTL" default:"15m" usage:"Cart cache entry lifetime"`
	Jitter   time.Duration `default:"5m" usage:"Random extra lifetime per entry"`
}

// StripeConfig configures the payment gateway.
type StripeConfig struct {
	SecretKey        string        `usage:"Stripe secret API key"`
	WebhookSecret    string        `usage:"Stripe webhook signing secret"`
	Currency         string        `default:"usd" usage:"ISO currency code for payment intents"`
	FailureThreshold uint32        `default:"5" usage:"Consecutive gateway failures that open the breaker"`
	OpenTimeout      time.Duration `default:"30s" usage:"How long the breaker stays open"`
}

// AuthConfig configures session tokens and API keys.
type AuthConfig struct {
	JWTSecret    string        `env:"JWT_SECRET" usage:"HMAC secret for session tokens" flag:"jwt-secret"`
	TokenTTL     time.Duration `env:"TOKEN_TTL" default:"720h" usage:"Session lifetime"`
	APIKeyPepper string        `env:"API_KEY_PEPPER" usage:"HMAC pepper for API key hashing (SHOP_AUTH_API_KEY_PEPPER)" flag:"api-key-pepper"`
	SecureCookie bool          `default:"false" usage:"Mark the session cookie Secure"`
}

// MailConfig configures order e-mails. Mail is off when Host is empty.
type MailConfig struct {
	Host     string `default:"" usage:"SMTP host"`
	Port     int    `default:"587" usage:"SMTP port"`
	Username string `default:"" usage:"SMTP username"`
	Password string `default:"" usage:"SMTP password"`
	From     string `default:"Storefront <orders@localhost>" usage:"Sender address"`
	Operator string `default:"" usage:"Address notified about every paid order"`
}

// KafkaConfig configures order event publishing. Publishing is off when no
// brokers are set.
type KafkaConfig struct {
	Brokers []string `usage:"Kafka broker addresses"`
	Topic   string   `default:"orders" usage:"Topic for order events"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	return loadConfig(aconfig.Config{
		EnvPrefix: "SHOP",
		Files:     []string{"config.yaml", "/etc/storefront/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
}

func loadConfig(ac aconfig.Config) (*Config, error) {
	var cfg Config
	if err := aconfig.LoaderFor(&cfg, ac).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.DatabaseURL == "":
		return errors.New("database URL is required: set SHOP_DATABASE_URL or DATABASE_URL")
	case len(c.Auth.JWTSecret) < 32:
		return errors.New("auth JWT secret must be at least 32 bytes: set SHOP_AUTH_JWT_SECRET")
	case c.Stripe.SecretKey == "" || c.Stripe.WebhookSecret == "":
		return errors.New("stripe secret key and webhook secret are required")
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's SHOP_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
