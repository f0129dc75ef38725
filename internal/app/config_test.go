package app

import (
	"testing"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLoad(t *testing.T) (*Config, error) {
	t.Helper()
	return loadConfig(aconfig.Config{
		EnvPrefix: "SHOP",
		SkipFiles: true,
		SkipFlags: true,
	})
}

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("SHOP_DATABASE_URL", "postgres://localhost/shop")
	t.Setenv("SHOP_AUTH_JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("SHOP_STRIPE_SECRET_KEY", "sk_test")
	t.Setenv("SHOP_STRIPE_WEBHOOK_SECRET", "whsec_test")
}

func TestLoadConfig_Defaults(t *testing.T) {
	setRequired(t)
	t.Setenv("PORT", "")

	cfg, err := testLoad(t)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Addr)
	assert.Equal(t, "usd", cfg.Stripe.Currency)
	assert.Equal(t, uint32(5), cfg.Stripe.FailureThreshold)
	assert.Equal(t, 720*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 15*time.Minute, cfg.Redis.TTL)
	assert.Equal(t, "storefront", cfg.Mongo.Database)
	assert.Equal(t, 100, cfg.RateLimit.Max)
	assert.Equal(t, []string{"*"}, cfg.CORS.Origins)
	assert.Empty(t, cfg.Kafka.Brokers)
}

func TestLoadConfig_Env(t *testing.T) {
	setRequired(t)
	t.Setenv("SHOP_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("SHOP_MAIL_HOST", "smtp.example.com")
	t.Setenv("SHOP_REDIS_TTL", "1m")

	cfg, err := testLoad(t)
	require.NoError(t, err)

	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "smtp.example.com", cfg.Mail.Host)
	assert.Equal(t, time.Minute, cfg.Redis.TTL)
}

func TestLoadConfig_PlatformDefaults(t *testing.T) {
	setRequired(t)
	t.Setenv("SHOP_DATABASE_URL", "")
	t.Setenv("DATABASE_URL", "postgres://platform/db")
	t.Setenv("PORT", "9000")

	cfg, err := testLoad(t)
	require.NoError(t, err)
	assert.Equal(t, "postgres://platform/db", cfg.DatabaseURL)
	assert.Equal(t, "0.0.0.0:9000", cfg.Addr)
}

func TestLoadConfig_Validation(t *testing.T) {
	tests := []struct {
		name  string
		unset string
		want  string
	}{
		{"NoDatabase", "SHOP_DATABASE_URL", "database URL"},
		{"NoJWTSecret", "SHOP_AUTH_JWT_SECRET", "JWT secret"},
		{"NoWebhookSecret", "SHOP_STRIPE_WEBHOOK_SECRET", "webhook secret"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			t.Setenv("DATABASE_URL", "")
			t.Setenv(tt.unset, "")

			_, err := testLoad(t)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
