package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "")
	t.Setenv("CHECKOUT_CURRENCY", "")
	t.Setenv("CHECKOUT_REMOTE_TIMEOUT", "")

	cfg := Load()

	assert.Equal(t, StorageMySQL, cfg.Storage)
	assert.Equal(t, "gbp", cfg.Stripe.Currency)
	assert.Equal(t, 10*time.Second, cfg.Checkout.RemoteTimeout)
	assert.False(t, cfg.Checkout.PriceMatchFallback)
	assert.Equal(t, 5.00, cfg.Checkout.BookingProtectionAmount)
	require.NoError(t, cfg.Validate())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "MEMORY")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,,")
	t.Setenv("CHECKOUT_PRICE_MATCH_FALLBACK", "true")
	t.Setenv("CHECKOUT_REMOTE_TIMEOUT", "3s")
	t.Setenv("RATE_LIMIT_RPS", "2.5")

	cfg := Load()

	assert.Equal(t, StorageMemory, cfg.Storage)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Checkout.PriceMatchFallback)
	assert.Equal(t, 3*time.Second, cfg.Checkout.RemoteTimeout)
	assert.Equal(t, 2.5, cfg.Server.RateLimitRPS)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"unknown storage", func(c *Config) { c.Storage = "postgres" }, "unknown STORAGE_DRIVER"},
		{"missing return url", func(c *Config) { c.Stripe.ReturnURL = "" }, "CHECKOUT_RETURN_URL"},
		{"zero timeout", func(c *Config) { c.Checkout.RemoteTimeout = 0 }, "CHECKOUT_REMOTE_TIMEOUT"},
		{"live kafka without brokers", func(c *Config) {
			c.Kafka.MockMode = false
			c.Kafka.Brokers = nil
		}, "KAFKA_BROKERS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Load()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
