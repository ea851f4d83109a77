package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StorageMySQL  = "mysql"
	StorageMemory = "memory"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Storage  string
	Kafka    KafkaConfig
	Redis    RedisConfig
	Stripe   StripeConfig
	Checkout CheckoutConfig
}

type ServerConfig struct {
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RateLimitRPS   float64
	RateLimitBurst int
}

type DatabaseConfig struct {
	Host         string
	Port         string
	Username     string
	Password     string
	Database     string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

type KafkaConfig struct {
	Brokers        []string
	GroupID        string
	MockMode       bool
	OrderTopic     string
	ReconcileTopic string
}

type RedisConfig struct {
	Addr       string
	Password   string
	DB         int
	PendingTTL time.Duration
}

type StripeConfig struct {
	SecretKey string
	ReturnURL string
	Currency  string
}

// CheckoutConfig tunes the reconciliation engine.
type CheckoutConfig struct {
	RemoteTimeout           time.Duration
	PriceMatchFallback      bool
	BookingProtectionAmount float64
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           getEnvOrDefault("SERVER_PORT", ":8085"),
			ReadTimeout:    getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:    getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 100),
			RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 100),
		},
		Database: DatabaseConfig{
			Host:         getEnvOrDefault("DB_HOST", "localhost"),
			Port:         getEnvOrDefault("DB_PORT", "3306"),
			Username:     getEnvOrDefault("DB_USER", "root"),
			Password:     getEnvOrDefault("DB_PASS", "password"),
			Database:     getEnvOrDefault("DB_NAME", "ticket_checkout"),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),
			MaxLifetime:  getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Storage: strings.ToLower(getEnvOrDefault("STORAGE_DRIVER", StorageMySQL)),
		Kafka: KafkaConfig{
			Brokers:        splitCSV(getEnvOrDefault("KAFKA_BROKERS", "localhost:29092")),
			GroupID:        getEnvOrDefault("KAFKA_GROUP_ID", "ticket-checkout"),
			MockMode:       getEnvBool("KAFKA_MOCK_MODE", true),
			OrderTopic:     getEnvOrDefault("KAFKA_ORDER_TOPIC", "order-events"),
			ReconcileTopic: getEnvOrDefault("KAFKA_RECONCILE_TOPIC", "basket-reconcile"),
		},
		Redis: RedisConfig{
			Addr:       getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password:   os.Getenv("REDIS_PASSWORD"),
			DB:         getEnvInt("REDIS_DB", 0),
			PendingTTL: getEnvDuration("RECONCILE_PENDING_TTL", 2*time.Minute),
		},
		Stripe: StripeConfig{
			SecretKey: os.Getenv("STRIPE_SECRET_KEY"),
			ReturnURL: getEnvOrDefault("CHECKOUT_RETURN_URL", "http://localhost:3000/return?session_id={CHECKOUT_SESSION_ID}"),
			Currency:  strings.ToLower(getEnvOrDefault("CHECKOUT_CURRENCY", "gbp")),
		},
		Checkout: CheckoutConfig{
			RemoteTimeout:           getEnvDuration("CHECKOUT_REMOTE_TIMEOUT", 10*time.Second),
			PriceMatchFallback:      getEnvBool("CHECKOUT_PRICE_MATCH_FALLBACK", false),
			BookingProtectionAmount: getEnvFloat("BOOKING_PROTECTION_AMOUNT", 5.00),
		},
	}
}

// Validate reports the first configuration problem that would make the
// service misbehave at runtime.
func (c *Config) Validate() error {
	switch c.Storage {
	case StorageMySQL:
		if c.Database.Database == "" {
			return errors.New("DB_NAME must be set for the mysql storage driver")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.Storage)
	}
	if c.Stripe.ReturnURL == "" {
		return errors.New("CHECKOUT_RETURN_URL must be set")
	}
	if c.Stripe.Currency == "" {
		return errors.New("CHECKOUT_CURRENCY must be set")
	}
	if c.Checkout.RemoteTimeout <= 0 {
		return errors.New("CHECKOUT_REMOTE_TIMEOUT must be positive")
	}
	if c.Checkout.BookingProtectionAmount <= 0 {
		return errors.New("BOOKING_PROTECTION_AMOUNT must be positive")
	}
	if !c.Kafka.MockMode && len(c.Kafka.Brokers) == 0 {
		return errors.New("KAFKA_BROKERS must be set when KAFKA_MOCK_MODE is false")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func splitCSV(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
