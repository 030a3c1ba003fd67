package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port      string
	DBConn    string
	LogLevel  string
	JWTSecret string
	TokenTTL  time.Duration

	// System principal seeded at startup; the only caller allowed to
	// originate funds.
	SystemUserName     string
	SystemUserEmail    string
	SystemUserPassword string

	// Pending idempotency reservations older than this are released by the
	// janitor.
	IdempotencyTTL time.Duration

	// Kafka outbox publishing; disabled when KafkaBrokers is empty.
	KafkaBrokers       string
	TransactionsTopic  string
	OutboxPollInterval time.Duration

	// SMTP notifications; disabled when SMTPHost is empty.
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SenderEmail  string
}

// NewConfig loads configuration from environment variables
func NewConfig() (*Config, error) {
	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		DBConn:             getEnv("DB_CONN", "host=localhost port=5432 user=ledger password=ledger dbname=ledger sslmode=disable"),
		LogLevel:           getEnv("LOG_LEVEL", "INFO"),
		JWTSecret:          getEnv("JWT_SECRET", "secret"),
		TokenTTL:           getEnvDuration("TOKEN_TTL", 24*time.Hour),
		SystemUserName:     getEnv("SYSTEM_USER_NAME", "Ledger System"),
		SystemUserEmail:    getEnv("SYSTEM_USER_EMAIL", "system@ledger.local"),
		SystemUserPassword: getEnv("SYSTEM_USER_PASSWORD", ""),
		IdempotencyTTL:     getEnvDuration("IDEMPOTENCY_TTL", 15*time.Minute),
		KafkaBrokers:       getEnv("KAFKA_BROKERS", ""),
		TransactionsTopic:  getEnv("KAFKA_TRANSACTIONS_TOPIC", "ledger.transactions"),
		OutboxPollInterval: getEnvDuration("OUTBOX_POLL_INTERVAL", 2*time.Second),
		SMTPHost:           getEnv("SMTP_HOST", ""),
		SMTPPort:           getEnv("SMTP_PORT", "587"),
		SMTPUsername:       getEnv("SMTP_USERNAME", ""),
		SMTPPassword:       getEnv("SMTP_PASSWORD", ""),
		SenderEmail:        getEnv("SENDER_EMAIL", "noreply@ledger.local"),
	}

	if cfg.DBConn == "" {
		return nil, fmt.Errorf("DB_CONN is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}

// KafkaBrokerList splits the configured broker string; empty means outbox
// publishing is disabled.
func (c *Config) KafkaBrokerList() []string {
	if c.KafkaBrokers == "" {
		return nil
	}
	return strings.Split(c.KafkaBrokers, ",")
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultVal
}
