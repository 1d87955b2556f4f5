// Package config builds runtime configuration from environment variables so
// main stays lean.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	platformstrings "custos/pkg/platform/strings"
)

// Config captures everything the server needs at startup.
type Config struct {
	Addr          string
	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string

	// OpsTokenHash is a bcrypt hash of the operations token that protects
	// the chain verification endpoint. Empty disables the check (dev only).
	OpsTokenHash string

	// VerificationTimeout bounds calls to the external verification
	// providers; on expiry the fact is treated as unavailable.
	VerificationTimeout time.Duration

	// MockNetworkPhone is the number the built-in mock providers report
	// until real provider integrations land.
	MockNetworkPhone string

	// LeaseTTL and LeaseRetries bound per-asset lease acquisition.
	LeaseTTL     time.Duration
	LeaseRetries int

	Redis    RedisConfig
	Postgres PostgresConfig
	Kafka    KafkaConfig
}

// RedisConfig configures the optional Redis-backed asset lease.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// PostgresConfig configures durable storage. Empty DSN selects the in-memory
// stores.
type PostgresConfig struct {
	DSN string
}

// KafkaConfig configures the optional ledger announcer. No brokers disables it.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	cfg := Config{
		Addr:                envOr("CUSTOS_ADDR", ":8080"),
		JWTSigningKey:       envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		JWTIssuer:           envOr("JWT_ISSUER", "custos"),
		JWTAudience:         envOr("JWT_AUDIENCE", "custos-api"),
		OpsTokenHash:        os.Getenv("OPS_TOKEN_HASH"),
		VerificationTimeout: envDuration("VERIFICATION_TIMEOUT", 3*time.Second),
		MockNetworkPhone:    envOr("VERIFICATION_MOCK_PHONE", "+15555550100"),
		LeaseTTL:            envDuration("ASSET_LEASE_TTL", 10*time.Second),
		LeaseRetries:        envInt("ASSET_LEASE_RETRIES", 3),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Postgres: PostgresConfig{
			DSN: os.Getenv("DATABASE_URL"),
		},
		Kafka: KafkaConfig{
			Topic: envOr("KAFKA_AUDIT_TOPIC", "custos.audit.records"),
		},
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = platformstrings.DedupeAndTrim(strings.Split(brokers, ","))
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
