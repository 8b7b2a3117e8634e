package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures everything the server needs from the environment. FromEnv
// keeps main lean; every field has a development-safe default.
type Config struct {
	Addr          string
	PublicBaseURL string
	StorageRoot   string

	PostgresDSN string
	Redis       RedisConfig

	KafkaBrokers []string
	AuditTopic   string

	JWTSigningKey string

	Ledger LedgerConfig
}

// RedisConfig carries connection tuning for the ledger lookup cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	LookupTTL    time.Duration
}

// LedgerConfig carries the timeout/retry policy for ledger calls. Per the
// concurrency model these are the only operations with an explicit policy;
// file and hash work is local and never retried internally.
type LedgerConfig struct {
	CallTimeout     time.Duration
	RegisterRetries int
	RetryBackoff    time.Duration
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	cfg := Config{
		Addr:          envOr("VERISTAMP_ADDR", ":8080"),
		PublicBaseURL: envOr("VERISTAMP_BASE_URL", "http://localhost:8080"),
		StorageRoot:   envOr("VERISTAMP_STORAGE_ROOT", "./data/documents"),
		PostgresDSN:   os.Getenv("VERISTAMP_POSTGRES_DSN"),
		Redis: RedisConfig{
			URL:          os.Getenv("VERISTAMP_REDIS_URL"),
			PoolSize:     envIntOr("VERISTAMP_REDIS_POOL_SIZE", 10),
			MinIdleConns: envIntOr("VERISTAMP_REDIS_MIN_IDLE", 2),
			DialTimeout:  envDurationOr("VERISTAMP_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDurationOr("VERISTAMP_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDurationOr("VERISTAMP_REDIS_WRITE_TIMEOUT", 3*time.Second),
			LookupTTL:    envDurationOr("VERISTAMP_LEDGER_CACHE_TTL", 5*time.Minute),
		},
		AuditTopic:    envOr("VERISTAMP_AUDIT_TOPIC", "veristamp.audit"),
		JWTSigningKey: os.Getenv("VERISTAMP_JWT_SIGNING_KEY"),
		Ledger: LedgerConfig{
			CallTimeout:     envDurationOr("VERISTAMP_LEDGER_TIMEOUT", 15*time.Second),
			RegisterRetries: envIntOr("VERISTAMP_LEDGER_REGISTER_RETRIES", 2),
			RetryBackoff:    envDurationOr("VERISTAMP_LEDGER_RETRY_BACKOFF", 2*time.Second),
		},
	}

	if brokers := os.Getenv("VERISTAMP_KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}

	if cfg.JWTSigningKey == "" {
		// Development default - must be overridden in production.
		cfg.JWTSigningKey = "dev-secret-key-change-in-production"
	}

	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
