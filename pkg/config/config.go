// Package config loads server configuration from VENDHUB_* environment
// variables with sane defaults for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all server configuration.
type Config struct {
	// HTTP
	ListenAddr      string
	MetricsAddr     string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// Database
	DatabaseURL     string
	DBMaxOpenConns  int
	DBMaxIdleConns  int
	DBConnLifetime  time.Duration
	MigrateOnStart  bool

	// Cache
	CacheEnabled  bool
	RedisURL      string
	RedisPassword string
	RedisDB       int
	AuthzCacheTTL time.Duration

	// Sessions
	SessionTTL           time.Duration
	SessionStore         string // "redis" or "memory"
	SessionPurgeSchedule string // cron expression, empty disables the job

	// Audit
	AuditBackend string // "db", "file" or "none"
	AuditLogPath string

	// Observability
	LogLevel       string
	MetricsEnabled bool
}

// Load reads configuration from the environment.
func Load() *Config {
	return &Config{
		ListenAddr:      getEnv("VENDHUB_LISTEN_ADDR", ":8080"),
		MetricsAddr:     getEnv("VENDHUB_METRICS_ADDR", ":9090"),
		ReadTimeout:     getEnvDuration("VENDHUB_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("VENDHUB_WRITE_TIMEOUT", 15*time.Second),
		ShutdownTimeout: getEnvDuration("VENDHUB_SHUTDOWN_TIMEOUT", 10*time.Second),

		DatabaseURL:    getEnv("VENDHUB_DATABASE_URL", "postgres://localhost:5432/vendhub?sslmode=disable"),
		DBMaxOpenConns: getEnvInt("VENDHUB_DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns: getEnvInt("VENDHUB_DB_MAX_IDLE_CONNS", 5),
		DBConnLifetime: getEnvDuration("VENDHUB_DB_CONN_LIFETIME", 5*time.Minute),
		MigrateOnStart: getEnvBool("VENDHUB_MIGRATE_ON_START", true),

		CacheEnabled:  getEnvBool("VENDHUB_CACHE_ENABLED", true),
		RedisURL:      getEnv("VENDHUB_REDIS_URL", "redis://localhost:6379/0"),
		RedisPassword: getEnv("VENDHUB_REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("VENDHUB_REDIS_DB", 0),
		AuthzCacheTTL: getEnvDuration("VENDHUB_AUTHZ_CACHE_TTL", 30*time.Minute),

		SessionTTL:           getEnvDuration("VENDHUB_SESSION_TTL", 24*time.Hour),
		SessionStore:         getEnv("VENDHUB_SESSION_STORE", "memory"),
		SessionPurgeSchedule: getEnv("VENDHUB_SESSION_PURGE_SCHEDULE", "@every 10m"),

		AuditBackend: getEnv("VENDHUB_AUDIT_BACKEND", "db"),
		AuditLogPath: getEnv("VENDHUB_AUDIT_LOG_PATH", "/var/log/vendhub/audit"),

		LogLevel:       getEnv("VENDHUB_LOG_LEVEL", "info"),
		MetricsEnabled: getEnvBool("VENDHUB_METRICS_ENABLED", true),
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("VENDHUB_DATABASE_URL is required")
	}
	if c.CacheEnabled && c.RedisURL == "" {
		return fmt.Errorf("VENDHUB_REDIS_URL is required when the cache is enabled")
	}
	switch c.SessionStore {
	case "redis", "memory":
	default:
		return fmt.Errorf("invalid VENDHUB_SESSION_STORE %q (want redis or memory)", c.SessionStore)
	}
	if c.SessionStore == "redis" && c.RedisURL == "" {
		return fmt.Errorf("VENDHUB_REDIS_URL is required for the redis session store")
	}
	switch c.AuditBackend {
	case "db", "file", "none":
	default:
		return fmt.Errorf("invalid VENDHUB_AUDIT_BACKEND %q (want db, file or none)", c.AuditBackend)
	}
	if c.AuditBackend == "file" && c.AuditLogPath == "" {
		return fmt.Errorf("VENDHUB_AUDIT_LOG_PATH is required for the file audit backend")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("VENDHUB_SESSION_TTL must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
