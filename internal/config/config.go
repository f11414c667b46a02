// Package config loads the importer's settings from environment variables
// with defaults and validates them on startup.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Import   ImportConfig
	History  HistoryConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`
	Port int    `env:"SERVER_PORT" default:"8080"`

	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`
	IdleTimeout  time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout bounds how long shutdown waits for running imports.
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// StoreConfig selects the document store backend: memory, postgres or redis.
type StoreConfig struct {
	Backend string `env:"STORE_BACKEND" default:"memory"`
}

// DatabaseConfig holds PostgreSQL settings, used when Store.Backend is postgres.
type DatabaseConfig struct {
	// URL supports both DATABASE_URL and DB_URL.
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"20"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"4"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// RedisConfig holds Redis settings, used when Store.Backend is redis.
type RedisConfig struct {
	Addr      string `env:"REDIS_ADDR" default:"localhost:6379"`
	Password  string `env:"REDIS_PASSWORD"`
	DB        int    `env:"REDIS_DB" default:"0"`
	KeyPrefix string `env:"REDIS_KEY_PREFIX" default:"courier:"`
}

// ImportConfig holds import run settings.
type ImportConfig struct {
	// MaxFileSize is the largest accepted file or bundle in bytes (default: 100MB)
	MaxFileSize int64 `env:"IMPORT_MAX_FILE_SIZE" default:"104857600"`

	// MaxConcurrent is the number of import runs allowed at once (default: 5)
	MaxConcurrent int `env:"IMPORT_MAX_CONCURRENT" default:"5"`

	// MaxWaitTime is how long a run waits for a slot (default: 30s)
	MaxWaitTime time.Duration `env:"IMPORT_MAX_WAIT_TIME" default:"30s"`

	// BatchSize is write operations per commit, at most 500 (default: 500)
	BatchSize int `env:"IMPORT_BATCH_SIZE" default:"500"`

	// AllowUpdates is the default for runs that don't say otherwise.
	AllowUpdates bool `env:"IMPORT_ALLOW_UPDATES" default:"true"`

	// IdentifierField is the default canonical field used for identity.
	IdentifierField string `env:"IMPORT_IDENTIFIER_FIELD" default:"id"`

	// VocabularyFile replaces the built-in header vocabulary when set.
	VocabularyFile string `env:"IMPORT_VOCABULARY_FILE"`
}

// HistoryConfig holds settings for the import run history.
type HistoryConfig struct {
	// Enabled records a history entry for every import run (default: true)
	Enabled bool `env:"HISTORY_ENABLED" default:"true"`

	// RetentionDays is days to keep history entries (default: 90)
	RetentionDays int `env:"HISTORY_RETENTION_DAYS" default:"90"`

	// PruneInterval is how often old entries are removed (default: 24h)
	PruneInterval time.Duration `env:"HISTORY_PRUNE_INTERVAL" default:"24h"`
}

// RateLimitConfig holds per-client request limits for the HTTP server.
type RateLimitConfig struct {
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute applies to every route (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// ImportLimit applies to the import routes (default: 10)
	ImportLimit int `env:"RATE_LIMIT_IMPORT" default:"10"`
}

// SecurityConfig holds HTTP security settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of proxy CIDRs whose
	// X-Real-IP and X-Forwarded-For headers are believed.
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// RequireAPIKey rejects API requests without a valid X-API-Key.
	RequireAPIKey bool     `env:"SECURITY_REQUIRE_API_KEY" default:"false"`
	APIKeys       []string `env:"SECURITY_API_KEYS"`

	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// AllowedOrigins lists the dashboard origins allowed to call the API
	// from a browser. Empty disables CORS.
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
