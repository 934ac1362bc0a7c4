// Package config provides centralized configuration management for tabview.
// Settings come from struct-tag defaults, then an optional YAML file, then
// environment variables, and are validated on startup to fail fast on
// misconfiguration.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig    `yaml:"server"`
	Store    StoreConfig     `yaml:"store"`
	Upload   UploadConfig    `yaml:"upload"`
	Parse    ParseConfig     `yaml:"parse"`
	View     ViewConfig      `yaml:"view"`
	Watch    WatchConfig     `yaml:"watch"`
	Rate     RateLimitConfig `yaml:"rate"`
	Security SecurityConfig  `yaml:"security"`
	Logging  LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `yaml:"host" env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `yaml:"port" env:"SERVER_PORT" default:"8080"`

	ReadTimeout time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout stays 0 so SSE progress streams are not cut off
	WriteTimeout time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	IdleTimeout time.Duration `yaml:"idle_timeout" env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout bounds graceful shutdown, including in-flight uploads
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	RequestTimeout time.Duration `yaml:"request_timeout" env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// StoreConfig selects and configures the dataset slot backend.
type StoreConfig struct {
	// Backend is one of: file, postgres, redis, sqlite, memory (default: file)
	Backend string `yaml:"backend" env:"STORE_BACKEND" default:"file"`

	// Dir holds one JSON file per slot for the file backend
	Dir string `yaml:"dir" env:"STORE_DIR" default:"./data"`

	// DatabaseURL is the PostgreSQL connection string for the postgres backend.
	// Supports both DATABASE_URL and DB_URL.
	DatabaseURL     string        `yaml:"database_url" env:"DATABASE_URL" envAlt:"DB_URL"`
	MaxConns        int           `yaml:"max_conns" env:"DB_MAX_CONNS" default:"4"`
	MinConns        int           `yaml:"min_conns" env:"DB_MIN_CONNS" default:"1"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime" env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	RedisAddr     string `yaml:"redis_addr" env:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `yaml:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB       int    `yaml:"redis_db" env:"REDIS_DB" default:"0"`
	RedisPrefix   string `yaml:"redis_prefix" env:"REDIS_PREFIX" default:"tabview:"`

	SQLitePath string `yaml:"sqlite_path" env:"SQLITE_PATH" default:"./data/tabview.db"`

	// QuotaBytes caps one encoded dataset record (default: 5MB)
	QuotaBytes int64 `yaml:"quota_bytes" env:"STORE_QUOTA_BYTES" default:"5242880"`

	MainKey    string `yaml:"main_key" env:"STORE_MAIN_KEY" default:"APP_HR_DATABASE_V1"`
	HistoryKey string `yaml:"history_key" env:"STORE_HISTORY_KEY" default:"APP_HR_HISTORY_V1"`

	// Timeout bounds connecting and each remote operation (default: 5s)
	Timeout time.Duration `yaml:"timeout" env:"STORE_TIMEOUT" default:"5s"`
}

// UploadConfig holds upload processing settings.
type UploadConfig struct {
	// MaxFileSize is the maximum allowed file size in bytes (default: 50MB)
	MaxFileSize int64 `yaml:"max_file_size" env:"UPLOAD_MAX_FILE_SIZE" default:"52428800"`

	// MaxConcurrent is the maximum number of parallel uploads (default: 4)
	MaxConcurrent int `yaml:"max_concurrent" env:"UPLOAD_MAX_CONCURRENT" default:"4"`

	// MaxWaitTime is how long to wait for an upload slot (default: 30s)
	MaxWaitTime time.Duration `yaml:"max_wait_time" env:"UPLOAD_MAX_WAIT_TIME" default:"30s"`

	// Timeout is the maximum duration for parsing and saving one file (default: 5m)
	Timeout time.Duration `yaml:"timeout" env:"UPLOAD_TIMEOUT" default:"5m"`

	// ResultTTL is how long a finished upload stays queryable (default: 5m)
	ResultTTL time.Duration `yaml:"result_ttl" env:"UPLOAD_RESULT_TTL" default:"5m"`

	// AuditCapacity is how many upload and clear events are kept in memory (default: 500)
	AuditCapacity int `yaml:"audit_capacity" env:"UPLOAD_AUDIT_CAPACITY" default:"500"`
}

// ParseConfig holds file decoding settings.
type ParseConfig struct {
	// SheetName is the worksheet read from .xlsx files when present
	SheetName string `yaml:"sheet_name" env:"PARSE_SHEET_NAME" default:"Sheet1"`

	// SheetMarker picks the first worksheet whose name contains it otherwise
	SheetMarker string `yaml:"sheet_marker" env:"PARSE_SHEET_MARKER" default:"dbase"`

	ConvertDateSerials bool `yaml:"convert_date_serials" env:"PARSE_CONVERT_DATE_SERIALS" default:"true"`

	// RawCells skips spreadsheet number formats
	RawCells bool `yaml:"raw_cells" env:"PARSE_RAW_CELLS" default:"false"`
}

// ViewConfig holds table rendering settings.
type ViewConfig struct {
	// DisplayCap is the most rows a table renders (default: 200)
	DisplayCap int `yaml:"display_cap" env:"VIEW_DISPLAY_CAP" default:"200"`
}

// WatchConfig holds drop-folder import settings.
type WatchConfig struct {
	Enabled bool `yaml:"enabled" env:"WATCH_ENABLED" default:"false"`

	// Dir contains one subfolder per dataset kind (main, history)
	Dir string `yaml:"dir" env:"WATCH_DIR" default:"./inbox"`

	// Debounce waits for writes to settle before importing
	Debounce time.Duration `yaml:"debounce" env:"WATCH_DEBOUNCE" default:"750ms"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	Enabled bool `yaml:"enabled" env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `yaml:"requests_per_minute" env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// UploadLimit is requests per minute for upload endpoints (default: 10)
	UploadLimit int `yaml:"upload_limit" env:"RATE_LIMIT_UPLOAD" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `yaml:"trusted_proxies" env:"TRUSTED_PROXIES"`

	EnableCSP bool `yaml:"enable_csp" env:"SECURITY_ENABLE_CSP" default:"true"`

	// RequireAPIKey guards /api with the X-API-Key header
	RequireAPIKey bool     `yaml:"require_api_key" env:"REQUIRE_API_KEY" default:"false"`
	APIKeys       []string `yaml:"api_keys" env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `yaml:"level" env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `yaml:"format" env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
