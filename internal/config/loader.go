package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileEnv names the environment variable holding an optional YAML file.
const FileEnv = "CONFIG_FILE"

// Load reads configuration using the file named by CONFIG_FILE, if any.
func Load() (*Config, error) {
	return LoadFile(os.Getenv(FileEnv))
}

// LoadFile builds the configuration in three layers: tag defaults, then
// the YAML file at path (skipped when path is empty), then environment
// variables. The result is validated.
func LoadFile(path string) (*Config, error) {
	cfg := &Config{}
	v := reflect.ValueOf(cfg).Elem()

	if err := walk(v, applyDefault); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
	}

	if err := walk(v, applyEnv); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}
	if err := walk(v, checkRequired); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// Defaults returns the configuration built from tag defaults alone,
// ignoring the environment.
func Defaults() *Config {
	cfg := &Config{}
	if err := walk(reflect.ValueOf(cfg).Elem(), applyDefault); err != nil {
		panic(fmt.Sprintf("invalid default tag: %v", err))
	}
	return cfg
}

// MustLoad loads configuration and panics on error.
// Use this only in main() where early termination is desired.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

type fieldFunc func(field reflect.StructField, val reflect.Value) error

// walk visits every settable leaf field that carries an env tag,
// recursing into nested structs.
func walk(v reflect.Value, fn fieldFunc) error {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		val := v.Field(i)
		if !val.CanSet() {
			continue
		}
		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}) {
			if err := walk(val, fn); err != nil {
				return err
			}
			continue
		}
		if field.Tag.Get("env") == "" {
			continue
		}
		if err := fn(field, val); err != nil {
			return err
		}
	}
	return nil
}

func applyDefault(field reflect.StructField, val reflect.Value) error {
	def := field.Tag.Get("default")
	if def == "" {
		return nil
	}
	if err := setField(val, def); err != nil {
		return fmt.Errorf("bad default for %s=%q: %w", field.Tag.Get("env"), def, err)
	}
	return nil
}

// applyEnv overrides the field when the primary or alternate variable is
// non-empty.
func applyEnv(field reflect.StructField, val reflect.Value) error {
	name := field.Tag.Get("env")
	value := os.Getenv(name)
	if value == "" {
		if alt := field.Tag.Get("envAlt"); alt != "" {
			value = os.Getenv(alt)
		}
	}
	if value == "" {
		return nil
	}
	if err := setField(val, value); err != nil {
		return fmt.Errorf("invalid value for %s=%q: %w", name, value, err)
	}
	return nil
}

func checkRequired(field reflect.StructField, val reflect.Value) error {
	if field.Tag.Get("required") == "true" && val.IsZero() {
		return fmt.Errorf("required setting %s is not set", field.Tag.Get("env"))
	}
	return nil
}

// setField sets a reflect.Value from a string based on its type.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.Set(reflect.ValueOf(d))
			return nil
		}
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}
		field.SetInt(i)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}
		var items []string
		for _, p := range strings.Split(value, ",") {
			if p = strings.TrimSpace(p); p != "" {
				items = append(items, p)
			}
		}
		field.Set(reflect.ValueOf(items))

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}
	return nil
}

var validBackends = map[string]bool{"file": true, "postgres": true, "redis": true, "sqlite": true, "memory": true}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	backend := strings.ToLower(c.Store.Backend)
	if !validBackends[backend] {
		errs = append(errs, fmt.Sprintf("STORE_BACKEND (%q) must be one of: file, postgres, redis, sqlite, memory", c.Store.Backend))
	}
	switch backend {
	case "file":
		if c.Store.Dir == "" {
			errs = append(errs, "STORE_DIR is required for the file backend")
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "DATABASE_URL is required for the postgres backend")
		}
		if c.Store.MaxConns < c.Store.MinConns {
			errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
				c.Store.MaxConns, c.Store.MinConns))
		}
	case "redis":
		if c.Store.RedisAddr == "" {
			errs = append(errs, "REDIS_ADDR is required for the redis backend")
		}
	case "sqlite":
		if c.Store.SQLitePath == "" {
			errs = append(errs, "SQLITE_PATH is required for the sqlite backend")
		}
	}
	if c.Store.MainKey == "" || c.Store.HistoryKey == "" {
		errs = append(errs, "STORE_MAIN_KEY and STORE_HISTORY_KEY must be set")
	} else if c.Store.MainKey == c.Store.HistoryKey {
		errs = append(errs, "STORE_MAIN_KEY and STORE_HISTORY_KEY must differ")
	}
	if c.Store.QuotaBytes < 0 {
		errs = append(errs, "STORE_QUOTA_BYTES must be non-negative")
	}

	if c.Upload.MaxFileSize <= 0 {
		errs = append(errs, "UPLOAD_MAX_FILE_SIZE must be positive")
	}
	if c.Upload.MaxConcurrent <= 0 {
		errs = append(errs, "UPLOAD_MAX_CONCURRENT must be positive")
	}
	if c.Upload.MaxWaitTime <= 0 {
		errs = append(errs, "UPLOAD_MAX_WAIT_TIME must be positive")
	}
	if c.Upload.Timeout <= 0 {
		errs = append(errs, "UPLOAD_TIMEOUT must be positive")
	}
	if c.Upload.AuditCapacity <= 0 {
		errs = append(errs, "UPLOAD_AUDIT_CAPACITY must be positive")
	}

	if c.Parse.SheetName == "" && c.Parse.SheetMarker == "" {
		errs = append(errs, "PARSE_SHEET_NAME or PARSE_SHEET_MARKER must be set")
	}

	if c.View.DisplayCap <= 0 {
		errs = append(errs, "VIEW_DISPLAY_CAP must be positive")
	}

	if c.Watch.Enabled && c.Watch.Dir == "" {
		errs = append(errs, "WATCH_DIR is required when WATCH_ENABLED is true")
	}

	if c.Rate.Enabled && c.Rate.RequestsPerMinute <= 0 {
		errs = append(errs, "RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")
	}

	if c.Security.RequireAPIKey && len(c.Security.APIKeys) == 0 {
		errs = append(errs, "REQUIRE_API_KEY is true but API_KEYS is empty; configure at least one API key or disable auth")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// String returns a safe string representation of the config for logging.
// Credentials are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	fmt.Fprintf(&b, "Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port)
	fmt.Fprintf(&b, "Store: {Backend: %q, DatabaseURL: %s, RedisAddr: %q, RedisPassword: %s, QuotaBytes: %d}, ",
		c.Store.Backend, mask(c.Store.DatabaseURL), c.Store.RedisAddr, mask(c.Store.RedisPassword), c.Store.QuotaBytes)
	fmt.Fprintf(&b, "Upload: {MaxFileSize: %d, MaxConcurrent: %d}, ", c.Upload.MaxFileSize, c.Upload.MaxConcurrent)
	fmt.Fprintf(&b, "Parse: {SheetName: %q, SheetMarker: %q}, ", c.Parse.SheetName, c.Parse.SheetMarker)
	fmt.Fprintf(&b, "Watch: {Enabled: %v, Dir: %q}, ", c.Watch.Enabled, c.Watch.Dir)
	fmt.Fprintf(&b, "Rate: {Enabled: %v, RequestsPerMinute: %d}, ", c.Rate.Enabled, c.Rate.RequestsPerMinute)
	fmt.Fprintf(&b, "Security: {RequireAPIKey: %v, APIKeys: %d}, ", c.Security.RequireAPIKey, len(c.Security.APIKeys))
	fmt.Fprintf(&b, "Logging: {Level: %q, Format: %q}", c.Logging.Level, c.Logging.Format)
	b.WriteString("}")
	return b.String()
}

func mask(s string) string {
	if s == "" {
		return "[unset]"
	}
	return "[MASKED]"
}
