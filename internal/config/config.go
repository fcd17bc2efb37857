package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Tally ODBC connection.
	TallyDSN      string
	MaxRows       int
	QueryTimeout  time.Duration
	RetryAttempts int

	// Validation.
	StrictMode bool

	// Policy.
	PolicyFile  string // optional path to policy YAML
	WatchPolicy bool   // hot-reload the policy file on change

	// Logging.
	LogLevel slog.Level

	// Transport.
	Transport       string // "stdio" (default) or "http"
	HTTPAddr        string // listen address for HTTP transport (default ":8080")
	HTTPBearerToken string // required when transport=http

	// Connection pool.
	MaxOpenConns    int           // default: 5
	ConnMaxLifetime time.Duration // default: 30m

	// Observability.
	OTelEnabled bool

	// CLI-only fields (not settable via env vars).
	DryRun   bool   // validate queries but execute nothing
	AuditLog string // path to NDJSON audit log file
}

// Overrides holds CLI flag values that override environment variables.
// Pointer fields distinguish "not set" from zero values.
type Overrides struct {
	TallyDSN        *string
	LogLevel        *string
	MaxRows         *int
	QueryTimeout    *time.Duration
	RetryAttempts   *int
	StrictMode      *bool
	PolicyFile      *string
	WatchPolicy     bool
	Transport       *string
	HTTPAddr        *string
	HTTPBearerToken *string
	MaxOpenConns    *int
	ConnMaxLifetime *time.Duration
	OTelEnabled     bool
	DryRun          bool
	AuditLog        string
}

// Load builds a Config from environment variables, then applies CLI
// overrides, then validates the result.
func Load(overrides Overrides) (*Config, error) {
	cfg := defaults()

	if err := loadEnvVars(cfg); err != nil {
		return nil, err
	}
	if err := applyOverrides(cfg, overrides); err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		TallyDSN:        os.Getenv("TALLY_DSN"),
		MaxRows:         100,
		QueryTimeout:    30 * time.Second,
		RetryAttempts:   3,
		StrictMode:      true,
		Transport:       "stdio",
		HTTPAddr:        ":8080",
		MaxOpenConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
	}
}

func loadEnvVars(cfg *Config) error {
	if v := os.Getenv("MAX_ROWS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid MAX_ROWS value %q: must be a positive integer", v)
		}
		cfg.MaxRows = n
	}

	if v := os.Getenv("QUERY_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid QUERY_TIMEOUT value %q: %w", v, err)
		}
		cfg.QueryTimeout = d
	}

	if v := os.Getenv("RETRY_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid RETRY_ATTEMPTS value %q: must be a positive integer", v)
		}
		cfg.RetryAttempts = n
	}

	if v := os.Getenv("STRICT_MODE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid STRICT_MODE value %q: %w", v, err)
		}
		cfg.StrictMode = b
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(v)
		if err != nil {
			return err
		}
		cfg.LogLevel = level
	}

	cfg.PolicyFile = os.Getenv("POLICY_FILE")

	if v := os.Getenv("WATCH_POLICY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid WATCH_POLICY value %q: %w", v, err)
		}
		cfg.WatchPolicy = b
	}

	if v := os.Getenv("TRANSPORT"); v != "" {
		cfg.Transport = v
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	cfg.HTTPBearerToken = os.Getenv("HTTP_BEARER_TOKEN")

	if v := os.Getenv("OTEL_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid OTEL_ENABLED value %q: %w", v, err)
		}
		cfg.OTelEnabled = b
	}

	return loadPoolEnvVars(cfg)
}

func loadPoolEnvVars(cfg *Config) error {
	if v := os.Getenv("MAX_OPEN_CONNS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid MAX_OPEN_CONNS value %q: must be a positive integer", v)
		}
		cfg.MaxOpenConns = n
	}
	if v := os.Getenv("CONN_MAX_LIFETIME"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid CONN_MAX_LIFETIME value %q: %w", v, err)
		}
		cfg.ConnMaxLifetime = d
	}
	return nil
}

func applyOverrides(cfg *Config, o Overrides) error {
	if o.TallyDSN != nil {
		cfg.TallyDSN = *o.TallyDSN
	}
	if o.LogLevel != nil {
		level, err := parseLogLevel(*o.LogLevel)
		if err != nil {
			return err
		}
		cfg.LogLevel = level
	}
	if o.MaxRows != nil {
		if *o.MaxRows <= 0 {
			return fmt.Errorf("invalid --max-rows value: must be a positive integer")
		}
		cfg.MaxRows = *o.MaxRows
	}
	if o.QueryTimeout != nil {
		cfg.QueryTimeout = *o.QueryTimeout
	}
	if o.RetryAttempts != nil {
		if *o.RetryAttempts <= 0 {
			return fmt.Errorf("invalid --retry-attempts value: must be a positive integer")
		}
		cfg.RetryAttempts = *o.RetryAttempts
	}
	if o.StrictMode != nil {
		cfg.StrictMode = *o.StrictMode
	}
	if o.PolicyFile != nil {
		cfg.PolicyFile = *o.PolicyFile
	}
	if o.Transport != nil {
		cfg.Transport = *o.Transport
	}
	if o.HTTPAddr != nil {
		cfg.HTTPAddr = *o.HTTPAddr
	}
	if o.HTTPBearerToken != nil {
		cfg.HTTPBearerToken = *o.HTTPBearerToken
	}
	if o.MaxOpenConns != nil {
		if *o.MaxOpenConns <= 0 {
			return fmt.Errorf("invalid --max-open-conns value: must be a positive integer")
		}
		cfg.MaxOpenConns = *o.MaxOpenConns
	}
	if o.ConnMaxLifetime != nil {
		cfg.ConnMaxLifetime = *o.ConnMaxLifetime
	}

	cfg.WatchPolicy = cfg.WatchPolicy || o.WatchPolicy
	cfg.OTelEnabled = cfg.OTelEnabled || o.OTelEnabled
	cfg.DryRun = o.DryRun
	cfg.AuditLog = o.AuditLog

	return nil
}

func validate(cfg *Config) error {
	if cfg.TallyDSN == "" && !cfg.DryRun {
		return fmt.Errorf("TALLY_DSN is required (set via env var or --tally-dsn flag)")
	}

	switch cfg.Transport {
	case "stdio", "http":
	default:
		return fmt.Errorf("invalid TRANSPORT value %q: must be \"stdio\" or \"http\"", cfg.Transport)
	}

	if cfg.Transport == "http" && cfg.HTTPBearerToken == "" {
		return fmt.Errorf("HTTP_BEARER_TOKEN is required when transport is \"http\" (set via env var or --http-bearer-token flag)")
	}

	if cfg.WatchPolicy && cfg.PolicyFile == "" {
		return fmt.Errorf("WATCH_POLICY requires POLICY_FILE to be set")
	}

	return nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch s {
	case "debug", "DEBUG":
		return slog.LevelDebug, nil
	case "info", "INFO":
		return slog.LevelInfo, nil
	case "warn", "warning", "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "error", "ERROR":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL value %q: must be debug, info, warn, or error", s)
	}
}
