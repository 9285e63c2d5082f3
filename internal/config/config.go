// Package config loads and validates application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Storage backends.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Session backends.
const (
	SessionsMemory = "memory"
	SessionsRedis  = "redis"
)

// Config holds all application configuration.
type Config struct {
	// Server settings.
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Database settings.
	DBDriver    string // "sqlite" or "postgres"
	SQLitePath  string
	DatabaseURL string // Required when DBDriver is postgres.

	// Sessions.
	SessionBackend string // "memory" or "redis"
	RedisURL       string
	SessionTTL     time.Duration // 0 means sessions never expire.

	// AdminBypassToken, when set, is accepted as an admin session. Legacy
	// dashboards depend on it; leave empty in production.
	AdminBypassToken string

	// LegacyStressErrors restores the old 200 + "Error: ..." response for
	// invalid vitals instead of 422.
	LegacyStressErrors bool

	// Login throttling per client IP.
	AuthRateLimit float64 // requests per second; 0 disables
	AuthRateBurst int

	// MQTT alert publishing. Disabled when MQTTBroker is empty.
	MQTTBroker     string
	MQTTClientID   string
	MQTTUsername   string
	MQTTPassword   string
	MQTTAlertTopic string

	// OTEL settings.
	OTELEndpoint string
	OTELInsecure bool
	ServiceName  string

	// Operational settings.
	LogLevel            string
	MaxRequestBodyBytes int64
}

// Load reads configuration from environment variables with sensible defaults.
// Every malformed variable is reported, not just the first.
func Load() (Config, error) {
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	cfg := Config{
		DBDriver:         envStr("MINDMATE_DB_DRIVER", DriverSQLite),
		SQLitePath:       envStr("MINDMATE_SQLITE_PATH", "mindmate.db"),
		DatabaseURL:      envStr("DATABASE_URL", ""),
		SessionBackend:   envStr("MINDMATE_SESSION_BACKEND", SessionsMemory),
		RedisURL:         envStr("REDIS_URL", "redis://localhost:6379/0"),
		AdminBypassToken: envStr("MINDMATE_ADMIN_BYPASS_TOKEN", ""),
		MQTTBroker:       envStr("MQTT_BROKER", ""),
		MQTTClientID:     envStr("MQTT_CLIENT_ID", "mindmate"),
		MQTTUsername:     envStr("MQTT_USERNAME", ""),
		MQTTPassword:     envStr("MQTT_PASSWORD", ""),
		MQTTAlertTopic:   envStr("MQTT_ALERT_TOPIC", "mindmate/alerts"),
		OTELEndpoint:     envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		ServiceName:      envStr("OTEL_SERVICE_NAME", "mindmate"),
		LogLevel:         envStr("MINDMATE_LOG_LEVEL", "info"),
	}

	var err error
	cfg.Port, err = envInt("MINDMATE_PORT", 8000)
	collect(err)
	cfg.ReadTimeout, err = envDuration("MINDMATE_READ_TIMEOUT", 30*time.Second)
	collect(err)
	cfg.WriteTimeout, err = envDuration("MINDMATE_WRITE_TIMEOUT", 30*time.Second)
	collect(err)
	cfg.SessionTTL, err = envDuration("MINDMATE_SESSION_TTL", 0)
	collect(err)
	cfg.LegacyStressErrors, err = envBool("MINDMATE_LEGACY_STRESS_ERRORS", false)
	collect(err)
	cfg.AuthRateLimit, err = envFloat("MINDMATE_AUTH_RATE_LIMIT", 1)
	collect(err)
	cfg.AuthRateBurst, err = envInt("MINDMATE_AUTH_RATE_BURST", 10)
	collect(err)
	cfg.OTELInsecure, err = envBool("OTEL_EXPORTER_OTLP_INSECURE", false)
	collect(err)
	maxBody, err := envInt("MINDMATE_MAX_REQUEST_BODY_BYTES", 1*1024*1024) // 1 MB default
	collect(err)
	cfg.MaxRequestBodyBytes = int64(maxBody)

	if len(errs) > 0 {
		return Config{}, fmt.Errorf("config: %w", errors.Join(errs...))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that required configuration is present and consistent.
func (c Config) Validate() error {
	switch c.DBDriver {
	case DriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("config: MINDMATE_SQLITE_PATH is required for the sqlite driver")
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("config: DATABASE_URL is required for the postgres driver")
		}
	default:
		return fmt.Errorf("config: MINDMATE_DB_DRIVER must be %q or %q, got %q", DriverSQLite, DriverPostgres, c.DBDriver)
	}

	switch c.SessionBackend {
	case SessionsMemory:
	case SessionsRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("config: REDIS_URL is required for the redis session backend")
		}
	default:
		return fmt.Errorf("config: MINDMATE_SESSION_BACKEND must be %q or %q, got %q", SessionsMemory, SessionsRedis, c.SessionBackend)
	}

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: MINDMATE_PORT must be between 1 and 65535")
	}
	if c.SessionTTL < 0 {
		return fmt.Errorf("config: MINDMATE_SESSION_TTL must not be negative")
	}
	if c.AuthRateLimit < 0 || c.AuthRateBurst < 0 {
		return fmt.Errorf("config: MINDMATE_AUTH_RATE_LIMIT and MINDMATE_AUTH_RATE_BURST must not be negative")
	}
	if c.MaxRequestBodyBytes <= 0 {
		return fmt.Errorf("config: MINDMATE_MAX_REQUEST_BODY_BYTES must be positive")
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: MINDMATE_LOG_LEVEL must be debug, info, warn or error, got %q", c.LogLevel)
	}
	return nil
}

// SlogLevel maps LogLevel to a slog level. Unknown values mean info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s=%q is not a valid integer", key, v)
	}
	return n, nil
}

func envFloat(key string, defaultVal float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s=%q is not a valid number", key, v)
	}
	return f, nil
}

func envBool(key string, defaultVal bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s=%q is not a valid boolean", key, v)
	}
	return b, nil
}

func envDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s=%q is not a valid duration", key, v)
	}
	return d, nil
}
