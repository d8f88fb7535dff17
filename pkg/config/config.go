package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Application
	LogLevel string
	HTTPPort string

	// FinX API
	APIKey      string
	APIEndpoint string
	Transport   string // "sync", "concurrent" or "socket"
	HTTPTimeout time.Duration

	// Response cache
	CacheSize                  int
	CacheBackend               string // "lru" or "ristretto"
	CacheKeyIncludesCredential bool

	// Batches
	BatchConcurrency int

	// WebSocket
	WSSSL                   bool
	WSDialTimeout           time.Duration
	WSWriteTimeout          time.Duration
	WSAuthTimeout           time.Duration
	WSPingInterval          time.Duration
	WSReconnectOnCall       bool
	WSReconnectInitialDelay time.Duration
	WSReconnectMaxDelay     time.Duration
	WSReconnectBackoffMult  float64
	WSReconnectMaxAttempts  int

	// Result sink
	SinkMode     string // "console", "csv" or "postgres"
	CSVPath      string
	PostgresHost string
	PostgresPort string
	PostgresUser string
	PostgresPass string
	PostgresDB   string
	PostgresSSL  string
}

// Overrides are explicit values that take precedence over every other source.
type Overrides struct {
	APIKey      string
	APIEndpoint string
	ConfigPath  string // YAML credentials file
	EnvPath     string // .env file
	Transport   string
}

// LoadFromEnv loads configuration from environment variables with defaults.
func LoadFromEnv() (*Config, error) {
	return Load(Overrides{})
}

// Load resolves credentials (see ResolveCredentials), then reads the remaining
// settings from environment variables with defaults.
func Load(o Overrides) (*Config, error) {
	creds, err := ResolveCredentials(o)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		// Application defaults
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
		HTTPPort: getEnvOrDefault("HTTP_PORT", "8080"),

		// FinX API defaults
		APIKey:      creds.APIKey,
		APIEndpoint: creds.APIEndpoint,
		Transport:   getEnvOrDefault("FINX_TRANSPORT", "sync"),
		HTTPTimeout: getDurationOrDefault("FINX_HTTP_TIMEOUT", 30*time.Second),

		// Cache defaults
		CacheSize:                  getIntOrDefault("FINX_CACHE_SIZE", 100),
		CacheBackend:               getEnvOrDefault("FINX_CACHE_BACKEND", "lru"),
		CacheKeyIncludesCredential: getBoolOrDefault("FINX_CACHE_KEY_INCLUDES_CREDENTIAL", false),

		BatchConcurrency: getIntOrDefault("FINX_BATCH_CONCURRENCY", 8),

		// WebSocket defaults
		WSSSL:                   getBoolOrDefault("FINX_WS_SSL", true),
		WSDialTimeout:           getDurationOrDefault("FINX_WS_DIAL_TIMEOUT", 10*time.Second),
		WSWriteTimeout:          getDurationOrDefault("FINX_WS_WRITE_TIMEOUT", 10*time.Second),
		WSAuthTimeout:           getDurationOrDefault("FINX_WS_AUTH_TIMEOUT", 5*time.Second),
		WSPingInterval:          getDurationOrDefault("FINX_WS_PING_INTERVAL", 60*time.Second),
		WSReconnectOnCall:       getBoolOrDefault("FINX_WS_RECONNECT_ON_CALL", false),
		WSReconnectInitialDelay: getDurationOrDefault("FINX_WS_RECONNECT_INITIAL_DELAY", 1*time.Second),
		WSReconnectMaxDelay:     getDurationOrDefault("FINX_WS_RECONNECT_MAX_DELAY", 30*time.Second),
		WSReconnectBackoffMult:  getFloat64OrDefault("FINX_WS_RECONNECT_BACKOFF_MULTIPLIER", 2.0),
		WSReconnectMaxAttempts:  getIntOrDefault("FINX_WS_RECONNECT_MAX_ATTEMPTS", 5),

		// Sink defaults
		SinkMode:     getEnvOrDefault("FINX_SINK", "console"),
		CSVPath:      getEnvOrDefault("FINX_CSV_PATH", "finx_results.csv"),
		PostgresHost: getEnvOrDefault("POSTGRES_HOST", "localhost"),
		PostgresPort: getEnvOrDefault("POSTGRES_PORT", "5432"),
		PostgresUser: getEnvOrDefault("POSTGRES_USER", "finx"),
		PostgresPass: getEnvOrDefault("POSTGRES_PASSWORD", "finx"),
		PostgresDB:   getEnvOrDefault("POSTGRES_DB", "finx"),
		PostgresSSL:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
	}

	if o.Transport != "" {
		cfg.Transport = o.Transport
	}

	err = cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are valid.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT cannot be empty")
	}

	if c.APIKey == "" {
		return fmt.Errorf("FINX_API_KEY cannot be empty")
	}

	u, err := url.Parse(c.APIEndpoint)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("FINX_API_ENDPOINT must be an http(s) URL, got %q", c.APIEndpoint)
	}

	switch c.Transport {
	case "sync", "concurrent", "socket":
	default:
		return fmt.Errorf("FINX_TRANSPORT must be 'sync', 'concurrent' or 'socket', got %q", c.Transport)
	}

	if c.CacheSize <= 0 {
		return fmt.Errorf("FINX_CACHE_SIZE must be positive, got %d", c.CacheSize)
	}

	if c.CacheBackend != "lru" && c.CacheBackend != "ristretto" {
		return fmt.Errorf("FINX_CACHE_BACKEND must be 'lru' or 'ristretto', got %q", c.CacheBackend)
	}

	if c.BatchConcurrency <= 0 {
		return fmt.Errorf("FINX_BATCH_CONCURRENCY must be positive, got %d", c.BatchConcurrency)
	}

	if c.WSAuthTimeout <= 0 {
		return fmt.Errorf("FINX_WS_AUTH_TIMEOUT must be positive, got %v", c.WSAuthTimeout)
	}

	switch c.SinkMode {
	case "console", "csv", "postgres":
	default:
		return fmt.Errorf("FINX_SINK must be 'console', 'csv' or 'postgres', got %q", c.SinkMode)
	}

	return nil
}

func getEnvOrDefault(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	boolVal, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}

	return boolVal
}

func getFloat64OrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	floatVal, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}

	return floatVal
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}

	return duration
}
