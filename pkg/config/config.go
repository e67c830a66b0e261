package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Backend       BackendConfig
	Import        ImportConfig
	Dashboard     DashboardConfig
	Observability ObservabilityConfig
	Logging       LoggingConfig
}

type ServerConfig struct {
	Host               string
	Port               int
	BaseURL            string
	RateLimitPerSecond int
	RateLimitBurst     int
	CORSOrigins        []string
	ShutdownTimeout    time.Duration
}

type BackendConfig struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	RetryAttempts     int
	// ServiceToken authenticates scheduled jobs that run outside a user request
	ServiceToken string
}

type ImportConfig struct {
	MaxFileSize   int64
	MaxCodeLength int
}

type DashboardConfig struct {
	RefreshInterval time.Duration
	MaxAge          time.Duration
}

type ObservabilityConfig struct {
	MetricsEnabled bool
	MetricsPort    int
}

type LoggingConfig struct {
	Level  string
	Format string
}

// LoadDotEnv loads variables from the given .env files (default ".env") without
// overriding variables already set. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}

	existing := make([]string, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:               getEnv("SERVER_HOST", "localhost"),
			Port:               getEnvAsInt("SERVER_PORT", 8080),
			BaseURL:            getEnv("BASE_URL", "http://localhost:8080"),
			RateLimitPerSecond: getEnvAsInt("SERVER_RATE_LIMIT_PER_SECOND", 100),
			RateLimitBurst:     getEnvAsInt("SERVER_RATE_LIMIT_BURST", 200),
			CORSOrigins:        getEnvAsList("SERVER_CORS_ORIGINS", []string{"http://localhost:3000"}),
			ShutdownTimeout:    getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Backend: BackendConfig{
			BaseURL:           getEnv("BACKEND_BASE_URL", ""),
			Timeout:           getEnvAsDuration("BACKEND_TIMEOUT", 15*time.Second),
			RequestsPerSecond: getEnvAsFloat("BACKEND_REQUESTS_PER_SECOND", 20),
			Burst:             getEnvAsInt("BACKEND_BURST", 40),
			RetryAttempts:     getEnvAsInt("BACKEND_RETRY_ATTEMPTS", 2),
			ServiceToken:      getEnv("BACKEND_SERVICE_TOKEN", ""),
		},
		Import: ImportConfig{
			MaxFileSize:   int64(getEnvAsInt("IMPORT_MAX_FILE_SIZE", 10<<20)),
			MaxCodeLength: getEnvAsInt("IMPORT_MAX_CODE_LENGTH", 10),
		},
		Dashboard: DashboardConfig{
			RefreshInterval: getEnvAsDuration("DASHBOARD_REFRESH_INTERVAL", 5*time.Minute),
			MaxAge:          getEnvAsDuration("DASHBOARD_MAX_AGE", 10*time.Minute),
		},
		Observability: ObservabilityConfig{
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
			MetricsPort:    getEnvAsInt("METRICS_PORT", 9090),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required values and ranges
func (c *Config) Validate() error {
	var errs []error

	if c.Backend.BaseURL == "" {
		errs = append(errs, errors.New("BACKEND_BASE_URL is required"))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("SERVER_PORT %d is out of range", c.Server.Port))
	}
	if c.Server.RateLimitPerSecond <= 0 {
		errs = append(errs, errors.New("SERVER_RATE_LIMIT_PER_SECOND must be positive"))
	}
	if c.Server.RateLimitBurst <= 0 {
		errs = append(errs, errors.New("SERVER_RATE_LIMIT_BURST must be positive"))
	}
	if c.Import.MaxFileSize <= 0 {
		errs = append(errs, errors.New("IMPORT_MAX_FILE_SIZE must be positive"))
	}
	if c.Import.MaxCodeLength <= 0 {
		errs = append(errs, errors.New("IMPORT_MAX_CODE_LENGTH must be positive"))
	}
	if c.Backend.RetryAttempts < 0 {
		errs = append(errs, errors.New("BACKEND_RETRY_ATTEMPTS must not be negative"))
	}
	if c.Observability.MetricsEnabled && c.Observability.MetricsPort == c.Server.Port {
		errs = append(errs, errors.New("METRICS_PORT must differ from SERVER_PORT"))
	}

	return errors.Join(errs...)
}

// Addr returns the host:port the API listens on
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	var values []string
	for _, v := range strings.Split(valueStr, ",") {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	return values
}
