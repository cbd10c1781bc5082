package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

const (
	SourceMemory = "memory"
	SourceFile   = "file"
	SourceHTTP   = "http"
)

type Config struct {
	Server   ServerConfig
	Sales    SalesConfig
	Logger   LoggerConfig
	Security SecurityConfig
	Metrics  MetricsConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// SalesConfig selects the catalog and where month tables come from. With
// SourceMemory months are synthesized on demand; the other sources read the
// yearly artifacts written by the salesgen command.
type SalesConfig struct {
	CatalogFile  string
	Source       string
	ArtifactDir  string
	ArtifactURL  string
	FetchTimeout time.Duration
	LoadTimeout  time.Duration
	QueryWorkers int
	MaxRangeDays int
	Scale        float64
}

type LoggerConfig struct {
	Level  string
	Format string
}

type SecurityConfig struct {
	EnableRateLimit bool
	RateLimitRPS    int
	RateLimitBurst  int
	AllowedOrigins  []string
	TrustedProxies  []string
}

type MetricsConfig struct {
	Enabled   bool
	Namespace string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnvString("SERVER_HOST", "localhost"),
			Port:            getEnvInt("SERVER_PORT", 8084),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Sales: SalesConfig{
			CatalogFile:  getEnvString("CATALOG_FILE", "data/catalog.csv"),
			Source:       strings.ToLower(getEnvString("SALES_SOURCE", SourceMemory)),
			ArtifactDir:  getEnvString("SALES_ARTIFACT_DIR", "static"),
			ArtifactURL:  getEnvString("SALES_ARTIFACT_URL", ""),
			FetchTimeout: getEnvDuration("SALES_FETCH_TIMEOUT", 10*time.Second),
			LoadTimeout:  getEnvDuration("SALES_LOAD_TIMEOUT", 15*time.Second),
			QueryWorkers: getEnvInt("SALES_QUERY_WORKERS", 8),
			MaxRangeDays: getEnvInt("SALES_MAX_RANGE_DAYS", 366),
			Scale:        getEnvFloat("SALES_SCALE", 2.5),
		},
		Logger: LoggerConfig{
			Level:  getEnvString("LOG_LEVEL", "info"),
			Format: getEnvString("LOG_FORMAT", "json"),
		},
		Security: SecurityConfig{
			EnableRateLimit: getEnvBool("SECURITY_RATE_LIMIT_ENABLED", true),
			RateLimitRPS:    getEnvInt("SECURITY_RATE_LIMIT_RPS", 100),
			RateLimitBurst:  getEnvInt("SECURITY_RATE_LIMIT_BURST", 20),
			AllowedOrigins:  getEnvStringSlice("SECURITY_ALLOWED_ORIGINS", []string{"http://localhost:8084"}),
			TrustedProxies:  getEnvStringSlice("SECURITY_TRUSTED_PROXIES", []string{"127.0.0.1"}),
		},
		Metrics: MetricsConfig{
			Enabled:   getEnvBool("METRICS_ENABLED", true),
			Namespace: getEnvString("METRICS_NAMESPACE", "infocoffee"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	if c.Sales.CatalogFile == "" {
		return fmt.Errorf("catalog file path cannot be empty")
	}

	switch c.Sales.Source {
	case SourceMemory:
	case SourceFile:
		if c.Sales.ArtifactDir == "" {
			return fmt.Errorf("SALES_ARTIFACT_DIR is required for the file source")
		}
	case SourceHTTP:
		if c.Sales.ArtifactURL == "" {
			return fmt.Errorf("SALES_ARTIFACT_URL is required for the http source")
		}
	default:
		return fmt.Errorf("invalid sales source %q, must be one of: %s, %s, %s", c.Sales.Source, SourceMemory, SourceFile, SourceHTTP)
	}

	if c.Sales.QueryWorkers <= 0 {
		return fmt.Errorf("query workers must be positive")
	}

	if c.Sales.MaxRangeDays <= 0 {
		return fmt.Errorf("max range days must be positive")
	}

	if c.Sales.Scale <= 0 {
		return fmt.Errorf("sales scale must be positive")
	}

	if c.Sales.LoadTimeout <= 0 || c.Sales.FetchTimeout <= 0 {
		return fmt.Errorf("sales timeouts must be positive")
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.Logger.Level) {
		return fmt.Errorf("invalid log level %q, must be one of: %s", c.Logger.Level, strings.Join(validLogLevels, ", "))
	}

	validLogFormats := []string{"json", "text"}
	if !slices.Contains(validLogFormats, c.Logger.Format) {
		return fmt.Errorf("invalid log format %q, must be one of: %s", c.Logger.Format, strings.Join(validLogFormats, ", "))
	}

	if c.Security.RateLimitRPS <= 0 {
		return fmt.Errorf("rate limit RPS must be positive")
	}

	if c.Security.RateLimitBurst <= 0 {
		return fmt.Errorf("rate limit burst must be positive")
	}

	return nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}

func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
