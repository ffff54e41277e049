package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DriverMemory   = "memory"
	DriverCSV      = "csv"
	DriverPostgres = "postgres"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Store    StoreConfig    `yaml:"store"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Logger   LoggerConfig   `yaml:"logger"`
	Security SecurityConfig `yaml:"security"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type StoreConfig struct {
	Driver         string `yaml:"driver"`
	InputDir       string `yaml:"input_dir"`
	OutputDir      string `yaml:"output_dir"`
	PostgresDSN    string `yaml:"postgres_dsn"`
	PostgresSchema string `yaml:"postgres_schema"`
}

type PipelineConfig struct {
	// ReferenceDate pins the "current date" of a run (YYYY-MM-DD). Empty
	// means today.
	ReferenceDate    string        `yaml:"reference_date"`
	RecentWindowDays int           `yaml:"recent_window_days"`
	RunOnStart       bool          `yaml:"run_on_start"`
	RunTimeout       time.Duration `yaml:"run_timeout"`
	SnapshotPath     string        `yaml:"snapshot_path"`
}

type LoggerConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	AddSource bool   `yaml:"add_source"`
}

type SecurityConfig struct {
	EnableRateLimit bool     `yaml:"enable_rate_limit"`
	RateLimitRPS    int      `yaml:"rate_limit_rps"`
	RateLimitBurst  int      `yaml:"rate_limit_burst"`
	AllowedOrigins  []string `yaml:"allowed_origins"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8084,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Store: StoreConfig{
			Driver:         DriverCSV,
			InputDir:       "data",
			OutputDir:      "data/mart",
			PostgresSchema: "public",
		},
		Pipeline: PipelineConfig{
			RecentWindowDays: 90,
			RunOnStart:       true,
			RunTimeout:       5 * time.Minute,
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "json",
		},
		Security: SecurityConfig{
			EnableRateLimit: true,
			RateLimitRPS:    100,
			RateLimitBurst:  10,
			AllowedOrigins:  []string{"http://localhost:8084"},
		},
	}
}

// Load builds the configuration from defaults, the YAML file named by
// CONFIG_FILE (if any), and finally environment variables.
func Load() (*Config, error) {
	return LoadFile(os.Getenv("CONFIG_FILE"))
}

func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Host = getEnvString("SERVER_HOST", c.Server.Host)
	c.Server.Port = getEnvInt("SERVER_PORT", c.Server.Port)
	c.Server.ReadTimeout = getEnvDuration("SERVER_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getEnvDuration("SERVER_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.IdleTimeout = getEnvDuration("SERVER_IDLE_TIMEOUT", c.Server.IdleTimeout)
	c.Server.ShutdownTimeout = getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)

	c.Store.Driver = getEnvString("STORE_DRIVER", c.Store.Driver)
	c.Store.InputDir = getEnvString("STORE_INPUT_DIR", c.Store.InputDir)
	c.Store.OutputDir = getEnvString("STORE_OUTPUT_DIR", c.Store.OutputDir)
	c.Store.PostgresDSN = getEnvString("DATABASE_URL", c.Store.PostgresDSN)
	c.Store.PostgresSchema = getEnvString("STORE_POSTGRES_SCHEMA", c.Store.PostgresSchema)

	c.Pipeline.ReferenceDate = getEnvString("PIPELINE_REFERENCE_DATE", c.Pipeline.ReferenceDate)
	c.Pipeline.RecentWindowDays = getEnvInt("PIPELINE_RECENT_WINDOW_DAYS", c.Pipeline.RecentWindowDays)
	c.Pipeline.RunOnStart = getEnvBool("PIPELINE_RUN_ON_START", c.Pipeline.RunOnStart)
	c.Pipeline.RunTimeout = getEnvDuration("PIPELINE_RUN_TIMEOUT", c.Pipeline.RunTimeout)
	c.Pipeline.SnapshotPath = getEnvString("PIPELINE_SNAPSHOT_PATH", c.Pipeline.SnapshotPath)

	c.Logger.Level = getEnvString("LOG_LEVEL", c.Logger.Level)
	c.Logger.Format = getEnvString("LOG_FORMAT", c.Logger.Format)
	c.Logger.AddSource = getEnvBool("LOG_ADD_SOURCE", c.Logger.AddSource)

	c.Security.EnableRateLimit = getEnvBool("SECURITY_RATE_LIMIT_ENABLED", c.Security.EnableRateLimit)
	c.Security.RateLimitRPS = getEnvInt("SECURITY_RATE_LIMIT_RPS", c.Security.RateLimitRPS)
	c.Security.RateLimitBurst = getEnvInt("SECURITY_RATE_LIMIT_BURST", c.Security.RateLimitBurst)
	c.Security.AllowedOrigins = getEnvStringSlice("SECURITY_ALLOWED_ORIGINS", c.Security.AllowedOrigins)
}

func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server read and write timeouts must be positive")
	}

	validDrivers := []string{DriverMemory, DriverCSV, DriverPostgres}
	if !slices.Contains(validDrivers, c.Store.Driver) {
		return fmt.Errorf("invalid store driver %q, must be one of: %s", c.Store.Driver, strings.Join(validDrivers, ", "))
	}

	switch c.Store.Driver {
	case DriverCSV:
		if c.Store.InputDir == "" || c.Store.OutputDir == "" {
			return fmt.Errorf("csv store needs both input_dir and output_dir")
		}
	case DriverPostgres:
		if c.Store.PostgresDSN == "" {
			return fmt.Errorf("postgres store needs a DSN (DATABASE_URL)")
		}
	}

	if c.Pipeline.ReferenceDate != "" {
		if _, err := time.Parse("2006-01-02", c.Pipeline.ReferenceDate); err != nil {
			return fmt.Errorf("pipeline reference date %q is not YYYY-MM-DD: %w", c.Pipeline.ReferenceDate, err)
		}
	}

	if c.Pipeline.RecentWindowDays < 1 {
		return fmt.Errorf("pipeline recent window must be at least 1 day, got %d", c.Pipeline.RecentWindowDays)
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

// ReferenceTime returns the pinned reference date, or now in UTC.
func (p PipelineConfig) ReferenceTime(now time.Time) time.Time {
	if p.ReferenceDate != "" {
		if t, err := time.Parse("2006-01-02", p.ReferenceDate); err == nil {
			return t
		}
	}
	return now.UTC()
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
		return strings.Split(value, ",")
	}
	return defaultValue
}

func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
