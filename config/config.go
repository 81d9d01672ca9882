package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates all runtime settings for the attendance service.
type Config struct {
	Service    ServiceConfig
	Logging    LoggingConfig
	Database   DatabaseConfig
	Token      TokenConfig
	Attendance AttendanceConfig
	Tracing    TracingConfig
	Profiling  ProfilingConfig
	Shutdown   ShutdownConfig
}

type ServiceConfig struct {
	Name    string
	Version string
	Env     string
	Port    string
}

type LoggingConfig struct {
	Level string
}

type DatabaseConfig struct {
	URL             string
	Host            string
	Port            string
	Name            string
	User            string
	Password        string
	SSLMode         string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	Migrate         bool
}

type TokenConfig struct {
	// Secret keys the check-in token cipher. Required; the service
	// refuses to boot without it.
	Secret string
	// TTLMinutes bounds the lifetime of an issued check-in token.
	TTLMinutes int
}

type AttendanceConfig struct {
	// RequireAllFactors rejects a redemption when any verification
	// factor is reported false, instead of only recording it for audit.
	RequireAllFactors bool
}

type TracingConfig struct {
	Enabled    bool
	Endpoint   string
	SampleRate float64
}

type ProfilingConfig struct {
	Enabled  bool
	Endpoint string
}

type ShutdownConfig struct {
	TimeoutSeconds             int
	ReadinessDrainDelaySeconds int
}

// Load reads configuration from environment variables (optionally .env)
// and applies defaults so the service can boot in any environment.
func Load() *Config {
	_ = godotenv.Load(".env")

	return &Config{
		Service: ServiceConfig{
			Name:    getString("SERVICE_NAME", "attendance-service"),
			Version: getString("SERVICE_VERSION", "dev"),
			Env:     getString("SERVICE_ENV", "development"),
			Port:    getString("SERVICE_PORT", "8080"),
		},
		Logging: LoggingConfig{
			Level: getString("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			Host:            getString("DB_HOST", "localhost"),
			Port:            getString("DB_PORT", "5432"),
			Name:            getString("DB_NAME", "attendance"),
			User:            getString("DB_USER", "attendance"),
			Password:        os.Getenv("DB_PASSWORD"),
			SSLMode:         getString("DB_SSLMODE", "disable"),
			MaxConns:        getInt("DB_MAX_CONNS", 25),
			MinConns:        getInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getDuration("DB_CONN_LIFETIME", time.Hour),
			Migrate:         getBool("DB_MIGRATE", true),
		},
		Token: TokenConfig{
			Secret:     os.Getenv("TOKEN_SECRET"),
			TTLMinutes: getInt("TOKEN_TTL_MINUTES", 15),
		},
		Attendance: AttendanceConfig{
			RequireAllFactors: getBool("ATTENDANCE_REQUIRE_ALL_FACTORS", false),
		},
		Tracing: TracingConfig{
			Enabled:    getBool("TRACING_ENABLED", false),
			Endpoint:   getString("TRACING_ENDPOINT", "localhost:4318"),
			SampleRate: getFloat("TRACING_SAMPLE_RATE", 1.0),
		},
		Profiling: ProfilingConfig{
			Enabled:  getBool("PROFILING_ENABLED", false),
			Endpoint: getString("PROFILING_ENDPOINT", "http://localhost:4040"),
		},
		Shutdown: ShutdownConfig{
			TimeoutSeconds:             getInt("SHUTDOWN_TIMEOUT_SECONDS", 15),
			ReadinessDrainDelaySeconds: getInt("READINESS_DRAIN_DELAY_SECONDS", 0),
		},
	}
}

// Validate checks settings the service cannot run without.
func (c *Config) Validate() error {
	if c.Token.Secret == "" {
		return fmt.Errorf("TOKEN_SECRET is required")
	}
	if c.Token.TTLMinutes <= 0 {
		return fmt.Errorf("TOKEN_TTL_MINUTES must be positive, got %d", c.Token.TTLMinutes)
	}
	if c.Database.URL == "" && c.Database.Password == "" && c.Service.Env == "production" {
		return fmt.Errorf("DATABASE_URL or DB_PASSWORD is required in production")
	}
	return nil
}

// DatabaseDSN returns the connection string, preferring DATABASE_URL.
func (c *Config) DatabaseDSN() string {
	if c.Database.URL != "" {
		return c.Database.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// GetTokenTTLDuration returns the check-in token lifetime.
func (c *Config) GetTokenTTLDuration() time.Duration {
	return time.Duration(c.Token.TTLMinutes) * time.Minute
}

// GetShutdownTimeoutDuration returns the graceful shutdown timeout.
func (c *Config) GetShutdownTimeoutDuration() time.Duration {
	return time.Duration(c.Shutdown.TimeoutSeconds) * time.Second
}

// GetReadinessDrainDelayDuration returns how long to fail readiness
// before shutting the HTTP server down.
func (c *Config) GetReadinessDrainDelayDuration() time.Duration {
	return time.Duration(c.Shutdown.ReadinessDrainDelaySeconds) * time.Second
}

func getString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
