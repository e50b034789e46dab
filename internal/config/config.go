package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type AppConfig struct {
	Port string

	StoreDriver string
	Database    DatabaseConfig

	LogLevel  string
	LogFormat string

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	CORSAllowOrigins string

	Breaker BreakerConfig

	// MetricsInterval controls how often the active-alert gauge is refreshed
	// (0 = disabled).
	MetricsInterval time.Duration

	// Kafka publishing is disabled when KafkaBrokers is empty.
	KafkaBrokers     []string
	KafkaAlertsTopic string
}

type DatabaseConfig struct {
	// URL, when set, takes precedence over the discrete fields.
	URL      string
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string

	MaxOpenConns int
	MaxIdleConns int
}

// DSN returns the lib/pq connection string.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type BreakerConfig struct {
	Enabled     bool
	Timeout     time.Duration
	MaxFailures int
}

// Load reads configuration from the environment (and a .env file when one
// exists) with defaults for everything unset.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &AppConfig{
		Port:             getenvDefault("PORT", "8080"),
		StoreDriver:      strings.ToLower(getenvDefault("STORE_DRIVER", DriverPostgres)),
		LogLevel:         getenvDefault("LOG_LEVEL", "info"),
		LogFormat:        getenvDefault("LOG_FORMAT", "json"),
		CORSAllowOrigins: getenvDefault("CORS_ALLOW_ORIGINS", "*"),
		KafkaAlertsTopic: getenvDefault("KAFKA_ALERTS_TOPIC", "weather.alerts"),
		KafkaBrokers:     parseList(os.Getenv("KAFKA_BROKERS")),
	}

	if cfg.StoreDriver != DriverPostgres && cfg.StoreDriver != DriverMemory {
		return nil, fmt.Errorf("invalid STORE_DRIVER %q: want %s or %s", cfg.StoreDriver, DriverPostgres, DriverMemory)
	}
	if n, err := strconv.Atoi(cfg.Port); err != nil || n <= 0 || n > 65535 {
		return nil, fmt.Errorf("invalid PORT %q", cfg.Port)
	}
	switch cfg.LogFormat {
	case "json", "text":
	default:
		return nil, fmt.Errorf("invalid LOG_FORMAT %q: want json or text", cfg.LogFormat)
	}

	db, err := loadDatabase()
	if err != nil {
		return nil, err
	}
	cfg.Database = db

	if cfg.ReadTimeout, err = getenvDuration("READ_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.WriteTimeout, err = getenvDuration("WRITE_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = getenvDuration("SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.MetricsInterval, err = getenvDuration("METRICS_INTERVAL", time.Minute); err != nil {
		return nil, err
	}

	if cfg.Breaker.Enabled, err = getenvBool("BREAKER_ENABLED", true); err != nil {
		return nil, err
	}
	if cfg.Breaker.Timeout, err = getenvDuration("BREAKER_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.Breaker.MaxFailures, err = getenvInt("BREAKER_MAX_FAILURES", 5); err != nil {
		return nil, err
	}
	if cfg.Breaker.MaxFailures <= 0 {
		return nil, errors.New("invalid BREAKER_MAX_FAILURES: must be positive")
	}

	return cfg, nil
}

func loadDatabase() (DatabaseConfig, error) {
	db := DatabaseConfig{
		URL:      os.Getenv("DATABASE_URL"),
		Host:     getenvDefault("DB_HOST", "localhost"),
		User:     getenvDefault("DB_USER", "weather"),
		Password: getenvDefault("DB_PASSWORD", "weather"),
		Name:     getenvDefault("DB_NAME", "weather_dashboard"),
		SSLMode:  getenvDefault("DB_SSLMODE", "disable"),
	}

	if db.URL != "" {
		if _, err := url.Parse(db.URL); err != nil {
			return db, fmt.Errorf("invalid DATABASE_URL: %w", err)
		}
	}

	var err error
	if db.Port, err = getenvInt("DB_PORT", 5432); err != nil {
		return db, err
	}
	if db.MaxOpenConns, err = getenvInt("DB_MAX_OPEN_CONNS", 25); err != nil {
		return db, err
	}
	if db.MaxIdleConns, err = getenvInt("DB_MAX_IDLE_CONNS", 5); err != nil {
		return db, err
	}
	return db, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s %q: want a non-negative integer", key, v)
	}
	return n, nil
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s: must not be negative", key)
	}
	return d, nil
}

func getenvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: want true or false", key, v)
	}
	return b, nil
}

func parseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
