// Package config provides application configuration loaded from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/diewo77/go-billing/internal/logger"
	"github.com/diewo77/go-billing/internal/paginate"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	App       AppConfig
	Billing   BillingConfig
	Log       logger.Config
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string
	ReadTimeout  int // seconds
	WriteTimeout int // seconds
	IdleTimeout  int // seconds
}

// DatabaseConfig holds connection settings. Driver is "postgres" or "sqlite".
type DatabaseConfig struct {
	Driver     string
	Host       string
	Port       int
	User       string
	Password   string
	DBName     string
	SSLMode    string
	SQLitePath string
	Debug      bool

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Dev        bool
	Migrations bool // run SQL migrations instead of AutoMigrate
	Seed       bool
	// SessionSecret signs session cookies. Required outside dev mode.
	SessionSecret string
}

// MinSessionSecretLen is the shortest SESSION_SECRET accepted outside dev mode.
const MinSessionSecretLen = 32

// BillingConfig tunes the document engine.
type BillingConfig struct {
	QuotationPrefix    string
	InvoicePrefix      string
	DeliveryNotePrefix string
	NumberRetries      int
	Pages              paginate.Capacities
}

// RateLimitConfig configures the request limiter. Rate uses the "<limit>-<period>" format, e.g. "100-M".
type RateLimitConfig struct {
	Enabled  bool
	Rate     string
	RedisURL string
}

// DSN returns the PostgreSQL connection string in key=value format.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// URL returns the PostgreSQL connection string in URL format.
func (d DatabaseConfig) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// Load reads configuration from environment variables.
// It uses sensible defaults for local development.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			ReadTimeout:  getEnvInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvInt("SERVER_WRITE_TIMEOUT", 15),
			IdleTimeout:  getEnvInt("SERVER_IDLE_TIMEOUT", 60),
		},
		Database: DatabaseConfig{
			Driver:          strings.ToLower(getEnv("DB_DRIVER", "postgres")),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "billing"),
			Password:        getEnv("DB_PASSWORD", "billing"),
			DBName:          getEnv("DB_NAME", "billing"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			SQLitePath:      getEnv("DB_SQLITE_PATH", "billing.db"),
			Debug:           getEnvBool("DB_DEBUG", false),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: time.Duration(getEnvInt("DB_CONN_MAX_LIFETIME", 300)) * time.Second,
		},
		App: AppConfig{
			Dev:        getEnvBool("DEV", true),
			Migrations: getEnvBool("MIGRATIONS", false),
			Seed:       getEnvBool("DB_SEED", false),

			SessionSecret: getEnv("SESSION_SECRET", ""),
		},
		Billing: BillingConfig{
			QuotationPrefix:    getEnv("QUOTATION_PREFIX", "QUO"),
			InvoicePrefix:      getEnv("INVOICE_PREFIX", "INV"),
			DeliveryNotePrefix: getEnv("DELIVERY_NOTE_PREFIX", "DN"),
			NumberRetries:      getEnvInt("NUMBER_RETRIES", 3),
			Pages: paginate.Capacities{
				First:  getEnvInt("PAGE_FIRST_ITEMS", paginate.DefaultCapacities.First),
				Middle: getEnvInt("PAGE_MIDDLE_ITEMS", paginate.DefaultCapacities.Middle),
				Last:   getEnvInt("PAGE_LAST_ITEMS", paginate.DefaultCapacities.Last),
			},
		},
		Log: logger.Config{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", "console"),
			TimeFormat: getEnv("LOG_TIME_FORMAT", time.RFC3339),
			Output:     getEnv("LOG_OUTPUT", "stdout"),
		},
		RateLimit: RateLimitConfig{
			Enabled:  getEnvBool("RATE_LIMIT_ENABLED", true),
			Rate:     getEnv("RATE_LIMIT", "300-M"),
			RedisURL: getEnv("REDIS_URL", ""),
		},
	}
}

// Validate reports configuration that would fail later at runtime.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("config: unsupported DB_DRIVER %q", c.Database.Driver)
	}
	if !c.App.Dev && len(c.App.SessionSecret) < MinSessionSecretLen {
		return fmt.Errorf("config: SESSION_SECRET must be set to at least %d characters when DEV is off", MinSessionSecretLen)
	}
	if c.Billing.NumberRetries < 1 {
		return fmt.Errorf("config: NUMBER_RETRIES must be >= 1")
	}
	if c.Billing.QuotationPrefix == "" || c.Billing.InvoicePrefix == "" || c.Billing.DeliveryNotePrefix == "" {
		return fmt.Errorf("config: document prefixes must not be empty")
	}
	if err := c.Billing.Pages.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the integer value of an environment variable or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvBool returns the boolean value of an environment variable or a default.
// Accepts "1", "true", "yes" as true; everything else is false.
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	value = strings.ToLower(value)
	return value == "1" || value == "true" || value == "yes"
}
