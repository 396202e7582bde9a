package config

import (
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	SourceDBPath  string        `env:"SOURCE_DB_PATH" envDefault:"./data/vehicles_raw.db"`
	SourceTimeout time.Duration `env:"SOURCE_TIMEOUT" envDefault:"30s"`

	TargetDriver     string        `env:"TARGET_DRIVER" envDefault:"postgres"`
	TargetSQLitePath string        `env:"TARGET_SQLITE_PATH" envDefault:"./data/vehicles_clean.db"`
	LoadTimeout      time.Duration `env:"LOAD_TIMEOUT" envDefault:"2m"`
	LockPath         string        `env:"LOCK_PATH" envDefault:"./data/vehicles_clean.lock"`

	PostgresHost     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort     string `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER" envDefault:"etl"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" envDefault:"etl123"`
	PostgresDB       string `env:"POSTGRES_DB" envDefault:"vehicles"`
	PostgresSSLMode  string `env:"POSTGRES_SSLMODE" envDefault:"disable"`
	MaxRetries       int    `env:"MAX_RETRIES" envDefault:"5"`

	RulesFile          string  `env:"RULES_FILE"`
	RejectionThreshold float64 `env:"REJECTION_THRESHOLD" envDefault:"0.5"`
	MaxMissingPercent  float64 `env:"MAX_MISSING_PERCENT" envDefault:"50"`

	CSVOutputPath   string `env:"CSV_OUTPUT_PATH"`
	MetricsTextfile string `env:"METRICS_TEXTFILE"`
	LogLevel        string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads the .env file (if any) and parses the environment into a Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	switch c.TargetDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("config: TARGET_DRIVER must be postgres or sqlite, got %q", c.TargetDriver)
	}
	if c.SourceDBPath == "" {
		return fmt.Errorf("config: SOURCE_DB_PATH cannot be empty")
	}
	if c.TargetDriver == "sqlite" && c.TargetSQLitePath == "" {
		return fmt.Errorf("config: TARGET_SQLITE_PATH cannot be empty for the sqlite driver")
	}
	if c.RejectionThreshold <= 0 || c.RejectionThreshold > 1 {
		return fmt.Errorf("config: REJECTION_THRESHOLD must be in (0, 1], got %g", c.RejectionThreshold)
	}
	if c.MaxMissingPercent <= 0 || c.MaxMissingPercent > 100 {
		return fmt.Errorf("config: MAX_MISSING_PERCENT must be in (0, 100], got %g", c.MaxMissingPercent)
	}
	if c.SourceTimeout <= 0 || c.LoadTimeout <= 0 {
		return fmt.Errorf("config: SOURCE_TIMEOUT and LOAD_TIMEOUT must be positive")
	}
	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}
