package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Storage drivers
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds application configuration
type Config struct {
	Port          string
	DBConn        string
	StorageDriver string
	LogLevel      string
	JWTSecret     string

	AccrualSchedule   string
	CarryoverSchedule string
	Timezone          string
	OverdueGraceDays  int

	NotifyEnabled bool
	SMTPHost      string
	SMTPPort      string
	SMTPUsername  string
	SMTPPassword  string
	SenderEmail   string
}

// NewConfig loads configuration from environment variables. A .env file in
// the working directory is read first when present; real env vars win.
func NewConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		DBConn:            getEnv("DB_CONN", "host=localhost port=5436 user=test password=test dbname=budget sslmode=disable"),
		StorageDriver:     strings.ToLower(getEnv("STORAGE_DRIVER", DriverPostgres)),
		LogLevel:          getEnv("LOG_LEVEL", "INFO"),
		JWTSecret:         getEnv("JWT_SECRET", "secret"),
		AccrualSchedule:   getEnv("ACCRUAL_SCHEDULE", "0 15 2 * * *"),
		CarryoverSchedule: getEnv("CARRYOVER_SCHEDULE", "0 30 2 * * *"),
		Timezone:          getEnv("TIMEZONE", "UTC"),
		SMTPHost:          getEnv("SMTP_HOST", "localhost"),
		SMTPPort:          getEnv("SMTP_PORT", "25"),
		SMTPUsername:      getEnv("SMTP_USERNAME", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),
		SenderEmail:       getEnv("SENDER_EMAIL", "noreply@budget.local"),
	}

	var err error
	if cfg.NotifyEnabled, err = strconv.ParseBool(getEnv("NOTIFY_ENABLED", "false")); err != nil {
		return nil, fmt.Errorf("NOTIFY_ENABLED: %w", err)
	}
	if cfg.OverdueGraceDays, err = strconv.Atoi(getEnv("OVERDUE_GRACE_DAYS", "0")); err != nil {
		return nil, fmt.Errorf("OVERDUE_GRACE_DAYS: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required values and formats
func (c *Config) Validate() error {
	switch c.StorageDriver {
	case DriverPostgres:
		if c.DBConn == "" {
			return fmt.Errorf("DB_CONN is required")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("STORAGE_DRIVER must be %q or %q, got %q", DriverPostgres, DriverMemory, c.StorageDriver)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.OverdueGraceDays < 0 {
		return fmt.Errorf("OVERDUE_GRACE_DAYS must not be negative")
	}

	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(c.AccrualSchedule); err != nil {
		return fmt.Errorf("ACCRUAL_SCHEDULE: %w", err)
	}
	if _, err := parser.Parse(c.CarryoverSchedule); err != nil {
		return fmt.Errorf("CARRYOVER_SCHEDULE: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.NotifyEnabled && (c.SMTPHost == "" || c.SenderEmail == "") {
		return fmt.Errorf("SMTP_HOST and SENDER_EMAIL are required when NOTIFY_ENABLED is set")
	}
	return nil
}

// Location resolves TIMEZONE, the zone every calendar calculation runs in
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("TIMEZONE: %w", err)
	}
	return loc, nil
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}
