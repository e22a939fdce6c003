// Package config reads the cushion configuration from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/etnz/cushion"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds application configuration.
type Config struct {
	DataDir         string
	StateFile       string // relative to DataDir unless absolute
	StorePath       string // SQLite database, empty to keep everything local
	Owner           string
	MonthlyExpenses decimal.Decimal
	Currency        string
	QuoteURL        string
	QuotePath       string
	Port            int
	SyncSchedule    string
	LogLevel        string
	Pretty          bool
	GeminiModel     string
}

// Load reads an optional .env file, then environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		DataDir:      getEnv("CUSHION_DATA_DIR", "."),
		StateFile:    getEnv("CUSHION_STATE_FILE", "cushion.jsonl"),
		StorePath:    getEnv("CUSHION_STORE", ""),
		Owner:        getEnv("CUSHION_OWNER", "local"),
		Currency:     getEnv("CUSHION_CURRENCY", "EUR"),
		QuoteURL:     getEnv("CUSHION_QUOTE_URL", ""),
		QuotePath:    getEnv("CUSHION_QUOTE_PATH", ""),
		Port:         getEnvAsInt("CUSHION_PORT", 8080),
		SyncSchedule: getEnv("CUSHION_SYNC_SCHEDULE", "@every 5m"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		Pretty:       getEnvAsBool("LOG_PRETTY", true),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
	}

	if v := getEnv("CUSHION_MONTHLY_EXPENSES", ""); v != "" {
		d, err := cushion.ParseAmount(v)
		if err != nil {
			return nil, fmt.Errorf("CUSHION_MONTHLY_EXPENSES: %w", err)
		}
		cfg.MonthlyExpenses = d
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration values.
func (c *Config) Validate() error {
	if c.StateFile == "" {
		return fmt.Errorf("CUSHION_STATE_FILE is required")
	}
	if c.Owner == "" {
		return fmt.Errorf("CUSHION_OWNER is required")
	}
	if err := cushion.ValidateCurrency(c.Currency); err != nil {
		return fmt.Errorf("CUSHION_CURRENCY: %w", err)
	}
	if c.MonthlyExpenses.IsNegative() {
		return fmt.Errorf("CUSHION_MONTHLY_EXPENSES must not be negative")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("CUSHION_PORT %d is out of range", c.Port)
	}
	return nil
}

// StatePath returns the path of the state file.
func (c *Config) StatePath() string {
	if filepath.IsAbs(c.StateFile) {
		return c.StateFile
	}
	return filepath.Join(c.DataDir, c.StateFile)
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
