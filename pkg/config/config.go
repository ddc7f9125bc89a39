package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: every environment variable is read here and nowhere else
type Config struct {
	// Dashboard API
	Port string
	Env  string // development, staging, production

	// Ranking source
	Numbeo NumbeoConfig

	// Ingestion run
	Ingest IngestConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// NumbeoConfig holds the ranking source configuration
type NumbeoConfig struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
}

// IngestConfig holds the defaults of one ingestion run.
// Every field can be overridden by the collect command flags.
type IngestConfig struct {
	OutputPath string
	Throttle   time.Duration // minimum quiet interval between two page fetches
	StartYear  int
	EndYear    int
	Revision   string // format revision name, "auto" selects by year
}

// Load reads configuration from environment variables
// ⭐ SSOT: the only function that calls os.Getenv()
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8050"),
		Env:  getEnv("ENV", "development"),

		Numbeo: NumbeoConfig{
			BaseURL:   getEnv("NUMBEO_BASE_URL", "https://www.numbeo.com"),
			UserAgent: getEnv("NUMBEO_USER_AGENT", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"),
			Timeout:   getEnvAsDuration("NUMBEO_TIMEOUT", "30s"),
		},

		Ingest: IngestConfig{
			OutputPath: getEnv("INGEST_OUTPUT_PATH", "quality_of_life_index_by_country.csv"),
			Throttle:   getEnvAsDuration("INGEST_THROTTLE", "2s"),
			StartYear:  getEnvAsInt("INGEST_START_YEAR", 2012),
			EndYear:    getEnvAsInt("INGEST_END_YEAR", 2024),
			Revision:   getEnv("INGEST_REVISION", "auto"),
		},

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Years returns the configured year range, inclusive on both ends
func (c *Config) Years() []int {
	if c.Ingest.EndYear < c.Ingest.StartYear {
		return nil
	}
	years := make([]int, 0, c.Ingest.EndYear-c.Ingest.StartYear+1)
	for y := c.Ingest.StartYear; y <= c.Ingest.EndYear; y++ {
		years = append(years, y)
	}
	return years
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Ingest.OutputPath == "" {
		return fmt.Errorf("INGEST_OUTPUT_PATH is required")
	}

	if c.Ingest.StartYear > c.Ingest.EndYear {
		return fmt.Errorf("INGEST_START_YEAR (%d) is after INGEST_END_YEAR (%d)",
			c.Ingest.StartYear, c.Ingest.EndYear)
	}

	if c.Ingest.Throttle < 0 {
		return fmt.Errorf("INGEST_THROTTLE must not be negative")
	}

	return nil
}

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{".env"}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
