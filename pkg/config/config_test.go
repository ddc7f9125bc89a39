package config

import (
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	// Check defaults
	if cfg.Port != "8050" {
		t.Errorf("Expected Port to be 8050, got %s", cfg.Port)
	}

	if cfg.Env != "development" {
		t.Errorf("Expected Env to be development, got %s", cfg.Env)
	}

	if cfg.Ingest.Throttle != 2*time.Second {
		t.Errorf("Expected Throttle to be 2s, got %v", cfg.Ingest.Throttle)
	}

	if cfg.Ingest.Revision != "auto" {
		t.Errorf("Expected Revision to be auto, got %s", cfg.Ingest.Revision)
	}
}

func TestLoadWithCustomValues(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("ENV", "production")
	t.Setenv("INGEST_START_YEAR", "2020")
	t.Setenv("INGEST_END_YEAR", "2022")
	t.Setenv("INGEST_THROTTLE", "500ms")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Port != "9000" {
		t.Errorf("Expected Port to be 9000, got %s", cfg.Port)
	}

	if cfg.Env != "production" {
		t.Errorf("Expected Env to be production, got %s", cfg.Env)
	}

	if cfg.Ingest.Throttle != 500*time.Millisecond {
		t.Errorf("Expected Throttle to be 500ms, got %v", cfg.Ingest.Throttle)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("Expected LogLevel to be debug, got %s", cfg.LogLevel)
	}

	years := cfg.Years()
	if len(years) != 3 || years[0] != 2020 || years[2] != 2022 {
		t.Errorf("Expected years 2020..2022, got %v", years)
	}
}

func TestValidateInvalidEnv(t *testing.T) {
	t.Setenv("ENV", "invalid")

	_, err := Load()
	if err == nil {
		t.Error("Expected error when ENV is invalid, got nil")
	}
}

func TestValidateYearRange(t *testing.T) {
	t.Setenv("INGEST_START_YEAR", "2024")
	t.Setenv("INGEST_END_YEAR", "2012")

	_, err := Load()
	if err == nil {
		t.Error("Expected error when start year is after end year, got nil")
	}
}

func TestGetEnvAsDuration(t *testing.T) {
	t.Setenv("TEST_DURATION", "2h")

	duration := getEnvAsDuration("TEST_DURATION", "1h")
	expected := 2 * time.Hour

	if duration != expected {
		t.Errorf("Expected duration to be %v, got %v", expected, duration)
	}

	t.Setenv("TEST_DURATION", "soon")
	if got := getEnvAsDuration("TEST_DURATION", "1h"); got != time.Hour {
		t.Errorf("Expected fallback duration 1h, got %v", got)
	}
}

func TestGetEnvAsInt(t *testing.T) {
	t.Setenv("TEST_INT", "100")

	value := getEnvAsInt("TEST_INT", 50)
	if value != 100 {
		t.Errorf("Expected value to be 100, got %d", value)
	}
}

func TestYearsReversedRange(t *testing.T) {
	cfg := &Config{Ingest: IngestConfig{StartYear: 2024, EndYear: 2012}}
	if years := cfg.Years(); len(years) != 0 {
		t.Errorf("Expected no years for a reversed range, got %v", years)
	}
}
