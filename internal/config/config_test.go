package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	// Clear any env vars that might interfere
	for _, key := range []string{"API_BASE_URL", "DATABASE_PATH", "PAGE_SIZE", "MAX_DEPTH", "REQUEST_TIMEOUT", "USERNAME", "LOG_LEVEL"} {
		os.Unsetenv(key)
	}

	cfg := Load()

	if cfg.APIBaseURL != "http://localhost:8000" {
		t.Errorf("APIBaseURL = %q, want \"http://localhost:8000\"", cfg.APIBaseURL)
	}
	if cfg.DatabasePath != "threadview.db" {
		t.Errorf("DatabasePath = %q, want \"threadview.db\"", cfg.DatabasePath)
	}
	if cfg.PageSize != 10 {
		t.Errorf("PageSize = %d, want 10", cfg.PageSize)
	}
	if cfg.MaxDepth != 2 {
		t.Errorf("MaxDepth = %d, want 2", cfg.MaxDepth)
	}
	if cfg.RequestTimeout != 15*time.Second {
		t.Errorf("RequestTimeout = %v, want 15s", cfg.RequestTimeout)
	}
	if cfg.Username != "" {
		t.Errorf("Username = %q, want empty", cfg.Username)
	}
	if cfg.LogLevel != "INFO" {
		t.Errorf("LogLevel = %q, want \"INFO\"", cfg.LogLevel)
	}
}

func TestLoadFromEnv(t *testing.T) {
	// Set env vars
	os.Setenv("API_BASE_URL", "https://forum.example.com/api")
	os.Setenv("DATABASE_PATH", "/tmp/test.db")
	os.Setenv("PAGE_SIZE", "25")
	os.Setenv("REQUEST_TIMEOUT", "3s")
	os.Setenv("USERNAME", "alice")
	defer func() {
		os.Unsetenv("API_BASE_URL")
		os.Unsetenv("DATABASE_PATH")
		os.Unsetenv("PAGE_SIZE")
		os.Unsetenv("REQUEST_TIMEOUT")
		os.Unsetenv("USERNAME")
	}()

	cfg := Load()

	if cfg.APIBaseURL != "https://forum.example.com/api" {
		t.Errorf("APIBaseURL = %q", cfg.APIBaseURL)
	}
	if cfg.DatabasePath != "/tmp/test.db" {
		t.Errorf("DatabasePath = %q, want \"/tmp/test.db\"", cfg.DatabasePath)
	}
	if cfg.PageSize != 25 {
		t.Errorf("PageSize = %d, want 25", cfg.PageSize)
	}
	if cfg.RequestTimeout != 3*time.Second {
		t.Errorf("RequestTimeout = %v, want 3s", cfg.RequestTimeout)
	}
	if cfg.Username != "alice" {
		t.Errorf("Username = %q, want \"alice\"", cfg.Username)
	}
}

func TestGetEnvInvalidValues(t *testing.T) {
	// Invalid or non-positive ints should use default
	os.Setenv("PAGE_SIZE", "not-a-number")
	os.Setenv("MAX_DEPTH", "-3")
	defer os.Unsetenv("PAGE_SIZE")
	defer os.Unsetenv("MAX_DEPTH")

	cfg := Load()
	if cfg.PageSize != 10 {
		t.Errorf("PageSize = %d, want 10 (default on invalid)", cfg.PageSize)
	}
	if cfg.MaxDepth != 2 {
		t.Errorf("MaxDepth = %d, want 2 (default on invalid)", cfg.MaxDepth)
	}
}

func TestGetEnvDurationInvalid(t *testing.T) {
	// Invalid duration should use default
	os.Setenv("REQUEST_TIMEOUT", "invalid")
	defer os.Unsetenv("REQUEST_TIMEOUT")

	cfg := Load()
	if cfg.RequestTimeout != 15*time.Second {
		t.Errorf("RequestTimeout = %v, want 15s (default on invalid)", cfg.RequestTimeout)
	}
}
