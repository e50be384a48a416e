package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Data source
	APIBaseURL     string
	RequestTimeout time.Duration

	// Cache
	DatabasePath string // empty disables the snapshot cache

	// Paging
	PageSize int // replies_per_page
	MaxDepth int // max_depth

	// Identity used for comments and votes
	Username string

	LogLevel string
}

func Load() *Config {
	return &Config{
		APIBaseURL:     getEnv("API_BASE_URL", "http://localhost:8000"),
		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 15*time.Second),
		DatabasePath:   getEnv("DATABASE_PATH", "threadview.db"),
		PageSize:       getEnvInt("PAGE_SIZE", 10),
		MaxDepth:       getEnvInt("MAX_DEPTH", 2),
		Username:       getEnv("USERNAME", ""),
		LogLevel:       getEnv("LOG_LEVEL", "INFO"),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil && i > 0 {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
