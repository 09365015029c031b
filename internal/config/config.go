package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"loanservice/internal/logger"
)

// Config carries everything cmd/main.go needs to wire the service.
type Config struct {
	ServerAddr  string
	DatabaseURL string
	LogMode     string

	UserServiceURL string
	BookServiceURL string

	BreakerTimeout        time.Duration
	BreakerErrorThreshold int // failure percentage that trips the breaker
	BreakerResetTimeout   time.Duration
}

// Load reads configuration from the environment. A .env file is honored when
// present but never required.
func Load(log *logger.Logger) (*Config, error) {
	if err := godotenv.Load(); err == nil {
		log.Debug("loaded environment from .env file")
	}

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	return &Config{
		ServerAddr:  GetEnv("SERVER_ADDR", ":8083", log),
		DatabaseURL: dsn,
		LogMode:     GetEnv("LOG_MODE", "development", log),

		UserServiceURL: GetEnv("USER_SERVICE_URL", "http://user-service:8081", log),
		BookServiceURL: GetEnv("BOOK_SERVICE_URL", "http://book-service:8082", log),

		BreakerTimeout:        time.Duration(GetEnvAsInt("BREAKER_TIMEOUT_MS", 5000, log)) * time.Millisecond,
		BreakerErrorThreshold: GetEnvAsInt("BREAKER_ERROR_THRESHOLD_PCT", 50, log),
		BreakerResetTimeout:   time.Duration(GetEnvAsInt("BREAKER_RESET_TIMEOUT_MS", 10000, log)) * time.Millisecond,
	}, nil
}

// GetEnv returns the value of key, or defaultVal when unset or blank.
func GetEnv(key, defaultVal string, log *logger.Logger) string {
	val, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(val) == "" {
		if log != nil {
			log.Debug("env var not set, using default", "env_var", key, "default", defaultVal)
		}
		return defaultVal
	}
	return val
}

// GetEnvAsInt returns key parsed as an int, or defaultVal when unset or
// unparsable.
func GetEnvAsInt(key string, defaultVal int, log *logger.Logger) int {
	val, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}
	i, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		if log != nil {
			log.Warn("env var is not an int, using default", "env_var", key, "value", val, "default", defaultVal)
		}
		return defaultVal
	}
	return i
}
