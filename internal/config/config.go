package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Config holds the runtime settings of the console, read from the environment
type Config struct {
	Port               string
	Env                string
	APIBaseURL         string
	APITimeout         time.Duration
	RedisURL           string
	DatabaseURL        string
	AllowedEmailDomain string
	SessionTTL         time.Duration
	AgencyName         string
	CookieSecure       bool
}

const (
	defaultAPITimeout = 10 * time.Second
	defaultSessionTTL = 24 * 5 * time.Hour
)

// LoadDotEnv loads a .env file if one exists. A missing file is not an error.
func LoadDotEnv(logger *zap.Logger) {
	if err := godotenv.Load(); err != nil {
		logger.Info("No .env file found, using system environment")
	}
}

// Load builds a Config from environment variables
func Load(logger *zap.Logger) Config {
	env := getEnv("ENV", "development")

	return Config{
		Port:               getEnv("PORT", "8080"),
		Env:                env,
		APIBaseURL:         strings.TrimRight(os.Getenv("SNAPBOX_API_URL"), "/"),
		APITimeout:         getDuration(logger, "SNAPBOX_API_TIMEOUT", defaultAPITimeout),
		RedisURL:           os.Getenv("REDIS_URL"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		AllowedEmailDomain: strings.ToLower(strings.TrimSpace(os.Getenv("ALLOWED_EMAIL_DOMAIN"))),
		SessionTTL:         getDuration(logger, "SESSION_TTL", defaultSessionTTL),
		AgencyName:         getEnv("AGENCY_NAME", "FCBHEALTH"),
		CookieSecure:       env == "production",
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getDuration(logger *zap.Logger, key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		logger.Warn("Invalid duration, using default",
			zap.String("key", key),
			zap.String("value", raw),
			zap.Duration("default", fallback))
		return fallback
	}
	return d
}
