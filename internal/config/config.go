// Package config provides environment configuration for the widget service.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration

	// Companin API
	APIBaseURL string
	APITimeout time.Duration

	// Embedding
	PublicBaseURL            string
	DevBaseURL               string
	DevMode                  bool
	AllowedFrameOriginSuffix string
	DefaultLocale            string

	// Local persistence
	StoreDriver string
	RedisURL    string
	StoreTTL    time.Duration

	// Instance tokens
	InstanceSecret      string
	InstanceTokenTTL    time.Duration
	InstanceIdleTimeout time.Duration

	// Widget timing
	FeedbackDelay      time.Duration
	ExpiryPollInterval time.Duration
	SessionExpirySkew  time.Duration
	TypingDelay        time.Duration

	// NATS settings
	NATSURL      string
	NATSCAFile   string
	NATSCertFile string
	NATSKeyFile  string
	NATSToken    string

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Logging
	LogLevel string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		// Server
		ServerPort:         getEnv("PORT", "3001"),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 120*time.Second),

		// Companin API
		APIBaseURL: getEnv("API_BASE_URL", "http://localhost:8000"),
		APITimeout: getDurationEnv("API_TIMEOUT", 60*time.Second),

		// Embedding
		PublicBaseURL:            getEnv("PUBLIC_BASE_URL", "https://widget.companin.tech"),
		DevBaseURL:               getEnv("DEV_BASE_URL", "http://localhost:3001"),
		DevMode:                  getBoolEnv("DEV_MODE", false),
		AllowedFrameOriginSuffix: getEnv("ALLOWED_FRAME_ORIGIN_SUFFIX", "companin.tech"),
		DefaultLocale:            getEnv("DEFAULT_LOCALE", "en"),

		// Local persistence
		StoreDriver: getEnv("STORE_DRIVER", "memory"),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379/0"),
		StoreTTL:    getDurationEnv("STORE_TTL", 30*24*time.Hour),

		// Instance tokens
		InstanceSecret:      getEnv("INSTANCE_SECRET", "development-secret-change-in-production"),
		InstanceTokenTTL:    getDurationEnv("INSTANCE_TOKEN_TTL", 12*time.Hour),
		InstanceIdleTimeout: getDurationEnv("INSTANCE_IDLE_TIMEOUT", 30*time.Minute),

		// Widget timing
		FeedbackDelay:      getDurationEnv("FEEDBACK_DELAY", 30*time.Second),
		ExpiryPollInterval: getDurationEnv("EXPIRY_POLL_INTERVAL", time.Minute),
		SessionExpirySkew:  getDurationEnv("SESSION_EXPIRY_SKEW", 5*time.Minute),
		TypingDelay:        getDurationEnv("TYPING_DELAY", 300*time.Millisecond),

		// NATS
		NATSURL:      getEnv("NATS_URL", ""),
		NATSCAFile:   getEnv("NATS_CA_FILE", ""),
		NATSCertFile: getEnv("NATS_CERT_FILE", ""),
		NATSKeyFile:  getEnv("NATS_KEY_FILE", ""),
		NATSToken:    getEnv("NATS_TOKEN", ""),

		// Rate limiting
		RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 120),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
