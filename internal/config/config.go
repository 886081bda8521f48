package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	LogLevel      string
	DatabaseURL   string
	ToolAuthToken string

	// Default slot length used when an organization has no configured
	// appointment duration.
	DefaultSlotMinutes int

	// Cal.com integration (platform-level defaults; per-org credentials
	// live on the organization schedule row).
	CalcomBaseURL string
	CalcomTimeout time.Duration

	// Availability cache
	RedisAddr         string
	RedisPassword     string
	RedisTLS          bool
	AvailabilityTTL   time.Duration
	DisableAvailCache bool

	// Email notifications
	EmailProvider     string
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	AWSRegion         string
	SESFromEmail      string
	SESFromName       string

	// Webhook rate limiting; zero disables it.
	ToolRateLimit float64
	ToolRateBurst int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		ToolAuthToken: getEnv("TOOL_AUTH_TOKEN", ""),

		DefaultSlotMinutes: getEnvAsInt("DEFAULT_SLOT_MINUTES", 30),

		CalcomBaseURL: getEnv("CALCOM_BASE_URL", "https://api.cal.com/v2"),
		CalcomTimeout: getEnvAsDuration("CALCOM_TIMEOUT", 20*time.Second),

		RedisAddr:         getEnv("REDIS_ADDR", ""),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisTLS:          getEnvAsBool("REDIS_TLS", false),
		AvailabilityTTL:   getEnvAsDuration("AVAILABILITY_CACHE_TTL", 60*time.Second),
		DisableAvailCache: getEnvAsBool("DISABLE_AVAILABILITY_CACHE", false),

		EmailProvider:     strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "sendgrid"))),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "VoxDesk"),
		AWSRegion:         getEnv("AWS_REGION", "us-east-1"),
		SESFromEmail:      getEnv("SES_FROM_EMAIL", ""),
		SESFromName:       getEnv("SES_FROM_NAME", "VoxDesk"),

		ToolRateLimit: getEnvAsFloat("TOOL_RATE_LIMIT", 10),
		ToolRateBurst: getEnvAsInt("TOOL_RATE_BURST", 20),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsFloat retrieves an environment variable as a float or returns a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
