// Package config loads application configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string
	Environment   string

	// DynamicConfigPath points at the live-reloaded limits file; empty
	// disables the watcher
	DynamicConfigPath string

	// Storage configuration
	StorageBackend string // "memory" or "dynamodb"
	AWSRegion      string
	DynamoDBTable  string

	// Persistence tuning
	WriteDebounce time.Duration

	// Generation backend
	GenerationBaseURL string
	GenerationWSURL   string
	GenerationAPIKey  string
	PollInterval      time.Duration

	// Style analysis backend
	StyleAnalysisURL string

	// Transcript provider
	TranscriptBaseURL string

	// Authentication
	JWTSecret   string
	JWTIssuer   string
	JWTAudience string

	// Rate limiting, requests per minute
	RateLimitPerIP   int
	RateLimitPerUser int

	// Logging
	LogLevel string

	// Feature flags
	EnableMetrics bool
	EnableCORS    bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ServerAddress: getEnv("SERVER_ADDRESS", ":8080"),
		Environment:   getEnv("ENVIRONMENT", "development"),

		DynamicConfigPath: getEnv("DYNAMIC_CONFIG_PATH", ""),

		StorageBackend: getEnv("STORAGE_BACKEND", "memory"),
		AWSRegion:      getEnv("AWS_REGION", "us-west-2"),
		DynamoDBTable:  getEnv("DYNAMODB_TABLE", "careflow"),

		WriteDebounce: getEnvDuration("WRITE_DEBOUNCE", 300*time.Millisecond),

		GenerationBaseURL: getEnv("GENERATION_BASE_URL", "http://localhost:9000"),
		GenerationWSURL:   getEnv("GENERATION_WS_URL", "ws://localhost:9000"),
		GenerationAPIKey:  getEnv("GENERATION_API_KEY", ""),
		PollInterval:      getEnvDuration("GENERATION_POLL_INTERVAL", 5*time.Second),

		StyleAnalysisURL:  getEnv("STYLE_ANALYSIS_URL", "http://localhost:9100"),
		TranscriptBaseURL: getEnv("TRANSCRIPT_BASE_URL", "https://www.googleapis.com/youtube/v3"),

		JWTSecret:   getEnv("JWT_SECRET", ""),
		JWTIssuer:   getEnv("JWT_ISSUER", "careflow-backend"),
		JWTAudience: getEnv("JWT_AUDIENCE", "careflow"),

		RateLimitPerIP:   getEnvInt("RATE_LIMIT_PER_IP", 100),
		RateLimitPerUser: getEnvInt("RATE_LIMIT_PER_USER", 200),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		EnableMetrics: getEnvBool("ENABLE_METRICS", true),
		EnableCORS:    getEnvBool("ENABLE_CORS", true),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	if c.StorageBackend != "memory" && c.StorageBackend != "dynamodb" {
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend)
	}
	if c.Environment == "production" {
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
		if c.StorageBackend == "dynamodb" && c.DynamoDBTable == "" {
			return fmt.Errorf("DYNAMODB_TABLE is required")
		}
	}
	if c.WriteDebounce <= 0 {
		return fmt.Errorf("WRITE_DEBOUNCE must be positive")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("GENERATION_POLL_INTERVAL must be positive")
	}
	if c.RateLimitPerIP <= 0 || c.RateLimitPerUser <= 0 {
		return fmt.Errorf("rate limits must be positive")
	}
	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration gets a duration environment variable with a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
