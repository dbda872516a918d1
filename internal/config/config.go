/**
 * Configuration for the tax document worker
 *
 * Loads configuration from environment variables (optionally seeded from .env).
 */

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds worker configuration
type Config struct {
	// HTTP surface
	HTTPAddr       string
	APIKey         string
	Mode           string
	RateLimitRPS   float64
	RateLimitBurst int

	// Redis (queue + job results). Empty disables asynchronous intake.
	RedisURL  string
	QueueName string
	ResultTTL time.Duration

	// PostgreSQL job tracking. Optional.
	DatabaseURL string

	// Worker configuration
	WorkerConcurrency int
	MaxFileSize       int64
	ProcessingTimeout int // milliseconds, applied by the queue consumer

	// OCR configuration
	OCREngine         string // "tesseract" or "remote"
	TessdataPrefix    string
	DefaultLanguage   string
	OCRServiceURL     string
	OCRServiceAPIKey  string
	OCRAsyncThreshold int // bytes; larger documents use async remote tasks
	OCRPollInterval   time.Duration

	// Temporary document storage
	TempDir     string
	TempStorage string

	// Extraction rules override (TOML). Empty uses the embedded defaults.
	RulesFile string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		HTTPAddr:          getEnvOrDefault("HTTP_ADDR", ":8080"),
		APIKey:            getEnvOrDefault("API_KEY", ""),
		Mode:              getEnvOrDefault("MODE", "development"),
		RateLimitRPS:      getEnvAsFloatOrDefault("RATE_LIMIT_RPS", 0),
		RateLimitBurst:    getEnvAsIntOrDefault("RATE_LIMIT_BURST", 10),
		RedisURL:          getEnvOrDefault("REDIS_URL", ""),
		QueueName:         getEnvOrDefault("QUEUE_NAME", "taxdoc"),
		ResultTTL:         getEnvAsDurationOrDefault("RESULT_TTL", 24*time.Hour),
		DatabaseURL:       getEnvOrDefault("DATABASE_URL", ""),
		WorkerConcurrency: getEnvAsIntOrDefault("WORKER_CONCURRENCY", 10),
		MaxFileSize:       getEnvAsInt64OrDefault("MAX_FILE_SIZE", 20<<20),     // 20MB
		ProcessingTimeout: getEnvAsIntOrDefault("PROCESSING_TIMEOUT", 300000), // 5 minutes
		OCREngine:         getEnvOrDefault("OCR_ENGINE", "tesseract"),
		TessdataPrefix:    getEnvOrDefault("TESSDATA_PREFIX", ""),
		DefaultLanguage:   getEnvOrDefault("DEFAULT_LANGUAGE", "eng"),
		OCRServiceURL:     getEnvOrDefault("OCR_SERVICE_URL", ""),
		OCRServiceAPIKey:  getEnvOrDefault("OCR_SERVICE_API_KEY", ""),
		OCRAsyncThreshold: getEnvAsIntOrDefault("OCR_ASYNC_THRESHOLD", 5<<20),
		OCRPollInterval:   getEnvAsDurationOrDefault("OCR_POLL_INTERVAL", 2*time.Second),
		TempDir:           getEnvOrDefault("TEMP_DIR", filepath.Join(os.TempDir(), "taxdoc")),
		TempStorage:       getEnvOrDefault("TEMP_STORAGE", "disk"),
		RulesFile:         getEnvOrDefault("RULES_FILE", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return fmt.Errorf("HTTP_ADDR is required")
	}

	if c.DefaultLanguage == "" {
		return fmt.Errorf("DEFAULT_LANGUAGE is required")
	}

	if c.WorkerConcurrency < 1 || c.WorkerConcurrency > 100 {
		return fmt.Errorf("WORKER_CONCURRENCY must be between 1 and 100, got %d", c.WorkerConcurrency)
	}

	if c.MaxFileSize < 1024 || c.MaxFileSize > 1<<30 { // 1KB to 1GB
		return fmt.Errorf("MAX_FILE_SIZE must be between 1KB and 1GB, got %d", c.MaxFileSize)
	}

	if c.ProcessingTimeout < 1000 {
		return fmt.Errorf("PROCESSING_TIMEOUT must be at least 1000ms, got %d", c.ProcessingTimeout)
	}

	switch c.OCREngine {
	case "tesseract":
	case "remote":
		if c.OCRServiceURL == "" {
			return fmt.Errorf("OCR_SERVICE_URL is required when OCR_ENGINE=remote")
		}
	default:
		return fmt.Errorf("OCR_ENGINE must be 'tesseract' or 'remote', got %q", c.OCREngine)
	}

	if c.TempStorage != "disk" && c.TempStorage != "memory" {
		return fmt.Errorf("TEMP_STORAGE must be 'disk' or 'memory', got %q", c.TempStorage)
	}

	if c.RateLimitRPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must not be negative, got %v", c.RateLimitRPS)
	}

	if c.RateLimitRPS > 0 && c.RateLimitBurst < 1 {
		return fmt.Errorf("RATE_LIMIT_BURST must be at least 1 when rate limiting is enabled, got %d", c.RateLimitBurst)
	}

	return nil
}

// QueueEnabled reports whether asynchronous intake is configured.
func (c *Config) QueueEnabled() bool {
	return c.RedisURL != ""
}

// IsProduction reports whether the worker runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Mode == "prod" || c.Mode == "production"
}

// ProcessingTimeoutDuration returns the queue task timeout.
func (c *Config) ProcessingTimeoutDuration() time.Duration {
	return time.Duration(c.ProcessingTimeout) * time.Millisecond
}

// getEnvOrDefault gets environment variable or returns default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault gets environment variable as int or returns default
func getEnvAsIntOrDefault(key string, defaultValue int) int {
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

// getEnvAsInt64OrDefault gets environment variable as int64 or returns default
func getEnvAsInt64OrDefault(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloatOrDefault(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}
