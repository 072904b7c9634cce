// Package config provides environment-sourced configuration for the
// conversion sidecar.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime settings for the service.
type Config struct {
	// Server
	Port int

	// Upload limits
	MaxUploadSize int64 // bytes

	// Conversion scheduling
	ConversionTimeout      time.Duration // per converter attempt
	MaxConcurrent          int           // execution slots
	MaxQueued              int           // queue depth beyond the slots
	DisconnectPollInterval time.Duration

	// Pandoc runtime flags
	PandocMaxHeap     string // e.g. "64m", passed as +RTS -M<heap> -RTS
	PandocInitialHeap string // optional -H<heap> flag

	// Storage
	TempDir string

	// Converter chain overrides (optional YAML file)
	ConvertersConfig string

	// Logging
	LogLevel  string
	LogFormat string
}

// Load reads configuration from the environment, applying defaults that
// match the sidecar's documented behaviour. A .env file is honoured when
// present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:                   getEnvInt("PORT", 8080),
		MaxUploadSize:          getEnvInt64("MAX_UPLOAD_SIZE", 50*1024*1024),
		ConversionTimeout:      time.Duration(getEnvInt("CONVERSION_TIMEOUT", 120)) * time.Second,
		MaxConcurrent:          getEnvInt("MAX_CONCURRENT_CONVERSIONS", 2),
		MaxQueued:              getEnvInt("MAX_QUEUED_CONVERSIONS", 5),
		DisconnectPollInterval: time.Duration(getEnvInt("DISCONNECT_POLL_INTERVAL_MS", 1000)) * time.Millisecond,
		PandocMaxHeap:          getEnv("PANDOC_MAX_HEAP", "64m"),
		PandocInitialHeap:      getEnv("PANDOC_INITIAL_HEAP", ""),
		TempDir:                getEnv("TEMP_DIR", os.TempDir()),
		ConvertersConfig:       getEnv("CONVERTERS_CONFIG", ""),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		LogFormat:              getEnv("LOG_FORMAT", "console"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects settings the scheduler cannot operate with.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be in 1..65535, got %d", c.Port)
	}
	if c.MaxUploadSize <= 0 {
		return fmt.Errorf("MAX_UPLOAD_SIZE must be positive, got %d", c.MaxUploadSize)
	}
	if c.ConversionTimeout <= 0 {
		return fmt.Errorf("CONVERSION_TIMEOUT must be positive, got %s", c.ConversionTimeout)
	}
	if c.MaxConcurrent <= 0 {
		return fmt.Errorf("MAX_CONCURRENT_CONVERSIONS must be positive, got %d", c.MaxConcurrent)
	}
	if c.MaxQueued < 0 {
		return fmt.Errorf("MAX_QUEUED_CONVERSIONS must not be negative, got %d", c.MaxQueued)
	}
	if c.DisconnectPollInterval <= 0 {
		return fmt.Errorf("DISCONNECT_POLL_INTERVAL_MS must be positive, got %s", c.DisconnectPollInterval)
	}
	return nil
}

// Capacity returns the total number of requests that may be in flight,
// running plus queued.
func (c *Config) Capacity() int {
	return c.MaxConcurrent + c.MaxQueued
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}
