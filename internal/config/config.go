/**
 * Configuration for the NutriScan worker
 *
 * Loads configuration from environment variables.
 */

package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds worker configuration
type Config struct {
	// Redis configuration (queue + scan status tracking)
	RedisURL  string
	QueueName string

	// PostgreSQL configuration
	DatabaseURL string

	// External collaborators
	ClassifierURL    string
	OpenFoodFactsURL string
	TesseractPath    string

	// Worker configuration
	WorkerConcurrency int
	ScanTimeoutMs     int
	LookupTimeoutMs   int

	// Portion estimation calibration
	PixelToCmRatio float64
	SlabHeightCm   float64
	DensityGCm3    float64

	// Fixed intensity threshold for mask/OCR binarization (0-255)
	MaskThreshold int
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		RedisURL:          getEnvOrDefault("REDIS_URL", "redis://localhost:6379"),
		QueueName:         getEnvOrDefault("QUEUE_NAME", "nutriscan:scans"),
		DatabaseURL:       getEnvOrThrow("DATABASE_URL"),
		ClassifierURL:     getEnvOrDefault("CLASSIFIER_URL", "http://localhost:8501"),
		OpenFoodFactsURL:  getEnvOrDefault("OPENFOODFACTS_URL", "https://world.openfoodfacts.org"),
		TesseractPath:     getEnvOrDefault("TESSERACT_PATH", "/usr/bin/tesseract"),
		WorkerConcurrency: getEnvAsIntOrDefault("WORKER_CONCURRENCY", 10),
		ScanTimeoutMs:     getEnvAsIntOrDefault("SCAN_TIMEOUT_MS", 120000),   // 2 minutes
		LookupTimeoutMs:   getEnvAsIntOrDefault("LOOKUP_TIMEOUT_MS", 10000),  // 10 seconds
		PixelToCmRatio:    getEnvAsFloatOrDefault("PIXEL_CM_RATIO", 0.1),
		SlabHeightCm:      getEnvAsFloatOrDefault("SLAB_HEIGHT_CM", 2),
		DensityGCm3:       getEnvAsFloatOrDefault("DENSITY_G_CM3", 0.9),
		MaskThreshold:     getEnvAsIntOrDefault("MASK_THRESHOLD", 150),
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.ClassifierURL == "" {
		return fmt.Errorf("CLASSIFIER_URL is required")
	}

	if c.OpenFoodFactsURL == "" {
		return fmt.Errorf("OPENFOODFACTS_URL is required")
	}

	if c.WorkerConcurrency < 1 || c.WorkerConcurrency > 100 {
		return fmt.Errorf("WORKER_CONCURRENCY must be between 1 and 100, got %d", c.WorkerConcurrency)
	}

	if c.ScanTimeoutMs < 1000 {
		return fmt.Errorf("SCAN_TIMEOUT_MS must be at least 1000, got %d", c.ScanTimeoutMs)
	}

	if c.LookupTimeoutMs < 100 {
		return fmt.Errorf("LOOKUP_TIMEOUT_MS must be at least 100, got %d", c.LookupTimeoutMs)
	}

	if c.PixelToCmRatio <= 0 {
		return fmt.Errorf("PIXEL_CM_RATIO must be positive, got %g", c.PixelToCmRatio)
	}

	if c.SlabHeightCm <= 0 {
		return fmt.Errorf("SLAB_HEIGHT_CM must be positive, got %g", c.SlabHeightCm)
	}

	if c.DensityGCm3 <= 0 {
		return fmt.Errorf("DENSITY_G_CM3 must be positive, got %g", c.DensityGCm3)
	}

	if c.MaskThreshold < 0 || c.MaskThreshold > 255 {
		return fmt.Errorf("MASK_THRESHOLD must be between 0 and 255, got %d", c.MaskThreshold)
	}

	return nil
}

// getEnvOrDefault gets environment variable or returns default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrThrow gets environment variable or returns error
func getEnvOrThrow(key string) string {
	value := os.Getenv(key)
	if value == "" {
		panic(fmt.Sprintf("Required environment variable %s is not set", key))
	}
	return value
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

// getEnvAsFloatOrDefault gets environment variable as float64 or returns default
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
