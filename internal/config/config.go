/**
 * Configuration for the annotation editor and the feedback worker
 *
 * Loads configuration from environment variables (.env is read by main)
 */

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Feedback transports
const (
	FeedbackHTTP  = "http"
	FeedbackQueue = "queue"
)

// EditorConfig is the context object the editor core is built from
type EditorConfig struct {
	// Backend API
	BackendURL       string
	APIToken         string
	RequestTimeoutMs int

	// Rendering
	Language        string
	ContainerWidth  float64
	ContainerHeight float64
	Padding         float64

	// Feedback collector: "http" posts to the backend, "queue" enqueues for the worker
	FeedbackTransport string
	RedisURL          string
	FeedbackQueue     string

	// Local re-recognition instead of the backend endpoint
	LocalOCR           bool
	TesseractLanguages []string
}

// WorkerConfig holds feedback worker configuration
type WorkerConfig struct {
	// Redis configuration
	RedisURL      string
	FeedbackQueue string

	// PostgreSQL configuration
	DatabaseURL string

	// Qdrant vector database configuration
	QdrantURL        string
	QdrantCollection string

	// Worker configuration
	WorkerConcurrency int
	ProcessingTimeout int

	Environment string
}

// LoadEditorConfig loads editor configuration from environment variables
func LoadEditorConfig() (*EditorConfig, error) {
	cfg := &EditorConfig{
		BackendURL:         getEnvOrDefault("BACKEND_URL", "http://localhost:8000"),
		APIToken:           getEnvOrDefault("API_TOKEN", ""),
		RequestTimeoutMs:   getEnvAsIntOrDefault("REQUEST_TIMEOUT_MS", 30000),
		Language:           getEnvOrDefault("UI_LANGUAGE", "ru"),
		ContainerWidth:     getEnvAsFloatOrDefault("CONTAINER_WIDTH", 1200),
		ContainerHeight:    getEnvAsFloatOrDefault("CONTAINER_HEIGHT", 800),
		Padding:            getEnvAsFloatOrDefault("PADDING", 20),
		FeedbackTransport:  getEnvOrDefault("FEEDBACK_TRANSPORT", FeedbackHTTP),
		RedisURL:           getEnvOrDefault("REDIS_URL", "redis://localhost:6379"),
		FeedbackQueue:      getEnvOrDefault("FEEDBACK_QUEUE", "ocr_feedback"),
		LocalOCR:           getEnvAsBoolOrDefault("LOCAL_OCR", false),
		TesseractLanguages: getEnvAsListOrDefault("TESSERACT_LANGUAGES", []string{"rus", "eng"}),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if configuration is valid
func (c *EditorConfig) Validate() error {
	if c.BackendURL == "" {
		return fmt.Errorf("BACKEND_URL is required")
	}

	if c.Language != "ru" && c.Language != "en" {
		return fmt.Errorf("UI_LANGUAGE must be ru or en, got %q", c.Language)
	}

	if c.RequestTimeoutMs < 100 {
		return fmt.Errorf("REQUEST_TIMEOUT_MS must be at least 100, got %d", c.RequestTimeoutMs)
	}

	switch c.FeedbackTransport {
	case FeedbackHTTP:
	case FeedbackQueue:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for the queue feedback transport")
		}
	default:
		return fmt.Errorf("FEEDBACK_TRANSPORT must be %s or %s, got %q", FeedbackHTTP, FeedbackQueue, c.FeedbackTransport)
	}

	if c.Padding < 0 {
		return fmt.Errorf("PADDING must not be negative, got %v", c.Padding)
	}

	return nil
}

// LoadWorkerConfig loads worker configuration from environment variables
func LoadWorkerConfig() (*WorkerConfig, error) {
	cfg := &WorkerConfig{
		RedisURL:          getEnvOrDefault("REDIS_URL", "redis://localhost:6379"),
		FeedbackQueue:     getEnvOrDefault("FEEDBACK_QUEUE", "ocr_feedback"),
		DatabaseURL:       getEnvOrThrow("DATABASE_URL"),
		QdrantURL:         getEnvOrDefault("QDRANT_URL", "localhost:6334"),
		QdrantCollection:  getEnvOrDefault("QDRANT_COLLECTION", "ocr_block_shapes"),
		WorkerConcurrency: getEnvAsIntOrDefault("WORKER_CONCURRENCY", 4),
		ProcessingTimeout: getEnvAsIntOrDefault("PROCESSING_TIMEOUT", 60000), // 1 minute
		Environment:       getEnvOrDefault("APP_ENV", "development"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if configuration is valid
func (c *WorkerConfig) Validate() error {
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.QdrantCollection == "" {
		return fmt.Errorf("QDRANT_COLLECTION is required")
	}

	if c.WorkerConcurrency < 1 || c.WorkerConcurrency > 100 {
		return fmt.Errorf("WORKER_CONCURRENCY must be between 1 and 100, got %d", c.WorkerConcurrency)
	}

	if c.ProcessingTimeout < 1000 {
		return fmt.Errorf("PROCESSING_TIMEOUT must be at least 1000ms, got %d", c.ProcessingTimeout)
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

// getEnvOrThrow gets environment variable or panics
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

func getEnvAsBoolOrDefault(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsListOrDefault splits a comma or plus separated list ("rus+eng")
func getEnvAsListOrDefault(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	parts := strings.FieldsFunc(valueStr, func(r rune) bool { return r == ',' || r == '+' })
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
