// config.go - Configuration loaded from environment variables

package configs

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

var (
	// AI Configuration
	AI_PROVIDER       string
	MODEL_NAME        string
	MODEL_TIMEOUT     time.Duration // Upper bound for a single page extraction call
	MODEL_TEMPERATURE float32       = 0.1
	MAX_OUTPUT_TOKENS int32         = 4096

	// Gemini Pricing Configuration (per 1M tokens in USD), used for the summary log only
	GEMINI_INPUT_PRICE_PER_MILLION  float64
	GEMINI_OUTPUT_PRICE_PER_MILLION float64

	// Server Configuration
	PORT            string
	ALLOWED_ORIGINS string

	// Document acquisition
	DOWNLOAD_TIMEOUT   time.Duration
	MAX_DOCUMENT_BYTES int64

	// Page preprocessing
	ENABLE_IMAGE_PREPROCESSING bool
	MAX_IMAGE_DIMENSION        int
)

// Credential variables, checked in order.
var apiKeyEnvNames = []string{"GOOGLE_API_KEY", "GEMINI_API_KEY"}

func init() {
	applyDefaults()
}

// LoadConfig loads configuration from environment variables.
// The model credential is not read here; it is resolved per request via APIKey.
func LoadConfig() {
	// Load .env file if exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	applyDefaults()

	if APIKey() == "" {
		log.Println("⚠️  GOOGLE_API_KEY is not set; extraction requests will fail until it is configured")
	}

	log.Println("✓ Configuration loaded successfully")
}

func applyDefaults() {
	AI_PROVIDER = getEnv("AI_PROVIDER", "gemini")
	MODEL_NAME = getEnv("MODEL_NAME", "gemini-2.0-flash")
	MODEL_TIMEOUT = time.Duration(getEnvInt("MODEL_TIMEOUT", 120)) * time.Second

	GEMINI_INPUT_PRICE_PER_MILLION = getEnvFloat("GEMINI_INPUT_PRICE_PER_MILLION", 0.10)
	GEMINI_OUTPUT_PRICE_PER_MILLION = getEnvFloat("GEMINI_OUTPUT_PRICE_PER_MILLION", 0.40)

	PORT = getEnv("PORT", "8080")
	ALLOWED_ORIGINS = getEnv("ALLOWED_ORIGINS", "*")

	DOWNLOAD_TIMEOUT = time.Duration(getEnvInt("DOWNLOAD_TIMEOUT", 60)) * time.Second
	MAX_DOCUMENT_BYTES = int64(getEnvInt("MAX_DOCUMENT_MB", 25)) << 20

	ENABLE_IMAGE_PREPROCESSING = getEnvBool("ENABLE_IMAGE_PREPROCESSING", false)
	MAX_IMAGE_DIMENSION = getEnvInt("MAX_IMAGE_DIMENSION", 3000)
}

// APIKey returns the hosted model credential from the process environment,
// or "" when none is configured.
func APIKey() string {
	for _, name := range apiKeyEnvNames {
		if value := os.Getenv(name); value != "" {
			return value
		}
	}
	return ""
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}
