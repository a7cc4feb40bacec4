package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application.
// The values are loaded from environment variables.
type AppConfig struct {
	// Core settings
	Port         string
	DatabasePath string
	LogLevel     string

	// Security settings
	JWTSecret          string
	AuthPasswordHash   string // bcrypt hash of the single-user password
	AccessTokenExpiry  time.Duration
	MaxUploadSizeBytes int64

	// Import pipeline thresholds
	ReviewThreshold      float64 // field confidence below this flags needs_review
	ColumnMatchThreshold float64 // minimum similarity for a fuzzy column match
	DefaultOCRConfidence float64 // cell confidence when the OCR export carries no hint

	// Merge policy
	DefaultCurrency            string
	PreserveUserClassification bool // imports never downgrade user-set classification

	// Rate refresh settings
	RatesAPIBaseURL   string
	RatesFetchTimeout time.Duration
}

// Cfg is a global instance of the AppConfig.
var Cfg *AppConfig

// LoadConfig loads configuration from environment variables or a .env file.
// It centralizes all configuration logic for the application.
func LoadConfig() {
	errEnv := godotenv.Load()
	if errEnv != nil {
		errEnv = godotenv.Load("../.env")
	}
	if errEnv != nil {
		if os.IsNotExist(errEnv) {
			log.Println("Info: No .env file found in current or parent directory. Relying on OS environment variables (expected in production).")
		} else {
			log.Printf("Warning: Error loading .env file: %v. Relying on OS environment variables.", errEnv)
		}
	} else {
		log.Println(".env file loaded successfully.")
	}

	log.Println("Loading application configuration...")

	jwtSecret := getRequiredEnv("JWT_SECRET")
	authPasswordHash := getRequiredEnv("AUTH_PASSWORD_HASH")

	maxUploadSizeBytesStr := getEnv("MAX_UPLOAD_SIZE_BYTES", "10485760") // 10MB default
	maxUploadSizeBytes, err := strconv.ParseInt(maxUploadSizeBytesStr, 10, 64)
	if err != nil {
		log.Printf("WARNING: Invalid MAX_UPLOAD_SIZE_BYTES format '%s'. Using default 10MB. Error: %v", maxUploadSizeBytesStr, err)
		maxUploadSizeBytes = 10 * 1024 * 1024
	}

	Cfg = &AppConfig{
		// Core
		Port:         getEnv("PORT", "8080"),
		DatabasePath: getEnv("DATABASE_PATH", "./foliotracker.db"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),

		// Security
		JWTSecret:          jwtSecret,
		AuthPasswordHash:   authPasswordHash,
		AccessTokenExpiry:  getEnvAsDuration("ACCESS_TOKEN_EXPIRY", 12*time.Hour),
		MaxUploadSizeBytes: maxUploadSizeBytes,

		// Import pipeline
		ReviewThreshold:      getEnvAsFloat("REVIEW_THRESHOLD", 0.90),
		ColumnMatchThreshold: getEnvAsFloat("COLUMN_MATCH_THRESHOLD", 0.72),
		DefaultOCRConfidence: getEnvAsFloat("DEFAULT_OCR_CONFIDENCE", 0.80),

		// Merge policy
		DefaultCurrency:            getEnv("DEFAULT_CURRENCY", "EUR"),
		PreserveUserClassification: getEnvAsBool("PRESERVE_USER_CLASSIFICATION", true),

		// Rate refresh
		RatesAPIBaseURL:   getEnv("RATES_API_BASE_URL", "https://api.frankfurter.dev/v1"),
		RatesFetchTimeout: getEnvAsDuration("RATES_FETCH_TIMEOUT", 15*time.Second),
	}

	log.Printf("Configuration loaded: Port=%s, LogLevel=%s, DBPath=%s",
		Cfg.Port, Cfg.LogLevel, Cfg.DatabasePath)
}

// getEnv retrieves an environment variable or returns a fallback value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	log.Printf("Environment variable %s not set, using default: %s", key, fallback)
	return fallback
}

// getRequiredEnv retrieves an environment variable or terminates the application if not set.
func getRequiredEnv(key string) string {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		log.Fatalf("FATAL: Required environment variable %s is not set or is empty. Application cannot start securely.", key)
	}
	return value
}

// getEnvAsFloat retrieves an environment variable as a float64 or returns a fallback.
func getEnvAsFloat(key string, fallback float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	log.Printf("Invalid float value for %s ('%s'), using default: %v", key, valueStr, fallback)
	return fallback
}

// getEnvAsBool retrieves an environment variable as a bool or returns a fallback.
func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid boolean value for %s ('%s'), using default: %v", key, valueStr, fallback)
	return fallback
}

// getEnvAsDuration retrieves an environment variable as a time.Duration or returns a fallback.
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid duration value for %s ('%s'), using default: %s", key, valueStr, fallback.String())
	return fallback
}
