package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	NodeEnv   string
	Port      string
	JWTSecret string
	LogLevel  string
	Database  DatabaseConfig
	Storage   StorageConfig
	Catalog   CatalogConfig
	Report    ReportConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host         string
	Port         string
	Username     string
	Password     string
	Database     string
	Alter        bool
	QueryTimeout time.Duration
}

// StorageConfig describes where uploaded photos live and how clients address them
type StorageConfig struct {
	UploadsDir   string
	PhotoBaseURL string
}

// CatalogConfig points at the category seed data
type CatalogConfig struct {
	SeedFile string
}

// ReportConfig holds PDF rendering options
type ReportConfig struct {
	FontFile  string
	PublicURL string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg, err := LoadTooling()
	if err != nil {
		return nil, err
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	return cfg, nil
}

// LoadTooling is Load for offline tools that never issue or verify tokens
func LoadTooling() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	timeout, err := time.ParseDuration(getEnv("DB_QUERY_TIMEOUT", "15s"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_QUERY_TIMEOUT: %w", err)
	}

	alter, _ := strconv.ParseBool(getEnv("DB_ALTER", "false"))

	return &Config{
		NodeEnv:   getEnv("NODE_ENV", "development"),
		Port:      getEnv("PORT", "3030"),
		JWTSecret: os.Getenv("JWT_SECRET"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		Database: DatabaseConfig{
			Host:         getEnv("PG_HOST", "localhost"),
			Port:         getEnv("PG_PORT", "5432"),
			Username:     getEnv("PG_USERNAME", "postgres"),
			Password:     os.Getenv("PG_PASSWORD"),
			Database:     getEnv("PG_DATABASE", "smbt"),
			Alter:        alter,
			QueryTimeout: timeout,
		},
		Storage: StorageConfig{
			UploadsDir:   getEnv("UPLOADS_DIR", "./uploads"),
			PhotoBaseURL: getEnv("PHOTO_BASE_URL", "uploads"),
		},
		Catalog: CatalogConfig{
			SeedFile: os.Getenv("CATALOG_SEED_FILE"),
		},
		Report: ReportConfig{
			FontFile:  os.Getenv("REPORT_FONT_FILE"),
			PublicURL: getEnv("PUBLIC_URL", "http://localhost:3030"),
		},
	}, nil
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
