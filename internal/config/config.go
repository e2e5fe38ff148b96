// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir     string // Base directory for the network database and backups (always absolute)
	Port        int
	DevMode     bool
	LogLevel    string
	CORSOrigins string

	// Clock
	ClockPreset string // default timing preset applied at startup
	ClockSeed   int64  // 0 = seed from wall clock (non-deterministic)

	// Narrative generation (optional; ticks run without it)
	GoogleAPIKey string
	GeminiModel  string

	// Backup (optional S3-compatible upload)
	BackupBucket    string
	BackupEndpoint  string
	BackupAccessKey string
	BackupSecretKey string
	BackupRegion    string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Determine data directory with fallback logic
	// 1. Check PROPNET_DATA_DIR environment variable
	// 2. If not set, default to ./data
	// 3. Always resolve to absolute path
	// 4. Ensure directory exists
	dataDir := getEnv("PROPNET_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:         absDataDir,
		Port:            getEnvAsInt("PORT", 8080),
		DevMode:         getEnvAsBool("DEV_MODE", false),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		CORSOrigins:     getEnv("CORS_ORIGINS", "*"),
		ClockPreset:     getEnv("CLOCK_PRESET", "demo"),
		ClockSeed:       getEnvAsInt64("CLOCK_SEED", 0),
		GoogleAPIKey:    getEnv("GOOGLE_API_KEY", ""),
		GeminiModel:     getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		BackupBucket:    getEnv("BACKUP_S3_BUCKET", ""),
		BackupEndpoint:  getEnv("BACKUP_S3_ENDPOINT", ""),
		BackupAccessKey: getEnv("BACKUP_S3_ACCESS_KEY", ""),
		BackupSecretKey: getEnv("BACKUP_S3_SECRET_KEY", ""),
		BackupRegion:    getEnv("BACKUP_S3_REGION", "auto"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	// Note: GOOGLE_API_KEY is optional - without it the narrator
	// falls back to deterministic monthly summaries.
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	return nil
}

// DatabasePath returns the path of the network database file
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "network.db")
}

// BackupsDir returns the local backup directory
func (c *Config) BackupsDir() string {
	return filepath.Join(c.DataDir, "backups")
}

// CloudBackupEnabled reports whether S3 upload is fully configured
func (c *Config) CloudBackupEnabled() bool {
	return c.BackupBucket != "" && c.BackupAccessKey != "" && c.BackupSecretKey != ""
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
