package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           int
	JWTSecret      string
	PrototxtPath   string
	CaffeModelPath string
	DatabasePath   string
	LogDirectory   string
	LogLevel       string
}

func Load() *Config {
	// Missing .env is fine, the environment may be set directly.
	_ = godotenv.Load()

	return &Config{
		Port:           getEnvAsInt("PORT", 8080),
		JWTSecret:      getEnv("JWT_SECRET", "dev-secret-change-me"),
		PrototxtPath:   getEnv("PROTOTXT_PATH", filepath.Join(".", "models", "deploy.prototxt")),
		CaffeModelPath: getEnv("MODEL_PATH", filepath.Join(".", "models", "res10_300x300_ssd_iter_140000.caffemodel")),
		DatabasePath:   getEnv("DATABASE_PATH", filepath.Join(".", "data", "devices.db")),
		LogDirectory:   getEnv("LOG_DIR", filepath.Join(".", "logs")),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
