// Package config loads process configuration from the environment and
// manages the per-user settings.json blob.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads a .env file into the process environment if present;
// missing files are silently ignored (development convenience only).
func LoadDotEnv(path string) {
	_ = godotenv.Load(path)
}

// GetEnvOrDefault returns the named environment variable, or defaultValue
// if unset or empty. Ported from the teacher's
// shared/utils/utils.go::GetEnvOrDefault.
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvAsInt parses the named environment variable as an int, or returns
// defaultValue if unset or unparsable.
func GetEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// GetEnvAsBool parses the named environment variable as a bool, or returns
// defaultValue if unset or unparsable.
func GetEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
