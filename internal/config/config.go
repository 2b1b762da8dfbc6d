// Package config provides configuration for the CLI harness. The engine
// itself is configured per call through the settings bundle; only the
// harness (logging, worker count) reads the environment.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds harness configuration
type Config struct {
	LogLevel   string // debug, info, warn, error
	PrettyLogs bool
	Workers    int // Parallel strategy solves per batch
}

// Load reads configuration from the environment, after loading a .env
// file when one exists. Missing variables fall back to defaults; the
// harness has no required configuration.
func Load() *Config {
	// .env is optional; ignore the error when the file is absent
	_ = godotenv.Load()

	return &Config{
		LogLevel:   getEnv("REBALANCER_LOG_LEVEL", "info"),
		PrettyLogs: getEnvAsBool("REBALANCER_PRETTY_LOGS", false),
		Workers:    getEnvAsInt("REBALANCER_WORKERS", 4),
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
		if intVal, err := strconv.Atoi(value); err == nil {
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
