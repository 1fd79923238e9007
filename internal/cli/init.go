// Package cli provides common initialization for the finsync commands.
package cli

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"finsync/internal/config"
	"finsync/internal/log"
	"finsync/internal/storage"
)

// SetupLogger initializes structured logging with default settings and sets
// it as the process default.
func SetupLogger() *log.Logger {
	logger := log.New(log.DefaultConfig())
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig() *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// InitStore creates the configured store or exits the process on failure.
func InitStore(cfg *config.Config) storage.Store {
	store, err := storage.NewStore(storage.BackendType(cfg.DataBackend), cfg.SQLiteDBPath)
	if err != nil {
		slog.Error("Failed to initialize store", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	return store
}
