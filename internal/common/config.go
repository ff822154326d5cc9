package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Store  StoreConfig
	Remote RemoteConfig
	Watch  WatchConfig
	Sync   SyncConfig
	Queue  QueueConfig
}

// StoreConfig holds local-store configuration
type StoreConfig struct {
	Path string
}

// RemoteConfig holds remote receipt service configuration
type RemoteConfig struct {
	BaseURL string
	Timeout time.Duration
}

// WatchConfig holds capture-folder watcher configuration
type WatchConfig struct {
	Dir      string
	Debounce time.Duration
}

// SyncConfig holds sync-cycle configuration
type SyncConfig struct {
	Interval time.Duration
}

// QueueConfig holds upload worker-pool configuration
type QueueConfig struct {
	Workers       int
	Size          int
	UploadTimeout time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Path: getEnv("STORE_PATH", "./pricetrack.db"),
		},
		Remote: RemoteConfig{
			BaseURL: getEnv("REMOTE_BASE_URL", ""),
			Timeout: getEnvAsDuration("REMOTE_TIMEOUT", 30*time.Second),
		},
		Watch: WatchConfig{
			Dir:      getEnv("WATCH_DIR", ""),
			Debounce: getEnvAsDuration("WATCH_DEBOUNCE", 500*time.Millisecond),
		},
		Sync: SyncConfig{
			Interval: getEnvAsDuration("SYNC_INTERVAL", 5*time.Minute),
		},
		Queue: QueueConfig{
			Workers:       getEnvAsInt("UPLOAD_WORKERS", 2),
			Size:          getEnvAsInt("UPLOAD_QUEUE_SIZE", 64),
			UploadTimeout: getEnvAsDuration("UPLOAD_TIMEOUT", 2*time.Minute),
		},
	}
}

// Helper functions for environment variable parsing
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

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Store.Path == "" {
		return NewAppError("CONFIG_ERROR", "STORE_PATH is required", ErrInvalidInput)
	}
	if c.Remote.BaseURL == "" {
		return NewAppError("CONFIG_ERROR", "REMOTE_BASE_URL is required", ErrInvalidInput)
	}
	if c.Remote.Timeout <= 0 {
		return NewAppError("CONFIG_ERROR", "REMOTE_TIMEOUT must be positive", ErrInvalidInput)
	}
	return nil
}
