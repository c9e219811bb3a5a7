package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds client configuration
type Config struct {
	API     APIConfig
	Session SessionConfig
	Storage StorageConfig
	Redis   RedisConfig
	Log     LogConfig
}

type APIConfig struct {
	BaseURL string
	Timeout time.Duration
}

type SessionConfig struct {
	// RefreshInterval drives the proactive background refresh.
	RefreshInterval time.Duration
	// RestoreTimeout bounds the startup restoration sequence.
	RestoreTimeout time.Duration
	// ExpiryLeeway treats tokens expiring within this window as already expired.
	ExpiryLeeway time.Duration
}

type StorageConfig struct {
	// Backend selects the session store: "file" or "redis".
	Backend string
	// Dir is the file store directory (defaults under the user config dir).
	Dir string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

type LogConfig struct {
	Level string
}

// LoadConfig loads configuration from environment variables and an optional .env file
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	viper.AutomaticEnv()

	viper.SetDefault("CIVIC_API_URL", "http://localhost:8080/api/v1")
	viper.SetDefault("CIVIC_API_TIMEOUT", 30)
	viper.SetDefault("CIVIC_REFRESH_INTERVAL", 10)
	viper.SetDefault("CIVIC_RESTORE_TIMEOUT", 10)
	viper.SetDefault("CIVIC_EXPIRY_LEEWAY", 30)
	viper.SetDefault("CIVIC_STORAGE_BACKEND", "file")
	viper.SetDefault("CIVIC_REDIS_ADDR", "localhost:6379")
	viper.SetDefault("CIVIC_REDIS_PREFIX", "civicvoice:")
	viper.SetDefault("LOG_LEVEL", "info")

	cfg := &Config{
		API: APIConfig{
			BaseURL: viper.GetString("CIVIC_API_URL"),
			Timeout: time.Duration(viper.GetInt("CIVIC_API_TIMEOUT")) * time.Second,
		},
		Session: SessionConfig{
			RefreshInterval: time.Duration(viper.GetInt("CIVIC_REFRESH_INTERVAL")) * time.Minute,
			RestoreTimeout:  time.Duration(viper.GetInt("CIVIC_RESTORE_TIMEOUT")) * time.Second,
			ExpiryLeeway:    time.Duration(viper.GetInt("CIVIC_EXPIRY_LEEWAY")) * time.Second,
		},
		Storage: StorageConfig{
			Backend: viper.GetString("CIVIC_STORAGE_BACKEND"),
			Dir:     viper.GetString("CIVIC_STORAGE_DIR"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("CIVIC_REDIS_ADDR"),
			Password: os.Getenv("CIVIC_REDIS_PASSWORD"),
			DB:       viper.GetInt("CIVIC_REDIS_DB"),
			Prefix:   viper.GetString("CIVIC_REDIS_PREFIX"),
		},
		Log: LogConfig{
			Level: viper.GetString("LOG_LEVEL"),
		},
	}

	if cfg.Storage.Backend != "file" && cfg.Storage.Backend != "redis" {
		return nil, fmt.Errorf("unsupported storage backend %q", cfg.Storage.Backend)
	}
	if cfg.Storage.Dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			base = "."
		}
		cfg.Storage.Dir = filepath.Join(base, "civicvoice")
	}

	return cfg, nil
}
