package config

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

const (
	EnvConfigPath = "DECKX_CONFIG"
	EnvDevice     = "DECKX_DEVICE"
	EnvLogLevel   = "DECKX_LOG_LEVEL"
	EnvStdioLog   = "DECKX_STDIO_LOG"
)

// Daemon holds process settings that come from the environment.
// Command line flags take precedence over these values.
type Daemon struct {
	ConfigPath string
	Device     string
	LogLevel   string
	StdioLog   string
}

// DaemonFromEnv reads process settings from the environment, loading a .env
// file first if one exists.
func DaemonFromEnv() Daemon {
	_ = godotenv.Load()

	return Daemon{
		ConfigPath: getEnv(EnvConfigPath, "./config.json"),
		Device:     getEnv(EnvDevice, ""),
		LogLevel:   getEnv(EnvLogLevel, "info"),
		StdioLog:   getEnv(EnvStdioLog, ""),
	}
}

// LoadOptional loads path, returning a nil Config without error when the file
// does not exist. Callers fall back to Default once the key count is known.
func LoadOptional(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return cfg, err
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
