package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the host process configuration. The keyframe engine itself reads
// no environment; cmd/server resolves these values and passes them in.
type Config struct {
	Port            string
	DataPath        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads .env files into the environment. If a file does not exist, Load
// returns an error that callers can ignore to fall back on the system env or
// defaults. With no paths, ".env" is used.
func Load(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	return godotenv.Load(paths...)
}

// FromEnv resolves Config from environment variables, applying defaults.
func FromEnv() Config {
	return Config{
		Port:            GetEnv("PORT", "8080"),
		DataPath:        GetEnv("DATA_PATH", "data/data.json"),
		LogLevel:        GetEnv("LOG_LEVEL", "info"),
		LogFormat:       GetEnv("LOG_FORMAT", "json"),
		ShutdownTimeout: time.Duration(GetEnvInt("SHUTDOWN_TIMEOUT_SECONDS", 10)) * time.Second,
	}
}

// GetEnv returns the value of the environment variable named by key, or fallback
// if the variable is unset or empty.
func GetEnv(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

// GetEnvInt returns the integer value of the environment variable named by key,
// or fallback if the variable is unset, empty, or not a valid integer.
func GetEnvInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return fallback
}
