package config

import (
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTPPort     string
	DBPath       string
	NatsURL      string
	LogLevel     string
	WebAssetPath string
}

func getEnv(key, defaultValue string, printEnv bool) string {
	logger := log.Default()
	value := os.Getenv(key)
	if printEnv {
		logger.Info("Env", "key", key, "value", value)
	}
	if value == "" {
		return defaultValue
	}
	return value
}

// LoadConfig reads configuration from the environment, applying an optional
// .env file first. An empty NATS_URL means "start an embedded server".
func LoadConfig(printEnv bool) (*Config, error) {
	_ = godotenv.Load()

	conf := &Config{
		HTTPPort:     getEnv("HTTP_PORT", "8471", printEnv),
		DBPath:       getEnv("DB_PATH", "./output/sqlite/presets.db", printEnv),
		NatsURL:      getEnv("NATS_URL", "", printEnv),
		LogLevel:     getEnv("LOG_LEVEL", "info", printEnv),
		WebAssetPath: getEnv("WEB_ASSET_PATH", "./web", printEnv),
	}

	if conf.DBPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(conf.DBPath), 0o755); err != nil {
			log.Default().Warn("Could not create database directory", "error", err)
		}
	}

	return conf, nil
}
