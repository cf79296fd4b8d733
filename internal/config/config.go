package config

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/jrholliday/VeriPy/domain/verify"
	"github.com/jrholliday/VeriPy/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Engine   EngineConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL string
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port string
}

// EngineConfig holds engine execution settings
type EngineConfig struct {
	Workers int
}

// Load reads configuration from the environment
func Load() (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
		},
		Engine: EngineConfig{
			Workers: getEnvInt("ENGINE_WORKERS", 0),
		},
	}
	if cfg.Engine.Workers < 0 {
		return nil, errors.Configf("ENGINE_WORKERS must be >= 0, got %d", cfg.Engine.Workers)
	}
	return cfg, nil
}

// LoadRunOptions reads verification run options from a YAML file and
// normalizes them, so option errors surface before any data is read
func LoadRunOptions(path string) (verify.Options, error) {
	opts := verify.DefaultOptions()
	if path == "" {
		return opts, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return opts, errors.Wrapf(err, "reading run options %s", path)
	}
	if err := yaml.Unmarshal(raw, &opts); err != nil {
		return opts, errors.Configf("parsing run options %s: %v", path, err)
	}
	if err := opts.Normalize(); err != nil {
		return opts, err
	}
	return opts, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
