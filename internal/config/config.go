package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// StorageConfig holds storage backend settings
type StorageConfig struct {
	// Type selects the backend: "memory" or "redis"
	Type     string `yaml:"type"`
	RedisURL string `yaml:"redis_url"`
}

// AuthConfig holds authentication settings
type AuthConfig struct {
	SessionDuration time.Duration `yaml:"session_duration"`
	AdminKey        string        `yaml:"admin_key"`
}

// GameConfig holds game rule settings
type GameConfig struct {
	// EndThreshold is the absolute total score at which a game completes
	EndThreshold int `yaml:"end_threshold"`
}

// Config is the top-level application configuration
type Config struct {
	Server   ServerConfig  `yaml:"server"`
	Storage  StorageConfig `yaml:"storage"`
	Auth     AuthConfig    `yaml:"auth"`
	Game     GameConfig    `yaml:"game"`
	LogLevel string        `yaml:"log_level"`
}

// Default returns the default configuration
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:            "",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second, // Long timeout for SSE
			ShutdownTimeout: 30 * time.Second,
		},
		Storage: StorageConfig{
			Type: "memory",
		},
		Auth: AuthConfig{
			SessionDuration: 24 * time.Hour,
		},
		Game: GameConfig{
			EndThreshold: 100,
		},
		LogLevel: "info",
	}
}

// Load reads configuration, starting from defaults, layering in the YAML
// file at path (if non-empty) and then environment variable overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv overrides config values from environment variables
func applyEnv(cfg *Config) {
	if v := os.Getenv("ABLAKOS_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("ABLAKOS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("STORAGE_TYPE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Storage.RedisURL = v
	}
	if v := os.Getenv("ABLAKOS_ADMIN_KEY"); v != "" {
		cfg.Auth.AdminKey = v
	}
	if v := os.Getenv("ABLAKOS_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

// Validate checks the configuration for invalid values
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Storage.Type != "memory" && c.Storage.Type != "redis" {
		return fmt.Errorf("invalid storage type: %q (must be 'memory' or 'redis')", c.Storage.Type)
	}
	if c.Storage.Type == "redis" && c.Storage.RedisURL == "" {
		return fmt.Errorf("redis_url required when storage type is redis")
	}
	if c.Game.EndThreshold <= 0 {
		return fmt.Errorf("invalid end threshold: %d", c.Game.EndThreshold)
	}
	return nil
}
