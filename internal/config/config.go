package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

type Config struct {
	Environment string `json:"environment"`
	Server      struct {
		Host string `json:"host"`
		Port int    `json:"port"`
	} `json:"server"`
	MongoDB struct {
		URI      string `json:"uri"`
		Database string `json:"database"`
	} `json:"mongodb"`
	Frontend struct {
		URL string `json:"url"`
	} `json:"frontend"`
	Auth struct {
		// BearerSecret verifies tokens issued by the external auth
		// collaborator; this service never issues tokens itself.
		BearerSecret string `json:"bearerSecret"`
	} `json:"auth"`
	// Driver: only RecoveryIntervalMins is read (see RecoveryInterval).
	// The other three fields are parsed but not used; internal/driver
	// uses its own fixed timeout, attempt count and backoff base.
	Driver struct {
		RequestTimeoutSeconds int `json:"requestTimeoutSeconds"`
		RetryAttempts         int `json:"retryAttempts"`
		RetryBaseSeconds      int `json:"retryBaseSeconds"`
		RecoveryIntervalMins  int `json:"recoveryIntervalMinutes"`
	} `json:"driver"`
}

func Load(env string) (*Config, error) {
	configDir := os.Getenv("CONFIG_DIR")
	if configDir == "" {
		configDir = "configs"
	}

	filename := fmt.Sprintf("config.%s.json", env)
	configPath := filepath.Join(configDir, filename)

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	configStr := expandEnvVars(string(data))

	var cfg Config
	if err := json.Unmarshal([]byte(configStr), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Environment = env
	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} with environment variable values.
func expandEnvVars(s string) string {
	return os.Expand(s, func(key string) string {
		return os.Getenv(key)
	})
}

func GetEnv() string {
	env := os.Getenv("GAMEPLAY_ENV")
	if env == "" {
		return "dev"
	}
	return env
}

// RecoveryInterval returns the configured periodic-recovery interval,
// defaulting to 5 minutes (the teacher's stale-game safety-net cadence)
// when unset.
func (c *Config) RecoveryInterval() time.Duration {
	if c.Driver.RecoveryIntervalMins <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.Driver.RecoveryIntervalMins) * time.Minute
}
