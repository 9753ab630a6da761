package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Sternrassler/agent-cache/pkg/agentcache"
	"github.com/Sternrassler/agent-cache/pkg/cache"
	"github.com/Sternrassler/agent-cache/pkg/logging"
)

// duration wraps time.Duration so YAML values like "5m" decode.
type duration time.Duration

func (d *duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = duration(parsed)
	return nil
}

// Config holds the sidecar configuration. Values are resolved in order:
// built-in defaults, then the YAML file named by CONFIG_FILE, then
// environment variables.
type Config struct {
	RedisURL        string   `yaml:"redis_url"`
	Port            string   `yaml:"port"`
	LogLevel        string   `yaml:"log_level"`
	LogFormat       string   `yaml:"log_format"`
	MaxSizeBytes    int64    `yaml:"cache_max_size_bytes"`
	Policy          string   `yaml:"cache_policy"`
	Prefix          string   `yaml:"cache_prefix"`
	CleanupInterval duration `yaml:"cleanup_interval"`
}

func defaultConfig() Config {
	return Config{
		RedisURL:        "localhost:6379",
		Port:            "8080",
		LogLevel:        string(logging.LevelInfo),
		LogFormat:       "json",
		MaxSizeBytes:    agentcache.DefaultMaxSizeBytes,
		Policy:          agentcache.DefaultPolicy,
		Prefix:          cache.DefaultNamespacePrefix,
		CleanupInterval: duration(agentcache.DefaultCleanupInterval),
	}
}

// loadConfig resolves the sidecar configuration from defaults, the optional
// CONFIG_FILE, and the environment.
func loadConfig() (Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.RedisURL = v
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("CACHE_MAX_SIZE_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid CACHE_MAX_SIZE_BYTES %q: %w", v, err)
		}
		cfg.MaxSizeBytes = n
	}
	if v := os.Getenv("CACHE_POLICY"); v != "" {
		cfg.Policy = v
	}
	if v := os.Getenv("CACHE_PREFIX"); v != "" {
		cfg.Prefix = v
	}
	if v := os.Getenv("CLEANUP_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid CLEANUP_INTERVAL %q: %w", v, err)
		}
		cfg.CleanupInterval = duration(d)
	}
	return nil
}
