// Package config provides configuration management for the key-value
// store. It loads settings from a YAML file and environment variables,
// with thread-safe singleton access.
package config

import (
	"log/slog"
	"os"
	"sync"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// PoolKind selects a threadpool.Pool implementation for the server.
type PoolKind string

const (
	PoolNaive PoolKind = "naive"
	PoolQueue PoolKind = "queue"
)

// Config holds all application configuration values.
type Config struct {
	DATA_DIR                   string   `yaml:"DATA_DIR"`                   // directory holding the log files
	COMPACTION_THRESHOLD_BYTES int64    `yaml:"COMPACTION_THRESHOLD_BYTES"` // stale-byte threshold that triggers a compaction
	SERVER_ADDR                string   `yaml:"SERVER_ADDR"`                // TCP address the server listens on
	POOL_SIZE                  int      `yaml:"POOL_SIZE"`                  // worker count for PoolKind == queue
	POOL_KIND                  PoolKind `yaml:"POOL_KIND"`                  // "naive" or "queue"
}

var (
	appConfig *Config
	once      sync.Once
	initErr   error
)

const configPath = "internal/config/config.yml"

// defaults is applied over whatever the YAML file leaves zero-valued, so
// a config.yml that only overrides one field still yields a usable
// Config.
var defaults = Config{
	DATA_DIR:                   "data",
	COMPACTION_THRESHOLD_BYTES: 1 << 20, // 1 MiB of stale bytes
	SERVER_ADDR:                "127.0.0.1:4000",
	POOL_SIZE:                  4,
	POOL_KIND:                  PoolQueue,
}

// LoadConfig reads configuration from config.yml and optionally a .env
// file, expanding environment variables referenced in the YAML. It uses
// a sync.Once so concurrent callers all observe the same loaded Config.
// A missing config.yml is not an error: the defaults are used as-is.
func LoadConfig() (*Config, error) {
	once.Do(func() {
		if err := godotenv.Load(); err != nil {
			slog.Debug("config: no .env file found or error loading it", "error", err)
		} else {
			slog.Debug("config: .env file loaded")
		}

		cfg := defaults

		file, err := os.ReadFile(configPath)
		switch {
		case err == nil:
			if yerr := yaml.Unmarshal([]byte(os.ExpandEnv(string(file))), &cfg); yerr != nil {
				initErr = yerr
				return
			}
			applyDefaults(&cfg)
		case os.IsNotExist(err):
			slog.Debug("config: no config.yml found, using defaults")
		default:
			initErr = err
			return
		}

		appConfig = &cfg
	})
	return appConfig, initErr
}

// applyDefaults fills in zero-valued fields left unset by the YAML file.
func applyDefaults(cfg *Config) {
	if cfg.DATA_DIR == "" {
		cfg.DATA_DIR = defaults.DATA_DIR
	}
	if cfg.COMPACTION_THRESHOLD_BYTES == 0 {
		cfg.COMPACTION_THRESHOLD_BYTES = defaults.COMPACTION_THRESHOLD_BYTES
	}
	if cfg.SERVER_ADDR == "" {
		cfg.SERVER_ADDR = defaults.SERVER_ADDR
	}
	if cfg.POOL_SIZE == 0 {
		cfg.POOL_SIZE = defaults.POOL_SIZE
	}
	if cfg.POOL_KIND == "" {
		cfg.POOL_KIND = defaults.POOL_KIND
	}
}

// GetConfig returns the singleton configuration instance. It panics if
// LoadConfig has not already succeeded, since every caller in this
// module obtains Config through LoadConfig at startup.
func GetConfig() *Config {
	if appConfig == nil {
		panic("config not loaded - call LoadConfig() first")
	}
	return appConfig
}

