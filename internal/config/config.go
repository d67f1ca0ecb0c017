// Package config loads reflo's configuration with spf13/viper, the way
// the teacher's cmd package wires config file, environment, and flag
// sources together (cmd/config.go, cmd/main.go's initialize).
package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

// Config is reflo's top-level configuration, loaded from (in ascending
// precedence) defaults, a config file, and environment variables
// prefixed REFLO_. No command-line flags are bound into it.
type Config struct {
	// StateFile is where the file-backed state store persists
	// dependency/target checksums between runs.
	StateFile string `mapstructure:"state_file"`

	// PostgresDSN, when set, switches the state store to
	// internal/statestore/pgstore instead of the file store.
	PostgresDSN string `mapstructure:"postgres_dsn"`

	// Workers bounds the executor's concurrent task count.
	Workers int `mapstructure:"workers"`

	// MaxTasks bounds total task executions per reactive run.
	MaxTasks int `mapstructure:"max_tasks"`

	// PollInterval is loaded from config (default 2s); no reflo code
	// path reads it, and there is no watch mode.
	PollInterval time.Duration `mapstructure:"poll_interval"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	Object ObjectStoreConfig `mapstructure:"object_store"`
}

// ObjectStoreConfig configures the optional MinIO/S3 backend.
type ObjectStoreConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Secure          bool   `mapstructure:"secure"`
}

func setDefaults(v *viper.Viper) {
	stateFile, err := xdg.StateFile("reflo/state.yaml")
	if err != nil {
		stateFile = ".reflo/state.yaml"
	}
	v.SetDefault("state_file", stateFile)
	v.SetDefault("workers", 4)
	v.SetDefault("max_tasks", 10000)
	v.SetDefault("poll_interval", 2*time.Second)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
}

// Load reads configFile (if non-empty), layers in REFLO_-prefixed
// environment variables, and unmarshals the result into a Config.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("reflo")
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("reflo")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if configPath, err := xdg.ConfigFile("reflo/reflo.yaml"); err == nil {
			v.AddConfigPath(filepath.Dir(configPath))
		}
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}
