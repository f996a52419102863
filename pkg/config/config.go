// Package config provides a reusable loader for splitledger configuration
// files and environment variables. It is versioned so that applications can
// depend on a stable API contract.
//
// Version: v0.1.0
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/tobael/splitledger/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.1.0"

// Config is the unified configuration for a splitledger node. It mirrors
// the structure of the YAML files Load reads (default.yaml, looked up in
// cmd/config and config).
type Config struct {
	SplitLedger struct {
		RelayURL                string `mapstructure:"relay_url" json:"relay_url"`
		GroupSecretSource       string `mapstructure:"group_secret_source" json:"group_secret_source"`
		BackgroundSyncInterval int    `mapstructure:"background_sync_interval_seconds" json:"background_sync_interval_seconds"`
		StoragePath             string `mapstructure:"storage_path" json:"storage_path"`
	} `mapstructure:"splitledger" json:"splitledger"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
		File  string `mapstructure:"file" json:"file"`
	} `mapstructure:"logging" json:"logging"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Load reads configuration files and merges any environment specific
// overrides. The resulting configuration is stored in AppConfig and returned.
//
// The function uses the provided environment name to merge additional config
// files. If env is empty, only the default configuration is loaded.
func Load(env string) (*Config, error) {
	viper.SetConfigName("default")
	viper.AddConfigPath("cmd/config")
	viper.AddConfigPath("config")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		return nil, utils.Wrap(err, "load config")
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv() // picks up SPLITLEDGER_* overrides

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	if AppConfig.SplitLedger.BackgroundSyncInterval <= 0 {
		AppConfig.SplitLedger.BackgroundSyncInterval = 30
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the SPLITLEDGER_ENV environment
// variable.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("SPLITLEDGER_ENV", ""))
}
