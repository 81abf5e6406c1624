// Package config loads the resource limits and runtime settings that bound
// load_collection and the tile-processing engine, following the
// viper/YAML/env-prefix conventions of the teacher CLI (internal/cmd/root.go).
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Limits bounds the work a single process_graph invocation may request,
// grounded on spec §5's resource model and §7's OutputLimitExceeded /
// ItemsLimitExceeded errors.
type Limits struct {
	MaxPixels      int64 `mapstructure:"max-pixels"`
	MaxItems       int   `mapstructure:"max-items"`
	MaxConcurrency int   `mapstructure:"max-concurrency"`
	RequestTimeoutSeconds int `mapstructure:"request-timeout-seconds"`
}

// DefaultLimits mirrors reasonable production defaults; overridable via
// config file or OPENEOCORE_* environment variables.
func DefaultLimits() Limits {
	return Limits{
		MaxPixels:             100_000_000,
		MaxItems:               1000,
		MaxConcurrency:         8,
		RequestTimeoutSeconds:  30,
	}
}

// Config is the full set of settings read from file/env/flags.
type Config struct {
	Limits        Limits `mapstructure:"limits"`
	DataSourceURL string `mapstructure:"data-source-url"`
	TileStorePath string `mapstructure:"tile-store-path"`
	LogLevel      string `mapstructure:"log-level"`
}

// Load reads configuration from cfgFile (if non-empty, an explicit path;
// otherwise ./config.yaml in the working directory) layered under
// OPENEOCORE_-prefixed environment variables, the same precedence the
// teacher CLI's initConfig establishes.
func Load(v *viper.Viper, cfgFile string) (Config, error) {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("OPENEOCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	def := DefaultLimits()
	v.SetDefault("limits.max-pixels", def.MaxPixels)
	v.SetDefault("limits.max-items", def.MaxItems)
	v.SetDefault("limits.max-concurrency", def.MaxConcurrency)
	v.SetDefault("limits.request-timeout-seconds", def.RequestTimeoutSeconds)
	v.SetDefault("log-level", "info")

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, nil
}
