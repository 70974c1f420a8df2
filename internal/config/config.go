// Copyright 2021 Airbus Defence and Space
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads the configuration of the ndvi command from a YAML
// file, BLOCKREADER_ prefixed environment variables and command line flags.
package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Sentinel validation errors.
var (
	ErrNoInputs          = errors.New("no input dataset")
	ErrNoOutput          = errors.New("no output path")
	ErrInvalidInput      = errors.New("input must have a name and a path")
	ErrInvalidWorkers    = errors.New("worker count must be positive")
	ErrInvalidInflight   = errors.New("max inflight tiles must not be negative")
	ErrInvalidCache      = errors.New("cache entries must not be negative")
	ErrInvalidBand       = errors.New("band must be positive")
	ErrInvalidMode       = errors.New("invalid index mode")
	ErrNdviInputs        = errors.New("ndvi modes need exactly a nir and a red input")
	ErrMissingExpression = errors.New("expr mode needs an expression")
	ErrInvalidScale      = errors.New("reflectance scale must not be zero")
	ErrInvalidLogFormat  = errors.New("invalid log format")
)

// Index modes.
const (
	ModeFloat32 = "float32"
	ModeInt16   = "int16"
	ModeExpr    = "expr"
)

// Default configuration values.
const (
	DefaultMode            = ModeFloat32
	DefaultBand            = 1
	DefaultOffset          = 1000.0
	DefaultScale           = 10000.0
	DefaultNoData          = -999.0
	DefaultRemoteBlockSize = "512k"
	DefaultNumCachedBlocks = 500
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "text"
)

// Config holds all configuration for the ndvi command.
type Config struct {
	Inputs  []Input       `mapstructure:"inputs"`
	Output  OutputConfig  `mapstructure:"output"`
	Reader  ReaderConfig  `mapstructure:"reader"`
	Index   IndexConfig   `mapstructure:"index"`
	Remote  RemoteConfig  `mapstructure:"remote"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// Input is a named input dataset. Names are the variables of index expressions.
type Input struct {
	Name string `mapstructure:"name"`
	Path string `mapstructure:"path"`
}

// OutputConfig holds output-specific configuration.
type OutputConfig struct {
	Path            string   `mapstructure:"path"`
	TempDir         string   `mapstructure:"temp_dir"`
	CreationOptions []string `mapstructure:"creation_options"`
	COG             bool     `mapstructure:"cog"`
}

// ReaderConfig holds block reader configuration.
type ReaderConfig struct {
	Workers          int `mapstructure:"workers"`
	MaxInflightTiles int `mapstructure:"max_inflight_tiles"`
	CacheEntries     int `mapstructure:"cache_entries"`
	Band             int `mapstructure:"band"`
}

// IndexConfig holds the per-pixel computation configuration.
type IndexConfig struct {
	Mode       string  `mapstructure:"mode"`
	Expression string  `mapstructure:"expression"`
	Offset     float64 `mapstructure:"offset"`
	Scale      float64 `mapstructure:"scale"`
	NoData     float64 `mapstructure:"nodata"`
}

// RemoteConfig holds gs:// access configuration.
type RemoteConfig struct {
	BlockSize       string `mapstructure:"block_size"`
	NumCachedBlocks int    `mapstructure:"num_cached_blocks"`
	Anonymous       bool   `mapstructure:"anonymous"`
	BillingProject  string `mapstructure:"billing_project"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig holds metrics-specific configuration. Metrics are served
// on Addr when it is not empty.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// flagKeys maps command line flags to configuration keys.
var flagKeys = map[string]string{
	"out":           "output.path",
	"cog":           "output.cog",
	"workers":       "reader.workers",
	"max-inflight":  "reader.max_inflight_tiles",
	"cache-entries": "reader.cache_entries",
	"band":          "reader.band",
	"mode":          "index.mode",
	"expr":          "index.expression",
	"log-level":     "logging.level",
	"log-format":    "logging.format",
	"metrics-addr":  "metrics.addr",
}

// Load loads the configuration from configPath (if not empty), the
// environment and flags (if not nil). When the nir or red flags are set,
// they replace the configured inputs.
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName("blockreader")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
	}

	viperCfg.SetEnvPrefix("BLOCKREADER")
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := viperCfg.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	if flags != nil {
		nir, _ := flags.GetString("nir")
		red, _ := flags.GetString("red")
		if nir != "" || red != "" {
			config.Inputs = []Input{{Name: "nir", Path: nir}, {Name: "red", Path: red}}
		}
	}

	validateErr := config.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("output.cog", false)
	viperCfg.SetDefault("output.temp_dir", "")

	viperCfg.SetDefault("reader.workers", runtime.NumCPU())
	viperCfg.SetDefault("reader.max_inflight_tiles", 0)
	viperCfg.SetDefault("reader.cache_entries", 0)
	viperCfg.SetDefault("reader.band", DefaultBand)

	viperCfg.SetDefault("index.mode", DefaultMode)
	viperCfg.SetDefault("index.offset", DefaultOffset)
	viperCfg.SetDefault("index.scale", DefaultScale)
	viperCfg.SetDefault("index.nodata", DefaultNoData)

	viperCfg.SetDefault("remote.block_size", DefaultRemoteBlockSize)
	viperCfg.SetDefault("remote.num_cached_blocks", DefaultNumCachedBlocks)
	viperCfg.SetDefault("remote.anonymous", false)

	viperCfg.SetDefault("logging.level", DefaultLogLevel)
	viperCfg.SetDefault("logging.format", DefaultLogFormat)
}

// InputNames returns the names of the inputs, in order
func (c *Config) InputNames() []string {
	names := make([]string, len(c.Inputs))
	for i, in := range c.Inputs {
		names[i] = in.Name
	}
	return names
}

// InputPaths returns the paths of the inputs, in order
func (c *Config) InputPaths() []string {
	paths := make([]string, len(c.Inputs))
	for i, in := range c.Inputs {
		paths[i] = in.Path
	}
	return paths
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if len(c.Inputs) == 0 {
		return ErrNoInputs
	}
	for i, in := range c.Inputs {
		if in.Name == "" || in.Path == "" {
			return fmt.Errorf("%w: input %d", ErrInvalidInput, i)
		}
	}
	if c.Output.Path == "" {
		return ErrNoOutput
	}
	if c.Reader.Workers <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, c.Reader.Workers)
	}
	if c.Reader.MaxInflightTiles < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidInflight, c.Reader.MaxInflightTiles)
	}
	if c.Reader.CacheEntries < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidCache, c.Reader.CacheEntries)
	}
	if c.Reader.Band <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidBand, c.Reader.Band)
	}
	switch c.Index.Mode {
	case ModeFloat32, ModeInt16:
		if len(c.Inputs) != 2 {
			return fmt.Errorf("%w: got %d inputs", ErrNdviInputs, len(c.Inputs))
		}
		if c.Index.Scale == 0 {
			return ErrInvalidScale
		}
	case ModeExpr:
		if strings.TrimSpace(c.Index.Expression) == "" {
			return ErrMissingExpression
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidMode, c.Index.Mode)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, c.Logging.Format)
	}
	return nil
}
