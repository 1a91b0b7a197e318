// Package config loads optional TOML defaults for the command-line tools.
// Flags always win over the config file; the file only shifts defaults.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config represents the tool configuration.
type Config struct {
	Index  IndexConfig  `toml:"index"`
	Output OutputConfig `toml:"output"`
	Log    LogConfig    `toml:"log"`
}

// IndexConfig contains index-reading defaults.
type IndexConfig struct {
	// Table is the table or view bgenix reads variant rows from.
	Table string `toml:"table"`
}

// OutputConfig contains transcoding defaults.
type OutputConfig struct {
	// CompressionLevel is the zlib level used for v1.1 output.
	CompressionLevel int `toml:"compression_level"`
}

// LogConfig contains logging defaults.
type LogConfig struct {
	// Path, when set, tees console output to this file.
	Path string `toml:"path"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Index:  IndexConfig{Table: "Variant"},
		Output: OutputConfig{CompressionLevel: 9},
	}
}

// Load reads a TOML config file over the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %q: %w", path, err)
	}

	if cfg.Output.CompressionLevel < 0 || cfg.Output.CompressionLevel > 9 {
		return nil, fmt.Errorf("config file %q: compression_level %d is outside 0-9", path, cfg.Output.CompressionLevel)
	}

	return cfg, nil
}
