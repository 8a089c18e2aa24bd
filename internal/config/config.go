// Package config loads engine configuration with koanf layering:
// defaults, then an optional YAML file, then DISCOVERY_ environment
// variables.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix for configuration environment variables, e.g.
// DISCOVERY_SERVER_PORT overrides server.port.
const EnvPrefix = "DISCOVERY_"

// Config is the full engine configuration.
type Config struct {
	DataDir string        `koanf:"data_dir" validate:"required"`
	Server  ServerConfig  `koanf:"server"`
	Log     LogConfig     `koanf:"log"`
	Reindex ReindexConfig `koanf:"reindex"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port" validate:"gte=1,lte=65535"`
}

// LogConfig configures logging output.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

// ReindexConfig tunes bulk reconciliation.
type ReindexConfig struct {
	BatchSize int `koanf:"batch_size" validate:"gte=1"`
}

// DBPath returns the SQLite database path under the data directory.
func (c *Config) DBPath() string {
	return c.DataDir + "/discovery.db"
}

// IndexPath returns the Bleve index path under the data directory.
func (c *Config) IndexPath() string {
	return c.DataDir + "/bleve"
}

func defaults() *Config {
	return &Config{
		DataDir: "./data",
		Server: ServerConfig{
			Host: "localhost",
			Port: 8465,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Reindex: ReindexConfig{
			BatchSize: 100,
		},
	}
}

// Load builds the configuration. path optionally names a YAML config file;
// a missing file is only an error when the path was given explicitly.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaults(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// envTransform maps DISCOVERY_* environment variables to config keys.
//
// Examples:
//   - DISCOVERY_DATA_DIR    -> data_dir
//   - DISCOVERY_SERVER_PORT -> server.port
//   - DISCOVERY_LOG_LEVEL   -> log.level
func envTransform(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))

	mappings := map[string]string{
		"data_dir":           "data_dir",
		"server_host":        "server.host",
		"server_port":        "server.port",
		"log_level":          "log.level",
		"log_format":         "log.format",
		"reindex_batch_size": "reindex.batch_size",
	}
	if mapped, ok := mappings[key]; ok {
		return mapped
	}
	return key
}
