package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

const (
	DefaultAddress   = ":8080"
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

var ErrInvalidLogFormat = errors.New("log format must be json or console")

// Config holds the engine server configuration
type Config struct {
	Address   string
	LogLevel  string
	LogFormat string
}

type fileConfig struct {
	Server struct {
		Address string `toml:"address"`
	} `toml:"server"`
	Logging struct {
		Level  string `toml:"level"`
		Format string `toml:"format"`
	} `toml:"logging"`
}

func Default() *Config {
	return &Config{
		Address:   DefaultAddress,
		LogLevel:  DefaultLogLevel,
		LogFormat: DefaultLogFormat,
	}
}

// Load reads defaults, then the TOML file at path (if any), then RUMMY_* environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		var parsed fileConfig
		if err := toml.Unmarshal(data, &parsed); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
		if parsed.Server.Address != "" {
			cfg.Address = parsed.Server.Address
		}
		if parsed.Logging.Level != "" {
			cfg.LogLevel = parsed.Logging.Level
		}
		if parsed.Logging.Format != "" {
			cfg.LogFormat = parsed.Logging.Format
		}
	}

	if addr := os.Getenv("RUMMY_ADDRESS"); addr != "" {
		cfg.Address = addr
	}
	if level := os.Getenv("RUMMY_LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}
	if format := os.Getenv("RUMMY_LOG_FORMAT"); format != "" {
		cfg.LogFormat = format
	}

	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)
	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		return nil, ErrInvalidLogFormat
	}

	return cfg, nil
}
