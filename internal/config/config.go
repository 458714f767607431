// Package config loads process settings for the configuration store from a
// JSON config file with environment-variable overrides.
package config

import (
	"os"
	"path/filepath"
)

type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port int
	// AuthToken protects the admin API. Empty disables authentication,
	// which is only sensible for local use.
	AuthToken string
}

type StorageConfig struct {
	// DataDir holds the SQLite cache.
	DataDir string
	// WorkingDir holds the canonical configuration files.
	WorkingDir string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	dataDir := defaultDataDir()
	return Config{
		Server: ServerConfig{
			Port: 4200,
		},
		Storage: StorageConfig{
			DataDir:    dataDir,
			WorkingDir: filepath.Join(dataDir, "configs"),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "cbconfig-data"
		}
	}
	return filepath.Join(dir, "cbconfig")
}

// Load reads configuration from the config file at
// $XDG_CONFIG_HOME/cbconfig/config.json, then applies CBCONFIG_*
// environment-variable overrides.
func Load() (Config, error) {
	return loadWith(newFileBackend())
}

func loadWith(b Backend) (Config, error) {
	cfg := defaults()
	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}
