package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.smsd/config.toml.
type Config struct {
	DefaultProfile string    `toml:"default_profile"`
	HTTP           HTTP      `toml:"http"`
	Transport      Transport `toml:"transport"`
}

// HTTP configures the local API server.
type HTTP struct {
	Listen string `toml:"listen"`
}

// Transport selects and tunes the carrier transport.
type Transport struct {
	Kind            string `toml:"kind"`
	LoopbackDelayMs int    `toml:"loopback_delay_ms"`
	LoopbackEcho    bool   `toml:"loopback_echo"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DefaultProfile: "default",
		HTTP:           HTTP{Listen: "127.0.0.1:8970"},
		Transport: Transport{
			Kind:            "loopback",
			LoopbackDelayMs: 150,
			LoopbackEcho:    true,
		},
	}
}

// Load reads config from the given path. Returns an error if the file is
// missing; callers fall back to Default.
func Load(path string) (*Config, error) {
	cfg := Default()
	_, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
