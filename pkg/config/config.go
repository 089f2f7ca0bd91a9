package config

import (
	"errors"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Node    NodeConfig    `yaml:"node"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
}

type NodeConfig struct {
	// ID is the replica's node id (uuid). A fresh one is generated when empty.
	ID string `yaml:"id"`
}

type StorageConfig struct {
	Backend          string `yaml:"backend"` // memory | file | badger
	Path             string `yaml:"path"`
	ValueLogFileSize int64  `yaml:"value_log_file_size"` // badger only
}

type LogConfig struct {
	Level string `yaml:"level"`
}

func Read(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Load reads path, fills in defaults and validates the result. A missing
// file yields the default config.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		cfg = Default()
	case err != nil:
		return nil, err
	}

	cfg.PopulateDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
