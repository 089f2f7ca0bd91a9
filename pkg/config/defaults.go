package config

import (
	"github.com/google/uuid"

	"taskcrdt/pkg/structs"
)

const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendBadger = "badger"
)

var knownBackends = structs.NewSet(BackendMemory, BackendFile, BackendBadger)

var knownLogLevels = structs.NewSet("debug", "info", "warn", "error")

// badger accepts value log files in [1MB, 2GB)
const (
	minValueLogFileSize = 1 << 20
	maxValueLogFileSize = 2 << 30
)

var defaultStorage = StorageConfig{
	Backend:          BackendFile,
	Path:             "tasks",
	ValueLogFileSize: 64 << 20,
}

var defaultLog = LogConfig{
	Level: "info",
}

func Default() *Config {
	return &Config{
		Node:    NodeConfig{ID: uuid.New().String()},
		Storage: defaultStorage,
		Log:     defaultLog,
	}
}

func (c *NodeConfig) PopulateDefaults() {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
}

func (c *StorageConfig) PopulateDefaults() {
	if c.Backend == "" {
		c.Backend = defaultStorage.Backend
	}

	if c.Path == "" && c.Backend != BackendMemory {
		c.Path = defaultStorage.Path
	}

	if c.ValueLogFileSize == 0 {
		c.ValueLogFileSize = defaultStorage.ValueLogFileSize
	}
}

func (c *LogConfig) PopulateDefaults() {
	if c.Level == "" {
		c.Level = defaultLog.Level
	}
}

func (c *Config) PopulateDefaults() {
	c.Node.PopulateDefaults()
	c.Storage.PopulateDefaults()
	c.Log.PopulateDefaults()
}
