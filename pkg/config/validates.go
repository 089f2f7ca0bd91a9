package config

import (
	"fmt"

	"github.com/google/uuid"
)

func (c *Config) Validate() error {
	if err := c.Node.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	if err := c.Log.Validate(); err != nil {
		return err
	}
	return nil
}

func (c *NodeConfig) Validate() error {
	id, err := uuid.Parse(c.ID)
	if err != nil || id == uuid.Nil {
		return fmt.Errorf("%w: %q", ErrInvalidNodeID, c.ID)
	}
	return nil
}

func (c *StorageConfig) Validate() error {

	if !knownBackends.Contains(c.Backend) {
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.Backend)
	}

	if c.Backend != BackendMemory && c.Path == "" {
		return ErrMissingPath
	}

	if c.Backend == BackendBadger {
		if c.ValueLogFileSize < minValueLogFileSize || c.ValueLogFileSize >= maxValueLogFileSize {
			return fmt.Errorf("%w: %d", ErrInvalidValueLogFileSize, c.ValueLogFileSize)
		}
	}

	return nil
}

func (c *LogConfig) Validate() error {
	if !knownLogLevels.Contains(c.Level) {
		return fmt.Errorf("%w: %q", ErrUnknownLogLevel, c.Level)
	}
	return nil
}
