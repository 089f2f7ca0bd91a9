package storage

import (
	"context"
	"fmt"
	"log/slog"

	"taskcrdt/pkg/config"
)

// SnapshotStore keeps encoded replica snapshots under string keys.
// Implementations are safe for concurrent use.
type SnapshotStore interface {
	// Load returns ErrNoSnapshot if nothing was saved under key.
	Load(ctx context.Context, key string) ([]byte, error)
	// Save replaces the snapshot under key as a whole.
	Save(ctx context.Context, key string, data []byte) error
	// Keys lists the saved keys in lexical order.
	Keys(ctx context.Context) ([]string, error)
	Close() error
}

// Open creates the backend selected by cfg.
func Open(cfg config.StorageConfig) (SnapshotStore, error) {
	slog.Debug("opening snapshot store", "backend", cfg.Backend, "path", cfg.Path)

	switch cfg.Backend {
	case config.BackendMemory:
		return NewMemoryStore(0), nil
	case config.BackendFile:
		return NewFileStore(cfg.Path)
	case config.BackendBadger:
		return NewBadgerStore(cfg.Path,
			WithBadgerValueLogFileSize(cfg.ValueLogFileSize),
			WithBadgerLogger(slog.Default()),
		)
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownBackend, cfg.Backend)
	}
}

func checkKey(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}
	if key == "" {
		return ErrEmptyKey
	}
	return nil
}
