package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
)

const defaultBadgerValueLogFileSize = 64 << 20 // 64MB

var snapshotPrefix = []byte("snapshot/")

// BadgerStore keeps snapshots in a badger database, one entry per key.
type BadgerStore struct {
	db *badger.DB
}

type badgerConfig struct {
	valueLogFileSize int64
	inMemory         bool
	logger           *slog.Logger
}

// BadgerOption customizes how Badger is opened.
type BadgerOption func(*badgerConfig) error

// WithBadgerValueLogFileSize sets max bytes per value log (vlog) file.
func WithBadgerValueLogFileSize(sizeBytes int64) BadgerOption {
	return func(cfg *badgerConfig) error {
		if sizeBytes <= 0 {
			return fmt.Errorf("badger value log file size must be > 0, got %d", sizeBytes)
		}
		cfg.valueLogFileSize = sizeBytes
		return nil
	}
}

// WithBadgerInMemory keeps the whole database in memory. The path is ignored.
func WithBadgerInMemory() BadgerOption {
	return func(cfg *badgerConfig) error {
		cfg.inMemory = true
		return nil
	}
}

// WithBadgerLogger routes badger's own log output to logger.
func WithBadgerLogger(logger *slog.Logger) BadgerOption {
	return func(cfg *badgerConfig) error {
		cfg.logger = logger
		return nil
	}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

// badger is chatty at info level, so it is logged at debug.
func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func NewBadgerStore(path string, options ...BadgerOption) (*BadgerStore, error) {
	cfg := badgerConfig{
		valueLogFileSize: defaultBadgerValueLogFileSize,
	}
	for _, option := range options {
		if option == nil {
			continue
		}
		if err := option(&cfg); err != nil {
			return nil, err
		}
	}

	var opts badger.Options
	if cfg.inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if path == "" {
			return nil, errors.New("path is required for persistent database")
		}
		if err := os.MkdirAll(path, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", path, err)
		}
		opts = badger.DefaultOptions(path)
	}
	opts = opts.WithValueLogFileSize(cfg.valueLogFileSize)
	opts = opts.WithNumVersionsToKeep(1)
	if cfg.logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.logger.With("component", "badger")})
	} else {
		opts.Logger = nil
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func snapshotKey(key string) []byte {
	return append(append([]byte{}, snapshotPrefix...), key...)
}

func (s *BadgerStore) Load(ctx context.Context, key string) ([]byte, error) {
	if err := checkKey(ctx, key); err != nil {
		return nil, err
	}

	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(snapshotKey(key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		return nil, ErrNoSnapshot
	case errors.Is(err, badger.ErrDBClosed):
		return nil, ErrClosed
	case err != nil:
		return nil, fmt.Errorf("load snapshot %q: %w", key, err)
	}
	return data, nil
}

func (s *BadgerStore) Save(ctx context.Context, key string, data []byte) error {
	if err := checkKey(ctx, key); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(snapshotKey(key), data)
	})
	switch {
	case errors.Is(err, badger.ErrDBClosed):
		return ErrClosed
	case err != nil:
		return fmt.Errorf("save snapshot %q: %w", key, err)
	}
	return nil
}

func (s *BadgerStore) Keys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var keys []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = snapshotPrefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			k := it.Item().Key()
			keys = append(keys, string(k[len(snapshotPrefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	return keys, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}
