package storage

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
)

// scaleThreshold — при каком количестве ключей на шард начинаем увеличивать
const scaleThreshold = 1024

const defaultShards = 16

type shard struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// MemoryStore keeps snapshots in a sharded in-process map. Nothing survives
// Close; it backs tests and throwaway replicas.
type MemoryStore struct {
	// growthLock is held for reading by every access and for writing while
	// the shard array is rebuilt.
	growthLock sync.RWMutex
	shards     []*shard
	numShards  uint32
	closed     atomic.Bool

	// статистика
	countKeys atomic.Int64
}

func NewMemoryStore(initialShards int) *MemoryStore {
	if initialShards <= 0 {
		initialShards = defaultShards
	}
	s := &MemoryStore{}
	s.resize(nextPowerOfTwo(initialShards))
	return s
}

func (s *MemoryStore) resize(n uint32) {
	shards := make([]*shard, n)
	for i := range shards {
		shards[i] = &shard{data: make(map[string][]byte)}
	}
	for _, old := range s.shards {
		for k, v := range old.data {
			shards[hashKey(k)&(n-1)].data[k] = v
		}
	}
	s.shards = shards
	s.numShards = n
}

// shardFor must be called with growthLock held.
func (s *MemoryStore) shardFor(key string) *shard {
	return s.shards[hashKey(key)&(s.numShards-1)]
}

func (s *MemoryStore) Load(ctx context.Context, key string) ([]byte, error) {
	if err := s.check(ctx, key); err != nil {
		return nil, err
	}

	s.growthLock.RLock()
	defer s.growthLock.RUnlock()

	sh := s.shardFor(key)
	sh.mu.RLock()
	data, ok := sh.data[key]
	sh.mu.RUnlock()
	if !ok {
		return nil, ErrNoSnapshot
	}
	return slices.Clone(data), nil
}

func (s *MemoryStore) Save(ctx context.Context, key string, data []byte) error {
	if err := s.check(ctx, key); err != nil {
		return err
	}

	s.growthLock.RLock()
	sh := s.shardFor(key)
	sh.mu.Lock()
	if _, ok := sh.data[key]; !ok {
		s.countKeys.Add(1)
	}
	sh.data[key] = slices.Clone(data)
	sh.mu.Unlock()
	s.growthLock.RUnlock()

	s.maybeScale()
	return nil
}

func (s *MemoryStore) Keys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.growthLock.RLock()
	defer s.growthLock.RUnlock()

	keys := make([]string, 0, s.countKeys.Load())
	for _, sh := range s.shards {
		sh.mu.RLock()
		for k := range sh.data {
			keys = append(keys, k)
		}
		sh.mu.RUnlock()
	}
	slices.Sort(keys)
	return keys, nil
}

func (s *MemoryStore) Close() error {
	s.closed.Store(true)
	return nil
}

func (s *MemoryStore) check(ctx context.Context, key string) error {
	if s.closed.Load() {
		return ErrClosed
	}
	return checkKey(ctx, key)
}

func (s *MemoryStore) maybeScale() {
	s.growthLock.RLock()
	n := s.numShards
	s.growthLock.RUnlock()

	if s.countKeys.Load()/int64(n) > scaleThreshold {
		s.growShards()
	}
}

func (s *MemoryStore) growShards() {
	s.growthLock.Lock()
	defer s.growthLock.Unlock()

	if s.countKeys.Load()/int64(s.numShards) <= scaleThreshold {
		return // кто-то уже увеличил
	}

	s.resize(s.numShards * 2)
	slog.Debug("memory store scaled", "shards", s.numShards)
}
