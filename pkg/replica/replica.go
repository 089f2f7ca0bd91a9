package replica

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"taskcrdt/pkg/crdt"
	"taskcrdt/pkg/document"
)

// Replica is one node's copy of the task document together with the clock
// that stamps the node's writes. All methods are safe for concurrent use.
type Replica struct {
	mu    sync.RWMutex
	id    uuid.UUID
	clock *crdt.Clock
	doc   *document.Document
}

func New(id uuid.UUID, opts ...crdt.ClockOption) *Replica {
	return &Replica{
		id:    id,
		clock: crdt.NewClock(id, opts...),
		doc:   document.New(),
	}
}

type snapshot struct {
	NodeID   uuid.UUID          `json:"node_id"`
	Clock    *crdt.Timestamp    `json:"clock"`
	Document *document.Document `json:"document"`
}

func decodeSnapshot(data []byte) (*snapshot, error) {
	var s snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: replica: %v", crdt.ErrInvalidState, err)
	}
	if s.NodeID == uuid.Nil || s.Clock == nil || s.Document == nil {
		return nil, fmt.Errorf("%w: replica: missing field", crdt.ErrInvalidState)
	}
	if s.Clock.NodeID != s.NodeID {
		return nil, fmt.Errorf("%w: replica: clock of node %s stored for node %s", crdt.ErrInvalidState, s.Clock.NodeID, s.NodeID)
	}
	return &s, nil
}

// NewFromSnapshot restores a replica saved by Snapshot. The clock continues
// from the saved reading, so writes after a restart still order after the
// ones before it.
func NewFromSnapshot(data []byte, opts ...crdt.ClockOption) (*Replica, error) {
	s, err := decodeSnapshot(data)
	if err != nil {
		return nil, err
	}
	return &Replica{
		id:    s.NodeID,
		clock: crdt.RestoreClock(*s.Clock, opts...),
		doc:   s.Document,
	}, nil
}

// Snapshot возвращает снимок реплики для хранения или передачи другому узлу
func (r *Replica) Snapshot() ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clock := r.clock.Current()
	return json.Marshal(snapshot{
		NodeID:   r.id,
		Clock:    &clock,
		Document: r.doc,
	})
}

// MergeSnapshot merges the document of another replica's snapshot.
func (r *Replica) MergeSnapshot(data []byte) error {
	s, err := decodeSnapshot(data)
	if err != nil {
		return err
	}
	if s.NodeID == r.id {
		slog.Warn("merging a snapshot of the same node", "snapshot_node", s.NodeID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.merge(s.Document, *s.Clock)
	return nil
}

// Merge merges other into the replica's document. other is consumed.
func (r *Replica) Merge(other *document.Document) {
	r.mu.Lock()
	defer r.mu.Unlock()

	latest, ok := other.Latest()
	if !ok {
		r.doc.Merge(other)
		return
	}
	r.merge(other, latest)
}

func (r *Replica) merge(other *document.Document, seen crdt.Timestamp) {
	before := r.doc.Tasks.Len()
	r.doc.Merge(other)
	now := r.clock.Observe(seen)
	slog.Debug("merged document",
		"tasks_before", before,
		"tasks_after", r.doc.Tasks.Len(),
		"clock", now.String(),
	)
}

func (r *Replica) ID() uuid.UUID { return r.id }

// Clock returns the last timestamp issued by the replica.
func (r *Replica) Clock() crdt.Timestamp { return r.clock.Current() }

func (r *Replica) AddTask(description string) uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()

	ts := r.clock.Tick()
	id := r.doc.AddTask(description, ts)
	slog.Debug("task added", "task_id", id, "clock", ts.String())
	return id
}

func (r *Replica) UpdateDescription(id uuid.UUID, description string) error {
	return r.mutate(id, "description updated", func(ts crdt.Timestamp) bool {
		return r.doc.UpdateDescription(id, description, ts)
	})
}

func (r *Replica) SetComplete(id uuid.UUID, complete bool) error {
	return r.mutate(id, "completion set", func(ts crdt.Timestamp) bool {
		return r.doc.SetComplete(id, complete, ts)
	})
}

func (r *Replica) Tag(id uuid.UUID, tag string) error {
	return r.mutate(id, "task tagged", func(ts crdt.Timestamp) bool {
		return r.doc.Tag(id, tag, ts)
	})
}

func (r *Replica) Untag(id uuid.UUID, tag string) error {
	return r.mutate(id, "task untagged", func(ts crdt.Timestamp) bool {
		return r.doc.Untag(id, tag, ts)
	})
}

func (r *Replica) Annotate(id uuid.UUID, key, value string) error {
	return r.mutate(id, "task annotated", func(ts crdt.Timestamp) bool {
		return r.doc.Annotate(id, key, value, ts)
	})
}

func (r *Replica) Unannotate(id uuid.UUID, key string) error {
	return r.mutate(id, "annotation removed", func(ts crdt.Timestamp) bool {
		return r.doc.Unannotate(id, key, ts)
	})
}

// RemoveTask deletes the task on every replica that merges this one.
func (r *Replica) RemoveTask(id uuid.UUID) error {
	return r.mutate(id, "task removed", func(ts crdt.Timestamp) bool {
		return r.doc.RemoveTask(id, ts)
	})
}

// mutate ticks the clock only for tasks that exist.
func (r *Replica) mutate(id uuid.UUID, msg string, fn func(crdt.Timestamp) bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.doc.Task(id); !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	ts := r.clock.Tick()
	fn(ts)
	slog.Debug(msg, "task_id", id, "clock", ts.String())
	return nil
}

// Task returns a copy of the task with the given id.
func (r *Replica) Task(id uuid.UUID) (*document.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.doc.Task(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	return copyTask(t)
}

// List returns copies of the live tasks, oldest first.
func (r *Replica) List() ([]document.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := r.doc.List()
	for i, e := range entries {
		t, err := copyTask(e.Task)
		if err != nil {
			return nil, err
		}
		entries[i].Task = t
	}
	return entries, nil
}

func copyTask(t *document.Task) (*document.Task, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	var c document.Task
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Resolve finds a live task by its full id or by a unique prefix of it.
func (r *Replica) Resolve(ref string) (uuid.UUID, error) {
	if id, err := uuid.Parse(ref); err == nil {
		return id, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	ref = strings.ToLower(ref)
	var found []uuid.UUID
	for id := range r.doc.Tasks.All() {
		if strings.HasPrefix(id.String(), ref) {
			found = append(found, id)
		}
	}
	switch {
	case ref == "" || len(found) == 0:
		return uuid.Nil, fmt.Errorf("%w: %q", ErrTaskNotFound, ref)
	case len(found) > 1:
		return uuid.Nil, fmt.Errorf("%w: %q", ErrAmbiguousRef, ref)
	}
	return found[0], nil
}
