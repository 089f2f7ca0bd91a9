package document

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"taskcrdt/pkg/crdt"
)

// Document is a replicated task list. Removing a task is terminal: a task
// removed on any replica stays removed after every merge.
type Document struct {
	Tasks   *crdt.TwoPMap[uuid.UUID, *Task]
	Authors *crdt.GSet[uuid.UUID]
}

// Entry is a task together with its id.
type Entry struct {
	ID   uuid.UUID
	Task *Task
}

func New() *Document {
	return &Document{
		Tasks:   crdt.NewTwoPMap[uuid.UUID, *Task](),
		Authors: crdt.NewGSet[uuid.UUID](),
	}
}

// AddTask creates a task written at clock and returns its id. The writing
// node is recorded as an author.
func (d *Document) AddTask(description string, clock crdt.Timestamp) uuid.UUID {
	id := uuid.New()
	d.Tasks.Insert(id, NewTask(description, clock))
	d.Authors.Insert(clock.NodeID)
	return id
}

func (d *Document) Task(id uuid.UUID) (*Task, bool) {
	return d.Tasks.Get(id)
}

func (d *Document) UpdateDescription(id uuid.UUID, description string, clock crdt.Timestamp) bool {
	return d.edit(id, clock, func(t *Task) { t.Description.Set(description, clock) })
}

func (d *Document) SetComplete(id uuid.UUID, complete bool, clock crdt.Timestamp) bool {
	return d.edit(id, clock, func(t *Task) { t.Complete.Set(complete, clock) })
}

func (d *Document) Tag(id uuid.UUID, tag string, clock crdt.Timestamp) bool {
	return d.edit(id, clock, func(t *Task) { t.Tags.Insert(tag, clock) })
}

func (d *Document) Untag(id uuid.UUID, tag string, clock crdt.Timestamp) bool {
	return d.edit(id, clock, func(t *Task) { t.Tags.Remove(tag, clock) })
}

func (d *Document) Annotate(id uuid.UUID, key, value string, clock crdt.Timestamp) bool {
	return d.edit(id, clock, func(t *Task) {
		t.Annotations.Insert(key, crdt.NewLWWRegister(value, clock), clock)
	})
}

func (d *Document) Unannotate(id uuid.UUID, key string, clock crdt.Timestamp) bool {
	return d.edit(id, clock, func(t *Task) { t.Annotations.Remove(key, clock) })
}

// RemoveTask deletes the task for good. It reports whether the task was
// present.
func (d *Document) RemoveTask(id uuid.UUID, clock crdt.Timestamp) bool {
	if _, ok := d.Tasks.Get(id); !ok {
		return false
	}
	d.Tasks.Remove(id)
	d.Authors.Insert(clock.NodeID)
	return true
}

func (d *Document) edit(id uuid.UUID, clock crdt.Timestamp, fn func(*Task)) bool {
	t, ok := d.Tasks.Get(id)
	if !ok {
		return false
	}
	fn(t)
	d.Authors.Insert(clock.NodeID)
	return true
}

// List returns the live tasks ordered by creation time, ties broken by id.
func (d *Document) List() []Entry {
	entries := make([]Entry, 0, d.Tasks.Len())
	for id, t := range d.Tasks.All() {
		entries = append(entries, Entry{ID: id, Task: t})
	}
	slices.SortFunc(entries, func(a, b Entry) int {
		if c := a.Task.Added.Value().Compare(b.Task.Added.Value()); c != 0 {
			return c
		}
		return slices.Compare(a.ID[:], b.ID[:])
	})
	return entries
}

// Latest returns the newest clock written to any live task. ok is false for
// a document without tasks.
func (d *Document) Latest() (latest crdt.Timestamp, ok bool) {
	for _, t := range d.Tasks.All() {
		if c := t.Latest(); !ok || c.After(latest) {
			latest, ok = c, true
		}
	}
	return latest, ok
}

func (d *Document) Merge(other *Document) {
	d.Tasks.Merge(other.Tasks)
	d.Authors.Merge(other.Authors)
}

type documentJSON struct {
	Tasks   *crdt.TwoPMap[uuid.UUID, *Task] `json:"tasks"`
	Authors *crdt.GSet[uuid.UUID]           `json:"authors"`
}

func (d *Document) MarshalJSON() ([]byte, error) {
	return json.Marshal(documentJSON(*d))
}

func (d *Document) UnmarshalJSON(data []byte) error {
	var aux documentJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return fmt.Errorf("%w: document: %v", crdt.ErrInvalidState, err)
	}
	if aux.Tasks == nil || aux.Authors == nil {
		return fmt.Errorf("%w: document: missing field", crdt.ErrInvalidState)
	}
	*d = Document(aux)
	return nil
}
