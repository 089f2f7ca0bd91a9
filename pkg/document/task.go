package document

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"taskcrdt/pkg/crdt"
)

// Task is one entry of the task list. Every field is its own CRDT so
// concurrent edits of different fields never conflict.
type Task struct {
	Added       *crdt.LWWRegister[time.Time]
	Complete    *crdt.LWWRegister[bool]
	Description *crdt.LWWRegister[string]
	Tags        *crdt.LWWSet[string]
	Annotations *crdt.LWWMap[string, *crdt.LWWRegister[string]]
}

func NewTask(description string, clock crdt.Timestamp) *Task {
	added := time.Unix(0, clock.WallTime).UTC()
	return &Task{
		Added:       crdt.NewLWWRegister(added, clock),
		Complete:    crdt.NewLWWRegister(false, clock),
		Description: crdt.NewLWWRegister(description, clock),
		Tags:        crdt.NewLWWSet[string](),
		Annotations: crdt.NewLWWMap[string, *crdt.LWWRegister[string]](),
	}
}

func (t *Task) Merge(other *Task) {
	t.Added.Merge(other.Added)
	t.Complete.Merge(other.Complete)
	t.Description.Merge(other.Description)
	t.Tags.Merge(other.Tags)
	t.Annotations.Merge(other.Annotations)
}

// TagList returns the current tags in lexical order.
func (t *Task) TagList() []string {
	tags := slices.Collect(t.Tags.All())
	slices.Sort(tags)
	return tags
}

// Annotation returns the value stored under key.
func (t *Task) Annotation(key string) (string, bool) {
	reg, ok := t.Annotations.Get(key)
	if !ok {
		return "", false
	}
	return reg.Value(), true
}

// Latest returns the newest clock written anywhere in the task.
func (t *Task) Latest() crdt.Timestamp {
	latest := t.Added.Clock()
	for _, c := range []crdt.Timestamp{t.Complete.Clock(), t.Description.Clock()} {
		if c.After(latest) {
			latest = c
		}
	}
	if c, ok := t.Tags.Latest(); ok && c.After(latest) {
		latest = c
	}
	if c, ok := t.Annotations.Latest(); ok && c.After(latest) {
		latest = c
	}
	return latest
}

func (t *Task) String() string {
	status := "[ ]"
	if t.Complete.Value() {
		status = "[x]"
	}
	s := fmt.Sprintf("%s %s", status, t.Description.Value())
	if tags := t.TagList(); len(tags) > 0 {
		s += " #" + strings.Join(tags, " #")
	}
	return s
}

type taskJSON struct {
	Added       *crdt.LWWRegister[time.Time]                    `json:"added"`
	Complete    *crdt.LWWRegister[bool]                         `json:"complete"`
	Description *crdt.LWWRegister[string]                       `json:"description"`
	Tags        *crdt.LWWSet[string]                            `json:"tags"`
	Annotations *crdt.LWWMap[string, *crdt.LWWRegister[string]] `json:"annotations"`
}

func (t *Task) MarshalJSON() ([]byte, error) {
	return json.Marshal(taskJSON(*t))
}

func (t *Task) UnmarshalJSON(data []byte) error {
	var aux taskJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return fmt.Errorf("%w: task: %v", crdt.ErrInvalidState, err)
	}
	if aux.Added == nil || aux.Complete == nil || aux.Description == nil || aux.Tags == nil || aux.Annotations == nil {
		return fmt.Errorf("%w: task: missing field", crdt.ErrInvalidState)
	}
	*t = Task(aux)
	return nil
}
