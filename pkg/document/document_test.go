package document

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskcrdt/pkg/crdt"
)

var (
	nodeA = uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	nodeB = uuid.MustParse("00000000-0000-0000-0000-00000000000b")
)

func at(wall int64, node uuid.UUID) crdt.Timestamp {
	return crdt.Timestamp{WallTime: wall, NodeID: node}
}

// clone copies d through its encoding, the way a replica would receive it.
func clone(t *testing.T, d *Document) *Document {
	t.Helper()
	data, err := json.Marshal(d)
	require.NoError(t, err)
	var c Document
	require.NoError(t, json.Unmarshal(data, &c))
	return &c
}

func TestDocument_AddTask(t *testing.T) {
	d := New()
	id := d.AddTask("buy milk", at(10, nodeA))

	task, ok := d.Task(id)
	require.True(t, ok)
	assert.Equal(t, "buy milk", task.Description.Value())
	assert.False(t, task.Complete.Value())
	assert.Equal(t, int64(10), task.Added.Value().UnixNano())
	assert.True(t, d.Authors.Contains(nodeA))
	assert.Equal(t, "[ ] buy milk", task.String())
}

func TestDocument_Edits(t *testing.T) {
	d := New()
	id := d.AddTask("write report", at(10, nodeA))

	require.True(t, d.UpdateDescription(id, "write the report", at(11, nodeA)))
	require.True(t, d.SetComplete(id, true, at(12, nodeA)))
	require.True(t, d.Tag(id, "work", at(13, nodeA)))
	require.True(t, d.Tag(id, "urgent", at(14, nodeA)))
	require.True(t, d.Untag(id, "urgent", at(15, nodeA)))
	require.True(t, d.Annotate(id, "due", "friday", at(16, nodeB)))

	task, _ := d.Task(id)
	assert.Equal(t, "[x] write the report #work", task.String())
	assert.Equal(t, []string{"work"}, task.TagList())

	due, ok := task.Annotation("due")
	require.True(t, ok)
	assert.Equal(t, "friday", due)
	assert.True(t, d.Authors.Contains(nodeB))

	require.True(t, d.Unannotate(id, "due", at(17, nodeA)))
	_, ok = task.Annotation("due")
	assert.False(t, ok)

	latest, ok := d.Latest()
	require.True(t, ok)
	assert.Equal(t, at(17, nodeA), latest)
}

func TestDocument_EditsOfUnknownTask(t *testing.T) {
	d := New()
	missing := uuid.New()

	assert.False(t, d.UpdateDescription(missing, "x", at(1, nodeA)))
	assert.False(t, d.SetComplete(missing, true, at(1, nodeA)))
	assert.False(t, d.Tag(missing, "x", at(1, nodeA)))
	assert.False(t, d.Untag(missing, "x", at(1, nodeA)))
	assert.False(t, d.Annotate(missing, "k", "v", at(1, nodeA)))
	assert.False(t, d.RemoveTask(missing, at(1, nodeA)))
	assert.Equal(t, 0, d.Authors.Len())

	_, ok := d.Latest()
	assert.False(t, ok)
}

func TestDocument_RemoveIsTerminal(t *testing.T) {
	a := New()
	id := a.AddTask("temp", at(10, nodeA))
	b := clone(t, a)

	require.True(t, a.RemoveTask(id, at(11, nodeA)))
	// b edits concurrently with the remove
	require.True(t, b.UpdateDescription(id, "still here?", at(20, nodeB)))

	a.Merge(clone(t, b))
	b.Merge(clone(t, a))

	for _, d := range []*Document{a, b} {
		_, ok := d.Task(id)
		assert.False(t, ok)
		assert.True(t, d.Tasks.IsRemoved(id))
		assert.Empty(t, d.List())
	}
}

func TestDocument_ConcurrentEditsConverge(t *testing.T) {
	a := New()
	id := a.AddTask("plan trip", at(10, nodeA))
	b := clone(t, a)

	a.SetComplete(id, true, at(20, nodeA))
	a.Tag(id, "travel", at(21, nodeA))
	b.UpdateDescription(id, "plan the trip", at(22, nodeB))
	b.Tag(id, "travel", at(19, nodeB))
	b.Untag(id, "travel", at(23, nodeB))
	b.AddTask("pack", at(24, nodeB))

	ab := clone(t, a)
	ab.Merge(clone(t, b))
	ba := clone(t, b)
	ba.Merge(clone(t, a))

	left, err := json.Marshal(ab)
	require.NoError(t, err)
	right, err := json.Marshal(ba)
	require.NoError(t, err)
	assert.Equal(t, string(left), string(right))

	task, ok := ab.Task(id)
	require.True(t, ok)
	assert.Equal(t, "[x] plan the trip", task.String())
	assert.Len(t, ab.List(), 2)
	assert.ElementsMatch(t, []uuid.UUID{nodeA, nodeB}, collect(ab.Authors))
}

func collect(s *crdt.GSet[uuid.UUID]) []uuid.UUID {
	var res []uuid.UUID
	for id := range s.All() {
		res = append(res, id)
	}
	return res
}

func TestDocument_ListOrder(t *testing.T) {
	d := New()
	third := d.AddTask("third", at(30, nodeA))
	first := d.AddTask("first", at(10, nodeA))
	second := d.AddTask("second", at(20, nodeB))

	var got []uuid.UUID
	for _, e := range d.List() {
		got = append(got, e.ID)
	}
	assert.Equal(t, []uuid.UUID{first, second, third}, got)
}

func TestDocument_JSON(t *testing.T) {
	d := New()
	id := d.AddTask("encode me", at(10, nodeA))
	d.Tag(id, "x", at(11, nodeA))
	d.Annotate(id, "k", "v", at(12, nodeA))

	c := clone(t, d)
	task, ok := c.Task(id)
	require.True(t, ok)
	assert.Equal(t, "[ ] encode me #x", task.String())
	v, ok := task.Annotation("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)
	assert.True(t, task.Added.Value().Equal(d.List()[0].Task.Added.Value()))
}

func TestDocument_InvalidJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{name: "not an object", in: `[]`},
		{name: "missing tasks", in: `{"authors":{"type":"GSet","items":[]}}`},
		{name: "missing authors", in: `{"tasks":{"type":"TwoPMap","adds":[],"removes":[]}}`},
		{name: "wrong container", in: `{"tasks":{"type":"GMap","entries":[]},"authors":{"type":"GSet","items":[]}}`},
		{
			name: "task without fields",
			in: `{"tasks":{"type":"TwoPMap","adds":[{"key":"00000000-0000-0000-0000-000000000001","value":{}}],"removes":[]},` +
				`"authors":{"type":"GSet","items":[]}}`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var d Document
			err := json.Unmarshal([]byte(tc.in), &d)
			assert.ErrorIs(t, err, crdt.ErrInvalidState)
		})
	}
}
