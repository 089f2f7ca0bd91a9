package crdt

import (
	"encoding/json"
	"iter"
)

// GMap is a grow-only map whose values are themselves mergeable. Keys are
// never removed; a value only advances under V's own merge.
type GMap[K comparable, V Merger[V]] struct {
	entries map[K]V
}

func NewGMap[K comparable, V Merger[V]]() *GMap[K, V] {
	return &GMap[K, V]{entries: make(map[K]V)}
}

// Insert stores value under key, merging it into the existing value if the
// key is already present. The map takes ownership of value.
func (m *GMap[K, V]) Insert(key K, value V) {
	insertOrMerge(m.entries, key, value)
}

// Get returns the stored value. For pointer values the result is the live
// entry and may be mutated in place.
func (m *GMap[K, V]) Get(key K) (V, bool) {
	v, ok := m.entries[key]
	return v, ok
}

func (m *GMap[K, V]) Len() int {
	return len(m.entries)
}

func (m *GMap[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for k, v := range m.entries {
			if !yield(k, v) {
				return
			}
		}
	}
}

func (m *GMap[K, V]) Merge(other *GMap[K, V]) {
	for k, v := range other.entries {
		m.Insert(k, v)
	}
}

func (m *GMap[K, V]) MarshalJSON() ([]byte, error) {
	entries, err := sortedEntries(m.entries)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		Type    string        `json:"type"`
		Entries []entry[K, V] `json:"entries"`
	}{
		Type:    GMapName,
		Entries: entries,
	})
}

func (m *GMap[K, V]) UnmarshalJSON(data []byte) error {
	var aux struct {
		Type    string                      `json:"type"`
		Entries []entry[K, json.RawMessage] `json:"entries"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return invalidState("%s: %v", GMapName, err)
	}
	if err := checkType(GMapName, aux.Type); err != nil {
		return err
	}
	entries, err := decodeValues[K, V](GMapName, "entries", aux.Entries)
	if err != nil {
		return err
	}
	m.entries = entries
	return nil
}

func insertOrMerge[K comparable, V Merger[V]](m map[K]V, key K, value V) {
	if existing, ok := m[key]; ok {
		existing.Merge(value)
		return
	}
	m[key] = value
}
