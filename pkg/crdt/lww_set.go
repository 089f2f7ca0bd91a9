package crdt

import (
	"encoding/json"
	"iter"
)

// LWWSet is an add/remove set with a clock per item on each side. An item is
// a member iff its add clock is defined and newer than its remove clock.
// Removes are kept as tombstones and are never collected.
type LWWSet[T comparable] struct {
	adds    map[T]Timestamp
	removes map[T]Timestamp
}

func NewLWWSet[T comparable]() *LWWSet[T] {
	return &LWWSet[T]{
		adds:    make(map[T]Timestamp),
		removes: make(map[T]Timestamp),
	}
}

// Insert records clock as the add clock of item if it is newer than the one
// already recorded.
func (s *LWWSet[T]) Insert(item T, clock Timestamp) {
	advance(s.adds, item, clock)
}

// Remove records clock as the remove clock of item if it is newer than the
// one already recorded.
func (s *LWWSet[T]) Remove(item T, clock Timestamp) {
	advance(s.removes, item, clock)
}

func (s *LWWSet[T]) Contains(item T) bool {
	added, ok := s.adds[item]
	if !ok {
		return false
	}
	removed, ok := s.removes[item]
	return !ok || added.After(removed)
}

// All iterates the current members in no particular order.
func (s *LWWSet[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		for item := range s.adds {
			if s.Contains(item) && !yield(item) {
				return
			}
		}
	}
}

func (s *LWWSet[T]) Len() int {
	n := 0
	for range s.All() {
		n++
	}
	return n
}

// Latest returns the newest clock recorded for any add or remove.
func (s *LWWSet[T]) Latest() (Timestamp, bool) {
	var latest Timestamp
	found := false
	for _, side := range []map[T]Timestamp{s.adds, s.removes} {
		for _, c := range side {
			if !found || c.After(latest) {
				latest, found = c, true
			}
		}
	}
	return latest, found
}

// Merge takes the pointwise maximum of the add clocks and, independently, of
// the remove clocks.
func (s *LWWSet[T]) Merge(other *LWWSet[T]) {
	for item, clock := range other.adds {
		advance(s.adds, item, clock)
	}
	for item, clock := range other.removes {
		advance(s.removes, item, clock)
	}
}

func (s *LWWSet[T]) MarshalJSON() ([]byte, error) {
	adds, err := sortedEntries(s.adds)
	if err != nil {
		return nil, err
	}
	removes, err := sortedEntries(s.removes)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		Type    string                `json:"type"`
		Adds    []entry[T, Timestamp] `json:"adds"`
		Removes []entry[T, Timestamp] `json:"removes"`
	}{
		Type:    LWWSetName,
		Adds:    adds,
		Removes: removes,
	})
}

func (s *LWWSet[T]) UnmarshalJSON(data []byte) error {
	var aux struct {
		Type    string                `json:"type"`
		Adds    []entry[T, Timestamp] `json:"adds"`
		Removes []entry[T, Timestamp] `json:"removes"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return invalidState("%s: %v", LWWSetName, err)
	}
	if err := checkType(LWWSetName, aux.Type); err != nil {
		return err
	}
	adds, err := entriesToMap(LWWSetName, "adds", aux.Adds)
	if err != nil {
		return err
	}
	removes, err := entriesToMap(LWWSetName, "removes", aux.Removes)
	if err != nil {
		return err
	}
	s.adds = adds
	s.removes = removes
	return nil
}

// advance stores clock under item unless a newer or equal clock is present.
func advance[T comparable](m map[T]Timestamp, item T, clock Timestamp) {
	if current, ok := m[item]; !ok || clock.After(current) {
		m[item] = clock
	}
}
