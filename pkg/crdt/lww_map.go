package crdt

import (
	"encoding/json"
	"iter"
	"slices"
)

// LWWMap is a map whose key membership is an LWWSet, so deleting a key is
// resolved by clocks like any other write. Values are merged with V's own
// merge.
//
// Every value is filed under the add clock it was written with. A remove at
// clock R drops the values filed at or below R, and a key that is not a
// member holds no values at all. Filing by clock keeps merge associative when
// a key is removed on one replica and re-added on another: values written
// before the remove never come back with the re-add.
type LWWMap[K comparable, V Merger[V]] struct {
	keys   *LWWSet[K]
	values map[K]map[Timestamp]V
}

func NewLWWMap[K comparable, V Merger[V]]() *LWWMap[K, V] {
	return &LWWMap[K, V]{
		keys:   NewLWWSet[K](),
		values: make(map[K]map[Timestamp]V),
	}
}

// Insert records an add of key at clock and merges value into the current
// value of key. If a newer remove of key is already known the value is
// discarded.
func (m *LWWMap[K, V]) Insert(key K, value V, clock Timestamp) {
	m.keys.Insert(key, clock)
	if !m.keys.Contains(key) {
		return
	}

	// a local write folds everything visible under the newest add clock
	for _, v := range m.values[key] {
		value.Merge(v)
	}
	m.values[key] = map[Timestamp]V{m.keys.adds[key]: value}
}

// Remove records a remove of key at clock and drops the values written at or
// before clock.
func (m *LWWMap[K, V]) Remove(key K, clock Timestamp) {
	m.keys.Remove(key, clock)
	m.prune(key)
}

// Get returns the value of key written under the newest clock. Concurrent
// writes from other replicas that survived a merge are listed by Values and
// are folded together by the next Insert of key. Until then, for values whose
// own Merge is not last-writer-wins, Get is not the join of everything merged
// in: it is the newest version alone.
func (m *LWWMap[K, V]) Get(key K) (V, bool) {
	for v := range m.Values(key) {
		return v, true
	}
	var zero V
	return zero, false
}

// Values iterates the values of key, newest clock first.
func (m *LWWMap[K, V]) Values(key K) iter.Seq[V] {
	return func(yield func(V) bool) {
		versions := m.values[key]
		clocks := make([]Timestamp, 0, len(versions))
		for c := range versions {
			clocks = append(clocks, c)
		}
		slices.SortFunc(clocks, func(a, b Timestamp) int { return Compare(b, a) })
		for _, c := range clocks {
			if !yield(versions[c]) {
				return
			}
		}
	}
}

func (m *LWWMap[K, V]) Contains(key K) bool {
	return m.keys.Contains(key)
}

// Latest returns the newest add or remove clock of any key.
func (m *LWWMap[K, V]) Latest() (Timestamp, bool) {
	return m.keys.Latest()
}

func (m *LWWMap[K, V]) Len() int {
	return len(m.values)
}

// All iterates the members with their newest value, the same one Get returns.
func (m *LWWMap[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for k := range m.values {
			v, _ := m.Get(k)
			if !yield(k, v) {
				return
			}
		}
	}
}

// Merge joins the key sets first and prunes stale values before taking
// other's values. Merging values first would let a concurrent value update
// resurrect a removed key.
func (m *LWWMap[K, V]) Merge(other *LWWMap[K, V]) {
	m.keys.Merge(other.keys)

	for k := range m.values {
		m.prune(k)
	}

	for k, versions := range other.values {
		for c, v := range versions {
			if !m.live(k, c) {
				continue
			}
			if m.values[k] == nil {
				m.values[k] = make(map[Timestamp]V)
			}
			insertOrMerge(m.values[k], c, v)
		}
	}
}

// live reports whether a value of key written at clock survives the known
// remove of key.
func (m *LWWMap[K, V]) live(key K, clock Timestamp) bool {
	removed, ok := m.keys.removes[key]
	return !ok || clock.After(removed)
}

func (m *LWWMap[K, V]) prune(key K) {
	versions, ok := m.values[key]
	if !ok {
		return
	}
	for c := range versions {
		if !m.live(key, c) {
			delete(versions, c)
		}
	}
	if len(versions) == 0 {
		delete(m.values, key)
	}
}

func (m *LWWMap[K, V]) MarshalJSON() ([]byte, error) {
	values := make(map[K][]entry[Timestamp, V], len(m.values))
	for k, versions := range m.values {
		encoded, err := sortedEntries(versions)
		if err != nil {
			return nil, err
		}
		values[k] = encoded
	}
	entries, err := sortedEntries(values)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		Type   string                            `json:"type"`
		Keys   *LWWSet[K]                        `json:"keys"`
		Values []entry[K, []entry[Timestamp, V]] `json:"values"`
	}{
		Type:   LWWMapName,
		Keys:   m.keys,
		Values: entries,
	})
}

func (m *LWWMap[K, V]) UnmarshalJSON(data []byte) error {
	var aux struct {
		Type   string                                          `json:"type"`
		Keys   *LWWSet[K]                                      `json:"keys"`
		Values []entry[K, []entry[Timestamp, json.RawMessage]] `json:"values"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return invalidState("%s: %v", LWWMapName, err)
	}
	if err := checkType(LWWMapName, aux.Type); err != nil {
		return err
	}
	if aux.Keys == nil {
		return invalidState("%s: missing \"keys\"", LWWMapName)
	}
	raw, err := entriesToMap(LWWMapName, "values", aux.Values)
	if err != nil {
		return err
	}

	decoded := &LWWMap[K, V]{keys: aux.Keys, values: make(map[K]map[Timestamp]V, len(raw))}
	for k, encoded := range raw {
		versions, err := decodeValues[Timestamp, V](LWWMapName, "values", encoded)
		if err != nil {
			return err
		}
		if len(versions) == 0 {
			return invalidState("%s: empty value list for key %v", LWWMapName, k)
		}
		if !decoded.keys.Contains(k) {
			return invalidState("%s: value stored for removed key %v", LWWMapName, k)
		}
		added := decoded.keys.adds[k]
		for c := range versions {
			if !decoded.live(k, c) || c.After(added) {
				return invalidState("%s: value of key %v written at %s is outside its add/remove window", LWWMapName, k, c)
			}
		}
		decoded.values[k] = versions
	}

	m.keys = decoded.keys
	m.values = decoded.values
	return nil
}
