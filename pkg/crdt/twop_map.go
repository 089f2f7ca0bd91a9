package crdt

import (
	"encoding/json"
	"iter"

	"taskcrdt/pkg/structs"
)

// TwoPMap is a two-phase map: once a key is removed it is tombstoned for good
// and no later insert, local or merged, brings it back.
type TwoPMap[K comparable, V Merger[V]] struct {
	adds    map[K]V
	removes structs.Set[K]
}

func NewTwoPMap[K comparable, V Merger[V]]() *TwoPMap[K, V] {
	return &TwoPMap[K, V]{
		adds:    make(map[K]V),
		removes: structs.NewSet[K](),
	}
}

// Insert merges value into key's entry. It is a no-op for removed keys.
func (m *TwoPMap[K, V]) Insert(key K, value V) {
	if m.removes.Contains(key) {
		return
	}
	insertOrMerge(m.adds, key, value)
}

// Remove drops key and tombstones it permanently.
func (m *TwoPMap[K, V]) Remove(key K) {
	delete(m.adds, key)
	m.removes.Add(key)
}

// Retain removes, permanently, every key whose value fails keep.
func (m *TwoPMap[K, V]) Retain(keep func(K, V) bool) {
	for k, v := range m.adds {
		if !keep(k, v) {
			m.Remove(k)
		}
	}
}

func (m *TwoPMap[K, V]) Get(key K) (V, bool) {
	v, ok := m.adds[key]
	return v, ok
}

func (m *TwoPMap[K, V]) IsRemoved(key K) bool {
	return m.removes.Contains(key)
}

func (m *TwoPMap[K, V]) Len() int {
	return len(m.adds)
}

func (m *TwoPMap[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for k, v := range m.adds {
			if !yield(k, v) {
				return
			}
		}
	}
}

// Merge unions the tombstones before applying other's entries, so a remove on
// either side wins over a concurrent insert of the same key.
func (m *TwoPMap[K, V]) Merge(other *TwoPMap[K, V]) {
	m.removes.Extend(other.removes)

	for k, v := range other.adds {
		m.Insert(k, v)
	}

	for k := range m.adds {
		if m.removes.Contains(k) {
			delete(m.adds, k)
		}
	}
}

func (m *TwoPMap[K, V]) MarshalJSON() ([]byte, error) {
	adds, err := sortedEntries(m.adds)
	if err != nil {
		return nil, err
	}
	removes, err := sortedItems(m.removes.All())
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		Type    string        `json:"type"`
		Adds    []entry[K, V] `json:"adds"`
		Removes []K           `json:"removes"`
	}{
		Type:    TwoPMapName,
		Adds:    adds,
		Removes: removes,
	})
}

func (m *TwoPMap[K, V]) UnmarshalJSON(data []byte) error {
	var aux struct {
		Type    string                      `json:"type"`
		Adds    []entry[K, json.RawMessage] `json:"adds"`
		Removes []K                         `json:"removes"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return invalidState("%s: %v", TwoPMapName, err)
	}
	if err := checkType(TwoPMapName, aux.Type); err != nil {
		return err
	}
	if aux.Removes == nil {
		return invalidState("%s: missing \"removes\"", TwoPMapName)
	}
	adds, err := decodeValues[K, V](TwoPMapName, "adds", aux.Adds)
	if err != nil {
		return err
	}
	removes := structs.NewSet(aux.Removes...)
	for k := range adds {
		if removes.Contains(k) {
			return invalidState("%s: removed key %v still has a value", TwoPMapName, k)
		}
	}
	m.adds = adds
	m.removes = removes
	return nil
}
