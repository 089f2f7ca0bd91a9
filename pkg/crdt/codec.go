package crdt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
)

// Type names written into the "type" field of every encoded container.
const (
	MaxName         = "Max"
	LWWRegisterName = "LWWRegister"
	GSetName        = "GSet"
	GMapName        = "GMap"
	LWWSetName      = "LWWSet"
	LWWMapName      = "LWWMap"
	TwoPMapName     = "TwoPMap"
)

type entry[K, V any] struct {
	Key   K `json:"key"`
	Value V `json:"value"`
}

// sortedEntries flattens m into a list ordered by the JSON encoding of the
// keys, so equal maps always encode to equal bytes.
func sortedEntries[K comparable, V any](m map[K]V) ([]entry[K, V], error) {
	type keyed struct {
		raw []byte
		e   entry[K, V]
	}
	tmp := make([]keyed, 0, len(m))
	for k, v := range m {
		raw, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		tmp = append(tmp, keyed{raw: raw, e: entry[K, V]{Key: k, Value: v}})
	}
	slices.SortFunc(tmp, func(a, b keyed) int { return bytes.Compare(a.raw, b.raw) })

	res := make([]entry[K, V], 0, len(tmp))
	for _, t := range tmp {
		res = append(res, t.e)
	}
	return res, nil
}

func sortedItems[T comparable](items func(yield func(T) bool)) ([]T, error) {
	type keyed struct {
		raw  []byte
		item T
	}
	var tmp []keyed
	for item := range items {
		raw, err := json.Marshal(item)
		if err != nil {
			return nil, err
		}
		tmp = append(tmp, keyed{raw: raw, item: item})
	}
	slices.SortFunc(tmp, func(a, b keyed) int { return bytes.Compare(a.raw, b.raw) })

	res := make([]T, 0, len(tmp))
	for _, t := range tmp {
		res = append(res, t.item)
	}
	return res, nil
}

// entriesToMap rebuilds a map, rejecting nil lists and duplicate keys.
func entriesToMap[K comparable, V any](name, field string, entries []entry[K, V]) (map[K]V, error) {
	if entries == nil {
		return nil, invalidState("%s: missing %q", name, field)
	}
	m := make(map[K]V, len(entries))
	for _, e := range entries {
		if _, ok := m[e.Key]; ok {
			return nil, invalidState("%s: duplicate key %v in %q", name, e.Key, field)
		}
		m[e.Key] = e.Value
	}
	return m, nil
}

// decodeValues is entriesToMap for mergeable values. A null value would leave
// a nil pointer in the map, so it is rejected.
func decodeValues[K comparable, V any](name, field string, entries []entry[K, json.RawMessage]) (map[K]V, error) {
	raw, err := entriesToMap(name, field, entries)
	if err != nil {
		return nil, err
	}
	m := make(map[K]V, len(raw))
	for k, data := range raw {
		if len(data) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
			return nil, invalidState("%s: null value for key %v", name, k)
		}
		var v V
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, invalidState("%s: key %v: %v", name, k, err)
		}
		m[k] = v
	}
	return m, nil
}

func checkType(name, got string) error {
	if got != "" && got != name {
		return fmt.Errorf("%w: expected %s, got %s", ErrTypeMismatch, name, got)
	}
	return nil
}
