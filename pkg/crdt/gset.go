package crdt

import (
	"encoding/json"
	"iter"

	"taskcrdt/pkg/structs"
)

// GSet is a grow-only set. Elements are never removed, merge is union.
type GSet[T comparable] struct {
	items structs.Set[T]
}

func NewGSet[T comparable](items ...T) *GSet[T] {
	return &GSet[T]{items: structs.NewSet(items...)}
}

func (s *GSet[T]) Insert(item T) {
	s.items.Add(item)
}

func (s *GSet[T]) Contains(item T) bool {
	return s.items.Contains(item)
}

func (s *GSet[T]) Len() int {
	return s.items.Size()
}

// All iterates the elements in no particular order.
func (s *GSet[T]) All() iter.Seq[T] {
	return s.items.All()
}

func (s *GSet[T]) Merge(other *GSet[T]) {
	s.items.Extend(other.items)
}

func (s *GSet[T]) MarshalJSON() ([]byte, error) {
	items, err := sortedItems(s.items.All())
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		Type  string `json:"type"`
		Items []T    `json:"items"`
	}{
		Type:  GSetName,
		Items: items,
	})
}

func (s *GSet[T]) UnmarshalJSON(data []byte) error {
	var aux struct {
		Type  string `json:"type"`
		Items []T    `json:"items"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return invalidState("%s: %v", GSetName, err)
	}
	if err := checkType(GSetName, aux.Type); err != nil {
		return err
	}
	if aux.Items == nil {
		return invalidState("%s: missing \"items\"", GSetName)
	}
	s.items = structs.NewSet(aux.Items...)
	return nil
}
