package crdt

import (
	"encoding/json"

	"golang.org/x/exp/constraints"
)

// Max is the simplest semilattice: merge keeps the greater value.
type Max[T constraints.Ordered] struct {
	value T
}

func NewMax[T constraints.Ordered](value T) *Max[T] {
	return &Max[T]{value: value}
}

func (m *Max[T]) Value() T {
	return m.value
}

// Merge keeps the greater value. NaN orders below every other value, so
// merging floats stays commutative.
func (m *Max[T]) Merge(other *Max[T]) {
	if other.value > m.value || m.value != m.value {
		m.value = other.value
	}
}

func (m *Max[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type  string `json:"type"`
		Value T      `json:"value"`
	}{
		Type:  MaxName,
		Value: m.value,
	})
}

func (m *Max[T]) UnmarshalJSON(data []byte) error {
	var aux struct {
		Type  string `json:"type"`
		Value *T     `json:"value"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return invalidState("%s: %v", MaxName, err)
	}
	if err := checkType(MaxName, aux.Type); err != nil {
		return err
	}
	if aux.Value == nil {
		return invalidState("%s: missing value", MaxName)
	}
	m.value = *aux.Value
	return nil
}
