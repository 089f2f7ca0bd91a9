package crdt

import (
	"encoding/json"
)

// LWWRegister is a last-writer-wins cell. The stored clock is the clock of the
// most recent write accepted by this replica, local or merged.
type LWWRegister[T any] struct {
	value T
	clock Timestamp
}

func NewLWWRegister[T any](value T, clock Timestamp) *LWWRegister[T] {
	return &LWWRegister[T]{value: value, clock: clock}
}

// Set is a local write: it overwrites value and clock without comparing
// clocks. The caller passes a clock from its own monotonic Clock.
func (r *LWWRegister[T]) Set(value T, clock Timestamp) {
	r.value = value
	r.clock = clock
}

func (r *LWWRegister[T]) Value() T {
	return r.value
}

func (r *LWWRegister[T]) Clock() Timestamp {
	return r.clock
}

// Merge takes other's value iff its clock is strictly newer. Equal clocks keep
// the current value: clocks from distinct replicas never tie, so equal clocks
// are assumed to carry equal values.
func (r *LWWRegister[T]) Merge(other *LWWRegister[T]) {
	if other.clock.After(r.clock) {
		r.value = other.value
		r.clock = other.clock
	}
}

func (r *LWWRegister[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type  string    `json:"type"`
		Value T         `json:"value"`
		Clock Timestamp `json:"clock"`
	}{
		Type:  LWWRegisterName,
		Value: r.value,
		Clock: r.clock,
	})
}

func (r *LWWRegister[T]) UnmarshalJSON(data []byte) error {
	var aux struct {
		Type  string          `json:"type"`
		Value json.RawMessage `json:"value"`
		Clock *Timestamp      `json:"clock"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return invalidState("%s: %v", LWWRegisterName, err)
	}
	if err := checkType(LWWRegisterName, aux.Type); err != nil {
		return err
	}
	if aux.Clock == nil {
		return invalidState("%s: missing clock", LWWRegisterName)
	}
	if aux.Value == nil {
		return invalidState("%s: missing value", LWWRegisterName)
	}

	var value T
	if err := json.Unmarshal(aux.Value, &value); err != nil {
		return invalidState("%s: value: %v", LWWRegisterName, err)
	}
	r.value = value
	r.clock = *aux.Clock
	return nil
}
