package crdt

import (
	"errors"
	"fmt"
)

// ErrInvalidState is wrapped by every decode failure. A snapshot that cannot be
// decoded must never be replaced by an empty container, it may carry tombstones.
var ErrInvalidState = errors.New("invalid encoded state")

var ErrClockOverflow = errors.New("hlc counter overflow")

var ErrTypeMismatch = fmt.Errorf("%w: crdt type mismatch", ErrInvalidState)

func invalidState(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidState, fmt.Sprintf(format, args...))
}
