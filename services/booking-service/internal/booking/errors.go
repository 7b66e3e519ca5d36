package booking

import (
	"errors"
	"fmt"
)

// ErrSlotUnavailable means the selected slot can no longer be booked and
// the visitor has to pick another one.
var ErrSlotUnavailable = errors.New("selected time slot is no longer available")

// PersistenceError wraps a store failure. Nothing was written when it is returned.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("booking %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func unavailable(reason error) error {
	return fmt.Errorf("%w: %w", ErrSlotUnavailable, reason)
}
