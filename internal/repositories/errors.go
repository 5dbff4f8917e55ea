package repositories

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when the targeted task does not exist.
var ErrNotFound = errors.New("task not found")

// StoreError wraps any persistence failure, timeouts included.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func storeErr(op string, err error) error {
	if err == nil || errors.Is(err, ErrNotFound) {
		return err
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}
