package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by point lookups that match no row.
	ErrNotFound = errors.New("storage: not found")

	// ErrPersistence matches every PersistenceError through errors.Is.
	ErrPersistence = errors.New("storage: persistence failure")
)

// PersistenceError reports a failed write. The transaction it belonged to
// has been rolled back.
type PersistenceError struct {
	Op       string
	Resource Resource
	Err      error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %s: %v", e.Resource, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

func persistErr(op string, res Resource, err error) error {
	return &PersistenceError{Op: op, Resource: res, Err: err}
}
