package store

import "errors"

var (
	// ErrNotFound indicates no state exists for the requested key.
	ErrNotFound = errors.New("not found")

	// ErrVersionConflict indicates a conditional write lost to a concurrent
	// mutation. Callers recover by reloading and reapplying.
	ErrVersionConflict = errors.New("version conflict")
)
