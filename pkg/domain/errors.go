package domain

import (
	"errors"
	"fmt"
)

// ErrConfigNotSaved is returned when a saved configuration is required but only
// the transient default exists.
var ErrConfigNotSaved = errors.New("config not saved")

// StorageError wraps a failure reported by the storage engine.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// ConflictError is returned by SaveDatum when the supplied revision is stale.
// Callers re-fetch the record and retry normalization and validation.
type ConflictError struct {
	Entity     EntityType
	ID         string
	Rev        string
	CurrentRev string
}

func (e *ConflictError) Error() string {
	if e.Rev == "" {
		return fmt.Sprintf("%s %q already exists at revision %s", e.Entity, e.ID, e.CurrentRev)
	}
	return fmt.Sprintf("%s %q revision conflict: have %s, current %s", e.Entity, e.ID, e.Rev, e.CurrentRev)
}

// NotFoundError is returned when an operation targets a missing record.
type NotFoundError struct {
	Entity EntityType
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// IsConflict reports whether err is a revision conflict.
func IsConflict(err error) bool {
	var conflict *ConflictError
	return errors.As(err, &conflict)
}
