package vectorstore

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyIndex is returned when searching an index with no entries.
	ErrEmptyIndex = errors.New("vector index is empty")

	// ErrCorruptIndex is returned when a persisted snapshot cannot be read.
	ErrCorruptIndex = errors.New("vector index snapshot is corrupt")

	// ErrNotFound is returned when a directory holds no persisted snapshot.
	ErrNotFound = errors.New("vector index snapshot not found")

	// ErrInvalidEntry is returned by Insert for entries that cannot be indexed.
	ErrInvalidEntry = errors.New("invalid index entry")

	// ErrDimensionMismatch is returned when vectors from the current embedder
	// do not fit the index, usually after switching embedding models.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// EmptyIndexError reports a search against an index with no entries.
// Callers should treat it as "no context available".
type EmptyIndexError struct {
	Name string
}

func (e *EmptyIndexError) Error() string {
	return fmt.Sprintf("vector index %q is empty", e.Name)
}

func (e *EmptyIndexError) Unwrap() error { return ErrEmptyIndex }

// CorruptIndexError reports an unreadable snapshot at Path.
type CorruptIndexError struct {
	Path   string
	Reason string
	Err    error
}

func (e *CorruptIndexError) Error() string {
	msg := fmt.Sprintf("vector index at %s is corrupt: %s", e.Path, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CorruptIndexError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrCorruptIndex, e.Err}
	}
	return []error{ErrCorruptIndex}
}

// NotFoundError reports that Path has no persisted snapshot.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no vector index snapshot at %s", e.Path)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// DimensionMismatchError reports vectors of length Got used against an index
// of dimension Want. Path is set when the index was loaded from disk.
type DimensionMismatchError struct {
	Path string
	Want int
	Got  int
}

func (e *DimensionMismatchError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("vector index at %s has dimension %d, embedder produces %d", e.Path, e.Want, e.Got)
	}
	return fmt.Sprintf("query dimension %d does not match index dimension %d", e.Got, e.Want)
}

func (e *DimensionMismatchError) Unwrap() error { return ErrDimensionMismatch }
