package chunker

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyInput indicates a document with no extractable text.
	ErrEmptyInput = errors.New("no extractable text")

	// ErrSplitFailure indicates text that could not be split within the size limit.
	ErrSplitFailure = errors.New("text could not be split within chunk size")
)

// EmptyInputError is returned when a document contains only whitespace.
type EmptyInputError struct {
	SourceID string
}

func (e *EmptyInputError) Error() string {
	return fmt.Sprintf("chunker: %s: %v", e.SourceID, ErrEmptyInput)
}

func (e *EmptyInputError) Unwrap() error { return ErrEmptyInput }

// SplitFailureError is returned when a segment is still longer than the
// limit after every separator has been applied.
type SplitFailureError struct {
	SourceID string
	Length   int
	Limit    int
}

func (e *SplitFailureError) Error() string {
	return fmt.Sprintf("chunker: %s: segment of %d characters exceeds limit %d: %v",
		e.SourceID, e.Length, e.Limit, ErrSplitFailure)
}

func (e *SplitFailureError) Unwrap() error { return ErrSplitFailure }
