package rag

import (
	"errors"
	"fmt"
)

var (
	// ErrNotReady is returned when a question is asked before any document
	// has been ingested.
	ErrNotReady = errors.New("no documents loaded")

	// ErrIngestFailed is the sentinel wrapped by IngestFailedError.
	ErrIngestFailed = errors.New("ingest failed")
)

// NotReadyError reports a question asked on a session with no index.
type NotReadyError struct {
	SessionID string
}

func (e *NotReadyError) Error() string {
	return "no documents loaded: ingest at least one document before asking questions"
}

func (e *NotReadyError) Unwrap() error { return ErrNotReady }

// IngestFailedError reports the document that aborted an ingest batch.
type IngestFailedError struct {
	Source string
	Stage  string
	Err    error
}

func (e *IngestFailedError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("ingest failed during %s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("ingest of %s failed during %s: %v", e.Source, e.Stage, e.Err)
}

func (e *IngestFailedError) Unwrap() []error { return []error{ErrIngestFailed, e.Err} }
