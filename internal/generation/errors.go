package generation

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrGenerationFailed is the sentinel for every answer-generation failure.
var ErrGenerationFailed = errors.New("answer generation failed")

// maxErrorBody bounds how much of a failed response body is kept.
const maxErrorBody = 2048

// GenerationFailedError reports a failed chat-completion call. StatusCode is
// zero when no HTTP response was received.
type GenerationFailedError struct {
	StatusCode int
	Body       string
	Attempts   int
	Err        error

	// transport marks network failures and timeouts.
	transport bool
}

func (e *GenerationFailedError) Error() string {
	msg := "answer generation failed"
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	if e.Body != "" {
		msg += ": " + e.Body
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Attempts > 1 {
		msg += fmt.Sprintf(" (after %d attempts)", e.Attempts)
	}
	return msg
}

func (e *GenerationFailedError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrGenerationFailed, e.Err}
	}
	return []error{ErrGenerationFailed}
}

// IsAuth reports whether the endpoint rejected the API key.
func (e *GenerationFailedError) IsAuth() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// Retryable reports whether the failure is transient: a server error or a
// transport failure. Client errors, including 429, are never retried.
func (e *GenerationFailedError) Retryable() bool {
	if e.StatusCode != 0 {
		return e.StatusCode >= 500
	}
	return e.transport
}

func truncateBody(b []byte) string {
	if len(b) > maxErrorBody {
		return string(b[:maxErrorBody]) + "..."
	}
	return string(b)
}
