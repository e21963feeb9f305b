package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrRateLimitExhausted signals the social API budget is spent. It is a
// normal outcome, not a fault: the monitor downgrades its strategy and the
// session records it in counters rather than the error log.
var ErrRateLimitExhausted = errors.New("rate limit exhausted")

// ErrSessionTimeout is the hard cycle ceiling. Terminal; partial results
// computed before the deadline are preserved.
var ErrSessionTimeout = errors.New("session timeout")

// SourceFetchError records a network or timeout failure on one source.
// Recoverable: the cycle continues without that source.
type SourceFetchError struct {
	SourceID string
	Err      error
	At       time.Time
}

func (e *SourceFetchError) Error() string {
	return fmt.Sprintf("source %s fetch failed: %v", e.SourceID, e.Err)
}

func (e *SourceFetchError) Unwrap() error { return e.Err }

// ExtractionError records a content-parse failure for one entry. Recoverable:
// the scraper falls back to summary-only content.
type ExtractionError struct {
	URL string
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.URL, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// UnrecoverableError wraps an unexpected internal fault. Terminal: the
// session transitions to failed with this appended to its error log.
type UnrecoverableError struct {
	Phase string
	Err   error
}

func (e *UnrecoverableError) Error() string {
	return fmt.Sprintf("unrecoverable error in %s: %v", e.Phase, e.Err)
}

func (e *UnrecoverableError) Unwrap() error { return e.Err }
