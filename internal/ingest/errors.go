package ingest

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the pipeline.
var (
	// ErrSourceNotFound signals a missing or inactive source. No run record
	// is written for this outcome.
	ErrSourceNotFound = errors.New("source not found or inactive")

	// ErrSessionClosed marks the transient "connection already closed"
	// class of persistence faults. The orchestrator retries the source load
	// exactly once when the session fails with this class.
	ErrSessionClosed = errors.New("persistence session closed")
)

// RobotsDisallowedError reports a URL the site's robots policy forbids.
// Fatal for the run, distinct from transport failures.
type RobotsDisallowedError struct {
	URL string
}

func (e *RobotsDisallowedError) Error() string {
	return fmt.Sprintf("blocked by robots.txt: %s", e.URL)
}

// FetchError reports a network failure, timeout, or non-2xx response.
// StatusCode is zero when the request never produced a response.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError reports a feed payload that could not produce any drafts.
// Per-entry malformation is handled by skipping the entry, not by this error.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse feed %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// CommitError reports a failed run commit. Everything staged in the run has
// been rolled back when this is returned.
type CommitError struct {
	Err error
}

func (e *CommitError) Error() string { return fmt.Sprintf("commit run: %v", e.Err) }

func (e *CommitError) Unwrap() error { return e.Err }
