package model

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrSourceUnavailable marks a posting source failure. It is the only error
	// that fails a sync run.
	ErrSourceUnavailable = errors.New("posting source unavailable")

	// ErrDuplicate is returned by Repository.Insert when a posting with the same
	// link is already stored.
	ErrDuplicate = errors.New("posting already stored")

	// ErrClassifier marks a classifier failure (transport, timeout or malformed reply).
	ErrClassifier = errors.New("classifier failure")

	// ErrRunInProgress is returned when another sync run holds the run lock.
	ErrRunInProgress = errors.New("sync run already in progress")

	// ErrNotFound is returned by UI mutations when no posting has the given ID.
	ErrNotFound = errors.New("posting not found")
)

// HTTPError wraps an HTTP status code so retry logic can inspect it.
type HTTPError struct {
	StatusCode int
	RetryAfter time.Duration // from Retry-After header, zero if absent
	Err        error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("HTTP %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}
