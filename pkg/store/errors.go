package store

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRange is returned for an end time before the start time.
	ErrInvalidRange = errors.New("query end precedes start")

	// ErrRangeTooWide is returned when a query range would exceed the
	// configured fan-out bound.
	ErrRangeTooWide = errors.New("query range exceeds maximum")

	// ErrMissingSubject is returned for operations without a subject id.
	ErrMissingSubject = errors.New("subject id required")
)

// ProvisionError reports that partition provisioning failed even after the
// registry's idempotent retry.
type ProvisionError struct {
	Partition string
	Err       error
}

func (e *ProvisionError) Error() string {
	return fmt.Sprintf("provisioning partition %s: %v", e.Partition, e.Err)
}

func (e *ProvisionError) Unwrap() error { return e.Err }

// WriteError reports that a durable append failed after the partition was
// resolved. The store does not retry writes; records carry no natural
// dedup key, so retry safety belongs to the caller.
type WriteError struct {
	Partition string
	Err       error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("writing to partition %s: %v", e.Partition, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// QueryError reports that every candidate partition failed. Partial
// failures are absorbed and never produce a QueryError.
type QueryError struct {
	Candidates int
	Failed     int
	Err        error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query failed on all %d candidate partitions: %v", e.Candidates, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// ErasureError reports partitions whose erasure could not be confirmed.
// Erasure is idempotent; callers re-run with the same arguments.
type ErasureError struct {
	Remaining []string
	Err       error
}

func (e *ErasureError) Error() string {
	return fmt.Sprintf("erasure incomplete for %d partitions: %v", len(e.Remaining), e.Err)
}

func (e *ErasureError) Unwrap() error { return e.Err }
