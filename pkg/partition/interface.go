package partition

import (
	"context"
	"errors"
	"time"

	"github.com/trailhq/trailstore/pkg/location"
	"github.com/trailhq/trailstore/pkg/tier"
)

// ErrNotFound is returned by Backend.Open for a partition that was never
// created. Erasure paths treat it as success.
var ErrNotFound = errors.New("partition does not exist")

// Spec describes what to provision when a partition is first created.
type Spec struct {
	// Tier the partition serves. Elevated partitions additionally get a
	// (subject, source, timestamp) index.
	Tier tier.Tier

	// Retention drives the TTL expiry installed at creation time. Records
	// older than the archive horizon are purged by the backend itself.
	Retention tier.RetentionPolicy
}

// SourceIndex reports whether the extra source index applies.
func (s Spec) SourceIndex() bool { return s.Tier == tier.Elevated }

// QueryRequest is a bounded per-partition query. Start and End are
// inclusive.
type QueryRequest struct {
	SubjectID  string
	Start, End time.Time

	// Limit caps results from this partition. The scatter-gather engine
	// passes the final result limit here so no partition under-fetches.
	Limit int

	// Descending orders by timestamp, most recent first.
	Descending bool
}

// Stats summarizes one partition.
type Stats struct {
	Records uint64
	Oldest  time.Time
	Newest  time.Time
}

// Partition is a handle to one physical partition. Handles are shared by
// all callers and must be safe for concurrent use. Schema provisioning is
// the registry's job; everything behind this interface is already-ready.
type Partition interface {
	// ID returns the derived partition identifier.
	ID() string

	// Append durably persists one record. The record is immutable after
	// this returns.
	Append(ctx context.Context, rec *location.Record) error

	// Query returns records for one subject within the request range,
	// sorted and limited per the request.
	Query(ctx context.Context, req QueryRequest) ([]location.Record, error)

	// DeleteSubject removes every record for a subject. Used for erasure
	// in shared-shard partitions. Returns the number removed.
	DeleteSubject(ctx context.Context, subjectID string) (int, error)

	// Expire removes records with timestamps before the cutoff. Backends
	// with native TTL may treat this as a no-op.
	Expire(ctx context.Context, before time.Time) (int, error)

	// Stats reports record count and timestamp bounds.
	Stats(ctx context.Context) (*Stats, error)
}

// Backend provisions and destroys physical partitions.
type Backend interface {
	// Create returns a handle to the partition, creating it and its
	// indexes if absent. Idempotent: an "already exists" outcome is
	// success, and concurrent creators are safe.
	Create(ctx context.Context, id string, spec Spec) (Partition, error)

	// Open returns a handle to an existing partition, or ErrNotFound.
	// Never creates anything.
	Open(ctx context.Context, id string) (Partition, error)

	// Drop destroys the partition and all its data. Missing partitions
	// are success, so erasure stays idempotent.
	Drop(ctx context.Context, id string) error

	// Optimize performs best-effort backend maintenance (log GC, index
	// compaction). Never required for correctness.
	Optimize(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}
