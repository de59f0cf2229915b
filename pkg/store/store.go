package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/trailhq/trailstore/pkg/location"
	"github.com/trailhq/trailstore/pkg/logging"
	"github.com/trailhq/trailstore/pkg/obs"
	"github.com/trailhq/trailstore/pkg/partition"
	"github.com/trailhq/trailstore/pkg/shard"
	"github.com/trailhq/trailstore/pkg/tier"
)

// Order is the sort direction for history queries. The zero value is
// descending (most recent first).
type Order int

const (
	Descending Order = iota
	Ascending
)

// TierClassifier is the classification dependency of the store.
// *tier.Classifier satisfies it; tests substitute fixed classifiers.
type TierClassifier interface {
	Classify(ctx context.Context, subjectID string) tier.Tier
}

// Options tune the store. Zero values take defaults.
type Options struct {
	// Retention maps tiers to policies. Defaults to tier.DefaultRetention.
	Retention map[tier.Tier]tier.RetentionPolicy

	// MaxQueryRange bounds the [start, end] width a query may request,
	// which in turn bounds scatter-gather fan-out. Default 366 days.
	MaxQueryRange time.Duration

	// DefaultLimit applies when a query passes limit <= 0. Default 100.
	DefaultLimit int

	// MaxLimit caps any requested limit. Default 1000.
	MaxLimit int
}

const (
	defaultMaxQueryRange = 366 * 24 * time.Hour
	defaultLimit         = 100
	defaultMaxLimit      = 1000
)

// Store is the location-history engine: it owns the partition registry,
// routes writes through the shard deriver, and scatter-gathers reads.
// All methods are safe for concurrent use.
type Store struct {
	deriver    *shard.Deriver
	classifier TierClassifier
	registry   *partition.Registry
	opts       Options

	log zerolog.Logger
}

// New wires a store from its collaborators. The registry is owned by the
// store for its lifetime; callers construct one per store instance.
func New(deriver *shard.Deriver, classifier TierClassifier, registry *partition.Registry, opts Options) *Store {
	if opts.Retention == nil {
		opts.Retention = tier.DefaultRetention()
	}
	if opts.MaxQueryRange <= 0 {
		opts.MaxQueryRange = defaultMaxQueryRange
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = defaultLimit
	}
	if opts.MaxLimit <= 0 {
		opts.MaxLimit = defaultMaxLimit
	}

	return &Store{
		deriver:    deriver,
		classifier: classifier,
		registry:   registry,
		opts:       opts,
		log:        logging.WithComponent("store"),
	}
}

// Registry exposes the store-owned registry for maintenance jobs.
func (s *Store) Registry() *partition.Registry { return s.registry }

// Retention returns the policy for a tier.
func (s *Store) Retention(t tier.Tier) tier.RetentionPolicy { return s.opts.Retention[t] }

// RecordLocation validates and durably appends one observation, returning
// the stored record with its assigned id. The caller's record is not
// mutated. Classification failures never block the write; a persistence
// failure surfaces as a *WriteError.
func (s *Store) RecordLocation(ctx context.Context, rec *location.Record) (*location.Record, error) {
	start := time.Now()
	defer func() { obs.WriteDuration.Observe(time.Since(start).Seconds()) }()

	if err := rec.Validate(); err != nil {
		return nil, err
	}

	stored := *rec
	stored.ID = uuid.NewString()
	if stored.Timestamp.IsZero() {
		stored.Timestamp = time.Now().UTC()
	}

	t := s.classifier.Classify(ctx, stored.SubjectID)
	id := s.deriver.PartitionID(stored.SubjectID, stored.Timestamp, t)

	p, err := s.registry.Resolve(ctx, id, partition.Spec{Tier: t, Retention: s.opts.Retention[t]})
	if err != nil {
		return nil, &ProvisionError{Partition: id, Err: err}
	}

	if err := p.Append(ctx, &stored); err != nil {
		obs.WriteErrors.Inc()
		return nil, &WriteError{Partition: id, Err: err}
	}

	obs.WritesTotal.WithLabelValues(string(t)).Inc()
	return &stored, nil
}

// QueryHistory returns a subject's records within [start, end], both
// inclusive, merged across every partition the range could span.
//
// Candidate partitions are queried concurrently, each with the caller's
// context and the final result limit (truncating per-partition with a
// smaller limit would bias results toward whichever partition answered
// first). A failed or missing partition contributes an empty sequence;
// the query as a whole fails only when the context is cancelled or every
// candidate fails.
func (s *Store) QueryHistory(ctx context.Context, subjectID string, start, end time.Time, limit int, order Order) ([]location.Record, error) {
	began := time.Now()
	defer func() { obs.QueryDuration.Observe(time.Since(began).Seconds()) }()
	obs.QueriesTotal.Inc()

	if subjectID == "" {
		return nil, ErrMissingSubject
	}
	if end.Before(start) {
		return nil, ErrInvalidRange
	}
	if end.Sub(start) > s.opts.MaxQueryRange {
		return nil, ErrRangeTooWide
	}

	if limit <= 0 {
		limit = s.opts.DefaultLimit
	}
	if limit > s.opts.MaxLimit {
		limit = s.opts.MaxLimit
	}

	t := s.classifier.Classify(ctx, subjectID)
	ids := s.deriver.RangeIDs(subjectID, start, end, t)
	obs.QueryFanout.Observe(float64(len(ids)))

	// Unregistered partitions were never written to; they contribute
	// nothing and must not be created by a read.
	var candidates []partition.Partition
	for _, id := range ids {
		if p, ok := s.registry.Lookup(ctx, id); ok {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return []location.Record{}, nil
	}

	req := partition.QueryRequest{
		SubjectID:  subjectID,
		Start:      start,
		End:        end,
		Limit:      limit,
		Descending: order == Descending,
	}

	// Fan out, fan in. Every sub-query runs under the parent context, so
	// a parent deadline bounds them all.
	partials := make([][]location.Record, len(candidates))
	failures := make([]error, len(candidates))

	var wg sync.WaitGroup
	for i, p := range candidates {
		wg.Add(1)
		go func(i int, p partition.Partition) {
			defer wg.Done()
			records, err := p.Query(ctx, req)
			if err != nil {
				failures[i] = err
				return
			}
			partials[i] = records
		}(i, p)
	}
	wg.Wait()

	// Cancellation is an error, not a truncated success.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	failed := 0
	for i, err := range failures {
		if err == nil {
			continue
		}
		failed++
		obs.QueryPartialFailures.Inc()
		s.log.Warn().
			Err(err).
			Str("partition", candidates[i].ID()).
			Str("subject_id", subjectID).
			Msg("sub-query failed, contributing empty result")
	}
	if failed == len(candidates) {
		obs.QueryErrors.Inc()
		return nil, &QueryError{Candidates: len(candidates), Failed: failed, Err: failures[0]}
	}

	// Global merge, then truncate. Truncating before the merge would bias
	// toward partitions queried first.
	var merged []location.Record
	for _, part := range partials {
		merged = append(merged, part...)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		if order == Descending {
			return merged[i].Timestamp.After(merged[j].Timestamp)
		}
		return merged[i].Timestamp.Before(merged[j].Timestamp)
	})
	if len(merged) > limit {
		merged = merged[:limit]
	}
	if merged == nil {
		merged = []location.Record{}
	}
	return merged, nil
}
