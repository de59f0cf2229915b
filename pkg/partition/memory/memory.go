// Package memory implements partition.Backend with in-memory partitions.
// Data is lost on restart. Useful for testing and development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/trailhq/trailstore/pkg/location"
	"github.com/trailhq/trailstore/pkg/partition"
)

// Backend holds all in-memory partitions for one store instance.
type Backend struct {
	mu         sync.Mutex
	partitions map[string]*Partition
}

// New creates an empty in-memory backend.
func New() *Backend {
	return &Backend{partitions: make(map[string]*Partition)}
}

// Create returns the partition for id, creating it if absent.
func (b *Backend) Create(ctx context.Context, id string, spec partition.Spec) (partition.Partition, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if p, ok := b.partitions[id]; ok {
		return p, nil
	}
	p := &Partition{id: id, spec: spec}
	b.partitions[id] = p
	return p, nil
}

// Open returns an existing partition or partition.ErrNotFound.
func (b *Backend) Open(ctx context.Context, id string) (partition.Partition, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.partitions[id]
	if !ok {
		return nil, partition.ErrNotFound
	}
	return p, nil
}

// Drop removes the partition wholesale. Missing is success.
func (b *Backend) Drop(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.partitions, id)
	return nil
}

// Optimize is a no-op for memory partitions.
func (b *Backend) Optimize(ctx context.Context) error { return nil }

// Close discards all partitions.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.partitions = make(map[string]*Partition)
	return nil
}

// Len reports the number of physical partitions. Test helper.
func (b *Backend) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.partitions)
}

// Partition stores records for one partition id in a slice.
type Partition struct {
	id   string
	spec partition.Spec

	mu      sync.RWMutex
	records []location.Record
}

// ID returns the partition identifier.
func (p *Partition) ID() string { return p.id }

// Spec returns the spec the partition was created with.
func (p *Partition) Spec() partition.Spec { return p.spec }

// Append stores a copy of the record.
func (p *Partition) Append(ctx context.Context, rec *location.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = append(p.records, *rec)
	return nil
}

// Query filters by subject and inclusive time range, sorts by timestamp,
// and truncates to the request limit.
func (p *Partition) Query(ctx context.Context, req partition.QueryRequest) ([]location.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	var results []location.Record
	for _, r := range p.records {
		if r.SubjectID != req.SubjectID {
			continue
		}
		if r.Timestamp.Before(req.Start) || r.Timestamp.After(req.End) {
			continue
		}
		results = append(results, r)
	}

	sort.Slice(results, func(i, j int) bool {
		if req.Descending {
			return results[i].Timestamp.After(results[j].Timestamp)
		}
		return results[i].Timestamp.Before(results[j].Timestamp)
	})

	if req.Limit > 0 && len(results) > req.Limit {
		results = results[:req.Limit]
	}
	return results, nil
}

// DeleteSubject removes every record for the subject.
func (p *Partition) DeleteSubject(ctx context.Context, subjectID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	kept := p.records[:0]
	removed := 0
	for _, r := range p.records {
		if r.SubjectID == subjectID {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	p.records = kept
	return removed, nil
}

// Expire removes records older than the cutoff. Memory partitions have no
// native TTL, so the retention sweep calls this.
func (p *Partition) Expire(ctx context.Context, before time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	kept := p.records[:0]
	removed := 0
	for _, r := range p.records {
		if r.Timestamp.Before(before) {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	p.records = kept
	return removed, nil
}

// Stats reports record count and timestamp bounds.
func (p *Partition) Stats(ctx context.Context) (*partition.Stats, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	stats := &partition.Stats{Records: uint64(len(p.records))}
	for _, r := range p.records {
		if stats.Oldest.IsZero() || r.Timestamp.Before(stats.Oldest) {
			stats.Oldest = r.Timestamp
		}
		if r.Timestamp.After(stats.Newest) {
			stats.Newest = r.Timestamp
		}
	}
	return stats, nil
}
