package partition

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/trailhq/trailstore/pkg/logging"
	"github.com/trailhq/trailstore/pkg/obs"
)

// Registry is the process-wide owner of partition handles. It is the only
// component that performs provisioning calls. Construct one per store and
// inject it; do not share across stores.
type Registry struct {
	backend Backend

	mu      sync.Mutex
	handles map[string]Partition

	log zerolog.Logger
}

// NewRegistry creates an empty registry over a backend.
func NewRegistry(backend Backend) *Registry {
	return &Registry{
		backend: backend,
		handles: make(map[string]Partition),
		log:     logging.WithComponent("registry"),
	}
}

// Resolve returns the shared handle for id, provisioning the physical
// partition on first use. Concurrent first callers may race to create the
// same partition; Backend.Create is idempotent so exactly one physical
// partition results, and the first handle registered wins. A provisioning
// failure is retried once before being surfaced.
func (r *Registry) Resolve(ctx context.Context, id string, spec Spec) (Partition, error) {
	r.mu.Lock()
	if p, ok := r.handles[id]; ok {
		r.mu.Unlock()
		return p, nil
	}
	r.mu.Unlock()

	// Provision outside the lock so a slow create does not serialize
	// resolution of unrelated partitions.
	p, err := r.backend.Create(ctx, id, spec)
	if err != nil {
		r.log.Warn().Err(err).Str("partition", id).Msg("provisioning failed, retrying once")
		p, err = r.backend.Create(ctx, id, spec)
	}
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.handles[id]; ok {
		return existing, nil
	}
	r.handles[id] = p
	obs.PartitionsCreated.Inc()
	obs.RegistrySize.Set(float64(len(r.handles)))
	r.log.Debug().Str("partition", id).Str("tier", string(spec.Tier)).Msg("partition registered")
	return p, nil
}

// Lookup returns the handle for id if the partition is registered or
// already exists physically (restart recovery). It never creates a
// partition: an id that was never written to yields (nil, false).
func (r *Registry) Lookup(ctx context.Context, id string) (Partition, bool) {
	r.mu.Lock()
	if p, ok := r.handles[id]; ok {
		r.mu.Unlock()
		return p, true
	}
	r.mu.Unlock()

	p, err := r.backend.Open(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			r.log.Warn().Err(err).Str("partition", id).Msg("open failed")
		}
		return nil, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.handles[id]; ok {
		return existing, true
	}
	r.handles[id] = p
	obs.RegistrySize.Set(float64(len(r.handles)))
	return p, true
}

// Drop destroys the physical partition and forgets its handle. Missing
// partitions are success.
func (r *Registry) Drop(ctx context.Context, id string) error {
	if err := r.backend.Drop(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	r.Forget(id)
	obs.PartitionsDropped.Inc()
	return nil
}

// Forget removes the in-memory handle without touching physical state.
func (r *Registry) Forget(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handles, id)
	obs.RegistrySize.Set(float64(len(r.handles)))
}

// Handles returns a snapshot of all registered handles, for maintenance
// iteration.
func (r *Registry) Handles() []Partition {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Partition, 0, len(r.handles))
	for _, p := range r.handles {
		out = append(out, p)
	}
	return out
}

// Len reports the number of registered handles.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}
