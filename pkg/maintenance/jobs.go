package maintenance

import (
	"context"
	"time"

	"github.com/trailhq/trailstore/pkg/partition"
	"github.com/trailhq/trailstore/pkg/store"
)

// Default job intervals.
const (
	RetentionInterval = 1 * time.Hour
	OptimizeInterval  = 10 * time.Minute
)

// StandardJobs assembles the store's usual maintenance set: an hourly
// retention sweep and periodic backend optimization (value-log GC, index
// compaction). Both are best-effort.
func StandardJobs(s *store.Store, backend partition.Backend) []Job {
	sweeper := NewSweeper(s)
	return []Job{
		{
			Name:       "retention",
			Interval:   RetentionInterval,
			Run:        sweeper.Sweep,
			RunOnStart: true,
		},
		{
			Name:     "optimize",
			Interval: OptimizeInterval,
			Run: func(ctx context.Context) error {
				return backend.Optimize(ctx)
			},
		},
	}
}
