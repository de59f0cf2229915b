package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/trailhq/trailstore/pkg/logging"
	"github.com/trailhq/trailstore/pkg/partition"
	"github.com/trailhq/trailstore/pkg/store"
	"github.com/trailhq/trailstore/pkg/tier"
)

// Sweeper enforces the archive retention cutoff across every registered
// partition. Backends with native TTL expire records on their own and
// report zero from Expire; the sweep matters for backends without one and
// as a safety net. Hot/warm/cold tiering is a design extension point, not
// enforced here.
type Sweeper struct {
	store *store.Store
}

// NewSweeper creates a retention sweeper over a store.
func NewSweeper(s *store.Store) *Sweeper {
	return &Sweeper{store: s}
}

// Sweep expires records past each partition's archive horizon. Partitions
// failing to expire are logged and skipped; the sweep fails only if every
// partition fails.
func (s *Sweeper) Sweep(ctx context.Context) error {
	log := logging.WithComponent("retention")
	handles := s.store.Registry().Handles()
	if len(handles) == 0 {
		return nil
	}

	now := time.Now()
	removed, failed := 0, 0
	for _, p := range handles {
		if err := ctx.Err(); err != nil {
			return err
		}

		cutoff := now.Add(-s.archiveHorizonFor(p))
		n, err := p.Expire(ctx, cutoff)
		if err != nil {
			failed++
			log.Warn().Err(err).Str("partition", p.ID()).Msg("retention sweep failed for partition")
			continue
		}
		removed += n
	}

	if failed == len(handles) {
		return fmt.Errorf("retention sweep failed for all %d partitions", failed)
	}
	if removed > 0 {
		log.Info().Int("records_removed", removed).Int("partitions", len(handles)).Msg("retention sweep complete")
	}
	return nil
}

// archiveHorizonFor picks the archive horizon matching the partition's
// tier, falling back to the standard policy.
func (s *Sweeper) archiveHorizonFor(p partition.Partition) time.Duration {
	type specer interface{ Spec() partition.Spec }
	if sp, ok := p.(specer); ok {
		if policy := s.store.Retention(sp.Spec().Tier); policy.ArchiveDays > 0 {
			return policy.ArchiveHorizon()
		}
	}
	return s.store.Retention(tier.Standard).ArchiveHorizon()
}
