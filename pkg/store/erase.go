package store

import (
	"context"
	"time"

	"github.com/trailhq/trailstore/pkg/obs"
	"github.com/trailhq/trailstore/pkg/shard"
	"github.com/trailhq/trailstore/pkg/tier"
)

// EraseSubject removes every record for a subject across [start, end],
// satisfying a data-subject deletion request.
//
// Under the hybrid strategy an elevated subject owns dedicated partitions,
// so erasure drops each partition wholesale; the range should cover the
// subject's full history. For shared-shard placements erasure is a
// filtered delete of the subject's records in every partition the range
// could touch. Both paths are idempotent: partitions that do not exist
// count as already erased, and a partial failure can be re-run.
func (s *Store) EraseSubject(ctx context.Context, subjectID string, start, end time.Time) error {
	if subjectID == "" {
		return ErrMissingSubject
	}
	if end.Before(start) {
		return ErrInvalidRange
	}

	t := s.classifier.Classify(ctx, subjectID)
	ids := s.deriver.RangeIDs(subjectID, start, end, t)

	dedicated := s.deriver.Strategy() == shard.StrategyHybrid && t == tier.Elevated

	var remaining []string
	var firstErr error
	removed := 0

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return &ErasureError{Remaining: append(remaining, id), Err: err}
		}

		if dedicated {
			// Whole-partition drop: the partition holds only this subject.
			if err := s.registry.Drop(ctx, id); err != nil {
				remaining = append(remaining, id)
				if firstErr == nil {
					firstErr = err
				}
			}
			continue
		}

		// Shared shard: never registered means never written, which is
		// success for erasure purposes.
		p, ok := s.registry.Lookup(ctx, id)
		if !ok {
			continue
		}
		n, err := p.DeleteSubject(ctx, subjectID)
		if err != nil {
			remaining = append(remaining, id)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		removed += n
	}

	if len(remaining) > 0 {
		obs.ErasuresTotal.WithLabelValues("failed").Inc()
		return &ErasureError{Remaining: remaining, Err: firstErr}
	}

	obs.ErasuresTotal.WithLabelValues("ok").Inc()
	s.log.Info().
		Str("subject_id", subjectID).
		Str("tier", string(t)).
		Int("partitions", len(ids)).
		Int("records_removed", removed).
		Bool("dedicated", dedicated).
		Msg("subject erasure complete")
	return nil
}
