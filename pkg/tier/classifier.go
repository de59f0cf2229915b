package tier

import (
	"context"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/trailhq/trailstore/pkg/logging"
	"github.com/trailhq/trailstore/pkg/obs"
)

// Thresholds above which a trust score alone promotes a subject.
const (
	elevatedScoreThreshold = 0.9
	premiumScoreThreshold  = 0.7
)

const breakerName = "subject-directory"

// Classifier derives a subject's tier from directory attributes. Directory
// calls run behind a circuit breaker so a degraded directory costs one fast
// rejection instead of a timeout per write. Every failure path, including
// an open breaker, falls back to Standard: classification must never block
// ingestion or querying.
type Classifier struct {
	directory Directory
	timeout   time.Duration
	cb        *gobreaker.CircuitBreaker[Attributes]
}

// NewClassifier wraps the directory with fail-open classification.
// lookupTimeout bounds each directory call independently of the caller's
// context deadline.
func NewClassifier(directory Directory, lookupTimeout time.Duration) *Classifier {
	log := logging.WithComponent("classifier")

	obs.BreakerState.WithLabelValues(breakerName).Set(0)

	cb := gobreaker.NewCircuitBreaker[Attributes](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Info().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("subject directory breaker state change")
			obs.BreakerState.WithLabelValues(name).Set(stateValue(to))
		},
	})

	return &Classifier{directory: directory, timeout: lookupTimeout, cb: cb}
}

// Classify returns the subject's tier. Any directory error, timeout,
// unknown subject, or open breaker yields Standard.
func (c *Classifier) Classify(ctx context.Context, subjectID string) Tier {
	attrs, err := c.cb.Execute(func() (Attributes, error) {
		lookupCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		return c.directory.TierAttributes(lookupCtx, subjectID)
	})
	if err != nil {
		obs.ClassificationFallbacks.Inc()
		log := logging.WithComponent("classifier")
		log.Warn().
			Err(err).
			Str("subject_id", subjectID).
			Msg("tier lookup failed, falling back to standard")
		return Standard
	}
	return FromAttributes(attrs)
}

// FromAttributes maps directory attributes to a tier. Exported so tests
// and backfill tooling can classify without a live directory.
func FromAttributes(attrs Attributes) Tier {
	switch {
	case attrs.Subscription == string(Elevated) || attrs.TrustScore >= elevatedScoreThreshold:
		return Elevated
	case attrs.Subscription == string(Premium) || attrs.TrustScore >= premiumScoreThreshold:
		return Premium
	default:
		return Standard
	}
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	}
	return -1
}
