package tier

import (
	"context"
	"errors"
	"time"
)

// Tier classifies a subject's service level. The tier selects sharding
// granularity and retention; it is computed at call time and never stored
// on the record itself.
type Tier string

const (
	Elevated Tier = "elevated"
	Premium  Tier = "premium"
	Standard Tier = "standard"
)

// Attributes are the subject properties the classifier reads from the
// subject directory.
type Attributes struct {
	// Subscription is an explicit plan flag ("elevated", "premium", "").
	Subscription string `json:"subscription" koanf:"subscription"`

	// TrustScore is a safety score in [0,1].
	TrustScore float64 `json:"trust_score" koanf:"trust_score"`
}

// ErrNotFound is returned by a Directory when the subject is unknown.
// The classifier treats it the same as any other lookup failure.
var ErrNotFound = errors.New("subject not found")

// Directory is the external subject-directory collaborator. Implementations
// are expected to be slow and occasionally unavailable; the classifier
// never lets that block ingestion.
type Directory interface {
	TierAttributes(ctx context.Context, subjectID string) (Attributes, error)
}

// RetentionPolicy names four horizons in days. Archive is enforced as a
// hard expiry via the partition TTL; hot/warm/cold are descriptive tiers
// reserved for storage-class migration.
type RetentionPolicy struct {
	HotDays     int `koanf:"hot_days"`
	WarmDays    int `koanf:"warm_days"`
	ColdDays    int `koanf:"cold_days"`
	ArchiveDays int `koanf:"archive_days"`
}

// ArchiveHorizon converts the archive cutoff to a duration.
func (p RetentionPolicy) ArchiveHorizon() time.Duration {
	return time.Duration(p.ArchiveDays) * 24 * time.Hour
}

// DefaultRetention returns the built-in per-tier retention policies.
func DefaultRetention() map[Tier]RetentionPolicy {
	return map[Tier]RetentionPolicy{
		Elevated: {HotDays: 30, WarmDays: 90, ColdDays: 365, ArchiveDays: 730},
		Premium:  {HotDays: 14, WarmDays: 60, ColdDays: 180, ArchiveDays: 365},
		Standard: {HotDays: 7, WarmDays: 30, ColdDays: 90, ArchiveDays: 180},
	}
}
