package shard

import (
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/trailhq/trailstore/pkg/tier"
)

// Strategy selects how partition identifiers are derived.
type Strategy string

const (
	// StrategyTime buckets purely by time. No subject-level isolation.
	StrategyTime Strategy = "time"

	// StrategyUserHash hashes the subject id into a fixed shard count.
	StrategyUserHash Strategy = "userhash"

	// StrategyHybrid combines a time bucket with a tier-dependent user
	// suffix. Elevated subjects get per-subject partitions.
	StrategyHybrid Strategy = "hybrid"
)

// Granularity is the width of a time bucket.
type Granularity string

const (
	Daily   Granularity = "daily"
	Weekly  Granularity = "weekly"
	Monthly Granularity = "monthly"
)

// Prefix is the common partition-name prefix.
const Prefix = "location_history"

// Config parameterizes a Deriver. Zero shard counts take defaults.
type Config struct {
	Strategy    Strategy    `koanf:"strategy"`
	Granularity Granularity `koanf:"granularity"`

	// HashShards is the shard count for the userhash strategy.
	HashShards uint64 `koanf:"hash_shards"`

	// PremiumShards and StandardShards are the hybrid-strategy shard
	// counts for the respective tiers.
	PremiumShards  uint64 `koanf:"premium_shards"`
	StandardShards uint64 `koanf:"standard_shards"`
}

// Defaults chosen to match typical deployment scale: 64 hash shards keep
// partitions coarse enough for efficient scans, the hybrid counts trade
// premium isolation against partition count.
const (
	DefaultHashShards     = 64
	DefaultPremiumShards  = 4
	DefaultStandardShards = 16
)

// Deriver maps (subject, timestamp, tier) to a partition identifier under
// one configured strategy. Derivers are immutable and safe for concurrent
// use.
type Deriver struct {
	cfg Config
}

// NewDeriver validates cfg and fills shard-count defaults.
func NewDeriver(cfg Config) (*Deriver, error) {
	switch cfg.Strategy {
	case StrategyTime, StrategyUserHash, StrategyHybrid:
	default:
		return nil, fmt.Errorf("unknown sharding strategy %q", cfg.Strategy)
	}
	switch cfg.Granularity {
	case Daily, Weekly, Monthly:
	case "":
		if cfg.Strategy != StrategyUserHash {
			return nil, fmt.Errorf("strategy %q requires a bucket granularity", cfg.Strategy)
		}
	default:
		return nil, fmt.Errorf("unknown bucket granularity %q", cfg.Granularity)
	}

	if cfg.HashShards == 0 {
		cfg.HashShards = DefaultHashShards
	}
	if cfg.PremiumShards == 0 {
		cfg.PremiumShards = DefaultPremiumShards
	}
	if cfg.StandardShards == 0 {
		cfg.StandardShards = DefaultStandardShards
	}

	return &Deriver{cfg: cfg}, nil
}

// Strategy returns the configured strategy.
func (d *Deriver) Strategy() Strategy { return d.cfg.Strategy }

// PartitionID derives the partition for one observation. Pure and
// deterministic: identical inputs yield identical ids across calls and
// process restarts.
func (d *Deriver) PartitionID(subjectID string, ts time.Time, t tier.Tier) string {
	switch d.cfg.Strategy {
	case StrategyTime:
		return fmt.Sprintf("%s_%s", Prefix, bucket(ts, d.cfg.Granularity))
	case StrategyUserHash:
		return fmt.Sprintf("%s_shard_%d", Prefix, subjectHash(subjectID)%d.cfg.HashShards)
	default: // StrategyHybrid
		return fmt.Sprintf("%s_%s_%s", Prefix, bucket(ts, d.cfg.Granularity), d.userSuffix(subjectID, t))
	}
}

// RangeIDs enumerates, in chronological order and deduplicated, every
// partition id the [start, end] range could touch for one subject.
func (d *Deriver) RangeIDs(subjectID string, start, end time.Time, t tier.Tier) []string {
	if end.Before(start) {
		return nil
	}

	// The whole history of a hash-sharded subject lives in one partition.
	if d.cfg.Strategy == StrategyUserHash {
		return []string{d.PartitionID(subjectID, start, t)}
	}

	var ids []string
	seen := make(map[string]struct{})
	for cur := bucketStart(start, d.cfg.Granularity); !cur.After(end); cur = nextBucket(cur, d.cfg.Granularity) {
		id := d.PartitionID(subjectID, cur, t)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

// userSuffix yields the hybrid-strategy subject component. Elevated
// subjects are never hashed so their partitions stay physically isolated
// and droppable wholesale.
func (d *Deriver) userSuffix(subjectID string, t tier.Tier) string {
	switch t {
	case tier.Elevated:
		return "user_" + subjectID
	case tier.Premium:
		return fmt.Sprintf("p%d", subjectHash(subjectID)%d.cfg.PremiumShards)
	default:
		return fmt.Sprintf("s%d", subjectHash(subjectID)%d.cfg.StandardShards)
	}
}

// subjectHash is a stable 64-bit content hash. Unsigned throughout, so the
// modulo reduction can never go negative.
func subjectHash(subjectID string) uint64 {
	return xxhash.Sum64String(subjectID)
}

// bucket formats the time bucket a timestamp falls in. All bucketing is in
// UTC so a record derives the same id regardless of server timezone.
func bucket(ts time.Time, g Granularity) string {
	ts = ts.UTC()
	switch g {
	case Daily:
		return ts.Format("20060102")
	case Weekly:
		year, week := ts.ISOWeek()
		return fmt.Sprintf("%04dw%02d", year, week)
	default: // Monthly
		return ts.Format("200601")
	}
}

// bucketStart truncates a timestamp to the start of its bucket.
func bucketStart(ts time.Time, g Granularity) time.Time {
	ts = ts.UTC()
	switch g {
	case Daily:
		return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
	case Weekly:
		// Walk back to Monday, the ISO week start.
		day := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	default: // Monthly
		return time.Date(ts.Year(), ts.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
}

// nextBucket steps one bucket boundary forward.
func nextBucket(ts time.Time, g Granularity) time.Time {
	switch g {
	case Daily:
		return ts.AddDate(0, 0, 1)
	case Weekly:
		return ts.AddDate(0, 0, 7)
	default: // Monthly
		return ts.AddDate(0, 1, 0)
	}
}
