package shard

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/trailhq/trailstore/pkg/tier"
)

func mustDeriver(t *testing.T, cfg Config) *Deriver {
	t.Helper()
	d, err := NewDeriver(cfg)
	require.NoError(t, err)
	return d
}

func TestNewDeriver_Validation(t *testing.T) {
	_, err := NewDeriver(Config{Strategy: "geographic"})
	require.Error(t, err)

	_, err = NewDeriver(Config{Strategy: StrategyTime})
	require.Error(t, err, "time strategy needs a granularity")

	_, err = NewDeriver(Config{Strategy: StrategyHybrid, Granularity: "hourly"})
	require.Error(t, err)

	// userhash needs no bucket granularity
	_, err = NewDeriver(Config{Strategy: StrategyUserHash})
	require.NoError(t, err)
}

func TestPartitionID_Deterministic(t *testing.T) {
	ts := time.Date(2024, 3, 7, 15, 4, 5, 0, time.UTC)

	for _, cfg := range []Config{
		{Strategy: StrategyTime, Granularity: Daily},
		{Strategy: StrategyUserHash},
		{Strategy: StrategyHybrid, Granularity: Monthly},
	} {
		d := mustDeriver(t, cfg)
		for _, tr := range []tier.Tier{tier.Elevated, tier.Premium, tier.Standard} {
			first := d.PartitionID("subject-42", ts, tr)
			for i := 0; i < 10; i++ {
				require.Equal(t, first, d.PartitionID("subject-42", ts, tr),
					"strategy %s tier %s", cfg.Strategy, tr)
			}
		}
	}
}

func TestPartitionID_TimeBuckets(t *testing.T) {
	ts := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		granularity Granularity
		want        string
	}{
		{Daily, "location_history_20240115"},
		{Weekly, "location_history_2024w03"},
		{Monthly, "location_history_202401"},
	}
	for _, tt := range tests {
		d := mustDeriver(t, Config{Strategy: StrategyTime, Granularity: tt.granularity})
		require.Equal(t, tt.want, d.PartitionID("anyone", ts, tier.Standard))
	}
}

func TestPartitionID_TimezoneIndependent(t *testing.T) {
	d := mustDeriver(t, Config{Strategy: StrategyTime, Granularity: Daily})

	utc := time.Date(2024, 6, 1, 23, 30, 0, 0, time.UTC)
	tokyo := utc.In(time.FixedZone("JST", 9*3600))

	require.Equal(t, d.PartitionID("s", utc, tier.Standard), d.PartitionID("s", tokyo, tier.Standard))
}

func TestPartitionID_ElevatedSubjectsDistinct(t *testing.T) {
	d := mustDeriver(t, Config{Strategy: StrategyHybrid, Granularity: Monthly})
	ts := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	seen := make(map[string]string)
	for i := 0; i < 1000; i++ {
		subject := fmt.Sprintf("subject-%d", i)
		id := d.PartitionID(subject, ts, tier.Elevated)
		if prev, dup := seen[id]; dup {
			t.Fatalf("subjects %s and %s share elevated partition %s", prev, subject, id)
		}
		seen[id] = subject
	}
}

func TestPartitionID_HashDistribution(t *testing.T) {
	d := mustDeriver(t, Config{Strategy: StrategyUserHash, HashShards: 16})
	ts := time.Now()

	counts := make(map[string]int)
	const samples = 10000
	for i := 0; i < samples; i++ {
		counts[d.PartitionID(fmt.Sprintf("subject-%d", i), ts, tier.Standard)]++
	}

	require.Len(t, counts, 16, "every shard should receive assignments")
	for id, n := range counts {
		require.Less(t, n, samples/2, "shard %s received a majority of assignments", id)
		// Loose uniformity bound: within 3x of the ideal share.
		require.Less(t, n, 3*samples/16, "shard %s is badly over-weighted", id)
	}
}

func TestRangeIDs_UserHashCollapsesToOne(t *testing.T) {
	d := mustDeriver(t, Config{Strategy: StrategyUserHash, HashShards: 64})

	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	ids := d.RangeIDs("subject-1", start, end, tier.Standard)
	require.Len(t, ids, 1, "a four-year range still maps to the subject's single shard")
	require.Equal(t, d.PartitionID("subject-1", end, tier.Standard), ids[0])
}

func TestRangeIDs_MonthlySteps(t *testing.T) {
	d := mustDeriver(t, Config{Strategy: StrategyTime, Granularity: Monthly})

	start := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	ids := d.RangeIDs("s", start, end, tier.Standard)
	require.Equal(t, []string{
		"location_history_202401",
		"location_history_202402",
		"location_history_202403",
	}, ids)
}

func TestRangeIDs_DailyInclusiveBounds(t *testing.T) {
	d := mustDeriver(t, Config{Strategy: StrategyTime, Granularity: Daily})

	start := time.Date(2024, 2, 28, 23, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 1, 1, 0, 0, 0, time.UTC)

	ids := d.RangeIDs("s", start, end, tier.Standard)
	require.Equal(t, []string{
		"location_history_20240228",
		"location_history_20240229", // 2024 is a leap year
		"location_history_20240301",
	}, ids)
}

func TestRangeIDs_WeeklyCoversPartialWeeks(t *testing.T) {
	d := mustDeriver(t, Config{Strategy: StrategyTime, Granularity: Weekly})

	// Wednesday to the following Tuesday spans two ISO weeks.
	start := time.Date(2024, 1, 17, 12, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 23, 12, 0, 0, 0, time.UTC)

	ids := d.RangeIDs("s", start, end, tier.Standard)
	require.Equal(t, []string{
		"location_history_2024w03",
		"location_history_2024w04",
	}, ids)
}

func TestRangeIDs_EmptyForInvertedRange(t *testing.T) {
	d := mustDeriver(t, Config{Strategy: StrategyTime, Granularity: Daily})

	ids := d.RangeIDs("s", time.Now(), time.Now().Add(-time.Hour), tier.Standard)
	require.Empty(t, ids)
}

func TestRangeIDs_HybridSharedShardDedupes(t *testing.T) {
	d := mustDeriver(t, Config{Strategy: StrategyHybrid, Granularity: Monthly, StandardShards: 1})

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC)

	// With one standard shard the suffix is constant; distinct months must
	// still yield distinct ids.
	ids := d.RangeIDs("s", start, end, tier.Standard)
	require.Equal(t, []string{
		"location_history_202401_s0",
		"location_history_202402_s0",
	}, ids)
}

func TestHybridSuffixShapes(t *testing.T) {
	d := mustDeriver(t, Config{Strategy: StrategyHybrid, Granularity: Monthly})
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.Equal(t, "location_history_202401_user_alice",
		d.PartitionID("alice", ts, tier.Elevated))
	require.Regexp(t, `^location_history_202401_p[0-3]$`,
		d.PartitionID("alice", ts, tier.Premium))
	require.Regexp(t, `^location_history_202401_s(\d|1[0-5])$`,
		d.PartitionID("alice", ts, tier.Standard))
}
