package store_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/trailhq/trailstore/pkg/location"
	"github.com/trailhq/trailstore/pkg/partition"
	"github.com/trailhq/trailstore/pkg/partition/memory"
	"github.com/trailhq/trailstore/pkg/shard"
	"github.com/trailhq/trailstore/pkg/store"
	"github.com/trailhq/trailstore/pkg/tier"
)

// fixedClassifier pins every subject to one tier, bypassing the directory.
type fixedClassifier struct{ t tier.Tier }

func (c fixedClassifier) Classify(ctx context.Context, subjectID string) tier.Tier { return c.t }

type testEnv struct {
	store   *store.Store
	backend *memory.Backend
}

func newTestStore(t *testing.T, cfg shard.Config, cls store.TierClassifier, opts store.Options) *testEnv {
	t.Helper()
	deriver, err := shard.NewDeriver(cfg)
	require.NoError(t, err)
	backend := memory.New()
	t.Cleanup(func() { backend.Close() })
	return &testEnv{
		store:   store.New(deriver, cls, partition.NewRegistry(backend), opts),
		backend: backend,
	}
}

func ping(subject string, ts time.Time) *location.Record {
	return &location.Record{
		SubjectID: subject,
		Position:  location.Position{Longitude: 2.35, Latitude: 48.85},
		Timestamp: ts,
		Source:    location.SourceGPS,
	}
}

func TestRecordLocation_AssignsIDAndTimestamp(t *testing.T) {
	env := newTestStore(t, shard.Config{Strategy: shard.StrategyHybrid, Granularity: shard.Monthly},
		fixedClassifier{tier.Standard}, store.Options{})
	ctx := context.Background()

	rec := ping("s1", time.Time{}) // zero timestamp
	stored, err := env.store.RecordLocation(ctx, rec)
	require.NoError(t, err)
	require.NotEmpty(t, stored.ID)
	require.False(t, stored.Timestamp.IsZero(), "zero timestamp defaults to ingest time")
	require.Empty(t, rec.ID, "caller's record is not mutated")
}

func TestRecordLocation_RejectsInvalid(t *testing.T) {
	env := newTestStore(t, shard.Config{Strategy: shard.StrategyHybrid, Granularity: shard.Monthly},
		fixedClassifier{tier.Standard}, store.Options{})

	_, err := env.store.RecordLocation(context.Background(), &location.Record{
		Position: location.Position{Longitude: 500},
	})
	require.Error(t, err)
	require.Equal(t, 0, env.backend.Len(), "invalid records provision nothing")
}

func TestRoundTrip_InAndOutOfRange(t *testing.T) {
	env := newTestStore(t, shard.Config{Strategy: shard.StrategyHybrid, Granularity: shard.Monthly},
		fixedClassifier{tier.Standard}, store.Options{})
	ctx := context.Background()

	ts := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	stored, err := env.store.RecordLocation(ctx, ping("s1", ts))
	require.NoError(t, err)

	got, err := env.store.QueryHistory(ctx, "s1",
		ts.Add(-time.Hour), ts.Add(time.Hour), 10, store.Descending)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, stored.ID, got[0].ID)

	got, err = env.store.QueryHistory(ctx, "s1",
		ts.Add(time.Hour), ts.Add(2*time.Hour), 10, store.Descending)
	require.NoError(t, err)
	require.Empty(t, got, "range excluding the timestamp returns nothing")
}

func TestQueryHistory_MonthlyBucketScenario(t *testing.T) {
	env := newTestStore(t, shard.Config{Strategy: shard.StrategyTime, Granularity: shard.Monthly},
		fixedClassifier{tier.Standard}, store.Options{})
	ctx := context.Background()

	jan := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	feb := time.Date(2024, 2, 20, 10, 0, 0, 0, time.UTC)
	_, err := env.store.RecordLocation(ctx, ping("s1", jan))
	require.NoError(t, err)
	_, err = env.store.RecordLocation(ctx, ping("s1", feb))
	require.NoError(t, err)

	// January window sees only the January record.
	got, err := env.store.QueryHistory(ctx, "s1",
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
		10, store.Descending)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.True(t, got[0].Timestamp.Equal(jan))

	// The wider window sees both, most recent first.
	got, err = env.store.QueryHistory(ctx, "s1",
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		10, store.Descending)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.True(t, got[0].Timestamp.Equal(feb))
	require.True(t, got[1].Timestamp.Equal(jan))
}

func TestQueryHistory_GlobalTruncationAfterMerge(t *testing.T) {
	env := newTestStore(t, shard.Config{Strategy: shard.StrategyHybrid, Granularity: shard.Monthly},
		fixedClassifier{tier.Elevated}, store.Options{})
	ctx := context.Background()

	// 40 records in each of three monthly partitions.
	months := []time.Time{
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	for _, month := range months {
		for i := 0; i < 40; i++ {
			_, err := env.store.RecordLocation(ctx, ping("s1", month.Add(time.Duration(i)*time.Hour)))
			require.NoError(t, err)
		}
	}
	require.Equal(t, 3, env.backend.Len())

	got, err := env.store.QueryHistory(ctx, "s1",
		months[0], months[2].AddDate(0, 1, 0), 50, store.Descending)
	require.NoError(t, err)
	require.Len(t, got, 50)

	// The 50 most recent across the union: all 40 March records plus the
	// 10 newest from February. Not an even split across partitions.
	marchCount, febCount := 0, 0
	for _, r := range got {
		switch r.Timestamp.Month() {
		case time.March:
			marchCount++
		case time.February:
			febCount++
		default:
			t.Fatalf("January record %v should have been truncated away", r.Timestamp)
		}
	}
	require.Equal(t, 40, marchCount)
	require.Equal(t, 10, febCount)

	for i := 1; i < len(got); i++ {
		require.False(t, got[i].Timestamp.After(got[i-1].Timestamp), "descending order violated")
	}
}

func TestQueryHistory_AscendingOrder(t *testing.T) {
	env := newTestStore(t, shard.Config{Strategy: shard.StrategyUserHash},
		fixedClassifier{tier.Standard}, store.Options{})
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		_, err := env.store.RecordLocation(ctx, ping("s1", base.Add(time.Duration(i)*time.Minute)))
		require.NoError(t, err)
	}

	got, err := env.store.QueryHistory(ctx, "s1", base, base.Add(time.Hour), 10, store.Ascending)
	require.NoError(t, err)
	require.Len(t, got, 5)
	for i := 1; i < len(got); i++ {
		require.True(t, got[i].Timestamp.After(got[i-1].Timestamp))
	}
}

func TestQueryHistory_EmptyRangeCreatesNothing(t *testing.T) {
	env := newTestStore(t, shard.Config{Strategy: shard.StrategyHybrid, Granularity: shard.Daily},
		fixedClassifier{tier.Standard}, store.Options{})
	ctx := context.Background()

	got, err := env.store.QueryHistory(ctx, "s1",
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC),
		10, store.Descending)
	require.NoError(t, err)
	require.Empty(t, got)
	require.Equal(t, 0, env.backend.Len(), "queries must never create partitions")
	require.Equal(t, 0, env.store.Registry().Len())
}

func TestQueryHistory_Validation(t *testing.T) {
	env := newTestStore(t, shard.Config{Strategy: shard.StrategyTime, Granularity: shard.Daily},
		fixedClassifier{tier.Standard}, store.Options{MaxQueryRange: 30 * 24 * time.Hour})
	ctx := context.Background()
	now := time.Now()

	_, err := env.store.QueryHistory(ctx, "", now.Add(-time.Hour), now, 10, store.Descending)
	require.ErrorIs(t, err, store.ErrMissingSubject)

	_, err = env.store.QueryHistory(ctx, "s1", now, now.Add(-time.Hour), 10, store.Descending)
	require.ErrorIs(t, err, store.ErrInvalidRange)

	_, err = env.store.QueryHistory(ctx, "s1", now.Add(-60*24*time.Hour), now, 10, store.Descending)
	require.ErrorIs(t, err, store.ErrRangeTooWide)
}

func TestQueryHistory_DefaultAndMaxLimit(t *testing.T) {
	env := newTestStore(t, shard.Config{Strategy: shard.StrategyUserHash},
		fixedClassifier{tier.Standard}, store.Options{DefaultLimit: 3, MaxLimit: 5})
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		_, err := env.store.RecordLocation(ctx, ping("s1", base.Add(time.Duration(i)*time.Second)))
		require.NoError(t, err)
	}

	got, err := env.store.QueryHistory(ctx, "s1", base, base.Add(time.Hour), 0, store.Descending)
	require.NoError(t, err)
	require.Len(t, got, 3, "limit <= 0 takes the default")

	got, err = env.store.QueryHistory(ctx, "s1", base, base.Add(time.Hour), 100, store.Descending)
	require.NoError(t, err)
	require.Len(t, got, 5, "requested limit is capped")
}

func TestQueryHistory_Cancellation(t *testing.T) {
	env := newTestStore(t, shard.Config{Strategy: shard.StrategyUserHash},
		fixedClassifier{tier.Standard}, store.Options{})

	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	_, err := env.store.RecordLocation(context.Background(), ping("s1", base))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = env.store.QueryHistory(ctx, "s1", base.Add(-time.Hour), base.Add(time.Hour), 10, store.Descending)
	require.Error(t, err, "cancellation is an error, never a truncated success")
}

func TestPartitionPlacement_PerTier(t *testing.T) {
	// The same subject and timestamp land in different partitions per
	// tier under the hybrid strategy.
	deriver, err := shard.NewDeriver(shard.Config{Strategy: shard.StrategyHybrid, Granularity: shard.Monthly})
	require.NoError(t, err)

	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ids := map[string]bool{}
	for _, tr := range []tier.Tier{tier.Elevated, tier.Premium, tier.Standard} {
		ids[deriver.PartitionID("s1", ts, tr)] = true
	}
	require.Len(t, ids, 3)
}

func TestWritesAcrossManySubjects(t *testing.T) {
	env := newTestStore(t, shard.Config{Strategy: shard.StrategyUserHash, HashShards: 8},
		fixedClassifier{tier.Standard}, store.Options{})
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 200; i++ {
		_, err := env.store.RecordLocation(ctx, ping(fmt.Sprintf("subject-%d", i), base))
		require.NoError(t, err)
	}

	// Bounded partition count regardless of subject cardinality.
	require.LessOrEqual(t, env.backend.Len(), 8)
}
