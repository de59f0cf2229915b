package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trailhq/trailstore/pkg/location"
	"github.com/trailhq/trailstore/pkg/partition"
	"github.com/trailhq/trailstore/pkg/partition/memory"
	"github.com/trailhq/trailstore/pkg/shard"
	"github.com/trailhq/trailstore/pkg/store"
	"github.com/trailhq/trailstore/pkg/tier"
)

type standardClassifier struct{}

func (standardClassifier) Classify(context.Context, string) tier.Tier { return tier.Standard }

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	deriver, err := shard.NewDeriver(shard.Config{
		Strategy:    shard.StrategyHybrid,
		Granularity: shard.Monthly,
	})
	require.NoError(t, err)
	return store.New(deriver, standardClassifier{}, partition.NewRegistry(memory.New()), store.Options{})
}

func seed(t *testing.T, s *store.Store, subjectID string, n int, base time.Time) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		speed := float64(i)
		_, err := s.RecordLocation(ctx, &location.Record{
			SubjectID: subjectID,
			DeviceID:  "dev-1",
			Position:  location.Position{Longitude: -73.98, Latitude: 40.74},
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Speed:     &speed,
			Source:    location.SourceGPS,
		})
		require.NoError(t, err)
	}
}

func TestExportJSONRoundTrip(t *testing.T) {
	src := newTestStore(t)
	base := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	seed(t, src, "subject-1", 25, base)

	opts := Options{
		SubjectID: "subject-1",
		Start:     base.Add(-time.Hour),
		End:       base.Add(time.Hour),
	}

	var buf bytes.Buffer
	result, err := NewExporter(src).ExportJSON(context.Background(), &buf, opts)
	require.NoError(t, err)
	assert.Equal(t, 25, result.RecordsExported)
	assert.Equal(t, "json", result.Format)

	var dump Dump
	require.NoError(t, json.Unmarshal(buf.Bytes(), &dump))
	assert.Equal(t, "subject-1", dump.Metadata.SubjectID)
	assert.Equal(t, 25, dump.Metadata.RecordCount)
	require.Len(t, dump.Records, 25)
	// Ascending order with all fields intact.
	assert.True(t, dump.Records[0].Timestamp.Before(dump.Records[24].Timestamp))
	require.NotNil(t, dump.Records[3].Speed)
	assert.Equal(t, float64(3), *dump.Records[3].Speed)

	// Restore into a fresh store.
	dst := newTestStore(t)
	imported, err := NewImporter(dst).ImportJSON(context.Background(), &buf)
	require.NoError(t, err)
	assert.Equal(t, 25, imported.RecordsImported)
	assert.Empty(t, imported.Errors)

	recs, err := dst.QueryHistory(context.Background(), "subject-1",
		opts.Start, opts.End, 100, store.Ascending)
	require.NoError(t, err)
	assert.Len(t, recs, 25)
}

func TestExportCSV(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	seed(t, s, "subject-2", 3, base)

	var buf bytes.Buffer
	result, err := NewExporter(s).ExportCSV(context.Background(), &buf, Options{
		SubjectID: "subject-2",
		Start:     base,
		End:       base.Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, result.RecordsExported)

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, "subject-2", rows[1][1])
	assert.Equal(t, "gps", rows[1][10])
	// Missing telemetry stays empty, present telemetry round-trips.
	assert.Equal(t, "", rows[1][5])
	assert.Equal(t, "0", rows[1][6])
}

func TestExportEmptyRange(t *testing.T) {
	s := newTestStore(t)
	seed(t, s, "subject-3", 5, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	var buf bytes.Buffer
	result, err := NewExporter(s).ExportJSON(context.Background(), &buf, Options{
		SubjectID: "subject-3",
		Start:     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		End:       time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.RecordsExported)

	var dump Dump
	require.NoError(t, json.Unmarshal(buf.Bytes(), &dump))
	assert.Empty(t, dump.Records)
}

func TestExportRequiresSubject(t *testing.T) {
	s := newTestStore(t)
	var buf bytes.Buffer
	_, err := NewExporter(s).ExportJSON(context.Background(), &buf, Options{
		Start: time.Now().Add(-time.Hour),
		End:   time.Now(),
	})
	assert.ErrorIs(t, err, location.ErrMissingSubject)
}

func TestImportSkipsInvalidRecords(t *testing.T) {
	s := newTestStore(t)

	now := time.Now().UTC().Truncate(time.Second)
	payload := fmt.Sprintf(`{
		"metadata": {"subject_id": "subject-4", "record_count": 3, "version": "1.0"},
		"records": [
			{"subject_id": "subject-4", "position": {"longitude": 1, "latitude": 2}, "timestamp": %q},
			{"subject_id": "", "position": {"longitude": 1, "latitude": 2}, "timestamp": %q},
			{"subject_id": "subject-4", "position": {"longitude": 500, "latitude": 2}, "timestamp": %q}
		]
	}`, now.Format(time.RFC3339), now.Format(time.RFC3339), now.Format(time.RFC3339))

	result, err := NewImporter(s).ImportJSON(context.Background(), strings.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, 1, result.RecordsImported)
	assert.Len(t, result.Errors, 2)
}

func TestImportRejectsStaleTimestamps(t *testing.T) {
	s := newTestStore(t)

	payload := fmt.Sprintf(`{
		"metadata": {"version": "1.0"},
		"records": [
			{"subject_id": "subject-5", "position": {"longitude": 1, "latitude": 2}, "timestamp": %q},
			{"subject_id": "subject-5", "position": {"longitude": 1, "latitude": 2}, "timestamp": %q}
		]
	}`,
		time.Now().Add(-11*365*24*time.Hour).Format(time.RFC3339),
		time.Now().Add(48*time.Hour).Format(time.RFC3339))

	result, err := NewImporter(s).ImportJSON(context.Background(), strings.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, 0, result.RecordsImported)
	assert.Len(t, result.Errors, 2)
}
