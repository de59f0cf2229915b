package export

import (
	"context"
	"fmt"
	"io"
	"time"

	json "github.com/goccy/go-json"

	"github.com/trailhq/trailstore/pkg/store"
)

// Import timestamp sanity bounds. Records outside them are skipped.
const (
	maxImportAge    = 10 * 365 * 24 * time.Hour
	maxImportFuture = 24 * time.Hour
)

// Importer restores a JSON dump into a store.
type Importer struct {
	store *store.Store
}

// NewImporter creates an importer over the given store.
func NewImporter(s *store.Store) *Importer {
	return &Importer{store: s}
}

// ImportResult contains stats about a completed import.
type ImportResult struct {
	RecordsImported int       `json:"records_imported"`
	ImportedAt      time.Time `json:"imported_at"`
	Errors          []string  `json:"errors,omitempty"`
}

// ImportJSON reads a Dump and writes its records back through the store,
// which re-classifies and re-shards each one. Invalid records are skipped
// and reported, not fatal.
func (i *Importer) ImportJSON(ctx context.Context, r io.Reader) (*ImportResult, error) {
	var dump Dump
	if err := json.NewDecoder(r).Decode(&dump); err != nil {
		return nil, fmt.Errorf("failed to decode import data: %w", err)
	}

	result := &ImportResult{ImportedAt: time.Now().UTC()}
	now := time.Now()

	for idx := range dump.Records {
		rec := dump.Records[idx]

		// Stored ids are store-assigned; strip them so writes mint fresh
		// ones instead of colliding with live records.
		rec.ID = ""

		if err := rec.Validate(); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("record %d: %v", idx, err))
			continue
		}
		if !rec.Timestamp.IsZero() {
			if now.Sub(rec.Timestamp) > maxImportAge {
				result.Errors = append(result.Errors, fmt.Sprintf("record %d: timestamp too old", idx))
				continue
			}
			if rec.Timestamp.Sub(now) > maxImportFuture {
				result.Errors = append(result.Errors, fmt.Sprintf("record %d: timestamp in the future", idx))
				continue
			}
		}

		if _, err := i.store.RecordLocation(ctx, &rec); err != nil {
			// Persistence failures are fatal: retrying the import is safe
			// only if we stop at the first broken write.
			return result, fmt.Errorf("failed to write record %d: %w", idx, err)
		}
		result.RecordsImported++
	}

	return result, nil
}
