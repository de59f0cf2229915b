// Package export provides subject history backup and restore.
//
// # Overview
//
// The export package dumps one subject's location history to JSON or CSV
// and can restore a JSON dump into a store. This is useful for:
//   - Data portability requests (hand a subject their own history)
//   - Backup before an erasure request is executed
//   - Migrating history between store instances
//   - Exporting trajectories for analysis in external tools
//
// # Supported Formats
//
// JSON Format:
//   - Preserves every record field, including telemetry and nested metadata
//   - Includes export metadata (timestamp, time range, record count)
//   - Can be re-imported
//
// CSV Format:
//   - Flattened representation suitable for spreadsheets
//   - Fixed columns; nested metadata is omitted
//   - Export-only, cannot be re-imported
//
// # Programmatic Usage
//
// Exporting history:
//
//	exporter := export.NewExporter(store)
//	opts := export.Options{
//	    SubjectID: "subject-1",
//	    Start:     time.Now().Add(-30 * 24 * time.Hour),
//	    End:       time.Now(),
//	}
//
//	file, _ := os.Create("history.json")
//	defer file.Close()
//
//	result, err := exporter.ExportJSON(ctx, file, opts)
//
// Importing history:
//
//	importer := export.NewImporter(store)
//
//	file, _ := os.Open("history.json")
//	defer file.Close()
//
//	result, err := importer.ImportJSON(ctx, file)
//
// # Error Handling
//
// Import validates each record and skips invalid ones rather than failing
// the whole run; skipped records are reported in ImportResult.Errors.
// Imported records are re-classified and re-sharded on write, so a dump
// taken under one sharding configuration restores cleanly under another.
package export
