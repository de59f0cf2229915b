package badgerdb

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/trailhq/trailstore/pkg/location"
	"github.com/trailhq/trailstore/pkg/partition"
)

// Partition is one prefixed keyspace plus the spec it was provisioned
// with. Handles are cheap; all state lives in the shared DB.
type Partition struct {
	db   *badger.DB
	id   string
	spec partition.Spec
}

// ID returns the partition identifier.
func (p *Partition) ID() string { return p.id }

// Spec returns the provisioned spec. Used by tests and maintenance.
func (p *Partition) Spec() partition.Spec { return p.spec }

// Append persists the record plus its index entries in one transaction.
// Every entry carries a TTL scaled to the partition's archive retention,
// counted from the record timestamp, so expiry tracks observation time and
// not ingest time.
func (p *Partition) Append(ctx context.Context, rec *location.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	uid := recordUID(rec)
	value, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	ttl := time.Until(rec.Timestamp.Add(p.spec.Retention.ArchiveHorizon()))
	if ttl <= 0 {
		// Already past the archive horizon. Keep it briefly so the write
		// is still observable to an immediate read-back.
		ttl = time.Minute
	}

	done := make(chan error, 1)
	go func() {
		done <- p.db.Update(func(txn *badger.Txn) error {
			if err := txn.SetEntry(badger.NewEntry(recKey(p.id, rec, uid), value).WithTTL(ttl)); err != nil {
				return err
			}
			if err := txn.SetEntry(badger.NewEntry(geoKey(p.id, rec, uid), nil).WithTTL(ttl)); err != nil {
				return err
			}
			if p.spec.SourceIndex() {
				if err := txn.SetEntry(badger.NewEntry(srcKey(p.id, rec, uid), nil).WithTTL(ttl)); err != nil {
					return err
				}
			}
			return nil
		})
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to append record: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("append cancelled: %w", ctx.Err())
	}
}

// Query scans the subject's primary index within the inclusive time range.
// Keys sort chronologically within a subject, so ascending scans seek to
// the range start and descending scans iterate in reverse from the range
// end.
func (p *Partition) Query(ctx context.Context, req partition.QueryRequest) ([]location.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	base := recSubjectPrefix(p.id, req.SubjectID)

	type result struct {
		records []location.Record
		err     error
	}
	done := make(chan result, 1)

	go func() {
		var records []location.Record
		err := p.db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = base
			opts.Reverse = req.Descending

			it := txn.NewIterator(opts)
			defer it.Close()

			var seek []byte
			if req.Descending {
				// Position after the last key at End: ts bytes for End,
				// then a maximal uid suffix.
				seek = append(append([]byte{}, base...), tsBytes(req.End)...)
				seek = append(seek, bytes.Repeat([]byte{0xff}, uidLen)...)
			} else {
				seek = append(append([]byte{}, base...), tsBytes(req.Start)...)
			}

			var iterCount int
			for it.Seek(seek); it.ValidForPrefix(base); it.Next() {
				iterCount++
				if iterCount%1000 == 0 {
					select {
					case <-ctx.Done():
						return ctx.Err()
					default:
					}
				}

				ts := tsFromKey(it.Item().Key(), len(base))
				if req.Descending {
					if ts.Before(req.Start) {
						break
					}
					if ts.After(req.End) {
						continue
					}
				} else if ts.After(req.End) {
					break
				}

				err := it.Item().Value(func(val []byte) error {
					var rec location.Record
					if err := json.Unmarshal(val, &rec); err != nil {
						return err
					}
					// Guard against a subject-hash collision.
					if rec.SubjectID != req.SubjectID {
						return nil
					}
					records = append(records, rec)
					return nil
				})
				if err != nil {
					return err
				}

				if req.Limit > 0 && len(records) >= req.Limit {
					break
				}
			}
			return nil
		})
		done <- result{records: records, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return nil, fmt.Errorf("partition query failed: %w", res.err)
		}
		return res.records, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("query cancelled: %w", ctx.Err())
	}
}

// DeleteSubject removes the subject's records and index entries. Keys are
// collected under a read transaction and deleted through a write batch, so
// large erasures do not hit transaction size limits.
func (p *Partition) DeleteSubject(ctx context.Context, subjectID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	prefixes := [][]byte{
		recSubjectPrefix(p.id, subjectID),
		geoSubjectPrefix(p.id, subjectID),
		srcSubjectPrefix(p.id, subjectID),
	}

	var keys [][]byte
	removed := 0
	err := p.db.View(func(txn *badger.Txn) error {
		for _, prefix := range prefixes {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = prefix
			opts.PrefetchValues = false

			it := txn.NewIterator(opts)
			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				keys = append(keys, it.Item().KeyCopy(nil))
			}
			it.Close()
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to scan subject keys: %w", err)
	}

	wb := p.db.NewWriteBatch()
	defer wb.Cancel()
	for i, key := range keys {
		if i%1000 == 0 {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			default:
			}
		}
		if err := wb.Delete(key); err != nil {
			return 0, fmt.Errorf("failed to delete subject keys: %w", err)
		}
		if bytes.HasPrefix(key, prefixes[0]) {
			removed++
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("failed to flush subject deletion: %w", err)
	}
	return removed, nil
}

// Expire is a no-op: archive retention is enforced by the TTL installed on
// every entry at append time.
func (p *Partition) Expire(ctx context.Context, before time.Time) (int, error) {
	return 0, nil
}

// Stats counts primary-index entries and reads timestamp bounds from keys
// without fetching values.
func (p *Partition) Stats(ctx context.Context) (*partition.Stats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := []byte("p:" + p.id + ":r:")
	stats := &partition.Stats{}

	err := p.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		var iterCount int
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			iterCount++
			if iterCount%1000 == 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}
			}

			stats.Records++
			ts := tsFromKey(it.Item().Key(), len(prefix)+8)
			if stats.Oldest.IsZero() || ts.Before(stats.Oldest) {
				stats.Oldest = ts
			}
			if ts.After(stats.Newest) {
				stats.Newest = ts
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to collect stats: %w", err)
	}
	return stats, nil
}

// recordUID derives the 16-byte key suffix from the record's assigned id,
// falling back to a fresh UUID for records written without one.
func recordUID(rec *location.Record) [uidLen]byte {
	if id, err := uuid.Parse(rec.ID); err == nil {
		return [uidLen]byte(id)
	}
	return [uidLen]byte(uuid.New())
}
