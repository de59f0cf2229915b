// Package badgerdb implements partition.Backend on BadgerDB (LSM tree).
// Each partition is a prefixed keyspace in one shared database; a manifest
// key records that the partition exists and which spec it was provisioned
// with. Archive retention rides on Badger's native entry TTL, installed at
// append time from the partition spec.
package badgerdb

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/goccy/go-json"

	"github.com/trailhq/trailstore/pkg/partition"
)

// Config holds BadgerDB configuration.
type Config struct {
	// Path to the database directory.
	Path string

	// InMemory mode, for tests.
	InMemory bool

	// MaxMemoryMB bounds BadgerDB memory usage (0 = 48 MB default).
	// Badger's own defaults can consume 1-2 GB; location ingest does not
	// need that.
	MaxMemoryMB int64
}

// Backend provisions partitions as keyspaces in one BadgerDB instance.
type Backend struct {
	db *badger.DB
}

// New opens the database with bounded-memory options tuned for an
// append-heavy time-keyed workload.
func New(cfg Config) (*Backend, error) {
	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = opts.WithInMemory(true)
	}

	memTableSize := int64(16 * 1024 * 1024)
	if cfg.MaxMemoryMB > 0 {
		memTableSize = cfg.MaxMemoryMB * 1024 * 1024 / 3
	}

	opts = opts.
		WithCompression(options.Snappy).
		WithNumVersionsToKeep(1).
		WithMemTableSize(memTableSize).
		WithNumMemtables(3).
		WithBlockCacheSize(memTableSize / 2).
		WithIndexCacheSize(memTableSize / 4).
		WithMaxLevels(4).
		WithNumLevelZeroTables(2).
		WithNumLevelZeroTablesStall(4).
		WithValueThreshold(1024).
		WithNumCompactors(2).
		WithValueLogFileSize(64 << 20)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	return &Backend{db: db}, nil
}

// Create writes the partition manifest if absent and returns a handle.
// Safe to race: the transaction only sets the manifest when missing, and
// either way the caller gets a usable handle.
func (b *Backend) Create(ctx context.Context, id string, spec partition.Spec) (partition.Partition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stored := spec
	err := b.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(manifestKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			payload, merr := json.Marshal(spec)
			if merr != nil {
				return fmt.Errorf("failed to encode manifest: %w", merr)
			}
			return txn.Set(manifestKey(id), payload)
		}
		if err != nil {
			return err
		}
		// Already provisioned; the stored spec is authoritative.
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &stored)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to provision partition %s: %w", id, err)
	}

	return &Partition{db: b.db, id: id, spec: stored}, nil
}

// Open returns a handle for an existing partition, or partition.ErrNotFound.
func (b *Backend) Open(ctx context.Context, id string) (partition.Partition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var spec partition.Spec
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(manifestKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &spec)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, partition.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open partition %s: %w", id, err)
	}

	return &Partition{db: b.db, id: id, spec: spec}, nil
}

// Drop removes the partition keyspace and manifest. Missing partitions
// are success.
func (b *Backend) Drop(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := b.db.DropPrefix(dataPrefix(id)); err != nil {
		return fmt.Errorf("failed to drop partition %s: %w", id, err)
	}
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(manifestKey(id))
	})
	if err != nil {
		return fmt.Errorf("failed to remove manifest for %s: %w", id, err)
	}
	return nil
}

// Optimize runs value-log garbage collection. ErrNoRewrite means there was
// nothing worth reclaiming, which is not a failure.
func (b *Backend) Optimize(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := b.db.RunValueLogGC(0.5)
	if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrGCInMemoryMode) {
		return nil
	}
	return err
}

// Close shuts the database down cleanly.
func (b *Backend) Close() error {
	return b.db.Close()
}
