// Package ingest provides a buffered write front-end for the store.
// High-frequency device feeds call Add without blocking on persistence;
// a background loop drains the buffer on a size or time trigger.
package ingest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/trailhq/trailstore/pkg/location"
	"github.com/trailhq/trailstore/pkg/logging"
	"github.com/trailhq/trailstore/pkg/store"
)

// Config holds buffer tuning.
type Config struct {
	// MaxBatchSize triggers a flush when the buffer reaches this many
	// records. Default 256.
	MaxBatchSize int

	// FlushEvery triggers a flush on a timer regardless of fill.
	// Default 2s.
	FlushEvery time.Duration

	// MaxPending bounds the buffer; Add rejects records beyond it
	// rather than growing without limit. Default 16384.
	MaxPending int
}

// ErrBufferFull is returned by Add when the write path cannot keep up
// and the pending buffer hit its cap.
var ErrBufferFull = errors.New("ingest buffer full")

// ErrStopped is returned by Add after Stop.
var ErrStopped = errors.New("ingest buffer stopped")

// Buffer batches location records and writes them through the store.
type Buffer struct {
	store  *store.Store
	config Config

	pending []location.Record
	mu      sync.Mutex
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	// flushing prevents concurrent flushes and the goroutine pile-up
	// they would cause under sustained load.
	flushing atomic.Bool

	log zerolog.Logger
}

// New creates a buffer over the store. Call Start before Add.
func New(s *store.Store, config Config) *Buffer {
	if config.MaxBatchSize <= 0 {
		config.MaxBatchSize = 256
	}
	if config.FlushEvery <= 0 {
		config.FlushEvery = 2 * time.Second
	}
	if config.MaxPending <= 0 {
		config.MaxPending = 16384
	}
	return &Buffer{
		store:   s,
		config:  config,
		pending: make([]location.Record, 0, config.MaxBatchSize),
		done:    make(chan struct{}),
		log:     logging.WithComponent("ingest"),
	}
}

// Start launches the flush loop.
func (b *Buffer) Start(ctx context.Context) {
	b.ctx, b.cancel = context.WithCancel(ctx)
	go b.flushLoop()
}

// Add queues one record. The record is copied; the caller may reuse it.
func (b *Buffer) Add(rec location.Record) error {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return ErrStopped
	}
	if len(b.pending) >= b.config.MaxPending {
		b.mu.Unlock()
		return ErrBufferFull
	}
	b.pending = append(b.pending, rec)
	shouldFlush := len(b.pending) >= b.config.MaxBatchSize
	b.mu.Unlock()

	if shouldFlush && b.flushing.CompareAndSwap(false, true) {
		go func() {
			b.flush(b.ctx)
			b.flushing.Store(false)
		}()
	}
	return nil
}

// Flush synchronously drains the buffer. Returns the first persistence
// error after attempting every record.
func (b *Buffer) Flush(ctx context.Context) error {
	return b.flush(ctx)
}

// Stop flushes remaining records and shuts the loop down. Add returns
// ErrStopped afterwards.
func (b *Buffer) Stop() error {
	b.mu.Lock()
	b.stopped = true
	b.mu.Unlock()

	if b.cancel != nil {
		b.cancel()
		<-b.done
	}
	return b.flush(context.Background())
}

func (b *Buffer) flushLoop() {
	defer close(b.done)

	ticker := time.NewTicker(b.config.FlushEvery)
	defer ticker.Stop()

	for {
		select {
		case <-b.ctx.Done():
			return
		case <-ticker.C:
			if b.flushing.CompareAndSwap(false, true) {
				b.flush(b.ctx)
				b.flushing.Store(false)
			}
		}
	}
}

// flush writes the current batch one record at a time. Invalid records
// are dropped with a warning; the first persistence error is reported
// after the whole batch has been attempted.
func (b *Buffer) flush(ctx context.Context) error {
	b.mu.Lock()
	if len(b.pending) == 0 {
		b.mu.Unlock()
		return nil
	}
	batch := make([]location.Record, len(b.pending))
	copy(batch, b.pending)
	b.pending = b.pending[:0]
	b.mu.Unlock()

	var firstErr error
	for i := range batch {
		_, err := b.store.RecordLocation(ctx, &batch[i])
		if err == nil {
			continue
		}
		var we *store.WriteError
		var pe *store.ProvisionError
		if errors.As(err, &we) || errors.As(err, &pe) {
			if firstErr == nil {
				firstErr = err
			}
			b.log.Error().Err(err).Str("subject", batch[i].SubjectID).Msg("flush write failed")
			continue
		}
		// Validation failure: the record can never succeed, drop it.
		b.log.Warn().Err(err).Str("subject", batch[i].SubjectID).Msg("dropping invalid record")
	}
	return firstErr
}
