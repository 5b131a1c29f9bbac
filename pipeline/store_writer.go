package pipeline

import (
	"context"
	"fmt"
	"sync"

	"bookscope/models"
	"bookscope/store"
)

// StoreWriter adapts the SQLite store to the OutputWriter interface. The
// store itself outlives the writer (the session owns it), so Close does
// not close the underlying connection.
type StoreWriter struct {
	ctx      context.Context
	store    *store.Store
	mu       sync.Mutex
	written  int
	inserted int
}

// NewStoreWriter wraps an open store for use as a pipeline sink.
func NewStoreWriter(ctx context.Context, s *store.Store) *StoreWriter {
	if ctx == nil {
		ctx = context.Background()
	}
	return &StoreWriter{ctx: ctx, store: s}
}

// Write upserts a batch into the store. Duplicate titles are skipped by
// the table constraint and do not count as errors.
func (sw *StoreWriter) Write(books []*models.Book) error {
	inserted, err := sw.store.InsertBooks(sw.ctx, books)

	sw.mu.Lock()
	sw.written += len(books)
	sw.inserted += inserted
	sw.mu.Unlock()

	if err != nil {
		return fmt.Errorf("store write: %w", err)
	}
	return nil
}

// Close is a no-op; the session owns the store connection.
func (sw *StoreWriter) Close() error {
	return nil
}

// Validate ensures at least one row reached the store this run, unless
// every record was a known duplicate.
func (sw *StoreWriter) Validate() error {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if sw.written == 0 {
		return fmt.Errorf("no records reached the store")
	}
	return nil
}

// Inserted reports how many rows this run actually added.
func (sw *StoreWriter) Inserted() int {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.inserted
}
