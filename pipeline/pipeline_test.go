package pipeline

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"bookscope/config"
	"bookscope/models"
)

type mockWriter struct {
	mu          sync.Mutex
	batches     [][]*models.Book
	closed      bool
	validateErr error
}

func (mw *mockWriter) Write(books []*models.Book) error {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	copyBatch := make([]*models.Book, len(books))
	copy(copyBatch, books)
	mw.batches = append(mw.batches, copyBatch)
	return nil
}

func (mw *mockWriter) Close() error {
	mw.mu.Lock()
	mw.closed = true
	mw.mu.Unlock()
	return nil
}

func (mw *mockWriter) Validate() error {
	return mw.validateErr
}

func (mw *mockWriter) totalWritten() int {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	total := 0
	for _, batch := range mw.batches {
		total += len(batch)
	}
	return total
}

func (mw *mockWriter) batchSizes() []int {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	sizes := make([]int, 0, len(mw.batches))
	for _, batch := range mw.batches {
		sizes = append(sizes, len(batch))
	}
	return sizes
}

func (mw *mockWriter) allBooks() []*models.Book {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	var out []*models.Book
	for _, batch := range mw.batches {
		out = append(out, batch...)
	}
	return out
}

type blockingWriter struct {
	blockCh chan struct{}
}

func (bw *blockingWriter) Write(books []*models.Book) error {
	<-bw.blockCh
	return nil
}

func (bw *blockingWriter) Close() error {
	return nil
}

func (bw *blockingWriter) Validate() error {
	return nil
}

func rawBook(title, price, rating string) *models.Book {
	return &models.Book{
		Title:        title,
		Price:        price,
		RatingText:   rating,
		Availability: "In stock",
		URL:          "http://example.test/catalogue/" + title + "/index.html",
		ScrapedAt:    time.Now(),
	}
}

func TestPipelineConvertsFields(t *testing.T) {
	cfg := config.DefaultConfig()
	writer := &mockWriter{}
	p := NewPipeline(context.Background(), writer, cfg)
	p.Start(1)

	book := rawBook("Clean Architecture", "Â£51.77", "Four")
	book.Availability = ""

	if err := p.Process(book); err != nil {
		t.Fatalf("process: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	books := writer.allBooks()
	if len(books) != 1 {
		t.Fatalf("written books = %d, want 1", len(books))
	}
	if books[0].PriceValue != 51.77 {
		t.Fatalf("price value = %v, want 51.77", books[0].PriceValue)
	}
	if books[0].Rating != 4 {
		t.Fatalf("rating = %d, want 4", books[0].Rating)
	}
	if books[0].Availability != "Unknown" {
		t.Fatalf("availability = %q, want Unknown", books[0].Availability)
	}
}

func TestPipelineSkipsMalformedRecords(t *testing.T) {
	cfg := config.DefaultConfig()
	writer := &mockWriter{}
	p := NewPipeline(context.Background(), writer, cfg)
	p.Start(1)

	valid := rawBook("Good Book", "£10.00", "Two")
	noTitle := rawBook("", "£12.00", "Three")
	badPrice := rawBook("Priceless", "free", "Three")
	badRating := rawBook("Unrated", "£9.00", "Six")
	dupTitle := rawBook("Good Book", "£10.00", "Two")

	if err := p.Process(valid, noTitle, badPrice, badRating, dupTitle); err != nil {
		t.Fatalf("process: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if got := writer.totalWritten(); got != 1 {
		t.Fatalf("written books = %d, want 1", got)
	}

	metrics := p.GetMetrics()
	validation, ok := metrics["validation_errors"].(map[string]int)
	if !ok {
		t.Fatalf("expected validation errors map")
	}
	for _, kind := range []string{"invalid_record", "bad_price", "bad_rating", "duplicate_title"} {
		if validation[kind] == 0 {
			t.Errorf("expected %s validation error, got %v", kind, validation)
		}
	}
}

func TestPipelineBatchFlushThreshold(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BatchSize = 64
	writer := &mockWriter{}
	p := NewPipeline(context.Background(), writer, cfg)
	p.Start(1)

	for i := 0; i < 65; i++ {
		if err := p.Process(rawBook("Book "+strconv.Itoa(i), "£12.00", "Three")); err != nil {
			t.Fatalf("process: %v", err)
		}
	}

	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	sizes := writer.batchSizes()
	if len(sizes) != 2 {
		t.Fatalf("batch writes = %d, want 2", len(sizes))
	}
	if sizes[0] != 64 || sizes[1] != 1 {
		t.Fatalf("batch sizes = %v, want [64 1]", sizes)
	}
}

func TestPipelineCloseDrainsPendingItems(t *testing.T) {
	cfg := config.DefaultConfig()
	writer := &mockWriter{}
	p := NewPipeline(context.Background(), writer, cfg)
	p.Start(2)

	for i := 0; i < 100; i++ {
		if err := p.Process(rawBook("Book "+strconv.Itoa(i+200), "£12.00", "Three")); err != nil {
			t.Fatalf("process: %v", err)
		}
	}

	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if got := writer.totalWritten(); got != 100 {
		t.Fatalf("written books = %d, want 100", got)
	}
}

func TestPipelineProcessAfterClose(t *testing.T) {
	cfg := config.DefaultConfig()
	writer := &mockWriter{}
	p := NewPipeline(context.Background(), writer, cfg)
	p.Start(1)

	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	err := p.Process(rawBook("Late Book", "£5.00", "One"))
	if !errors.Is(err, ErrPipelineClosed) {
		t.Fatalf("err = %v, want ErrPipelineClosed", err)
	}
}

func TestPipelineCloseTimeout(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BatchSize = 1

	writer := &blockingWriter{blockCh: make(chan struct{})}
	p := NewPipeline(context.Background(), writer, cfg)
	p.Start(1)

	if err := p.Process(rawBook("Blocked Book", "£10.00", "Two")); err != nil {
		t.Fatalf("process: %v", err)
	}

	previousTimeout := drainTimeout
	drainTimeout = 25 * time.Millisecond
	t.Cleanup(func() {
		drainTimeout = previousTimeout
		close(writer.blockCh)
	})

	if err := p.Close(); err == nil || !errors.Is(err, ErrPipelineCloseTimeout) {
		t.Fatalf("expected close timeout error, got %v", err)
	}
}
