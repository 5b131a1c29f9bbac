package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"bookscope/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "books.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return s
}

func sampleBooks() []*models.Book {
	return []*models.Book{
		{
			Title:        "A Light in the Attic",
			PriceValue:   51.77,
			Rating:       3,
			Availability: "In stock",
			URL:          "http://example.test/catalogue/a-light-in-the-attic/index.html",
		},
		{
			Title:        "Tipping the Velvet",
			PriceValue:   53.74,
			Rating:       1,
			Availability: "In stock",
			URL:          "http://example.test/catalogue/tipping-the-velvet/index.html",
		},
	}
}

func TestInsertBooksAndCount(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	inserted, err := s.InsertBooks(ctx, sampleBooks())
	if err != nil {
		t.Fatalf("insert books: %v", err)
	}
	if inserted != 2 {
		t.Fatalf("inserted = %d, want 2", inserted)
	}

	count, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}
}

func TestInsertBooksIdempotentByTitle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.InsertBooks(ctx, sampleBooks()); err != nil {
		t.Fatalf("first insert: %v", err)
	}

	inserted, err := s.InsertBooks(ctx, sampleBooks())
	if err != nil {
		t.Fatalf("second insert: %v", err)
	}
	if inserted != 0 {
		t.Fatalf("re-insert added %d rows, want 0", inserted)
	}

	count, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("count after re-insert = %d, want 2", count)
	}
}

func TestGetByID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.InsertBooks(ctx, sampleBooks()); err != nil {
		t.Fatalf("insert books: %v", err)
	}

	book, err := s.GetByID(ctx, 1)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if book.ID != 1 {
		t.Fatalf("id = %d, want 1", book.ID)
	}
	if book.Title != "A Light in the Attic" {
		t.Fatalf("title = %q", book.Title)
	}
	if book.PriceValue != 51.77 || book.Rating != 3 {
		t.Fatalf("price/rating = %v/%d", book.PriceValue, book.Rating)
	}
}

func TestGetByIDNotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetByID(context.Background(), 999)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestListAllOrderedByID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.InsertBooks(ctx, sampleBooks()); err != nil {
		t.Fatalf("insert books: %v", err)
	}

	books, err := s.ListAll(ctx)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(books) != 2 {
		t.Fatalf("len = %d, want 2", len(books))
	}
	if books[0].ID >= books[1].ID {
		t.Fatalf("rows not ordered by id: %d, %d", books[0].ID, books[1].ID)
	}
}

func TestListAllEmpty(t *testing.T) {
	s := openTestStore(t)

	books, err := s.ListAll(context.Background())
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(books) != 0 {
		t.Fatalf("len = %d, want 0", len(books))
	}
}
