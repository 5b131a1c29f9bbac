// Package store persists books to a SQLite database file.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"bookscope/models"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("book not found")

const schema = `
CREATE TABLE IF NOT EXISTS books (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL UNIQUE,
	price REAL NOT NULL,
	rating INTEGER NOT NULL,
	availability TEXT,
	url TEXT
)`

// Store wraps the SQLite connection. Title uniqueness is enforced by the
// table constraint; a conflicting insert is the duplicate signal, not a
// pre-insert existence check.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database file and ensures the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory %q: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create books table: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the connection is usable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// InsertBooks inserts books one at a time, skipping titles that already
// exist. Each insert commits independently, so a failure partway leaves a
// self-consistent partial table. Returns the number of rows inserted.
func (s *Store) InsertBooks(ctx context.Context, books []*models.Book) (int, error) {
	const q = `
INSERT INTO books (title, price, rating, availability, url)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(title) DO NOTHING`

	inserted := 0
	for _, book := range books {
		if book == nil {
			continue
		}
		result, err := s.db.ExecContext(ctx, q,
			book.Title, book.PriceValue, book.Rating, book.Availability, book.URL)
		if err != nil {
			return inserted, fmt.Errorf("insert book %q: %w", book.Title, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return inserted, fmt.Errorf("rows affected for %q: %w", book.Title, err)
		}
		inserted += int(affected)
	}
	return inserted, nil
}

// GetByID returns a single book or ErrNotFound.
func (s *Store) GetByID(ctx context.Context, id int64) (*models.Book, error) {
	const q = `
SELECT id, title, price, rating, availability, url
FROM books
WHERE id = ?`

	var (
		book         models.Book
		availability sql.NullString
		url          sql.NullString
	)
	err := s.db.QueryRowContext(ctx, q, id).Scan(
		&book.ID, &book.Title, &book.PriceValue, &book.Rating, &availability, &url)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query book %d: %w", id, err)
	}

	book.Availability = availability.String
	book.URL = url.String
	return &book, nil
}

// ListAll returns every stored book ordered by id.
func (s *Store) ListAll(ctx context.Context) ([]*models.Book, error) {
	const q = `
SELECT id, title, price, rating, availability, url
FROM books
ORDER BY id`

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query books: %w", err)
	}
	defer rows.Close()

	var books []*models.Book
	for rows.Next() {
		var (
			book         models.Book
			availability sql.NullString
			url          sql.NullString
		)
		if err := rows.Scan(&book.ID, &book.Title, &book.PriceValue, &book.Rating, &availability, &url); err != nil {
			return nil, fmt.Errorf("scan book row: %w", err)
		}
		book.Availability = availability.String
		book.URL = url.String
		books = append(books, &book)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate book rows: %w", err)
	}
	return books, nil
}

// Count returns the number of stored books.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM books`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count books: %w", err)
	}
	return count, nil
}
