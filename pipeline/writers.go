package pipeline

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"bookscope/models"
)

// JSONWriter maintains the full record set and rewrites the output file
// wholesale on every flush, so the file is always a single JSON array and
// a fresh run replaces any prior content.
type JSONWriter struct {
	file  *os.File
	books []*models.Book
	mu    sync.Mutex
}

// NewJSONWriter truncates and opens the JSON output file.
func NewJSONWriter(filename string) (*JSONWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create json file: %w", err)
	}

	return &JSONWriter{file: f}, nil
}

// Write appends books to the in-memory set and rewrites the array.
func (jw *JSONWriter) Write(books []*models.Book) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	jw.books = append(jw.books, books...)
	return jw.flushLocked()
}

func (jw *JSONWriter) flushLocked() error {
	if err := jw.file.Truncate(0); err != nil {
		return fmt.Errorf("truncate json file: %w", err)
	}
	if _, err := jw.file.Seek(0, 0); err != nil {
		return fmt.Errorf("rewind json file: %w", err)
	}

	encoder := json.NewEncoder(jw.file)
	encoder.SetIndent("", "    ")
	if err := encoder.Encode(jw.books); err != nil {
		return fmt.Errorf("encode json array: %w", err)
	}
	return nil
}

// Close writes the final array and closes the file.
func (jw *JSONWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if err := jw.flushLocked(); err != nil {
		jw.file.Close()
		return err
	}
	return jw.file.Close()
}

// Validate ensures the JSON file holds at least one record.
func (jw *JSONWriter) Validate() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if len(jw.books) == 0 {
		return fmt.Errorf("json file has no records")
	}
	return nil
}

// ReadJSONFile loads a previously written JSON array back into memory.
func ReadJSONFile(filename string) ([]*models.Book, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read json file: %w", err)
	}

	var books []*models.Book
	if err := json.Unmarshal(data, &books); err != nil {
		return nil, fmt.Errorf("decode json file: %w", err)
	}
	return books, nil
}

// CSVWriter writes records to CSV with a header row.
type CSVWriter struct {
	file   *os.File
	writer *csv.Writer
	mu     sync.Mutex
}

// NewCSVWriter initialises a CSV writer and writes the header row.
func NewCSVWriter(filename string) (*CSVWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create csv file: %w", err)
	}

	writer := csv.NewWriter(f)
	header := []string{"id", "title", "price", "rating", "availability", "url", "scraped_at"}
	if err := writer.Write(header); err != nil {
		f.Close()
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		f.Close()
		return nil, fmt.Errorf("flush csv header: %w", err)
	}

	return &CSVWriter{
		file:   f,
		writer: writer,
	}, nil
}

// Write appends books to the CSV output.
func (cw *CSVWriter) Write(books []*models.Book) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	for _, book := range books {
		record := []string{
			strconv.FormatInt(book.ID, 10),
			book.Title,
			strconv.FormatFloat(book.PriceValue, 'f', 2, 64),
			strconv.Itoa(book.Rating),
			book.Availability,
			book.URL,
			book.ScrapedAt.Format(time.RFC3339),
		}
		if err := cw.writer.Write(record); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}
	return nil
}

// Close flushes and closes the file handle.
func (cw *CSVWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv writer: %w", err)
	}
	return cw.file.Close()
}

// Validate ensures the file has content besides the header.
func (cw *CSVWriter) Validate() error {
	info, err := cw.file.Stat()
	if err != nil {
		return fmt.Errorf("stat csv file: %w", err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("csv file is empty")
	}
	return nil
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
