package pipeline

import (
	"fmt"
	"sync"

	"bookscope/models"
)

// DualWriter fans each batch out to the JSON file and the SQLite store.
// The two sinks are independent copies; a failure in one does not roll
// back the other.
type DualWriter struct {
	jsonWriter  *JSONWriter
	storeWriter *StoreWriter
	mu          sync.Mutex
}

// NewDualWriter combines a JSON file sink with a store sink.
func NewDualWriter(jsonWriter *JSONWriter, storeWriter *StoreWriter) *DualWriter {
	return &DualWriter{
		jsonWriter:  jsonWriter,
		storeWriter: storeWriter,
	}
}

// Write writes books to both sinks.
func (dw *DualWriter) Write(books []*models.Book) error {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	if err := dw.jsonWriter.Write(books); err != nil {
		return fmt.Errorf("json write failed: %w", err)
	}
	if err := dw.storeWriter.Write(books); err != nil {
		return fmt.Errorf("store write failed: %w", err)
	}
	return nil
}

// Close closes both sinks.
func (dw *DualWriter) Close() error {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	var errs []error
	if err := dw.jsonWriter.Close(); err != nil {
		errs = append(errs, fmt.Errorf("json close failed: %w", err))
	}
	if err := dw.storeWriter.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store close failed: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("multiple errors: %v", errs)
	}
	return nil
}

// Validate validates both sinks.
func (dw *DualWriter) Validate() error {
	var errs []error
	if err := dw.jsonWriter.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("json validation failed: %w", err))
	}
	if err := dw.storeWriter.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("store validation failed: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("validation errors: %v", errs)
	}
	return nil
}

// Inserted reports how many rows the store sink added this run.
func (dw *DualWriter) Inserted() int {
	return dw.storeWriter.Inserted()
}
