package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"bookscope/analyzer"
	"bookscope/config"
	"bookscope/models"
	"bookscope/pipeline"
	"bookscope/scraper"
	"bookscope/store"
)

// session holds the state that lives across menu selections within one
// run: the open store, the configuration, and the records from the most
// recent scrape. It is passed explicitly to each handler instead of
// sitting in package globals.
type session struct {
	cfg     *config.Config
	store   *store.Store
	metrics *scraper.Metrics
	books   []*models.Book
	in      *bufio.Scanner
	out     io.Writer
}

func newSession(cfg *config.Config, db *store.Store, metrics *scraper.Metrics, in io.Reader, out io.Writer) *session {
	return &session{
		cfg:     cfg,
		store:   db,
		metrics: metrics,
		in:      bufio.NewScanner(in),
		out:     out,
	}
}

// Run drives the interactive menu until the user exits or input ends.
func (s *session) Run(ctx context.Context) {
	fmt.Fprintln(s.out, "===== Book Catalog Explorer =====")

	for {
		if ctx.Err() != nil {
			fmt.Fprintln(s.out, "Interrupted, exiting.")
			return
		}

		choice, ok := s.prompt(menuText)
		if !ok {
			return
		}

		switch strings.TrimSpace(choice) {
		case "1":
			s.handleScrape(ctx)
		case "2":
			s.handleStats()
		case "3":
			s.handleBestValue()
		case "4":
			s.handleLookup(ctx)
		case "5":
			s.handleCharts()
		case "6":
			fmt.Fprintln(s.out, "Goodbye.")
			return
		case "7":
			s.handleExport()
		default:
			fmt.Fprintln(s.out, "Invalid choice, enter a number between 1 and 7.")
		}
	}
}

const menuText = `
1. Scrape books
2. View statistics
3. Find best value books
4. Look up book by ID
5. Render charts
6. Exit
7. Export CSV
Enter your choice (1-7): `

func (s *session) prompt(text string) (string, bool) {
	fmt.Fprint(s.out, text)
	if !s.in.Scan() {
		return "", false
	}
	return s.in.Text(), true
}

func (s *session) handleScrape(ctx context.Context) {
	fmt.Fprintln(s.out, "\n--- Scraping books ---")

	jsonWriter, err := pipeline.NewJSONWriter(s.cfg.JSONPath())
	if err != nil {
		fmt.Fprintf(s.out, "Cannot create JSON output: %v\n", err)
		return
	}
	writer := pipeline.NewDualWriter(jsonWriter, pipeline.NewStoreWriter(ctx, s.store))

	sc, err := scraper.NewScraperWithMetrics(s.cfg, s.metrics)
	if err != nil {
		fmt.Fprintf(s.out, "Cannot initialise scraper: %v\n", err)
		writer.Close()
		return
	}

	collector := &collectingWriter{next: writer}
	p := pipeline.NewPipeline(ctx, collector, s.cfg)
	p.Start(s.cfg.Parallelism)
	if s.cfg.Verbose {
		p.StartMetricsReporting(10 * time.Second)
	}

	start := time.Now()
	result, err := sc.Run(ctx, p)
	if err != nil {
		slog.Error("scraping failed", slog.Any("error", err))
		fmt.Fprintf(s.out, "Scrape failed: %v\n", err)
		p.Close()
		writer.Close()
		return
	}

	if err := p.Close(); err != nil {
		slog.Error("pipeline shutdown failed", slog.Any("error", err))
		fmt.Fprintf(s.out, "Pipeline shutdown failed: %v\n", err)
		writer.Close()
		return
	}
	if err := writer.Validate(); err != nil {
		fmt.Fprintf(s.out, "Output validation: %v\n", err)
	}
	if err := writer.Close(); err != nil {
		fmt.Fprintf(s.out, "Closing outputs: %v\n", err)
	}

	s.books = collector.All()
	s.printScrapeSummary(result, p.GetMetrics(), writer.Inserted(), time.Since(start))
}

// collectingWriter keeps the processed records for the session while
// forwarding them to the real sinks. Pipeline workers flush batches
// concurrently, so the slice is mutex-guarded like the other writers.
type collectingWriter struct {
	next pipeline.OutputWriter

	mu    sync.Mutex
	books []*models.Book
}

func (cw *collectingWriter) Write(books []*models.Book) error {
	cw.mu.Lock()
	cw.books = append(cw.books, books...)
	cw.mu.Unlock()
	return cw.next.Write(books)
}

func (cw *collectingWriter) Close() error {
	return nil
}

func (cw *collectingWriter) Validate() error {
	return nil
}

func (cw *collectingWriter) All() []*models.Book {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	return cw.books
}

func (s *session) printScrapeSummary(result *models.ScrapeResult, metrics map[string]interface{}, inserted int, duration time.Duration) {
	processed := int64(0)
	if v, ok := metrics["processed_books"].(int64); ok {
		processed = v
	}

	separator := "--------------------------------------------------"
	fmt.Fprintln(s.out, "\n"+separator)
	fmt.Fprintln(s.out, "Scrape complete")
	fmt.Fprintf(s.out, "  Books scraped:  %d\n", processed)
	fmt.Fprintf(s.out, "  New in store:   %d\n", inserted)
	fmt.Fprintf(s.out, "  Pages visited:  %d\n", result.PageCount+1)
	fmt.Fprintf(s.out, "  Requests:       %d\n", result.RequestCount)
	fmt.Fprintf(s.out, "  Errors:         %d\n", result.ErrorCount)
	fmt.Fprintf(s.out, "  Retries:        %d\n", result.RetryCount)
	if len(result.FailedURLs) > 0 {
		fmt.Fprintf(s.out, "  Failed URLs:    %d\n", len(result.FailedURLs))
	}
	if len(result.ErrorsByType) > 0 {
		fmt.Fprintf(s.out, "  Error types:    %v\n", result.ErrorsByType)
	}
	if rejected, ok := metrics["validation_errors"].(map[string]int); ok && len(rejected) > 0 {
		fmt.Fprintf(s.out, "  Skipped:        %v\n", rejected)
	}
	fmt.Fprintf(s.out, "  Duration:       %v\n", duration.Round(time.Millisecond))
	fmt.Fprintf(s.out, "  JSON file:      %s\n", s.cfg.JSONPath())
	fmt.Fprintf(s.out, "  Database:       %s\n", s.cfg.DatabasePath())
	fmt.Fprintln(s.out, separator)
}

// loadAnalyzer prefers the records from this session's scrape, then the
// store, then the JSON file.
func (s *session) loadAnalyzer() (*analyzer.Analyzer, error) {
	if len(s.books) > 0 {
		return analyzer.New(s.books), nil
	}

	ctx := context.Background()
	if count, err := s.store.Count(ctx); err == nil && count > 0 {
		return analyzer.FromStore(ctx, s.store)
	}

	a, err := analyzer.FromJSONFile(s.cfg.JSONPath())
	if err != nil || a.Len() == 0 {
		return nil, analyzer.ErrNoData
	}
	return a, nil
}

func (s *session) requireAnalyzer() *analyzer.Analyzer {
	a, err := s.loadAnalyzer()
	if err != nil {
		fmt.Fprintln(s.out, "No data loaded. Scrape books first (option 1).")
		return nil
	}
	return a
}

func (s *session) handleStats() {
	fmt.Fprintln(s.out, "\n--- Book statistics ---")
	a := s.requireAnalyzer()
	if a == nil {
		return
	}

	stats, err := a.Stats()
	if err != nil {
		fmt.Fprintf(s.out, "Cannot compute statistics: %v\n", err)
		return
	}

	t := newTable(s.out)
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRows([]table.Row{
		{"Total books", stats.TotalBooks},
		{"Average price", fmt.Sprintf("£%.2f", stats.AvgPrice)},
		{"Cheapest", fmt.Sprintf("£%.2f", stats.MinPrice)},
		{"Most expensive", fmt.Sprintf("£%.2f", stats.MaxPrice)},
		{"Average rating", fmt.Sprintf("%.2f", stats.AvgRating)},
		{"Lowest rating", stats.MinRating},
		{"Highest rating", stats.MaxRating},
	})
	t.Render()
}

func (s *session) handleBestValue() {
	fmt.Fprintln(s.out, "\n--- Best value books ---")
	a := s.requireAnalyzer()
	if a == nil {
		return
	}

	input, ok := s.prompt("Enter minimum rating (1-5): ")
	if !ok {
		return
	}
	minRating, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil || minRating < 1 || minRating > 5 {
		fmt.Fprintln(s.out, "Rating must be a number between 1 and 5.")
		return
	}

	ranked := a.BestValue(minRating, s.cfg.TopN)
	if len(ranked) == 0 {
		fmt.Fprintf(s.out, "No books found with rating %d or higher.\n", minRating)
		return
	}

	t := newTable(s.out)
	t.AppendHeader(table.Row{"#", "Title", "Price", "Rating"})
	for i, book := range ranked {
		t.AppendRow(table.Row{i + 1, book.Title, fmt.Sprintf("£%.2f", book.PriceValue), book.Rating})
	}
	t.Render()
}

func (s *session) handleLookup(ctx context.Context) {
	fmt.Fprintln(s.out, "\n--- Look up book by ID ---")

	input, ok := s.prompt("Enter the book ID: ")
	if !ok {
		return
	}
	id, err := strconv.ParseInt(strings.TrimSpace(input), 10, 64)
	if err != nil {
		fmt.Fprintln(s.out, "The ID must be a number.")
		return
	}

	book, err := s.store.GetByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		fmt.Fprintf(s.out, "No book found with ID %d.\n", id)
		return
	}
	if err != nil {
		fmt.Fprintf(s.out, "Lookup failed: %v\n", err)
		return
	}

	t := newTable(s.out)
	t.AppendHeader(table.Row{"Field", "Value"})
	t.AppendRows([]table.Row{
		{"ID", book.ID},
		{"Title", book.Title},
		{"Price", fmt.Sprintf("£%.2f", book.PriceValue)},
		{"Rating", fmt.Sprintf("%d stars", book.Rating)},
		{"Availability", book.Availability},
		{"URL", book.URL},
	})
	t.Render()
}

func (s *session) handleCharts() {
	fmt.Fprintln(s.out, "\n--- Charts ---")
	a := s.requireAnalyzer()
	if a == nil {
		return
	}

	choice, ok := s.prompt(`1. Price vs rating scatter
2. Rating distribution
3. Price distribution
4. Average price by rating
Enter your choice (1-4): `)
	if !ok {
		return
	}

	path, err := renderChart(a, strings.TrimSpace(choice), s.cfg.DataDir)
	if err != nil {
		fmt.Fprintf(s.out, "%v\n", err)
		return
	}
	fmt.Fprintf(s.out, "Chart written to %s\n", path)
}

func (s *session) handleExport() {
	fmt.Fprintln(s.out, "\n--- Export CSV ---")
	a := s.requireAnalyzer()
	if a == nil {
		return
	}

	writer, err := pipeline.NewCSVWriter(s.cfg.CSVPath())
	if err != nil {
		fmt.Fprintf(s.out, "Cannot create CSV file: %v\n", err)
		return
	}
	if err := writer.Write(a.Books()); err != nil {
		fmt.Fprintf(s.out, "CSV export failed: %v\n", err)
		writer.Close()
		return
	}
	if err := writer.Close(); err != nil {
		fmt.Fprintf(s.out, "Closing CSV file: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "Exported %d books to %s\n", a.Len(), s.cfg.CSVPath())
}

func newTable(out io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(out)
	return t
}

func chartPath(dataDir, name string) string {
	return filepath.Join(dataDir, name)
}
