// Package analyzer computes summary statistics and rankings over a loaded
// record set.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"bookscope/models"
	"bookscope/pipeline"
	"bookscope/store"
)

// ErrNoData is returned when an aggregate is requested over an empty
// record set. Averages over nothing are an error, never zero.
var ErrNoData = errors.New("no book data loaded")

// Stats summarises the loaded record set.
type Stats struct {
	TotalBooks int
	AvgPrice   float64
	MinPrice   float64
	MaxPrice   float64
	AvgRating  float64
	MinRating  int
	MaxRating  int
}

// Analyzer holds an in-memory record set loaded from a scrape run, the
// store, or the JSON file.
type Analyzer struct {
	books []*models.Book
}

// New builds an analyzer over an in-memory record set.
func New(books []*models.Book) *Analyzer {
	return &Analyzer{books: books}
}

// FromStore loads all rows from the SQLite store.
func FromStore(ctx context.Context, s *store.Store) (*Analyzer, error) {
	books, err := s.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load from store: %w", err)
	}
	return New(books), nil
}

// FromJSONFile loads the record set from a previously written JSON array.
func FromJSONFile(path string) (*Analyzer, error) {
	books, err := pipeline.ReadJSONFile(path)
	if err != nil {
		return nil, fmt.Errorf("load from json: %w", err)
	}
	return New(books), nil
}

// Len returns the number of loaded records.
func (a *Analyzer) Len() int {
	return len(a.books)
}

// Books returns the loaded record set.
func (a *Analyzer) Books() []*models.Book {
	return a.books
}

// Stats computes count, price mean/min/max, and rating mean/min/max.
func (a *Analyzer) Stats() (Stats, error) {
	if len(a.books) == 0 {
		return Stats{}, ErrNoData
	}

	stats := Stats{
		TotalBooks: len(a.books),
		MinPrice:   a.books[0].PriceValue,
		MaxPrice:   a.books[0].PriceValue,
		MinRating:  a.books[0].Rating,
		MaxRating:  a.books[0].Rating,
	}

	var priceSum, ratingSum float64
	for _, book := range a.books {
		priceSum += book.PriceValue
		ratingSum += float64(book.Rating)
		if book.PriceValue < stats.MinPrice {
			stats.MinPrice = book.PriceValue
		}
		if book.PriceValue > stats.MaxPrice {
			stats.MaxPrice = book.PriceValue
		}
		if book.Rating < stats.MinRating {
			stats.MinRating = book.Rating
		}
		if book.Rating > stats.MaxRating {
			stats.MaxRating = book.Rating
		}
	}

	stats.AvgPrice = priceSum / float64(len(a.books))
	stats.AvgRating = ratingSum / float64(len(a.books))
	return stats, nil
}

// BestValue ranks books with rating >= minRating by rating descending then
// price ascending, and returns the top n. The tie-break order is fixed:
// rating first, then price.
func (a *Analyzer) BestValue(minRating, n int) []*models.Book {
	ranked := make([]*models.Book, 0, len(a.books))
	for _, book := range a.books {
		if book.Rating >= minRating {
			ranked = append(ranked, book)
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Rating != ranked[j].Rating {
			return ranked[i].Rating > ranked[j].Rating
		}
		return ranked[i].PriceValue < ranked[j].PriceValue
	})

	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// RatingCounts returns the number of books per star rating.
func (a *Analyzer) RatingCounts() map[int]int {
	counts := make(map[int]int)
	for _, book := range a.books {
		counts[book.Rating]++
	}
	return counts
}

// AvgPriceByRating returns the mean price per star rating.
func (a *Analyzer) AvgPriceByRating() map[int]float64 {
	sums := make(map[int]float64)
	counts := make(map[int]int)
	for _, book := range a.books {
		sums[book.Rating] += book.PriceValue
		counts[book.Rating]++
	}

	averages := make(map[int]float64, len(sums))
	for rating, sum := range sums {
		averages[rating] = sum / float64(counts[rating])
	}
	return averages
}

// Prices returns every loaded price, for the price histogram.
func (a *Analyzer) Prices() []float64 {
	prices := make([]float64, len(a.books))
	for i, book := range a.books {
		prices[i] = book.PriceValue
	}
	return prices
}
