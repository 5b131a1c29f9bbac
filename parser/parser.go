// Package parser holds the pure field-cleaning functions applied to raw
// scraped records.
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"bookscope/models"
)

// UnknownAvailability is substituted when the source markup carries no
// availability text.
const UnknownAvailability = "Unknown"

var ratingWords = map[string]int{
	"One":   1,
	"Two":   2,
	"Three": 3,
	"Four":  4,
	"Five":  5,
}

// ValidateBook ensures the scraper captured the required raw fields.
func ValidateBook(b *models.Book) error {
	if b == nil {
		return fmt.Errorf("book is nil")
	}
	if strings.TrimSpace(b.Title) == "" {
		return fmt.Errorf("book missing title")
	}
	if strings.TrimSpace(b.Price) == "" {
		return fmt.Errorf("book missing price for %s", b.Title)
	}
	if strings.TrimSpace(b.RatingText) == "" {
		return fmt.Errorf("book missing rating for %s", b.Title)
	}
	return nil
}

// ParsePrice strips the currency symbol and any encoding artifacts from a
// scraped price string and parses the remainder as a float. Anything that
// is not an ASCII digit or a decimal point is dropped, so mangled input
// such as "Â£51.77" still parses. A string with no parseable number left
// is an error.
func ParsePrice(price string) (float64, error) {
	var cleaned strings.Builder
	for _, r := range price {
		if (r >= '0' && r <= '9') || r == '.' {
			cleaned.WriteRune(r)
		}
	}

	value, err := strconv.ParseFloat(cleaned.String(), 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable price %q", price)
	}
	if value < 0 {
		return 0, fmt.Errorf("negative price %q", price)
	}
	return value, nil
}

// RatingFromWord converts the word-form star rating to its numeric value.
// Unmapped words are an error, never a default rating.
func RatingFromWord(word string) (int, error) {
	value, ok := ratingWords[strings.TrimSpace(word)]
	if !ok {
		return 0, fmt.Errorf("unknown rating word %q", word)
	}
	return value, nil
}

// NormalizeAvailability trims the availability text, substituting a fixed
// fallback when the field is missing from the source.
func NormalizeAvailability(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return UnknownAvailability
	}
	return text
}
