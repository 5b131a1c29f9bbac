// Package models defines the data structures shared across the application.
package models

import "time"

// Book is one catalog record. Price holds the raw scraped string until the
// pipeline parses it into PriceValue; Rating is the numeric form of
// RatingText. ID is assigned by the SQLite store on insert and never
// appears in the JSON file.
type Book struct {
	ID           int64     `json:"-" csv:"id"`
	Title        string    `json:"title" csv:"title"`
	Price        string    `json:"-" csv:"price_raw"`
	PriceValue   float64   `json:"price" csv:"price"`
	RatingText   string    `json:"-" csv:"rating_word"`
	Rating       int       `json:"rating" csv:"rating"`
	Availability string    `json:"availability" csv:"availability"`
	ImageURL     string    `json:"-" csv:"image_url"`
	URL          string    `json:"-" csv:"url"`
	ScrapedAt    time.Time `json:"-" csv:"scraped_at"`
}

// ScrapeResult holds the overall result of one scrape run.
type ScrapeResult struct {
	StartTime    time.Time
	EndTime      time.Time
	TotalCount   int
	ErrorCount   int
	FailedURLs   []string
	ErrorsByType map[string]int
	RetryCount   int
	RequestCount int
	PageCount    int
}
