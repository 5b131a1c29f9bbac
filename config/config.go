package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"time"
)

// Config holds scraper, pipeline, and storage configuration.
type Config struct {
	BaseURL          string
	MaxPages         int
	Parallelism      int
	Delay            time.Duration
	RandomDelay      time.Duration
	Timeout          time.Duration
	MaxRetries       int
	RetryBackoff     time.Duration
	RetryBackoffMax  time.Duration
	UserAgent        string
	RespectRobotsTxt bool

	DataDir      string
	JSONFile     string
	DatabaseFile string
	CSVFile      string

	PipelineBufferSize int
	BatchSize          int
	DedupeMaxSize      int

	TopN        int
	MetricsAddr string
	Verbose     bool
}

// DefaultConfig returns conservative defaults for the demo target.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:            "https://books.toscrape.com",
		MaxPages:           50,
		Parallelism:        16,
		Delay:              0,
		RandomDelay:        0,
		Timeout:            10 * time.Second,
		MaxRetries:         2,
		RetryBackoff:       200 * time.Millisecond,
		RetryBackoffMax:    2 * time.Second,
		UserAgent:          "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
		RespectRobotsTxt:   false,
		DataDir:            "scraped_data",
		JSONFile:           "books_data.json",
		DatabaseFile:       "books_database.db",
		CSVFile:            "books_export.csv",
		PipelineBufferSize: 512,
		BatchSize:          64,
		DedupeMaxSize:      10000,
		TopN:               5,
		MetricsAddr:        "",
		Verbose:            false,
	}
}

// JSONPath returns the JSON sink location under the data directory.
func (c *Config) JSONPath() string {
	return filepath.Join(c.DataDir, c.JSONFile)
}

// DatabasePath returns the SQLite database location under the data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, c.DatabaseFile)
}

// CSVPath returns the CSV export location under the data directory.
func (c *Config) CSVPath() string {
	return filepath.Join(c.DataDir, c.CSVFile)
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}

	if c.MaxPages <= 0 {
		return fmt.Errorf("max pages must be positive")
	}
	if c.Parallelism <= 0 {
		return fmt.Errorf("parallelism must be positive")
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay cannot be negative")
	}
	if c.RandomDelay < 0 {
		return fmt.Errorf("random delay cannot be negative")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data directory cannot be empty")
	}
	if c.JSONFile == "" {
		return fmt.Errorf("JSON file name cannot be empty")
	}
	if c.DatabaseFile == "" {
		return fmt.Errorf("database file name cannot be empty")
	}
	if c.CSVFile == "" {
		return fmt.Errorf("CSV file name cannot be empty")
	}
	if c.PipelineBufferSize <= 0 {
		return fmt.Errorf("pipeline buffer size must be positive")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}
	if c.DedupeMaxSize <= 0 {
		return fmt.Errorf("dedupe max size must be positive")
	}
	if c.TopN <= 0 {
		return fmt.Errorf("top N must be positive")
	}

	return nil
}
