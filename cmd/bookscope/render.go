package main

import (
	"fmt"

	"bookscope/analyzer"
	"bookscope/charts"
)

const priceHistogramBins = 20

// renderChart maps a chart submenu choice to its renderer and returns the
// written file path.
func renderChart(a *analyzer.Analyzer, choice, dataDir string) (string, error) {
	switch choice {
	case "1":
		path := chartPath(dataDir, "price_vs_rating.html")
		if err := charts.RenderPriceVsRating(a.Books(), path); err != nil {
			return "", fmt.Errorf("render scatter: %w", err)
		}
		return path, nil
	case "2":
		path := chartPath(dataDir, "rating_distribution.html")
		if err := charts.RenderRatingDistribution(a.RatingCounts(), path); err != nil {
			return "", fmt.Errorf("render rating distribution: %w", err)
		}
		return path, nil
	case "3":
		path := chartPath(dataDir, "price_distribution.html")
		if err := charts.RenderPriceDistribution(a.Prices(), priceHistogramBins, path); err != nil {
			return "", fmt.Errorf("render price distribution: %w", err)
		}
		return path, nil
	case "4":
		path := chartPath(dataDir, "avg_price_by_rating.html")
		if err := charts.RenderAvgPriceByRating(a.AvgPriceByRating(), path); err != nil {
			return "", fmt.Errorf("render average price: %w", err)
		}
		return path, nil
	default:
		return "", fmt.Errorf("invalid chart choice %q", choice)
	}
}
