// Package charts renders the analyzer's aggregations as self-contained
// HTML chart files.
package charts

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"bookscope/models"
)

// RenderPriceVsRating writes a price-vs-rating scatter chart.
func RenderPriceVsRating(books []*models.Book, filename string) error {
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title: "Price vs Rating",
		}),
		charts.WithTooltipOpts(opts.Tooltip{
			Show: opts.Bool(true),
		}),
		charts.WithXAxisOpts(opts.XAxis{
			Type: "value",
			Name: "Price",
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Type: "value",
			Name: "Rating",
		}),
	)

	points := make([]opts.ScatterData, 0, len(books))
	for _, book := range books {
		points = append(points, opts.ScatterData{
			Value:      []interface{}{book.PriceValue, book.Rating},
			SymbolSize: 8,
		})
	}
	scatter.AddSeries("Books", points)

	return renderPage(scatter, filename)
}

// RenderRatingDistribution writes a bar chart of book counts per rating.
func RenderRatingDistribution(counts map[int]int, filename string) error {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title: "Number of Books by Rating",
		}),
		charts.WithTooltipOpts(opts.Tooltip{
			Show: opts.Bool(true),
		}),
		charts.WithXAxisOpts(opts.XAxis{
			Name: "Rating",
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Name: "Count",
		}),
	)

	labels := make([]string, 0, 5)
	values := make([]opts.BarData, 0, 5)
	for rating := 1; rating <= 5; rating++ {
		labels = append(labels, fmt.Sprintf("%d star", rating))
		values = append(values, opts.BarData{Value: counts[rating]})
	}
	bar.SetXAxis(labels).AddSeries("Books", values)

	return renderPage(bar, filename)
}

// RenderAvgPriceByRating writes a bar chart of mean price per rating.
func RenderAvgPriceByRating(averages map[int]float64, filename string) error {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title: "Average Price by Rating",
		}),
		charts.WithTooltipOpts(opts.Tooltip{
			Show: opts.Bool(true),
		}),
		charts.WithXAxisOpts(opts.XAxis{
			Name: "Rating",
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Name: "Average price",
		}),
	)

	ratings := make([]int, 0, len(averages))
	for rating := range averages {
		ratings = append(ratings, rating)
	}
	sort.Ints(ratings)

	labels := make([]string, 0, len(ratings))
	values := make([]opts.BarData, 0, len(ratings))
	for _, rating := range ratings {
		labels = append(labels, fmt.Sprintf("%d star", rating))
		values = append(values, opts.BarData{Value: math.Round(averages[rating]*100) / 100})
	}
	bar.SetXAxis(labels).AddSeries("Average price", values)

	return renderPage(bar, filename)
}

// RenderPriceDistribution buckets prices into fixed-width bins and writes
// a histogram-style bar chart.
func RenderPriceDistribution(prices []float64, bins int, filename string) error {
	if bins <= 0 {
		bins = 20
	}

	labels, values := bucketPrices(prices, bins)

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title: "Distribution of Book Prices",
		}),
		charts.WithTooltipOpts(opts.Tooltip{
			Show: opts.Bool(true),
		}),
		charts.WithXAxisOpts(opts.XAxis{
			Name: "Price",
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Name: "Number of books",
		}),
	)

	barValues := make([]opts.BarData, len(values))
	for i, v := range values {
		barValues[i] = opts.BarData{Value: v}
	}
	bar.SetXAxis(labels).AddSeries("Books", barValues)

	return renderPage(bar, filename)
}

// bucketPrices splits the price range into equal-width bins. The last bin
// is closed on both ends so the maximum price lands inside it.
func bucketPrices(prices []float64, bins int) ([]string, []int) {
	if len(prices) == 0 {
		return nil, nil
	}

	min, max := prices[0], prices[0]
	for _, p := range prices {
		if p < min {
			min = p
		}
		if p > max {
			max = p
		}
	}

	if min == max {
		return []string{fmt.Sprintf("%.2f", min)}, []int{len(prices)}
	}

	width := (max - min) / float64(bins)
	counts := make([]int, bins)
	for _, p := range prices {
		idx := int((p - min) / width)
		if idx >= bins {
			idx = bins - 1
		}
		counts[idx]++
	}

	labels := make([]string, bins)
	for i := range labels {
		lo := min + float64(i)*width
		labels[i] = fmt.Sprintf("%.2f-%.2f", lo, lo+width)
	}
	return labels, counts
}

func renderPage(chart components.Charter, filename string) error {
	if dir := filepath.Dir(filename); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create chart directory %q: %w", dir, err)
		}
	}

	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("create chart file: %w", err)
	}
	defer f.Close()

	page := components.NewPage()
	page.AddCharts(chart)
	if err := page.Render(f); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}
