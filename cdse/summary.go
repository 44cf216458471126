package cdse

import (
	"math"
	"sort"
	"time"

	"github.com/example/go-cdse/cdse/model"
)

// ProductSummary is the normalized view of one catalogue record. Summaries
// are immutable once created.
type ProductSummary struct {
	Name string
	// Acquisition is the parsed sensing start; zero when the record carries
	// no parsable ContentDate.Start.
	Acquisition time.Time
	// Datetime preserves the original ISO string from the record.
	Datetime  string
	Online    bool
	SizeBytes int64
	// SizeMB is SizeBytes/1048576 rounded to two decimals, 0 when unknown.
	SizeMB float64
	// S3Path is the object-storage location, empty when the record has none.
	S3Path string
}

// Summarize normalizes raw records into summaries sorted ascending by
// acquisition time. Records without a parsable acquisition time sort first.
func Summarize(products []model.Product) []ProductSummary {
	summaries := make([]ProductSummary, 0, len(products))
	for _, product := range products {
		summaries = append(summaries, summarize(product))
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].Acquisition.Before(summaries[j].Acquisition)
	})
	return summaries
}

func summarize(product model.Product) ProductSummary {
	start := product.ContentDate.Start

	s3Path, ok := product.StringAttribute("S3Path")
	if !ok || s3Path == "" {
		s3Path = product.S3Path
	}

	size := product.ContentLength
	sizeMB := 0.0
	if size > 0 {
		sizeMB = math.Round(float64(size)/(1024*1024)*100) / 100
	}

	return ProductSummary{
		Name:        product.Name,
		Acquisition: parseTime(start),
		Datetime:    start,
		Online:      product.Online,
		SizeBytes:   size,
		SizeMB:      sizeMB,
		S3Path:      s3Path,
	}
}

// SummaryStats aggregates a normalized result set for display.
type SummaryStats struct {
	Count       int
	TotalBytes  int64
	OnlineCount int
	// Earliest and Latest span the known acquisition times; both are zero
	// when no summary carries one.
	Earliest time.Time
	Latest   time.Time
}

// Stats computes aggregate statistics over the summaries.
func Stats(summaries []ProductSummary) SummaryStats {
	stats := SummaryStats{Count: len(summaries)}
	for _, summary := range summaries {
		stats.TotalBytes += summary.SizeBytes
		if summary.Online {
			stats.OnlineCount++
		}
		if summary.Acquisition.IsZero() {
			continue
		}
		if stats.Earliest.IsZero() || summary.Acquisition.Before(stats.Earliest) {
			stats.Earliest = summary.Acquisition
		}
		if stats.Latest.IsZero() || summary.Acquisition.After(stats.Latest) {
			stats.Latest = summary.Acquisition
		}
	}
	return stats
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	layouts := []string{
		time.RFC3339,
		time.RFC3339Nano,
		"2006-01-02T15:04:05.000Z",
		// Some records omit the zone designator entirely; treat them as UTC.
		"2006-01-02T15:04:05",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}
