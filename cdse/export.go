package cdse

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatPaths renders export format A: one storage path per line, original
// order, summaries without a path skipped, no header or trailing newline.
func FormatPaths(summaries []ProductSummary) string {
	paths := make([]string, 0, len(summaries))
	for _, summary := range summaries {
		if summary.S3Path != "" {
			paths = append(paths, summary.S3Path)
		}
	}
	return strings.Join(paths, "\n")
}

// FormatDetailed renders export format B: an indexed block per product with
// date, size and path lines, blocks separated by a blank line.
func FormatDetailed(summaries []ProductSummary) string {
	var lines []string
	for i, summary := range summaries {
		date := "N/A"
		if !summary.Acquisition.IsZero() {
			date = summary.Acquisition.Format("2006-01-02 15:04:05")
		}
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, summary.Name))
		lines = append(lines, fmt.Sprintf("   Date: %s", date))
		lines = append(lines, fmt.Sprintf("   Size: %s MB", formatMB(summary.SizeMB)))
		if summary.S3Path != "" {
			lines = append(lines, fmt.Sprintf("   Path: %s", summary.S3Path))
		}
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

func formatMB(mb float64) string {
	return strconv.FormatFloat(mb, 'f', -1, 64)
}
