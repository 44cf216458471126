//go:build live

package cdse

import (
	"context"
	"strings"
	"testing"
	"time"
)

// Bolzano / South Tyrol, the reference region used throughout the docs.
var liveBBox = BoundingBox{
	West:  11.46309533,
	South: 46.28795898,
	East:  11.75355181,
	North: 46.40587491,
}

func TestLiveSearchSentinel2L2A(t *testing.T) {
	if testing.Short() {
		t.Skip("live search requires network access")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	cfg, ok := LookupProduct("sentinel2_l2a")
	if !ok {
		t.Fatalf("sentinel2_l2a config missing")
	}
	req := QueryRequest{
		Config: cfg,
		BBox:   liveBBox,
		Dates: DateRange{
			Start: time.Date(2020, 7, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2020, 7, 31, 0, 0, 0, 0, time.UTC),
		},
		Tile:       "T32TPS",
		MaxResults: 5,
	}

	var messages []string
	sink := ProgressFunc(func(message string) {
		messages = append(messages, message)
	})

	client := NewClient()
	products, err := client.Search(ctx, req, sink)
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if len(products) == 0 {
		t.Fatalf("expected products for %+v", req)
	}
	if len(products) > 5 {
		t.Fatalf("max results not honoured: %d", len(products))
	}
	if len(messages) == 0 {
		t.Fatalf("expected progress notifications")
	}

	summaries := Summarize(products)
	for i := 1; i < len(summaries); i++ {
		if summaries[i].Acquisition.Before(summaries[i-1].Acquisition) {
			t.Fatalf("summaries not sorted: %s before %s", summaries[i].Acquisition, summaries[i-1].Acquisition)
		}
	}
	for _, summary := range summaries {
		if !strings.Contains(summary.Name, "T32TPS") {
			t.Fatalf("expected tile in product name, got %q", summary.Name)
		}
		if summary.S3Path == "" {
			t.Fatalf("expected a storage path for %q", summary.Name)
		}
	}
}

func TestLiveSearchSentinel3OLCI(t *testing.T) {
	if testing.Short() {
		t.Skip("live search requires network access")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	cfg, ok := LookupProduct("sentinel3_olci_l1_efr")
	if !ok {
		t.Fatalf("sentinel3_olci_l1_efr config missing")
	}
	req := QueryRequest{
		Config: cfg,
		BBox:   liveBBox,
		Dates: DateRange{
			Start: time.Date(2020, 7, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2020, 7, 7, 0, 0, 0, 0, time.UTC),
		},
		MaxResults: 3,
	}

	client := NewClient()
	products, err := client.Search(ctx, req, nil)
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	for _, summary := range Summarize(products) {
		if !strings.Contains(summary.Name, "OL_1_EFR___") {
			t.Fatalf("expected OLCI EFR product, got %q", summary.Name)
		}
	}
}
