package services

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"vehicle-etl/models"
	"vehicle-etl/rules"
)

func sampleReport() *models.QualityReport {
	return &models.QualityReport{
		RunID:           "run-1",
		Mode:            models.ModeIncremental,
		LookbackHours:   24,
		StartedAt:       fixedNow,
		FinishedAt:      fixedNow.Add(1500 * time.Millisecond),
		InputCount:      10,
		OutputCount:     1,
		RejectedCount:   9,
		RejectionRate:   0.9,
		Anomalous:       true,
		MissingBefore:   map[string]float64{"mileage": 40},
		MissingAfter:    map[string]float64{"mileage": 0},
		Warnings:        []string{"rejection rate 90.0% exceeds threshold 50.0%"},
		Load:            models.LoadResult{Written: 1, IndexesRebuilt: 6},
		TargetRows:      120,
		PriceFlagCount:  2,
		SuppressedCount: 1,
		Diagnostics: []models.Diagnostic{
			{ListingID: "A1", Field: "year", Kind: models.DiagSuppressed, Value: "1890", Message: "outside plausible range [1950, 2027]"},
			{ListingID: "A1", Field: "fuel_type", Kind: models.DiagUnmatched, Value: "plasma", Message: `no translation for "plasma"`},
		},
		BrandDistribution: []models.BrandCount{
			{Brand: "Toyota", Count: 80},
			{Brand: "Mercedes-Benz", Count: 40},
		},
	}
}

func TestReportPrint(t *testing.T) {
	var buf bytes.Buffer
	NewReportPrinter(&buf, false).Print(sampleReport())
	out := buf.String()

	for _, want := range []string{
		"VEHICLE ETL QUALITY REPORT",
		"incremental (last 24h)",
		"9 (90.0%)",
		"ANOMALOUS",
		"Mercedes-Benz",
		"40.0%",
		"exceeds threshold",
		"Suppressed values",
		"1890",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report output missing %q", want)
		}
	}
	if strings.Contains(out, "\033[") {
		t.Errorf("colour disabled but output contains ANSI escapes")
	}
}

func TestTruncateKeepsRunesIntact(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"Toyota", 28, "Toyota"},
		{"Citroën", 7, "Citroën"},
		{"Škoda Škoda Škoda", 8, "Škoda..."},
		{"Автоваз Лада", 10, "Автоваз..."},
	}
	for _, tt := range tests {
		got := truncate(tt.in, tt.max)
		if got != tt.want {
			t.Errorf("truncate(%q, %d) = %q; want %q", tt.in, tt.max, got, tt.want)
		}
		if !utf8.ValidString(got) {
			t.Errorf("truncate(%q, %d) produced invalid UTF-8 %q", tt.in, tt.max, got)
		}
	}
}

func TestReportPrintJSONUsesStableNames(t *testing.T) {
	var buf bytes.Buffer
	if err := NewReportPrinter(&buf, false).PrintJSON(sampleReport()); err != nil {
		t.Fatalf("PrintJSON: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	for _, key := range []string{"run_id", "mode", "input_count", "rejection_rate", "anomalous", "missing_after", "diagnostics", "load"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("JSON report missing key %q", key)
		}
	}
	load := decoded["load"].(map[string]any)
	if load["indexes_rebuilt"] != float64(6) {
		t.Errorf("load.indexes_rebuilt = %v; want 6", load["indexes_rebuilt"])
	}
}

func TestCompare(t *testing.T) {
	c := newTestCleaner()
	raw := []models.RawListing{rawListing("1"), rawListing("2"), rawListing("3")}
	raw[1].Brand = "TOYOTA"
	raw[2].Brand = "bmw"
	raw[2].Mileage = nil
	batch := c.CleanBatch(raw)

	cmp := Compare(raw, batch.Listings)
	if cmp.RawRecords != 3 || cmp.CleanRecords != 3 {
		t.Errorf("records = %d/%d; want 3/3", cmp.RawRecords, cmp.CleanRecords)
	}
	if cmp.RawBrands != 3 || cmp.CleanBrands != 2 {
		t.Errorf("brands = %d -> %d; want 3 -> 2", cmp.RawBrands, cmp.CleanBrands)
	}
	if cmp.Derived["vehicle_age"] != 3 || cmp.Derived["is_luxury"] != 1 {
		t.Errorf("derived = %v", cmp.Derived)
	}

	var buf bytes.Buffer
	PrintComparison(&buf, cmp)
	if !strings.Contains(buf.String(), "price_per_year") {
		t.Errorf("comparison output missing derived features:\n%s", buf.String())
	}
}

func TestPrintCatalog(t *testing.T) {
	var buf bytes.Buffer
	PrintCatalog(&buf, rules.Default())
	out := buf.String()
	for _, want := range []string{"Mercedes-Benz", "Gasoline", "exchange_rate", "Porsche"} {
		if !strings.Contains(out, want) {
			t.Errorf("catalog output missing %q", want)
		}
	}
}
