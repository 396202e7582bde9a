package services

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"vehicle-etl/models"
	"vehicle-etl/rules"
)

// ReportPrinter renders a QualityReport for the terminal or as JSON.
type ReportPrinter struct {
	out    io.Writer
	colour bool
}

// NewReportPrinter writes to out. colour enables ANSI headings.
func NewReportPrinter(out io.Writer, colour bool) *ReportPrinter {
	return &ReportPrinter{out: out, colour: colour}
}

func (p *ReportPrinter) heading(s string) string {
	if !p.colour {
		return s
	}
	return "\033[1;35m" + s + "\033[0m"
}

// PrintJSON writes the report with its stable snake_case field names.
func (p *ReportPrinter) PrintJSON(r *models.QualityReport) error {
	enc := json.NewEncoder(p.out)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// Print writes the human-readable quality report.
func (p *ReportPrinter) Print(r *models.QualityReport) {
	sep := strings.Repeat("═", 54)

	fmt.Fprintf(p.out, "\n%s\n", p.heading(sep))
	fmt.Fprintf(p.out, "%s\n", p.heading("  VEHICLE ETL QUALITY REPORT"))
	fmt.Fprintf(p.out, "%s\n\n", p.heading(sep))

	mode := string(r.Mode)
	if r.Mode == models.ModeIncremental {
		mode = fmt.Sprintf("%s (last %dh)", mode, r.LookbackHours)
	}
	overview := [][]string{
		{"Run", r.RunID},
		{"Mode", mode},
		{"Duration", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()},
		{"Input records", strconv.Itoa(r.InputCount)},
		{"Output records", strconv.Itoa(r.OutputCount)},
		{"Rejected", fmt.Sprintf("%d (%.1f%%)", r.RejectedCount, r.RejectionRate*100)},
		{"Duplicates", strconv.Itoa(r.DuplicateCount)},
		{"Suppressed values", strconv.Itoa(r.SuppressedCount)},
		{"Unmatched vocabulary", strconv.Itoa(r.UnmatchedCount)},
		{"Price flags", strconv.Itoa(r.PriceFlagCount)},
		{"Written / updated", fmt.Sprintf("%d / %d", r.Load.Written, r.Load.Updated)},
		{"Indexes ensured", strconv.Itoa(r.Load.IndexesRebuilt)},
		{"Rows in target", strconv.Itoa(r.TargetRows)},
	}
	if r.Anomalous {
		overview = append(overview, []string{"Status", "ANOMALOUS"})
	}
	fmt.Fprintln(p.out, renderTable("Overview", []string{"Metric", "Value"}, overview,
		[]columnAlignment{alignLeft, alignRight}))
	fmt.Fprintln(p.out)

	if len(r.MissingAfter) > 0 {
		rows := make([][]string, 0, len(TrackedFields))
		for _, field := range TrackedFields {
			rows = append(rows, []string{
				field,
				fmt.Sprintf("%.1f%%", r.MissingBefore[field]),
				fmt.Sprintf("%.1f%%", r.MissingAfter[field]),
			})
		}
		fmt.Fprintln(p.out, renderTable("Missing values", []string{"Field", "Before", "After"}, rows,
			[]columnAlignment{alignLeft, alignRight, alignRight}))
		fmt.Fprintln(p.out)
	}

	if len(r.BrandDistribution) > 0 {
		rows := make([][]string, 0, len(r.BrandDistribution))
		for _, bc := range r.BrandDistribution {
			rows = append(rows, []string{truncate(bc.Brand, 28), strconv.Itoa(bc.Count)})
		}
		fmt.Fprintln(p.out, renderTable("Top brands in target", []string{"Brand", "Listings"}, rows,
			[]columnAlignment{alignLeft, alignRight}))
		fmt.Fprintln(p.out)
	}

	var suppressed [][]string
	for _, d := range r.Diagnostics {
		if d.Kind == models.DiagSuppressed {
			suppressed = append(suppressed, []string{truncate(d.ListingID, 16), d.Field, d.Value, d.Message})
		}
	}
	if len(suppressed) > 0 {
		fmt.Fprintln(p.out, renderTable("Suppressed values", []string{"Listing", "Field", "Value", "Reason"}, suppressed,
			[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft}))
		fmt.Fprintln(p.out)
	}

	if len(r.Warnings) > 0 {
		fmt.Fprintln(p.out, p.heading("  Warnings"))
		for _, w := range r.Warnings {
			fmt.Fprintf(p.out, "  - %s\n", w)
		}
	}
	fmt.Fprintf(p.out, "\n%s\n\n", p.heading(sep))
}

// PrintCatalog lists the effective vocabulary, bounds and luxury set.
func PrintCatalog(out io.Writer, cat *rules.Catalog) {
	entries := cat.Entries()
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{e.Table, e.Source, e.Target})
	}
	fmt.Fprintln(out, renderTable("Vocabulary", []string{"Table", "Token", "Canonical"}, rows, nil))
	fmt.Fprintln(out)

	fmt.Fprintln(out, renderTable("Bounds", []string{"Rule", "Accepted"}, [][]string{
		{"year", cat.YearBounds(time.Now()).String()},
		{"mileage", cat.MileageBounds().String()},
		{"engine_cc", cat.EngineBounds().String()},
		{"exchange_rate", cat.ExchangeBand().String()},
		{"price_usd (warning)", cat.PriceUSDBounds().String()},
		{"price_colones (warning)", cat.PriceLocalBounds().String()},
		{"luxury brands", strings.Join(cat.LuxuryBrands(), ", ")},
	}, nil))
}

// truncate shortens s to at most max runes.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
