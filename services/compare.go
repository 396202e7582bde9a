package services

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"vehicle-etl/models"
)

// DerivedFeatures are the enrichment columns reported by Compare.
var DerivedFeatures = []string{"vehicle_age", "price_per_year", "is_luxury", "exchange_rate"}

// Comparison summarises what cleaning did to the raw store.
type Comparison struct {
	RawRecords    int
	CleanRecords  int
	RawBrands     int
	CleanBrands   int
	MissingBefore map[string]float64
	MissingAfter  map[string]float64
	// Derived counts the records with a value for each derived feature. For
	// is_luxury that is the number of luxury listings.
	Derived map[string]int
}

// Compare contrasts the raw source with the target store contents.
func Compare(raw []models.RawListing, clean []*models.CleanListing) *Comparison {
	c := &Comparison{
		RawRecords:    len(raw),
		CleanRecords:  len(clean),
		MissingBefore: MissingRaw(raw),
		MissingAfter:  missingClean(clean),
		Derived:       make(map[string]int, len(DerivedFeatures)),
	}

	rawBrands := make(map[string]struct{})
	for _, r := range raw {
		if b := strings.TrimSpace(r.Brand); b != "" {
			rawBrands[b] = struct{}{}
		}
	}
	c.RawBrands = len(rawBrands)

	cleanBrands := make(map[string]struct{})
	for _, l := range clean {
		if l.Brand != nil {
			cleanBrands[*l.Brand] = struct{}{}
		}
		if l.VehicleAge != nil {
			c.Derived["vehicle_age"]++
		}
		if l.PricePerYear != nil {
			c.Derived["price_per_year"]++
		}
		if l.IsLuxury {
			c.Derived["is_luxury"]++
		}
		if l.ExchangeRate != nil {
			c.Derived["exchange_rate"]++
		}
	}
	c.CleanBrands = len(cleanBrands)
	return c
}

// PrintComparison renders a Comparison as tables.
func PrintComparison(out io.Writer, c *Comparison) {
	fmt.Fprintln(out, renderTable("Raw vs clean", []string{"", "Raw", "Clean"}, [][]string{
		{"Records", strconv.Itoa(c.RawRecords), strconv.Itoa(c.CleanRecords)},
		{"Distinct brands", strconv.Itoa(c.RawBrands), strconv.Itoa(c.CleanBrands)},
	}, []columnAlignment{alignLeft, alignRight, alignRight}))
	fmt.Fprintln(out)

	rows := make([][]string, 0, len(TrackedFields))
	for _, field := range TrackedFields {
		rows = append(rows, []string{
			field,
			fmt.Sprintf("%.1f%%", c.MissingBefore[field]),
			fmt.Sprintf("%.1f%%", c.MissingAfter[field]),
		})
	}
	fmt.Fprintln(out, renderTable("Missing values", []string{"Field", "Raw", "Clean"}, rows,
		[]columnAlignment{alignLeft, alignRight, alignRight}))
	fmt.Fprintln(out)

	rows = rows[:0]
	for _, f := range DerivedFeatures {
		rows = append(rows, []string{f, strconv.Itoa(c.Derived[f])})
	}
	fmt.Fprintln(out, renderTable("Derived features", []string{"Feature", "Records with value"}, rows,
		[]columnAlignment{alignLeft, alignRight}))
}
