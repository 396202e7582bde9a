package services

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"vehicle-etl/models"
	"vehicle-etl/rules"
	"vehicle-etl/utils"
)

// TrackedFields are the columns whose missing-rate is reported before and
// after cleaning. The names match the target store columns.
var TrackedFields = []string{
	"brand", "model", "year", "price_colones", "price_usd", "mileage",
	"fuel_type", "engine_cc", "color_exterior", "color_interior", "transmission",
}

// ValidatorOptions configures batch-level thresholds.
type ValidatorOptions struct {
	// RejectionThreshold is the rejected/input ratio above which a batch is
	// flagged as anomalous.
	RejectionThreshold float64
	// MaxMissingPercent triggers a warning for any tracked field missing more often.
	MaxMissingPercent float64
}

// ValidationResult is the validator's contribution to the quality report.
type ValidationResult struct {
	MissingRate    map[string]float64
	PriceFlagCount int
	RejectionRate  float64
	Anomalous      bool
	Warnings       []string
}

// Validator runs stateless batch checks over cleaned listings.
type Validator struct {
	logger *utils.Logger
	rules  *rules.Catalog
	opts   ValidatorOptions
	now    func() time.Time
}

// NewValidator creates a Validator.
func NewValidator(logger *utils.Logger, catalog *rules.Catalog, opts ValidatorOptions) *Validator {
	if opts.RejectionThreshold <= 0 {
		opts.RejectionThreshold = 0.5
	}
	if opts.MaxMissingPercent <= 0 {
		opts.MaxMissingPercent = 50
	}
	return &Validator{logger: logger, rules: catalog, opts: opts, now: time.Now}
}

// Validate checks a cleaned batch. input and rejected are the cleaner's counts
// for the same batch. Any breach of a cleaner invariant is returned as an
// ErrConsistencyViolation; everything else becomes a warning.
func (v *Validator) Validate(batch []*models.CleanListing, input, rejected int) (*ValidationResult, error) {
	res := &ValidationResult{MissingRate: missingClean(batch)}

	// The threshold applies to the exact ratio; only the reported value is rounded.
	var rate float64
	if input > 0 {
		rate = float64(rejected) / float64(input)
		res.RejectionRate = round4(rate)
	}
	if rate > v.opts.RejectionThreshold {
		res.Anomalous = true
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"rejection rate %.2f%% exceeds threshold %.1f%%: possible scraper regression",
			rate*100, v.opts.RejectionThreshold*100))
	}

	for _, field := range TrackedFields {
		if rate := res.MissingRate[field]; rate > v.opts.MaxMissingPercent {
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s missing in %.1f%% of records", field, rate))
		}
	}

	var violations []string
	seen := utils.NewIDSet()
	years := v.rules.YearBounds(v.now())
	usd, crc := v.rules.PriceUSDBounds(), v.rules.PriceLocalBounds()
	band := v.rules.ExchangeBand()
	var usdOut, crcOut int

	for _, l := range batch {
		if l.PriceFlag {
			res.PriceFlagCount++
		}
		if !seen.Add(l.ID) {
			violations = append(violations, fmt.Sprintf("duplicate vehicle_id %q", l.ID))
		}
		violations = append(violations, checkListing(l, years, v.rules, band)...)

		if l.PriceSecondary != nil && !usd.Contains(int(*l.PriceSecondary)) {
			usdOut++
		}
		if l.PriceLocal != nil && !crc.Contains(int(*l.PriceLocal)) {
			crcOut++
		}
	}

	if usdOut > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("price_usd has %d values outside %s", usdOut, usd))
	}
	if crcOut > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("price_colones has %d values outside %s", crcOut, crc))
	}
	if res.PriceFlagCount > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"%d records have an exchange rate outside %s", res.PriceFlagCount, band))
	}

	for _, w := range res.Warnings {
		v.logger.Warn("[validator] %s", w)
	}
	if len(violations) > 0 {
		for _, msg := range violations {
			v.logger.Error("[validator] %s", msg)
		}
		return res, models.ErrConsistencyViolation{Violations: violations}
	}
	return res, nil
}

func checkListing(l *models.CleanListing, years rules.Bounds, cat *rules.Catalog, band rules.Band) []string {
	var out []string
	bad := func(format string, args ...any) {
		out = append(out, fmt.Sprintf("%s: ", l.ID)+fmt.Sprintf(format, args...))
	}

	if l.ID == "" {
		bad("empty vehicle_id")
	}
	if l.Year != nil && !years.Contains(*l.Year) {
		bad("year %d outside %s", *l.Year, years)
	}
	if l.Mileage != nil && !cat.MileageBounds().Contains(*l.Mileage) {
		bad("mileage %d outside %s", *l.Mileage, cat.MileageBounds())
	}
	if l.EngineCC != nil && !cat.EngineBounds().Contains(*l.EngineCC) {
		bad("engine_cc %d outside %s", *l.EngineCC, cat.EngineBounds())
	}
	if l.PriceLocal != nil && *l.PriceLocal <= 0 {
		bad("non-positive price_colones %d", *l.PriceLocal)
	}
	if l.PriceSecondary != nil && *l.PriceSecondary <= 0 {
		bad("non-positive price_usd %d", *l.PriceSecondary)
	}
	if l.PriceLocal == nil && l.PriceSecondary == nil {
		bad("no price survived cleaning")
	}
	if (l.ExchangeRate != nil && !band.Contains(*l.ExchangeRate)) != l.PriceFlag {
		bad("price_flag %v inconsistent with exchange_rate", l.PriceFlag)
	}
	if isLux := l.Brand != nil && cat.IsLuxury(*l.Brand); isLux != l.IsLuxury {
		bad("is_luxury %v inconsistent with brand", l.IsLuxury)
	}
	for field, s := range map[string]*string{
		"brand": l.Brand, "model": l.Model, "fuel_type": l.FuelType,
		"color_exterior": l.ColorExterior, "color_interior": l.ColorInterior,
		"transmission": l.Transmission,
	} {
		if s != nil && strings.TrimSpace(*s) == "" {
			bad("%s is empty text instead of null", field)
		}
	}
	sort.Strings(out)
	return out
}

func missingClean(batch []*models.CleanListing) map[string]float64 {
	counts := make(map[string]int, len(TrackedFields))
	for _, l := range batch {
		for field, missing := range map[string]bool{
			"brand":          l.Brand == nil,
			"model":          l.Model == nil,
			"year":           l.Year == nil,
			"price_colones":  l.PriceLocal == nil,
			"price_usd":      l.PriceSecondary == nil,
			"mileage":        l.Mileage == nil,
			"fuel_type":      l.FuelType == nil,
			"engine_cc":      l.EngineCC == nil,
			"color_exterior": l.ColorExterior == nil,
			"color_interior": l.ColorInterior == nil,
			"transmission":   l.Transmission == nil,
		} {
			if missing {
				counts[field]++
			}
		}
	}
	return toPercent(counts, len(batch))
}

// MissingRaw computes the missing-rate of the tracked fields on raw input,
// counting nil numbers and blank text as missing.
func MissingRaw(raw []models.RawListing) map[string]float64 {
	blank := func(s string) bool { return strings.TrimSpace(s) == "" }
	counts := make(map[string]int, len(TrackedFields))
	for i := range raw {
		r := &raw[i]
		for field, missing := range map[string]bool{
			"brand":          blank(r.Brand),
			"model":          blank(r.Model),
			"year":           r.Year == nil,
			"price_colones":  r.PriceLocal == nil,
			"price_usd":      r.PriceSecondary == nil,
			"mileage":        r.Mileage == nil,
			"fuel_type":      blank(r.FuelType),
			"engine_cc":      r.EngineCC == nil,
			"color_exterior": blank(r.ColorExterior),
			"color_interior": blank(r.ColorInterior),
			"transmission":   blank(r.Transmission),
		} {
			if missing {
				counts[field]++
			}
		}
	}
	return toPercent(counts, len(raw))
}

func toPercent(counts map[string]int, total int) map[string]float64 {
	out := make(map[string]float64, len(TrackedFields))
	for _, field := range TrackedFields {
		if total == 0 {
			out[field] = 0
			continue
		}
		out[field] = round2(float64(counts[field]) * 100 / float64(total))
	}
	return out
}

func round4(f float64) float64 {
	return math.Round(f*10000) / 10000
}
