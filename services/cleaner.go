package services

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"vehicle-etl/models"
	"vehicle-etl/rules"
	"vehicle-etl/utils"
)

var (
	// phoneJunkRegexp matches everything a stored phone may not contain.
	phoneJunkRegexp = regexp.MustCompile(`[^\d-]`)
	// digitsRegexp strips a phone down to its digits.
	digitsRegexp = regexp.MustCompile(`\D`)
)

// placeholders are scraper fillers that mean "no value".
var placeholders = map[string]struct{}{
	"-":               {},
	"--":              {},
	"n/a":             {},
	"na":              {},
	"null":            {},
	"none":            {},
	"nan":             {},
	"sin especificar": {},
	"no especificado": {},
	"no indica":       {},
}

// cleanState carries one record through the rule steps.
type cleanState struct {
	raw   *models.RawListing
	out   *models.CleanListing
	now   time.Time
	diags []models.Diagnostic
}

func (s *cleanState) note(field string, kind models.DiagnosticKind, value, format string, args ...any) {
	s.diags = append(s.diags, models.Diagnostic{
		ListingID: s.raw.ID,
		Field:     field,
		Kind:      kind,
		Value:     value,
		Message:   fmt.Sprintf(format, args...),
	})
}

// step is one rule applied to a record. A non-nil error rejects the record.
type step struct {
	name  string
	apply func(*Cleaner, *cleanState) error
}

// steps run in this order; later steps see the output of earlier ones.
var steps = []step{
	{"null_placeholders", (*Cleaner).nullPlaceholders},
	{"suppress_out_of_range", (*Cleaner).suppressOutOfRange},
	{"require_identity", (*Cleaner).requireIdentity},
	{"standardize_vocabulary", (*Cleaner).standardizeVocabulary},
	{"derive_features", (*Cleaner).deriveFeatures},
}

// Cleaner transforms RawListings into clean, validated CleanListings.
type Cleaner struct {
	logger *utils.Logger
	rules  *rules.Catalog
	now    func() time.Time
}

// NewCleaner creates a Cleaner with the given logger and rule catalog.
func NewCleaner(logger *utils.Logger, catalog *rules.Catalog) *Cleaner {
	return &Cleaner{logger: logger, rules: catalog, now: time.Now}
}

// Clean applies every rule step to one raw listing. The raw listing is never
// modified. A rejected listing returns a nil CleanListing and an
// ErrRecordRejected, along with the diagnostics gathered so far.
func (c *Cleaner) Clean(raw models.RawListing) (*models.CleanListing, []models.Diagnostic, error) {
	return c.clean(&raw, c.now())
}

func (c *Cleaner) clean(raw *models.RawListing, now time.Time) (*models.CleanListing, []models.Diagnostic, error) {
	st := &cleanState{raw: raw, out: &models.CleanListing{}, now: now}
	for _, s := range steps {
		if err := s.apply(c, st); err != nil {
			st.note("", models.DiagRejected, "", "%s: %v", s.name, err)
			return nil, st.diags, err
		}
	}
	return st.out, st.diags, nil
}

// BatchResult is the output of cleaning a whole extraction.
type BatchResult struct {
	Listings    []*models.CleanListing
	Diagnostics []models.Diagnostic
	Input       int
	Rejected    int
	Duplicates  int
	Suppressed  int
	Unmatched   int
}

// CleanBatch cleans every raw listing. Rejections never stop the batch. When
// the same identifier appears twice the first occurrence wins.
func (c *Cleaner) CleanBatch(raw []models.RawListing) *BatchResult {
	now := c.now()
	seen := utils.NewIDSet()
	res := &BatchResult{
		Listings: make([]*models.CleanListing, 0, len(raw)),
		Input:    len(raw),
	}

	for i := range raw {
		listing, diags, err := c.clean(&raw[i], now)
		res.Diagnostics = append(res.Diagnostics, diags...)
		for _, d := range diags {
			c.logger.Debug("[cleaner] %s %s %s=%q: %s", d.ListingID, d.Kind, d.Field, d.Value, d.Message)
			switch d.Kind {
			case models.DiagSuppressed:
				res.Suppressed++
			case models.DiagUnmatched:
				res.Unmatched++
			}
		}
		if err != nil {
			res.Rejected++
			c.logger.Debug("[cleaner] Rejected %v", err)
			continue
		}

		if !seen.Add(listing.ID) {
			res.Duplicates++
			res.Diagnostics = append(res.Diagnostics, models.Diagnostic{
				ListingID: listing.ID,
				Field:     "vehicle_id",
				Kind:      models.DiagDuplicateID,
				Message:   "duplicate identifier in batch, keeping first occurrence",
			})
			c.logger.Debug("[cleaner] Duplicate vehicle_id skipped: %s", listing.ID)
			continue
		}
		res.Listings = append(res.Listings, listing)
	}

	c.logger.Info("[cleaner] Cleaned %d → %d listings (rejected %d, duplicates %d, suppressed %d values)",
		res.Input, len(res.Listings), res.Rejected, res.Duplicates, res.Suppressed)
	return res
}

// nullPlaceholders copies the raw record into the output, turning empty text,
// placeholder text and sentinel zeros into nil.
func (c *Cleaner) nullPlaceholders(st *cleanState) error {
	r, out := st.raw, st.out

	out.ID = normaliseText(r.ID)
	out.URL = normaliseText(r.URL)
	out.ScrapedAt = r.ScrapedAt

	text := func(field, v string) *string {
		s := normaliseText(v)
		if s == "" {
			return nil
		}
		if _, ok := placeholders[strings.ToLower(s)]; ok {
			st.note(field, models.DiagNulled, s, "placeholder text")
			return nil
		}
		return &s
	}
	out.Brand = text("brand", r.Brand)
	out.Model = text("model", r.Model)
	out.FuelType = text("fuel_type", r.FuelType)
	out.ColorExterior = text("color_exterior", r.ColorExterior)
	out.ColorInterior = text("color_interior", r.ColorInterior)
	out.Transmission = text("transmission", r.Transmission)
	out.SellerPhone = text("seller_phone", r.SellerPhone)
	out.SellerWhatsapp = text("seller_whatsapp", r.SellerWhatsapp)
	out.Description = text("description", r.Description)

	out.Year = copyInt(r.Year)
	out.EngineCC = copyInt(r.EngineCC)
	out.Mileage = copyInt(r.Mileage)
	if out.Mileage != nil && *out.Mileage == 0 {
		st.note("mileage", models.DiagNulled, "0", "zero mileage treated as missing")
		out.Mileage = nil
	}

	out.PriceLocal = copyInt64(r.PriceLocal)
	if out.PriceLocal != nil && *out.PriceLocal == 0 {
		st.note("price_colones", models.DiagNulled, "0", "zero price treated as missing")
		out.PriceLocal = nil
	}
	out.PriceSecondary = copyInt64(r.PriceSecondary)
	if out.PriceSecondary != nil && *out.PriceSecondary == 0 {
		st.note("price_usd", models.DiagNulled, "0", "zero price treated as missing")
		out.PriceSecondary = nil
	}
	return nil
}

// suppressOutOfRange nulls values outside their plausibility bounds.
func (c *Cleaner) suppressOutOfRange(st *cleanState) error {
	out := st.out

	out.Year = suppressInt(st, "year", out.Year, c.rules.YearBounds(st.now))
	out.Mileage = suppressInt(st, "mileage", out.Mileage, c.rules.MileageBounds())
	out.EngineCC = suppressInt(st, "engine_cc", out.EngineCC, c.rules.EngineBounds())

	if out.PriceLocal != nil && *out.PriceLocal < 0 {
		st.note("price_colones", models.DiagSuppressed, strconv.FormatInt(*out.PriceLocal, 10), "negative price")
		out.PriceLocal = nil
	}
	if out.PriceSecondary != nil && *out.PriceSecondary < 0 {
		st.note("price_usd", models.DiagSuppressed, strconv.FormatInt(*out.PriceSecondary, 10), "negative price")
		out.PriceSecondary = nil
	}
	return nil
}

func suppressInt(st *cleanState, field string, v *int, b rules.Bounds) *int {
	if v == nil || b.Contains(*v) {
		return v
	}
	st.note(field, models.DiagSuppressed, strconv.Itoa(*v), "outside plausible range %s", b)
	return nil
}

// requireIdentity rejects records without an identifier or without any price.
func (c *Cleaner) requireIdentity(st *cleanState) error {
	if st.out.ID == "" {
		return models.ErrRecordRejected{ListingID: st.raw.URL, Reason: "missing vehicle_id"}
	}
	if st.out.PriceLocal == nil && st.out.PriceSecondary == nil {
		return models.ErrRecordRejected{ListingID: st.out.ID, Reason: "missing both price fields"}
	}
	return nil
}

// standardizeVocabulary canonicalises brand and translates fuel, colour and
// transmission tokens. Unmatched tokens pass through and are flagged.
func (c *Cleaner) standardizeVocabulary(st *cleanState) error {
	out := st.out

	if out.Brand != nil {
		brand, _ := c.rules.CanonicalBrand(*out.Brand)
		out.Brand = &brand
	}
	if out.Model != nil {
		model := strings.ToUpper(*out.Model)
		if out.Brand != nil && *out.Brand == "Mercedes-Benz" {
			model = strings.TrimSpace(strings.TrimPrefix(model, "BENZ "))
		}
		out.Model = &model
	}

	out.FuelType = c.translate(st, "fuel_type", out.FuelType, c.rules.TranslateFuel)
	out.ColorExterior = c.translate(st, "color_exterior", out.ColorExterior, c.rules.TranslateColor)
	out.ColorInterior = c.translate(st, "color_interior", out.ColorInterior, c.rules.TranslateColor)
	out.Transmission = c.translate(st, "transmission", out.Transmission, c.rules.TranslateTransmission)

	out.SellerPhone = formatPhone(st, "seller_phone", out.SellerPhone)
	out.SellerWhatsapp = formatPhone(st, "seller_whatsapp", out.SellerWhatsapp)
	return nil
}

func (c *Cleaner) translate(st *cleanState, field string, v *string, fn func(string) (string, bool)) *string {
	if v == nil {
		return nil
	}
	got, matched := fn(*v)
	if !matched {
		st.note(field, models.DiagUnmatched, *v, "no translation for %q", *v)
	}
	if got == "" {
		return nil
	}
	return &got
}

// formatPhone rewrites Costa Rican numbers as NNNN-NNNN, dropping a 506
// country prefix. Other numbers keep only digits and dashes.
func formatPhone(st *cleanState, field string, v *string) *string {
	if v == nil {
		return nil
	}
	digits := digitsRegexp.ReplaceAllString(*v, "")
	if len(digits) == 11 && strings.HasPrefix(digits, "506") {
		digits = digits[3:]
	}
	if len(digits) == 8 {
		s := digits[:4] + "-" + digits[4:]
		return &s
	}
	if digits == "" {
		st.note(field, models.DiagNulled, *v, "no digits in phone")
		return nil
	}
	s := strings.Trim(phoneJunkRegexp.ReplaceAllString(*v, ""), "-")
	return &s
}

// deriveFeatures computes vehicle age, price per year, luxury flag, exchange
// rate and price flag from the standardised record.
func (c *Cleaner) deriveFeatures(st *cleanState) error {
	out := st.out

	out.VehicleAge = nil
	out.PricePerYear = nil
	if out.Year != nil {
		age := st.now.Year() - *out.Year
		if age < 0 {
			age = 0 // next model year
		}
		out.VehicleAge = &age

		if price, ok := referencePrice(out); ok {
			ppy := round2(price / float64(max(age, 1)))
			out.PricePerYear = &ppy
		}
	}

	out.IsLuxury = out.Brand != nil && c.rules.IsLuxury(*out.Brand)

	out.ExchangeRate = nil
	out.PriceFlag = false
	if out.PriceLocal != nil && out.PriceSecondary != nil && *out.PriceLocal > 0 && *out.PriceSecondary > 0 {
		rate := float64(*out.PriceLocal) / float64(*out.PriceSecondary)
		out.ExchangeRate = &rate
		out.PriceFlag = !c.rules.ExchangeBand().Contains(rate)
	}
	return nil
}

// referencePrice prefers the USD price and falls back to colones.
func referencePrice(l *models.CleanListing) (float64, bool) {
	if l.PriceSecondary != nil {
		return float64(*l.PriceSecondary), true
	}
	if l.PriceLocal != nil {
		return float64(*l.PriceLocal), true
	}
	return 0, false
}

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
func normaliseText(s string) string {
	s = strings.TrimSpace(s)
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r)
	})
	return strings.Join(fields, " ")
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	n := *v
	return &n
}

func copyInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	n := *v
	return &n
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
