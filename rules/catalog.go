// Package rules holds the static standardisation tables the cleaner applies:
// brand canonicalisation, fuel/colour/transmission translation, the luxury
// brand set and the numeric plausibility bounds. A Catalog is built once at
// start-up and is read-only afterwards.
package rules

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const foldCacheSize = 2048

// Bounds is an inclusive integer range.
type Bounds struct {
	Min int `toml:"min"`
	Max int `toml:"max"`
}

// Contains reports whether v lies in [Min, Max].
func (b Bounds) Contains(v int) bool {
	return v >= b.Min && v <= b.Max
}

func (b Bounds) String() string {
	return fmt.Sprintf("[%d, %d]", b.Min, b.Max)
}

// Band is an inclusive float range, used for the accepted exchange rate.
type Band struct {
	Min float64 `toml:"min"`
	Max float64 `toml:"max"`
}

// Contains reports whether v lies in [Min, Max].
func (b Band) Contains(v float64) bool {
	return v >= b.Min && v <= b.Max
}

func (b Band) String() string {
	return fmt.Sprintf("[%g, %g]", b.Min, b.Max)
}

// Catalog is the immutable rule set shared by the cleaner and the validator.
type Catalog struct {
	brands         map[string]string
	fuels          map[string]string
	colors         map[string]string
	colorModifiers map[string]string
	transmissions  map[string]string
	luxury         map[string]struct{}

	exchange   Band
	minYear    int
	mileage    Bounds
	engineCC   Bounds
	priceUSD   Bounds
	priceLocal Bounds

	folds *lru.Cache[string, string]
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c := &Catalog{
		brands:         make(map[string]string),
		fuels:          make(map[string]string),
		colors:         make(map[string]string),
		colorModifiers: make(map[string]string),
		transmissions:  make(map[string]string),
		luxury:         make(map[string]struct{}),
		exchange:       Band{Min: defaultMinExchange, Max: defaultMaxExchange},
		minYear:        defaultMinYear,
		mileage:        Bounds{Min: 0, Max: defaultMaxMileage},
		engineCC:       Bounds{Min: defaultMinEngineCC, Max: defaultMaxEngineCC},
		priceUSD:       Bounds{Min: defaultMinPriceUSD, Max: defaultMaxPriceUSD},
		priceLocal:     Bounds{Min: defaultMinPriceLocal, Max: defaultMaxPriceLocal},
	}
	// lru.New only fails for a non-positive size.
	c.folds, _ = lru.New[string, string](foldCacheSize)

	c.addVocabulary(c.brands, defaultBrands)
	c.addVocabulary(c.fuels, defaultFuelTypes)
	c.addVocabulary(c.colors, defaultColors)
	c.addVocabulary(c.colorModifiers, defaultColorModifiers)
	c.addVocabulary(c.transmissions, defaultTransmissions)
	c.setLuxury(defaultLuxuryBrands)
	return c
}

// addVocabulary folds every key and also registers each canonical value as a
// key of itself so already-clean input is recognised as matched.
func (c *Catalog) addVocabulary(dst, src map[string]string) {
	for k, v := range src {
		dst[c.Fold(k)] = v
		dst[c.Fold(v)] = v
	}
}

func (c *Catalog) setLuxury(brands []string) {
	c.luxury = make(map[string]struct{}, len(brands))
	for _, b := range brands {
		canonical, _ := c.CanonicalBrand(b)
		c.luxury[canonical] = struct{}{}
	}
}

// Fold lower-cases s, strips diacritics, turns hyphens and underscores into
// spaces and collapses whitespace. Results are memoised.
func (c *Catalog) Fold(s string) string {
	if v, ok := c.folds.Get(s); ok {
		return v
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = strings.Map(func(r rune) rune {
		if r == '-' || r == '_' || r == '/' {
			return ' '
		}
		return unicode.ToLower(r)
	}, folded)
	folded = strings.Join(strings.Fields(folded), " ")
	c.folds.Add(s, folded)
	return folded
}

// CanonicalBrand maps a free-text brand to its canonical spelling. Unknown
// brands are title-cased and reported as unmatched.
func (c *Catalog) CanonicalBrand(s string) (string, bool) {
	key := c.Fold(s)
	if key == "" {
		return "", false
	}
	if v, ok := c.brands[key]; ok {
		return v, true
	}
	return titleCase(key), false
}

// TranslateFuel maps a fuel token to its canonical English name. Unmatched
// tokens are returned trimmed but otherwise unchanged.
func (c *Catalog) TranslateFuel(s string) (string, bool) {
	return translate(c.fuels, c.Fold(s), s)
}

// TranslateTransmission maps a transmission token to its canonical name.
func (c *Catalog) TranslateTransmission(s string) (string, bool) {
	return translate(c.transmissions, c.Fold(s), s)
}

// TranslateColor translates a colour phrase word by word. Known modifiers
// ("oscuro", "claro") are placed before the base colour. The phrase counts as
// matched when at least one base colour word was recognised.
func (c *Catalog) TranslateColor(s string) (string, bool) {
	key := c.Fold(s)
	if key == "" {
		return "", false
	}
	if v, ok := c.colors[key]; ok {
		return v, true
	}

	var mods, base []string
	matched := false
	for _, word := range strings.Fields(key) {
		if m, ok := c.colorModifiers[word]; ok {
			mods = append(mods, m)
			continue
		}
		if v, ok := c.colors[word]; ok {
			base = append(base, v)
			matched = true
			continue
		}
		base = append(base, titleCase(word))
	}
	if !matched {
		return strings.TrimSpace(s), false
	}
	return strings.Join(append(mods, base...), " "), true
}

func translate(dict map[string]string, key, original string) (string, bool) {
	if key == "" {
		return "", false
	}
	if v, ok := dict[key]; ok {
		return v, true
	}
	return strings.TrimSpace(original), false
}

// IsLuxury reports whether a canonical brand is in the luxury set.
func (c *Catalog) IsLuxury(brand string) bool {
	_, ok := c.luxury[brand]
	return ok
}

// ExchangeBand is the accepted local/secondary price ratio.
func (c *Catalog) ExchangeBand() Band { return c.exchange }

// YearBounds is [min year, current year + 1] relative to now.
func (c *Catalog) YearBounds(now time.Time) Bounds {
	return Bounds{Min: c.minYear, Max: now.Year() + 1}
}

func (c *Catalog) MileageBounds() Bounds    { return c.mileage }
func (c *Catalog) EngineBounds() Bounds     { return c.engineCC }
func (c *Catalog) PriceUSDBounds() Bounds   { return c.priceUSD }
func (c *Catalog) PriceLocalBounds() Bounds { return c.priceLocal }

// Entry is one printable vocabulary mapping.
type Entry struct {
	Table  string
	Source string
	Target string
}

// Entries lists every vocabulary mapping sorted by table and source token.
func (c *Catalog) Entries() []Entry {
	var out []Entry
	add := func(table string, m map[string]string) {
		for k, v := range m {
			out = append(out, Entry{Table: table, Source: k, Target: v})
		}
	}
	add("brand", c.brands)
	add("fuel", c.fuels)
	add("color", c.colors)
	add("color_modifier", c.colorModifiers)
	add("transmission", c.transmissions)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Table != out[j].Table {
			return out[i].Table < out[j].Table
		}
		return out[i].Source < out[j].Source
	})
	return out
}

// LuxuryBrands returns the luxury set in sorted order.
func (c *Catalog) LuxuryBrands() []string {
	out := make([]string, 0, len(c.luxury))
	for b := range c.luxury {
		out = append(out, b)
	}
	sort.Strings(out)
	return out
}

func titleCase(s string) string {
	return cases.Title(language.Und).String(s)
}
