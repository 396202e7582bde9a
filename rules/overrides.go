package rules

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Overrides is the TOML shape of a rules file. Every section is optional and is
// merged over the built-in defaults.
//
//	luxury_brands = ["BMW", "Audi", "Volvo"]
//	[exchange_rate]
//	min = 450
//	max = 560
//	[brands]
//	"toyta" = "Toyota"
type Overrides struct {
	LuxuryBrands  *[]string         `toml:"luxury_brands"`
	ExchangeRate  *Band             `toml:"exchange_rate"`
	MinYear       *int              `toml:"min_year"`
	MaxMileage    *int              `toml:"max_mileage"`
	EngineCC      *Bounds           `toml:"engine_cc"`
	Brands        map[string]string `toml:"brands"`
	FuelTypes     map[string]string `toml:"fuel_types"`
	Colors        map[string]string `toml:"colors"`
	Transmissions map[string]string `toml:"transmissions"`
}

// Load builds the catalog from the defaults plus an optional TOML rules file.
// An empty path returns the defaults.
func Load(path string) (*Catalog, error) {
	c := Default()
	path = strings.TrimSpace(path)
	if path == "" {
		return c, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rules: read %s: %w", path, err)
	}

	var o Overrides
	if err := toml.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("rules: parse %s: %w", path, err)
	}
	if err := c.apply(o); err != nil {
		return nil, fmt.Errorf("rules: %s: %w", path, err)
	}
	return c, nil
}

func (c *Catalog) apply(o Overrides) error {
	c.addVocabulary(c.brands, o.Brands)
	c.addVocabulary(c.fuels, o.FuelTypes)
	c.addVocabulary(c.colors, o.Colors)
	c.addVocabulary(c.transmissions, o.Transmissions)

	if o.ExchangeRate != nil {
		c.exchange = *o.ExchangeRate
	}
	if o.MinYear != nil {
		c.minYear = *o.MinYear
	}
	if o.MaxMileage != nil {
		c.mileage.Max = *o.MaxMileage
	}
	if o.EngineCC != nil {
		c.engineCC = *o.EngineCC
	}
	if o.LuxuryBrands != nil {
		if len(*o.LuxuryBrands) == 0 {
			return errors.New("luxury_brands must not be empty")
		}
		c.setLuxury(*o.LuxuryBrands)
	} else {
		// Re-canonicalise the defaults in case new brand spellings were added.
		c.setLuxury(c.LuxuryBrands())
	}
	return c.validate()
}

func (c *Catalog) validate() error {
	if c.exchange.Min <= 0 || c.exchange.Min >= c.exchange.Max {
		return fmt.Errorf("exchange_rate band %s is invalid", c.exchange)
	}
	if c.mileage.Max <= 0 {
		return fmt.Errorf("max_mileage %d must be positive", c.mileage.Max)
	}
	if c.engineCC.Min <= 0 || c.engineCC.Min >= c.engineCC.Max {
		return fmt.Errorf("engine_cc bounds %s are invalid", c.engineCC)
	}
	if c.minYear < 1886 {
		return fmt.Errorf("min_year %d predates the automobile", c.minYear)
	}
	return nil
}
