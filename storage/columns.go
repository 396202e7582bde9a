package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"vehicle-etl/models"
)

const cleanTable = "vehicles_clean"

// cleanColumns is the column order used for inserts, selects and CSV export.
var cleanColumns = []string{
	"vehicle_id", "url", "brand", "model", "year", "price_colones", "price_usd",
	"mileage", "fuel_type", "transmission", "engine_cc", "color_exterior",
	"color_interior", "seller_phone", "seller_whatsapp", "description",
	"exchange_rate", "price_flag", "vehicle_age", "price_per_year", "is_luxury",
	"scraped_at", "loaded_at",
}

// indexedColumns get a secondary index after every batch.
var indexedColumns = []string{"brand", "year", "price_usd", "fuel_type", "is_luxury", "scraped_at"}

func indexStatements() []string {
	stmts := make([]string, 0, len(indexedColumns))
	for _, col := range indexedColumns {
		stmts = append(stmts, fmt.Sprintf(
			"CREATE INDEX IF NOT EXISTS idx_%s_%s ON %s(%s)", cleanTable, col, cleanTable, col))
	}
	return stmts
}

// updateAssignments renders "col = EXCLUDED.col" for every non-key column.
func updateAssignments() string {
	parts := make([]string, 0, len(cleanColumns)-1)
	for _, col := range cleanColumns[1:] {
		parts = append(parts, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
	}
	return strings.Join(parts, ", ")
}

func listingArgs(l *models.CleanListing, loadedAt time.Time) []any {
	return []any{
		l.ID, l.URL, nullString(l.Brand), nullString(l.Model), nullInt(l.Year),
		nullInt64(l.PriceLocal), nullInt64(l.PriceSecondary), nullInt(l.Mileage),
		nullString(l.FuelType), nullString(l.Transmission), nullInt(l.EngineCC),
		nullString(l.ColorExterior), nullString(l.ColorInterior),
		nullString(l.SellerPhone), nullString(l.SellerWhatsapp), nullString(l.Description),
		nullFloat(l.ExchangeRate), l.PriceFlag, nullInt(l.VehicleAge),
		nullFloat(l.PricePerYear), l.IsLuxury, l.ScrapedAt.UTC(), loadedAt.UTC(),
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(row rowScanner) (*models.CleanListing, error) {
	var (
		l                                         models.CleanListing
		brand, model, fuel, trans, colExt, colInt sql.NullString
		phone, whatsapp, desc                     sql.NullString
		year, mileage, engine, age                sql.NullInt64
		priceLocal, priceUSD                      sql.NullInt64
		rate, ppy                                 sql.NullFloat64
	)
	if err := row.Scan(
		&l.ID, &l.URL, &brand, &model, &year, &priceLocal, &priceUSD,
		&mileage, &fuel, &trans, &engine, &colExt,
		&colInt, &phone, &whatsapp, &desc,
		&rate, &l.PriceFlag, &age, &ppy, &l.IsLuxury,
		&l.ScrapedAt, &l.LoadedAt,
	); err != nil {
		return nil, err
	}
	l.Brand, l.Model, l.FuelType = strPtr(brand), strPtr(model), strPtr(fuel)
	l.Transmission, l.ColorExterior, l.ColorInterior = strPtr(trans), strPtr(colExt), strPtr(colInt)
	l.SellerPhone, l.SellerWhatsapp, l.Description = strPtr(phone), strPtr(whatsapp), strPtr(desc)
	l.Year, l.Mileage, l.EngineCC, l.VehicleAge = intPtr(year), intPtr(mileage), intPtr(engine), intPtr(age)
	l.PriceLocal, l.PriceSecondary = int64Ptr(priceLocal), int64Ptr(priceUSD)
	l.ExchangeRate, l.PricePerYear = floatPtr(rate), floatPtr(ppy)
	return &l, nil
}

func nullString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return int64(*v)
}

func nullInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func strPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	return &v.Int64
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}
