package storage

import (
	"database/sql"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"vehicle-etl/models"
	"vehicle-etl/utils"
)

// rawSchema mirrors the scraper's vehicles table, including the columns the
// pipeline never reads.
const rawSchema = `
	CREATE TABLE vehicles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT UNIQUE,
		vehicle_id TEXT,
		brand TEXT,
		model TEXT,
		year INTEGER,
		price_colones INTEGER,
		price_usd INTEGER,
		mileage INTEGER,
		fuel_type TEXT,
		transmission TEXT,
		engine_cc INTEGER,
		doors INTEGER,
		style TEXT,
		color_exterior TEXT,
		color_interior TEXT,
		location TEXT,
		province TEXT,
		seller_phone TEXT,
		seller_whatsapp TEXT,
		description TEXT,
		features TEXT,
		images TEXT,
		scraped_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`

type rawRow struct {
	id        string
	brand     string
	year      any
	colones   any
	usd       any
	scrapedAt time.Time
}

func newRawDB(t *testing.T, rows ...rawRow) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vehicles_raw.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(rawSchema)
	require.NoError(t, err)
	for _, r := range rows {
		_, err := db.Exec(`
			INSERT INTO vehicles (url, vehicle_id, brand, model, year, price_colones, price_usd,
				mileage, fuel_type, transmission, engine_cc, doors, style, color_exterior,
				color_interior, location, province, seller_phone, seller_whatsapp, description,
				features, images, scraped_at)
			VALUES (?, ?, ?, '', ?, ?, ?, NULL, 'gasolina', 'manual', 1800, NULL, '', 'negro',
				'gris', '', '', '8888-8888', '', '', '', '', ?)`,
			"https://crautos.com/autosusados/cardetail.cfm?c="+r.id, r.id, r.brand,
			r.year, r.colones, r.usd, r.scrapedAt.UTC().Format("2006-01-02 15:04:05"))
		require.NoError(t, err)
	}
	return path
}

func quietLogger() *utils.Logger {
	return utils.NewLoggerTo(io.Discard)
}

func strp(s string) *string   { return &s }
func intp(n int) *int         { return &n }
func i64p(n int64) *int64     { return &n }
func f64p(f float64) *float64 { return &f }

func cleanListing(id, brand string, usd int64) *models.CleanListing {
	return &models.CleanListing{
		ID:             id,
		URL:            "https://crautos.com/autosusados/cardetail.cfm?c=" + id,
		Brand:          strp(brand),
		Year:           intp(2018),
		PriceLocal:     i64p(usd * 520),
		PriceSecondary: i64p(usd),
		FuelType:       strp("Gasoline"),
		ExchangeRate:   f64p(520),
		VehicleAge:     intp(8),
		PricePerYear:   f64p(float64(usd) / 8),
		IsLuxury:       brand == "BMW",
		ScrapedAt:      time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC),
	}
}
