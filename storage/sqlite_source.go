package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"vehicle-etl/models"
)

// rawColumns are the scraper columns the pipeline reads. doors, style,
// location, province and features are always empty upstream and are never
// selected.
const rawColumns = `vehicle_id, url, brand, model, year, price_colones, price_usd,
	mileage, fuel_type, transmission, engine_cc, color_exterior, color_interior,
	seller_phone, seller_whatsapp, description, scraped_at`

// sqliteTimeLayouts are the scraped_at spellings found in the raw store.
var sqliteTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// SQLiteSource reads raw listings from the scraper's SQLite database. The
// database is opened read-only on first use.
type SQLiteSource struct {
	path string
	db   *sql.DB
}

// NewSQLiteSource prepares a source for the database at path.
func NewSQLiteSource(path string) *SQLiteSource {
	return &SQLiteSource{path: path}
}

func (s *SQLiteSource) open(ctx context.Context) (*sql.DB, error) {
	if s.db != nil {
		return s.db, nil
	}
	if _, err := os.Stat(s.path); err != nil {
		return nil, fmt.Errorf("sqlite source: %w", err)
	}
	db, err := sql.Open("sqlite", "file:"+s.path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("sqlite source: open %s: %w", s.path, err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA query_only = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite source: %s: %w", s.path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite source: ping %s: %w", s.path, err)
	}
	s.db = db
	return db, nil
}

// ReadAll returns every raw listing in the store.
func (s *SQLiteSource) ReadAll(ctx context.Context) ([]models.RawListing, error) {
	return s.query(ctx, time.Time{}, "SELECT "+rawColumns+" FROM vehicles ORDER BY id")
}

// ReadSince returns listings scraped at or after since. Naive timestamps in
// the store are interpreted as UTC.
func (s *SQLiteSource) ReadSince(ctx context.Context, since time.Time) ([]models.RawListing, error) {
	return s.query(ctx, since,
		"SELECT "+rawColumns+" FROM vehicles WHERE datetime(scraped_at) >= datetime(?) ORDER BY id",
		since.UTC().Format("2006-01-02 15:04:05"))
}

func (s *SQLiteSource) query(ctx context.Context, since time.Time, query string, args ...any) ([]models.RawListing, error) {
	db, err := s.open(ctx)
	if err != nil {
		return nil, models.ErrSourceUnavailable{Err: err}
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, models.ErrSourceUnavailable{Err: fmt.Errorf("sqlite source: query: %w", err)}
	}
	defer rows.Close()

	var out []models.RawListing
	for rows.Next() {
		r, err := scanRaw(rows)
		if err != nil {
			return nil, models.ErrSourceUnavailable{Err: fmt.Errorf("sqlite source: scan row: %w", err)}
		}
		// datetime() truncates sub-second precision; re-check exactly.
		if !since.IsZero() && r.ScrapedAt.Before(since) {
			continue
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, models.ErrSourceUnavailable{Err: fmt.Errorf("sqlite source: rows: %w", err)}
	}
	return out, nil
}

func scanRaw(row rowScanner) (models.RawListing, error) {
	var (
		r                                         models.RawListing
		id, url, brand, model, fuel, trans        sql.NullString
		colExt, colInt, phone, whatsapp, desc     sql.NullString
		year, priceLocal, priceUSD, mileage, engn sql.NullInt64
		scraped                                   flexTime
	)
	if err := row.Scan(
		&id, &url, &brand, &model, &year, &priceLocal, &priceUSD,
		&mileage, &fuel, &trans, &engn, &colExt, &colInt,
		&phone, &whatsapp, &desc, &scraped,
	); err != nil {
		return r, err
	}
	r.ID, r.URL, r.Brand, r.Model = id.String, url.String, brand.String, model.String
	r.FuelType, r.Transmission = fuel.String, trans.String
	r.ColorExterior, r.ColorInterior = colExt.String, colInt.String
	r.SellerPhone, r.SellerWhatsapp, r.Description = phone.String, whatsapp.String, desc.String
	r.Year, r.Mileage, r.EngineCC = intPtr(year), intPtr(mileage), intPtr(engn)
	r.PriceLocal, r.PriceSecondary = int64Ptr(priceLocal), int64Ptr(priceUSD)
	r.ScrapedAt = scraped.Time
	return r, nil
}

// flexTime scans timestamps the driver may hand back as time.Time or text.
type flexTime struct {
	Time time.Time
}

func (f *flexTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		f.Time = time.Time{}
		return nil
	case time.Time:
		f.Time = v.UTC()
		return nil
	case string:
		return f.parse(v)
	case []byte:
		return f.parse(string(v))
	default:
		return fmt.Errorf("unsupported timestamp type %T", src)
	}
}

func (f *flexTime) parse(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		f.Time = time.Time{}
		return nil
	}
	for _, layout := range sqliteTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			f.Time = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("unparseable timestamp %q", s)
}

// Close releases the database handle if it was opened.
func (s *SQLiteSource) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
