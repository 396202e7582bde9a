package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"vehicle-etl/models"
)

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS vehicles_clean (
		vehicle_id      TEXT PRIMARY KEY,
		url             TEXT NOT NULL DEFAULT '',
		brand           TEXT,
		model           TEXT,
		year            INTEGER,
		price_colones   INTEGER,
		price_usd       INTEGER,
		mileage         INTEGER,
		fuel_type       TEXT,
		transmission    TEXT,
		engine_cc       INTEGER,
		color_exterior  TEXT,
		color_interior  TEXT,
		seller_phone    TEXT,
		seller_whatsapp TEXT,
		description     TEXT,
		exchange_rate   REAL,
		price_flag      BOOLEAN NOT NULL DEFAULT 0,
		vehicle_age     INTEGER,
		price_per_year  REAL,
		is_luxury       BOOLEAN NOT NULL DEFAULT 0,
		scraped_at      TIMESTAMP,
		loaded_at       TIMESTAMP NOT NULL
	)`

// SQLiteLoader persists cleaned listings to a local SQLite database.
type SQLiteLoader struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteLoader opens (or creates) the database at path and migrates it.
func NewSQLiteLoader(ctx context.Context, path string) (*SQLiteLoader, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	// One connection keeps the batch transaction and the pragmas on the same handle.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout = 5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: apply pragma %q: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}
	return &SQLiteLoader{db: db, now: time.Now}, nil
}

// Upsert writes the batch in one transaction: rows are inserted or fully
// replaced by vehicle_id, then the secondary indexes are ensured.
func (l *SQLiteLoader) Upsert(ctx context.Context, listings []*models.CleanListing) (models.LoadResult, error) {
	var res models.LoadResult
	if len(listings) == 0 {
		return res, nil
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return res, models.ErrLoadFailure{Err: fmt.Errorf("sqlite: begin: %w", err)}
	}
	defer func() { _ = tx.Rollback() }()

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(cleanColumns)), ",")
	upsert, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(vehicle_id) DO UPDATE SET %s",
		cleanTable, strings.Join(cleanColumns, ", "), placeholders, updateAssignments()))
	if err != nil {
		return res, models.ErrLoadFailure{Err: fmt.Errorf("sqlite: prepare upsert: %w", err)}
	}
	defer upsert.Close()

	loadedAt := l.now()
	for _, listing := range listings {
		var exists int
		err := tx.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM "+cleanTable+" WHERE vehicle_id = ?", listing.ID).Scan(&exists)
		if err != nil {
			return models.LoadResult{}, models.ErrLoadFailure{Err: fmt.Errorf("sqlite: lookup %s: %w", listing.ID, err)}
		}
		if _, err := upsert.ExecContext(ctx, listingArgs(listing, loadedAt)...); err != nil {
			return models.LoadResult{}, models.ErrLoadFailure{Err: fmt.Errorf("sqlite: upsert %s: %w", listing.ID, err)}
		}
		if exists > 0 {
			res.Updated++
		} else {
			res.Written++
		}
	}

	for _, stmt := range indexStatements() {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return models.LoadResult{}, models.ErrLoadFailure{Err: fmt.Errorf("sqlite: index: %w", err)}
		}
		res.IndexesRebuilt++
	}

	if err := tx.Commit(); err != nil {
		return models.LoadResult{}, models.ErrLoadFailure{Err: fmt.Errorf("sqlite: commit: %w", err)}
	}
	for _, listing := range listings {
		listing.LoadedAt = loadedAt
	}
	return res, nil
}

// Stats reports row count, price flag count and the top brands.
func (l *SQLiteLoader) Stats(ctx context.Context) (*Stats, error) {
	return queryStats(ctx, l.db, "sqlite")
}

// FetchAll retrieves all stored listings ordered by vehicle_id.
func (l *SQLiteLoader) FetchAll(ctx context.Context) ([]*models.CleanListing, error) {
	return fetchAll(ctx, l.db, "sqlite")
}

func (l *SQLiteLoader) Close() error {
	return l.db.Close()
}

func queryStats(ctx context.Context, db *sql.DB, driver string) (*Stats, error) {
	st := &Stats{}
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+cleanTable).Scan(&st.TotalRows); err != nil {
		return nil, fmt.Errorf("%s: count: %w", driver, err)
	}
	if err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM "+cleanTable+" WHERE price_flag").Scan(&st.PriceIssues); err != nil {
		return nil, fmt.Errorf("%s: price issues: %w", driver, err)
	}

	rows, err := db.QueryContext(ctx, `
		SELECT brand, COUNT(*) AS n FROM `+cleanTable+`
		WHERE brand IS NOT NULL
		GROUP BY brand
		ORDER BY n DESC, brand
		LIMIT 10`)
	if err != nil {
		return nil, fmt.Errorf("%s: brand distribution: %w", driver, err)
	}
	defer rows.Close()
	for rows.Next() {
		var bc models.BrandCount
		if err := rows.Scan(&bc.Brand, &bc.Count); err != nil {
			return nil, fmt.Errorf("%s: scan brand: %w", driver, err)
		}
		st.BrandDistribution = append(st.BrandDistribution, bc)
	}
	return st, rows.Err()
}

func fetchAll(ctx context.Context, db *sql.DB, driver string) ([]*models.CleanListing, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf(
		"SELECT %s FROM %s ORDER BY vehicle_id", strings.Join(cleanColumns, ", "), cleanTable))
	if err != nil {
		return nil, fmt.Errorf("%s: fetch all: %w", driver, err)
	}
	defer rows.Close()

	var listings []*models.CleanListing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan row: %w", driver, err)
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}
