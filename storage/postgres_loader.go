package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"vehicle-etl/models"
	"vehicle-etl/utils"
)

const postgresBatchSize = 50

// PostgresLoader persists cleaned listings to PostgreSQL.
type PostgresLoader struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostgresLoader opens a connection to PostgreSQL, waits for it to accept
// connections, runs schema migrations, and returns a ready-to-use loader.
func NewPostgresLoader(ctx context.Context, dsn string, retry *utils.RetryConfig) (*PostgresLoader, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	if err := retry.Do(ctx, "postgres ping", db.PingContext); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: %w", err)
	}

	pl := newPostgresLoader(db)
	if err := pl.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return pl, nil
}

func newPostgresLoader(db *sql.DB) *PostgresLoader {
	return &PostgresLoader{db: db, now: time.Now}
}

func (pl *PostgresLoader) migrate(ctx context.Context) error {
	_, err := pl.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS vehicles_clean (
			vehicle_id      TEXT          PRIMARY KEY,
			url             TEXT          NOT NULL DEFAULT '',
			brand           TEXT,
			model           TEXT,
			year            INTEGER,
			price_colones   BIGINT,
			price_usd       BIGINT,
			mileage         INTEGER,
			fuel_type       TEXT,
			transmission    TEXT,
			engine_cc       INTEGER,
			color_exterior  TEXT,
			color_interior  TEXT,
			seller_phone    TEXT,
			seller_whatsapp TEXT,
			description     TEXT,
			exchange_rate   DOUBLE PRECISION,
			price_flag      BOOLEAN       NOT NULL DEFAULT FALSE,
			vehicle_age     INTEGER,
			price_per_year  NUMERIC(14,2),
			is_luxury       BOOLEAN       NOT NULL DEFAULT FALSE,
			scraped_at      TIMESTAMPTZ,
			loaded_at       TIMESTAMPTZ   NOT NULL DEFAULT NOW()
		)
	`)
	return err
}

// Upsert applies the whole batch in a single transaction. Rows are inserted
// or fully replaced by vehicle_id in chunks, then the secondary indexes are
// ensured. Any error rolls the batch back and is returned as ErrLoadFailure.
func (pl *PostgresLoader) Upsert(ctx context.Context, listings []*models.CleanListing) (models.LoadResult, error) {
	var res models.LoadResult
	if len(listings) == 0 {
		return res, nil
	}

	tx, err := pl.db.BeginTx(ctx, nil)
	if err != nil {
		return res, models.ErrLoadFailure{Err: fmt.Errorf("postgres: begin: %w", err)}
	}
	defer func() { _ = tx.Rollback() }()

	loadedAt := pl.now()
	for i := 0; i < len(listings); i += postgresBatchSize {
		end := min(i+postgresBatchSize, len(listings))
		inserted, updated, err := pl.upsertChunk(ctx, tx, listings[i:end], loadedAt)
		if err != nil {
			return models.LoadResult{}, models.ErrLoadFailure{Err: err}
		}
		res.Written += inserted
		res.Updated += updated
	}

	for _, stmt := range indexStatements() {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return models.LoadResult{}, models.ErrLoadFailure{Err: fmt.Errorf("postgres: index: %w", err)}
		}
		res.IndexesRebuilt++
	}

	if err := tx.Commit(); err != nil {
		return models.LoadResult{}, models.ErrLoadFailure{Err: fmt.Errorf("postgres: commit: %w", err)}
	}
	for _, listing := range listings {
		listing.LoadedAt = loadedAt
	}
	return res, nil
}

func (pl *PostgresLoader) upsertChunk(ctx context.Context, tx *sql.Tx, chunk []*models.CleanListing, loadedAt time.Time) (int, int, error) {
	cols := len(cleanColumns)
	valueStrings := make([]string, 0, len(chunk))
	valueArgs := make([]any, 0, len(chunk)*cols)

	for idx, l := range chunk {
		ph := make([]string, cols)
		for c := range ph {
			ph[c] = fmt.Sprintf("$%d", idx*cols+c+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(ph, ",")+")")
		valueArgs = append(valueArgs, listingArgs(l, loadedAt)...)
	}

	// xmax is zero only for freshly inserted tuples.
	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES %s
		ON CONFLICT (vehicle_id) DO UPDATE SET %s
		RETURNING (xmax = 0) AS inserted
	`, cleanTable, strings.Join(cleanColumns, ", "), strings.Join(valueStrings, ","), updateAssignments())

	rows, err := tx.QueryContext(ctx, query, valueArgs...)
	if err != nil {
		return 0, 0, fmt.Errorf("postgres: upsert: %w", err)
	}
	defer rows.Close()

	var inserted, updated int
	for rows.Next() {
		var isInsert bool
		if err := rows.Scan(&isInsert); err != nil {
			return 0, 0, fmt.Errorf("postgres: scan upsert result: %w", err)
		}
		if isInsert {
			inserted++
		} else {
			updated++
		}
	}
	if err := rows.Err(); err != nil {
		return 0, 0, fmt.Errorf("postgres: upsert: %w", err)
	}
	return inserted, updated, nil
}

// Stats reports row count, price flag count and the top brands.
func (pl *PostgresLoader) Stats(ctx context.Context) (*Stats, error) {
	return queryStats(ctx, pl.db, "postgres")
}

// FetchAll retrieves all stored listings, used by the verify command.
func (pl *PostgresLoader) FetchAll(ctx context.Context) ([]*models.CleanListing, error) {
	return fetchAll(ctx, pl.db, "postgres")
}

func (pl *PostgresLoader) Close() error {
	return pl.db.Close()
}
