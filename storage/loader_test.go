package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vehicle-etl/models"
)

func newSQLiteLoader(t *testing.T) *SQLiteLoader {
	t.Helper()
	l, err := NewSQLiteLoader(context.Background(), filepath.Join(t.TempDir(), "clean", "vehicles_clean.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestSQLiteUpsertInsertsThenReplaces(t *testing.T) {
	ctx := context.Background()
	l := newSQLiteLoader(t)

	res, err := l.Upsert(ctx, []*models.CleanListing{
		cleanListing("A1", "BMW", 20000),
		cleanListing("B2", "Toyota", 12000),
	})
	require.NoError(t, err)
	assert.Equal(t, models.LoadResult{Written: 2, Updated: 0, IndexesRebuilt: 6}, res)

	second := cleanListing("A1", "BMW", 25000)
	second.Model = strp("X5")
	res, err = l.Upsert(ctx, []*models.CleanListing{second})
	require.NoError(t, err)
	assert.Equal(t, models.LoadResult{Written: 0, Updated: 1, IndexesRebuilt: 6}, res)

	all, err := l.FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)

	a1 := all[0]
	assert.Equal(t, "A1", a1.ID)
	assert.Equal(t, int64(25000), *a1.PriceSecondary)
	require.NotNil(t, a1.Model)
	assert.Equal(t, "X5", *a1.Model)
	assert.True(t, a1.IsLuxury)
	assert.Nil(t, a1.Mileage)
	assert.False(t, a1.LoadedAt.IsZero())
	assert.True(t, second.LoadedAt.Equal(a1.LoadedAt))
}

func TestSQLiteUpsertIsAtomic(t *testing.T) {
	ctx := context.Background()
	l := newSQLiteLoader(t)
	_, err := l.Upsert(ctx, []*models.CleanListing{cleanListing("KEEP", "Kia", 9000)})
	require.NoError(t, err)

	_, err = l.db.Exec(`CREATE TRIGGER reject_bad BEFORE INSERT ON vehicles_clean
		WHEN NEW.vehicle_id = 'BAD' BEGIN SELECT RAISE(ABORT, 'rejected by constraint'); END`)
	require.NoError(t, err)

	changed := cleanListing("KEEP", "Kia", 1)
	_, err = l.Upsert(ctx, []*models.CleanListing{
		cleanListing("NEW", "Mazda", 11000),
		changed,
		cleanListing("BAD", "Fiat", 5000),
	})
	var loadErr models.ErrLoadFailure
	require.True(t, errors.As(err, &loadErr), "got %v", err)

	all, err := l.FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1, "failed batch must not leave partial rows")
	assert.Equal(t, int64(9000), *all[0].PriceSecondary)
	assert.True(t, changed.LoadedAt.IsZero())
}

func TestSQLiteIndexesAreIdempotent(t *testing.T) {
	ctx := context.Background()
	l := newSQLiteLoader(t)
	for i := 0; i < 3; i++ {
		_, err := l.Upsert(ctx, []*models.CleanListing{cleanListing(fmt.Sprint(i), "Kia", 9000)})
		require.NoError(t, err)
	}

	var n int
	require.NoError(t, l.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name LIKE 'idx_vehicles_clean_%'").Scan(&n))
	assert.Equal(t, 6, n)
}

func TestSQLiteStats(t *testing.T) {
	ctx := context.Background()
	l := newSQLiteLoader(t)

	flagged := cleanListing("F", "Toyota", 10000)
	flagged.PriceFlag = true
	_, err := l.Upsert(ctx, []*models.CleanListing{
		cleanListing("1", "Toyota", 10000),
		cleanListing("2", "Toyota", 11000),
		cleanListing("3", "BMW", 30000),
		flagged,
	})
	require.NoError(t, err)

	st, err := l.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, st.TotalRows)
	assert.Equal(t, 1, st.PriceIssues)
	assert.Equal(t, []models.BrandCount{{Brand: "Toyota", Count: 3}, {Brand: "BMW", Count: 1}}, st.BrandDistribution)
}

func TestSQLiteUpsertEmptyBatch(t *testing.T) {
	l := newSQLiteLoader(t)
	res, err := l.Upsert(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, res)
}

func newMockLoader(t *testing.T) (*PostgresLoader, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return newPostgresLoader(db), mock
}

func expectIndexes(mock sqlmock.Sqlmock) {
	for range indexedColumns {
		mock.ExpectExec(`CREATE INDEX IF NOT EXISTS idx_vehicles_clean_`).
			WillReturnResult(sqlmock.NewResult(0, 0))
	}
}

func TestPostgresUpsertCountsInsertsAndUpdates(t *testing.T) {
	pl, mock := newMockLoader(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO vehicles_clean .* ON CONFLICT \(vehicle_id\) DO UPDATE SET url = EXCLUDED.url, brand = EXCLUDED.brand`).
		WillReturnRows(sqlmock.NewRows([]string{"inserted"}).AddRow(true).AddRow(false))
	expectIndexes(mock)
	mock.ExpectCommit()

	res, err := pl.Upsert(context.Background(), []*models.CleanListing{
		cleanListing("A1", "BMW", 20000),
		cleanListing("B2", "Kia", 9000),
	})
	require.NoError(t, err)
	assert.Equal(t, models.LoadResult{Written: 1, Updated: 1, IndexesRebuilt: 6}, res)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpsertChunksLargeBatches(t *testing.T) {
	pl, mock := newMockLoader(t)

	var batch []*models.CleanListing
	for i := 0; i < 120; i++ {
		batch = append(batch, cleanListing(fmt.Sprintf("V%03d", i), "Kia", 9000))
	}

	mock.ExpectBegin()
	for _, n := range []int{50, 50, 20} {
		rows := sqlmock.NewRows([]string{"inserted"})
		for i := 0; i < n; i++ {
			rows.AddRow(true)
		}
		mock.ExpectQuery(`INSERT INTO vehicles_clean`).WillReturnRows(rows)
	}
	expectIndexes(mock)
	mock.ExpectCommit()

	res, err := pl.Upsert(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, 120, res.Written)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpsertRollsBackOnFailure(t *testing.T) {
	pl, mock := newMockLoader(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO vehicles_clean`).
		WillReturnError(errors.New(`pq: duplicate key value violates unique constraint`))
	mock.ExpectRollback()

	listing := cleanListing("A1", "BMW", 20000)
	_, err := pl.Upsert(context.Background(), []*models.CleanListing{listing})

	var loadErr models.ErrLoadFailure
	require.True(t, errors.As(err, &loadErr), "got %v", err)
	assert.True(t, strings.Contains(err.Error(), "unique constraint"))
	assert.True(t, listing.LoadedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStats(t *testing.T) {
	pl, mock := newMockLoader(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM vehicles_clean$`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))
	mock.ExpectQuery(`WHERE price_flag`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(`GROUP BY brand`).
		WillReturnRows(sqlmock.NewRows([]string{"brand", "n"}).AddRow("Toyota", 30).AddRow("BMW", 12))

	st, err := pl.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, st.TotalRows)
	assert.Equal(t, 3, st.PriceIssues)
	assert.Len(t, st.BrandDistribution, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCSVWriterExportsCleanListings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "clean.csv")
	w, err := NewCSVWriter(path)
	require.NoError(t, err)

	l := cleanListing("A1", "BMW", 20000)
	require.NoError(t, w.WriteClean([]*models.CleanListing{l}))
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "vehicle_id,url,brand,model,year"))
	assert.Contains(t, lines[1], "A1,https://crautos.com/autosusados/cardetail.cfm?c=A1,BMW,,2018,10400000,20000,")
	assert.Contains(t, lines[1], ",520.00,false,8,2500.00,true,")
}
