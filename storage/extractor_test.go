package storage

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vehicle-etl/models"
)

func TestExtractFullReadsEverything(t *testing.T) {
	now := time.Now().UTC()
	path := newRawDB(t,
		rawRow{id: "1", brand: "bmw", year: 2018, colones: 10400000, usd: 20000, scrapedAt: now.Add(-time.Hour)},
		rawRow{id: "2", brand: "toyota", year: nil, colones: nil, usd: 15000, scrapedAt: now.Add(-72 * time.Hour)},
	)
	src := NewSQLiteSource(path)
	defer src.Close()

	ext, err := NewExtractor(src, quietLogger(), time.Second).Extract(context.Background(), models.ModeFull, 0)
	require.NoError(t, err)
	require.Equal(t, 2, ext.Len())

	got := slices.Collect(ext.Records())
	assert.Equal(t, "1", got[0].ID)
	assert.Equal(t, "bmw", got[0].Brand)
	require.NotNil(t, got[0].Year)
	assert.Equal(t, 2018, *got[0].Year)
	assert.Equal(t, int64(20000), *got[0].PriceSecondary)
	assert.Equal(t, "negro", got[0].ColorExterior)
	assert.Equal(t, "8888-8888", got[0].SellerPhone)

	assert.Nil(t, got[1].Year)
	assert.Nil(t, got[1].PriceLocal)
	assert.WithinDuration(t, now.Add(-72*time.Hour), got[1].ScrapedAt, time.Second)
}

func TestExtractIncrementalWindow(t *testing.T) {
	now := time.Now().UTC()
	path := newRawDB(t,
		rawRow{id: "recent", brand: "kia", usd: 9000, scrapedAt: now.Add(-1 * time.Hour)},
		rawRow{id: "old", brand: "kia", usd: 9000, scrapedAt: now.Add(-30 * time.Hour)},
	)
	src := NewSQLiteSource(path)
	defer src.Close()

	ext, err := NewExtractor(src, quietLogger(), time.Second).
		Extract(context.Background(), models.ModeIncremental, 24*time.Hour)
	require.NoError(t, err)

	got := slices.Collect(ext.Records())
	require.Len(t, got, 1)
	assert.Equal(t, "recent", got[0].ID)
	assert.WithinDuration(t, now.Add(-24*time.Hour), ext.Since, 5*time.Second)
}

func TestExtractIsRestartable(t *testing.T) {
	path := newRawDB(t, rawRow{id: "1", brand: "kia", usd: 9000, scrapedAt: time.Now()})
	src := NewSQLiteSource(path)
	defer src.Close()
	ex := NewExtractor(src, quietLogger(), 0)

	first, err := ex.Extract(context.Background(), models.ModeFull, 0)
	require.NoError(t, err)
	second, err := ex.Extract(context.Background(), models.ModeFull, 0)
	require.NoError(t, err)

	assert.Equal(t, slices.Collect(first.Records()), slices.Collect(second.Records()))
}

func TestExtractMissingSourceIsUnavailable(t *testing.T) {
	src := NewSQLiteSource(filepath.Join(t.TempDir(), "missing.db"))
	defer src.Close()

	ext, err := NewExtractor(src, quietLogger(), time.Second).Extract(context.Background(), models.ModeFull, 0)
	assert.Nil(t, ext)

	var unavailable models.ErrSourceUnavailable
	assert.True(t, errors.As(err, &unavailable), "got %v", err)
	assert.Equal(t, "source_unavailable", models.ErrorKind(err))
}

func TestExtractRejectsBadArguments(t *testing.T) {
	ex := NewExtractor(NewSQLiteSource("unused.db"), quietLogger(), 0)

	_, err := ex.Extract(context.Background(), models.ModeIncremental, 0)
	assert.Equal(t, "configuration_error", models.ErrorKind(err))

	_, err = ex.Extract(context.Background(), models.RunMode("weekly"), time.Hour)
	assert.Equal(t, "configuration_error", models.ErrorKind(err))
}

type failingSource struct{}

func (failingSource) ReadAll(context.Context) ([]models.RawListing, error) {
	return nil, errors.New("disk on fire")
}

func (failingSource) ReadSince(context.Context, time.Time) ([]models.RawListing, error) {
	return nil, errors.New("disk on fire")
}

func (failingSource) Close() error { return nil }

func TestExtractWrapsForeignErrors(t *testing.T) {
	_, err := NewExtractor(failingSource{}, quietLogger(), 0).Extract(context.Background(), models.ModeFull, 0)
	assert.Equal(t, "source_unavailable", models.ErrorKind(err))
	assert.ErrorContains(t, err, "disk on fire")
}

func TestFlexTimeParsesScraperFormats(t *testing.T) {
	tests := []struct {
		in   any
		want time.Time
	}{
		{"2026-10-18 09:30:00", time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)},
		{"2026-10-18T09:30:00.123456", time.Date(2026, 10, 18, 9, 30, 0, 123456000, time.UTC)},
		{[]byte("2026-10-18T09:30:00Z"), time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)},
		{nil, time.Time{}},
	}
	for _, tt := range tests {
		var f flexTime
		require.NoError(t, f.Scan(tt.in))
		assert.True(t, tt.want.Equal(f.Time), "Scan(%v) = %v; want %v", tt.in, f.Time, tt.want)
	}

	var f flexTime
	assert.Error(t, f.Scan("yesterday"))
}
