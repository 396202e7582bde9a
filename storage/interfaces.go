package storage

import (
	"context"
	"time"

	"vehicle-etl/models"
)

// Source is the read-only store the scraper fills with raw listings.
type Source interface {
	ReadAll(ctx context.Context) ([]models.RawListing, error)
	ReadSince(ctx context.Context, since time.Time) ([]models.RawListing, error)
	Close() error
}

// Target is the store of cleaned listings. Upsert applies one batch
// atomically: either every row is written and the indexes are in place, or
// nothing is committed.
type Target interface {
	Upsert(ctx context.Context, listings []*models.CleanListing) (models.LoadResult, error)
	Stats(ctx context.Context) (*Stats, error)
	FetchAll(ctx context.Context) ([]*models.CleanListing, error)
	Close() error
}

// ListingExporter writes a cleaned batch to a secondary output such as CSV.
type ListingExporter interface {
	WriteClean(listings []*models.CleanListing) error
	Close() error
}

// Stats is the post-load quality snapshot of the target store.
type Stats struct {
	TotalRows         int
	PriceIssues       int
	BrandDistribution []models.BrandCount
}
