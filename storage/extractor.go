package storage

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"vehicle-etl/models"
	"vehicle-etl/utils"
)

// Extraction is one finished read from the source. The records are fully
// materialised before an Extraction is returned, so a failed read never
// yields a partial batch.
type Extraction struct {
	Mode    models.RunMode
	Since   time.Time
	records []models.RawListing
}

// Len is the number of records in the batch.
func (e *Extraction) Len() int { return len(e.records) }

// Records iterates the batch in source order. Callers that need a second pass
// must call Extract again.
func (e *Extraction) Records() iter.Seq[models.RawListing] {
	return func(yield func(models.RawListing) bool) {
		for _, r := range e.records {
			if !yield(r) {
				return
			}
		}
	}
}

// Extractor reads raw listings for a full or incremental run.
type Extractor struct {
	source  Source
	logger  *utils.Logger
	timeout time.Duration
	now     func() time.Time
}

// NewExtractor wraps a source. timeout bounds each read; zero disables it.
func NewExtractor(source Source, logger *utils.Logger, timeout time.Duration) *Extractor {
	return &Extractor{source: source, logger: logger, timeout: timeout, now: time.Now}
}

// Extract reads the full store, or only the records scraped within lookback
// of the call time when mode is incremental.
func (e *Extractor) Extract(ctx context.Context, mode models.RunMode, lookback time.Duration) (*Extraction, error) {
	ext := &Extraction{Mode: mode}

	switch mode {
	case models.ModeFull:
	case models.ModeIncremental:
		if lookback <= 0 {
			return nil, models.ErrConfiguration{Err: errors.New("incremental extraction requires a positive lookback")}
		}
		ext.Since = e.now().Add(-lookback)
	default:
		return nil, models.ErrConfiguration{Err: fmt.Errorf("unknown run mode %q", mode)}
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	var (
		records []models.RawListing
		err     error
	)
	if mode == models.ModeFull {
		records, err = e.source.ReadAll(ctx)
	} else {
		records, err = e.source.ReadSince(ctx, ext.Since)
	}
	if err != nil {
		var unavailable models.ErrSourceUnavailable
		if !errors.As(err, &unavailable) {
			err = models.ErrSourceUnavailable{Err: err}
		}
		return nil, err
	}

	ext.records = records
	if mode == models.ModeFull {
		e.logger.Info("[extractor] Extracted %d raw listings (full)", len(records))
	} else {
		e.logger.Info("[extractor] Extracted %d raw listings scraped since %s",
			len(records), ext.Since.UTC().Format(time.RFC3339))
	}
	return ext, nil
}
