package models

import "time"

// RawListing holds one scraped vehicle offer exactly as the scraper stored it.
// The pipeline never mutates the raw store; optional numeric columns are nil
// when the scraper could not parse them.
type RawListing struct {
	ID             string
	URL            string
	Brand          string
	Model          string
	Year           *int
	PriceLocal     *int64 // colones
	PriceSecondary *int64 // USD
	Mileage        *int
	FuelType       string
	EngineCC       *int
	ColorExterior  string
	ColorInterior  string
	Transmission   string
	SellerPhone    string
	SellerWhatsapp string
	Description    string
	ScrapedAt      time.Time
}

// CleanListing is the cleaned, enriched record ready for the target store.
// Every optional field is either a validated value or nil.
type CleanListing struct {
	ID             string
	URL            string
	Brand          *string
	Model          *string
	Year           *int
	PriceLocal     *int64
	PriceSecondary *int64
	Mileage        *int
	FuelType       *string
	EngineCC       *int
	ColorExterior  *string
	ColorInterior  *string
	Transmission   *string
	SellerPhone    *string
	SellerWhatsapp *string
	Description    *string
	ScrapedAt      time.Time

	VehicleAge   *int
	PricePerYear *float64
	IsLuxury     bool
	ExchangeRate *float64
	PriceFlag    bool

	LoadedAt time.Time
}

// DiagnosticKind classifies a per-record cleaning event.
type DiagnosticKind string

const (
	DiagNulled      DiagnosticKind = "nulled"
	DiagSuppressed  DiagnosticKind = "suppressed"
	DiagUnmatched   DiagnosticKind = "unmatched_vocabulary"
	DiagRejected    DiagnosticKind = "rejected"
	DiagDuplicateID DiagnosticKind = "duplicate_id"
)

// Diagnostic records one thing the cleaner did to (or noticed about) a record.
type Diagnostic struct {
	ListingID string         `json:"listing_id"`
	Field     string         `json:"field"`
	Kind      DiagnosticKind `json:"kind"`
	Value     string         `json:"value,omitempty"`
	Message   string         `json:"message"`
}

// LoadResult summarises one batch apply against the target store.
type LoadResult struct {
	Written        int `json:"written"`
	Updated        int `json:"updated"`
	IndexesRebuilt int `json:"indexes_rebuilt"`
}

// BrandCount is one row of the post-load brand distribution.
type BrandCount struct {
	Brand string `json:"brand"`
	Count int    `json:"count"`
}

// RunMode selects between a full extraction and a time-windowed one.
type RunMode string

const (
	ModeFull        RunMode = "full"
	ModeIncremental RunMode = "incremental"
)

// QualityReport is produced once per pipeline run. Field names are part of the
// monitoring contract and must stay stable across releases.
type QualityReport struct {
	RunID             string             `json:"run_id"`
	Mode              RunMode            `json:"mode"`
	LookbackHours     int                `json:"lookback_hours,omitempty"`
	StartedAt         time.Time          `json:"started_at"`
	FinishedAt        time.Time          `json:"finished_at"`
	InputCount        int                `json:"input_count"`
	OutputCount       int                `json:"output_count"`
	RejectedCount     int                `json:"rejected_count"`
	DuplicateCount    int                `json:"duplicate_count"`
	SuppressedCount   int                `json:"suppressed_count"`
	UnmatchedCount    int                `json:"unmatched_count"`
	PriceFlagCount    int                `json:"price_flag_count"`
	RejectionRate     float64            `json:"rejection_rate"`
	Anomalous         bool               `json:"anomalous"`
	MissingBefore     map[string]float64 `json:"missing_before"`
	MissingAfter      map[string]float64 `json:"missing_after"`
	Warnings          []string           `json:"warnings"`
	Diagnostics       []Diagnostic       `json:"diagnostics"`
	Load              LoadResult         `json:"load"`
	TargetRows        int                `json:"target_rows"`
	BrandDistribution []BrandCount       `json:"brand_distribution,omitempty"`
}
