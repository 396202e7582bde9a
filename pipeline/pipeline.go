package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"vehicle-etl/models"
	"vehicle-etl/services"
	"vehicle-etl/storage"
	"vehicle-etl/utils"
)

// State is the orchestrator's position in a run.
type State int

const (
	Idle State = iota
	Extracting
	Cleaning
	Validating
	Loading
	Reporting
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Extracting:
		return "extracting"
	case Cleaning:
		return "cleaning"
	case Validating:
		return "validating"
	case Loading:
		return "loading"
	case Reporting:
		return "reporting"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// RunError is returned by Run when a stage fails. Processed is the number of
// records that had entered the failing stage.
type RunError struct {
	Stage     State
	Kind      string
	Processed int
	Err       error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("%s stage failed (%s) with %d records processed: %v", e.Stage, e.Kind, e.Processed, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// RunOptions selects what a run extracts. LookbackHours is required for
// incremental runs and ignored for full runs.
type RunOptions struct {
	Mode          models.RunMode
	LookbackHours int
}

// Deps are the collaborators a Pipeline drives. Lock, Metrics and
// OpenExporter are optional.
type Deps struct {
	Extractor *storage.Extractor
	Cleaner   *services.Cleaner
	Validator *services.Validator
	Target    storage.Target
	Lock      *utils.WriteLock
	Metrics   *Metrics
	Logger    *utils.Logger

	// OpenExporter, when set, receives the cleaned batch after a committed load.
	OpenExporter func() (storage.ListingExporter, error)
	// LoadTimeout bounds the batch apply; zero disables it.
	LoadTimeout time.Duration
	// MetricsTextfile is rewritten at the end of every run when set.
	MetricsTextfile string
}

// Pipeline sequences extract, clean, validate, load and report for one batch
// at a time.
type Pipeline struct {
	deps Deps
	now  func() time.Time

	runMu sync.Mutex

	mu         sync.Mutex
	state      State
	stageStart time.Time
}

// New returns an idle Pipeline.
func New(deps Deps) *Pipeline {
	return &Pipeline{deps: deps, now: time.Now}
}

// State reports the current stage. Safe to call while Run is in progress.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Pipeline) setState(next State) {
	now := p.now()
	p.mu.Lock()
	prev, started := p.state, p.stageStart
	p.state, p.stageStart = next, now
	p.mu.Unlock()

	if prev != Idle && prev != Failed {
		p.deps.Metrics.ObserveStage(prev, now.Sub(started))
	}
	p.deps.Logger.Debug("[pipeline] %s → %s", prev, next)
}

// Run executes one batch end to end. On failure the returned report holds
// whatever was computed before the failing stage and the error is a
// *RunError. The pipeline is back in Idle when Run returns.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (*models.QualityReport, error) {
	if !p.runMu.TryLock() {
		err := models.ErrConfiguration{Err: errors.New("a run is already in progress")}
		return nil, &RunError{Stage: p.State(), Kind: models.ErrorKind(err), Err: err}
	}
	defer p.runMu.Unlock()

	log := p.deps.Logger
	// Collections start empty so the JSON report keeps one shape on every path.
	report := &models.QualityReport{
		RunID:         uuid.NewString(),
		Mode:          opts.Mode,
		StartedAt:     p.now().UTC(),
		MissingBefore: map[string]float64{},
		MissingAfter:  map[string]float64{},
		Warnings:      []string{},
		Diagnostics:   []models.Diagnostic{},
	}

	var lookback time.Duration
	switch opts.Mode {
	case models.ModeFull:
	case models.ModeIncremental:
		if opts.LookbackHours <= 0 {
			return report, p.fail(report, Idle, 0, models.ErrConfiguration{
				Err: fmt.Errorf("incremental mode requires lookback hours > 0, got %d", opts.LookbackHours)})
		}
		report.LookbackHours = opts.LookbackHours
		lookback = time.Duration(opts.LookbackHours) * time.Hour
	default:
		return report, p.fail(report, Idle, 0, models.ErrConfiguration{
			Err: fmt.Errorf("unknown mode %q (want full or incremental)", opts.Mode)})
	}

	log.Info("[pipeline] Run %s started (%s)", report.RunID, opts.Mode)

	// ── Extract ────────────────────────────────────────────────────────────
	p.setState(Extracting)
	extraction, err := p.deps.Extractor.Extract(ctx, opts.Mode, lookback)
	if err != nil {
		return report, p.fail(report, Extracting, 0, err)
	}
	raw := slices.Collect(extraction.Records())
	report.InputCount = len(raw)
	report.MissingBefore = services.MissingRaw(raw)
	p.deps.Metrics.AddRecords("input", len(raw))

	if len(raw) == 0 {
		log.Info("[pipeline] Nothing to process")
		p.setState(Reporting)
		return p.finish(ctx, report, false), nil
	}

	// ── Clean ──────────────────────────────────────────────────────────────
	p.setState(Cleaning)
	batch := p.deps.Cleaner.CleanBatch(raw)
	report.OutputCount = len(batch.Listings)
	report.RejectedCount = batch.Rejected
	report.DuplicateCount = batch.Duplicates
	report.SuppressedCount = batch.Suppressed
	report.UnmatchedCount = batch.Unmatched
	report.Diagnostics = append(report.Diagnostics, batch.Diagnostics...)
	p.deps.Metrics.AddRecords("rejected", batch.Rejected)
	p.deps.Metrics.AddRecords("duplicate", batch.Duplicates)
	p.deps.Metrics.AddSuppressed(batch.Suppressed)
	if batch.Unmatched > 0 {
		log.Warn("[pipeline] %d vocabulary values had no translation", batch.Unmatched)
	}

	// ── Validate ───────────────────────────────────────────────────────────
	p.setState(Validating)
	result, err := p.deps.Validator.Validate(batch.Listings, batch.Input, batch.Rejected)
	if result != nil {
		report.MissingAfter = result.MissingRate
		report.PriceFlagCount = result.PriceFlagCount
		report.RejectionRate = result.RejectionRate
		report.Anomalous = result.Anomalous
		report.Warnings = append(report.Warnings, result.Warnings...)
	}
	if err != nil {
		return report, p.fail(report, Validating, batch.Input, err)
	}
	p.deps.Metrics.AddPriceFlags(result.PriceFlagCount)

	// ── Load ───────────────────────────────────────────────────────────────
	p.setState(Loading)
	loaded := len(batch.Listings) > 0
	if loaded {
		res, err := p.load(ctx, batch.Listings)
		if err != nil {
			return report, p.fail(report, Loading, len(batch.Listings), err)
		}
		report.Load = res
		p.deps.Metrics.AddRecords("output", len(batch.Listings))
		log.Info("[pipeline] Loaded %d new and %d updated listings", res.Written, res.Updated)
	} else {
		log.Warn("[pipeline] Every record was rejected, nothing to load")
	}

	// ── Report ─────────────────────────────────────────────────────────────
	p.setState(Reporting)
	if loaded {
		p.export(report, batch.Listings)
	}
	return p.finish(ctx, report, loaded), nil
}

func (p *Pipeline) load(ctx context.Context, listings []*models.CleanListing) (models.LoadResult, error) {
	if err := p.deps.Lock.Acquire(); err != nil {
		return models.LoadResult{}, models.ErrLoadFailure{Err: err}
	}
	defer func() {
		if err := p.deps.Lock.Release(); err != nil {
			p.deps.Logger.Warn("[pipeline] Releasing write lock: %v", err)
		}
	}()

	if p.deps.LoadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.deps.LoadTimeout)
		defer cancel()
	}

	res, err := p.deps.Target.Upsert(ctx, listings)
	if err != nil {
		var loadErr models.ErrLoadFailure
		if !errors.As(err, &loadErr) {
			err = models.ErrLoadFailure{Err: err}
		}
		return models.LoadResult{}, err
	}
	return res, nil
}

// export writes the committed batch to the optional secondary output. Export
// problems are warnings: the target store is already consistent.
func (p *Pipeline) export(report *models.QualityReport, listings []*models.CleanListing) {
	if p.deps.OpenExporter == nil {
		return
	}
	exp, err := p.deps.OpenExporter()
	if err != nil {
		p.warn(report, "export skipped: %v", err)
		return
	}
	if err := exp.WriteClean(listings); err != nil {
		p.warn(report, "export failed: %v", err)
	}
	if err := exp.Close(); err != nil {
		p.warn(report, "export close failed: %v", err)
	}
}

// finish fills the post-load figures and records a successful run.
func (p *Pipeline) finish(ctx context.Context, report *models.QualityReport, loaded bool) *models.QualityReport {
	if loaded {
		stats, err := p.deps.Target.Stats(ctx)
		if err != nil {
			p.warn(report, "target stats unavailable: %v", err)
		} else {
			report.TargetRows = stats.TotalRows
			report.BrandDistribution = stats.BrandDistribution
		}
	}

	report.FinishedAt = p.now().UTC()
	p.deps.Metrics.IncRun(string(report.Mode), "success")
	p.deps.Metrics.MarkSuccess(report.FinishedAt)
	p.setState(Idle)
	p.writeMetrics()

	status := "ok"
	if report.Anomalous {
		status = "anomalous"
	}
	p.deps.Logger.Info("[pipeline] Run %s finished (%s): %d in, %d out, %d rejected in %s",
		report.RunID, status, report.InputCount, report.OutputCount, report.RejectedCount,
		report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))
	return report
}

func (p *Pipeline) fail(report *models.QualityReport, stage State, processed int, err error) error {
	runErr := &RunError{Stage: stage, Kind: models.ErrorKind(err), Processed: processed, Err: err}

	p.setState(Failed)
	report.FinishedAt = p.now().UTC()
	p.deps.Logger.Error("[pipeline] Run %s: %v", report.RunID, runErr)
	p.deps.Metrics.IncRun(string(report.Mode), runErr.Kind)
	p.setState(Idle)
	p.writeMetrics()
	return runErr
}

func (p *Pipeline) warn(report *models.QualityReport, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	report.Warnings = append(report.Warnings, msg)
	p.deps.Logger.Warn("[pipeline] %s", msg)
}

func (p *Pipeline) writeMetrics() {
	if err := p.deps.Metrics.WriteTextfile(p.deps.MetricsTextfile); err != nil {
		p.deps.Logger.Warn("[pipeline] Writing metrics textfile: %v", err)
	}
}
