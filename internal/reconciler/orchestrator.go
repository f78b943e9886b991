// Package reconciler merges the inventory of two source systems and reports
// where they disagree.
//
// One call to Engine.Reconcile is one pull-compute-respond batch:
//
//  1. Source A and Source B are fetched concurrently, each under its own
//     timeout. A single failed source degrades the result; two failures
//     fail the call.
//  2. Rows are folded into items and Source-B locations, resolving Source-A
//     location codes through the location mapping.
//  3. Average flow, replenishment and days of inventory are computed per
//     source and location, then compared.
//  4. Each location is classified and the worst level is rolled up to the
//     item.
//  5. Filters and pagination are applied to the complete, sorted result.
//
// Example usage:
//
//	engine, err := reconciler.NewEngine(sourceA, sourceB, mapper, buffers, reconciler.DefaultConfig())
//	result, err := engine.Reconcile(ctx, reconciler.Query{Search: "bolt", Page: 1, Limit: 50})
package reconciler

import (
	"context"
	"fmt"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"

	"inventory-reconciliation-service/internal/locations"
	"inventory-reconciliation-service/internal/models"
	"inventory-reconciliation-service/internal/sources"
	"inventory-reconciliation-service/pkg/errors"
	"inventory-reconciliation-service/pkg/logger"
)

// Source statuses reported in metadata.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Recorder receives engine measurements. A nil Recorder is allowed.
type Recorder interface {
	ObserveRun(status string, duration time.Duration)
	ObserveFetch(source models.SourceName, status string, duration time.Duration)
	CountLocations(level models.DiscrepancyLevel, count int)
}

// SourceStatus is the outcome of one source fetch.
type SourceStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Metadata describes the inputs and timing of one computation.
type Metadata struct {
	SourceALocationCount  int          `json:"source_a_location_count"`
	SourceBLocationCount  int          `json:"source_b_location_count"`
	MappedLocationCount   int          `json:"mapped_location_count"`
	UnmappedLocationCodes []string     `json:"unmapped_location_codes"`
	SourceAStatus         SourceStatus `json:"source_a_status"`
	SourceBStatus         SourceStatus `json:"source_b_status"`
	SourceARows           int          `json:"source_a_rows"`
	SourceBRows           int          `json:"source_b_rows"`
	Window                string       `json:"window"`
	EngineTimeMs          int64        `json:"engine_time_ms"`
	FetchedAt             time.Time    `json:"fetched_at"`
}

// Result is one page of reconciliation results.
type Result struct {
	Items      []*models.MergedItemRow `json:"items"`
	Total      int                     `json:"total"`
	Page       int                     `json:"page"`
	Limit      int                     `json:"limit"`
	TotalPages int                     `json:"total_pages"`
	Summary    Summary                 `json:"summary"`
	Metadata   Metadata                `json:"metadata"`
}

// Engine runs reconciliations. It holds only immutable configuration and
// is safe for concurrent use.
type Engine struct {
	sourceA    sources.SourceAFetcher
	sourceB    sources.SourceBFetcher
	mapper     *locations.Mapper
	buffers    *locations.Buffers
	classifier *Classifier
	config     *Config
	clock      sources.Clock
	recorder   Recorder
	logger     logger.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock used for the fetch window and timestamps.
func WithClock(clock sources.Clock) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(recorder Recorder) Option {
	return func(e *Engine) {
		e.recorder = recorder
	}
}

// WithLogger sets the base logger.
func WithLogger(log logger.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.logger = log.WithComponent("reconciler")
		}
	}
}

// NewEngine creates a new Engine
func NewEngine(
	sourceA sources.SourceAFetcher,
	sourceB sources.SourceBFetcher,
	mapper *locations.Mapper,
	buffers *locations.Buffers,
	config *Config,
	opts ...Option,
) (*Engine, error) {
	if sourceA == nil || sourceB == nil {
		return nil, errors.ConfigurationError(errors.CodeMissingConfig, "sources", nil, nil)
	}
	if mapper == nil {
		return nil, errors.ConfigurationError(errors.CodeMissingConfig, "locations.mapping", nil, nil)
	}
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "reconciliation", err.Error(), err)
	}
	if buffers == nil {
		var err error
		if buffers, err = locations.NewBuffers(nil, nil, 0); err != nil {
			return nil, errors.InternalError(errors.CodeUnexpectedError, "buffer_setup", err)
		}
	}

	classifier, err := NewClassifier(config.WarningThreshold, config.CriticalThreshold)
	if err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "reconciliation.thresholds", err.Error(), err)
	}

	engine := &Engine{
		sourceA:    sourceA,
		sourceB:    sourceB,
		mapper:     mapper,
		buffers:    buffers,
		classifier: classifier,
		config:     config,
		clock:      time.Now,
		logger:     logger.GetGlobalLogger().WithComponent("reconciler"),
	}
	for _, opt := range opts {
		opt(engine)
	}

	return engine, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() *Config {
	return e.config
}

// NormalizeQuery applies defaults to q and validates it.
func (e *Engine) NormalizeQuery(q Query) (Query, error) {
	if q.Page == 0 {
		q.Page = 1
	}
	if q.Limit == 0 {
		q.Limit = e.config.DefaultLimit
	}
	if q.Page < 1 {
		return q, errors.ValidationError(errors.CodeOutOfRange, "page", q.Page, nil)
	}
	if q.Limit < 1 || q.Limit > e.config.MaxLimit {
		return q, errors.ValidationError(errors.CodeOutOfRange, "limit", q.Limit, nil).
			WithSuggestion(fmt.Sprintf("limit must be between 1 and %d", e.config.MaxLimit))
	}
	if q.Discrepancy != "" && !q.Discrepancy.IsValid() {
		return q, errors.ValidationError(errors.CodeOutOfRange, "discrepancy", q.Discrepancy, nil)
	}
	return q, nil
}

// fetchResult holds the outcome of both fetches.
type fetchResult struct {
	rowsA []models.SourceARow
	rowsB []models.SourceBRow
	errA  error
	errB  error
}

// Reconcile runs one reconciliation and returns the requested page.
func (e *Engine) Reconcile(ctx context.Context, query Query) (*Result, error) {
	query, err := e.NormalizeQuery(query)
	if err != nil {
		return nil, err
	}

	started := e.clock()
	filter := sources.FetchFilter{
		Search: query.Search,
		Window: sources.NewWindow(started),
	}

	log := logger.FromContextOr(ctx, e.logger)
	op := logger.NewOperationLogger("reconcile", log).
		WithField("window", filter.Window.Key()).
		WithField("search", query.Search)

	endFetch := op.Stage("fetch")
	fetched := e.fetch(ctx, filter)
	endFetch()

	metadata := Metadata{
		SourceAStatus: statusOf(fetched.errA),
		SourceBStatus: statusOf(fetched.errB),
		Window:        filter.Window.Key(),
		FetchedAt:     started,
	}

	if fetched.errA != nil && fetched.errB != nil {
		err := errors.BothSourcesFailedError(
			errors.SourceFetchError(string(models.SourceA), fetched.errA),
			errors.SourceFetchError(string(models.SourceB), fetched.errB),
		)
		op.Error(err, "Reconciliation failed")
		e.observeRun(StatusFailed, op.Elapsed())
		return nil, err
	}
	if fetched.errA != nil {
		op.Warning(errors.SourceFetchError(string(models.SourceA), fetched.errA), "Source A unavailable; continuing with source B only")
	}
	if fetched.errB != nil {
		op.Warning(errors.SourceFetchError(string(models.SourceB), fetched.errB), "Source B unavailable; continuing with source A only")
	}

	endMerge := op.Stage("merge")
	accumulators, stats := newMerger(e.mapper, log).merge(fetched.rowsA, fetched.rowsB)
	endMerge()

	endCompute := op.Stage("compute")
	items := e.compute(accumulators)
	endCompute()

	endFilter := op.Stage("filter")
	filtered := FilterItems(items, query)
	page, total := Paginate(filtered, query.Page, query.Limit)
	summary := Summarize(filtered)
	endFilter()

	metadata.SourceALocationCount = stats.SourceALocationCount
	metadata.SourceBLocationCount = stats.SourceBLocationCount
	metadata.MappedLocationCount = stats.MappedLocationCount
	metadata.UnmappedLocationCodes = stats.UnmappedCodes
	metadata.SourceARows = stats.SourceARows
	metadata.SourceBRows = stats.SourceBRows
	metadata.EngineTimeMs = op.Elapsed().Milliseconds()

	op.WithField("items", len(items)).
		WithField("matching_items", total).
		WithField("unmapped_codes", len(stats.UnmappedCodes)).
		Success("Reconciliation completed")
	e.observeRun(StatusOK, op.Elapsed())

	return &Result{
		Items:      page,
		Total:      total,
		Page:       query.Page,
		Limit:      query.Limit,
		TotalPages: TotalPages(total, query.Limit),
		Summary:    summary,
		Metadata:   metadata,
	}, nil
}

// fetch runs both adapters concurrently. A panicking adapter is reported as
// a failed fetch.
func (e *Engine) fetch(ctx context.Context, filter sources.FetchFilter) fetchResult {
	var result fetchResult
	var wg conc.WaitGroup

	wg.Go(func() {
		start := time.Now()
		result.errA = e.guard(func() error {
			fetchCtx, cancel := context.WithTimeout(ctx, e.config.FetchTimeout)
			defer cancel()
			var err error
			result.rowsA, err = e.sourceA.FetchSourceA(fetchCtx, filter)
			return err
		})
		e.observeFetch(models.SourceA, result.errA, time.Since(start))
	})

	wg.Go(func() {
		start := time.Now()
		result.errB = e.guard(func() error {
			fetchCtx, cancel := context.WithTimeout(ctx, e.config.FetchTimeout)
			defer cancel()
			var err error
			result.rowsB, err = e.sourceB.FetchSourceB(fetchCtx, filter)
			return err
		})
		e.observeFetch(models.SourceB, result.errB, time.Since(start))
	})

	wg.Wait()

	if result.errA != nil {
		result.rowsA = nil
	}
	if result.errB != nil {
		result.rowsB = nil
	}
	return result
}

func (e *Engine) guard(fetch func() error) error {
	var catcher panics.Catcher
	var err error
	catcher.Try(func() { err = fetch() })
	if recovered := catcher.Recovered(); recovered != nil {
		return recovered.AsError()
	}
	return err
}

// compute derives metrics, classifies every location and builds the
// sorted item list.
func (e *Engine) compute(accumulators []*itemAccumulator) []*models.MergedItemRow {
	calculator := &metricCalculator{buffers: e.buffers, mapper: e.mapper}
	counts := make(map[models.DiscrepancyLevel]int)

	items := make([]*models.MergedItemRow, 0, len(accumulators))
	for _, acc := range accumulators {
		item := acc.item
		levels := make([]models.DiscrepancyLevel, 0, len(acc.locations))

		for _, loc := range acc.sortedLocations() {
			calculator.compute(loc)
			loc.row.Discrepancy = e.classifier.Classify(loc.row)
			levels = append(levels, loc.row.Discrepancy)
			counts[loc.row.Discrepancy]++

			if loc.row.A != nil {
				item.TotalStockA = item.TotalStockA.Add(loc.row.A.Stock)
				item.TotalReplenA = item.TotalReplenA.Add(loc.row.A.Replenishment)
			}
			if loc.row.B != nil {
				item.TotalStockB = item.TotalStockB.Add(loc.row.B.Stock)
				item.TotalReplenB = item.TotalReplenB.Add(loc.row.B.Replenishment)
			}

			roundLocation(loc.row)
			item.Locations = append(item.Locations, loc.row)
		}

		item.OverallDiscrepancy = Rollup(levels)
		item.TotalReplenA = item.TotalReplenA.Round(OutputPlaces)
		item.TotalReplenB = item.TotalReplenB.Round(OutputPlaces)
		items = append(items, item)
	}

	if e.recorder != nil {
		for level, count := range counts {
			e.recorder.CountLocations(level, count)
		}
	}

	return items
}

func (e *Engine) observeRun(status string, duration time.Duration) {
	if e.recorder != nil {
		e.recorder.ObserveRun(status, duration)
	}
}

func (e *Engine) observeFetch(source models.SourceName, err error, duration time.Duration) {
	if e.recorder != nil {
		e.recorder.ObserveFetch(source, statusOf(err).Status, duration)
	}
}

func statusOf(err error) SourceStatus {
	if err != nil {
		return SourceStatus{Status: StatusFailed, Error: err.Error()}
	}
	return SourceStatus{Status: StatusOK}
}
