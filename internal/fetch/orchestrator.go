// Package fetch runs every configured provider and feeds its records through
// the ingestion pipeline, isolating failures per source.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"horse.fit/newsdesk/internal/cache"
	"horse.fit/newsdesk/internal/db"
	"horse.fit/newsdesk/internal/globaltime"
	"horse.fit/newsdesk/internal/ingest"
	"horse.fit/newsdesk/internal/provider"
)

const NoArticlesMessage = "No articles available"

// Outcome is the per-source report of one run.
type Outcome struct {
	Success  bool                `json:"success"`
	Fetched  int                 `json:"fetched"`
	Inserted int                 `json:"inserted"`
	Updated  int                 `json:"updated"`
	Failed   int                 `json:"failed"`
	Skipped  int                 `json:"skipped"`
	Message  string              `json:"message"`
	Errors   []ingest.BatchError `json:"errors,omitempty"`
}

// Status is the ledger status for the outcome.
func (o Outcome) Status() string {
	switch {
	case !o.Success:
		return db.IngestRunFailed
	case o.Fetched == 0:
		return db.IngestRunEmpty
	default:
		return db.IngestRunCompleted
	}
}

type Processor interface {
	Process(ctx context.Context, records []ingest.CanonicalRecord) ingest.Result
}

// AdapterSource resolves the adapters for one run, keyed by source slug.
type AdapterSource func(ctx context.Context) (map[string]provider.Adapter, error)

type RunRecorder interface {
	RecordIngestRuns(ctx context.Context, runs []db.IngestRun) error
}

type Invalidator interface {
	Invalidate(ctx context.Context, scope cache.Scope) error
}

// CategoryCounter reports how many categories were created so far.
type CategoryCounter interface {
	Created() int64
}

type Options struct {
	Concurrency int
	Adapters    AdapterSource
	Runs        RunRecorder
	Cache       Invalidator
	Categories  CategoryCounter
}

type Orchestrator struct {
	pipeline    Processor
	concurrency int
	adapters    AdapterSource
	runs        RunRecorder
	cache       Invalidator
	categories  CategoryCounter
	logger      zerolog.Logger
}

func NewOrchestrator(pipeline Processor, opts Options, logger zerolog.Logger) *Orchestrator {
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Orchestrator{
		pipeline:    pipeline,
		concurrency: concurrency,
		adapters:    opts.Adapters,
		runs:        opts.Runs,
		cache:       opts.Cache,
		categories:  opts.Categories,
		logger:      logger,
	}
}

type sourceRun struct {
	name       string
	outcome    Outcome
	startedAt  time.Time
	finishedAt time.Time
}

// FetchAll runs every adapter and always returns one outcome per adapter.
// A failing or panicking adapter only affects its own entry.
func (o *Orchestrator) FetchAll(ctx context.Context, adapters map[string]provider.Adapter) map[string]Outcome {
	runs := o.runAll(ctx, adapters)
	outcomes := make(map[string]Outcome, len(runs))
	for _, run := range runs {
		outcomes[run.name] = run.outcome
	}
	return outcomes
}

// FetchAndStoreAll resolves the configured adapters, runs them, writes the
// ingest ledger and invalidates the caches the run made stale. The error is
// reserved for failing to resolve adapters at all.
func (o *Orchestrator) FetchAndStoreAll(ctx context.Context) (map[string]Outcome, error) {
	if o.adapters == nil {
		return nil, fmt.Errorf("adapter source is not configured")
	}
	adapters, err := o.adapters(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve adapters: %w", err)
	}

	runUUID := uuid.NewString()
	createdBefore := o.categoriesCreated()

	runs := o.runAll(ctx, adapters)

	outcomes := make(map[string]Outcome, len(runs))
	changed := 0
	for _, run := range runs {
		outcomes[run.name] = run.outcome
		changed += run.outcome.Inserted + run.outcome.Updated
	}

	o.recordRuns(ctx, runUUID, runs)

	if changed > 0 {
		o.invalidate(ctx, cache.ScopeArticles)
	}
	if o.categoriesCreated() > createdBefore {
		o.invalidate(ctx, cache.ScopeCategories)
	}

	totals := Summarize(outcomes)
	o.logger.Info().
		Str("run_uuid", runUUID).
		Int("sources", totals.Sources).
		Int("failed_sources", totals.FailedSources).
		Int("fetched", totals.Fetched).
		Int("inserted", totals.Inserted).
		Int("updated", totals.Updated).
		Int("failed", totals.Failed).
		Int("skipped", totals.Skipped).
		Msg("fetch run finished")

	return outcomes, nil
}

func (o *Orchestrator) runAll(ctx context.Context, adapters map[string]provider.Adapter) []sourceRun {
	names := make([]string, 0, len(adapters))
	for name := range adapters {
		names = append(names, name)
	}
	sort.Strings(names)

	runs := make([]sourceRun, len(names))
	g := new(errgroup.Group)
	g.SetLimit(o.concurrency)
	for i, name := range names {
		adapter := adapters[name]
		g.Go(func() error {
			started := globaltime.UTC()
			outcome := o.fetchOne(ctx, name, adapter)
			runs[i] = sourceRun{
				name:       name,
				outcome:    outcome,
				startedAt:  started,
				finishedAt: globaltime.UTC(),
			}
			return nil
		})
	}
	_ = g.Wait()
	return runs
}

func (o *Orchestrator) fetchOne(ctx context.Context, name string, adapter provider.Adapter) (outcome Outcome) {
	logger := o.logger.With().Str("source", name).Logger()
	defer func() {
		if recovered := recover(); recovered != nil {
			logger.Error().
				Interface("panic", recovered).
				Bytes("stack", debug.Stack()).
				Msg("source fetch panicked")
			outcome = Outcome{Success: false, Message: fmt.Sprintf("panic: %v", recovered)}
		}
	}()

	if adapter == nil {
		return Outcome{Success: false, Message: "adapter is not configured"}
	}

	records, err := adapter.Fetch(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("source fetch failed")
		return Outcome{Success: false, Message: err.Error()}
	}
	if len(records) == 0 {
		logger.Info().Msg("source returned no articles")
		return Outcome{Success: true, Message: NoArticlesMessage}
	}

	result := o.pipeline.Process(ctx, records)
	outcome = Outcome{
		Success:  true,
		Fetched:  len(records),
		Inserted: result.Inserted,
		Updated:  result.Updated,
		Failed:   result.Failed,
		Skipped:  result.Skipped,
		Errors:   result.Errors,
		Message: fmt.Sprintf("Inserted: %d, Updated: %d, Failed: %d, Skipped: %d",
			result.Inserted, result.Updated, result.Failed, result.Skipped),
	}
	logger.Info().
		Int("fetched", outcome.Fetched).
		Int("inserted", outcome.Inserted).
		Int("updated", outcome.Updated).
		Int("failed", outcome.Failed).
		Int("skipped", outcome.Skipped).
		Msg("source processed")
	return outcome
}

func (o *Orchestrator) recordRuns(ctx context.Context, runUUID string, runs []sourceRun) {
	if o.runs == nil || len(runs) == 0 {
		return
	}

	rows := make([]db.IngestRun, 0, len(runs))
	for _, run := range runs {
		row := db.IngestRun{
			RunUUID:    runUUID,
			Source:     run.name,
			Status:     run.outcome.Status(),
			StartedAt:  run.startedAt,
			FinishedAt: run.finishedAt,
			Fetched:    run.outcome.Fetched,
			Inserted:   run.outcome.Inserted,
			Updated:    run.outcome.Updated,
			Failed:     run.outcome.Failed,
			Skipped:    run.outcome.Skipped,
		}
		if !run.outcome.Success {
			message := run.outcome.Message
			row.ErrorMessage = &message
		}
		if len(run.outcome.Errors) > 0 {
			if encoded, err := json.Marshal(run.outcome.Errors); err == nil {
				row.BatchErrors = encoded
			}
		}
		rows = append(rows, row)
	}

	if err := o.runs.RecordIngestRuns(ctx, rows); err != nil {
		o.logger.Error().Err(err).Str("run_uuid", runUUID).Msg("record ingest runs failed")
	}
}

func (o *Orchestrator) invalidate(ctx context.Context, scope cache.Scope) {
	if o.cache == nil {
		return
	}
	if err := o.cache.Invalidate(ctx, scope); err != nil {
		o.logger.Warn().Err(err).Str("scope", string(scope)).Msg("cache invalidation failed")
	}
}

func (o *Orchestrator) categoriesCreated() int64 {
	if o.categories == nil {
		return 0
	}
	return o.categories.Created()
}
