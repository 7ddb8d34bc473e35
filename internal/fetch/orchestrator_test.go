package fetch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/goleak"

	"horse.fit/newsdesk/internal/cache"
	"horse.fit/newsdesk/internal/db"
	"horse.fit/newsdesk/internal/ingest"
	"horse.fit/newsdesk/internal/provider"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type adapterFunc func(ctx context.Context) ([]ingest.CanonicalRecord, error)

func (f adapterFunc) Fetch(ctx context.Context) ([]ingest.CanonicalRecord, error) {
	return f(ctx)
}

func returning(records ...ingest.CanonicalRecord) provider.Adapter {
	return adapterFunc(func(context.Context) ([]ingest.CanonicalRecord, error) {
		return records, nil
	})
}

func failing(message string) provider.Adapter {
	return adapterFunc(func(context.Context) ([]ingest.CanonicalRecord, error) {
		return nil, errors.New(message)
	})
}

// countingPipeline reports every record as inserted.
type countingPipeline struct {
	mu    sync.Mutex
	calls int
}

func (p *countingPipeline) Process(_ context.Context, records []ingest.CanonicalRecord) ingest.Result {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	return ingest.Result{Inserted: len(records)}
}

type recorder struct {
	mu   sync.Mutex
	rows []db.IngestRun
	err  error
}

func (r *recorder) RecordIngestRuns(_ context.Context, runs []db.IngestRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, runs...)
	return r.err
}

type invalidator struct {
	mu     sync.Mutex
	scopes []cache.Scope
}

func (i *invalidator) Invalidate(_ context.Context, scope cache.Scope) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.scopes = append(i.scopes, scope)
	return nil
}

type categoryCounter struct{ n atomic.Int64 }

func (c *categoryCounter) Created() int64 { return c.n.Load() }

func rec(id string) ingest.CanonicalRecord {
	return ingest.CanonicalRecord{ExternalID: id, Title: id, Slug: id, URL: "https://" + id + ".test", SourceID: 1}
}

func TestFetchAll_IsolatesFailingAdapter(t *testing.T) {
	t.Parallel()

	pipeline := &countingPipeline{}
	o := NewOrchestrator(pipeline, Options{Concurrency: 2}, zerolog.Nop())

	outcomes := o.FetchAll(context.Background(), map[string]provider.Adapter{
		"adapterA": returning(rec("a1"), rec("a2")),
		"adapterB": failing("upstream timeout"),
	})

	if len(outcomes) != 2 {
		t.Fatalf("expected an outcome per adapter, got %d", len(outcomes))
	}
	a := outcomes["adapterA"]
	if !a.Success || a.Fetched != 2 || a.Inserted != 2 {
		t.Fatalf("adapterA must be unaffected, got %+v", a)
	}
	if a.Message != "Inserted: 2, Updated: 0, Failed: 0, Skipped: 0" {
		t.Fatalf("unexpected summary message %q", a.Message)
	}
	b := outcomes["adapterB"]
	if b.Success || b.Fetched != 0 || b.Message != "upstream timeout" {
		t.Fatalf("adapterB must report its error verbatim, got %+v", b)
	}
	if !AnyFailed(outcomes) {
		t.Fatalf("expected AnyFailed to be true")
	}
}

func TestFetchAll_ManyFailuresNeverReduceOthers(t *testing.T) {
	t.Parallel()

	adapters := make(map[string]provider.Adapter)
	for i := 0; i < 6; i++ {
		adapters[fmt.Sprintf("bad-%d", i)] = failing("boom")
	}
	for i := 0; i < 4; i++ {
		adapters[fmt.Sprintf("good-%d", i)] = returning(rec(fmt.Sprintf("g%d", i)))
	}

	outcomes := NewOrchestrator(&countingPipeline{}, Options{Concurrency: 3}, zerolog.Nop()).FetchAll(context.Background(), adapters)

	totals := Summarize(outcomes)
	if totals.Sources != 10 || totals.FailedSources != 6 || totals.Inserted != 4 {
		t.Fatalf("unexpected totals %+v", totals)
	}
}

func TestFetchAll_EmptyResultSkipsPipeline(t *testing.T) {
	t.Parallel()

	pipeline := &countingPipeline{}
	outcomes := NewOrchestrator(pipeline, Options{}, zerolog.Nop()).FetchAll(context.Background(), map[string]provider.Adapter{
		"quiet": returning(),
	})

	quiet := outcomes["quiet"]
	if !quiet.Success || quiet.Fetched != 0 || quiet.Message != NoArticlesMessage {
		t.Fatalf("unexpected empty outcome %+v", quiet)
	}
	if pipeline.calls != 0 {
		t.Fatalf("pipeline must not run for an empty fetch")
	}
	if quiet.Status() != db.IngestRunEmpty {
		t.Fatalf("unexpected status %q", quiet.Status())
	}
}

func TestFetchAll_RecoversAdapterPanic(t *testing.T) {
	t.Parallel()

	outcomes := NewOrchestrator(&countingPipeline{}, Options{Concurrency: 2}, zerolog.Nop()).FetchAll(context.Background(), map[string]provider.Adapter{
		"panicky": adapterFunc(func(context.Context) ([]ingest.CanonicalRecord, error) {
			panic("nil map write")
		}),
		"steady": returning(rec("s1")),
	})

	if outcomes["panicky"].Success || outcomes["panicky"].Message != "panic: nil map write" {
		t.Fatalf("unexpected panic outcome %+v", outcomes["panicky"])
	}
	if !outcomes["steady"].Success || outcomes["steady"].Inserted != 1 {
		t.Fatalf("steady adapter must be unaffected, got %+v", outcomes["steady"])
	}
}

func TestFetchAll_RespectsConcurrencyLimit(t *testing.T) {
	t.Parallel()

	var (
		active  atomic.Int32
		highest atomic.Int32
	)
	slow := adapterFunc(func(context.Context) ([]ingest.CanonicalRecord, error) {
		now := active.Add(1)
		for {
			peak := highest.Load()
			if now <= peak || highest.CompareAndSwap(peak, now) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		active.Add(-1)
		return nil, nil
	})

	adapters := make(map[string]provider.Adapter)
	for i := 0; i < 8; i++ {
		adapters[fmt.Sprintf("s%d", i)] = slow
	}
	NewOrchestrator(&countingPipeline{}, Options{Concurrency: 2}, zerolog.Nop()).FetchAll(context.Background(), adapters)

	if highest.Load() > 2 {
		t.Fatalf("expected at most 2 concurrent fetches, saw %d", highest.Load())
	}
}

func TestFetchAndStoreAll_RecordsLedgerAndInvalidates(t *testing.T) {
	t.Parallel()

	runs := &recorder{}
	caches := &invalidator{}
	categories := &categoryCounter{}
	pipeline := processorFunc(func(_ context.Context, records []ingest.CanonicalRecord) ingest.Result {
		categories.n.Add(1)
		return ingest.Result{Inserted: len(records), Errors: []ingest.BatchError{{Batch: 0, Error: "partial"}}}
	})

	o := NewOrchestrator(pipeline, Options{
		Concurrency: 2,
		Adapters: func(context.Context) (map[string]provider.Adapter, error) {
			return map[string]provider.Adapter{
				"guardian": returning(rec("g1")),
				"nyt":      failing("401 unauthorized"),
			}, nil
		},
		Runs:       runs,
		Cache:      caches,
		Categories: categories,
	}, zerolog.Nop())

	outcomes, err := o.FetchAndStoreAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !outcomes["guardian"].Success || outcomes["nyt"].Success {
		t.Fatalf("unexpected outcomes %+v", outcomes)
	}

	if len(runs.rows) != 2 {
		t.Fatalf("expected one ledger row per source, got %d", len(runs.rows))
	}
	if runs.rows[0].RunUUID == "" || runs.rows[0].RunUUID != runs.rows[1].RunUUID {
		t.Fatalf("ledger rows of one run must share a run uuid")
	}
	byName := map[string]db.IngestRun{}
	for _, row := range runs.rows {
		byName[row.Source] = row
	}
	if byName["nyt"].Status != db.IngestRunFailed || byName["nyt"].ErrorMessage == nil || *byName["nyt"].ErrorMessage != "401 unauthorized" {
		t.Fatalf("unexpected failed ledger row %+v", byName["nyt"])
	}
	if byName["guardian"].Status != db.IngestRunCompleted || len(byName["guardian"].BatchErrors) == 0 {
		t.Fatalf("unexpected completed ledger row %+v", byName["guardian"])
	}

	if len(caches.scopes) != 2 || caches.scopes[0] != cache.ScopeArticles || caches.scopes[1] != cache.ScopeCategories {
		t.Fatalf("expected articles then categories invalidation, got %v", caches.scopes)
	}
}

func TestFetchAndStoreAll_NoChangesNoInvalidation(t *testing.T) {
	t.Parallel()

	runs := &recorder{err: errors.New("ledger table missing")}
	caches := &invalidator{}
	o := NewOrchestrator(&countingPipeline{}, Options{
		Adapters: func(context.Context) (map[string]provider.Adapter, error) {
			return map[string]provider.Adapter{"quiet": returning()}, nil
		},
		Runs:  runs,
		Cache: caches,
	}, zerolog.Nop())

	outcomes, err := o.FetchAndStoreAll(context.Background())
	if err != nil {
		t.Fatalf("ledger failures must not fail the run, got %v", err)
	}
	if !outcomes["quiet"].Success {
		t.Fatalf("unexpected outcome %+v", outcomes["quiet"])
	}
	if len(caches.scopes) != 0 {
		t.Fatalf("expected no invalidation, got %v", caches.scopes)
	}
}

func TestFetchAndStoreAll_AdapterResolutionError(t *testing.T) {
	t.Parallel()

	o := NewOrchestrator(&countingPipeline{}, Options{
		Adapters: func(context.Context) (map[string]provider.Adapter, error) {
			return nil, errors.New("database unavailable")
		},
	}, zerolog.Nop())

	if _, err := o.FetchAndStoreAll(context.Background()); err == nil {
		t.Fatalf("expected resolution error")
	}
}

type processorFunc func(ctx context.Context, records []ingest.CanonicalRecord) ingest.Result

func (f processorFunc) Process(ctx context.Context, records []ingest.CanonicalRecord) ingest.Result {
	return f(ctx, records)
}
