package category

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/newsdesk/internal/db"
)

type fakeStore struct {
	mu          sync.Mutex
	bySlug      map[string]db.Category
	nextID      int64
	creates     int
	finds       int
	createDelay time.Duration
	createErr   error

	// createGate, when set, holds CreateCategory until closed or until the
	// store context ends. createStarted is closed on the first create.
	createGate    chan struct{}
	createStarted chan struct{}

	// foreignWinner simulates another process inserting the slug between
	// our lookup and our insert.
	foreignWinner bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{bySlug: make(map[string]db.Category), nextID: 1}
}

func (s *fakeStore) FindCategoryBySlug(_ context.Context, slug string) (*db.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finds++
	row, ok := s.bySlug[slug]
	if !ok {
		return nil, db.ErrNotFound
	}
	return &row, nil
}

func (s *fakeStore) CreateCategory(ctx context.Context, name, slug string) (*db.Category, error) {
	if s.createDelay > 0 {
		time.Sleep(s.createDelay)
	}
	if s.createGate != nil {
		close(s.createStarted)
		select {
		case <-s.createGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.creates++
	if s.createErr != nil {
		return nil, s.createErr
	}
	if s.foreignWinner {
		s.foreignWinner = false
		s.bySlug[slug] = db.Category{CategoryID: 99, Name: name, Slug: slug}
		return nil, fmt.Errorf("create category %q: %w", slug, db.ErrDuplicate)
	}
	if _, exists := s.bySlug[slug]; exists {
		return nil, fmt.Errorf("create category %q: %w", slug, db.ErrDuplicate)
	}
	row := db.Category{CategoryID: s.nextID, Name: name, Slug: slug}
	s.nextID++
	s.bySlug[slug] = row
	return &row, nil
}

func TestResolve_EmptyLabel(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	resolver := NewResolver(store, zerolog.Nop())
	if got := resolver.Resolve(context.Background(), "   "); got != nil {
		t.Fatalf("expected nil id for empty label, got %d", *got)
	}
	if store.finds != 0 {
		t.Fatalf("empty label must not hit the store")
	}
}

func TestResolve_CreatesOnceAndMemoizes(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	resolver := NewResolver(store, zerolog.Nop())
	ctx := context.Background()

	first := resolver.Resolve(ctx, "World News")
	second := resolver.Resolve(ctx, "world news")
	if first == nil || second == nil || *first != *second {
		t.Fatalf("expected the same id for labels sharing a slug, got %v %v", first, second)
	}
	if store.creates != 1 || store.finds != 1 {
		t.Fatalf("expected one find and one create, got finds=%d creates=%d", store.finds, store.creates)
	}
	if resolver.Created() != 1 {
		t.Fatalf("expected created counter 1, got %d", resolver.Created())
	}
}

func TestResolve_ConcurrentSameSlugCreatesOneRow(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.createDelay = 20 * time.Millisecond
	resolver := NewResolver(store, zerolog.Nop())

	const callers = 2
	var (
		wg  sync.WaitGroup
		ids [callers]*int64
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i] = resolver.Resolve(context.Background(), "World News")
		}(i)
	}
	wg.Wait()

	if ids[0] == nil || ids[1] == nil || *ids[0] != *ids[1] {
		t.Fatalf("expected both callers to get one id, got %v %v", ids[0], ids[1])
	}
	if len(store.bySlug) != 1 {
		t.Fatalf("expected exactly one category row, got %d", len(store.bySlug))
	}
	if store.creates != 1 {
		t.Fatalf("expected a single create attempt, got %d", store.creates)
	}
}

func TestResolve_CancelledCallerDoesNotFailConcurrentCaller(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.createGate = make(chan struct{})
	store.createStarted = make(chan struct{})
	resolver := NewResolver(store, zerolog.Nop())

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	first := make(chan *int64, 1)
	go func() { first <- resolver.Resolve(firstCtx, "Science") }()
	<-store.createStarted

	second := make(chan *int64, 1)
	go func() { second <- resolver.Resolve(context.Background(), "Science") }()
	time.Sleep(50 * time.Millisecond)

	cancelFirst()
	if id := <-first; id != nil {
		t.Fatalf("cancelled caller should give up with nil, got %d", *id)
	}

	close(store.createGate)
	id := <-second
	if id == nil {
		t.Fatalf("live caller must still resolve the category")
	}
	if cached := resolver.Resolve(context.Background(), "science"); cached == nil || *cached != *id {
		t.Fatalf("expected memoized id %d, got %v", *id, cached)
	}
	if store.creates != 1 {
		t.Fatalf("expected a single create, got %d", store.creates)
	}
}

func TestResolve_RecoversFromForeignInsert(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.foreignWinner = true
	resolver := NewResolver(store, zerolog.Nop())

	id := resolver.Resolve(context.Background(), "Sports")
	if id == nil || *id != 99 {
		t.Fatalf("expected the winning row id 99, got %v", id)
	}
	if resolver.Created() != 0 {
		t.Fatalf("a lost race must not count as created")
	}
}

func TestResolve_OtherCreateErrorYieldsNil(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.createErr = errors.New("connection refused")
	resolver := NewResolver(store, zerolog.Nop())

	if id := resolver.Resolve(context.Background(), "Politics"); id != nil {
		t.Fatalf("expected nil id on create failure, got %d", *id)
	}

	store.mu.Lock()
	store.createErr = nil
	store.mu.Unlock()
	if id := resolver.Resolve(context.Background(), "Politics"); id == nil {
		t.Fatalf("failures must not be memoized")
	}
}
