package query

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"horse.fit/newsdesk/internal/cache"
	"horse.fit/newsdesk/internal/db"
	"horse.fit/newsdesk/internal/filter"
)

type fakeStore struct {
	mu          sync.Mutex
	searches    []db.ArticleSearch
	sourceCalls int
	pref        db.UserPreferenceRecord
	replaced    *db.UserPreferenceRecord
}

func (s *fakeStore) SearchArticles(_ context.Context, search db.ArticleSearch) (*db.ArticlePage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searches = append(s.searches, search)
	return &db.ArticlePage{
		Items:   []db.ArticleListItem{{ArticleID: int64(len(s.searches)), Title: "Story"}},
		Total:   1,
		Page:    search.Page,
		PerPage: search.PerPage,
	}, nil
}

func (s *fakeStore) EnsureUserPreference(_ context.Context, userID int64) (*db.UserPreferenceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pref := s.pref
	pref.UserID = userID
	return &pref, nil
}

func (s *fakeStore) ReplaceUserPreference(_ context.Context, rec db.UserPreferenceRecord) (*db.UserPreferenceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaced = &rec
	return &rec, nil
}

func (s *fakeStore) ListSources(context.Context) ([]db.Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sourceCalls++
	return []db.Source{{Name: "The Guardian", Slug: "the-guardian"}}, nil
}

func (s *fakeStore) ListCategories(context.Context) ([]db.Category, error) {
	return []db.Category{{Name: "Technology", Slug: "technology"}}, nil
}

func (s *fakeStore) searchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.searches)
}

func newService(t *testing.T, store *fakeStore) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	c := cache.NewTaggedCache(cache.NewRedisBackend(client, "test:"), zerolog.Nop())
	return NewService(store, c, time.Hour, time.Hour, zerolog.Nop())
}

func strPtr(s string) *string { return &s }

func TestSearch_CachesPerPage(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	svc := newService(t, store)
	ctx := context.Background()

	spec := filter.FromRequest(&filter.Overrides{SearchTerm: strPtr("climate")})
	if _, err := svc.Search(ctx, spec); err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if _, err := svc.Search(ctx, spec); err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if got := store.searchCount(); got != 1 {
		t.Fatalf("storage searches = %d, want 1 after cache hit", got)
	}

	spec.Page = 2
	page, err := svc.Search(ctx, spec)
	if err != nil {
		t.Fatalf("Search(page 2) error = %v", err)
	}
	if got := store.searchCount(); got != 2 {
		t.Fatalf("storage searches = %d, want 2 for a new page", got)
	}
	if page.Page != 2 {
		t.Fatalf("page = %d, want 2", page.Page)
	}
}

func TestSearch_ParsesDateBounds(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	svc := newService(t, store)

	spec := filter.FromRequest(&filter.Overrides{
		FromDate: strPtr("2025-01-01"),
		ToDate:   strPtr("2025-01-31"),
	})
	if _, err := svc.Search(context.Background(), spec); err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	got := store.searches[0]
	if got.FromDate == nil || !got.FromDate.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("FromDate = %v, want 2025-01-01", got.FromDate)
	}
	if got.ToDate == nil || !got.ToDate.Equal(time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("ToDate = %v, want 2025-01-31", got.ToDate)
	}
}

func TestPersonalizedFeed_MergesPreferencesAndOverrides(t *testing.T) {
	t.Parallel()

	store := &fakeStore{pref: db.UserPreferenceRecord{
		DefaultSort:     "title",
		DefaultOrder:    "asc",
		ArticlesPerPage: 5,
		Sources:         []string{"the-guardian"},
		Authors:         []string{"Jane Doe"},
	}}
	svc := newService(t, store)

	feed, err := svc.PersonalizedFeed(context.Background(), 7, &filter.Overrides{
		Sources: []string{"newsapi", "the-guardian"},
	})
	if err != nil {
		t.Fatalf("PersonalizedFeed() error = %v", err)
	}

	search := store.searches[0]
	if search.Sort != "title" || search.Order != "asc" || search.PerPage != 5 {
		t.Fatalf("search ordering = %s/%s/%d, want title/asc/5", search.Sort, search.Order, search.PerPage)
	}
	if len(search.Sources) != 2 || search.Sources[0] != "the-guardian" || search.Sources[1] != "newsapi" {
		t.Fatalf("search sources = %v, want [the-guardian newsapi]", search.Sources)
	}

	meta := feed.Personalization
	if !meta.Personalized || !meta.FiltersApplied.HasAuthorFilter {
		t.Fatalf("personalization = %+v, want personalized with author filter", meta)
	}
	if meta.FiltersApplied.Categories == nil || len(meta.FiltersApplied.Categories) != 0 {
		t.Fatalf("categories applied = %#v, want empty non-nil list", meta.FiltersApplied.Categories)
	}
	if meta.Preferences.ArticlesPerPage != 5 || meta.Preferences.DefaultSort != "title" {
		t.Fatalf("user preferences = %+v", meta.Preferences)
	}
}

func TestListSources_ServedFromCache(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	svc := newService(t, store)
	ctx := context.Background()

	for range 3 {
		sources, err := svc.ListSources(ctx)
		if err != nil {
			t.Fatalf("ListSources() error = %v", err)
		}
		if len(sources) != 1 || sources[0].Slug != "the-guardian" {
			t.Fatalf("sources = %+v", sources)
		}
	}
	if store.sourceCalls != 1 {
		t.Fatalf("storage calls = %d, want 1", store.sourceCalls)
	}

	if _, err := svc.ListCategories(ctx); err != nil {
		t.Fatalf("ListCategories() error = %v", err)
	}
}

func TestPreferenceUpdate_Validate(t *testing.T) {
	t.Parallel()

	update := PreferenceUpdate{}
	if fields := update.Validate(); len(fields) != 0 {
		t.Fatalf("Validate(empty) = %v, want defaults accepted", fields)
	}
	if update.DefaultSort != filter.DefaultSort || update.DefaultOrder != filter.DefaultOrder || update.ArticlesPerPage != filter.DefaultPerPage {
		t.Fatalf("defaults = %+v", update)
	}

	bad := PreferenceUpdate{DefaultSort: "random", DefaultOrder: "sideways", ArticlesPerPage: 500}
	fields := bad.Validate()
	for _, name := range []string{"default_sort", "default_order", "articles_per_page"} {
		if _, ok := fields[name]; !ok {
			t.Fatalf("Validate() missing %s in %v", name, fields)
		}
	}
}

func TestReplacePreferences_PassesAllFields(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	svc := newService(t, store)

	update := PreferenceUpdate{
		DefaultSort:     "created_at",
		DefaultOrder:    "asc",
		ArticlesPerPage: 50,
		Sources:         []string{"nytimes"},
		Categories:      []string{"arts"},
	}
	got, err := svc.ReplacePreferences(context.Background(), 3, update)
	if err != nil {
		t.Fatalf("ReplacePreferences() error = %v", err)
	}
	if got.UserID != 3 || store.replaced == nil || store.replaced.ArticlesPerPage != 50 {
		t.Fatalf("replaced = %+v", store.replaced)
	}
	if len(store.replaced.Categories) != 1 || store.replaced.Categories[0] != "arts" {
		t.Fatalf("categories = %v", store.replaced.Categories)
	}
}
