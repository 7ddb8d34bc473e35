// Package query serves article searches, personalized feeds and metadata
// lists through the tagged cache.
package query

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/newsdesk/internal/cache"
	"horse.fit/newsdesk/internal/db"
	"horse.fit/newsdesk/internal/filter"
	"horse.fit/newsdesk/internal/globaltime"
)

type Store interface {
	SearchArticles(ctx context.Context, search db.ArticleSearch) (*db.ArticlePage, error)
	EnsureUserPreference(ctx context.Context, userID int64) (*db.UserPreferenceRecord, error)
	ReplaceUserPreference(ctx context.Context, rec db.UserPreferenceRecord) (*db.UserPreferenceRecord, error)
	ListSources(ctx context.Context) ([]db.Source, error)
	ListCategories(ctx context.Context) ([]db.Category, error)
}

type Service struct {
	store       Store
	cache       *cache.TaggedCache
	queryTTL    time.Duration
	metadataTTL time.Duration
	logger      zerolog.Logger
}

func NewService(store Store, c *cache.TaggedCache, queryTTL, metadataTTL time.Duration, logger zerolog.Logger) *Service {
	return &Service{
		store:       store,
		cache:       c,
		queryTTL:    queryTTL,
		metadataTTL: metadataTTL,
		logger:      logger,
	}
}

// Search runs spec against storage, cached per filter combination and page.
func (s *Service) Search(ctx context.Context, spec filter.Specification) (*db.ArticlePage, error) {
	key := filter.PageKey(spec)
	page, err := cache.RememberQuery(ctx, s.cache, key, s.queryTTL, func(ctx context.Context) (*db.ArticlePage, error) {
		return s.store.SearchArticles(ctx, toArticleSearch(spec))
	})
	if err != nil {
		return nil, fmt.Errorf("search articles: %w", err)
	}
	return page, nil
}

// Personalization describes how a feed was personalized.
type Personalization struct {
	Personalized   bool            `json:"personalized"`
	FiltersApplied FiltersApplied  `json:"filters_applied"`
	Preferences    PreferenceBrief `json:"user_preferences"`
}

type FiltersApplied struct {
	Sources         []string `json:"sources"`
	Categories      []string `json:"categories"`
	HasAuthorFilter bool     `json:"has_author_filter"`
}

type PreferenceBrief struct {
	ArticlesPerPage int    `json:"articles_per_page"`
	DefaultSort     string `json:"default_sort"`
	DefaultOrder    string `json:"default_order"`
}

type Feed struct {
	Page            *db.ArticlePage `json:"page"`
	Personalization Personalization `json:"personalization"`
}

// PersonalizedFeed builds the user's specification from stored preferences
// plus overrides and searches with it.
func (s *Service) PersonalizedFeed(ctx context.Context, userID int64, overrides *filter.Overrides) (*Feed, error) {
	pref, err := s.store.EnsureUserPreference(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load preferences: %w", err)
	}

	spec := filter.Build(PreferenceFromRecord(pref), overrides)
	page, err := s.Search(ctx, spec)
	if err != nil {
		return nil, err
	}

	return &Feed{
		Page: page,
		Personalization: Personalization{
			Personalized: true,
			FiltersApplied: FiltersApplied{
				Sources:         nonNil(spec.Sources),
				Categories:      nonNil(spec.Categories),
				HasAuthorFilter: len(spec.PreferredAuthors) > 0,
			},
			Preferences: PreferenceBrief{
				ArticlesPerPage: pref.ArticlesPerPage,
				DefaultSort:     pref.DefaultSort,
				DefaultOrder:    pref.DefaultOrder,
			},
		},
	}, nil
}

func (s *Service) ListSources(ctx context.Context) ([]db.Source, error) {
	sources, err := cache.RememberMetadata(ctx, s.cache, cache.ScopeSources, s.metadataTTL, s.store.ListSources)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	return sources, nil
}

func (s *Service) ListCategories(ctx context.Context) ([]db.Category, error) {
	categories, err := cache.RememberMetadata(ctx, s.cache, cache.ScopeCategories, s.metadataTTL, s.store.ListCategories)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

// PreferenceFromRecord adapts a stored preference to the filter builder.
func PreferenceFromRecord(rec *db.UserPreferenceRecord) filter.Preference {
	if rec == nil {
		return filter.Preference{}
	}
	return filter.Preference{
		DefaultSort:     rec.DefaultSort,
		DefaultOrder:    rec.DefaultOrder,
		ArticlesPerPage: rec.ArticlesPerPage,
		Sources:         rec.Sources,
		Categories:      rec.Categories,
		Authors:         rec.Authors,
	}
}

func toArticleSearch(spec filter.Specification) db.ArticleSearch {
	search := db.ArticleSearch{
		SearchTerm:       spec.SearchTerm,
		Sources:          spec.Sources,
		Categories:       spec.Categories,
		Author:           spec.Author,
		PreferredAuthors: spec.PreferredAuthors,
		Sort:             spec.Sort,
		Order:            spec.Order,
		PerPage:          spec.PerPage,
		Page:             spec.Page,
	}
	if spec.FromDate != nil {
		if day, err := globaltime.ParseDay(*spec.FromDate); err == nil {
			search.FromDate = &day
		}
	}
	if spec.ToDate != nil {
		if day, err := globaltime.ParseDay(*spec.ToDate); err == nil {
			search.ToDate = &day
		}
	}
	return search
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
