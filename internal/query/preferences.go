package query

import (
	"context"
	"fmt"
	"strings"

	"horse.fit/newsdesk/internal/db"
	"horse.fit/newsdesk/internal/filter"
)

// PreferenceUpdate is a full replacement of a user's preferences.
type PreferenceUpdate struct {
	DefaultSort     string   `json:"default_sort"`
	DefaultOrder    string   `json:"default_order"`
	ArticlesPerPage int      `json:"articles_per_page"`
	Sources         []string `json:"preferred_sources"`
	Categories      []string `json:"preferred_categories"`
	Authors         []string `json:"preferred_authors"`
}

// Validate fills defaults and returns per-field messages for bad values.
func (u *PreferenceUpdate) Validate() map[string]string {
	fields := make(map[string]string)

	u.DefaultSort = strings.TrimSpace(u.DefaultSort)
	if u.DefaultSort == "" {
		u.DefaultSort = filter.DefaultSort
	}
	switch u.DefaultSort {
	case "published_at", "created_at", "title":
	default:
		fields["default_sort"] = "The default_sort must be one of: published_at, created_at, title."
	}

	u.DefaultOrder = strings.ToLower(strings.TrimSpace(u.DefaultOrder))
	if u.DefaultOrder == "" {
		u.DefaultOrder = filter.DefaultOrder
	}
	if u.DefaultOrder != "asc" && u.DefaultOrder != "desc" {
		fields["default_order"] = "The default_order must be either asc or desc."
	}

	if u.ArticlesPerPage == 0 {
		u.ArticlesPerPage = filter.DefaultPerPage
	}
	if u.ArticlesPerPage < 1 || u.ArticlesPerPage > filter.MaxPerPage {
		fields["articles_per_page"] = fmt.Sprintf("The articles_per_page must be between 1 and %d.", filter.MaxPerPage)
	}
	return fields
}

// Preferences returns the user's preferences, creating defaults on first use.
func (s *Service) Preferences(ctx context.Context, userID int64) (*db.UserPreferenceRecord, error) {
	pref, err := s.store.EnsureUserPreference(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load preferences: %w", err)
	}
	return pref, nil
}

// ReplacePreferences overwrites every preference field, including the three
// preference sets. Callers validate first.
func (s *Service) ReplacePreferences(ctx context.Context, userID int64, update PreferenceUpdate) (*db.UserPreferenceRecord, error) {
	pref, err := s.store.ReplaceUserPreference(ctx, db.UserPreferenceRecord{
		UserID:          userID,
		DefaultSort:     update.DefaultSort,
		DefaultOrder:    update.DefaultOrder,
		ArticlesPerPage: update.ArticlesPerPage,
		Sources:         update.Sources,
		Categories:      update.Categories,
		Authors:         update.Authors,
	})
	if err != nil {
		return nil, fmt.Errorf("replace preferences: %w", err)
	}
	return pref, nil
}
