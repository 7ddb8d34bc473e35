package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"horse.fit/newsdesk/internal/globaltime"
)

const (
	DefaultPreferenceSort    = "published_at"
	DefaultPreferenceOrder   = "desc"
	DefaultPreferencePerPage = 20
)

// UserPreferenceRecord is a user's stored defaults plus owned preference sets.
type UserPreferenceRecord struct {
	UserID          int64    `json:"user_id"`
	DefaultSort     string   `json:"default_sort"`
	DefaultOrder    string   `json:"default_order"`
	ArticlesPerPage int      `json:"articles_per_page"`
	Sources         []string `json:"preferred_sources"`
	Categories      []string `json:"preferred_categories"`
	Authors         []string `json:"preferred_authors"`
}

// EnsureUserPreference returns the user's preferences, creating the default
// row on first access.
func (p *Pool) EnsureUserPreference(ctx context.Context, userID int64) (*UserPreferenceRecord, error) {
	if p == nil || p.gdb == nil {
		return nil, fmt.Errorf("database pool is not initialized")
	}
	if userID <= 0 {
		return nil, fmt.Errorf("user id must be > 0")
	}

	row := UserPreference{
		UserID:          userID,
		DefaultSort:     DefaultPreferenceSort,
		DefaultOrder:    DefaultPreferenceOrder,
		ArticlesPerPage: DefaultPreferencePerPage,
	}
	err := p.gdb.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(&row).Error
	if err != nil {
		return nil, fmt.Errorf("ensure user preference row: %w", err)
	}

	return p.GetUserPreference(ctx, userID)
}

// GetUserPreference loads the preference row and its sets. It returns
// ErrNotFound when the user has no row yet.
func (p *Pool) GetUserPreference(ctx context.Context, userID int64) (*UserPreferenceRecord, error) {
	if p == nil || p.gdb == nil {
		return nil, fmt.Errorf("database pool is not initialized")
	}

	gdb := p.gdb.WithContext(ctx)

	var row UserPreference
	if err := gdb.Where("user_id = ?", userID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query user preference: %w", err)
	}

	rec := &UserPreferenceRecord{
		UserID:          row.UserID,
		DefaultSort:     orDefault(row.DefaultSort, DefaultPreferenceSort),
		DefaultOrder:    orDefault(row.DefaultOrder, DefaultPreferenceOrder),
		ArticlesPerPage: row.ArticlesPerPage,
	}
	if rec.ArticlesPerPage <= 0 {
		rec.ArticlesPerPage = DefaultPreferencePerPage
	}

	var err error
	if rec.Sources, err = pluckPreferenceSet(gdb, &UserPreferredSource{}, "source_slug", userID); err != nil {
		return nil, err
	}
	if rec.Categories, err = pluckPreferenceSet(gdb, &UserPreferredCategory{}, "category_slug", userID); err != nil {
		return nil, err
	}
	if rec.Authors, err = pluckPreferenceSet(gdb, &UserPreferredAuthor{}, "author_name", userID); err != nil {
		return nil, err
	}
	return rec, nil
}

// ReplaceUserPreference overwrites defaults and fully replaces the three
// preference sets in one transaction.
func (p *Pool) ReplaceUserPreference(ctx context.Context, rec UserPreferenceRecord) (*UserPreferenceRecord, error) {
	if p == nil || p.gdb == nil {
		return nil, fmt.Errorf("database pool is not initialized")
	}
	if rec.UserID <= 0 {
		return nil, fmt.Errorf("user id must be > 0")
	}

	err := p.gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := UserPreference{
			UserID:          rec.UserID,
			DefaultSort:     rec.DefaultSort,
			DefaultOrder:    rec.DefaultOrder,
			ArticlesPerPage: rec.ArticlesPerPage,
			UpdatedAt:       globaltime.UTC(),
		}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"default_sort", "default_order", "articles_per_page", "updated_at"}),
		}).Create(&row).Error
		if err != nil {
			return fmt.Errorf("upsert user preference: %w", err)
		}

		sources := make([]UserPreferredSource, 0, len(rec.Sources))
		for i, slug := range distinctValues(rec.Sources) {
			sources = append(sources, UserPreferredSource{UserID: rec.UserID, SourceSlug: slug, Position: i})
		}
		if err := replacePreferenceSet(tx, &UserPreferredSource{}, rec.UserID, sources); err != nil {
			return err
		}

		categories := make([]UserPreferredCategory, 0, len(rec.Categories))
		for i, slug := range distinctValues(rec.Categories) {
			categories = append(categories, UserPreferredCategory{UserID: rec.UserID, CategorySlug: slug, Position: i})
		}
		if err := replacePreferenceSet(tx, &UserPreferredCategory{}, rec.UserID, categories); err != nil {
			return err
		}

		authors := make([]UserPreferredAuthor, 0, len(rec.Authors))
		for i, name := range distinctValues(rec.Authors) {
			authors = append(authors, UserPreferredAuthor{UserID: rec.UserID, AuthorName: name, Position: i})
		}
		return replacePreferenceSet(tx, &UserPreferredAuthor{}, rec.UserID, authors)
	})
	if err != nil {
		return nil, err
	}

	return p.GetUserPreference(ctx, rec.UserID)
}

func pluckPreferenceSet(gdb *gorm.DB, model any, column string, userID int64) ([]string, error) {
	values := make([]string, 0, 8)
	err := gdb.Model(model).
		Where("user_id = ?", userID).
		Order("position ASC").
		Order(column + " ASC").
		Pluck(column, &values).Error
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", column, err)
	}
	return values, nil
}

// replacePreferenceSet deletes every row of model owned by userID and
// inserts rows in their place.
func replacePreferenceSet[T any](tx *gorm.DB, model *T, userID int64, rows []T) error {
	if err := tx.Where("user_id = ?", userID).Delete(model).Error; err != nil {
		return fmt.Errorf("clear preference set: %w", err)
	}
	if len(rows) == 0 {
		return nil
	}
	if err := tx.Create(&rows).Error; err != nil {
		return fmt.Errorf("insert preference set: %w", err)
	}
	return nil
}

// distinctValues trims, drops blanks and keeps the first occurrence.
func distinctValues(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, raw := range values {
		value := strings.TrimSpace(raw)
		if value == "" {
			continue
		}
		if _, exists := seen[value]; exists {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}

func orDefault(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}
