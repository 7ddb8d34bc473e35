package db

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm/clause"
)

// UpsertSources seeds the provider table keyed by slug. Existing rows get
// their name, api identifier and base url refreshed.
func (p *Pool) UpsertSources(ctx context.Context, sources []Source) ([]Source, error) {
	if p == nil || p.gdb == nil {
		return nil, fmt.Errorf("database pool is not initialized")
	}
	if len(sources) == 0 {
		return nil, nil
	}

	rows := make([]Source, 0, len(sources))
	for _, source := range sources {
		slug := strings.TrimSpace(source.Slug)
		if slug == "" {
			return nil, fmt.Errorf("source slug is required")
		}
		rows = append(rows, Source{
			Name:          strings.TrimSpace(source.Name),
			Slug:          slug,
			APIIdentifier: strings.TrimSpace(source.APIIdentifier),
			BaseURL:       strings.TrimSpace(source.BaseURL),
		})
	}

	err := p.gdb.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "slug"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "api_identifier", "base_url", "updated_at"}),
	}).Create(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("upsert sources: %w", err)
	}
	return rows, nil
}

// ListSources returns every configured source ordered by name.
func (p *Pool) ListSources(ctx context.Context) ([]Source, error) {
	if p == nil || p.gdb == nil {
		return nil, fmt.Errorf("database pool is not initialized")
	}

	sources := make([]Source, 0, 8)
	if err := p.gdb.WithContext(ctx).Order("name ASC, source_id ASC").Find(&sources).Error; err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	return sources, nil
}
