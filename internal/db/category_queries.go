package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// FindCategoryBySlug returns ErrNotFound when no category has the slug.
func (p *Pool) FindCategoryBySlug(ctx context.Context, slug string) (*Category, error) {
	if p == nil || p.gdb == nil {
		return nil, fmt.Errorf("database pool is not initialized")
	}

	var category Category
	err := p.gdb.WithContext(ctx).
		Where("slug = ?", strings.TrimSpace(slug)).
		Take(&category).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find category by slug: %w", err)
	}
	return &category, nil
}

// CreateCategory inserts a category. A slug collision is reported as
// ErrDuplicate so callers can re-read the winning row.
func (p *Pool) CreateCategory(ctx context.Context, name, slug string) (*Category, error) {
	if p == nil || p.gdb == nil {
		return nil, fmt.Errorf("database pool is not initialized")
	}

	category := Category{
		Name: strings.TrimSpace(name),
		Slug: strings.TrimSpace(slug),
	}
	if category.Slug == "" {
		return nil, fmt.Errorf("category slug is required")
	}
	if err := p.gdb.WithContext(ctx).Create(&category).Error; err != nil {
		if IsUniqueViolation(err) {
			return nil, fmt.Errorf("create category %q: %w", category.Slug, ErrDuplicate)
		}
		return nil, fmt.Errorf("create category %q: %w", category.Slug, err)
	}
	return &category, nil
}

// ListCategories returns every category ordered by name.
func (p *Pool) ListCategories(ctx context.Context) ([]Category, error) {
	if p == nil || p.gdb == nil {
		return nil, fmt.Errorf("database pool is not initialized")
	}

	categories := make([]Category, 0, 32)
	if err := p.gdb.WithContext(ctx).Order("name ASC, category_id ASC").Find(&categories).Error; err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}
