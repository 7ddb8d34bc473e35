package ingest

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"horse.fit/newsdesk/internal/db"
	"horse.fit/newsdesk/internal/globaltime"
)

// CategoryResolver maps a free text label to a category id. A nil result
// stores the article without a category.
type CategoryResolver interface {
	Resolve(ctx context.Context, label string) *int64
}

type Result struct {
	Inserted int          `json:"inserted"`
	Updated  int          `json:"updated"`
	Failed   int          `json:"failed"`
	Skipped  int          `json:"skipped"`
	Errors   []BatchError `json:"errors,omitempty"`
}

// Pipeline deduplicates, validates, resolves categories and upserts.
type Pipeline struct {
	store      *BatchStore
	categories CategoryResolver
	logger     zerolog.Logger
}

func NewPipeline(store *BatchStore, categories CategoryResolver, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		store:      store,
		categories: categories,
		logger:     logger,
	}
}

func (p *Pipeline) Process(ctx context.Context, records []CanonicalRecord) Result {
	var result Result
	if len(records) == 0 {
		return result
	}

	unique, removed := Deduplicate(records)
	result.Skipped += removed

	valid := make([]CanonicalRecord, 0, len(unique))
	for _, record := range unique {
		if err := ValidateRecord(record); err != nil {
			result.Skipped++
			p.logger.Debug().
				Err(err).
				Str("merchant_id", record.ExternalID).
				Int64("source_id", record.SourceID).
				Msg("skipping invalid article")
			continue
		}
		valid = append(valid, record)
	}
	if len(valid) == 0 {
		return result
	}

	fetchedAt := globaltime.UTC()
	rows := make([]db.ArticleUpsert, 0, len(valid))
	for _, record := range valid {
		rows = append(rows, db.ArticleUpsert{
			MerchantID:  record.ExternalID,
			Title:       strings.TrimSpace(record.Title),
			Slug:        record.Slug,
			Description: record.Description,
			Content:     record.Content,
			Author:      record.Author,
			URL:         strings.TrimSpace(record.URL),
			Thumbnail:   record.Thumbnail,
			PublishedAt: record.PublishedAt,
			FetchedAt:   fetchedAt,
			SourceID:    record.SourceID,
			CategoryID:  p.resolveCategory(ctx, record.CategoryLabel),
		})
	}

	stored := p.store.StoreMany(ctx, rows)
	result.Inserted = stored.Inserted
	result.Updated = stored.Updated
	result.Failed = stored.Failed
	result.Errors = stored.Errors

	p.logger.Info().
		Int("received", len(records)).
		Int("inserted", result.Inserted).
		Int("updated", result.Updated).
		Int("failed", result.Failed).
		Int("skipped", result.Skipped).
		Msg("article batch processed")

	return result
}

func (p *Pipeline) resolveCategory(ctx context.Context, label *string) *int64 {
	if p.categories == nil || label == nil || strings.TrimSpace(*label) == "" {
		return nil
	}
	return p.categories.Resolve(ctx, *label)
}
