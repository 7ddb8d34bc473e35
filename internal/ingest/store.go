package ingest

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"horse.fit/newsdesk/internal/db"
)

// DefaultBatchSize bounds how many articles share one transaction.
const DefaultBatchSize = 100

// BatchWriter upserts one batch atomically and reports how many of its
// merchant ids existed beforehand. *db.Pool implements it.
type BatchWriter interface {
	UpsertArticleBatch(ctx context.Context, rows []db.ArticleUpsert) (int, error)
}

// BatchError records a batch that was rolled back.
type BatchError struct {
	Batch int    `json:"batch"`
	Error string `json:"error"`
}

type StoreResult struct {
	Inserted int          `json:"inserted"`
	Updated  int          `json:"updated"`
	Failed   int          `json:"failed"`
	Errors   []BatchError `json:"errors,omitempty"`
}

// BatchStore partitions rows into fixed size batches. A failing batch is
// counted as failed in full and never stops the batches after it.
type BatchStore struct {
	writer    BatchWriter
	batchSize int
	logger    zerolog.Logger
}

func NewBatchStore(writer BatchWriter, batchSize int, logger zerolog.Logger) *BatchStore {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &BatchStore{
		writer:    writer,
		batchSize: batchSize,
		logger:    logger,
	}
}

func (s *BatchStore) StoreMany(ctx context.Context, rows []db.ArticleUpsert) StoreResult {
	var result StoreResult
	if len(rows) == 0 {
		return result
	}

	for batchIndex, start := 0, 0; start < len(rows); batchIndex, start = batchIndex+1, start+s.batchSize {
		end := min(start+s.batchSize, len(rows))
		batch := rows[start:end]

		existing, err := s.writeBatch(ctx, batch)
		if err != nil {
			result.Failed += len(batch)
			result.Errors = append(result.Errors, BatchError{
				Batch: batchIndex,
				Error: err.Error(),
			})
			s.logger.Error().
				Err(err).
				Int("batch", batchIndex).
				Int("batch_size", len(batch)).
				Msg("article batch upsert failed")
			continue
		}

		existing = min(max(existing, 0), len(batch))
		result.Updated += existing
		result.Inserted += len(batch) - existing
	}

	return result
}

func (s *BatchStore) writeBatch(ctx context.Context, batch []db.ArticleUpsert) (existing int, err error) {
	if s.writer == nil {
		return 0, fmt.Errorf("batch writer is not configured")
	}
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("batch upsert panicked: %v", recovered)
		}
	}()
	return s.writer.UpsertArticleBatch(ctx, batch)
}
