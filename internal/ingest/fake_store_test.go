package ingest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"horse.fit/newsdesk/internal/db"
)

// memoryWriter is an in-memory BatchWriter keyed by merchant id.
type memoryWriter struct {
	mu      sync.Mutex
	rows    map[string]db.ArticleUpsert
	batches [][]string
	failIf  func(batch []db.ArticleUpsert) error
}

func newMemoryWriter() *memoryWriter {
	return &memoryWriter{rows: make(map[string]db.ArticleUpsert)}
}

func (w *memoryWriter) UpsertArticleBatch(_ context.Context, rows []db.ArticleUpsert) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.MerchantID)
	}
	w.batches = append(w.batches, ids)

	if w.failIf != nil {
		if err := w.failIf(rows); err != nil {
			return 0, err
		}
	}

	existing := 0
	for _, row := range rows {
		if _, ok := w.rows[row.MerchantID]; ok {
			existing++
		}
	}
	for _, row := range rows {
		w.rows[row.MerchantID] = row
	}
	return existing, nil
}

func (w *memoryWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.rows)
}

func (w *memoryWriter) get(id string) (db.ArticleUpsert, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	row, ok := w.rows[id]
	return row, ok
}

func failBatchContaining(prefix string) func([]db.ArticleUpsert) error {
	return func(batch []db.ArticleUpsert) error {
		for _, row := range batch {
			if strings.HasPrefix(row.MerchantID, prefix) {
				return fmt.Errorf("deadlock detected")
			}
		}
		return nil
	}
}

func record(id, title, url string) CanonicalRecord {
	return CanonicalRecord{
		ExternalID: id,
		Title:      title,
		Slug:       strings.ToLower(strings.ReplaceAll(title, " ", "-")),
		URL:        url,
		SourceID:   1,
	}
}
