package db

import (
	"context"
	"fmt"
)

// RecordIngestRuns appends ledger rows for one fetch run.
func (p *Pool) RecordIngestRuns(ctx context.Context, runs []IngestRun) error {
	if p == nil || p.gdb == nil {
		return fmt.Errorf("database pool is not initialized")
	}
	if len(runs) == 0 {
		return nil
	}
	if err := p.gdb.WithContext(ctx).Create(&runs).Error; err != nil {
		return fmt.Errorf("insert ingest runs: %w", err)
	}
	return nil
}

// ListRecentIngestRuns returns the newest ledger rows first.
func (p *Pool) ListRecentIngestRuns(ctx context.Context, limit int) ([]IngestRun, error) {
	if p == nil || p.gdb == nil {
		return nil, fmt.Errorf("database pool is not initialized")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}

	runs := make([]IngestRun, 0, limit)
	if err := p.gdb.WithContext(ctx).
		Order("started_at DESC, ingest_run_id DESC").
		Limit(limit).
		Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("list ingest runs: %w", err)
	}
	return runs, nil
}
