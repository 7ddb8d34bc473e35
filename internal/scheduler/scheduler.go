// Package scheduler runs a job on a cron schedule until its context ends.
package scheduler

import (
	"context"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is one scheduled unit of work.
type Job func(ctx context.Context)

type Scheduler struct {
	cron   *cron.Cron
	logger zerolog.Logger
}

// New parses spec (standard five-field cron or a descriptor such as
// "@every 1h") and registers job. Overlapping runs are skipped.
func New(ctx context.Context, spec string, job Job, logger zerolog.Logger) (*Scheduler, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, fmt.Errorf("schedule is required")
	}
	if job == nil {
		return nil, fmt.Errorf("job is required")
	}

	cronLogger := cronLogger{logger: logger}
	c := cron.New(
		cron.WithLogger(cronLogger),
		cron.WithChain(
			cron.Recover(cronLogger),
			cron.SkipIfStillRunning(cronLogger),
		),
	)
	if _, err := c.AddFunc(spec, func() { job(ctx) }); err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}

	return &Scheduler{cron: c, logger: logger}, nil
}

// Run starts the scheduler and blocks until ctx is done, then waits for a
// running job to finish.
func (s *Scheduler) Run(ctx context.Context) {
	s.cron.Start()
	for _, entry := range s.cron.Entries() {
		s.logger.Info().Time("next_run", entry.Next).Msg("scheduler started")
	}

	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Info().Msg("scheduler stopped")
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug().Fields(keysAndValues).Msg("cron " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg("cron " + msg)
}
