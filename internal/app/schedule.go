package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"horse.fit/newsdesk/internal/cli"
	"horse.fit/newsdesk/internal/fetch"
	"horse.fit/newsdesk/internal/logging"
	"horse.fit/newsdesk/internal/scheduler"
)

func runSchedule(args []string) int {
	fs := flag.NewFlagSet("schedule", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	spec := fs.String("cron", "", "Cron schedule; defaults to FETCH_SCHEDULE")
	runTimeout := fs.Duration("run-timeout", 10*time.Minute, "Timeout for one fetch run")
	immediate := fs.Bool("now", false, "Run one fetch before waiting for the schedule")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg, logger, err := loadConfig(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	schedule := strings.TrimSpace(*spec)
	if schedule == "" {
		schedule = cfg.FetchSchedule
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	connectCtx, connectCancel := context.WithTimeout(ctx, 30*time.Second)
	deps, err := newComponents(connectCtx, cfg, logger)
	connectCancel()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer deps.Close()

	job := func(ctx context.Context) {
		runCtx, cancel := context.WithTimeout(ctx, *runTimeout)
		defer cancel()

		outcomes, err := deps.orchestrator.FetchAndStoreAll(runCtx)
		if err != nil {
			logger.Error().Err(err).Msg("scheduled fetch failed")
			return
		}
		totals := fetch.Summarize(outcomes)
		logger.Info().
			Int("sources", totals.Sources).
			Int("failed_sources", totals.FailedSources).
			Int("inserted", totals.Inserted).
			Int("updated", totals.Updated).
			Msg("scheduled fetch finished")
	}

	sched, err := scheduler.New(ctx, schedule, job, logging.Component(logger, "scheduler"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid schedule: %v\n", err)
		return 2
	}

	if *immediate {
		job(ctx)
	}
	sched.Run(ctx)
	return 0
}
