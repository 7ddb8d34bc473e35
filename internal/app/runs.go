package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"horse.fit/newsdesk/internal/cli"
	"horse.fit/newsdesk/internal/db"
)

func runRuns(args []string) int {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	limit := fs.Int("limit", 20, "Maximum ledger rows to return")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *limit <= 0 {
		fmt.Fprintln(os.Stderr, "--limit must be > 0")
		return 2
	}
	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}

	cfg, _, err := loadConfig(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	runs, err := pool.ListRecentIngestRuns(ctx, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to query fetch runs: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(runs); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			run.RunUUID,
			run.Source,
			run.Status,
			formatUTCTimestamp(run.StartedAt),
			run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond).String(),
			strconv.Itoa(run.Fetched),
			strconv.Itoa(run.Inserted),
			strconv.Itoa(run.Updated),
			strconv.Itoa(run.Failed),
			strconv.Itoa(run.Skipped),
			truncateForTable(pointerStringOrEmpty(run.ErrorMessage), 60),
		})
	}
	if err := writeTable(
		[]string{"run_uuid", "source", "status", "started_at", "duration", "fetched", "inserted", "updated", "failed", "skipped", "error"},
		rows,
	); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render table: %v\n", err)
		return 1
	}
	return 0
}
