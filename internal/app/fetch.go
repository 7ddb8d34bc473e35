package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"horse.fit/newsdesk/internal/cli"
	"horse.fit/newsdesk/internal/fetch"
)

func runFetch(args []string) int {
	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 10*time.Minute, "Command timeout")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}

	cfg, logger, err := loadConfig(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	deps, err := newComponents(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer deps.Close()

	outcomes, err := deps.orchestrator.FetchAndStoreAll(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("fetch failed")
		fmt.Fprintf(os.Stderr, "Fetch failed: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(map[string]any{
			"sources": outcomes,
			"totals":  fetch.Summarize(outcomes),
		}); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
	} else if err := writeOutcomeTable(outcomes); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render table: %v\n", err)
		return 1
	}

	if fetch.AnyFailed(outcomes) {
		return 1
	}
	return 0
}

func writeOutcomeTable(outcomes map[string]fetch.Outcome) error {
	names := make([]string, 0, len(outcomes))
	for name := range outcomes {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([][]string, 0, len(names)+1)
	for _, name := range names {
		outcome := outcomes[name]
		rows = append(rows, []string{
			name,
			outcome.Status(),
			strconv.Itoa(outcome.Fetched),
			strconv.Itoa(outcome.Inserted),
			strconv.Itoa(outcome.Updated),
			strconv.Itoa(outcome.Failed),
			strconv.Itoa(outcome.Skipped),
			truncateForTable(outcome.Message, 80),
		})
	}

	totals := fetch.Summarize(outcomes)
	rows = append(rows, []string{
		"TOTAL",
		fmt.Sprintf("%d/%d ok", totals.Sources-totals.FailedSources, totals.Sources),
		strconv.Itoa(totals.Fetched),
		strconv.Itoa(totals.Inserted),
		strconv.Itoa(totals.Updated),
		strconv.Itoa(totals.Failed),
		strconv.Itoa(totals.Skipped),
		"",
	})

	return writeTable(
		[]string{"source", "status", "fetched", "inserted", "updated", "failed", "skipped", "message"},
		rows,
	)
}
