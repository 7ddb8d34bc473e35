package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"horse.fit/newsdesk/internal/cli"
	"horse.fit/newsdesk/internal/db"
	"horse.fit/newsdesk/internal/provider"
)

func runSeed(args []string) int {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")

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

	defs, err := provider.Definitions(cfg, provider.NewHTTPClient(cfg.FetchTimeout))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid provider configuration: %v\n", err)
		return 1
	}
	if len(defs) == 0 {
		fmt.Fprintln(os.Stderr, "No providers are configured; set an API key or RSS_FEEDS")
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

	sources, err := pool.UpsertSources(ctx, provider.SourceSeeds(defs))
	if err != nil {
		logger.Error().Err(err).Msg("seed sources failed")
		fmt.Fprintf(os.Stderr, "Failed to seed sources: %v\n", err)
		return 1
	}
	logger.Info().Int("sources", len(sources)).Msg("sources seeded")

	rows := make([][]string, 0, len(sources))
	for _, source := range sources {
		rows = append(rows, []string{
			fmt.Sprintf("%d", source.SourceID),
			source.Slug,
			source.Name,
			source.APIIdentifier,
			truncateForTable(source.BaseURL, 60),
		})
	}
	if err := writeTable([]string{"source_id", "slug", "name", "api", "base_url"}, rows); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render table: %v\n", err)
		return 1
	}
	return 0
}
