package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"horse.fit/newsdesk/internal/cache"
	"horse.fit/newsdesk/internal/cli"
	"horse.fit/newsdesk/internal/config"
)

func runCacheClear(args []string) int {
	fs := flag.NewFlagSet("cache-clear", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() > 1 {
		fmt.Fprintln(os.Stderr, "cache-clear accepts at most one scope argument")
		return 2
	}

	scope, err := cache.ParseScope(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid scope: %v\n", err)
		return 2
	}

	cfg, logger, err := loadConfig(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	tagged, closeCache, err := newCache(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer closeCache()

	if cfg.CacheDriverName() == config.CacheDriverMemory {
		fmt.Fprintln(os.Stderr, "Warning: the memory cache lives inside each serving process; restart it to drop its entries")
	}

	if err := tagged.Invalidate(ctx, scope); err != nil {
		logger.Error().Err(err).Str("scope", string(scope)).Msg("cache clear failed")
		fmt.Fprintf(os.Stderr, "Failed to clear cache: %v\n", err)
		return 1
	}
	fmt.Printf("ok: %s cache cleared\n", scope)
	return 0
}
