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
	"horse.fit/newsdesk/internal/db"
)

type dependencyCheck struct {
	name  string
	check func(ctx context.Context) error
}

// runHealth pings every external dependency the configuration names.
func runHealth(args []string) int {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 5*time.Second, "Timeout per dependency check")

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

	checks := []dependencyCheck{
		{name: "database", check: func(ctx context.Context) error {
			pool, err := db.NewPool(ctx, cfg)
			if err != nil {
				return err
			}
			return pool.Close()
		}},
	}
	if cfg.CacheDriverName() == config.CacheDriverRedis {
		checks = append(checks, dependencyCheck{name: "redis", check: func(ctx context.Context) error {
			client, err := cache.NewRedisClient(ctx, cfg.RedisURL)
			if err != nil {
				return err
			}
			return client.Close()
		}})
	}

	exitCode := 0
	for _, c := range checks {
		ctx, cancel := context.WithTimeout(context.Background(), *timeout)
		err := c.check(ctx)
		cancel()
		if err != nil {
			logger.Error().Err(err).Str("dependency", c.name).Msg("health check failed")
			fmt.Fprintf(os.Stderr, "fail: %s: %v\n", c.name, err)
			exitCode = 1
			continue
		}
		logger.Info().Str("dependency", c.name).Dur("timeout", *timeout).Msg("health check passed")
		fmt.Printf("ok: %s reachable\n", c.name)
	}
	if cfg.CacheDriverName() == config.CacheDriverMemory {
		fmt.Println("ok: memory cache (in-process)")
	}
	return exitCode
}
