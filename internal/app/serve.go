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
	"horse.fit/newsdesk/internal/httpapi"
)

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	addr := fs.String("addr", "", "Listen address; defaults to HTTP_ADDR")
	readTimeout := fs.Duration("read-timeout", 10*time.Second, "HTTP read timeout")
	writeTimeout := fs.Duration("write-timeout", 5*time.Minute, "HTTP write timeout")
	shutdownTimeout := fs.Duration("shutdown-timeout", 10*time.Second, "Graceful shutdown timeout")
	fetchTimeout := fs.Duration("fetch-timeout", 10*time.Minute, "Timeout for an admin triggered fetch run")

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
	listenAddr := strings.TrimSpace(*addr)
	if listenAddr == "" {
		listenAddr = cfg.HTTPAddr
	}

	connectCtx, connectCancel := context.WithTimeout(context.Background(), 10*time.Second)
	deps, err := newComponents(connectCtx, cfg, logger)
	connectCancel()
	if err != nil {
		logger.Error().Err(err).Msg("serve failed to start")
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer deps.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := httpapi.NewServer(deps.queries, deps.orchestrator, deps.cache, logger, httpapi.Options{
		Addr:            listenAddr,
		ReadTimeout:     *readTimeout,
		WriteTimeout:    *writeTimeout,
		ShutdownTimeout: *shutdownTimeout,
		FetchTimeout:    *fetchTimeout,
	})

	if err := srv.Start(ctx); err != nil {
		logger.Error().Err(err).Str("addr", listenAddr).Msg("server failed")
		fmt.Fprintf(os.Stderr, "Server failed: %v\n", err)
		return 1
	}

	return 0
}
