package app

import (
	"fmt"
	"os"
	"strings"
)

// Run executes the CLI command and returns a process exit code.
func Run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "--help", "-h":
		printUsage()
		return 0
	case "health":
		return runHealth(args[1:])
	case "seed":
		return runSeed(args[1:])
	case "fetch":
		return runFetch(args[1:])
	case "cache-clear":
		return runCacheClear(args[1:])
	case "articles":
		return runArticles(args[1:])
	case "runs":
		return runRuns(args[1:])
	case "schedule":
		return runSchedule(args[1:])
	case "serve":
		return runServe(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "newsdesk CLI")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  newsdesk <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  health       Verify database connectivity")
	fmt.Fprintln(os.Stderr, "  seed         Upsert the configured news sources")
	fmt.Fprintln(os.Stderr, "  fetch        Fetch every configured source and store the articles")
	fmt.Fprintln(os.Stderr, "  cache-clear  Invalidate cached queries (scope: articles, sources, categories, metadata, all)")
	fmt.Fprintln(os.Stderr, "  articles     Search stored articles")
	fmt.Fprintln(os.Stderr, "  runs         List recent fetch runs")
	fmt.Fprintln(os.Stderr, "  schedule     Fetch on the FETCH_SCHEDULE cron until interrupted")
	fmt.Fprintln(os.Stderr, "  serve        Start Echo API server")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Use \"newsdesk <command> -h\" for command-specific flags.")
}
