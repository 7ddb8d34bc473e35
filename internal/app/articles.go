package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"horse.fit/newsdesk/internal/cli"
	"horse.fit/newsdesk/internal/db"
	"horse.fit/newsdesk/internal/filter"
	"horse.fit/newsdesk/internal/query"
)

func runArticles(args []string) int {
	fs := flag.NewFlagSet("articles", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 30*time.Second, "Command timeout")
	search := fs.String("search", "", "Substring to match in title, description or content")
	sources := fs.String("source", "", "Comma separated source slugs or ids")
	categories := fs.String("category", "", "Comma separated category slugs or ids")
	author := fs.String("author", "", "Author substring")
	from := fs.String("from", "", "Published on or after YYYY-MM-DD (UTC)")
	to := fs.String("to", "", "Published on or before YYYY-MM-DD (UTC)")
	sortBy := fs.String("sort", filter.DefaultSort, "Sort field: published_at, created_at or title")
	order := fs.String("order", filter.DefaultOrder, "Sort order: asc or desc")
	perPage := fs.Int("per-page", filter.DefaultPerPage, "Articles per page")
	page := fs.Int("page", 1, "Page number")
	format := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "articles does not accept positional arguments")
		return 2
	}

	outputFormat, err := parseOutputFormat(*format, outputFormatTable)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid format: %v\n", err)
		return 2
	}

	values := url.Values{}
	setIfPresent(values, "searchTerm", *search)
	setIfPresent(values, "author", *author)
	setIfPresent(values, "from_date", *from)
	setIfPresent(values, "to_date", *to)
	setIfPresent(values, "sort", *sortBy)
	setIfPresent(values, "order", *order)
	values.Set("per_page", strconv.Itoa(*perPage))
	values.Set("page", strconv.Itoa(*page))
	for _, slug := range splitFlagList(*sources) {
		values.Add("source", slug)
	}
	for _, slug := range splitFlagList(*categories) {
		values.Add("category", slug)
	}

	overrides, err := filter.ParseOverrides(values)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid filters: %v\n", err)
		return 2
	}

	cfg, logger, err := loadConfig(envLoader)
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

	// The CLI reads storage directly, bypassing the shared cache.
	service := query.NewService(pool, nil, 0, 0, logger)
	result, err := service.Search(ctx, filter.FromRequest(overrides))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to query articles: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		if err := printJSON(result); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return 1
		}
		return 0
	}

	tableRows := make([][]string, 0, len(result.Items))
	for _, article := range result.Items {
		tableRows = append(tableRows, []string{
			strconv.FormatInt(article.ArticleID, 10),
			truncateForTable(article.Title, 80),
			article.SourceSlug,
			pointerStringOrEmpty(article.CategorySlug),
			truncateForTable(pointerStringOrEmpty(article.Author), 30),
			formatUTCTimestampPtr(article.PublishedAt),
		})
	}

	if err := writeTable(
		[]string{"article_id", "title", "source", "category", "author", "published_at"},
		tableRows,
	); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render table: %v\n", err)
		return 1
	}
	fmt.Printf("\npage %d of %d (%d articles)\n", result.Page, result.LastPage, result.Total)
	return 0
}

func setIfPresent(values url.Values, name, value string) {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		values.Set(name, trimmed)
	}
}

func splitFlagList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
