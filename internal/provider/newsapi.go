package provider

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"horse.fit/newsdesk/internal/globaltime"
	"horse.fit/newsdesk/internal/ingest"
	"horse.fit/newsdesk/internal/slug"
)

// NewsAPIAdapter reads top headlines. NewsAPI has no article id or category,
// so the id is the md5 of the url.
type NewsAPIAdapter struct {
	client   HTTPClient
	baseURL  string
	apiKey   string
	sources  []string
	sourceID int64
}

func NewNewsAPIAdapter(client HTTPClient, baseURL, apiKey string, sources []string, sourceID int64) *NewsAPIAdapter {
	return &NewsAPIAdapter{
		client:   client,
		baseURL:  strings.TrimSpace(baseURL),
		apiKey:   strings.TrimSpace(apiKey),
		sources:  sources,
		sourceID: sourceID,
	}
}

type newsAPIResponse struct {
	Status   string           `json:"status"`
	Code     string           `json:"code"`
	Message  string           `json:"message"`
	Articles []newsAPIArticle `json:"articles"`
}

type newsAPIArticle struct {
	Author      string `json:"author"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	URLToImage  string `json:"urlToImage"`
	PublishedAt string `json:"publishedAt"`
	Content     string `json:"content"`
}

func (a *NewsAPIAdapter) Fetch(ctx context.Context) ([]ingest.CanonicalRecord, error) {
	query := url.Values{"apiKey": {a.apiKey}}
	if len(a.sources) > 0 {
		query.Set("sources", strings.Join(a.sources, ","))
	}

	var payload newsAPIResponse
	if err := getJSON(ctx, a.client, a.baseURL, query, &payload); err != nil {
		return nil, fmt.Errorf("newsapi: %w", err)
	}
	if payload.Status == "error" {
		return nil, fmt.Errorf("newsapi: %s: %s", payload.Code, payload.Message)
	}

	records := make([]ingest.CanonicalRecord, 0, len(payload.Articles))
	for _, item := range payload.Articles {
		title := cleanText(item.Title)
		link := strings.TrimSpace(item.URL)
		if title == "" || link == "" {
			continue
		}

		records = append(records, ingest.CanonicalRecord{
			ExternalID:  md5Hex(link),
			Title:       title,
			Slug:        slug.Make(title),
			Description: plainText(item.Description),
			Content:     safeHTML(item.Content),
			SourceID:    a.sourceID,
			Author:      optional(item.Author),
			URL:         link,
			Thumbnail:   optional(item.URLToImage),
			PublishedAt: globaltime.ParseProviderTime(item.PublishedAt),
		})
	}
	return records, nil
}
