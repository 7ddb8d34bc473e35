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

// NYTAdapter reads one Top Stories section.
type NYTAdapter struct {
	client   HTTPClient
	endpoint string
	apiKey   string
	sourceID int64
}

func NewNYTAdapter(client HTTPClient, baseURL, section, apiKey string, sourceID int64) *NYTAdapter {
	return &NYTAdapter{
		client:   client,
		endpoint: NYTSectionURL(baseURL, section),
		apiKey:   strings.TrimSpace(apiKey),
		sourceID: sourceID,
	}
}

// NYTSectionURL joins the Top Stories base with "<section>.json".
func NYTSectionURL(baseURL, section string) string {
	section = strings.TrimSpace(section)
	if section == "" {
		section = "home"
	}
	return strings.TrimRight(strings.TrimSpace(baseURL), "/") + "/" + url.PathEscape(section) + ".json"
}

type nytResponse struct {
	Status  string      `json:"status"`
	Fault   *nytFault   `json:"fault,omitempty"`
	Results []nytResult `json:"results"`
}

type nytFault struct {
	FaultString string `json:"faultstring"`
}

type nytResult struct {
	URI           string `json:"uri"`
	Section       string `json:"section"`
	Title         string `json:"title"`
	Abstract      string `json:"abstract"`
	URL           string `json:"url"`
	Byline        string `json:"byline"`
	PublishedDate string `json:"published_date"`
	Multimedia    []struct {
		URL string `json:"url"`
	} `json:"multimedia"`
}

func (a *NYTAdapter) Fetch(ctx context.Context) ([]ingest.CanonicalRecord, error) {
	var payload nytResponse
	if err := getJSON(ctx, a.client, a.endpoint, url.Values{"api-key": {a.apiKey}}, &payload); err != nil {
		return nil, fmt.Errorf("nyt: %w", err)
	}
	if payload.Fault != nil {
		return nil, fmt.Errorf("nyt: %s", payload.Fault.FaultString)
	}

	records := make([]ingest.CanonicalRecord, 0, len(payload.Results))
	for _, item := range payload.Results {
		title := cleanText(item.Title)
		link := strings.TrimSpace(item.URL)
		if title == "" || link == "" {
			continue
		}

		var thumbnail *string
		if len(item.Multimedia) > 0 {
			thumbnail = optional(item.Multimedia[0].URL)
		}
		publishedAt := globaltime.ParseProviderTime(item.PublishedDate)
		if publishedAt == nil && strings.TrimSpace(item.PublishedDate) == "" {
			now := globaltime.UTC()
			publishedAt = &now
		}

		records = append(records, ingest.CanonicalRecord{
			ExternalID:    firstNonEmpty(strings.TrimSpace(item.URI), md5Hex(link)),
			Title:         title,
			Slug:          slug.Make(title),
			Description:   plainText(item.Abstract),
			Content:       safeHTML(item.Abstract),
			SourceID:      a.sourceID,
			Author:        optional(item.Byline),
			CategoryLabel: optional(item.Section),
			URL:           link,
			Thumbnail:     thumbnail,
			PublishedAt:   publishedAt,
		})
	}
	return records, nil
}
