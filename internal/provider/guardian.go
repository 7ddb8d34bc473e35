package provider

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"horse.fit/newsdesk/internal/globaltime"
	"horse.fit/newsdesk/internal/ingest"
	"horse.fit/newsdesk/internal/slug"
)

const (
	guardianPageSize        = 10
	guardianDefaultCategory = "Uncategorized"
)

type GuardianAdapter struct {
	client   HTTPClient
	baseURL  string
	apiKey   string
	sourceID int64
}

func NewGuardianAdapter(client HTTPClient, baseURL, apiKey string, sourceID int64) *GuardianAdapter {
	return &GuardianAdapter{
		client:   client,
		baseURL:  strings.TrimSpace(baseURL),
		apiKey:   strings.TrimSpace(apiKey),
		sourceID: sourceID,
	}
}

type guardianResponse struct {
	Response struct {
		Status  string           `json:"status"`
		Message string           `json:"message"`
		Results []guardianResult `json:"results"`
	} `json:"response"`
}

type guardianResult struct {
	ID                 string `json:"id"`
	SectionName        string `json:"sectionName"`
	WebTitle           string `json:"webTitle"`
	WebURL             string `json:"webUrl"`
	WebPublicationDate string `json:"webPublicationDate"`
	Fields             struct {
		Headline  string `json:"headline"`
		TrailText string `json:"trailText"`
		Body      string `json:"body"`
		Byline    string `json:"byline"`
		Thumbnail string `json:"thumbnail"`
	} `json:"fields"`
}

func (a *GuardianAdapter) Fetch(ctx context.Context) ([]ingest.CanonicalRecord, error) {
	query := url.Values{
		"api-key":     {a.apiKey},
		"show-fields": {"trailText,headline,thumbnail,byline,body"},
		"page-size":   {strconv.Itoa(guardianPageSize)},
	}

	var payload guardianResponse
	if err := getJSON(ctx, a.client, a.baseURL, query, &payload); err != nil {
		return nil, fmt.Errorf("guardian: %w", err)
	}
	if status := strings.TrimSpace(payload.Response.Status); status != "" && status != "ok" {
		return nil, fmt.Errorf("guardian: status %s: %s", status, payload.Response.Message)
	}

	records := make([]ingest.CanonicalRecord, 0, len(payload.Response.Results))
	for _, item := range payload.Response.Results {
		title := cleanText(item.WebTitle)
		link := strings.TrimSpace(item.WebURL)
		if title == "" || link == "" {
			continue
		}

		category := firstNonEmpty(item.SectionName, guardianDefaultCategory)
		records = append(records, ingest.CanonicalRecord{
			ExternalID:    strings.TrimSpace(item.ID),
			Title:         title,
			Slug:          slug.Make(title),
			Description:   plainText(firstNonEmpty(item.Fields.Headline, item.Fields.TrailText)),
			Content:       safeHTML(firstNonEmpty(item.Fields.Body, item.Fields.TrailText)),
			SourceID:      a.sourceID,
			Author:        optional(item.Fields.Byline),
			CategoryLabel: optional(category),
			URL:           link,
			Thumbnail:     optional(item.Fields.Thumbnail),
			PublishedAt:   globaltime.ParseProviderTime(item.WebPublicationDate),
		})
	}
	return records, nil
}
