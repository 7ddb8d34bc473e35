package provider

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"

	"horse.fit/newsdesk/internal/globaltime"
	"horse.fit/newsdesk/internal/ingest"
	"horse.fit/newsdesk/internal/slug"
)

// RSSAdapter reads any RSS or Atom feed.
type RSSAdapter struct {
	client   HTTPClient
	feedURL  string
	sourceID int64
}

func NewRSSAdapter(client HTTPClient, feedURL string, sourceID int64) *RSSAdapter {
	return &RSSAdapter{
		client:   client,
		feedURL:  strings.TrimSpace(feedURL),
		sourceID: sourceID,
	}
}

func (a *RSSAdapter) Fetch(ctx context.Context) ([]ingest.CanonicalRecord, error) {
	body, err := get(ctx, a.client, a.feedURL, nil, "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")
	if err != nil {
		return nil, fmt.Errorf("rss: %w", err)
	}
	defer body.Close()

	feed, err := gofeed.NewParser().Parse(body)
	if err != nil {
		return nil, fmt.Errorf("rss: parse %s: %w", redactedHost(a.feedURL), err)
	}

	records := make([]ingest.CanonicalRecord, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		title := plainTextValue(item.Title)
		link := strings.TrimSpace(item.Link)
		if title == "" || link == "" {
			continue
		}

		var category *string
		if len(item.Categories) > 0 {
			category = optional(item.Categories[0])
		}
		var thumbnail *string
		if item.Image != nil {
			thumbnail = optional(item.Image.URL)
		}
		published := item.Published
		if published == "" {
			published = item.Updated
		}

		records = append(records, ingest.CanonicalRecord{
			ExternalID:    rssItemID(item.GUID, link),
			Title:         title,
			Slug:          slug.Make(title),
			Description:   plainText(item.Description),
			Content:       safeHTML(firstNonEmpty(item.Content, item.Description)),
			SourceID:      a.sourceID,
			Author:        rssAuthor(item),
			CategoryLabel: category,
			URL:           link,
			Thumbnail:     thumbnail,
			PublishedAt:   globaltime.ParseProviderTime(published),
		})
	}
	return records, nil
}

func rssItemID(guid, link string) string {
	if trimmed := strings.TrimSpace(guid); trimmed != "" {
		return trimmed
	}
	sum := sha256.Sum256([]byte(link))
	return hex.EncodeToString(sum[:])
}

func rssAuthor(item *gofeed.Item) *string {
	if len(item.Authors) > 0 && item.Authors[0] != nil {
		if name := optional(item.Authors[0].Name); name != nil {
			return name
		}
	}
	if item.Author != nil {
		return optional(item.Author.Name)
	}
	return nil
}

func plainTextValue(raw string) string {
	if text := plainText(raw); text != nil {
		return *text
	}
	return ""
}
