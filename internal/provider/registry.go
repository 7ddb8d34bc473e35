package provider

import (
	"fmt"
	"strings"

	"horse.fit/newsdesk/internal/config"
	"horse.fit/newsdesk/internal/db"
)

const (
	SlugGuardian = "guardian"
	SlugNewsAPI  = "newsapi"
	SlugNYT      = "nyt"
)

// Definition is one configured provider: the source row it is seeded as and
// how to build its adapter once the row id is known.
type Definition struct {
	Source db.Source
	build  func(sourceID int64) Adapter
}

// Definitions lists the providers enabled by cfg. A keyed provider without
// an api key is left out.
func Definitions(cfg *config.Config, client HTTPClient) ([]Definition, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	defs := make([]Definition, 0, 4)
	if key := strings.TrimSpace(cfg.GuardianAPIKey); key != "" {
		defs = append(defs, Definition{
			Source: db.Source{Name: "The Guardian", Slug: SlugGuardian, APIIdentifier: "guardian", BaseURL: cfg.GuardianBaseURL},
			build: func(sourceID int64) Adapter {
				return NewGuardianAdapter(client, cfg.GuardianBaseURL, key, sourceID)
			},
		})
	}
	if key := strings.TrimSpace(cfg.NewsAPIKey); key != "" {
		sources := cfg.NewsAPISourceList()
		defs = append(defs, Definition{
			Source: db.Source{Name: "NewsAPI", Slug: SlugNewsAPI, APIIdentifier: "newsapi", BaseURL: cfg.NewsAPIBaseURL},
			build: func(sourceID int64) Adapter {
				return NewNewsAPIAdapter(client, cfg.NewsAPIBaseURL, key, sources, sourceID)
			},
		})
	}
	if key := strings.TrimSpace(cfg.NYTimesAPIKey); key != "" {
		endpoint := NYTSectionURL(cfg.NYTimesBaseURL, cfg.NYTimesSection)
		defs = append(defs, Definition{
			Source: db.Source{Name: "New York Times", Slug: SlugNYT, APIIdentifier: "nytimes", BaseURL: endpoint},
			build: func(sourceID int64) Adapter {
				return NewNYTAdapter(client, cfg.NYTimesBaseURL, cfg.NYTimesSection, key, sourceID)
			},
		})
	}

	feeds, err := cfg.Feeds()
	if err != nil {
		return nil, err
	}
	for _, feed := range feeds {
		feedURL := feed.URL
		defs = append(defs, Definition{
			Source: db.Source{Name: feed.Slug, Slug: feed.Slug, APIIdentifier: "rss", BaseURL: feedURL},
			build: func(sourceID int64) Adapter {
				return NewRSSAdapter(client, feedURL, sourceID)
			},
		})
	}

	return defs, nil
}

// SourceSeeds returns the source rows to upsert for defs.
func SourceSeeds(defs []Definition) []db.Source {
	seeds := make([]db.Source, 0, len(defs))
	for _, def := range defs {
		seeds = append(seeds, def.Source)
	}
	return seeds
}

// Build pairs each definition with its stored source row and returns the
// adapters keyed by source slug.
func Build(defs []Definition, stored []db.Source) (map[string]Adapter, error) {
	ids := make(map[string]int64, len(stored))
	for _, source := range stored {
		ids[source.Slug] = source.SourceID
	}

	adapters := make(map[string]Adapter, len(defs))
	for _, def := range defs {
		id, ok := ids[def.Source.Slug]
		if !ok || id <= 0 {
			return nil, fmt.Errorf("source %q has not been seeded", def.Source.Slug)
		}
		adapters[def.Source.Slug] = def.build(id)
	}
	return adapters, nil
}
