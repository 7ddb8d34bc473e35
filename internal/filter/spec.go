// Package filter composes stored user preferences and request overrides
// into a search specification and derives its cache keys.
package filter

import "strings"

const (
	DefaultSort    = "published_at"
	DefaultOrder   = "desc"
	DefaultPerPage = 20
	MaxPerPage     = 100
	MaxPage        = 1_000_000
)

var allowedSorts = map[string]struct{}{
	"published_at": {},
	"created_at":   {},
	"title":        {},
}

// Specification is a normalized article query. Nil pointers and nil slices
// mean the filter is absent, which is unrestricted rather than empty.
type Specification struct {
	SearchTerm       *string  `json:"searchTerm,omitempty"`
	Sources          []string `json:"source,omitempty"`
	Categories       []string `json:"category,omitempty"`
	Author           *string  `json:"author,omitempty"`
	PreferredAuthors []string `json:"preferred_authors,omitempty"`
	FromDate         *string  `json:"from_date,omitempty"`
	ToDate           *string  `json:"to_date,omitempty"`
	Sort             string   `json:"sort"`
	Order            string   `json:"order"`
	PerPage          int      `json:"per_page"`
	Page             int      `json:"page"`
}

// Preference is the stored per-user input to Build.
type Preference struct {
	DefaultSort     string
	DefaultOrder    string
	ArticlesPerPage int
	Sources         []string
	Categories      []string
	Authors         []string
}

// Overrides holds request parameters. Scalars replace, sets widen.
type Overrides struct {
	Sort       *string
	Order      *string
	PerPage    *int
	Page       *int
	SearchTerm *string
	FromDate   *string
	ToDate     *string
	Author     *string
	Sources    []string
	Categories []string
}

// Build derives the personalized specification: preference defaults first,
// then scalar overrides replace and source/category overrides are merged in.
// The single-value author filter is not personalizable and is ignored here.
func Build(pref Preference, o *Overrides) Specification {
	spec := Specification{
		Sources:          uniqueStrings(pref.Sources),
		Categories:       uniqueStrings(pref.Categories),
		PreferredAuthors: uniqueStrings(pref.Authors),
		Sort:             orDefault(pref.DefaultSort, DefaultSort),
		Order:            orDefault(pref.DefaultOrder, DefaultOrder),
		PerPage:          pref.ArticlesPerPage,
		Page:             1,
	}
	if spec.PerPage <= 0 {
		spec.PerPage = DefaultPerPage
	}

	if o == nil {
		return spec
	}
	applyScalars(&spec, o)
	spec.Sources = uniqueStrings(spec.Sources, o.Sources)
	spec.Categories = uniqueStrings(spec.Categories, o.Categories)
	return spec
}

// FromRequest builds the public, non-personalized specification.
func FromRequest(o *Overrides) Specification {
	spec := Specification{
		Sort:    DefaultSort,
		Order:   DefaultOrder,
		PerPage: DefaultPerPage,
		Page:    1,
	}
	if o == nil {
		return spec
	}
	applyScalars(&spec, o)
	spec.Sources = uniqueStrings(o.Sources)
	spec.Categories = uniqueStrings(o.Categories)
	if o.Author != nil {
		spec.Author = nonBlank(*o.Author)
	}
	return spec
}

func applyScalars(spec *Specification, o *Overrides) {
	if o.Sort != nil {
		spec.Sort = *o.Sort
	}
	if o.Order != nil {
		spec.Order = *o.Order
	}
	if o.PerPage != nil {
		spec.PerPage = *o.PerPage
	}
	if o.Page != nil {
		spec.Page = *o.Page
	}
	if o.SearchTerm != nil {
		spec.SearchTerm = nonBlank(*o.SearchTerm)
	}
	if o.FromDate != nil {
		spec.FromDate = nonBlank(*o.FromDate)
	}
	if o.ToDate != nil {
		spec.ToDate = nonBlank(*o.ToDate)
	}
}

// uniqueStrings concatenates the lists, trims, drops blanks and keeps the
// first occurrence of each value. It returns nil when nothing remains.
func uniqueStrings(lists ...[]string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, list := range lists {
		for _, raw := range list {
			value := strings.TrimSpace(raw)
			if value == "" {
				continue
			}
			if _, exists := seen[value]; exists {
				continue
			}
			seen[value] = struct{}{}
			out = append(out, value)
		}
	}
	return out
}

func nonBlank(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func orDefault(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}
