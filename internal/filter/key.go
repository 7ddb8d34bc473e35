package filter

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"slices"
	"strconv"
)

const queryKeyPrefix = "query:"

// BaseKey identifies the filter combination without its page. Every page of
// one combination shares the base key.
func BaseKey(spec Specification) string {
	canonical := map[string]any{
		"sort":     spec.Sort,
		"order":    spec.Order,
		"per_page": spec.PerPage,
	}
	if spec.SearchTerm != nil {
		canonical["searchTerm"] = *spec.SearchTerm
	}
	if len(spec.Sources) > 0 {
		canonical["source"] = sortedCopy(spec.Sources)
	}
	if len(spec.Categories) > 0 {
		canonical["category"] = sortedCopy(spec.Categories)
	}
	if spec.Author != nil {
		canonical["author"] = *spec.Author
	}
	if len(spec.PreferredAuthors) > 0 {
		canonical["preferred_authors"] = sortedCopy(spec.PreferredAuthors)
	}
	if spec.FromDate != nil {
		canonical["from_date"] = *spec.FromDate
	}
	if spec.ToDate != nil {
		canonical["to_date"] = *spec.ToDate
	}

	// encoding/json writes map keys in sorted order; every value here is a
	// string, int or []string so marshalling cannot fail.
	encoded, _ := json.Marshal(canonical)
	sum := sha256.Sum256(encoded)
	return queryKeyPrefix + hex.EncodeToString(sum[:])
}

// PageKey is the cache slot for one page of the combination.
func PageKey(spec Specification) string {
	return BaseKey(spec) + ":page:" + strconv.Itoa(max(spec.Page, 1))
}

func sortedCopy(values []string) []string {
	out := slices.Clone(values)
	slices.Sort(out)
	return out
}
