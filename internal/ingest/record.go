package ingest

import "time"

// CanonicalRecord is one provider article after adapter mapping and before
// validation. CategoryLabel is free text resolved to a category id later.
type CanonicalRecord struct {
	ExternalID    string     `json:"merchant_id"`
	Title         string     `json:"title"`
	Slug          string     `json:"slug"`
	Description   *string    `json:"description,omitempty"`
	Content       *string    `json:"content,omitempty"`
	SourceID      int64      `json:"source_id"`
	Author        *string    `json:"author,omitempty"`
	CategoryLabel *string    `json:"category_label,omitempty"`
	URL           string     `json:"url"`
	Thumbnail     *string    `json:"thumbnail,omitempty"`
	PublishedAt   *time.Time `json:"published_at,omitempty"`
}

// Deduplicate collapses records sharing an external id. The last occurrence
// wins but keeps the position of the first. Records without an id are
// dropped. The second return value counts every removed record.
func Deduplicate(records []CanonicalRecord) ([]CanonicalRecord, int) {
	if len(records) == 0 {
		return nil, 0
	}

	positions := make(map[string]int, len(records))
	out := make([]CanonicalRecord, 0, len(records))
	for _, record := range records {
		if record.ExternalID == "" {
			continue
		}
		if idx, seen := positions[record.ExternalID]; seen {
			out[idx] = record
			continue
		}
		positions[record.ExternalID] = len(out)
		out = append(out, record)
	}
	return out, len(records) - len(out)
}
