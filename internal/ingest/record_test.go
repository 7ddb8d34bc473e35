package ingest

import (
	"fmt"
	"strings"
	"testing"
)

func TestDeduplicate_LastOccurrenceWins(t *testing.T) {
	t.Parallel()

	records := []CanonicalRecord{
		record("a", "first a", "https://a.test/1"),
		record("b", "only b", "https://b.test"),
		record("a", "second a", "https://a.test/2"),
		record("", "no id", "https://none.test"),
		record("a", "third a", "https://a.test/3"),
	}

	out, removed := Deduplicate(records)
	if len(out) != 2 {
		t.Fatalf("expected 2 distinct ids, got %d", len(out))
	}
	if removed != 3 {
		t.Fatalf("expected 3 removed records, got %d", removed)
	}
	if out[0].ExternalID != "a" || out[0].Title != "third a" {
		t.Fatalf("expected last occurrence of a at first position, got %+v", out[0])
	}
	if out[1].ExternalID != "b" {
		t.Fatalf("expected b second, got %+v", out[1])
	}
}

func TestDeduplicate_DistinctCountProperty(t *testing.T) {
	t.Parallel()

	records := make([]CanonicalRecord, 0, 60)
	for i := 0; i < 60; i++ {
		records = append(records, record(fmt.Sprintf("id-%d", i%7), fmt.Sprintf("t%d", i), "https://x.test"))
	}

	out, removed := Deduplicate(records)
	if len(out) != 7 {
		t.Fatalf("expected 7 distinct ids, got %d", len(out))
	}
	if removed != 53 {
		t.Fatalf("expected 53 removed, got %d", removed)
	}
	for _, rec := range out {
		var last string
		for _, in := range records {
			if in.ExternalID == rec.ExternalID {
				last = in.Title
			}
		}
		if rec.Title != last {
			t.Fatalf("id %s kept %q, want last %q", rec.ExternalID, rec.Title, last)
		}
	}
}

func TestDeduplicate_Empty(t *testing.T) {
	t.Parallel()

	out, removed := Deduplicate(nil)
	if len(out) != 0 || removed != 0 {
		t.Fatalf("expected empty result, got %d/%d", len(out), removed)
	}
}

func TestValidateRecord(t *testing.T) {
	t.Parallel()

	valid := record("x1", "A", "https://a.test")
	if err := ValidateRecord(valid); err != nil {
		t.Fatalf("expected valid record, got %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*CanonicalRecord)
	}{
		{name: "missing id", mutate: func(r *CanonicalRecord) { r.ExternalID = "" }},
		{name: "blank title", mutate: func(r *CanonicalRecord) { r.Title = "   " }},
		{name: "missing title", mutate: func(r *CanonicalRecord) { r.Title = "" }},
		{name: "long title", mutate: func(r *CanonicalRecord) { r.Title = strings.Repeat("t", 256) }},
		{name: "missing slug", mutate: func(r *CanonicalRecord) { r.Slug = "" }},
		{name: "missing url", mutate: func(r *CanonicalRecord) { r.URL = "" }},
		{name: "relative url", mutate: func(r *CanonicalRecord) { r.URL = "/news/1" }},
		{name: "ftp url", mutate: func(r *CanonicalRecord) { r.URL = "ftp://a.test/file" }},
		{name: "hostless url", mutate: func(r *CanonicalRecord) { r.URL = "https://" }},
		{name: "missing source", mutate: func(r *CanonicalRecord) { r.SourceID = 0 }},
		{name: "nul in title", mutate: func(r *CanonicalRecord) { r.Title = "A\x00B" }},
		{name: "nul in author", mutate: func(r *CanonicalRecord) { author := "Jo\x00"; r.Author = &author }},
		{name: "invalid utf8 description", mutate: func(r *CanonicalRecord) { desc := "bad \xff byte"; r.Description = &desc }},
	}

	for _, tc := range cases {
		rec := valid
		tc.mutate(&rec)
		if err := ValidateRecord(rec); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}

func TestValidateRecord_TitleLimitCountsCharacters(t *testing.T) {
	t.Parallel()

	rec := record("x1", strings.Repeat("é", 255), "https://a.test")
	if err := ValidateRecord(rec); err != nil {
		t.Fatalf("255 multibyte characters must be accepted, got %v", err)
	}
}
