package globaltime

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// ParseProviderTime parses a provider-reported timestamp in whatever layout
// the provider happens to use. Unparseable or empty input yields nil so a
// single bad date never fails a whole fetch.
func ParseProviderTime(raw string) *time.Time {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}

	parsed, err := dateparse.ParseIn(trimmed, time.UTC)
	if err != nil {
		return nil
	}
	utc := parsed.UTC()
	return &utc
}

// ParseDay parses a YYYY-MM-DD calendar day as midnight UTC.
func ParseDay(raw string) (time.Time, error) {
	day, err := time.Parse(time.DateOnly, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, err
	}
	return StartOfDay(day), nil
}
