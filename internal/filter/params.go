package filter

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

const maxParamLength = 255

// ValidationError maps request parameter names to messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e.Fields[name])
	}
	return "invalid query parameters: " + strings.Join(parts, "; ")
}

// ParseOverrides reads and validates the recognized query parameters.
// Absent parameters stay nil so Build leaves the preference value in place.
// Set parameters accept both "source=a" and "source[]=a&source[]=b".
func ParseOverrides(values url.Values) (*Overrides, error) {
	o := &Overrides{}
	fields := make(map[string]string)

	if raw, ok := single(values, "searchTerm"); ok {
		if utf8.RuneCountInString(raw) > maxParamLength {
			fields["searchTerm"] = "The searchTerm may not be greater than 255 characters."
		} else {
			o.SearchTerm = &raw
		}
	}
	if raw, ok := single(values, "author"); ok {
		if utf8.RuneCountInString(raw) > maxParamLength {
			fields["author"] = "The author may not be greater than 255 characters."
		} else {
			o.Author = &raw
		}
	}

	var err string
	if o.Sources, err = multi(values, "source"); err != "" {
		fields["source"] = err
	}
	if o.Categories, err = multi(values, "category"); err != "" {
		fields["category"] = err
	}

	var from time.Time
	if raw, ok := single(values, "from_date"); ok {
		parsed, parseErr := time.Parse(time.DateOnly, raw)
		if parseErr != nil {
			fields["from_date"] = "The from_date must be in Y-m-d format (e.g., 2025-01-01)."
		} else {
			from = parsed
			o.FromDate = &raw
		}
	}
	if raw, ok := single(values, "to_date"); ok {
		parsed, parseErr := time.Parse(time.DateOnly, raw)
		switch {
		case parseErr != nil:
			fields["to_date"] = "The to_date must be in Y-m-d format (e.g., 2025-01-01)."
		case !from.IsZero() && parsed.Before(from):
			fields["to_date"] = "The to_date must be equal to or after from_date."
		default:
			o.ToDate = &raw
		}
	}

	if raw, ok := single(values, "sort"); ok {
		if _, allowed := allowedSorts[raw]; !allowed {
			fields["sort"] = "The sort field must be one of: published_at, created_at, title."
		} else {
			o.Sort = &raw
		}
	}
	if raw, ok := single(values, "order"); ok {
		lowered := strings.ToLower(raw)
		if lowered != "asc" && lowered != "desc" {
			fields["order"] = "The order field must be either asc or desc."
		} else {
			o.Order = &lowered
		}
	}
	if raw, ok := single(values, "per_page"); ok {
		n, convErr := strconv.Atoi(raw)
		switch {
		case convErr != nil:
			fields["per_page"] = "The per_page must be an integer."
		case n < 1:
			fields["per_page"] = "The per_page must be at least 1."
		case n > MaxPerPage:
			fields["per_page"] = fmt.Sprintf("The per_page cannot exceed %d.", MaxPerPage)
		default:
			o.PerPage = &n
		}
	}
	if raw, ok := single(values, "page"); ok {
		n, convErr := strconv.Atoi(raw)
		switch {
		case convErr != nil:
			fields["page"] = "The page must be an integer."
		case n < 1:
			fields["page"] = "The page must be at least 1."
		case n > MaxPage:
			fields["page"] = fmt.Sprintf("The page cannot exceed %d.", MaxPage)
		default:
			o.Page = &n
		}
	}

	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}
	return o, nil
}

func single(values url.Values, name string) (string, bool) {
	if _, present := values[name]; !present {
		return "", false
	}
	return strings.TrimSpace(values.Get(name)), true
}

func multi(values url.Values, name string) ([]string, string) {
	raw := append(append([]string(nil), values[name]...), values[name+"[]"]...)
	if len(raw) == 0 {
		return nil, ""
	}
	out := make([]string, 0, len(raw))
	for _, value := range raw {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		if utf8.RuneCountInString(trimmed) > maxParamLength {
			return nil, fmt.Sprintf("Each %s may not be greater than 255 characters.", name)
		}
		out = append(out, trimmed)
	}
	return out, ""
}
