package ingest

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed record.schema.json
var recordSchemaJSON string

var (
	compileOnce       sync.Once
	compiledSchema    *jsonschema.Schema
	compiledSchemaErr error
)

// ValidateRecord checks required fields and shape rules. A non-nil error
// means the record must be skipped.
func ValidateRecord(record CanonicalRecord) error {
	schema, err := loadSchema()
	if err != nil {
		return fmt.Errorf("load schema: %w", err)
	}

	encoded, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	decoder := json.NewDecoder(bytes.NewReader(encoded))
	decoder.UseNumber()
	var value any
	if err := decoder.Decode(&value); err != nil {
		return fmt.Errorf("decode record: %w", err)
	}

	if err := schema.Validate(value); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return validateSemantics(record)
}

func loadSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		compiler.AssertFormat = true

		if err := compiler.AddResource("canonical_record.schema.json", strings.NewReader(recordSchemaJSON)); err != nil {
			compiledSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}

		schema, err := compiler.Compile("canonical_record.schema.json")
		if err != nil {
			compiledSchemaErr = fmt.Errorf("compile schema: %w", err)
			return
		}

		compiledSchema = schema
	})

	if compiledSchemaErr != nil {
		return nil, compiledSchemaErr
	}
	if compiledSchema == nil {
		return nil, fmt.Errorf("schema not initialized")
	}
	return compiledSchema, nil
}

func validateSemantics(record CanonicalRecord) error {
	if err := validateStorableText(record); err != nil {
		return err
	}
	if strings.TrimSpace(record.ExternalID) == "" {
		return fmt.Errorf("merchant_id must not be empty")
	}
	if strings.TrimSpace(record.Title) == "" {
		return fmt.Errorf("title must not be empty")
	}
	if strings.TrimSpace(record.Slug) == "" {
		return fmt.Errorf("slug must not be empty")
	}

	parsed, err := url.Parse(strings.TrimSpace(record.URL))
	if err != nil {
		return fmt.Errorf("url must be a valid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("url must use http or https")
	}
	if parsed.Host == "" {
		return fmt.Errorf("url must include host")
	}
	return nil
}

// validateStorableText rejects values Postgres refuses in text columns, so
// the record is skipped instead of rolling back its whole batch.
func validateStorableText(record CanonicalRecord) error {
	fields := []struct {
		name  string
		value *string
	}{
		{"merchant_id", &record.ExternalID},
		{"title", &record.Title},
		{"slug", &record.Slug},
		{"url", &record.URL},
		{"description", record.Description},
		{"content", record.Content},
		{"author", record.Author},
		{"category_label", record.CategoryLabel},
		{"thumbnail", record.Thumbnail},
	}
	for _, field := range fields {
		if field.value == nil {
			continue
		}
		if !utf8.ValidString(*field.value) {
			return fmt.Errorf("%s must be valid UTF-8", field.name)
		}
		if strings.IndexByte(*field.value, 0) >= 0 {
			return fmt.Errorf("%s must not contain NUL bytes", field.name)
		}
	}
	return nil
}
