// Package provider maps external news APIs and feeds into canonical records.
package provider

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"horse.fit/newsdesk/internal/ingest"
)

// Adapter fetches one provider. It returns every usable entry or an error,
// never a partial list.
type Adapter interface {
	Fetch(ctx context.Context) ([]ingest.CanonicalRecord, error)
}

const maxErrorBodyBytes = 512

// HTTPClient is the subset of *http.Client adapters use.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

func getJSON(ctx context.Context, client HTTPClient, endpoint string, query url.Values, out any) error {
	body, err := get(ctx, client, endpoint, query, "application/json")
	if err != nil {
		return err
	}
	defer body.Close()

	if err := json.NewDecoder(body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", redactedHost(endpoint), err)
	}
	return nil
}

func get(ctx context.Context, client HTTPClient, endpoint string, query url.Values, accept string) (io.ReadCloser, error) {
	if client == nil {
		return nil, fmt.Errorf("http client is not configured")
	}

	target, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	if len(query) > 0 {
		merged := target.Query()
		for key, values := range query {
			for _, value := range values {
				merged.Add(key, value)
			}
		}
		target.RawQuery = merged.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", "newsdesk/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", redactedHost(endpoint), err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%s returned HTTP %d: %s", redactedHost(endpoint), resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return resp.Body, nil
}

// redactedHost keeps api keys in query strings out of error messages.
func redactedHost(endpoint string) string {
	parsed, err := url.Parse(endpoint)
	if err != nil || parsed.Host == "" {
		return "provider"
	}
	return parsed.Host
}

var (
	strictPolicy = bluemonday.StrictPolicy()
	ugcPolicy    = bluemonday.UGCPolicy()
)

// cleanText drops NUL bytes and invalid UTF-8, neither of which Postgres
// accepts in text columns, and trims surrounding space.
func cleanText(raw string) string {
	valid := strings.ToValidUTF8(raw, "")
	return strings.TrimSpace(strings.ReplaceAll(valid, "\x00", ""))
}

// plainText strips every tag and decodes entities. Blank input yields nil.
func plainText(raw string) *string {
	cleaned := cleanText(html.UnescapeString(strictPolicy.Sanitize(cleanText(raw))))
	if cleaned == "" {
		return nil
	}
	return &cleaned
}

// safeHTML keeps user generated content markup and drops anything active.
func safeHTML(raw string) *string {
	cleaned := cleanText(ugcPolicy.Sanitize(cleanText(raw)))
	if cleaned == "" {
		return nil
	}
	return &cleaned
}

func optional(raw string) *string {
	trimmed := cleanText(raw)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

func md5Hex(value string) string {
	sum := md5.Sum([]byte(value))
	return hex.EncodeToString(sum[:])
}
