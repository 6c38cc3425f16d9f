package rstore

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	"io"
	"net/http"
	"strings"
	"time"
)

// Fetcher downloads the complete remote dataset as key -> value rows
type Fetcher interface {
	Fetch(ctx context.Context) (map[string][]byte, error)
}

// FetchFunc adapts a function to the Fetcher interface
type FetchFunc func(ctx context.Context) (map[string][]byte, error)

func (f FetchFunc) Fetch(ctx context.Context) (map[string][]byte, error) {
	return f(ctx)
}

// --------------------------------------------------------------------------
// HTTP client
// --------------------------------------------------------------------------

// httpLogger routes the retryablehttp log output to the store logger
type httpLogger struct{}

func (httpLogger) Printf(format string, v ...interface{}) {
	log.Debugf(format, v...)
}

// NewHTTPClient creates a retrying HTTP client on top of a pooled cleanhttp transport.
func NewHTTPClient(retries int, timeout time.Duration) *retryablehttp.Client {
	client := retryablehttp.NewClient()
	client.HTTPClient = cleanhttp.DefaultPooledClient()
	if timeout > 0 {
		client.HTTPClient.Timeout = timeout
	}
	client.RetryMax = retries
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 5 * time.Second
	client.Logger = httpLogger{}
	return client
}

// download performs a GET request and returns the body of a 200 response
func download(ctx context.Context, client *retryablehttp.Client, url string) ([]byte, error) {
	if client == nil {
		client = NewHTTPClient(3, 30*time.Second)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request for %s: %w", url, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %s", url, resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	return body, nil
}

// --------------------------------------------------------------------------
// Sheet (CSV) fetcher
// --------------------------------------------------------------------------

// SheetFetcher downloads a published spreadsheet as CSV. The first row holds the field
// names, the first column the key. Each row is stored as JSON object field -> cell.
type SheetFetcher struct {
	URL    string
	Client *retryablehttp.Client // nil = NewHTTPClient(3, 30s)
}

func (f *SheetFetcher) Fetch(ctx context.Context) (map[string][]byte, error) {
	body, err := download(ctx, f.Client, f.URL)
	if err != nil {
		return nil, err
	}
	reader := csv.NewReader(bytes.NewReader(body))
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse sheet %s: %w", f.URL, err)
	}
	return ParseRows(rows)
}

// ParseRows turns tabular rows (first row = field names) into key -> JSON object entries.
// Rows with an empty key are skipped, missing cells become empty strings, a later row
// replaces an earlier one with the same key.
func ParseRows(rows [][]string) (map[string][]byte, error) {
	entries := make(map[string][]byte)
	if len(rows) == 0 {
		return entries, nil
	}
	header := rows[0]
	if len(header) == 0 || strings.TrimSpace(header[0]) == "" {
		return nil, fmt.Errorf("sheet has no key column")
	}

	for _, row := range rows[1:] {
		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		record := make(map[string]string, len(header))
		for i, field := range header {
			if i < len(row) {
				record[field] = row[i]
			} else {
				record[field] = ""
			}
		}
		value, err := json.Marshal(record)
		if err != nil {
			return nil, fmt.Errorf("encode row %q: %w", row[0], err)
		}
		entries[strings.TrimSpace(row[0])] = value
	}
	return entries, nil
}

// --------------------------------------------------------------------------
// JSON fetcher
// --------------------------------------------------------------------------

// JSONFetcher downloads a JSON object {key: value} and keeps every value as raw JSON.
type JSONFetcher struct {
	URL    string
	Client *retryablehttp.Client // nil = NewHTTPClient(3, 30s)
}

func (f *JSONFetcher) Fetch(ctx context.Context) (map[string][]byte, error) {
	body, err := download(ctx, f.Client, f.URL)
	if err != nil {
		return nil, err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", f.URL, err)
	}
	entries := make(map[string][]byte, len(raw))
	for key, value := range raw {
		entries[key] = []byte(value)
	}
	return entries, nil
}
