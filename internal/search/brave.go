// Package search provides the Brave web search client used to ground replies
// in fresh results.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kohanai/kohana/internal/config"
)

// Result is one web search hit.
type Result struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

// Brave queries the Brave Search API.
type Brave struct {
	logger   *slog.Logger
	client   *http.Client
	endpoint string
	apiKey   string
	count    int
}

// NewBrave builds a search client from config. Returns nil when no API key is
// configured so callers can treat search as unavailable.
func NewBrave(log *slog.Logger, cfg config.SearchConfig) *Brave {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = config.DefaultBraveEndpoint
	}
	count := cfg.Count
	if count <= 0 {
		count = 5
	}
	if count > 20 {
		count = 20
	}
	return &Brave{
		logger:   log.With(slog.String("service", "search")),
		client:   &http.Client{Timeout: 15 * time.Second},
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   strings.TrimSpace(cfg.APIKey),
		count:    count,
	}
}

// Search runs a web query and returns the result list.
func (b *Brave) Search(ctx context.Context, query string) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}

	reqURL, err := url.Parse(b.endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid search endpoint: %w", err)
	}
	params := reqURL.Query()
	params.Set("q", query)
	params.Set("count", strconv.Itoa(b.count))
	reqURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", b.apiKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			b.logger.Warn("close search response body failed", slog.Any("error", err))
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("search request failed: status %d", resp.StatusCode)
	}

	var raw struct {
		Web struct {
			Results []Result `json:"results"`
		} `json:"web"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("invalid search response: %w", err)
	}
	return raw.Web.Results, nil
}

// Snippets renders results as a compact text block for prompt injection.
func Snippets(results []Result) string {
	var sb strings.Builder
	for i, r := range results {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(r.Title)
		if r.Description != "" {
			sb.WriteString(": ")
			sb.WriteString(r.Description)
		}
	}
	return sb.String()
}
