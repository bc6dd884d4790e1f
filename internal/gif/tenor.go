// Package gif provides the Tenor client used to occasionally chase a reply
// with a matching GIF.
package gif

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kohanai/kohana/internal/config"
)

// Tenor queries the Tenor v2 search API.
type Tenor struct {
	logger   *slog.Logger
	client   *http.Client
	endpoint string
	apiKey   string
	chance   float64
}

// NewTenor builds a GIF client from config. Returns nil when no API key is
// configured so callers can treat GIFs as unavailable.
func NewTenor(log *slog.Logger, cfg config.GIFConfig) *Tenor {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = config.DefaultTenorEndpoint
	}
	return &Tenor{
		logger:   log.With(slog.String("service", "gif")),
		client:   &http.Client{Timeout: 10 * time.Second},
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   strings.TrimSpace(cfg.APIKey),
		chance:   cfg.Chance,
	}
}

// ShouldChase rolls the configured probability for attaching a GIF.
func (t *Tenor) ShouldChase() bool {
	return t.chance > 0 && rand.Float64() < t.chance
}

// Search returns the URL of one GIF matching the query, picked at random
// from the first page of results.
func (t *Tenor) Search(ctx context.Context, query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", fmt.Errorf("query is required")
	}

	reqURL, err := url.Parse(t.endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid gif endpoint: %w", err)
	}
	params := reqURL.Query()
	params.Set("q", query)
	params.Set("key", t.apiKey)
	params.Set("limit", "10")
	params.Set("media_filter", "gif")
	reqURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return "", err
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			t.logger.Warn("close gif response body failed", slog.Any("error", err))
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("gif request failed: status %d", resp.StatusCode)
	}

	var raw struct {
		Results []struct {
			MediaFormats map[string]struct {
				URL string `json:"url"`
			} `json:"media_formats"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", fmt.Errorf("invalid gif response: %w", err)
	}

	urls := make([]string, 0, len(raw.Results))
	for _, r := range raw.Results {
		if media, ok := r.MediaFormats["gif"]; ok && media.URL != "" {
			urls = append(urls, media.URL)
		}
	}
	if len(urls) == 0 {
		return "", fmt.Errorf("no gifs found")
	}
	return urls[rand.Intn(len(urls))], nil
}
