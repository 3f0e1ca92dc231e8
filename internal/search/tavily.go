// Package search is the web search boundary used by the researcher stage.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"golang.org/x/time/rate"
)

// Default configuration values.
const (
	DefaultBaseURL       = "https://api.tavily.com"
	DefaultRatePerSecond = 2.0
	DefaultBurst         = 2
	DefaultMaxResults    = 3

	maxResponseBytes  = 4 << 20
	maxErrorBodyBytes = 4 << 10
)

// ErrDisabled is returned by Search when no API key is configured.
var ErrDisabled = errors.New("web search disabled")

// Result is one search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// Config holds configuration for the Tavily client.
type Config struct {
	// APIKey enables search. Empty disables it.
	APIKey string

	// BaseURL is the API base URL (default: https://api.tavily.com).
	BaseURL string

	// RatePerSecond and Burst bound outbound requests.
	RatePerSecond float64
	Burst         int

	HTTPClient *http.Client
}

// StatusError reports a non-2xx response from the search API.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := e.Body
	if utf8.RuneCountInString(body) > 300 {
		body = string([]rune(body)[:300]) + "..."
	}
	return fmt.Sprintf("tavily: status %d: %s", e.StatusCode, body)
}

// Client queries the Tavily search API.
type Client struct {
	client  *http.Client
	baseURL string
	apiKey  string
	limiter *rate.Limiter
}

// New creates a client. A client without an API key is valid but disabled.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = DefaultRatePerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultBurst
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	return &Client{
		client:  cfg.HTTPClient,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
	}
}

// Enabled reports whether an API key is configured.
func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != ""
}

type searchRequest struct {
	APIKey        string `json:"api_key"`
	Query         string `json:"query"`
	IncludeAnswer bool   `json:"include_answer"`
	MaxResults    int    `json:"max_results"`
}

type searchResponse struct {
	Results []Result `json:"results"`
}

// Search runs one query, waiting on the rate limiter first.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	if !c.Enabled() {
		return nil, ErrDisabled
	}
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	jsonBody, err := json.Marshal(searchRequest{
		APIKey:        c.apiKey,
		Query:         query,
		IncludeAnswer: true,
		MaxResults:    maxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var out searchResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out.Results, nil
}
