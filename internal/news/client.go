// Package news fetches headlines from NewsAPI. A query of "general"
// selects the country-scoped top-headlines feed; anything else runs a
// full-text search sorted by recency.
package news

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/araval/sahayak-go/internal/config"
)

// GeneralQuery selects the top-headlines endpoint.
const GeneralQuery = "general"

// StatusError is returned for a non-2xx response and carries the
// status code and response body for the error report.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("news API returned status %d: %s", e.StatusCode, e.Body)
}

// Article is one news item; only title and description are surfaced.
type Article struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Response is the outcome of a news query. Articles may be empty;
// that is an informational result, not an error. Scope describes the
// query for display ("Top US Headlines" or "News about '<q>'").
type Response struct {
	Scope    string
	Articles []Article
}

// Client calls the NewsAPI endpoints.
type Client struct {
	apiKey  string
	baseURL string
	country string
	http    *http.Client
}

// NewClient creates a news client. The API key comes from
// configuration, never from source.
func NewClient(cfg config.NewsConfig) *Client {
	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		country: cfg.Country,
		http:    &http.Client{},
	}
}

// Fetch retrieves up to maxArticles articles for the query.
// Provider-side page size limits are not validated here.
func (c *Client) Fetch(ctx context.Context, query string, maxArticles int) (*Response, error) {
	var endpoint, scope string
	params := url.Values{}
	params.Set("apiKey", c.apiKey)
	params.Set("pageSize", fmt.Sprintf("%d", maxArticles))

	if strings.EqualFold(query, GeneralQuery) {
		endpoint = c.baseURL + "/v2/top-headlines"
		params.Set("country", c.country)
		scope = fmt.Sprintf("Top %s Headlines", strings.ToUpper(c.country))
	} else {
		endpoint = c.baseURL + "/v2/everything"
		params.Set("q", query)
		params.Set("sortBy", "publishedAt")
		scope = fmt.Sprintf("News about '%s'", query)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var payload struct {
		Articles []Article `json:"articles"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode news response: %w", err)
	}

	return &Response{Scope: scope, Articles: payload.Articles}, nil
}
