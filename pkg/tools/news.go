package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/araval/sahayak-go/internal/config"
	"github.com/araval/sahayak-go/internal/logger"
	"github.com/araval/sahayak-go/internal/news"
)

var newsSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "query": {
      "type": "string",
      "description": "The subject for the news search (e.g., 'bitcoin', 'technology'). Use 'general' for top headlines."
    },
    "max_articles": {
      "type": "integer",
      "description": "Maximum number of articles to return (API limits may apply)."
    }
  }
}`)

// NewsFetcher is the news backend; satisfied by *news.Client and
// mocked in tests.
type NewsFetcher interface {
	Fetch(ctx context.Context, query string, maxArticles int) (*news.Response, error)
}

// NewsTool retrieves top headlines or news about a specific subject
// and formats titles and descriptions into a text report.
type NewsTool struct {
	fetcher     NewsFetcher
	maxArticles int
}

// NewNewsTool creates a NewsTool backed by NewsAPI.
func NewNewsTool(cfg config.NewsConfig) *NewsTool {
	maxArticles := cfg.MaxArticles
	if maxArticles <= 0 {
		maxArticles = 5
	}
	return &NewsTool{fetcher: news.NewClient(cfg), maxArticles: maxArticles}
}

// Name returns the name of the tool
func (t *NewsTool) Name() string { return "news_tool" }

// Description returns the description of the tool
func (t *NewsTool) Description() string {
	return "Retrieves top news headlines or news about a specific subject and returns a formatted list of titles and descriptions. Use query 'general' for top headlines."
}

// Parameters returns the argument schema
func (t *NewsTool) Parameters() json.RawMessage { return newsSchema }

// Run fetches and formats articles. An empty result set is an INFO
// outcome, not an error.
func (t *NewsTool) Run(ctx context.Context, args string) (string, error) {
	logger.L.Info("news tool invoked", "args", args)

	req := struct {
		Query       string `json:"query"`
		MaxArticles int    `json:"max_articles"`
	}{
		Query:       news.GeneralQuery,
		MaxArticles: t.maxArticles,
	}
	if args != "" {
		if err := json.Unmarshal([]byte(args), &req); err != nil {
			return Errorf("An unexpected error occurred in news_tool: invalid arguments: %v", err).String(), nil
		}
	}
	if req.Query == "" {
		req.Query = news.GeneralQuery
	}
	if req.MaxArticles <= 0 {
		return Errorf("An unexpected error occurred in news_tool: max_articles must be a positive integer, got %d", req.MaxArticles).String(), nil
	}

	resp, err := t.fetcher.Fetch(ctx, req.Query, req.MaxArticles)
	if err != nil {
		return newsErrorResult(err).String(), nil
	}

	if len(resp.Articles) == 0 {
		return Infof("No news articles found for %s.", resp.Scope).String(), nil
	}

	return formatArticles(resp), nil
}

func newsErrorResult(err error) Result {
	var statusErr *news.StatusError
	var urlErr *url.Error
	switch {
	case errors.As(err, &statusErr):
		return Errorf("HTTP Error accessing News API. Status Code: %d. Details: %s", statusErr.StatusCode, statusErr.Body)
	case errors.As(err, &urlErr):
		return Errorf("Connection Error: Could not connect to the News API server.")
	default:
		return Errorf("An unexpected error occurred in news_tool: %v", err)
	}
}

func formatArticles(resp *news.Response) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Top %d Results for %s:", len(resp.Articles), resp.Scope)
	for i, article := range resp.Articles {
		title := article.Title
		if title == "" {
			title = "N/A"
		}
		description := article.Description
		if description == "" {
			description = "N/A"
		}
		fmt.Fprintf(&b, "\n\n--- Article %d ---\nTitle: %s\nDescription: %s", i+1, title, description)
	}
	return b.String()
}
