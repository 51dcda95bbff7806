// Package harvest pulls feed entries, extracts content, deduplicates, and
// persists new articles.
package harvest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/dera1992/new-aggregator-app/internal/news"
)

// feedBodyCap bounds how much of a feed response is read.
const feedBodyCap = 10 << 20

// GofeedSource implements news.FeedSource using the gofeed parser.
type GofeedSource struct {
	httpClient *http.Client
	userAgent  string
}

// NewGofeedSource builds a feed source with its own request timeout.
func NewGofeedSource(timeout time.Duration, userAgent string) *GofeedSource {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GofeedSource{
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  userAgent,
	}
}

// Fetch retrieves and parses one feed. Entries keep whichever of link,
// title, and summary the feed provided; filtering happens downstream.
func (s *GofeedSource) Fetch(ctx context.Context, feedURL string) ([]news.FeedEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("new feed request: %w", err)
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", feedURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch feed %s: status %d", feedURL, resp.StatusCode)
	}

	parsed, err := gofeed.NewParser().Parse(io.LimitReader(resp.Body, feedBodyCap))
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feedURL, err)
	}

	entries := make([]news.FeedEntry, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		summary := item.Description
		if summary == "" {
			summary = item.Content
		}
		entries = append(entries, news.FeedEntry{
			Link:    item.Link,
			Title:   item.Title,
			Summary: summary,
		})
	}
	return entries, nil
}
