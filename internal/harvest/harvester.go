package harvest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dera1992/new-aggregator-app/internal/news"
)

// Config controls one harvest pass.
type Config struct {
	Feeds []news.Feed
	// AllowDomains lists source domains eligible for full-page fetching.
	// Entries from any other domain keep the feed-provided summary.
	AllowDomains   []string
	ContentCap     int
	FeedSummaryCap int
}

// Harvester pulls feed entries and persists new deduplicated articles.
type Harvester struct {
	store  news.ArticleStore
	feeds  news.FeedSource
	pages  news.PageFetcher
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

// New constructs a Harvester.
func New(
	store news.ArticleStore,
	feeds news.FeedSource,
	pages news.PageFetcher,
	cfg Config,
	logger *zap.Logger,
) *Harvester {
	if cfg.ContentCap <= 0 {
		cfg.ContentCap = 5000
	}
	if cfg.FeedSummaryCap <= 0 {
		cfg.FeedSummaryCap = 1500
	}
	return &Harvester{
		store:  store,
		feeds:  feeds,
		pages:  pages,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// SetClock overrides the time source, for tests.
func (h *Harvester) SetClock(now func() time.Time) {
	h.now = now
}

// Run executes one harvest pass over all configured feeds. A parse failure
// on one feed does not abort the others; all new articles are committed
// together at the end, and a commit failure fails the run.
func (h *Harvester) Run(ctx context.Context) error {
	seenURLs := make(map[string]struct{})
	seenFingerprints := make(map[string]struct{})
	var batch []news.Article

	for _, feed := range h.cfg.Feeds {
		entries, err := h.feeds.Fetch(ctx, feed.URL)
		if err != nil {
			h.logger.Warn("feed fetch failed, skipping",
				zap.String("feed", feed.URL), zap.Error(err))
			continue
		}
		for _, entry := range entries {
			article, ok, err := h.collect(ctx, feed.Category, entry, seenURLs, seenFingerprints)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			seenURLs[article.SourceURL] = struct{}{}
			seenFingerprints[article.ContentFingerprint] = struct{}{}
			batch = append(batch, article)
		}
	}

	inserted, err := h.store.InsertBatch(ctx, batch)
	if err != nil {
		return fmt.Errorf("persist harvest batch: %w", err)
	}
	h.logger.Info("harvest pass complete",
		zap.Int("collected", len(batch)), zap.Int("inserted", inserted))
	return nil
}

// collect builds a deduplicated Article from one feed entry. The bool
// result is false when the entry is skipped.
func (h *Harvester) collect(
	ctx context.Context,
	category string,
	entry news.FeedEntry,
	seenURLs, seenFingerprints map[string]struct{},
) (news.Article, bool, error) {
	if entry.Link == "" || entry.Title == "" {
		return news.Article{}, false, nil
	}
	if _, ok := seenURLs[entry.Link]; ok {
		return news.Article{}, false, nil
	}
	exists, err := h.store.ExistsBySourceURL(ctx, entry.Link)
	if err != nil {
		return news.Article{}, false, fmt.Errorf("dedup by source_url: %w", err)
	}
	if exists {
		return news.Article{}, false, nil
	}

	domain := domainOf(entry.Link)
	content, status := h.content(ctx, domain, entry)

	fingerprint := Fingerprint(entry.Title, entry.Link, content)
	if _, ok := seenFingerprints[fingerprint]; ok {
		return news.Article{}, false, nil
	}
	exists, err = h.store.ExistsByFingerprint(ctx, fingerprint)
	if err != nil {
		return news.Article{}, false, fmt.Errorf("dedup by fingerprint: %w", err)
	}
	if exists {
		return news.Article{}, false, nil
	}

	return news.Article{
		Title:              entry.Title,
		SourceURL:          entry.Link,
		SourceDomain:       domain,
		RawContent:         content,
		Category:           category,
		ContentFingerprint: fingerprint,
		FetchStatus:        status,
		CreatedAt:          h.now().UTC(),
	}, true, nil
}

// content resolves the article body. Allow-listed domains get a full-page
// fetch with fallback to the feed summary on block or failure; everything
// else is summary-only.
func (h *Harvester) content(
	ctx context.Context, domain string, entry news.FeedEntry,
) (string, news.FetchStatus) {
	fallback := stripHTML(entry.Summary, h.cfg.FeedSummaryCap)

	if !h.allowed(domain) {
		return fallback, news.FetchStatusRSSOnly
	}

	page, err := h.pages.Fetch(ctx, entry.Link)
	if err != nil {
		h.logger.Debug("page fetch failed, falling back to feed summary",
			zap.String("url", entry.Link), zap.Error(err))
		return fallback, news.FetchStatusFailed
	}
	switch {
	case page.StatusCode == http.StatusForbidden:
		return fallback, news.FetchStatusBlocked403
	case page.StatusCode == http.StatusTooManyRequests:
		return fallback, news.FetchStatusBlocked429
	case page.StatusCode < 200 || page.StatusCode > 299:
		return fallback, news.FetchStatusFailed
	}
	return extractParagraphs(page.Body, h.cfg.ContentCap), news.FetchStatusOK
}

func (h *Harvester) allowed(domain string) bool {
	for _, d := range h.cfg.AllowDomains {
		if strings.EqualFold(d, domain) {
			return true
		}
	}
	return false
}

// Fingerprint hashes title, URL, and content for cross-feed duplicate
// detection independent of the source URL.
func Fingerprint(title, sourceURL, content string) string {
	sum := sha256.Sum256([]byte(title + "|" + sourceURL + "|" + content))
	return hex.EncodeToString(sum[:])
}

func domainOf(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
