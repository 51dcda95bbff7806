package news

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable is returned when an optional capability (generative
// text, embeddings) is not configured. Call sites must check for it
// explicitly rather than risk a nil dereference.
var ErrUnavailable = errors.New("capability not configured")

// ArticleStore persists articles and the pipeline's per-stage updates.
type ArticleStore interface {
	// ExistsBySourceURL reports whether an article with the URL is already persisted.
	ExistsBySourceURL(ctx context.Context, url string) (bool, error)
	// ExistsByFingerprint reports whether the content fingerprint is already persisted.
	ExistsByFingerprint(ctx context.Context, fingerprint string) (bool, error)
	// InsertBatch persists new articles in one transaction. A uniqueness
	// violation rejects the offending row only; the remaining rows are still
	// attempted. It returns the number of rows actually inserted.
	InsertBatch(ctx context.Context, articles []Article) (int, error)
	// Unsummarized returns up to limit articles lacking a summary, in stable order.
	Unsummarized(ctx context.Context, limit int) ([]Article, error)
	// SetSummary records a successful summarization, clearing any prior error.
	SetSummary(ctx context.Context, id int64, summary string, style SummaryStyle, at time.Time) error
	// SetSummaryError records a failed summarization attempt. Any summary from
	// a prior successful attempt is left untouched.
	SetSummaryError(ctx context.Context, id int64, message string, at time.Time) error
	// SummarizedSince returns summarized articles created at or after the cutoff.
	SummarizedSince(ctx context.Context, cutoff time.Time) ([]Article, error)
	// AssignClusters writes cluster ids for the whole cohort in one transaction.
	AssignClusters(ctx context.Context, assignments map[int64]string) error
	// ClusteredSince returns clustered articles created at or after the cutoff,
	// optionally filtered by category and source domain. Results are ordered
	// newest first.
	ClusteredSince(ctx context.Context, cutoff time.Time, categories, sources []string) ([]Article, error)
}

// SubscriptionStore reads digest subscriptions.
type SubscriptionStore interface {
	// DueDigests returns enabled subscriptions whose digest time equals the
	// given "HH:MM" minute.
	DueDigests(ctx context.Context, minute string) ([]Subscription, error)
}

// FeedSource returns the entries of a single feed.
type FeedSource interface {
	Fetch(ctx context.Context, feedURL string) ([]FeedEntry, error)
}

// PageResult is the outcome of fetching a full article page.
type PageResult struct {
	StatusCode int
	Body       string
}

// PageFetcher retrieves a page body honoring split connect/read timeouts.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (PageResult, error)
}

// TextGenerator produces generated text from a prompt. Implementations may be
// absent entirely; consumers hold a nil interface and must branch on it.
type TextGenerator interface {
	Generate(ctx context.Context, system, user string) (string, error)
}

// Embedder maps a batch of strings to one fixed-length vector per string.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// Notifier performs best-effort delivery; no confirmation is awaited.
type Notifier interface {
	Notify(ctx context.Context, destination, subject, body string) error
}

// Cache is the shared external key/value store used for lease locks and
// stage metrics. Absence of a cache puts the coordinator and monitoring
// into their degraded single-process modes.
type Cache interface {
	// SetNX stores the value only if the key is absent, with an expiry.
	// It reports whether the value was stored.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	// Get returns the value and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set stores the value unconditionally, without expiry.
	Set(ctx context.Context, key, value string) error
	// Del removes the key.
	Del(ctx context.Context, key string) error
}
