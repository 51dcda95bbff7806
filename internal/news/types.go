// Package news defines core types shared across pipeline subsystems.
package news

import (
	"time"
)

// FetchStatus records how an article's content was obtained.
type FetchStatus string

// Fetch status values persisted with each article.
const (
	FetchStatusOK         FetchStatus = "ok"
	FetchStatusBlocked403 FetchStatus = "blocked_403"
	FetchStatusBlocked429 FetchStatus = "blocked_429"
	FetchStatusFailed     FetchStatus = "failed"
	FetchStatusRSSOnly    FetchStatus = "rss_only"
)

// SummaryStyle selects the prompt used when summarizing an article.
type SummaryStyle string

// Supported summary styles. Bullets3 is the default.
const (
	StyleBullets3 SummaryStyle = "bullets-3"
	StyleShort    SummaryStyle = "short"
	StyleDetailed SummaryStyle = "detailed"
)

// Article is the persisted record for one ingested feed item.
// Rows are append-only; summarization and clustering update columns in place.
type Article struct {
	ID                 int64
	Title              string
	SourceURL          string
	SourceDomain       string
	RawContent         string
	Category           string
	ContentFingerprint string
	FetchStatus        FetchStatus
	Summary            *string
	SummaryError       *string
	SummaryStyle       SummaryStyle
	ClusterID          *string
	CreatedAt          time.Time
	ProcessedAt        *time.Time
}

// Summarized reports whether the article carries a generated summary.
func (a Article) Summarized() bool {
	return a.Summary != nil && *a.Summary != ""
}

// FeedEntry is a single item pulled from an RSS or Atom feed.
// Link and Title are required downstream; Summary may be empty.
type FeedEntry struct {
	Link    string
	Title   string
	Summary string
}

// Feed pairs a category label with the feed URL it is harvested from.
type Feed struct {
	Category string
	URL      string
}

// Subscription describes one subscriber eligible for digests.
// The user-preference CRUD lives in another service; only the query
// contract is consumed here.
type Subscription struct {
	UserID     int64
	Email      string
	DigestTime string // "HH:MM", subscriber-local minute
	Categories []string
	Sources    []string
}

// Story is a group of clustered articles rendered into one digest item.
type Story struct {
	ClusterID string
	Title     string
	Summary   string
	Sources   []string
	Newest    time.Time
}
