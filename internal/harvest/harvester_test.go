package harvest

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dera1992/new-aggregator-app/internal/news"
)

type fakeStore struct {
	urls         map[string]bool
	fingerprints map[string]bool
	inserted     []news.Article
	insertErr    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		urls:         make(map[string]bool),
		fingerprints: make(map[string]bool),
	}
}

func (s *fakeStore) ExistsBySourceURL(_ context.Context, url string) (bool, error) {
	return s.urls[url], nil
}

func (s *fakeStore) ExistsByFingerprint(_ context.Context, fp string) (bool, error) {
	return s.fingerprints[fp], nil
}

func (s *fakeStore) InsertBatch(_ context.Context, articles []news.Article) (int, error) {
	if s.insertErr != nil {
		return 0, s.insertErr
	}
	s.inserted = append(s.inserted, articles...)
	return len(articles), nil
}

func (s *fakeStore) Unsummarized(context.Context, int) ([]news.Article, error) { return nil, nil }
func (s *fakeStore) SetSummary(context.Context, int64, string, news.SummaryStyle, time.Time) error {
	return nil
}
func (s *fakeStore) SetSummaryError(context.Context, int64, string, time.Time) error { return nil }
func (s *fakeStore) SummarizedSince(context.Context, time.Time) ([]news.Article, error) {
	return nil, nil
}
func (s *fakeStore) AssignClusters(context.Context, map[int64]string) error { return nil }
func (s *fakeStore) ClusteredSince(context.Context, time.Time, []string, []string) ([]news.Article, error) {
	return nil, nil
}

type fakeFeeds struct {
	entries map[string][]news.FeedEntry
	errs    map[string]error
}

func (f *fakeFeeds) Fetch(_ context.Context, feedURL string) ([]news.FeedEntry, error) {
	if err := f.errs[feedURL]; err != nil {
		return nil, err
	}
	return f.entries[feedURL], nil
}

type fakePages struct {
	results map[string]news.PageResult
	errs    map[string]error
}

func (f *fakePages) Fetch(_ context.Context, url string) (news.PageResult, error) {
	if err := f.errs[url]; err != nil {
		return news.PageResult{}, err
	}
	return f.results[url], nil
}

func newHarvester(store *fakeStore, feeds *fakeFeeds, pages *fakePages, cfg Config) *Harvester {
	h := New(store, feeds, pages, cfg, zap.NewNop())
	h.SetClock(func() time.Time { return time.Unix(1700000000, 0) })
	return h
}

func TestRunPersistsFullPageForAllowlistedDomain(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	feeds := &fakeFeeds{entries: map[string][]news.FeedEntry{
		"https://feeds.example.com/tech": {
			{Link: "https://example.com/story", Title: "A Story", Summary: "<p>teaser</p>"},
		},
	}}
	pages := &fakePages{results: map[string]news.PageResult{
		"https://example.com/story": {
			StatusCode: http.StatusOK,
			Body:       "<html><body><p>First paragraph.</p><p>Second paragraph.</p></body></html>",
		},
	}}

	h := newHarvester(store, feeds, pages, Config{
		Feeds:        []news.Feed{{Category: "Tech", URL: "https://feeds.example.com/tech"}},
		AllowDomains: []string{"example.com"},
	})

	require.NoError(t, h.Run(context.Background()))
	require.Len(t, store.inserted, 1)

	got := store.inserted[0]
	require.Equal(t, "A Story", got.Title)
	require.Equal(t, "example.com", got.SourceDomain)
	require.Equal(t, "Tech", got.Category)
	require.Equal(t, news.FetchStatusOK, got.FetchStatus)
	require.Equal(t, "First paragraph. Second paragraph.", got.RawContent)
	require.Equal(t, Fingerprint(got.Title, got.SourceURL, got.RawContent), got.ContentFingerprint)
	require.Equal(t, time.Unix(1700000000, 0).UTC(), got.CreatedAt)
}

func TestRunFallsBackToFeedSummaryOnBlock(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		statusCode int
		want       news.FetchStatus
	}{
		{"forbidden", http.StatusForbidden, news.FetchStatusBlocked403},
		{"rate limited", http.StatusTooManyRequests, news.FetchStatusBlocked429},
		{"server error", http.StatusBadGateway, news.FetchStatusFailed},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			store := newFakeStore()
			feeds := &fakeFeeds{entries: map[string][]news.FeedEntry{
				"https://feeds.example.com/tech": {
					{Link: "https://example.com/story", Title: "A Story", Summary: "<b>the teaser</b>"},
				},
			}}
			pages := &fakePages{results: map[string]news.PageResult{
				"https://example.com/story": {StatusCode: tc.statusCode, Body: "blocked"},
			}}

			h := newHarvester(store, feeds, pages, Config{
				Feeds:        []news.Feed{{Category: "Tech", URL: "https://feeds.example.com/tech"}},
				AllowDomains: []string{"example.com"},
			})

			require.NoError(t, h.Run(context.Background()))
			require.Len(t, store.inserted, 1)
			require.Equal(t, tc.want, store.inserted[0].FetchStatus)
			require.Equal(t, "the teaser", store.inserted[0].RawContent)
		})
	}
}

func TestRunTransportFailureMarksFailed(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	feeds := &fakeFeeds{entries: map[string][]news.FeedEntry{
		"https://feeds.example.com/tech": {
			{Link: "https://example.com/story", Title: "A Story", Summary: "teaser"},
		},
	}}
	pages := &fakePages{errs: map[string]error{
		"https://example.com/story": errors.New("connection refused"),
	}}

	h := newHarvester(store, feeds, pages, Config{
		Feeds:        []news.Feed{{Category: "Tech", URL: "https://feeds.example.com/tech"}},
		AllowDomains: []string{"example.com"},
	})

	require.NoError(t, h.Run(context.Background()))
	require.Len(t, store.inserted, 1)
	require.Equal(t, news.FetchStatusFailed, store.inserted[0].FetchStatus)
	require.Equal(t, "teaser", store.inserted[0].RawContent)
}

func TestRunNonAllowlistedDomainKeepsFeedSummary(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	feeds := &fakeFeeds{entries: map[string][]news.FeedEntry{
		"https://feeds.example.com/tech": {
			{Link: "https://other.example.org/story", Title: "Elsewhere", Summary: "<p>summary only</p>"},
		},
	}}
	pages := &fakePages{} // must never be called

	h := newHarvester(store, feeds, pages, Config{
		Feeds:        []news.Feed{{Category: "Tech", URL: "https://feeds.example.com/tech"}},
		AllowDomains: []string{"example.com"},
	})

	require.NoError(t, h.Run(context.Background()))
	require.Len(t, store.inserted, 1)
	require.Equal(t, news.FetchStatusRSSOnly, store.inserted[0].FetchStatus)
	require.Equal(t, "summary only", store.inserted[0].RawContent)
}

func TestRunSkipsDuplicatesAndIncompleteEntries(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.urls["https://example.org/known"] = true
	feeds := &fakeFeeds{entries: map[string][]news.FeedEntry{
		"https://feeds.example.com/tech": {
			{Link: "https://example.org/known", Title: "Already Stored", Summary: "x"},
			{Link: "https://example.org/new", Title: "Fresh", Summary: "y"},
			{Link: "https://example.org/new", Title: "Fresh Again", Summary: "y"},
			{Link: "", Title: "No Link", Summary: "z"},
			{Link: "https://example.org/untitled", Title: "", Summary: "z"},
		},
	}}

	h := newHarvester(store, feeds, &fakePages{}, Config{
		Feeds: []news.Feed{{Category: "Tech", URL: "https://feeds.example.com/tech"}},
	})

	require.NoError(t, h.Run(context.Background()))
	require.Len(t, store.inserted, 1)
	require.Equal(t, "https://example.org/new", store.inserted[0].SourceURL)
}

func TestRunSkipsPersistedFingerprint(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	entry := news.FeedEntry{Link: "https://example.org/story", Title: "Syndicated", Summary: "same body"}
	store.fingerprints[Fingerprint(entry.Title, entry.Link, "same body")] = true

	feeds := &fakeFeeds{entries: map[string][]news.FeedEntry{
		"https://feeds.example.com/tech": {entry},
	}}

	h := newHarvester(store, feeds, &fakePages{}, Config{
		Feeds: []news.Feed{{Category: "Tech", URL: "https://feeds.example.com/tech"}},
	})

	require.NoError(t, h.Run(context.Background()))
	require.Empty(t, store.inserted)
}

func TestRunOneFeedFailureDoesNotAbortOthers(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	feeds := &fakeFeeds{
		entries: map[string][]news.FeedEntry{
			"https://feeds.example.com/good": {
				{Link: "https://example.org/ok", Title: "Survives", Summary: "s"},
			},
		},
		errs: map[string]error{
			"https://feeds.example.com/bad": errors.New("malformed xml"),
		},
	}

	h := newHarvester(store, feeds, &fakePages{}, Config{
		Feeds: []news.Feed{
			{Category: "Tech", URL: "https://feeds.example.com/bad"},
			{Category: "Tech", URL: "https://feeds.example.com/good"},
		},
	})

	require.NoError(t, h.Run(context.Background()))
	require.Len(t, store.inserted, 1)
	require.Equal(t, "Survives", store.inserted[0].Title)
}

func TestRunCommitFailureFailsRun(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.insertErr = errors.New("connection lost")
	feeds := &fakeFeeds{entries: map[string][]news.FeedEntry{
		"https://feeds.example.com/tech": {
			{Link: "https://example.org/story", Title: "Doomed", Summary: "s"},
		},
	}}

	h := newHarvester(store, feeds, &fakePages{}, Config{
		Feeds: []news.Feed{{Category: "Tech", URL: "https://feeds.example.com/tech"}},
	})

	require.Error(t, h.Run(context.Background()))
}

func TestFingerprintIsContentSensitive(t *testing.T) {
	t.Parallel()

	a := Fingerprint("Title", "https://example.com/a", "body")
	b := Fingerprint("Title", "https://example.com/a", "body")
	c := Fingerprint("Title", "https://example.com/a", "other body")

	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
	require.Len(t, a, 64)
}
