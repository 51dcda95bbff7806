package harvest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Example Tech</title>
    <item>
      <title>First Item</title>
      <link>https://example.com/first</link>
      <description>&lt;p&gt;first teaser&lt;/p&gt;</description>
    </item>
    <item>
      <title>Second Item</title>
      <link>https://example.com/second</link>
    </item>
  </channel>
</rss>`

func TestGofeedSourceParsesEntries(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(sampleRSS))
	}))
	defer srv.Close()

	source := NewGofeedSource(5*time.Second, "test-agent")
	entries, err := source.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "First Item", entries[0].Title)
	require.Equal(t, "https://example.com/first", entries[0].Link)
	require.Contains(t, entries[0].Summary, "first teaser")
	require.Empty(t, entries[1].Summary)
}

func TestGofeedSourceRejectsErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	source := NewGofeedSource(5*time.Second, "")
	_, err := source.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	require.Contains(t, err.Error(), "status 503")
}

func TestHTTPFetcherReturnsErrorStatusesInResult(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("denied"))
	}))
	defer srv.Close()

	fetcher := NewHTTPFetcher(2*time.Second, 2*time.Second, "test-agent")
	page, err := fetcher.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, http.StatusForbidden, page.StatusCode)
	require.Equal(t, "denied", page.Body)
}

func TestHTTPFetcherTransportError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // force a refused connection

	fetcher := NewHTTPFetcher(time.Second, time.Second, "")
	_, err := fetcher.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
}
