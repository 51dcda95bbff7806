package harvest

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/dera1992/new-aggregator-app/internal/news"
)

// pageBodyCap bounds how much of an article page is read.
const pageBodyCap = 5 << 20

// HTTPFetcher implements news.PageFetcher with split connect/read timeouts.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
}

// NewHTTPFetcher builds a fetcher. The connect timeout bounds dialing (and
// TLS setup); the read timeout bounds waiting for response headers.
func NewHTTPFetcher(connectTimeout, readTimeout time.Duration, userAgent string) *HTTPFetcher {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: connectTimeout,
		}).DialContext,
		TLSHandshakeTimeout:   connectTimeout,
		ResponseHeaderTimeout: readTimeout,
		MaxIdleConns:          16,
		IdleConnTimeout:       90 * time.Second,
	}
	return &HTTPFetcher{
		client: &http.Client{
			Transport: transport,
			// Total budget: connect plus read plus body transfer slack.
			Timeout: connectTimeout + 2*readTimeout,
		},
		userAgent: userAgent,
	}
}

// Fetch performs a single GET. Transport failures return an error; HTTP
// error statuses are returned in the result for the caller to classify.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (news.PageResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return news.PageResult{}, fmt.Errorf("new page request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return news.PageResult{}, fmt.Errorf("fetch page %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, pageBodyCap))
	if err != nil {
		return news.PageResult{}, fmt.Errorf("read page %s: %w", url, err)
	}

	return news.PageResult{StatusCode: resp.StatusCode, Body: string(body)}, nil
}
