// Package fetch retrieves raw pages from the source site. Retry and
// backoff live here; a fetch that fails permanently surfaces as a typed
// FetchError that the pipeline routes to the rejection log.
package fetch

import (
	"compress/gzip"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/powderlab/avalanche-obs-ingest/internal/domain"
)

const defaultSizeCap = 4 << 20 // record pages are text; anything bigger is wrong

// Client fetches pages over HTTP with bounded retries.
type Client struct {
	client    *http.Client
	userAgent string
	sizeCap   int64
	retries   int
	logger    *slog.Logger
}

// NewClient creates a Client. retries counts re-attempts after the
// first try; only transient failures (timeouts, 5xx, 429) are retried.
func NewClient(timeout time.Duration, retries int, logger *slog.Logger) *Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	return &Client{
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		userAgent: "avalanche-obs-ingest/1.0",
		sizeCap:   defaultSizeCap,
		retries:   retries,
		logger:    logger,
	}
}

// Fetch retrieves one page, retrying transient failures with doubling
// backoff. The returned RawPage is complete and immutable.
func (c *Client) Fetch(ctx context.Context, rawURL string) (domain.RawPage, error) {
	backoff := 500 * time.Millisecond
	const maxBackoff = 8 * time.Second

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			c.logger.Debug("retrying fetch", "url", rawURL, "attempt", attempt, "backoff", backoff)
			if !sleepWithContext(ctx, backoff) {
				return domain.RawPage{}, lastErr
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}

		page, retryable, err := c.fetchOnce(ctx, rawURL)
		if err == nil {
			return page, nil
		}
		lastErr = err
		if !retryable || ctx.Err() != nil {
			return domain.RawPage{}, err
		}
	}
	return domain.RawPage{}, lastErr
}

// fetchOnce performs a single request. The second return value reports
// whether the failure is worth retrying.
func (c *Client) fetchOnce(ctx context.Context, rawURL string) (domain.RawPage, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return domain.RawPage{}, false, &domain.FetchError{URL: rawURL, Reason: domain.FetchHTTPStatus, Err: err}
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		// Transport-level failures (timeouts, DNS, resets) all classify
		// as Timeout; the wrapped error keeps the detail for the log.
		return domain.RawPage{}, true, &domain.FetchError{URL: rawURL, Reason: domain.FetchTimeout, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		retryable := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		return domain.RawPage{}, retryable, &domain.FetchError{URL: rawURL, Reason: domain.FetchHTTPStatus, Status: resp.StatusCode}
	}

	var body io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return domain.RawPage{}, true, &domain.FetchError{URL: rawURL, Reason: domain.FetchHTTPStatus, Status: resp.StatusCode, Err: err}
		}
		defer gz.Close()
		body = gz
	}

	data, err := io.ReadAll(io.LimitReader(body, c.sizeCap))
	if err != nil {
		if isTimeout(err) {
			return domain.RawPage{}, true, &domain.FetchError{URL: rawURL, Reason: domain.FetchTimeout, Err: err}
		}
		return domain.RawPage{}, true, &domain.FetchError{URL: rawURL, Reason: domain.FetchHTTPStatus, Status: resp.StatusCode, Err: err}
	}

	return domain.RawPage{
		URL:        rawURL,
		FetchedAt:  time.Now().UTC(),
		StatusCode: resp.StatusCode,
		Body:       data,
	}, false, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
