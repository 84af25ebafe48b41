package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
)

const maxBodySize = 10 << 20

type HTTPError struct {
	StatusCode int
	Status     string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP error: %s", e.Status)
}

func (e *HTTPError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	timeout    time.Duration
	retries    uint64
	backoff    time.Duration
}

func NewFetcher(httpClient *http.Client, userAgent string, timeout time.Duration, retries int) *Fetcher {
	if retries < 0 {
		retries = 0
	}
	return &Fetcher{
		httpClient: httpClient,
		userAgent:  userAgent,
		timeout:    timeout,
		retries:    uint64(retries),
		backoff:    500 * time.Millisecond,
	}
}

// Fetch downloads url, retrying network failures, 429 and 5xx responses.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	var data []byte

	backoff := retry.WithMaxRetries(f.retries, retry.NewExponential(f.backoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		body, err := f.fetchOnce(ctx, url)
		if err != nil {
			var httpErr *HTTPError
			if errors.As(err, &httpErr) && !httpErr.retryable() {
				return err
			}
			if ctx.Err() != nil {
				return err
			}
			slog.DebugContext(ctx, "Fetch attempt failed", "url", url, "error", err)
			return retry.RetryableError(err)
		}
		data = body
		return nil
	})
	if err != nil {
		return nil, err
	}

	return data, nil
}

func (f *Fetcher) fetchOnce(ctx context.Context, url string) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}
