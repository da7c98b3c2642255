package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// HTTPFetcher downloads media over HTTP with a per-request timeout, a size
// cap and a circuit breaker around the remote host.
type HTTPFetcher struct {
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker
	timeout  time.Duration
	maxBytes int64
}

// FetcherOptions configures an HTTPFetcher.
type FetcherOptions struct {
	Timeout  time.Duration
	MaxBytes int64
	// Client overrides the default HTTP client, mainly for tests.
	Client *http.Client
}

// NewHTTPFetcher creates a fetcher. The breaker opens after five consecutive
// failures and tries again after thirty seconds.
func NewHTTPFetcher(opts FetcherOptions) *HTTPFetcher {
	client := opts.Client
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPFetcher{
		client:   client,
		timeout:  opts.Timeout,
		maxBytes: opts.MaxBytes,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "media-fetch",
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 5
			},
		}),
	}
}

// Fetch downloads url. Non-2xx responses and bodies over the size cap are
// errors.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	res, err := f.breaker.Execute(func() (interface{}, error) {
		return f.get(ctx, url)
	})
	if err != nil {
		return nil, err
	}
	return res.([]byte), nil
}

func (f *HTTPFetcher) get(ctx context.Context, url string) ([]byte, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var body io.Reader = resp.Body
	if f.maxBytes > 0 {
		body = io.LimitReader(resp.Body, f.maxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if f.maxBytes > 0 && int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("media larger than %d bytes", f.maxBytes)
	}
	return data, nil
}
