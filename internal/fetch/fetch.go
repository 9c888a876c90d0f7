// Package fetch provides the single-attempt HTTP GET helper shared by
// the catalog client and the image cache. No retries, no backoff: a
// request either yields an HTTP response (whatever its status) or an
// error wrapping ErrUnavailable.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Timeout bounds every request issued through the Fetcher.
const Timeout = 10 * time.Second

// ErrUnavailable indicates a network-level failure (dial, DNS,
// timeout) before any HTTP status was received.
var ErrUnavailable = errors.New("remote source is unavailable")

// Fetcher wraps a shared http.Client with a fixed timeout.
type Fetcher struct {
	client *http.Client
	logger *slog.Logger
}

// New creates a Fetcher. A nil logger falls back to slog.Default().
func New(logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		client: &http.Client{Timeout: Timeout},
		logger: logger,
	}
}

// Get performs a single GET and returns the status code with the fully
// read body. Any status code is returned to the caller; only
// network-level failures produce an error.
func (f *Fetcher) Get(ctx context.Context, url string) (int, []byte, error) {
	resp, err := f.do(ctx, url)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

// GetStream performs a single GET and returns the status code with the
// unread body. The caller owns the ReadCloser.
func (f *Fetcher) GetStream(ctx context.Context, url string) (int, io.ReadCloser, error) {
	resp, err := f.do(ctx, url)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, resp.Body, nil
}

func (f *Fetcher) do(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Debug("request failed", "url", url, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return resp, nil
}
