package buildscript

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// FetchError indicates a script download failed.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch script %s: %v", e.URL, e.Err)
}
func (e *FetchError) Unwrap() error { return e.Err }

// Fetcher downloads a build script by URL into a local file.
type Fetcher interface {
	Fetch(ctx context.Context, url, dest string) error
}

// HTTPFetcher implements Fetcher over net/http.
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher creates a fetcher with a bounded request timeout.
func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{client: &http.Client{Timeout: 60 * time.Second}}
}

// Fetch downloads url into dest, marking the file executable so it can be
// launched directly.
func (f *HTTPFetcher) Fetch(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &FetchError{URL: url, Err: err}
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &FetchError{URL: url, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o755)
	if err != nil {
		return &FetchError{URL: url, Err: err}
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		return &FetchError{URL: url, Err: err}
	}
	if err := out.Close(); err != nil {
		return &FetchError{URL: url, Err: err}
	}
	return nil
}
