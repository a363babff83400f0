// fetcher.go - Document acquisition from an upload or a remote URL

package document

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Document is the raw input plus the name hint used for format sniffing.
type Document struct {
	Data []byte
	Hint string // uploaded filename or source URL
}

// Fetcher downloads a remote document.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// DownloadError is a transport failure: bad status, network error, timeout or oversize body.
type DownloadError struct {
	URL        string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *DownloadError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("HTTP %d from %s", e.StatusCode, e.URL)
	}
	return e.Err.Error()
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

// HTTPFetcher fetches documents with a plain GET.
type HTTPFetcher struct {
	client   *http.Client
	maxBytes int64
}

// NewHTTPFetcher creates a fetcher with a bounded timeout.
// maxBytes <= 0 disables the size check.
func NewHTTPFetcher(timeout time.Duration, maxBytes int64) *HTTPFetcher {
	return &HTTPFetcher{
		client:   &http.Client{Timeout: timeout},
		maxBytes: maxBytes,
	}
}

// Fetch downloads url and returns the body. Every failure is a *DownloadError.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &DownloadError{URL: url, Err: fmt.Errorf("invalid document URL: %w", err)}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &DownloadError{URL: url, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &DownloadError{
			URL:        url,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	body := io.Reader(resp.Body)
	if f.maxBytes > 0 {
		body = io.LimitReader(resp.Body, f.maxBytes+1)
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, &DownloadError{URL: url, Err: fmt.Errorf("failed to read body: %w", err)}
	}
	if f.maxBytes > 0 && int64(len(data)) > f.maxBytes {
		return nil, &DownloadError{URL: url, Err: fmt.Errorf("document exceeds %d bytes", f.maxBytes)}
	}

	return data, nil
}

// FromUpload wraps uploaded bytes. No I/O happens.
func FromUpload(data []byte, filename string) Document {
	return Document{Data: data, Hint: filename}
}

// FromURL downloads the document behind url.
func FromURL(ctx context.Context, fetcher Fetcher, url string) (Document, error) {
	url = strings.TrimSpace(url)
	data, err := fetcher.Fetch(ctx, url)
	if err != nil {
		return Document{}, err
	}
	return Document{Data: data, Hint: url}, nil
}
