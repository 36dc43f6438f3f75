package rag

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"saascribe-platform/models"
)

var (
	ErrNoDownloadReference = errors.New("document has no download reference")
	ErrDownloadTooLarge    = errors.New("download too large")
)

// FetchStatusError carries a non-2xx status from the storage endpoint.
type FetchStatusError struct {
	StatusCode int
}

func (e *FetchStatusError) Error() string {
	return fmt.Sprintf("download: unexpected status %d", e.StatusCode)
}

// HTTPFetcher downloads documents through pre-signed storage URLs.
type HTTPFetcher struct {
	client   *http.Client
	signer   URLSigner
	maxBytes int64
}

func NewHTTPFetcher(signer URLSigner, timeout time.Duration, maxBytes int64) *HTTPFetcher {
	return &HTTPFetcher{
		client:   &http.Client{Timeout: timeout},
		signer:   signer,
		maxBytes: maxBytes,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, doc *models.Document) ([]byte, error) {
	if doc.StorageKey == "" {
		return nil, ErrNoDownloadReference
	}

	url, err := f.signer.SignedURL(doc.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("sign url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchStatusError{StatusCode: resp.StatusCode}
	}

	body := io.Reader(resp.Body)
	if f.maxBytes > 0 {
		body = io.LimitReader(resp.Body, f.maxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if f.maxBytes > 0 && int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("%w: exceeds %d bytes", ErrDownloadTooLarge, f.maxBytes)
	}
	if len(data) == 0 {
		return nil, errors.New("download returned an empty body")
	}

	return data, nil
}
