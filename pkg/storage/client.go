// Package storage is a minimal client for an S3-compatible object store
// with a public-URL convention (Supabase storage API shape).
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

// Client defines the object storage operations used by the image finalizer.
type Client interface {
	Upload(ctx context.Context, path string, data []byte, contentType string) (string, error)
	Remove(ctx context.Context, paths []string) error
}

// APIError is returned when the store responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("storage: HTTP %d: %s", e.StatusCode, e.Body)
}

// Option configures the httpClient.
type Option func(*httpClient)

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// httpClient implements Client using net/http.
type httpClient struct {
	baseURL string
	apiKey  string
	bucket  string
	http    *http.Client
}

// NewClient creates a storage client for one bucket.
func NewClient(baseURL, apiKey, bucket string, opts ...Option) Client {
	c := &httpClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		bucket:  bucket,
		http: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Upload writes data to path within the bucket, overwriting any existing
// object, and returns the object's public URL.
func (c *httpClient) Upload(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	url := fmt.Sprintf("%s/storage/v1/object/%s/%s", c.baseURL, c.bucket, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return "", eris.Wrap(err, "storage: create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "true")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "storage: upload")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", eris.Wrap(err, "storage: read response body")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", c.baseURL, c.bucket, path), nil
}

// Remove deletes objects from the bucket.
func (c *httpClient) Remove(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}

	buf, err := json.Marshal(map[string][]string{"prefixes": paths})
	if err != nil {
		return eris.Wrap(err, "storage: marshal request")
	}

	url := fmt.Sprintf("%s/storage/v1/object/%s", c.baseURL, c.bucket)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, bytes.NewReader(buf))
	if err != nil {
		return eris.Wrap(err, "storage: create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "storage: remove")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "storage: read response body")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return nil
}
