// Package apify wraps the Apify actor-run API used for Google Places
// lookups and Google Images searches.
package apify

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

// Default base URL for the Apify v2 API.
const defaultBaseURL = "https://api.apify.com/v2"

// Run statuses reported by the actor-run API.
const (
	RunStatusRunning   = "RUNNING"
	RunStatusReady     = "READY"
	RunStatusSucceeded = "SUCCEEDED"
	RunStatusFailed    = "FAILED"
	RunStatusAborted   = "ABORTED"
	RunStatusTimedOut  = "TIMED-OUT"
)

// Client defines the Apify API operations used by the pipeline.
type Client interface {
	RunActor(ctx context.Context, actorID string, input any) (*Run, error)
	GetRun(ctx context.Context, runID string) (*Run, error)
	GetDatasetItems(ctx context.Context, datasetID string, out any) error
}

// Run describes an actor run.
type Run struct {
	ID               string `json:"id"`
	ActorID          string `json:"actId"`
	Status           string `json:"status"`
	DefaultDatasetID string `json:"defaultDatasetId"`
}

// Finished reports whether the run reached a terminal status.
func (r *Run) Finished() bool {
	switch r.Status {
	case RunStatusSucceeded, RunStatusFailed, RunStatusAborted, RunStatusTimedOut:
		return true
	}
	return false
}

// runEnvelope wraps run objects in the API's data field.
type runEnvelope struct {
	Data Run `json:"data"`
}

// APIError is returned when Apify responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("apify: HTTP %d: %s", e.StatusCode, e.Body)
}

// Option configures the httpClient.
type Option func(*httpClient)

// WithBaseURL overrides the default base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// httpClient implements Client using net/http.
type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a new Apify client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) RunActor(ctx context.Context, actorID string, input any) (*Run, error) {
	var env runEnvelope
	if err := c.post(ctx, fmt.Sprintf("/acts/%s/runs", actorID), input, &env); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("apify: run actor %s", actorID))
	}
	return &env.Data, nil
}

func (c *httpClient) GetRun(ctx context.Context, runID string) (*Run, error) {
	var env runEnvelope
	if err := c.get(ctx, fmt.Sprintf("/actor-runs/%s", runID), &env); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("apify: get run %s", runID))
	}
	return &env.Data, nil
}

func (c *httpClient) GetDatasetItems(ctx context.Context, datasetID string, out any) error {
	if err := c.get(ctx, fmt.Sprintf("/datasets/%s/items", datasetID), out); err != nil {
		return eris.Wrap(err, fmt.Sprintf("apify: get dataset %s", datasetID))
	}
	return nil
}

func (c *httpClient) post(ctx context.Context, path string, body any, out any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return eris.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	return c.do(req, out)
}

func (c *httpClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	return c.do(req, out)
}

func (c *httpClient) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "execute request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{
			StatusCode: resp.StatusCode,
			Body:       string(data),
		}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return eris.Wrap(err, "decode response")
	}

	return nil
}
