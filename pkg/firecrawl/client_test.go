package firecrawl

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient("test-api-key", WithBaseURL(srv.URL))
	return srv, c
}

func TestScrape(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantErr    bool
		wantAPIErr bool
		wantStatus int
	}{
		{
			name: "happy path with html format",
			handler: func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/scrape", r.URL.Path)
				assert.Equal(t, "Bearer test-api-key", r.Header.Get("Authorization"))
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

				var req ScrapeRequest
				require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				assert.Equal(t, "https://thegrazinggoat.co.uk", req.URL)
				assert.Equal(t, []string{"markdown", "html"}, req.Formats)

				w.WriteHeader(http.StatusOK)
				json.NewEncoder(w).Encode(ScrapeResponse{
					Success: true,
					Data: PageData{
						URL:        "https://thegrazinggoat.co.uk",
						Markdown:   "# The Grazing Goat",
						HTML:       `<img src="/hero.jpg">`,
						StatusCode: 200,
					},
				})
			},
		},
		{
			name: "auth error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"Unauthorized"}`))
			},
			wantErr:    true,
			wantAPIErr: true,
			wantStatus: 401,
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte(`{"error":"internal server error"}`))
			},
			wantErr:    true,
			wantAPIErr: true,
			wantStatus: 500,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, c := newTestServer(t, tt.handler)
			resp, err := c.Scrape(context.Background(), ScrapeRequest{
				URL:     "https://thegrazinggoat.co.uk",
				Formats: []string{"markdown", "html"},
			})

			if tt.wantErr {
				require.Error(t, err)
				if tt.wantAPIErr {
					var apiErr *APIError
					require.ErrorAs(t, err, &apiErr)
					assert.Equal(t, tt.wantStatus, apiErr.StatusCode)
				}
				return
			}
			require.NoError(t, err)
			assert.True(t, resp.Success)
			assert.Equal(t, "# The Grazing Goat", resp.Data.Markdown)
			assert.Contains(t, resp.Data.HTML, "hero.jpg")
		})
	}
}

func TestBatchScrape(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/batch/scrape", r.URL.Path)

		var req BatchScrapeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Len(t, req.URLs, 2)

		json.NewEncoder(w).Encode(BatchScrapeResponse{Success: true, ID: "batch-1"})
	})

	resp, err := c.BatchScrape(context.Background(), BatchScrapeRequest{
		URLs:    []string{"https://a.example/menu", "https://a.example/menus"},
		Formats: []string{"markdown"},
	})
	require.NoError(t, err)
	assert.Equal(t, "batch-1", resp.ID)
}

func TestGetBatchScrapeStatus(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/batch/scrape/batch-1", r.URL.Path)
		json.NewEncoder(w).Encode(BatchScrapeStatusResponse{
			Status: "completed",
			Total:  1,
			Data:   []PageData{{URL: "https://a.example/menu", Markdown: "STARTERS"}},
		})
	})

	resp, err := c.GetBatchScrapeStatus(context.Background(), "batch-1")
	require.NoError(t, err)
	assert.Equal(t, "completed", resp.Status)
	require.Len(t, resp.Data, 1)
}

func TestSearch(t *testing.T) {
	_, c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)

		var req SearchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "The Grazing Goat London menu", req.Query)
		assert.Equal(t, 3, req.Limit)

		json.NewEncoder(w).Encode(SearchResponse{
			Success: true,
			Data: []SearchResult{
				{URL: "https://thegrazinggoat.co.uk/menus", Title: "Menus"},
				{URL: "https://squaremeal.co.uk/grazing-goat", Title: "Review"},
			},
		})
	})

	resp, err := c.Search(context.Background(), SearchRequest{Query: "The Grazing Goat London menu", Limit: 3})
	require.NoError(t, err)
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "https://thegrazinggoat.co.uk/menus", resp.Data[0].URL)
}
