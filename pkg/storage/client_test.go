package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "test-key", "venue-images")
}

func TestUpload(t *testing.T) {
	var gotPath, gotType string
	var gotBody []byte
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotType = r.Header.Get("Content-Type")
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "true", r.Header.Get("x-upsert"))
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"Key":"ok"}`))
	})

	url, err := c.Upload(context.Background(),
		"venues/the-grazing-goat_marylebone/images/the-grazing-goat_marylebone_sunday-roast_01.jpg",
		[]byte{0xFF, 0xD8, 0xFF, 0xE0}, "image/jpeg")
	require.NoError(t, err)

	assert.Equal(t, "/storage/v1/object/venue-images/venues/the-grazing-goat_marylebone/images/the-grazing-goat_marylebone_sunday-roast_01.jpg", gotPath)
	assert.Equal(t, "image/jpeg", gotType)
	assert.Equal(t, []byte{0xFF, 0xD8, 0xFF, 0xE0}, gotBody)
	assert.Contains(t, url, "/storage/v1/object/public/venue-images/venues/")
}

func TestUpload_APIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":"forbidden"}`))
	})

	_, err := c.Upload(context.Background(), "venues/x/images/x.jpg", []byte("data"), "image/jpeg")
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
}

func TestRemove_Empty(t *testing.T) {
	c := NewClient("http://unused", "k", "b")
	assert.NoError(t, c.Remove(context.Background(), nil))
}

func TestRemove(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/storage/v1/object/venue-images", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`[]`))
	})

	err := c.Remove(context.Background(), []string{"venues/x/images/a.jpg", "venues/x/images/b.jpg"})
	assert.NoError(t, err)
}
