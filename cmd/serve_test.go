package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dogfriendly/venue-cli/internal/config"
	"github.com/dogfriendly/venue-cli/internal/model"
	"github.com/dogfriendly/venue-cli/internal/pipeline"
	"github.com/dogfriendly/venue-cli/internal/store"
)

func newServeTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestBuildMux_HealthEndpoint(t *testing.T) {
	mux := buildMux(context.Background(), nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestBuildMux_Onboard_AcceptedReturnsJobID(t *testing.T) {
	ctx := context.Background()
	st := newServeTestStore(t)
	cfg, err := config.Load()
	require.NoError(t, err)
	p := pipeline.New(cfg, st,
		&pipeline.StubApifyClient{}, &pipeline.StubFirecrawlClient{},
		&pipeline.StubAnthropicClient{}, &pipeline.StubStorageClient{})
	mux := buildMux(ctx, p, st)

	body, _ := json.Marshal(map[string]string{
		"name": "The Spaniards Inn",
		"city": "London",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/onboard", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	require.Equal(t, http.StatusAccepted, rr.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "accepted", resp["status"])
	assert.NotEmpty(t, resp["venue_id"])
	require.NotEmpty(t, resp["job_id"])

	// The job row exists before the 202 goes out, so the documented
	// poll flow works immediately.
	pollReq := httptest.NewRequest(http.MethodGet, "/api/jobs/"+resp["job_id"], nil)
	pollRR := httptest.NewRecorder()
	mux.ServeHTTP(pollRR, pollReq)
	require.Equal(t, http.StatusOK, pollRR.Code)

	var job model.Job
	require.NoError(t, json.Unmarshal(pollRR.Body.Bytes(), &job))
	assert.Equal(t, resp["venue_id"], job.VenueID)

	// Let the background run finish against the canned clients before the
	// temp store is torn down.
	time.Sleep(200 * time.Millisecond)
}

func TestBuildMux_Onboard_NoPipeline(t *testing.T) {
	mux := buildMux(context.Background(), nil, nil)

	body, _ := json.Marshal(map[string]string{"name": "The Spaniards Inn"})
	req := httptest.NewRequest(http.MethodPost, "/api/onboard", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestBuildMux_Onboard_MissingName(t *testing.T) {
	mux := buildMux(context.Background(), nil, nil)

	body, _ := json.Marshal(map[string]string{"city": "London"})
	req := httptest.NewRequest(http.MethodPost, "/api/onboard", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestBuildMux_Onboard_InvalidBody(t *testing.T) {
	mux := buildMux(context.Background(), nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/onboard", bytes.NewReader([]byte("{not json")))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestBuildMux_GetJob(t *testing.T) {
	ctx := context.Background()
	st := newServeTestStore(t)
	mux := buildMux(ctx, nil, st)

	venue, err := st.CreateVenue(ctx, model.Venue{Name: "The Spaniards Inn", City: "London"})
	require.NoError(t, err)
	job, err := st.CreateJob(ctx, venue.ID)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/"+job.ID, nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var got model.Job
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, venue.ID, got.VenueID)
}

func TestBuildMux_GetJob_NotFound(t *testing.T) {
	st := newServeTestStore(t)
	mux := buildMux(context.Background(), nil, st)

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/no-such-job", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestBuildMux_GetJob_NoStore(t *testing.T) {
	mux := buildMux(context.Background(), nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/abc", nil)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
