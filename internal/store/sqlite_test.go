package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dogfriendly/venue-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func newTestVenue(t *testing.T, st *SQLiteStore) *model.Venue {
	t.Helper()
	v, err := st.CreateVenue(context.Background(), model.Venue{
		Name:    "The Spaniards Inn",
		City:    "London",
		Address: "Spaniards Rd, Hampstead",
	})
	require.NoError(t, err)
	return v
}

func TestSQLite_VenueRoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	v := newTestVenue(t, st)

	got, err := st.GetVenue(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, "The Spaniards Inn", got.Name)
	assert.Equal(t, "London", got.City)
	assert.False(t, got.Published)

	_, err = st.GetVenue(ctx, "no-such-venue")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_UpdateVenueSeed_EmptyFieldsPreserved(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	v := newTestVenue(t, st)

	err := st.UpdateVenueSeed(ctx, v.ID, model.SeedFields{
		Phone:      "+44 20 8731 8406",
		PriceRange: "££",
	})
	require.NoError(t, err)

	got, err := st.GetVenue(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, "+44 20 8731 8406", got.Phone)
	assert.Equal(t, "££", got.PriceRange)
	// Blank seed fields must not clobber existing columns.
	assert.Equal(t, "The Spaniards Inn", got.Name)
	assert.Equal(t, "Spaniards Rd, Hampstead", got.Address)
}

func TestSQLite_JobLifecycle(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	v := newTestVenue(t, st)
	j, err := st.CreateJob(ctx, v.ID)
	require.NoError(t, err)
	assert.Len(t, j.Stages, len(model.StageOrder))

	err = st.UpdateJobStage(ctx, j.ID, model.StageBusinessFetch, model.StageResult{
		Status:   model.StageStatusCompleted,
		Duration: 930,
		Metadata: map[string]any{"place_id": "ChIJx"},
	})
	require.NoError(t, err)

	err = st.UpdateJobStatus(ctx, j.ID, model.JobStatusCompleted)
	require.NoError(t, err)

	got, err := st.GetJob(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, got.Status)
	assert.Equal(t, model.StageStatusCompleted, got.Stages[model.StageBusinessFetch].Status)
	assert.Equal(t, int64(930), got.Stages[model.StageBusinessFetch].Duration)
	// Untouched stages stay pending.
	assert.Equal(t, model.StageStatusPending, got.Stages[model.StagePublish].Status)
}

func TestSQLite_GetLatestJob(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	v := newTestVenue(t, st)

	latest, err := st.GetLatestJob(ctx, v.ID)
	require.NoError(t, err)
	assert.Nil(t, latest)

	j, err := st.CreateJob(ctx, v.ID)
	require.NoError(t, err)

	latest, err = st.GetLatestJob(ctx, v.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, j.ID, latest.ID)
}

func TestSQLite_StagePayload_UpsertOverwrites(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	v := newTestVenue(t, st)

	require.NoError(t, st.UpsertStagePayload(ctx, v.ID, model.StageWebFetch, []byte(`{"menu":"old"}`)))
	require.NoError(t, st.UpsertStagePayload(ctx, v.ID, model.StageWebFetch, []byte(`{"menu":"new"}`)))

	payload, err := st.GetStagePayload(ctx, v.ID, model.StageWebFetch)
	require.NoError(t, err)
	assert.JSONEq(t, `{"menu":"new"}`, string(payload))
}

func TestSQLite_StagePayload_MissReturnsNil(t *testing.T) {
	st := newTestSQLiteStore(t)

	v := newTestVenue(t, st)

	payload, err := st.GetStagePayload(context.Background(), v.ID, model.StageHarvestImages)
	require.NoError(t, err)
	assert.Nil(t, payload)
}

func TestSQLite_References_MatchIsCaseInsensitive(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	ref, err := st.CreateReference(ctx, model.Reference{
		Kind: model.RefCuisine,
		Name: "Modern British",
		Slug: "modern-british",
	})
	require.NoError(t, err)

	got, err := st.MatchReference(ctx, model.RefCuisine, "", "MODERN BRITISH")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, ref.ID, got.ID)

	miss, err := st.MatchReference(ctx, model.RefCuisine, "", "Thai")
	require.NoError(t, err)
	assert.Nil(t, miss)
}

func TestSQLite_References_DuplicateReturnsConflict(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.CreateReference(ctx, model.Reference{Kind: model.RefFeature, Name: "Water Bowls"})
	require.NoError(t, err)

	_, err = st.CreateReference(ctx, model.Reference{Kind: model.RefFeature, Name: "water bowls"})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestSQLite_References_NeighbourhoodScopedByCity(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.CreateReference(ctx, model.Reference{Kind: model.RefNeighbourhood, Name: "Soho", City: "London"})
	require.NoError(t, err)

	// Same name in a different city is a distinct row, not a conflict.
	_, err = st.CreateReference(ctx, model.Reference{Kind: model.RefNeighbourhood, Name: "Soho", City: "Manchester"})
	require.NoError(t, err)

	got, err := st.MatchReference(ctx, model.RefNeighbourhood, "London", "soho")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "London", got.City)
}

func TestSQLite_ReplaceVenueImages_ReplacesNotMerges(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	v := newTestVenue(t, st)

	first := []model.VenueImage{
		{SourceURL: "https://example.com/a.jpg", Filename: "spaniards-inn_hampstead_interior_01.jpg", StoragePath: "venues/spaniards-inn_hampstead/images/spaniards-inn_hampstead_interior_01.jpg", PublicURL: "https://cdn/a", MediaType: "image/jpeg", IsPrimary: true},
		{SourceURL: "https://example.com/b.jpg", Filename: "spaniards-inn_hampstead_food_02.jpg", StoragePath: "venues/spaniards-inn_hampstead/images/spaniards-inn_hampstead_food_02.jpg", PublicURL: "https://cdn/b", MediaType: "image/jpeg", DisplayOrder: 1},
	}
	require.NoError(t, st.ReplaceVenueImages(ctx, v.ID, first))

	second := []model.VenueImage{
		{SourceURL: "https://example.com/c.webp", Filename: "spaniards-inn_hampstead_terrace_01.webp", StoragePath: "venues/spaniards-inn_hampstead/images/spaniards-inn_hampstead_terrace_01.webp", PublicURL: "https://cdn/c", MediaType: "image/webp", IsPrimary: true},
	}
	require.NoError(t, st.ReplaceVenueImages(ctx, v.ID, second))

	images, err := st.ListVenueImages(ctx, v.ID)
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, "spaniards-inn_hampstead_terrace_01.webp", images[0].Filename)
	assert.True(t, images[0].IsPrimary)
}

func TestSQLite_ReplaceVenueLinks(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	v := newTestVenue(t, st)
	c1, err := st.CreateReference(ctx, model.Reference{Kind: model.RefCuisine, Name: "British"})
	require.NoError(t, err)
	c2, err := st.CreateReference(ctx, model.Reference{Kind: model.RefCuisine, Name: "Gastropub"})
	require.NoError(t, err)
	f1, err := st.CreateReference(ctx, model.Reference{Kind: model.RefFeature, Name: "Dog Menu"})
	require.NoError(t, err)

	counts, err := st.ReplaceVenueLinks(ctx, v.ID, model.MappedData{
		CuisineIDs: []string{c1.ID, c2.ID},
		FeatureIDs: []string{f1.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, counts["venue_cuisines"])
	assert.Equal(t, 0, counts["venue_categories"])
	assert.Equal(t, 1, counts["venue_features"])

	// A second publish with fewer links leaves only the new set.
	counts, err = st.ReplaceVenueLinks(ctx, v.ID, model.MappedData{CuisineIDs: []string{c1.ID}})
	require.NoError(t, err)
	assert.Equal(t, 1, counts["venue_cuisines"])
	assert.Equal(t, 0, counts["venue_features"])
}

func TestSQLite_PublishVenue(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	v := newTestVenue(t, st)

	err := st.PublishVenue(ctx, v.ID, model.DirectFields{
		Slug:       "spaniards-inn-hampstead",
		PriceRange: "££",
	})
	require.NoError(t, err)

	got, err := st.GetVenue(ctx, v.ID)
	require.NoError(t, err)
	assert.True(t, got.Published)
	assert.Equal(t, "spaniards-inn-hampstead", got.Slug)
}
