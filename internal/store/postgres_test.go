package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dogfriendly/venue-cli/internal/model"
)

// anyArgs returns n pgxmock.AnyArg matchers for expectations that don't pin values.
func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_CreateVenue(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO venues`).
		WithArgs(anyArgs(13)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	v, err := s.CreateVenue(context.Background(), model.Venue{Name: "The Spaniards Inn", City: "London"})
	require.NoError(t, err)
	assert.NotEmpty(t, v.ID)
	assert.Equal(t, "The Spaniards Inn", v.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateVenue_Conflict(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO venues`).
		WithArgs(anyArgs(13)...).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := s.CreateVenue(context.Background(), model.Venue{Name: "The Spaniards Inn", City: "London"})
	assert.ErrorIs(t, err, ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetVenue_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, name, slug, .+ FROM venues WHERE id = \$1`).
		WithArgs("nonexistent-venue").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetVenue(context.Background(), "nonexistent-venue")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateJob_SeedsAllStages(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO ingestion_jobs`).
		WithArgs(anyArgs(6)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	j, err := s.CreateJob(context.Background(), "venue-1")
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusRunning, j.Status)
	assert.Len(t, j.Stages, len(model.StageOrder))
	for _, stage := range model.StageOrder {
		assert.Equal(t, model.StageStatusPending, j.Stages[stage].Status)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetJob(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	stages, err := json.Marshal(model.NewStageMap())
	require.NoError(t, err)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT id, venue_id, status, stages, created_at, updated_at FROM ingestion_jobs WHERE id = \$1`).
		WithArgs("job-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "venue_id", "status", "stages", "created_at", "updated_at"}).
			AddRow("job-1", "venue-1", "running", stages, now, now))

	j, err := s.GetJob(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, "venue-1", j.VenueID)
	assert.Len(t, j.Stages, len(model.StageOrder))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetLatestJob_NoneReturnsNil(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM ingestion_jobs WHERE venue_id = \$1 ORDER BY created_at DESC LIMIT 1`).
		WithArgs("venue-1").
		WillReturnError(pgx.ErrNoRows)

	j, err := s.GetLatestJob(context.Background(), "venue-1")
	require.NoError(t, err)
	assert.Nil(t, j)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateJobStage(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE ingestion_jobs SET stages = jsonb_set`).
		WithArgs(anyArgs(4)...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.UpdateJobStage(context.Background(), "job-1", model.StageBusinessFetch, model.StageResult{
		Status:   model.StageStatusCompleted,
		Duration: 1200,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateJobStage_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE ingestion_jobs SET stages = jsonb_set`).
		WithArgs(anyArgs(4)...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateJobStage(context.Background(), "missing", model.StagePublish, model.StageResult{Status: model.StageStatusCompleted})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "job not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertStagePayload(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO stage_payloads .+ ON CONFLICT \(venue_id, stage\) DO UPDATE`).
		WithArgs(anyArgs(5)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.UpsertStagePayload(context.Background(), "venue-1", model.StageBusinessFetch, []byte(`{"name":"The Spaniards Inn"}`))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetStagePayload_MissReturnsNil(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT payload FROM stage_payloads`).
		WithArgs("venue-1", "web_fetch").
		WillReturnError(pgx.ErrNoRows)

	payload, err := s.GetStagePayload(context.Background(), "venue-1", model.StageWebFetch)
	require.NoError(t, err)
	assert.Nil(t, payload)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MatchReference_CaseInsensitiveMiss(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, kind, name, slug, city, stars FROM reference_entities`).
		WithArgs("cuisine", "", "Modern British").
		WillReturnError(pgx.ErrNoRows)

	ref, err := s.MatchReference(context.Background(), model.RefCuisine, "", "Modern British")
	require.NoError(t, err)
	assert.Nil(t, ref)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MatchReference_Hit(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, kind, name, slug, city, stars FROM reference_entities`).
		WithArgs("neighbourhood", "London", "hampstead").
		WillReturnRows(pgxmock.NewRows([]string{"id", "kind", "name", "slug", "city", "stars"}).
			AddRow("ref-1", "neighbourhood", "Hampstead", "hampstead", "London", 0))

	ref, err := s.MatchReference(context.Background(), model.RefNeighbourhood, "London", "hampstead")
	require.NoError(t, err)
	assert.Equal(t, "ref-1", ref.ID)
	assert.Equal(t, "Hampstead", ref.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateReference_UniqueRaceReturnsConflict(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO reference_entities`).
		WithArgs(anyArgs(6)...).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := s.CreateReference(context.Background(), model.Reference{Kind: model.RefFeature, Name: "Water Bowls"})
	assert.ErrorIs(t, err, ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ReplaceVenueImages_DeleteThenCopy(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM venue_images WHERE venue_id = \$1`).
		WithArgs("venue-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectCopyFrom(pgx.Identifier{"venue_images"}, []string{
		"id", "venue_id", "source_url", "storage_path", "public_url", "filename",
		"media_type", "category", "descriptor", "alt_text", "title", "caption",
		"description", "dog_relevant", "dog_amenity", "confidence", "is_primary",
		"display_order", "created_at",
	}).WillReturnResult(1)
	mock.ExpectCommit()

	err := s.ReplaceVenueImages(context.Background(), "venue-1", []model.VenueImage{
		{
			SourceURL:   "https://example.com/terrace.jpg",
			StoragePath: "venues/spaniards-inn_hampstead/images/spaniards-inn_hampstead_terrace_01.jpg",
			Filename:    "spaniards-inn_hampstead_terrace_01.jpg",
			MediaType:   "image/jpeg",
			IsPrimary:   true,
		},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ReplaceVenueLinks_RebuildsAllTables(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM venue_cuisines`).WithArgs("venue-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCopyFrom(pgx.Identifier{"venue_cuisines"}, []string{"venue_id", "cuisine_id"}).
		WillReturnResult(2)
	mock.ExpectExec(`DELETE FROM venue_categories`).WithArgs("venue-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"venue_categories"}, []string{"venue_id", "category_id"}).
		WillReturnResult(1)
	mock.ExpectExec(`DELETE FROM venue_features`).WithArgs("venue-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mock.ExpectCommit()

	counts, err := s.ReplaceVenueLinks(context.Background(), "venue-1", model.MappedData{
		CuisineIDs:  []string{"c1", "c2"},
		CategoryIDs: []string{"cat1"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, counts["venue_cuisines"])
	assert.Equal(t, 1, counts["venue_categories"])
	assert.Equal(t, 0, counts["venue_features"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PublishVenue(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE venues SET`).
		WithArgs(anyArgs(9)...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.PublishVenue(context.Background(), "venue-1", model.DirectFields{
		Slug:            "spaniards-inn-hampstead",
		NeighbourhoodID: "ref-1",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
