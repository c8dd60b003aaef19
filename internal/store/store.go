package store

import (
	"context"
	"errors"

	"github.com/dogfriendly/venue-cli/internal/model"
)

// ErrConflict is returned when an insert loses a uniqueness race. Callers
// that match-or-create re-read the winning row on this error.
var ErrConflict = errors.New("store: conflict")

// ErrNotFound is returned when a venue or job lookup by ID matches no row.
var ErrNotFound = errors.New("store: not found")

// JobFilter specifies criteria for listing ingestion jobs.
type JobFilter struct {
	Status  model.JobStatus `json:"status,omitempty"`
	VenueID string          `json:"venue_id,omitempty"`
	Limit   int             `json:"limit,omitempty"`
	Offset  int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the ingestion pipeline.
type Store interface {
	// Venues
	CreateVenue(ctx context.Context, v model.Venue) (*model.Venue, error)
	GetVenue(ctx context.Context, id string) (*model.Venue, error)
	UpdateVenueSeed(ctx context.Context, id string, seed model.SeedFields) error
	PublishVenue(ctx context.Context, id string, fields model.DirectFields) error

	// Jobs
	CreateJob(ctx context.Context, venueID string) (*model.Job, error)
	GetJob(ctx context.Context, id string) (*model.Job, error)
	GetLatestJob(ctx context.Context, venueID string) (*model.Job, error)
	UpdateJobStatus(ctx context.Context, jobID string, status model.JobStatus) error
	UpdateJobStage(ctx context.Context, jobID string, stage model.Stage, result model.StageResult) error
	ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error)

	// Stage payloads. Upsert overwrites any previous payload for the same
	// venue and stage, which is what makes stage re-runs idempotent.
	UpsertStagePayload(ctx context.Context, venueID string, stage model.Stage, payload []byte) error
	GetStagePayload(ctx context.Context, venueID string, stage model.Stage) ([]byte, error)

	// Reference entities. MatchReference is case-insensitive and returns
	// (nil, nil) on a miss. CreateReference returns ErrConflict when a
	// concurrent create won the unique race.
	ListReferences(ctx context.Context, kind model.ReferenceKind, city string) ([]model.Reference, error)
	MatchReference(ctx context.Context, kind model.ReferenceKind, city, name string) (*model.Reference, error)
	CreateReference(ctx context.Context, ref model.Reference) (*model.Reference, error)

	// Images. ReplaceVenueImages deletes the venue's existing rows and
	// inserts the new set in one transaction.
	ReplaceVenueImages(ctx context.Context, venueID string, images []model.VenueImage) error
	ListVenueImages(ctx context.Context, venueID string) ([]model.VenueImage, error)

	// Links. ReplaceVenueLinks rebuilds the per-kind link tables
	// (delete all, insert new) and returns inserted counts per table.
	ReplaceVenueLinks(ctx context.Context, venueID string, mapped model.MappedData) (map[string]int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
