package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/dogfriendly/venue-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS venues (
	id                TEXT PRIMARY KEY,
	name              TEXT NOT NULL,
	slug              TEXT NOT NULL DEFAULT '',
	address           TEXT NOT NULL DEFAULT '',
	city              TEXT NOT NULL,
	neighbourhood     TEXT NOT NULL DEFAULT '',
	place_id          TEXT NOT NULL DEFAULT '',
	website           TEXT NOT NULL DEFAULT '',
	phone             TEXT NOT NULL DEFAULT '',
	price_range       TEXT NOT NULL DEFAULT '',
	neighbourhood_id  TEXT,
	michelin_award_id TEXT,
	michelin_stars    INTEGER,
	details           TEXT,
	published         INTEGER NOT NULL DEFAULT 0,
	created_at        DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS ingestion_jobs (
	id         TEXT PRIMARY KEY,
	venue_id   TEXT NOT NULL REFERENCES venues(id),
	status     TEXT NOT NULL DEFAULT 'running',
	stages     TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_ingestion_jobs_venue_id ON ingestion_jobs(venue_id);
CREATE INDEX IF NOT EXISTS idx_ingestion_jobs_status ON ingestion_jobs(status);

CREATE TABLE IF NOT EXISTS stage_payloads (
	id         TEXT PRIMARY KEY,
	venue_id   TEXT NOT NULL REFERENCES venues(id),
	stage      TEXT NOT NULL,
	payload    TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (venue_id, stage)
);

CREATE TABLE IF NOT EXISTS reference_entities (
	id    TEXT PRIMARY KEY,
	kind  TEXT NOT NULL,
	name  TEXT NOT NULL,
	slug  TEXT NOT NULL DEFAULT '',
	city  TEXT NOT NULL DEFAULT '',
	stars INTEGER NOT NULL DEFAULT 0
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_reference_entities_identity
	ON reference_entities(kind, city, lower(name));

CREATE TABLE IF NOT EXISTS venue_images (
	id            TEXT PRIMARY KEY,
	venue_id      TEXT NOT NULL REFERENCES venues(id),
	source_url    TEXT NOT NULL,
	storage_path  TEXT NOT NULL,
	public_url    TEXT NOT NULL,
	filename      TEXT NOT NULL,
	media_type    TEXT NOT NULL,
	category      TEXT NOT NULL DEFAULT '',
	descriptor    TEXT NOT NULL DEFAULT '',
	alt_text      TEXT NOT NULL DEFAULT '',
	title         TEXT NOT NULL DEFAULT '',
	caption       TEXT NOT NULL DEFAULT '',
	description   TEXT NOT NULL DEFAULT '',
	dog_relevant  INTEGER NOT NULL DEFAULT 0,
	dog_amenity   TEXT NOT NULL DEFAULT '',
	confidence    REAL NOT NULL DEFAULT 0,
	is_primary    INTEGER NOT NULL DEFAULT 0,
	display_order INTEGER NOT NULL DEFAULT 0,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_venue_images_venue_id ON venue_images(venue_id);

CREATE TABLE IF NOT EXISTS venue_cuisines (
	venue_id   TEXT NOT NULL REFERENCES venues(id),
	cuisine_id TEXT NOT NULL REFERENCES reference_entities(id),
	PRIMARY KEY (venue_id, cuisine_id)
);

CREATE TABLE IF NOT EXISTS venue_categories (
	venue_id    TEXT NOT NULL REFERENCES venues(id),
	category_id TEXT NOT NULL REFERENCES reference_entities(id),
	PRIMARY KEY (venue_id, category_id)
);

CREATE TABLE IF NOT EXISTS venue_features (
	venue_id   TEXT NOT NULL REFERENCES venues(id),
	feature_id TEXT NOT NULL REFERENCES reference_entities(id),
	PRIMARY KEY (venue_id, feature_id)
);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// sqliteUniqueViolation reports whether err is a SQLite unique constraint
// failure. modernc.org/sqlite surfaces these as plain strings.
func sqliteUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (s *SQLiteStore) CreateVenue(ctx context.Context, v model.Venue) (*model.Venue, error) {
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	v.CreatedAt = now
	v.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO venues (id, name, slug, address, city, neighbourhood, place_id, website, phone, price_range, published, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.Name, v.Slug, v.Address, v.City, v.Neighbourhood, v.PlaceID, v.Website, v.Phone, v.PriceRange, v.Published, now, now,
	)
	if err != nil {
		if sqliteUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, eris.Wrap(err, "sqlite: insert venue")
	}
	return &v, nil
}

func (s *SQLiteStore) GetVenue(ctx context.Context, id string) (*model.Venue, error) {
	var v model.Venue
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, slug, address, city, neighbourhood, place_id, website, phone, price_range, published, created_at, updated_at FROM venues WHERE id = ?`,
		id,
	).Scan(&v.ID, &v.Name, &v.Slug, &v.Address, &v.City, &v.Neighbourhood, &v.PlaceID, &v.Website, &v.Phone, &v.PriceRange, &v.Published, &v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: venue %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get venue %s", id)
	}
	return &v, nil
}

func (s *SQLiteStore) UpdateVenueSeed(ctx context.Context, id string, seed model.SeedFields) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE venues SET
			name = COALESCE(NULLIF(?, ''), name),
			address = COALESCE(NULLIF(?, ''), address),
			phone = COALESCE(NULLIF(?, ''), phone),
			website = COALESCE(NULLIF(?, ''), website),
			price_range = COALESCE(NULLIF(?, ''), price_range),
			updated_at = ?
		 WHERE id = ?`,
		seed.Name, seed.Address, seed.Phone, seed.Website, seed.PriceRange, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update venue seed %s", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return eris.Errorf("venue not found: %s", id)
	}
	return nil
}

func (s *SQLiteStore) PublishVenue(ctx context.Context, id string, fields model.DirectFields) error {
	detailsJSON, err := json.Marshal(fields)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal details")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE venues SET
			slug = COALESCE(NULLIF(?, ''), slug),
			phone = COALESCE(NULLIF(?, ''), phone),
			price_range = COALESCE(NULLIF(?, ''), price_range),
			neighbourhood_id = NULLIF(?, ''),
			michelin_award_id = NULLIF(?, ''),
			michelin_stars = ?,
			details = ?,
			published = 1,
			updated_at = ?
		 WHERE id = ?`,
		fields.Slug, fields.Phone, fields.PriceRange, fields.NeighbourhoodID, fields.MichelinAwardID, fields.MichelinStars, string(detailsJSON), time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: publish venue %s", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return eris.Errorf("venue not found: %s", id)
	}
	return nil
}

func (s *SQLiteStore) CreateJob(ctx context.Context, venueID string) (*model.Job, error) {
	j := model.Job{
		ID:      uuid.New().String(),
		VenueID: venueID,
		Status:  model.JobStatusRunning,
		Stages:  model.NewStageMap(),
	}
	now := time.Now().UTC()
	j.CreatedAt = now
	j.UpdatedAt = now

	stagesJSON, err := json.Marshal(j.Stages)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal stages")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO ingestion_jobs (id, venue_id, status, stages, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		j.ID, venueID, string(j.Status), string(stagesJSON), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert job")
	}
	return &j, nil
}

func (s *SQLiteStore) scanJob(row *sql.Row) (*model.Job, error) {
	var j model.Job
	var stagesJSON string
	err := row.Scan(&j.ID, &j.VenueID, &j.Status, &stagesJSON, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(stagesJSON), &j.Stages); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal stages")
	}
	return &j, nil
}

func (s *SQLiteStore) GetJob(ctx context.Context, id string) (*model.Job, error) {
	j, err := s.scanJob(s.db.QueryRowContext(ctx,
		`SELECT id, venue_id, status, stages, created_at, updated_at FROM ingestion_jobs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: job %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get job %s", id)
	}
	return j, nil
}

func (s *SQLiteStore) GetLatestJob(ctx context.Context, venueID string) (*model.Job, error) {
	j, err := s.scanJob(s.db.QueryRowContext(ctx,
		`SELECT id, venue_id, status, stages, created_at, updated_at FROM ingestion_jobs WHERE venue_id = ? ORDER BY created_at DESC LIMIT 1`, venueID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: latest job for venue %s", venueID)
	}
	return j, nil
}

func (s *SQLiteStore) UpdateJobStatus(ctx context.Context, jobID string, status model.JobStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE ingestion_jobs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update job status %s", jobID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return eris.Errorf("job not found: %s", jobID)
	}
	return nil
}

func (s *SQLiteStore) UpdateJobStage(ctx context.Context, jobID string, stage model.Stage, result model.StageResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal stage result")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE ingestion_jobs SET stages = json_set(stages, '$.' || ?, json(?)), updated_at = ? WHERE id = ?`,
		string(stage), string(resultJSON), time.Now().UTC(), jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update job stage %s/%s", jobID, stage)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return eris.Errorf("job not found: %s", jobID)
	}
	return nil
}

func (s *SQLiteStore) ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error) {
	query := `SELECT id, venue_id, status, stages, created_at, updated_at FROM ingestion_jobs WHERE 1=1`
	args := []any{}

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.VenueID != "" {
		query += ` AND venue_id = ?`
		args = append(args, filter.VenueID)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list jobs")
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		var j model.Job
		var stagesJSON string
		if err := rows.Scan(&j.ID, &j.VenueID, &j.Status, &stagesJSON, &j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan job")
		}
		if err := json.Unmarshal([]byte(stagesJSON), &j.Stages); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal stages")
		}
		jobs = append(jobs, j)
	}
	return jobs, eris.Wrap(rows.Err(), "sqlite: list jobs rows")
}

func (s *SQLiteStore) UpsertStagePayload(ctx context.Context, venueID string, stage model.Stage, payload []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO stage_payloads (id, venue_id, stage, payload, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (venue_id, stage) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		uuid.New().String(), venueID, string(stage), string(payload), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: upsert payload %s/%s", venueID, stage)
}

func (s *SQLiteStore) GetStagePayload(ctx context.Context, venueID string, stage model.Stage) ([]byte, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM stage_payloads WHERE venue_id = ? AND stage = ?`,
		venueID, string(stage),
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get payload %s/%s", venueID, stage)
	}
	return []byte(payload), nil
}

func (s *SQLiteStore) ListReferences(ctx context.Context, kind model.ReferenceKind, city string) ([]model.Reference, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, name, slug, city, stars FROM reference_entities WHERE kind = ? AND city = ? ORDER BY name`,
		string(kind), city,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list references %s", kind)
	}
	defer rows.Close()

	var refs []model.Reference
	for rows.Next() {
		var r model.Reference
		if err := rows.Scan(&r.ID, &r.Kind, &r.Name, &r.Slug, &r.City, &r.Stars); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan reference")
		}
		refs = append(refs, r)
	}
	return refs, eris.Wrap(rows.Err(), "sqlite: list references rows")
}

func (s *SQLiteStore) MatchReference(ctx context.Context, kind model.ReferenceKind, city, name string) (*model.Reference, error) {
	var r model.Reference
	err := s.db.QueryRowContext(ctx,
		`SELECT id, kind, name, slug, city, stars FROM reference_entities WHERE kind = ? AND city = ? AND lower(name) = lower(?)`,
		string(kind), city, name,
	).Scan(&r.ID, &r.Kind, &r.Name, &r.Slug, &r.City, &r.Stars)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: match reference %s %q", kind, name)
	}
	return &r, nil
}

func (s *SQLiteStore) CreateReference(ctx context.Context, ref model.Reference) (*model.Reference, error) {
	if ref.ID == "" {
		ref.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reference_entities (id, kind, name, slug, city, stars) VALUES (?, ?, ?, ?, ?, ?)`,
		ref.ID, string(ref.Kind), ref.Name, ref.Slug, ref.City, ref.Stars,
	)
	if err != nil {
		if sqliteUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, eris.Wrapf(err, "sqlite: insert reference %s %q", ref.Kind, ref.Name)
	}
	return &ref, nil
}

func (s *SQLiteStore) ReplaceVenueImages(ctx context.Context, venueID string, images []model.VenueImage) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin replace images")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM venue_images WHERE venue_id = ?`, venueID); err != nil {
		return eris.Wrapf(err, "sqlite: delete images %s", venueID)
	}

	for _, img := range images {
		if img.ID == "" {
			img.ID = uuid.New().String()
		}
		if img.CreatedAt.IsZero() {
			img.CreatedAt = time.Now().UTC()
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO venue_images (id, venue_id, source_url, storage_path, public_url, filename, media_type, category, descriptor, alt_text, title, caption, description, dog_relevant, dog_amenity, confidence, is_primary, display_order, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			img.ID, venueID, img.SourceURL, img.StoragePath, img.PublicURL, img.Filename,
			img.MediaType, img.Category, img.Descriptor, img.AltText, img.Title, img.Caption,
			img.Description, img.DogRelevant, img.DogAmenity, img.Confidence, img.IsPrimary,
			img.DisplayOrder, img.CreatedAt,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert image %s", img.Filename)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit replace images")
}

func (s *SQLiteStore) ListVenueImages(ctx context.Context, venueID string) ([]model.VenueImage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, venue_id, source_url, storage_path, public_url, filename, media_type, category, descriptor, alt_text, title, caption, description, dog_relevant, dog_amenity, confidence, is_primary, display_order, created_at FROM venue_images WHERE venue_id = ? ORDER BY display_order`,
		venueID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list images %s", venueID)
	}
	defer rows.Close()

	var images []model.VenueImage
	for rows.Next() {
		var img model.VenueImage
		if err := rows.Scan(&img.ID, &img.VenueID, &img.SourceURL, &img.StoragePath, &img.PublicURL, &img.Filename, &img.MediaType, &img.Category, &img.Descriptor, &img.AltText, &img.Title, &img.Caption, &img.Description, &img.DogRelevant, &img.DogAmenity, &img.Confidence, &img.IsPrimary, &img.DisplayOrder, &img.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan image")
		}
		images = append(images, img)
	}
	return images, eris.Wrap(rows.Err(), "sqlite: list images rows")
}

func (s *SQLiteStore) ReplaceVenueLinks(ctx context.Context, venueID string, mapped model.MappedData) (map[string]int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin replace links")
	}
	defer tx.Rollback()

	counts := make(map[string]int, 3)
	linkSets := []struct {
		table  string
		column string
		ids    []string
	}{
		{"venue_cuisines", "cuisine_id", mapped.CuisineIDs},
		{"venue_categories", "category_id", mapped.CategoryIDs},
		{"venue_features", "feature_id", mapped.FeatureIDs},
	}
	for _, set := range linkSets {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE venue_id = ?`, set.table), venueID); err != nil {
			return nil, eris.Wrapf(err, "sqlite: delete links %s", set.table)
		}
		for _, id := range set.ids {
			if _, err := tx.ExecContext(ctx,
				fmt.Sprintf(`INSERT INTO %s (venue_id, %s) VALUES (?, ?)`, set.table, set.column),
				venueID, id,
			); err != nil {
				return nil, eris.Wrapf(err, "sqlite: insert link %s", set.table)
			}
			counts[set.table]++
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit replace links")
	}
	return counts, nil
}
