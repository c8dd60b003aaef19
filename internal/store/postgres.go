package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/dogfriendly/venue-cli/internal/db"
	"github.com/dogfriendly/venue-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"get_venue":        `SELECT id, name, slug, address, city, neighbourhood, place_id, website, phone, price_range, published, created_at, updated_at FROM venues WHERE id = $1`,
	"get_job":          `SELECT id, venue_id, status, stages, created_at, updated_at FROM ingestion_jobs WHERE id = $1`,
	"update_job_stage": `UPDATE ingestion_jobs SET stages = jsonb_set(stages, ARRAY[$2], $3::jsonb), updated_at = $4 WHERE id = $1`,
	"upsert_payload":   `INSERT INTO stage_payloads (id, venue_id, stage, payload, updated_at) VALUES ($1, $2, $3, $4, $5) ON CONFLICT (venue_id, stage) DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`,
	"get_payload":      `SELECT payload FROM stage_payloads WHERE venue_id = $1 AND stage = $2`,
	"match_reference":  `SELECT id, kind, name, slug, city, stars FROM reference_entities WHERE kind = $1 AND city = $2 AND lower(name) = lower($3)`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems that need
// direct query access.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS venues (
	id                TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
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
	details           JSONB,
	published         BOOLEAN NOT NULL DEFAULT false,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS ingestion_jobs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	venue_id   TEXT NOT NULL REFERENCES venues(id),
	status     TEXT NOT NULL DEFAULT 'running',
	stages     JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_ingestion_jobs_venue_id ON ingestion_jobs(venue_id);
CREATE INDEX IF NOT EXISTS idx_ingestion_jobs_status ON ingestion_jobs(status);

CREATE TABLE IF NOT EXISTS stage_payloads (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	venue_id   TEXT NOT NULL REFERENCES venues(id),
	stage      TEXT NOT NULL,
	payload    JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (venue_id, stage)
);

CREATE TABLE IF NOT EXISTS reference_entities (
	id    TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
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
	dog_relevant  BOOLEAN NOT NULL DEFAULT false,
	dog_amenity   TEXT NOT NULL DEFAULT '',
	confidence    DOUBLE PRECISION NOT NULL DEFAULT 0,
	is_primary    BOOLEAN NOT NULL DEFAULT false,
	display_order INTEGER NOT NULL DEFAULT 0,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
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

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// isUniqueViolation reports whether err is a Postgres unique constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (s *PostgresStore) CreateVenue(ctx context.Context, v model.Venue) (*model.Venue, error) {
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	v.CreatedAt = now
	v.UpdatedAt = now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO venues (id, name, slug, address, city, neighbourhood, place_id, website, phone, price_range, published, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		v.ID, v.Name, v.Slug, v.Address, v.City, v.Neighbourhood, v.PlaceID, v.Website, v.Phone, v.PriceRange, v.Published, now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, eris.Wrap(err, "postgres: insert venue")
	}
	return &v, nil
}

func (s *PostgresStore) GetVenue(ctx context.Context, id string) (*model.Venue, error) {
	var v model.Venue
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, slug, address, city, neighbourhood, place_id, website, phone, price_range, published, created_at, updated_at FROM venues WHERE id = $1`,
		id,
	).Scan(&v.ID, &v.Name, &v.Slug, &v.Address, &v.City, &v.Neighbourhood, &v.PlaceID, &v.Website, &v.Phone, &v.PriceRange, &v.Published, &v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: venue %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get venue %s", id)
	}
	return &v, nil
}

func (s *PostgresStore) UpdateVenueSeed(ctx context.Context, id string, seed model.SeedFields) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE venues SET
			name = COALESCE(NULLIF($1, ''), name),
			address = COALESCE(NULLIF($2, ''), address),
			phone = COALESCE(NULLIF($3, ''), phone),
			website = COALESCE(NULLIF($4, ''), website),
			price_range = COALESCE(NULLIF($5, ''), price_range),
			updated_at = $6
		 WHERE id = $7`,
		seed.Name, seed.Address, seed.Phone, seed.Website, seed.PriceRange, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update venue seed %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("venue not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) PublishVenue(ctx context.Context, id string, fields model.DirectFields) error {
	detailsJSON, err := json.Marshal(fields)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal details")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE venues SET
			slug = COALESCE(NULLIF($1, ''), slug),
			phone = COALESCE(NULLIF($2, ''), phone),
			price_range = COALESCE(NULLIF($3, ''), price_range),
			neighbourhood_id = NULLIF($4, ''),
			michelin_award_id = NULLIF($5, ''),
			michelin_stars = $6,
			details = $7,
			published = true,
			updated_at = $8
		 WHERE id = $9`,
		fields.Slug, fields.Phone, fields.PriceRange, fields.NeighbourhoodID, fields.MichelinAwardID, fields.MichelinStars, detailsJSON, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: publish venue %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("venue not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) CreateJob(ctx context.Context, venueID string) (*model.Job, error) {
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
		return nil, eris.Wrap(err, "postgres: marshal stages")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO ingestion_jobs (id, venue_id, status, stages, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		j.ID, venueID, string(j.Status), stagesJSON, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert job")
	}
	return &j, nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id string) (*model.Job, error) {
	var j model.Job
	var stagesJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, venue_id, status, stages, created_at, updated_at FROM ingestion_jobs WHERE id = $1`,
		id,
	).Scan(&j.ID, &j.VenueID, &j.Status, &stagesJSON, &j.CreatedAt, &j.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: job %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get job %s", id)
	}
	if err := json.Unmarshal(stagesJSON, &j.Stages); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal stages")
	}
	return &j, nil
}

func (s *PostgresStore) GetLatestJob(ctx context.Context, venueID string) (*model.Job, error) {
	var j model.Job
	var stagesJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, venue_id, status, stages, created_at, updated_at FROM ingestion_jobs WHERE venue_id = $1 ORDER BY created_at DESC LIMIT 1`,
		venueID,
	).Scan(&j.ID, &j.VenueID, &j.Status, &stagesJSON, &j.CreatedAt, &j.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: latest job for venue %s", venueID)
	}
	if err := json.Unmarshal(stagesJSON, &j.Stages); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal stages")
	}
	return &j, nil
}

func (s *PostgresStore) UpdateJobStatus(ctx context.Context, jobID string, status model.JobStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE ingestion_jobs SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update job status %s", jobID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("job not found: %s", jobID)
	}
	return nil
}

func (s *PostgresStore) UpdateJobStage(ctx context.Context, jobID string, stage model.Stage, result model.StageResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal stage result")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE ingestion_jobs SET stages = jsonb_set(stages, ARRAY[$2], $3::jsonb), updated_at = $4 WHERE id = $1`,
		jobID, string(stage), resultJSON, time.Now().UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update job stage %s/%s", jobID, stage)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("job not found: %s", jobID)
	}
	return nil
}

func (s *PostgresStore) ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error) {
	query := `SELECT id, venue_id, status, stages, created_at, updated_at FROM ingestion_jobs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.VenueID != "" {
		query += fmt.Sprintf(` AND venue_id = $%d`, argIdx)
		args = append(args, filter.VenueID)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list jobs")
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		var j model.Job
		var stagesJSON []byte
		if err := rows.Scan(&j.ID, &j.VenueID, &j.Status, &stagesJSON, &j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan job")
		}
		if err := json.Unmarshal(stagesJSON, &j.Stages); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal stages")
		}
		jobs = append(jobs, j)
	}
	return jobs, eris.Wrap(rows.Err(), "postgres: list jobs rows")
}

func (s *PostgresStore) UpsertStagePayload(ctx context.Context, venueID string, stage model.Stage, payload []byte) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO stage_payloads (id, venue_id, stage, payload, updated_at) VALUES ($1, $2, $3, $4, $5) ON CONFLICT (venue_id, stage) DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`,
		uuid.New().String(), venueID, string(stage), payload, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: upsert payload %s/%s", venueID, stage)
}

func (s *PostgresStore) GetStagePayload(ctx context.Context, venueID string, stage model.Stage) ([]byte, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM stage_payloads WHERE venue_id = $1 AND stage = $2`,
		venueID, string(stage),
	).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get payload %s/%s", venueID, stage)
	}
	return payload, nil
}

func (s *PostgresStore) ListReferences(ctx context.Context, kind model.ReferenceKind, city string) ([]model.Reference, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, kind, name, slug, city, stars FROM reference_entities WHERE kind = $1 AND city = $2 ORDER BY name`,
		string(kind), city,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list references %s", kind)
	}
	defer rows.Close()

	var refs []model.Reference
	for rows.Next() {
		var r model.Reference
		if err := rows.Scan(&r.ID, &r.Kind, &r.Name, &r.Slug, &r.City, &r.Stars); err != nil {
			return nil, eris.Wrap(err, "postgres: scan reference")
		}
		refs = append(refs, r)
	}
	return refs, eris.Wrap(rows.Err(), "postgres: list references rows")
}

func (s *PostgresStore) MatchReference(ctx context.Context, kind model.ReferenceKind, city, name string) (*model.Reference, error) {
	var r model.Reference
	err := s.pool.QueryRow(ctx,
		`SELECT id, kind, name, slug, city, stars FROM reference_entities WHERE kind = $1 AND city = $2 AND lower(name) = lower($3)`,
		string(kind), city, name,
	).Scan(&r.ID, &r.Kind, &r.Name, &r.Slug, &r.City, &r.Stars)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: match reference %s %q", kind, name)
	}
	return &r, nil
}

func (s *PostgresStore) CreateReference(ctx context.Context, ref model.Reference) (*model.Reference, error) {
	if ref.ID == "" {
		ref.ID = uuid.New().String()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO reference_entities (id, kind, name, slug, city, stars) VALUES ($1, $2, $3, $4, $5, $6)`,
		ref.ID, string(ref.Kind), ref.Name, ref.Slug, ref.City, ref.Stars,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, eris.Wrapf(err, "postgres: insert reference %s %q", ref.Kind, ref.Name)
	}
	return &ref, nil
}

func (s *PostgresStore) ReplaceVenueImages(ctx context.Context, venueID string, images []model.VenueImage) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin replace images")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM venue_images WHERE venue_id = $1`, venueID); err != nil {
		return eris.Wrapf(err, "postgres: delete images %s", venueID)
	}

	columns := []string{
		"id", "venue_id", "source_url", "storage_path", "public_url", "filename",
		"media_type", "category", "descriptor", "alt_text", "title", "caption",
		"description", "dog_relevant", "dog_amenity", "confidence", "is_primary",
		"display_order", "created_at",
	}
	rows := make([][]any, 0, len(images))
	for _, img := range images {
		if img.ID == "" {
			img.ID = uuid.New().String()
		}
		if img.CreatedAt.IsZero() {
			img.CreatedAt = time.Now().UTC()
		}
		rows = append(rows, []any{
			img.ID, venueID, img.SourceURL, img.StoragePath, img.PublicURL, img.Filename,
			img.MediaType, img.Category, img.Descriptor, img.AltText, img.Title, img.Caption,
			img.Description, img.DogRelevant, img.DogAmenity, img.Confidence, img.IsPrimary,
			img.DisplayOrder, img.CreatedAt,
		})
	}
	if _, err := db.CopyFrom(ctx, tx, "venue_images", columns, rows); err != nil {
		return eris.Wrapf(err, "postgres: insert images %s", venueID)
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit replace images")
}

func (s *PostgresStore) ListVenueImages(ctx context.Context, venueID string) ([]model.VenueImage, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, venue_id, source_url, storage_path, public_url, filename, media_type, category, descriptor, alt_text, title, caption, description, dog_relevant, dog_amenity, confidence, is_primary, display_order, created_at FROM venue_images WHERE venue_id = $1 ORDER BY display_order`,
		venueID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list images %s", venueID)
	}
	defer rows.Close()

	var images []model.VenueImage
	for rows.Next() {
		var img model.VenueImage
		if err := rows.Scan(&img.ID, &img.VenueID, &img.SourceURL, &img.StoragePath, &img.PublicURL, &img.Filename, &img.MediaType, &img.Category, &img.Descriptor, &img.AltText, &img.Title, &img.Caption, &img.Description, &img.DogRelevant, &img.DogAmenity, &img.Confidence, &img.IsPrimary, &img.DisplayOrder, &img.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan image")
		}
		images = append(images, img)
	}
	return images, eris.Wrap(rows.Err(), "postgres: list images rows")
}

func (s *PostgresStore) ReplaceVenueLinks(ctx context.Context, venueID string, mapped model.MappedData) (map[string]int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin replace links")
	}
	defer tx.Rollback(ctx)

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
		if _, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE venue_id = $1`, set.table), venueID); err != nil {
			return nil, eris.Wrapf(err, "postgres: delete links %s", set.table)
		}
		rows := make([][]any, 0, len(set.ids))
		for _, id := range set.ids {
			rows = append(rows, []any{venueID, id})
		}
		n, err := db.CopyFrom(ctx, tx, set.table, []string{"venue_id", set.column}, rows)
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: insert links %s", set.table)
		}
		counts[set.table] = int(n)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: commit replace links")
	}
	return counts, nil
}
