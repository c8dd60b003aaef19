// Package pipeline orchestrates the eight-stage venue ingestion run:
// create, business_fetch, web_fetch, harvest_images, finalize_images,
// generate_content, map_fields, publish.
package pipeline

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dogfriendly/venue-cli/internal/config"
	"github.com/dogfriendly/venue-cli/internal/model"
	"github.com/dogfriendly/venue-cli/internal/reconcile"
	"github.com/dogfriendly/venue-cli/internal/store"
	"github.com/dogfriendly/venue-cli/pkg/anthropic"
	"github.com/dogfriendly/venue-cli/pkg/apify"
	"github.com/dogfriendly/venue-cli/pkg/firecrawl"
	"github.com/dogfriendly/venue-cli/pkg/storage"
)

// OnboardRequest seeds a new venue run.
type OnboardRequest struct {
	Name          string `json:"name"`
	Address       string `json:"address"`
	City          string `json:"city"`
	Neighbourhood string `json:"neighbourhood,omitempty"`
	PlaceID       string `json:"place_id,omitempty"`
	Website       string `json:"website,omitempty"`
}

// Pipeline runs ingestion stages for a single venue at a time.
type Pipeline struct {
	cfg        *config.Config
	store      store.Store
	apify      apify.Client
	firecrawl  firecrawl.Client
	anthropic  anthropic.Client
	storage    storage.Client
	reconciler *reconcile.Reconciler
	httpc      *http.Client
}

// New creates a Pipeline with all dependencies.
func New(
	cfg *config.Config,
	st store.Store,
	apifyClient apify.Client,
	fcClient firecrawl.Client,
	aiClient anthropic.Client,
	storageClient storage.Client,
) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		store:      st,
		apify:      apifyClient,
		firecrawl:  fcClient,
		anthropic:  aiClient,
		storage:    storageClient,
		reconciler: reconcile.New(st),
		httpc:      &http.Client{Timeout: 30 * time.Second},
	}
}

// Onboard creates the venue and job rows, then runs the full pipeline.
func (p *Pipeline) Onboard(ctx context.Context, req OnboardRequest) (*model.Job, error) {
	venue, job, err := p.Prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	return p.RunJob(ctx, venue, job)
}

// Prepare creates the venue and job rows and records the create stage,
// without running the fetch stages. Callers that want to report the job ID
// before the long-running work starts use this with RunJob.
func (p *Pipeline) Prepare(ctx context.Context, req OnboardRequest) (*model.Venue, *model.Job, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, nil, eris.New("pipeline: venue name is required")
	}
	city := req.City
	if city == "" {
		city = p.cfg.Content.DefaultCity
	}

	venue, err := p.store.CreateVenue(ctx, model.Venue{
		Name:          req.Name,
		Address:       req.Address,
		City:          city,
		Neighbourhood: req.Neighbourhood,
		PlaceID:       req.PlaceID,
		Website:       req.Website,
	})
	if err != nil {
		return nil, nil, eris.Wrap(err, "pipeline: create venue")
	}

	job, err := p.store.CreateJob(ctx, venue.ID)
	if err != nil {
		return nil, nil, eris.Wrap(err, "pipeline: create job")
	}

	createResult := model.StageResult{
		Status:   model.StageStatusCompleted,
		Metadata: map[string]any{"venue_id": venue.ID},
	}
	if err := p.store.UpdateJobStage(ctx, job.ID, model.StageCreate, createResult); err != nil {
		zap.L().Warn("pipeline: failed to record create stage", zap.Error(err))
	}
	job.Stages[model.StageCreate] = createResult

	return venue, job, nil
}

// RunJob runs the fetch stages for a venue and job created by Prepare.
func (p *Pipeline) RunJob(ctx context.Context, venue *model.Venue, job *model.Job) (*model.Job, error) {
	return p.run(ctx, venue, job, model.StageBusinessFetch)
}

// resumePrereqs lists the stage payloads that must already exist before a
// run can restart from a given stage.
var resumePrereqs = map[model.Stage][]model.Stage{
	model.StageBusinessFetch:   {},
	model.StageWebFetch:        {},
	model.StageHarvestImages:   {model.StageBusinessFetch},
	model.StageFinalizeImages:  {model.StageHarvestImages},
	model.StageGenerateContent: {model.StageBusinessFetch},
	model.StageMapFields:       {model.StageGenerateContent},
	model.StagePublish:         {model.StageGenerateContent, model.StageMapFields},
}

// ResumeFrom re-runs the pipeline suffix starting at the given stage,
// after verifying the payloads that stage depends on are present.
func (p *Pipeline) ResumeFrom(ctx context.Context, venueID string, from model.Stage) (*model.Job, error) {
	prereqs, ok := resumePrereqs[from]
	if !ok {
		return nil, eris.Errorf("pipeline: cannot resume from stage %q", from)
	}

	venue, err := p.store.GetVenue(ctx, venueID)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load venue")
	}

	for _, prereq := range prereqs {
		payload, err := p.store.GetStagePayload(ctx, venueID, prereq)
		if err != nil {
			return nil, eris.Wrapf(err, "pipeline: check %s payload", prereq)
		}
		if payload == nil {
			return nil, eris.Errorf("pipeline: resume from %s requires a %s payload; run that stage first", from, prereq)
		}
	}

	job, err := p.store.CreateJob(ctx, venueID)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create job")
	}

	// Stages before the resume point are marked skipped so the status map
	// reads as a complete picture of this run.
	for _, stage := range model.StageOrder {
		if stage == from {
			break
		}
		skipped := model.StageResult{Status: model.StageStatusSkipped}
		if err := p.store.UpdateJobStage(ctx, job.ID, stage, skipped); err != nil {
			zap.L().Warn("pipeline: failed to mark stage skipped", zap.String("stage", string(stage)), zap.Error(err))
		}
		job.Stages[stage] = skipped
	}

	return p.run(ctx, venue, job, from)
}

// run executes the stage suffix starting at from. Any stage failure except
// web_fetch halts the run and fails the job.
func (p *Pipeline) run(ctx context.Context, venue *model.Venue, job *model.Job, from model.Stage) (*model.Job, error) {
	log := zap.L().With(
		zap.String("venue", venue.Name),
		zap.String("venue_id", venue.ID),
		zap.String("job_id", job.ID),
	)
	log.Info("pipeline: starting run", zap.String("from", string(from)))

	setStatus := func(status model.JobStatus) {
		job.Status = status
		if err := p.store.UpdateJobStatus(ctx, job.ID, status); err != nil {
			log.Warn("pipeline: failed to update job status", zap.Error(err))
		}
	}

	var stagesMu sync.Mutex
	trackStage := func(stage model.Stage, fn func() (map[string]any, error)) error {
		running := model.StageResult{Status: model.StageStatusRunning}
		stagesMu.Lock()
		job.Stages[stage] = running
		stagesMu.Unlock()
		if err := p.store.UpdateJobStage(ctx, job.ID, stage, running); err != nil {
			log.Warn("pipeline: failed to mark stage running", zap.String("stage", string(stage)), zap.Error(err))
		}

		start := time.Now()
		meta, err := fn()
		duration := time.Since(start).Milliseconds()

		result := model.StageResult{Duration: duration, Metadata: meta}
		if err != nil {
			result.Status = model.StageStatusFailed
			result.Error = err.Error()
			result.ErrorKind = classify(err)
			log.Error("pipeline: stage failed",
				zap.String("stage", string(stage)),
				zap.Int64("duration_ms", duration),
				zap.String("kind", string(result.ErrorKind)),
				zap.Error(err),
			)
		} else {
			result.Status = model.StageStatusCompleted
			log.Info("pipeline: stage complete",
				zap.String("stage", string(stage)),
				zap.Int64("duration_ms", duration),
			)
		}

		if updateErr := p.store.UpdateJobStage(ctx, job.ID, stage, result); updateErr != nil {
			log.Warn("pipeline: failed to record stage result", zap.String("stage", string(stage)), zap.Error(updateErr))
		}
		stagesMu.Lock()
		job.Stages[stage] = result
		stagesMu.Unlock()
		return err
	}

	remaining := make(map[model.Stage]bool)
	seen := false
	for _, stage := range model.StageOrder {
		if stage == from {
			seen = true
		}
		remaining[stage] = seen
	}

	fail := func(err error) (*model.Job, error) {
		setStatus(model.JobStatusFailed)
		return job, err
	}

	// business_fetch and web_fetch run concurrently. Only a business_fetch
	// failure halts the run; a venue with no usable web presence still gets
	// a directory entry.
	if remaining[model.StageBusinessFetch] || remaining[model.StageWebFetch] {
		var businessErr error
		g, gCtx := errgroup.WithContext(ctx)
		if remaining[model.StageBusinessFetch] {
			g.Go(func() error {
				businessErr = trackStage(model.StageBusinessFetch, func() (map[string]any, error) {
					return p.businessFetch(gCtx, venue)
				})
				return nil
			})
		}
		if remaining[model.StageWebFetch] {
			g.Go(func() error {
				if err := trackStage(model.StageWebFetch, func() (map[string]any, error) {
					return p.webFetch(gCtx, venue)
				}); err != nil {
					log.Warn("pipeline: continuing without web content", zap.Error(err))
				}
				return nil
			})
		}
		_ = g.Wait()
		if businessErr != nil {
			return fail(businessErr)
		}
		// Seed fields may have changed the venue row.
		if fresh, err := p.store.GetVenue(ctx, venue.ID); err == nil {
			venue = fresh
		}
	}

	if remaining[model.StageHarvestImages] {
		if err := trackStage(model.StageHarvestImages, func() (map[string]any, error) {
			return p.harvestImages(ctx, venue)
		}); err != nil {
			return fail(err)
		}
	}

	if remaining[model.StageFinalizeImages] {
		if err := trackStage(model.StageFinalizeImages, func() (map[string]any, error) {
			return p.finalizeImages(ctx, venue)
		}); err != nil {
			return fail(err)
		}
	}

	if remaining[model.StageGenerateContent] {
		if err := trackStage(model.StageGenerateContent, func() (map[string]any, error) {
			return p.generateContent(ctx, venue)
		}); err != nil {
			return fail(err)
		}
	}

	if remaining[model.StageMapFields] {
		if err := trackStage(model.StageMapFields, func() (map[string]any, error) {
			return p.mapFields(ctx, venue)
		}); err != nil {
			return fail(err)
		}
	}

	if remaining[model.StagePublish] {
		if err := trackStage(model.StagePublish, func() (map[string]any, error) {
			return p.publish(ctx, venue)
		}); err != nil {
			return fail(err)
		}
	}

	setStatus(model.JobStatusCompleted)
	log.Info("pipeline: run complete")
	return job, nil
}

// loadPayload fetches and decodes a prior stage's payload into out.
// Returns false when no payload exists.
func (p *Pipeline) loadPayload(ctx context.Context, venueID string, stage model.Stage, out any) (bool, error) {
	raw, err := p.store.GetStagePayload(ctx, venueID, stage)
	if err != nil {
		return false, err
	}
	if raw == nil {
		return false, nil
	}
	if err := unmarshalPayload(raw, out); err != nil {
		return false, eris.Wrapf(err, "pipeline: decode %s payload", stage)
	}
	return true, nil
}
