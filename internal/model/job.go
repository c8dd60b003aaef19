package model

import "time"

// Stage identifies a step of the ingestion pipeline.
type Stage string

const (
	StageCreate          Stage = "create"
	StageBusinessFetch   Stage = "business_fetch"
	StageWebFetch        Stage = "web_fetch"
	StageHarvestImages   Stage = "harvest_images"
	StageFinalizeImages  Stage = "finalize_images"
	StageGenerateContent Stage = "generate_content"
	StageMapFields       Stage = "map_fields"
	StagePublish         Stage = "publish"
)

// StageOrder is the fixed execution order of the pipeline. business_fetch
// and web_fetch run concurrently but occupy adjacent positions.
var StageOrder = []Stage{
	StageCreate,
	StageBusinessFetch,
	StageWebFetch,
	StageHarvestImages,
	StageFinalizeImages,
	StageGenerateContent,
	StageMapFields,
	StagePublish,
}

// ValidStage reports whether s names a pipeline stage.
func ValidStage(s Stage) bool {
	for _, st := range StageOrder {
		if st == s {
			return true
		}
	}
	return false
}

// JobStatus represents the overall state of an ingestion job.
type JobStatus string

const (
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// StageStatus represents the state of a single stage within a job.
type StageStatus string

const (
	StageStatusPending   StageStatus = "pending"
	StageStatusRunning   StageStatus = "running"
	StageStatusCompleted StageStatus = "completed"
	StageStatusFailed    StageStatus = "failed"
	StageStatusSkipped   StageStatus = "skipped"
)

// ErrorKind classifies a stage failure.
type ErrorKind string

const (
	ErrorKindExternalCall      ErrorKind = "external_call"
	ErrorKindMalformedResponse ErrorKind = "malformed_response"
	ErrorKindValidation        ErrorKind = "validation"
	ErrorKindConflict          ErrorKind = "conflict"
)

// StageResult records the outcome of one stage execution.
type StageResult struct {
	Status    StageStatus    `json:"status"`
	Duration  int64          `json:"duration_ms"`
	Error     string         `json:"error,omitempty"`
	ErrorKind ErrorKind      `json:"error_kind,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Job represents a single ingestion run for a venue. Stages always carries
// an entry for every pipeline stage so callers can render a full status map.
type Job struct {
	ID        string                `json:"id"`
	VenueID   string                `json:"venue_id"`
	Status    JobStatus             `json:"status"`
	Stages    map[Stage]StageResult `json:"stages"`
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// NewStageMap returns a stage map with every stage set to pending.
func NewStageMap() map[Stage]StageResult {
	m := make(map[Stage]StageResult, len(StageOrder))
	for _, s := range StageOrder {
		m[s] = StageResult{Status: StageStatusPending}
	}
	return m
}
