package model

// ReferenceKind identifies a taxonomy table.
type ReferenceKind string

const (
	RefCuisine       ReferenceKind = "cuisine"
	RefCategory      ReferenceKind = "category"
	RefFeature       ReferenceKind = "feature"
	RefNeighbourhood ReferenceKind = "neighbourhood"
	RefMichelinAward ReferenceKind = "michelin_award"
)

// Reference is a row in one of the taxonomy tables. City is set only for
// neighbourhoods; Stars only for Michelin awards.
type Reference struct {
	ID    string        `json:"id"`
	Kind  ReferenceKind `json:"kind"`
	Name  string        `json:"name"`
	Slug  string        `json:"slug,omitempty"`
	City  string        `json:"city,omitempty"`
	Stars int           `json:"stars,omitempty"`
}

// MappedData is the reconciler output: resolved link-table IDs plus a
// record of which labels had to be created.
type MappedData struct {
	CuisineIDs      []string            `json:"cuisine_ids"`
	CategoryIDs     []string            `json:"category_ids"`
	FeatureIDs      []string            `json:"feature_ids"`
	NeighbourhoodID string              `json:"neighbourhood_id,omitempty"`
	MichelinAwardID string              `json:"michelin_award_id,omitempty"`
	MichelinStars   int                 `json:"michelin_stars,omitempty"`
	NewlyCreated    map[string][]string `json:"newly_created,omitempty"`
	Dropped         map[string][]string `json:"dropped,omitempty"`
}
