package model

import "time"

// ImageCandidate is a harvested image before gating and scoring.
type ImageCandidate struct {
	URL        string         `json:"url"`
	Thumbnail  string         `json:"thumbnail,omitempty"`
	Width      int            `json:"width"`
	Height     int            `json:"height"`
	Title      string         `json:"title,omitempty"`
	ContentURL string         `json:"content_url,omitempty"`
	Origin     string         `json:"origin,omitempty"`
	Source     string         `json:"source"` // "google_images" or "website"
	Score      int            `json:"score"`
	Quality    string         `json:"quality,omitempty"`
	Reasons    []string       `json:"reasons,omitempty"`
	Breakdown  map[string]int `json:"breakdown,omitempty"`
}

// VenueImage is a finalized, classified, uploaded image.
type VenueImage struct {
	ID           string    `json:"id"`
	VenueID      string    `json:"venue_id"`
	SourceURL    string    `json:"source_url"`
	StoragePath  string    `json:"storage_path"`
	PublicURL    string    `json:"public_url"`
	Filename     string    `json:"filename"`
	MediaType    string    `json:"media_type"`
	Category     string    `json:"category"` // interior, food, exterior, ambiance
	Descriptor   string    `json:"descriptor"`
	AltText      string    `json:"alt_text"`
	Title        string    `json:"title"`
	Caption      string    `json:"caption,omitempty"`
	Description  string    `json:"description,omitempty"`
	DogRelevant  bool      `json:"dog_relevant"`
	DogAmenity   string    `json:"dog_amenity,omitempty"`
	Confidence   float64   `json:"confidence"`
	IsPrimary    bool      `json:"is_primary"`
	DisplayOrder int       `json:"display_order"`
	CreatedAt    time.Time `json:"created_at"`
}
