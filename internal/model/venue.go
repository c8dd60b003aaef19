package model

import "time"

// Venue is a directory entry under ingestion. Scalar enrichment fields are
// filled in by the publish stage; until then only the seed columns are set.
type Venue struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Slug            string    `json:"slug"`
	Address         string    `json:"address"`
	City            string    `json:"city"`
	Neighbourhood   string    `json:"neighbourhood,omitempty"`
	PlaceID         string    `json:"place_id,omitempty"`
	Website         string    `json:"website,omitempty"`
	Phone           string    `json:"phone,omitempty"`
	PriceRange      string    `json:"price_range,omitempty"`
	Published       bool      `json:"published"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// SeedFields are the venue columns mapped directly from the business data
// payload before content generation runs.
type SeedFields struct {
	Name       string `json:"name,omitempty"`
	Address    string `json:"address,omitempty"`
	Phone      string `json:"phone,omitempty"`
	Website    string `json:"website,omitempty"`
	PriceRange string `json:"price_range,omitempty"`
}

// DirectFields are the scalar venue columns written at publish time.
// They mirror the generated content document minus the taxonomy labels,
// which publish writes through link tables instead.
type DirectFields struct {
	Slug                  string            `json:"slug,omitempty"`
	Phone                 string            `json:"phone,omitempty"`
	PriceRange            string            `json:"price_range,omitempty"`
	Latitude              float64           `json:"latitude,omitempty"`
	Longitude             float64           `json:"longitude,omitempty"`
	OpeningHours          map[string]string `json:"opening_hours,omitempty"`
	DressCode             string            `json:"dress_code,omitempty"`
	ReservationsURL       string            `json:"reservations_url,omitempty"`
	ReservationsRequired  bool              `json:"reservations_required"`
	BestTimesBuzzing      []string          `json:"best_times_buzzing,omitempty"`
	BestTimesRelaxed      []string          `json:"best_times_relaxed,omitempty"`
	BestTimesWithDogs     []string          `json:"best_times_with_dogs,omitempty"`
	BestTimesDescription  string            `json:"best_times_description,omitempty"`
	GettingTherePublic    string            `json:"getting_there_public,omitempty"`
	GettingThereCar       string            `json:"getting_there_car,omitempty"`
	NearestDogParks       []string          `json:"nearest_dog_parks,omitempty"`
	ReviewSentiment       string            `json:"public_review_sentiment,omitempty"`
	SentimentScore        float64           `json:"sentiment_score,omitempty"`
	Awards                []string          `json:"restaurant_awards,omitempty"`
	AccessibilityFeatures []string          `json:"accessibility_features,omitempty"`
	SocialMediaURLs       map[string]string `json:"social_media_urls,omitempty"`
	About                 string            `json:"about,omitempty"`
	FAQs                  []FAQ             `json:"faqs,omitempty"`
	NeighbourhoodID       string            `json:"neighbourhood_id,omitempty"`
	MichelinAwardID       string            `json:"michelin_award_id,omitempty"`
	MichelinStars         int               `json:"michelin_stars,omitempty"`
}

// FAQ is a question/answer pair shown on the venue page.
type FAQ struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}
