package model

// GeneratedContent is the structured document produced by the content
// generation stage. Field names match the JSON contract given to the model.
type GeneratedContent struct {
	Slug                  string            `json:"slug"`
	Phone                 string            `json:"phone"`
	PriceRange            string            `json:"price_range"`
	Latitude              float64           `json:"latitude"`
	Longitude             float64           `json:"longitude"`
	OpeningHours          map[string]string `json:"opening_hours"`
	DressCode             string            `json:"dress_code"`
	ReservationsURL       string            `json:"reservations_url"`
	ReservationsRequired  bool              `json:"reservations_required"`
	BestTimesBuzzing      []string          `json:"best_times_buzzing"`
	BestTimesRelaxed      []string          `json:"best_times_relaxed"`
	BestTimesWithDogs     []string          `json:"best_times_with_dogs"`
	BestTimesDescription  string            `json:"best_times_description"`
	GettingTherePublic    string            `json:"getting_there_public"`
	GettingThereCar       string            `json:"getting_there_car"`
	NearestDogParks       []string          `json:"nearest_dog_parks"`
	ReviewSentiment       string            `json:"public_review_sentiment"`
	SentimentScore        float64           `json:"sentiment_score"`
	Awards                []string          `json:"restaurant_awards"`
	MichelinGuideAward    string            `json:"michelin_guide_award"`
	AccessibilityFeatures []string          `json:"accessibility_features"`
	SocialMediaURLs       map[string]string `json:"social_media_urls"`
	About                 string            `json:"about"`
	Cuisines              []string          `json:"cuisines"`
	Categories            []string          `json:"categories"`
	Features              []string          `json:"features"`
	Neighbourhood         string            `json:"neighbourhood"`
	FAQs                  []FAQ             `json:"faqs"`
}

// DirectFields splits the scalar columns out of the document. Taxonomy
// labels (cuisines, categories, features, neighbourhood, Michelin award)
// are resolved separately by the reconciler.
func (g GeneratedContent) DirectFields() DirectFields {
	return DirectFields{
		Slug:                  g.Slug,
		Phone:                 g.Phone,
		PriceRange:            g.PriceRange,
		Latitude:              g.Latitude,
		Longitude:             g.Longitude,
		OpeningHours:          g.OpeningHours,
		DressCode:             g.DressCode,
		ReservationsURL:       g.ReservationsURL,
		ReservationsRequired:  g.ReservationsRequired,
		BestTimesBuzzing:      g.BestTimesBuzzing,
		BestTimesRelaxed:      g.BestTimesRelaxed,
		BestTimesWithDogs:     g.BestTimesWithDogs,
		BestTimesDescription:  g.BestTimesDescription,
		GettingTherePublic:    g.GettingTherePublic,
		GettingThereCar:       g.GettingThereCar,
		NearestDogParks:       g.NearestDogParks,
		ReviewSentiment:       g.ReviewSentiment,
		SentimentScore:        g.SentimentScore,
		Awards:                g.Awards,
		AccessibilityFeatures: g.AccessibilityFeatures,
		SocialMediaURLs:       g.SocialMediaURLs,
		About:                 g.About,
		FAQs:                  g.FAQs,
	}
}
