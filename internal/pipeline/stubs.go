package pipeline

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/dogfriendly/venue-cli/pkg/anthropic"
	"github.com/dogfriendly/venue-cli/pkg/apify"
	"github.com/dogfriendly/venue-cli/pkg/firecrawl"
	"github.com/dogfriendly/venue-cli/pkg/storage"
)

// Compile-time interface checks.
var (
	_ apify.Client     = (*StubApifyClient)(nil)
	_ firecrawl.Client = (*StubFirecrawlClient)(nil)
	_ anthropic.Client = (*StubAnthropicClient)(nil)
	_ storage.Client   = (*StubStorageClient)(nil)
)

// --- Apify Stub ---

// StubApifyClient implements apify.Client with canned actor runs for
// offline development and tests.
type StubApifyClient struct {
	// ImageURL overrides the image URLs in the canned image dataset so
	// tests can point candidates at a local server.
	ImageURL string
}

func (s *StubApifyClient) RunActor(_ context.Context, actorID string, _ any) (*apify.Run, error) {
	// The actor name rides along in the run ID so GetRun can route the
	// right canned dataset after polling.
	return &apify.Run{
		ID:               actorID + "-run",
		ActorID:          actorID,
		Status:           "SUCCEEDED",
		DefaultDatasetID: actorID + "-dataset",
	}, nil
}

func (s *StubApifyClient) GetRun(_ context.Context, runID string) (*apify.Run, error) {
	return &apify.Run{
		ID:               runID,
		Status:           "SUCCEEDED",
		DefaultDatasetID: strings.TrimSuffix(runID, "-run") + "-dataset",
	}, nil
}

func (s *StubApifyClient) GetDatasetItems(_ context.Context, datasetID string, out any) error {
	var raw string
	if strings.Contains(datasetID, "images") {
		imageURL := s.ImageURL
		if imageURL == "" {
			imageURL = "https://images.example.com/spaniards-inn-terrace.jpg"
		}
		raw = `[{
			"title": "The Spaniards Inn interior dining room",
			"imageUrl": "` + imageURL + `",
			"imageWidth": 1600,
			"imageHeight": 1200,
			"contentUrl": "https://www.opentable.com/r/the-spaniards-inn",
			"origin": "opentable.com"
		}]`
	} else {
		raw = `[{
			"title": "The Spaniards Inn",
			"address": "Spaniards Rd, Hampstead, London NW3 7JJ",
			"phone": "+44 20 8731 8406",
			"website": "https://www.thespaniardshampstead.co.uk",
			"placeId": "ChIJd8BlQ2BZwokRAFUEcm_qrcA",
			"latitude": 51.5713,
			"longitude": -0.1816,
			"price": "$$",
			"categoryName": "Pub",
			"totalScore": 4.4,
			"reviewsCount": 5120,
			"openingHours": [{"day": "Monday", "hours": "12:00-23:00"}],
			"popularTimesHistogram": {"Sa": [{"hour": 13, "occupancyPercent": 82}, {"hour": 16, "occupancyPercent": 55}]}
		}]`
	}
	return json.Unmarshal([]byte(raw), out)
}

// --- Firecrawl Stub ---

// StubFirecrawlClient implements firecrawl.Client with canned pages.
type StubFirecrawlClient struct{}

func (s *StubFirecrawlClient) Scrape(_ context.Context, req firecrawl.ScrapeRequest) (*firecrawl.ScrapeResponse, error) {
	return &firecrawl.ScrapeResponse{
		Success: true,
		Data: firecrawl.PageData{
			URL:      req.URL,
			Markdown: "Dog friendly pub with a garden. [Our Menu](/menu)",
			HTML:     `<a href="/menu">Our Menu</a>`,
		},
	}, nil
}

func (s *StubFirecrawlClient) BatchScrape(_ context.Context, _ firecrawl.BatchScrapeRequest) (*firecrawl.BatchScrapeResponse, error) {
	return &firecrawl.BatchScrapeResponse{Success: true, ID: "stub-batch-001"}, nil
}

func (s *StubFirecrawlClient) GetBatchScrapeStatus(_ context.Context, _ string) (*firecrawl.BatchScrapeStatusResponse, error) {
	return &firecrawl.BatchScrapeStatusResponse{
		Status: "completed",
		Total:  1,
		Data: []firecrawl.PageData{{
			Markdown: "STARTERS\nSoup of the day\n£6.50\nMAINS\nFish and chips - £16",
		}},
	}, nil
}

func (s *StubFirecrawlClient) Search(_ context.Context, req firecrawl.SearchRequest) (*firecrawl.SearchResponse, error) {
	return &firecrawl.SearchResponse{
		Success: true,
		Data: []firecrawl.SearchResult{{
			URL:   "https://www.example.com/search-hit",
			Title: req.Query,
		}},
	}, nil
}

// --- Anthropic Stub ---

// StubAnthropicClient implements anthropic.Client. Vision requests get a
// canned classification; everything else gets a canned content document
// that passes schema validation.
type StubAnthropicClient struct{}

const stubVisionJSON = `{
	"category": "interior",
	"descriptor": "dining-room",
	"alt_text": "Wood-panelled dining room with a fireplace",
	"title": "The dining room",
	"caption": "Inside the historic dining room",
	"description": "The wood-panelled main dining room, with its original fireplace.",
	"dog_relevant": false,
	"dog_amenity": "",
	"confidence": 0.9
}`

const stubContentJSON = `{
	"slug": "spaniards-inn-hampstead",
	"phone": "+44 20 8731 8406",
	"price_range": "££",
	"latitude": 51.5713,
	"longitude": -0.1816,
	"opening_hours": {"monday": "12:00-23:00"},
	"dress_code": "",
	"reservations_url": "https://www.thespaniardshampstead.co.uk/book",
	"reservations_required": false,
	"best_times_buzzing": ["Saturday 13:00"],
	"best_times_relaxed": [],
	"best_times_with_dogs": ["Saturday 16:00"],
	"best_times_description": "Weekend lunches are busy; late afternoons are calmer for dogs.",
	"getting_there_public": "Take the 210 bus from Golders Green or Archway.",
	"getting_there_car": "Limited parking on Spaniards Road.",
	"nearest_dog_parks": ["Hampstead Heath"],
	"public_review_sentiment": "Reviewers praise the historic rooms, the garden and the welcome for dogs. Service at peak times draws occasional complaints.",
	"sentiment_score": 8.5,
	"restaurant_awards": [],
	"michelin_guide_award": "",
	"accessibility_features": ["wheelchairAccessibleEntrance"],
	"social_media_urls": {"instagram": "https://www.instagram.com/thespaniardsinn"},
	"about": "The Spaniards Inn has stood at the edge of Hampstead Heath since 1585, and its wood-panelled rooms and rambling garden have welcomed walkers and their dogs for as long as anyone can remember. The kitchen leans on hearty British cooking, with a Sunday roast that draws crowds from across north London, while the bar keeps a rotating line of cask ales. Dogs are not merely tolerated here but looked after, with water bowls at the door, treats behind the bar and plenty of shaded garden tables. Arrive outside peak weekend hours for the calmest visit with a dog in tow.",
	"cuisines": ["British"],
	"categories": ["Pub"],
	"features": ["Water Bowls", "Garden"],
	"neighbourhood": "Hampstead",
	"faqs": [
		{"question": "Can I bring my dog to The Spaniards Inn?", "answer": "Yes, dogs are welcome throughout the pub and garden, with water bowls and treats provided."},
		{"question": "Does the pub have a garden?", "answer": "Yes, there is a large garden with shaded tables."},
		{"question": "Do I need to book?", "answer": "Booking is recommended for Sunday lunch but walk-ins are fine most days."},
		{"question": "Is there parking?", "answer": "A small car park sits behind the pub, with street parking nearby."},
		{"question": "What food is served?", "answer": "Hearty British pub food, including a popular Sunday roast."}
	]
}`

func (s *StubAnthropicClient) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	text := stubContentJSON
	for _, m := range req.Messages {
		if len(m.Images) > 0 {
			text = stubVisionJSON
			break
		}
	}
	return &anthropic.MessageResponse{
		ID:    "stub-msg-001",
		Model: req.Model,
		Content: []anthropic.ContentBlock{
			{Type: "text", Text: text},
		},
		StopReason: "end_turn",
		Usage:      anthropic.TokenUsage{InputTokens: 900, OutputTokens: 450},
	}, nil
}

// --- Storage Stub ---

// StubStorageClient implements storage.Client, recording uploads.
type StubStorageClient struct {
	Uploaded []string
}

func (s *StubStorageClient) Upload(_ context.Context, path string, _ []byte, _ string) (string, error) {
	s.Uploaded = append(s.Uploaded, path)
	return "https://cdn.example.com/" + path, nil
}

func (s *StubStorageClient) Remove(_ context.Context, _ []string) error {
	return nil
}
