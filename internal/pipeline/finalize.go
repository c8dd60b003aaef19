package pipeline

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/dogfriendly/venue-cli/internal/model"
	"github.com/dogfriendly/venue-cli/internal/reconcile"
	"github.com/dogfriendly/venue-cli/pkg/anthropic"
)

// visionResult is the JSON document the vision model returns per image.
type visionResult struct {
	Category    string  `json:"category"`
	Descriptor  string  `json:"descriptor"`
	AltText     string  `json:"alt_text"`
	Title       string  `json:"title"`
	Caption     string  `json:"caption"`
	Description string  `json:"description"`
	DogRelevant bool    `json:"dog_relevant"`
	DogAmenity  string  `json:"dog_amenity"`
	Confidence  float64 `json:"confidence"`
}

const visionPrompt = `You are cataloguing a photo for a dog-friendly restaurant directory entry for "%s" in %s.
Classify the attached image and answer with a single JSON object, no other text:
{
  "category": "interior|food|exterior|ambiance",
  "descriptor": "short kebab-case subject, e.g. dining-room, sunday-roast, garden-terrace",
  "alt_text": "concise accessible description",
  "title": "short display title",
  "caption": "one-line caption",
  "description": "1-2 sentence description",
  "dog_relevant": true if dogs or dog amenities are visible,
  "dog_amenity": "what dog amenity is shown, or empty",
  "confidence": 0.0-1.0
}`

// finalizeImages downloads the ranked candidates, classifies each with a
// rate-limited vision call, uploads the bytes to object storage and
// replaces the venue's photo set. Per-image failures are skipped; the
// stage fails only when nothing lands.
func (p *Pipeline) finalizeImages(ctx context.Context, venue *model.Venue) (map[string]any, error) {
	var candidates []model.ImageCandidate
	ok, err := p.loadPayload(ctx, venue.ID, model.StageHarvestImages, &candidates)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, validationErr(model.StageFinalizeImages, eris.New("harvest payload missing; run harvest_images first"))
	}
	if len(candidates) == 0 {
		return nil, validationErr(model.StageFinalizeImages, eris.New("no image candidates to finalize"))
	}
	if max := p.cfg.Images.MaxUploads; len(candidates) > max {
		candidates = candidates[:max]
	}

	venueSlug := reconcile.Slugify(venue.Name)
	locality := venue.Neighbourhood
	if locality == "" {
		locality = venue.City
	}
	localitySlug := reconcile.Slugify(locality)

	limiter := rate.NewLimiter(rate.Limit(p.cfg.Images.VisionRatePerSec), 1)
	log := zap.L().With(zap.String("venue", venue.Name))

	var images []model.VenueImage
	var failures []string
	for _, candidate := range candidates {
		img, err := p.finalizeOne(ctx, venue, candidate, venueSlug, localitySlug, len(images), limiter)
		if err != nil {
			log.Warn("pipeline: image skipped", zap.String("url", candidate.URL), zap.Error(err))
			failures = append(failures, fmt.Sprintf("%s: %v", candidate.URL, err))
			continue
		}
		images = append(images, *img)
	}

	if len(images) == 0 {
		return map[string]any{"attempted": len(candidates)},
			externalErr(model.StageFinalizeImages, eris.Errorf("all %d image candidates failed", len(candidates)))
	}

	// The top-ranked survivor leads the gallery.
	images[0].IsPrimary = true

	if err := p.store.ReplaceVenueImages(ctx, venue.ID, images); err != nil {
		return nil, eris.Wrap(err, "pipeline: replace venue images")
	}
	if err := p.savePayload(ctx, venue.ID, model.StageFinalizeImages, images); err != nil {
		return nil, err
	}

	meta := map[string]any{
		"attempted": len(candidates),
		"uploaded":  len(images),
		"failed":    len(failures),
	}
	return meta, nil
}

// finalizeOne downloads, classifies, names and uploads a single candidate.
func (p *Pipeline) finalizeOne(
	ctx context.Context,
	venue *model.Venue,
	candidate model.ImageCandidate,
	venueSlug, localitySlug string,
	order int,
	limiter *rate.Limiter,
) (*model.VenueImage, error) {
	data, err := p.downloadImage(ctx, candidate.URL)
	if err != nil {
		return nil, err
	}
	mediaType := detectMediaType(data, candidate.URL)

	if err := limiter.Wait(ctx); err != nil {
		return nil, err
	}
	vision, err := p.classifyImage(ctx, venue, data, mediaType)
	if err != nil {
		return nil, err
	}

	descriptor := vision.Descriptor
	if descriptor == "" {
		descriptor = vision.Category
	}
	if descriptor == "" {
		descriptor = "photo"
	}
	filename := fmt.Sprintf("%s_%s_%s_%02d%s",
		venueSlug, localitySlug, reconcile.Slugify(descriptor), order+1, extensionFor(mediaType))
	storagePath := path.Join("venues", venueSlug+"_"+localitySlug, "images", filename)

	publicURL, err := p.storage.Upload(ctx, storagePath, data, mediaType)
	if err != nil {
		return nil, eris.Wrap(err, "upload")
	}

	return &model.VenueImage{
		VenueID:      venue.ID,
		SourceURL:    candidate.URL,
		StoragePath:  storagePath,
		PublicURL:    publicURL,
		Filename:     filename,
		MediaType:    mediaType,
		Category:     vision.Category,
		Descriptor:   descriptor,
		AltText:      vision.AltText,
		Title:        vision.Title,
		Caption:      vision.Caption,
		Description:  vision.Description,
		DogRelevant:  vision.DogRelevant,
		DogAmenity:   vision.DogAmenity,
		Confidence:   vision.Confidence,
		DisplayOrder: order,
	}, nil
}

func (p *Pipeline) downloadImage(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "build request")
	}
	resp, err := p.httpc.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "download")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("download: HTTP %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 20<<20))
	if err != nil {
		return nil, eris.Wrap(err, "read body")
	}
	if len(data) == 0 {
		return nil, eris.New("empty body")
	}
	return data, nil
}

func (p *Pipeline) classifyImage(ctx context.Context, venue *model.Venue, data []byte, mediaType string) (*visionResult, error) {
	resp, err := p.anthropic.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     p.cfg.Anthropic.VisionModel,
		MaxTokens: 1024,
		Messages: []anthropic.Message{{
			Role:    "user",
			Content: fmt.Sprintf(visionPrompt, venue.Name, venue.City),
			Images: []anthropic.ImageData{{
				MediaType: mediaType,
				Base64:    base64.StdEncoding.EncodeToString(data),
			}},
		}},
	})
	if err != nil {
		return nil, eris.Wrap(err, "vision call")
	}
	resp.Usage.LogCost(p.cfg.Anthropic.VisionModel, "finalize_images")

	var result visionResult
	if err := json.Unmarshal([]byte(cleanJSON(resp.Text())), &result); err != nil {
		return nil, eris.Wrap(err, "parse vision response")
	}
	return &result, nil
}

var magicTypes = []struct {
	prefix []byte
	media  string
}{
	{[]byte{0x89, 'P', 'N', 'G'}, "image/png"},
	{[]byte{0xFF, 0xD8, 0xFF}, "image/jpeg"},
	{[]byte("GIF8"), "image/gif"},
}

// detectMediaType sniffs magic bytes, falls back to the URL extension and
// defaults to JPEG.
func detectMediaType(data []byte, imageURL string) string {
	for _, m := range magicTypes {
		if bytes.HasPrefix(data, m.prefix) {
			return m.media
		}
	}
	if len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")) {
		return "image/webp"
	}

	switch strings.ToLower(path.Ext(strings.SplitN(imageURL, "?", 2)[0])) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	}
	return "image/jpeg"
}

func extensionFor(mediaType string) string {
	switch mediaType {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}
