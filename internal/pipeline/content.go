package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/dogfriendly/venue-cli/internal/model"
	"github.com/dogfriendly/venue-cli/pkg/anthropic"
)

// contentSchema validates the generated document's shape before any of it
// is trusted downstream.
const contentSchema = `{
	"type": "object",
	"required": ["slug", "about", "cuisines", "categories", "features", "neighbourhood", "faqs"],
	"properties": {
		"slug": {"type": "string", "minLength": 2},
		"price_range": {"type": "string", "pattern": "^£{1,4}$|^$"},
		"sentiment_score": {"type": "number", "minimum": 0, "maximum": 10},
		"about": {"type": "string", "minLength": 100},
		"cuisines": {"type": "array", "maxItems": 3, "items": {"type": "string"}},
		"categories": {"type": "array", "minItems": 1, "maxItems": 4, "items": {"type": "string"}},
		"features": {"type": "array", "maxItems": 15, "items": {"type": "string"}},
		"neighbourhood": {"type": "string"},
		"faqs": {
			"type": "array",
			"minItems": 5,
			"maxItems": 5,
			"items": {
				"type": "object",
				"required": ["question", "answer"],
				"properties": {
					"question": {"type": "string", "minLength": 5},
					"answer": {"type": "string", "minLength": 5}
				}
			}
		}
	}
}`

var compiledContentSchema = mustCompileContentSchema()

func mustCompileContentSchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("content.json", strings.NewReader(contentSchema)); err != nil {
		panic("pipeline: add content schema: " + err.Error())
	}
	schema, err := compiler.Compile("content.json")
	if err != nil {
		panic("pipeline: compile content schema: " + err.Error())
	}
	return schema
}

const contentInstructions = `Produce the directory entry for this venue as a single JSON object with exactly these fields:
- "slug": URL slug from the venue name and locality
- "phone": international format
- "price_range": "£" to "££££"
- "latitude", "longitude": numbers
- "opening_hours": object keyed by lowercase weekday, 24h "HH:MM-HH:MM" values
- "dress_code": short phrase or ""
- "reservations_url": booking link with the tracking parameter "?source=%s" appended, or ""
- "reservations_required": boolean
- "best_times_buzzing": weekday+hour phrases where popular-times occupancy is 75%% or higher
- "best_times_relaxed": occupancy 35%% or lower
- "best_times_with_dogs": occupancy between 40%% and 65%%
- "best_times_description": 1-2 sentences
- "getting_there_public", "getting_there_car": one sentence each
- "nearest_dog_parks": up to 3 nearby parks
- "public_review_sentiment": 2-3 sentence summary
- "sentiment_score": 0-10
- "restaurant_awards": award names from the sources, [] if none
- "michelin_guide_award": EXACT name from the award list below, or ""
- "accessibility_features": camelCase schema.org accessibility feature names
- "social_media_urls": object keyed by platform
- "about": 200-300 words, warm and factual, dog-friendliness woven in
- "cuisines": up to 3, prefer names from the cuisine list below
- "categories": 1-4, prefer names from the category list below
- "features": up to 15 from the feature list below ONLY
- "neighbourhood": single neighbourhood name
- "faqs": exactly 5 question/answer pairs; the first must be about visiting with a dog

Use only facts present in the data. Leave unknown fields empty rather than guessing.
Respond with the JSON object only.`

// generateContent builds the prompt from the stored payloads and live
// reference lists, makes one model call, and validates the response
// document. Parse or schema failure halts the run as a malformed response.
func (p *Pipeline) generateContent(ctx context.Context, venue *model.Venue) (map[string]any, error) {
	var biz model.BusinessData
	ok, err := p.loadPayload(ctx, venue.ID, model.StageBusinessFetch, &biz)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, validationErr(model.StageGenerateContent, eris.New("business payload missing; run business_fetch first"))
	}
	var web model.WebContent
	hasWeb, err := p.loadPayload(ctx, venue.ID, model.StageWebFetch, &web)
	if err != nil {
		return nil, err
	}

	prompt, err := p.buildContentPrompt(ctx, venue, biz, hasWeb, &web)
	if err != nil {
		return nil, err
	}

	resp, err := p.anthropic.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     p.cfg.Anthropic.ContentModel,
		MaxTokens: p.cfg.Anthropic.MaxTokens,
		System: []anthropic.SystemBlock{{
			Text: "You write accurate, engaging directory entries for a dog-friendly restaurant guide. You respond with JSON only.",
		}},
		Messages: []anthropic.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return nil, externalErr(model.StageGenerateContent, eris.Wrap(err, "content call"))
	}
	resp.Usage.LogCost(p.cfg.Anthropic.ContentModel, "generate_content")

	raw := cleanJSON(resp.Text())

	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, malformedErr(model.StageGenerateContent, eris.Wrap(err, "parse content response"))
	}
	if err := compiledContentSchema.Validate(doc); err != nil {
		return nil, malformedErr(model.StageGenerateContent, eris.Wrap(err, "content schema"))
	}

	var content model.GeneratedContent
	if err := json.Unmarshal([]byte(raw), &content); err != nil {
		return nil, malformedErr(model.StageGenerateContent, eris.Wrap(err, "decode content"))
	}
	content.ReservationsURL = ensureTrackingParam(content.ReservationsURL, p.cfg.Content.TrackingSource)

	if err := p.savePayload(ctx, venue.ID, model.StageGenerateContent, content); err != nil {
		return nil, err
	}

	return map[string]any{
		"cuisines":      len(content.Cuisines),
		"categories":    len(content.Categories),
		"features":      len(content.Features),
		"faqs":          len(content.FAQs),
		"input_tokens":  resp.Usage.InputTokens,
		"output_tokens": resp.Usage.OutputTokens,
	}, nil
}

// buildContentPrompt assembles reference lists, raw payloads and the
// instruction block.
func (p *Pipeline) buildContentPrompt(ctx context.Context, venue *model.Venue, biz model.BusinessData, hasWeb bool, web *model.WebContent) (string, error) {
	var b strings.Builder

	fmt.Fprintf(&b, "Venue: %s\nCity: %s\nAddress: %s\n\n", venue.Name, venue.City, venue.Address)

	refLists := []struct {
		label string
		kind  model.ReferenceKind
		city  string
	}{
		{"Cuisine list", model.RefCuisine, ""},
		{"Category list", model.RefCategory, ""},
		{"Feature list", model.RefFeature, ""},
		{"Neighbourhood list", model.RefNeighbourhood, venue.City},
		{"Michelin award list", model.RefMichelinAward, ""},
	}
	for _, rl := range refLists {
		refs, err := p.store.ListReferences(ctx, rl.kind, rl.city)
		if err != nil {
			return "", eris.Wrapf(err, "pipeline: load %s", rl.label)
		}
		names := make([]string, 0, len(refs))
		for _, r := range refs {
			names = append(names, r.Name)
		}
		fmt.Fprintf(&b, "%s: %s\n", rl.label, strings.Join(names, ", "))
	}

	bizJSON, err := json.Marshal(biz)
	if err != nil {
		return "", eris.Wrap(err, "pipeline: marshal business payload")
	}
	fmt.Fprintf(&b, "\nBusiness data:\n%s\n", bizJSON)

	if hasWeb {
		b.WriteString("\nWeb sources:\n")
		for _, src := range web.Sources {
			if src.Markdown == "" {
				continue
			}
			fmt.Fprintf(&b, "--- %s (%s) ---\n%s\n", src.Source, src.URL, truncate(src.Markdown, 4000))
		}
		if web.Menu != nil && web.Menu.ItemCount() > 0 {
			menuJSON, _ := json.Marshal(web.Menu)
			fmt.Fprintf(&b, "\nParsed menu:\n%s\n", menuJSON)
		}
	}

	fmt.Fprintf(&b, "\n%s", fmt.Sprintf(contentInstructions, p.cfg.Content.TrackingSource))
	return b.String(), nil
}

// ensureTrackingParam guarantees the reservations link carries the
// directory's source parameter.
func ensureTrackingParam(rawURL, source string) string {
	if rawURL == "" || source == "" {
		return rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	if q.Get("source") == source {
		return rawURL
	}
	q.Set("source", source)
	u.RawQuery = q.Encode()
	return u.String()
}

// cleanJSON strips markdown fences and any prose around the outermost
// JSON object.
func cleanJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
