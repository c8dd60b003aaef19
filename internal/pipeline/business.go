package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/dogfriendly/venue-cli/internal/model"
	"github.com/dogfriendly/venue-cli/pkg/apify"
)

// businessFetch runs the Google Places actor for the venue, stores the raw
// item as the stage payload, and writes the seed fields onto the venue row.
func (p *Pipeline) businessFetch(ctx context.Context, venue *model.Venue) (map[string]any, error) {
	input := map[string]any{
		"searchStringsArray":        []string{venue.Name + ", " + venue.Address + ", " + venue.City},
		"maxCrawledPlacesPerSearch": 1,
		"language":                  "en",
	}
	if venue.PlaceID != "" {
		input["placeIds"] = []string{venue.PlaceID}
	}

	run, err := p.apify.RunActor(ctx, p.cfg.Apify.PlacesActor, input)
	if err != nil {
		return nil, externalErr(model.StageBusinessFetch, eris.Wrap(err, "places actor start"))
	}

	run, err = apify.PollRun(ctx, p.apify, run.ID,
		apify.WithPollTimeout(time.Duration(p.cfg.Apify.PollTimeoutSecs)*time.Second))
	if err != nil {
		return nil, externalErr(model.StageBusinessFetch, eris.Wrap(err, "places actor poll"))
	}

	var items []model.BusinessData
	if err := p.apify.GetDatasetItems(ctx, run.DefaultDatasetID, &items); err != nil {
		return nil, externalErr(model.StageBusinessFetch, eris.Wrap(err, "places dataset"))
	}
	if len(items) == 0 {
		return nil, malformedErr(model.StageBusinessFetch, eris.Errorf("places actor returned no results for %q", venue.Name))
	}
	biz := items[0]

	if err := p.savePayload(ctx, venue.ID, model.StageBusinessFetch, biz); err != nil {
		return nil, err
	}
	if err := p.store.UpdateVenueSeed(ctx, venue.ID, biz.SeedFields()); err != nil {
		return nil, eris.Wrap(err, "pipeline: apply seed fields")
	}

	return map[string]any{
		"place_id":          biz.PlaceID,
		"reviews_count":     biz.ReviewsCount,
		"total_score":       biz.TotalScore,
		"has_popular_times": len(biz.PopularTimes) > 0,
	}, nil
}
