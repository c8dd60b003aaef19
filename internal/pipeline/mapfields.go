package pipeline

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/dogfriendly/venue-cli/internal/model"
)

// mapFields reconciles the generated taxonomy labels against the
// reference tables and stores the resolved ID sets.
func (p *Pipeline) mapFields(ctx context.Context, venue *model.Venue) (map[string]any, error) {
	var content model.GeneratedContent
	ok, err := p.loadPayload(ctx, venue.ID, model.StageGenerateContent, &content)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, validationErr(model.StageMapFields, eris.New("content payload missing; run generate_content first"))
	}

	mapped, err := p.reconciler.Reconcile(ctx, venue.City, &content)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: reconcile labels")
	}

	if err := p.savePayload(ctx, venue.ID, model.StageMapFields, mapped); err != nil {
		return nil, err
	}

	meta := map[string]any{
		"cuisines":   len(mapped.CuisineIDs),
		"categories": len(mapped.CategoryIDs),
		"features":   len(mapped.FeatureIDs),
	}
	if len(mapped.NewlyCreated) > 0 {
		meta["newly_created"] = mapped.NewlyCreated
	}
	if len(mapped.Dropped) > 0 {
		meta["dropped"] = mapped.Dropped
	}
	return meta, nil
}
