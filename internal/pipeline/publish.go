package pipeline

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/dogfriendly/venue-cli/internal/model"
)

// publish writes the direct scalar fields onto the venue row and rebuilds
// the link tables from the mapped ID sets. Links are replaced, never
// merged, so re-publishing converges on the latest document.
func (p *Pipeline) publish(ctx context.Context, venue *model.Venue) (map[string]any, error) {
	var content model.GeneratedContent
	ok, err := p.loadPayload(ctx, venue.ID, model.StageGenerateContent, &content)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, validationErr(model.StagePublish, eris.New("content payload missing; run generate_content first"))
	}

	var mapped model.MappedData
	ok, err = p.loadPayload(ctx, venue.ID, model.StageMapFields, &mapped)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, validationErr(model.StagePublish, eris.New("mapped payload missing; run map_fields first"))
	}

	fields := content.DirectFields()
	fields.NeighbourhoodID = mapped.NeighbourhoodID
	fields.MichelinAwardID = mapped.MichelinAwardID
	fields.MichelinStars = mapped.MichelinStars

	if err := p.store.PublishVenue(ctx, venue.ID, fields); err != nil {
		return nil, eris.Wrap(err, "pipeline: publish venue")
	}

	counts, err := p.store.ReplaceVenueLinks(ctx, venue.ID, mapped)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: replace links")
	}

	meta := make(map[string]any, len(counts)+1)
	for table, n := range counts {
		meta[table] = n
	}
	meta["published"] = true
	return meta, nil
}
