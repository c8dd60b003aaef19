package pipeline

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/dogfriendly/venue-cli/internal/model"
)

func unmarshalPayload(raw []byte, out any) error {
	return json.Unmarshal(raw, out)
}

// savePayload marshals and upserts a stage payload. Re-running a stage
// overwrites the previous payload for the same venue and stage.
func (p *Pipeline) savePayload(ctx context.Context, venueID string, stage model.Stage, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return eris.Wrapf(err, "pipeline: marshal %s payload", stage)
	}
	if err := p.store.UpsertStagePayload(ctx, venueID, stage, raw); err != nil {
		return eris.Wrapf(err, "pipeline: save %s payload", stage)
	}
	return nil
}
