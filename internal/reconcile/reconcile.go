package reconcile

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/dogfriendly/venue-cli/internal/model"
	"github.com/dogfriendly/venue-cli/internal/store"
)

// Reconciler resolves taxonomy labels against the reference tables.
type Reconciler struct {
	store store.Store
}

// New creates a Reconciler backed by the given store.
func New(st store.Store) *Reconciler {
	return &Reconciler{store: st}
}

// Reconcile maps the taxonomy labels in a generated content document to
// reference IDs. Cuisines, categories, features and the neighbourhood are
// created on a miss; Michelin awards are match-only and get dropped with a
// warning when no row exists. One bad label never fails the whole batch.
func (r *Reconciler) Reconcile(ctx context.Context, city string, content *model.GeneratedContent) (*model.MappedData, error) {
	mapped := &model.MappedData{
		NewlyCreated: make(map[string][]string),
		Dropped:      make(map[string][]string),
	}

	lists := []struct {
		kind   model.ReferenceKind
		labels []string
		dest   *[]string
	}{
		{model.RefCuisine, content.Cuisines, &mapped.CuisineIDs},
		{model.RefCategory, content.Categories, &mapped.CategoryIDs},
		{model.RefFeature, content.Features, &mapped.FeatureIDs},
	}
	for _, list := range lists {
		for _, label := range dedupeLabels(list.labels) {
			ref, created, err := r.matchOrCreate(ctx, list.kind, "", label)
			if err != nil {
				zap.L().Warn("reconcile: label skipped",
					zap.String("kind", string(list.kind)),
					zap.String("label", label),
					zap.Error(err))
				mapped.Dropped[string(list.kind)] = append(mapped.Dropped[string(list.kind)], label)
				continue
			}
			*list.dest = append(*list.dest, ref.ID)
			if created {
				mapped.NewlyCreated[string(list.kind)] = append(mapped.NewlyCreated[string(list.kind)], label)
			}
		}
	}

	if name := strings.TrimSpace(content.Neighbourhood); name != "" {
		ref, created, err := r.matchOrCreate(ctx, model.RefNeighbourhood, city, name)
		if err != nil {
			zap.L().Warn("reconcile: neighbourhood skipped",
				zap.String("city", city),
				zap.String("neighbourhood", name),
				zap.Error(err))
			mapped.Dropped[string(model.RefNeighbourhood)] = append(mapped.Dropped[string(model.RefNeighbourhood)], name)
		} else {
			mapped.NeighbourhoodID = ref.ID
			if created {
				mapped.NewlyCreated[string(model.RefNeighbourhood)] = append(mapped.NewlyCreated[string(model.RefNeighbourhood)], name)
			}
		}
	}

	if name := strings.TrimSpace(content.MichelinGuideAward); name != "" {
		ref, err := r.store.MatchReference(ctx, model.RefMichelinAward, "", name)
		if err != nil {
			zap.L().Warn("reconcile: michelin award lookup failed",
				zap.String("award", name),
				zap.Error(err))
			mapped.Dropped[string(model.RefMichelinAward)] = append(mapped.Dropped[string(model.RefMichelinAward)], name)
		} else if ref == nil {
			// Awards are a closed list. An unrecognised value is almost
			// always model noise, never a new award.
			zap.L().Warn("reconcile: unrecognised michelin award dropped", zap.String("award", name))
			mapped.Dropped[string(model.RefMichelinAward)] = append(mapped.Dropped[string(model.RefMichelinAward)], name)
		} else {
			mapped.MichelinAwardID = ref.ID
			mapped.MichelinStars = ref.Stars
		}
	}

	return mapped, nil
}

// matchOrCreate looks a label up case-insensitively and creates the row on
// a miss. Losing the insert race to a concurrent job is fine: the winner's
// row is re-read and used.
func (r *Reconciler) matchOrCreate(ctx context.Context, kind model.ReferenceKind, city, name string) (*model.Reference, bool, error) {
	ref, err := r.store.MatchReference(ctx, kind, city, name)
	if err != nil {
		return nil, false, err
	}
	if ref != nil {
		return ref, false, nil
	}

	created, err := r.store.CreateReference(ctx, model.Reference{
		Kind: kind,
		Name: name,
		Slug: Slugify(name),
		City: city,
	})
	if errors.Is(err, store.ErrConflict) {
		ref, err = r.store.MatchReference(ctx, kind, city, name)
		if err != nil {
			return nil, false, err
		}
		if ref == nil {
			return nil, false, eris.Errorf("reconcile: conflict without winner for %s %q", kind, name)
		}
		return ref, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return created, true, nil
}

// dedupeLabels drops empty and case-duplicate labels, keeping first
// occurrence order.
func dedupeLabels(labels []string) []string {
	seen := make(map[string]struct{}, len(labels))
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		key := strings.ToLower(l)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, l)
	}
	return out
}
