package feature

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"grimoire/api/internal/docstore"
	"grimoire/api/internal/monster"
)

// Rebuilder recomputes a monster's four embedded category arrays from its
// FeatureIds list.
type Rebuilder struct {
	features *Repository
}

func NewRebuilder(features *Repository) *Rebuilder {
	return &Rebuilder{features: features}
}

// Rebuild replaces the monster's Traits, Actions, Reactions and
// LegendaryActions with a fresh projection of its FeatureIds. Feature ids that
// no longer resolve are skipped silently. Fetches run concurrently but the
// projection preserves FeatureIds order within each category.
func (rb *Rebuilder) Rebuild(ctx context.Context, userID string, m monster.Monster) (monster.Monster, error) {
	resolved := make([]*Feature, len(m.FeatureIds))

	g, ctx := errgroup.WithContext(ctx)
	for i, id := range m.FeatureIds {
		g.Go(func() error {
			f, err := rb.features.Get(ctx, userID, id)
			if errors.Is(err, docstore.ErrNotFound) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("fetch feature %s: %w", id, err)
			}
			resolved[i] = &f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return monster.Monster{}, err
	}

	// Empty non-nil arrays, so categories with no features serialize as [].
	m.Traits = []monster.FeatureEntry{}
	m.Actions = []monster.FeatureEntry{}
	m.Reactions = []monster.FeatureEntry{}
	m.LegendaryActions = []monster.FeatureEntry{}

	for _, f := range resolved {
		if f == nil {
			continue
		}
		entry := monster.FeatureEntry{Name: f.Name, Content: f.Content, Usage: f.Usage}
		switch f.Category {
		case CategoryTraits:
			m.Traits = append(m.Traits, entry)
		case CategoryActions:
			m.Actions = append(m.Actions, entry)
		case CategoryReactions:
			m.Reactions = append(m.Reactions, entry)
		case CategoryLegendaryActions:
			m.LegendaryActions = append(m.LegendaryActions, entry)
		}
	}
	return m, nil
}
