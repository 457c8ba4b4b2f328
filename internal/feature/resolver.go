package feature

import (
	"context"
	"fmt"

	"grimoire/api/internal/docstore"
	"grimoire/api/internal/monster"
)

// Referrer is a monster that references a feature.
type Referrer struct {
	ID      string
	Monster monster.Monster
}

// Summary is the lightweight referrer view returned alongside a feature.
type Summary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Resolver answers "which monsters reference this feature" via the store's
// array-membership query, never by scanning the whole collection.
type Resolver struct {
	store docstore.Store
}

func NewResolver(store docstore.Store) *Resolver {
	return &Resolver{store: store}
}

// FindReferrers returns every monster of the user whose FeatureIds contains
// featureID, with the full decoded documents. A feature with no referrers
// yields an empty, non-nil slice.
func (r *Resolver) FindReferrers(ctx context.Context, userID, featureID string) ([]Referrer, error) {
	docs, err := r.store.QueryArrayContains(ctx, userID, "monsters", "FeatureIds", featureID)
	if err != nil {
		return nil, fmt.Errorf("query referrers of %s: %w", featureID, err)
	}
	referrers := make([]Referrer, 0, len(docs))
	for _, doc := range docs {
		m, err := monster.Decode(doc.Data)
		if err != nil {
			return nil, fmt.Errorf("decode monster %s: %w", doc.ID, err)
		}
		referrers = append(referrers, Referrer{ID: doc.ID, Monster: m})
	}
	return referrers, nil
}

// Summaries returns id and display name for each referrer, for usage listings
// where the full documents are not needed.
func (r *Resolver) Summaries(ctx context.Context, userID, featureID string) ([]Summary, error) {
	referrers, err := r.FindReferrers(ctx, userID, featureID)
	if err != nil {
		return nil, err
	}
	summaries := make([]Summary, 0, len(referrers))
	for _, ref := range referrers {
		summaries = append(summaries, Summary{ID: ref.ID, Name: ref.Monster.Name})
	}
	return summaries, nil
}
