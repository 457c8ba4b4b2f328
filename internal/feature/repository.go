package feature

import (
	"context"
	"fmt"
	"sort"

	"grimoire/api/internal/docstore"
)

const collection = "features"

// Repository is CRUD over feature documents in a user's collection.
type Repository struct {
	store docstore.Store
}

func NewRepository(store docstore.Store) *Repository {
	return &Repository{store: store}
}

// Get returns the feature or docstore.ErrNotFound.
func (r *Repository) Get(ctx context.Context, userID, featureID string) (Feature, error) {
	data, err := r.store.Get(ctx, userID, collection, featureID)
	if err != nil {
		return Feature{}, err
	}
	f, err := Decode(data)
	if err != nil {
		return Feature{}, fmt.Errorf("decode feature %s: %w", featureID, err)
	}
	return f, nil
}

// Save upserts the feature document under the given id.
func (r *Repository) Save(ctx context.Context, userID, featureID string, f Feature) error {
	return r.store.Set(ctx, userID, collection, featureID, f)
}

// List returns the user's features sorted by name then id, so equal names
// keep a stable order.
func (r *Repository) List(ctx context.Context, userID string) ([]WithID, error) {
	docs, err := r.store.List(ctx, userID, collection)
	if err != nil {
		return nil, err
	}
	items := make([]WithID, 0, len(docs))
	for _, doc := range docs {
		f, err := Decode(doc.Data)
		if err != nil {
			return nil, fmt.Errorf("decode feature %s: %w", doc.ID, err)
		}
		items = append(items, WithID{ID: doc.ID, Feature: f})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Name != items[j].Name {
			return items[i].Name < items[j].Name
		}
		return items[i].ID < items[j].ID
	})
	return items, nil
}

// Delete removes the feature document.
func (r *Repository) Delete(ctx context.Context, userID, featureID string) error {
	return r.store.Delete(ctx, userID, collection, featureID)
}
