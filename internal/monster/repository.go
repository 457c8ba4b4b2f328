package monster

import (
	"context"
	"encoding/json"
	"fmt"

	"grimoire/api/internal/docstore"
)

const collection = "monsters"

// Repository is CRUD over monster documents in a user's collection.
type Repository struct {
	store docstore.Store
}

func NewRepository(store docstore.Store) *Repository {
	return &Repository{store: store}
}

// Get returns the monster or docstore.ErrNotFound.
func (r *Repository) Get(ctx context.Context, userID, monsterID string) (Monster, error) {
	data, err := r.store.Get(ctx, userID, collection, monsterID)
	if err != nil {
		return Monster{}, err
	}
	m, err := Decode(data)
	if err != nil {
		return Monster{}, fmt.Errorf("decode monster %s: %w", monsterID, err)
	}
	return m, nil
}

// Save upserts the monster document.
func (r *Repository) Save(ctx context.Context, userID, monsterID string, m Monster) error {
	return r.store.Set(ctx, userID, collection, monsterID, m)
}

// SaveRaw upserts a monster document without decoding it. Used by the legacy
// migration, which copies object-store records unmodified.
func (r *Repository) SaveRaw(ctx context.Context, userID, monsterID string, doc json.RawMessage) error {
	return r.store.Set(ctx, userID, collection, monsterID, doc)
}

// List returns every monster in the user's collection.
func (r *Repository) List(ctx context.Context, userID string) ([]WithID, error) {
	docs, err := r.store.List(ctx, userID, collection)
	if err != nil {
		return nil, err
	}
	items := make([]WithID, 0, len(docs))
	for _, doc := range docs {
		m, err := Decode(doc.Data)
		if err != nil {
			return nil, fmt.Errorf("decode monster %s: %w", doc.ID, err)
		}
		items = append(items, WithID{ID: doc.ID, Monster: m})
	}
	return items, nil
}

// Delete removes the monster document. Features it referenced survive if
// other monsters still reference them; orphan cleanup is the coordinator's
// concern, not the repository's.
func (r *Repository) Delete(ctx context.Context, userID, monsterID string) error {
	return r.store.Delete(ctx, userID, collection, monsterID)
}
