package feature

import (
	"context"
	"testing"

	"grimoire/api/internal/docstore"
	"grimoire/api/internal/monster"
)

func seedFeature(t *testing.T, store docstore.Store, userID, id string, f Feature) {
	t.Helper()
	if err := store.Set(context.Background(), userID, "features", id, f); err != nil {
		t.Fatalf("seed feature %s: %v", id, err)
	}
}

func TestRebuildProjectsByCategoryInOrder(t *testing.T) {
	store := docstore.NewMemoryStore()
	repo := NewRepository(store)
	rb := NewRebuilder(repo)

	seedFeature(t, store, "u1", "f1", Feature{Name: "Amphibious", Content: "Can breathe air and water.", Category: CategoryTraits})
	seedFeature(t, store, "u1", "f2", Feature{Name: "Bite", Content: "Melee attack.", Category: CategoryActions})
	seedFeature(t, store, "u1", "f3", Feature{Name: "Multiattack", Content: "Two attacks.", Category: CategoryActions})
	seedFeature(t, store, "u1", "f4", Feature{Name: "Parry", Content: "Adds 2 to AC.", Usage: "Reaction", Category: CategoryReactions})

	m := monster.Monster{FeatureIds: []string{"f3", "f1", "f2", "f4"}}
	rebuilt, err := rb.Rebuild(context.Background(), "u1", m)
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	if len(rebuilt.Traits) != 1 || rebuilt.Traits[0].Name != "Amphibious" {
		t.Fatalf("traits = %+v", rebuilt.Traits)
	}
	// FeatureIds lists f3 before f2, so Multiattack must come first.
	if len(rebuilt.Actions) != 2 || rebuilt.Actions[0].Name != "Multiattack" || rebuilt.Actions[1].Name != "Bite" {
		t.Fatalf("actions = %+v", rebuilt.Actions)
	}
	if len(rebuilt.Reactions) != 1 || rebuilt.Reactions[0].Usage != "Reaction" {
		t.Fatalf("reactions = %+v", rebuilt.Reactions)
	}
	if rebuilt.LegendaryActions == nil || len(rebuilt.LegendaryActions) != 0 {
		t.Fatalf("legendary actions should be empty non-nil, got %+v", rebuilt.LegendaryActions)
	}
}

func TestRebuildSkipsDanglingIDs(t *testing.T) {
	store := docstore.NewMemoryStore()
	repo := NewRepository(store)
	rb := NewRebuilder(repo)

	seedFeature(t, store, "u1", "f1", Feature{Name: "Pack Tactics", Content: "Advantage near allies.", Category: CategoryTraits})

	m := monster.Monster{FeatureIds: []string{"gone", "f1", "also-gone"}}
	rebuilt, err := rb.Rebuild(context.Background(), "u1", m)
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if len(rebuilt.Traits) != 1 || rebuilt.Traits[0].Name != "Pack Tactics" {
		t.Fatalf("traits = %+v", rebuilt.Traits)
	}
	// Dangling ids stay in FeatureIds; the rebuilder only shapes projections.
	if len(rebuilt.FeatureIds) != 3 {
		t.Fatalf("FeatureIds = %v", rebuilt.FeatureIds)
	}
}

func TestRebuildEmptyFeatureIds(t *testing.T) {
	store := docstore.NewMemoryStore()
	rb := NewRebuilder(NewRepository(store))

	m := monster.Monster{
		FeatureIds: []string{},
		Traits:     []monster.FeatureEntry{{Name: "Stale", Content: "left over"}},
	}
	rebuilt, err := rb.Rebuild(context.Background(), "u1", m)
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if len(rebuilt.Traits) != 0 {
		t.Fatalf("stale traits survived: %+v", rebuilt.Traits)
	}
}
