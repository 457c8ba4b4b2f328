package feature

import (
	"context"
	"errors"
	"testing"

	"grimoire/api/internal/docstore"
	"grimoire/api/internal/monster"
)

func newCoordinator(store docstore.Store) (*Coordinator, *Repository, *monster.Repository) {
	features := NewRepository(store)
	monsters := monster.NewRepository(store)
	resolver := NewResolver(store)
	rebuilder := NewRebuilder(features)
	return NewCoordinator(features, monsters, resolver, rebuilder), features, monsters
}

func seedMonster(t *testing.T, monsters *monster.Repository, userID, id string, featureIDs ...string) {
	t.Helper()
	m := monster.Monster{Name: "Monster " + id, FeatureIds: featureIDs}
	if err := monsters.Save(context.Background(), userID, id, m); err != nil {
		t.Fatalf("seed monster %s: %v", id, err)
	}
}

func validFeature(name string) Feature {
	return Feature{Name: name, Content: "Some content.", Category: CategoryTraits}
}

func TestEditScopeAllUpdatesEveryReferrer(t *testing.T) {
	store := docstore.NewMemoryStore()
	coord, features, monsters := newCoordinator(store)
	ctx := context.Background()

	seedFeature(t, store, "u1", "f1", validFeature("Keen Smell"))
	seedMonster(t, monsters, "u1", "m1", "f1")
	seedMonster(t, monsters, "u1", "m2", "f1")
	seedMonster(t, monsters, "u1", "m3")

	res, err := coord.Edit(ctx, "u1", "f1", validFeature("Keen Hearing and Smell"), All())
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if res.FeatureID != "f1" {
		t.Fatalf("scope all must keep the feature id, got %s", res.FeatureID)
	}
	if len(res.Outcomes) != 2 {
		t.Fatalf("outcomes = %+v", res.Outcomes)
	}
	for _, o := range res.Outcomes {
		if o.Err != nil {
			t.Fatalf("outcome for %s: %v", o.MonsterID, o.Err)
		}
	}

	for _, id := range []string{"m1", "m2"} {
		m, err := monsters.Get(ctx, "u1", id)
		if err != nil {
			t.Fatalf("get %s: %v", id, err)
		}
		if len(m.Traits) != 1 || m.Traits[0].Name != "Keen Hearing and Smell" {
			t.Fatalf("%s traits = %+v", id, m.Traits)
		}
	}

	f, err := features.Get(ctx, "u1", "f1")
	if err != nil {
		t.Fatalf("get feature: %v", err)
	}
	if f.Name != "Keen Hearing and Smell" {
		t.Fatalf("feature not overwritten: %+v", f)
	}
}

func TestEditScopeThisForksForOneMonster(t *testing.T) {
	store := docstore.NewMemoryStore()
	coord, features, monsters := newCoordinator(store)
	ctx := context.Background()

	seedFeature(t, store, "u1", "f1", validFeature("Keen Smell"))
	seedMonster(t, monsters, "u1", "m1", "f1")
	seedMonster(t, monsters, "u1", "m2", "f1")

	res, err := coord.Edit(ctx, "u1", "f1", validFeature("Weak Smell"), This("m1"))
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if res.FeatureID == "f1" || res.FeatureID == "" {
		t.Fatalf("scope this must mint a new id, got %q", res.FeatureID)
	}

	m1, _ := monsters.Get(ctx, "u1", "m1")
	if len(m1.FeatureIds) != 1 || m1.FeatureIds[0] != res.FeatureID {
		t.Fatalf("m1 FeatureIds = %v", m1.FeatureIds)
	}
	if m1.Traits[0].Name != "Weak Smell" {
		t.Fatalf("m1 traits = %+v", m1.Traits)
	}

	// The other referrer and the original feature are untouched.
	m2, _ := monsters.Get(ctx, "u1", "m2")
	if len(m2.FeatureIds) != 1 || m2.FeatureIds[0] != "f1" {
		t.Fatalf("m2 FeatureIds = %v", m2.FeatureIds)
	}
	orig, err := features.Get(ctx, "u1", "f1")
	if err != nil {
		t.Fatalf("original feature gone: %v", err)
	}
	if orig.Name != "Keen Smell" {
		t.Fatalf("original feature modified: %+v", orig)
	}
}

func TestEditScopeThisMissingMonsterMintsNothing(t *testing.T) {
	store := docstore.NewMemoryStore()
	coord, features, _ := newCoordinator(store)
	ctx := context.Background()

	seedFeature(t, store, "u1", "f1", validFeature("Keen Smell"))

	_, err := coord.Edit(ctx, "u1", "f1", validFeature("Weak Smell"), This("nope"))
	if !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}

	// No orphaned fork was written.
	all, err := features.List(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("features = %+v", all)
	}
}

func TestEditScopeSelectedSharesOneFork(t *testing.T) {
	store := docstore.NewMemoryStore()
	coord, _, monsters := newCoordinator(store)
	ctx := context.Background()

	seedFeature(t, store, "u1", "f1", validFeature("Keen Smell"))
	seedMonster(t, monsters, "u1", "m1", "f1")
	seedMonster(t, monsters, "u1", "m2", "f1")
	seedMonster(t, monsters, "u1", "m3", "f1")

	res, err := coord.Edit(ctx, "u1", "f1", validFeature("Weak Smell"), Selected([]string{"m1", "m3"}))
	if err != nil {
		t.Fatalf("edit: %v", err)
	}

	for _, id := range []string{"m1", "m3"} {
		m, _ := monsters.Get(ctx, "u1", id)
		if len(m.FeatureIds) != 1 || m.FeatureIds[0] != res.FeatureID {
			t.Fatalf("%s FeatureIds = %v, want fork %s", id, m.FeatureIds, res.FeatureID)
		}
	}
	m2, _ := monsters.Get(ctx, "u1", "m2")
	if m2.FeatureIds[0] != "f1" {
		t.Fatalf("m2 FeatureIds = %v", m2.FeatureIds)
	}
}

// rejectingStore refuses writes to one monster document and delegates
// everything else.
type rejectingStore struct {
	docstore.Store
	rejectID string
}

var errWriteRejected = errors.New("write rejected")

func (s *rejectingStore) Set(ctx context.Context, userID, collection, docID string, doc any) error {
	if collection == "monsters" && docID == s.rejectID {
		return errWriteRejected
	}
	return s.Store.Set(ctx, userID, collection, docID, doc)
}

func TestEditScopeAllContinuesPastFailedMonster(t *testing.T) {
	store := &rejectingStore{Store: docstore.NewMemoryStore()}
	coord, features, monsters := newCoordinator(store)
	ctx := context.Background()

	seedFeature(t, store, "u1", "f1", validFeature("Keen Smell"))
	seedMonster(t, monsters, "u1", "m1", "f1")
	seedMonster(t, monsters, "u1", "m2", "f1")
	seedMonster(t, monsters, "u1", "m3", "f1")
	store.rejectID = "m2"

	res, err := coord.Edit(ctx, "u1", "f1", validFeature("Keen Hearing and Smell"), All())
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if len(res.Outcomes) != 3 {
		t.Fatalf("outcomes = %+v", res.Outcomes)
	}

	failed := 0
	for _, o := range res.Outcomes {
		if o.Err == nil {
			continue
		}
		failed++
		if o.MonsterID != "m2" {
			t.Fatalf("unexpected failure for %s: %v", o.MonsterID, o.Err)
		}
		if !errors.Is(o.Err, errWriteRejected) {
			t.Fatalf("m2 outcome = %v", o.Err)
		}
	}
	if failed != 1 {
		t.Fatalf("want exactly one failed outcome, got %d", failed)
	}

	// The healthy referrers landed despite m2's failure.
	for _, id := range []string{"m1", "m3"} {
		m, err := monsters.Get(ctx, "u1", id)
		if err != nil {
			t.Fatalf("get %s: %v", id, err)
		}
		if len(m.Traits) != 1 || m.Traits[0].Name != "Keen Hearing and Smell" {
			t.Fatalf("%s traits = %+v", id, m.Traits)
		}
	}
	f, err := features.Get(ctx, "u1", "f1")
	if err != nil {
		t.Fatalf("get feature: %v", err)
	}
	if f.Name != "Keen Hearing and Smell" {
		t.Fatalf("feature not overwritten: %+v", f)
	}
}

func TestDeleteScopeAllPartialFailureStillCollects(t *testing.T) {
	store := &rejectingStore{Store: docstore.NewMemoryStore()}
	coord, features, monsters := newCoordinator(store)
	ctx := context.Background()

	seedFeature(t, store, "u1", "f1", validFeature("Keen Smell"))
	seedMonster(t, monsters, "u1", "m1", "f1")
	seedMonster(t, monsters, "u1", "m2", "f1")
	store.rejectID = "m2"

	res, err := coord.Delete(ctx, "u1", "f1", All())
	if err != nil {
		t.Fatalf("delete: %v", err)
	}

	failed := 0
	for _, o := range res.Outcomes {
		if o.Err != nil {
			failed++
			if o.MonsterID != "m2" {
				t.Fatalf("unexpected failure for %s: %v", o.MonsterID, o.Err)
			}
		}
	}
	if failed != 1 {
		t.Fatalf("want exactly one failed outcome, got %d: %+v", failed, res.Outcomes)
	}

	// Every referrer was targeted, so the feature document is still collected
	// and m1's removal landed.
	if !res.FeatureDeleted {
		t.Fatal("feature should have been garbage collected")
	}
	if _, err := features.Get(ctx, "u1", "f1"); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("feature doc still present: %v", err)
	}
	m1, _ := monsters.Get(ctx, "u1", "m1")
	if len(m1.FeatureIds) != 0 {
		t.Fatalf("m1 FeatureIds = %v", m1.FeatureIds)
	}
}

func TestEditRejectsInvalidPayload(t *testing.T) {
	store := docstore.NewMemoryStore()
	coord, _, _ := newCoordinator(store)

	seedFeature(t, store, "u1", "f1", validFeature("Keen Smell"))

	_, err := coord.Edit(context.Background(), "u1", "f1", Feature{Category: "Bogus"}, All())
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("want ValidationError, got %v", err)
	}
}

func TestDeleteScopeAllRemovesAndCollects(t *testing.T) {
	store := docstore.NewMemoryStore()
	coord, features, monsters := newCoordinator(store)
	ctx := context.Background()

	seedFeature(t, store, "u1", "f1", validFeature("Keen Smell"))
	seedFeature(t, store, "u1", "f2", Feature{Name: "Bite", Content: "Melee attack.", Category: CategoryActions})
	seedMonster(t, monsters, "u1", "m1", "f1", "f2")
	seedMonster(t, monsters, "u1", "m2", "f1")

	res, err := coord.Delete(ctx, "u1", "f1", All())
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !res.FeatureDeleted {
		t.Fatal("feature should have been garbage collected")
	}
	if len(res.Outcomes) != 2 {
		t.Fatalf("outcomes = %+v", res.Outcomes)
	}

	if _, err := features.Get(ctx, "u1", "f1"); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("feature doc still present: %v", err)
	}
	m1, _ := monsters.Get(ctx, "u1", "m1")
	if len(m1.FeatureIds) != 1 || m1.FeatureIds[0] != "f2" {
		t.Fatalf("m1 FeatureIds = %v", m1.FeatureIds)
	}
	if len(m1.Actions) != 1 || m1.Actions[0].Name != "Bite" {
		t.Fatalf("m1 actions = %+v", m1.Actions)
	}
}

func TestDeleteScopeSelectedKeepsFeatureWhileReferenced(t *testing.T) {
	store := docstore.NewMemoryStore()
	coord, features, monsters := newCoordinator(store)
	ctx := context.Background()

	seedFeature(t, store, "u1", "f1", validFeature("Keen Smell"))
	seedMonster(t, monsters, "u1", "m1", "f1")
	seedMonster(t, monsters, "u1", "m2", "f1")

	// "ghost" is not a referrer and must be ignored, not failed.
	res, err := coord.Delete(ctx, "u1", "f1", Selected([]string{"m1", "ghost"}))
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if res.FeatureDeleted {
		t.Fatal("feature still referenced by m2, must not be collected")
	}
	if len(res.Outcomes) != 1 || res.Outcomes[0].MonsterID != "m1" {
		t.Fatalf("outcomes = %+v", res.Outcomes)
	}

	if _, err := features.Get(ctx, "u1", "f1"); err != nil {
		t.Fatalf("feature doc should remain: %v", err)
	}
	m1, _ := monsters.Get(ctx, "u1", "m1")
	if len(m1.FeatureIds) != 0 {
		t.Fatalf("m1 FeatureIds = %v", m1.FeatureIds)
	}
	m2, _ := monsters.Get(ctx, "u1", "m2")
	if len(m2.FeatureIds) != 1 {
		t.Fatalf("m2 FeatureIds = %v", m2.FeatureIds)
	}
}

func TestDeleteMissingFeature(t *testing.T) {
	store := docstore.NewMemoryStore()
	coord, _, _ := newCoordinator(store)

	_, err := coord.Delete(context.Background(), "u1", "nope", All())
	if !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestOrphanCheck(t *testing.T) {
	store := docstore.NewMemoryStore()
	coord, features, monsters := newCoordinator(store)
	ctx := context.Background()

	seedFeature(t, store, "u1", "f1", validFeature("Keen Smell"))
	seedMonster(t, monsters, "u1", "m1", "f1")

	deleted, err := coord.OrphanCheck(ctx, "u1", "f1")
	if err != nil || deleted {
		t.Fatalf("referenced feature collected: deleted=%v err=%v", deleted, err)
	}

	if err := monsters.Delete(ctx, "u1", "m1"); err != nil {
		t.Fatalf("delete monster: %v", err)
	}
	deleted, err = coord.OrphanCheck(ctx, "u1", "f1")
	if err != nil || !deleted {
		t.Fatalf("orphan not collected: deleted=%v err=%v", deleted, err)
	}
	if _, err := features.Get(ctx, "u1", "f1"); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("feature doc still present: %v", err)
	}
}
