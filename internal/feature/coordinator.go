package feature

import (
	"context"
	"fmt"
	"sync"

	"grimoire/api/internal/monster"
	"grimoire/api/internal/util"
)

// ScopeKind selects which referrers a feature mutation applies to.
type ScopeKind int

const (
	// ScopeAll mutates the shared feature in place and touches every referrer.
	ScopeAll ScopeKind = iota
	// ScopeThis forks the feature for a single monster.
	ScopeThis
	// ScopeSelected forks the feature once and points an explicit set of
	// monsters at the fork.
	ScopeSelected
)

// Scope is a mutation scope. Use the constructors.
type Scope struct {
	Kind       ScopeKind
	MonsterID  string
	MonsterIDs []string
}

func All() Scope                  { return Scope{Kind: ScopeAll} }
func This(monsterID string) Scope { return Scope{Kind: ScopeThis, MonsterID: monsterID} }
func Selected(ids []string) Scope { return Scope{Kind: ScopeSelected, MonsterIDs: ids} }

// TargetOutcome is the per-monster result of a fan-out mutation.
type TargetOutcome struct {
	MonsterID string
	Err       error
}

// EditResult reports which feature id the edit landed on (the original for
// scope all, a freshly minted fork otherwise) and what happened per monster.
type EditResult struct {
	FeatureID string
	Outcomes  []TargetOutcome
}

// DeleteResult reports per-monster outcomes and whether the feature document
// itself was garbage collected.
type DeleteResult struct {
	Outcomes       []TargetOutcome
	FeatureDeleted bool
}

// Coordinator sequences scoped feature mutations across the feature
// repository, the monster repository, the resolver and the rebuilder.
//
// Fan-out over referrers is best effort. Each target monster is rebuilt and
// persisted independently and a failure on one never rolls back another; the
// caller gets every outcome and decides how to report partial failure.
type Coordinator struct {
	features  *Repository
	monsters  *monster.Repository
	resolver  *Resolver
	rebuilder *Rebuilder
}

func NewCoordinator(features *Repository, monsters *monster.Repository, resolver *Resolver, rebuilder *Rebuilder) *Coordinator {
	return &Coordinator{features: features, monsters: monsters, resolver: resolver, rebuilder: rebuilder}
}

// Edit applies updated to the feature under the given scope.
func (c *Coordinator) Edit(ctx context.Context, userID, featureID string, updated Feature, scope Scope) (EditResult, error) {
	if err := Validate(updated); err != nil {
		return EditResult{}, err
	}
	// The original must exist regardless of scope.
	if _, err := c.features.Get(ctx, userID, featureID); err != nil {
		return EditResult{}, err
	}

	switch scope.Kind {
	case ScopeAll:
		return c.editAll(ctx, userID, featureID, updated)
	case ScopeThis:
		return c.editFork(ctx, userID, featureID, updated, []string{scope.MonsterID})
	case ScopeSelected:
		return c.editFork(ctx, userID, featureID, updated, scope.MonsterIDs)
	default:
		return EditResult{}, fmt.Errorf("unknown scope kind %d", scope.Kind)
	}
}

// editAll overwrites the shared feature in place and rebuilds every referrer.
func (c *Coordinator) editAll(ctx context.Context, userID, featureID string, updated Feature) (EditResult, error) {
	if err := c.features.Save(ctx, userID, featureID, updated); err != nil {
		return EditResult{}, fmt.Errorf("save feature %s: %w", featureID, err)
	}
	referrers, err := c.resolver.FindReferrers(ctx, userID, featureID)
	if err != nil {
		return EditResult{}, err
	}
	targets := make([]string, len(referrers))
	for i, ref := range referrers {
		targets[i] = ref.ID
	}
	outcomes := c.fanOut(ctx, userID, targets, func(m monster.Monster) monster.Monster {
		return m
	})
	return EditResult{FeatureID: featureID, Outcomes: outcomes}, nil
}

// editFork checks every target monster exists, then mints one fork id, saves
// the updated content under it and swaps the fork id into each target.
// Existence is verified before minting so a bad monster id never leaves an
// orphaned fork behind.
func (c *Coordinator) editFork(ctx context.Context, userID, featureID string, updated Feature, targets []string) (EditResult, error) {
	for _, id := range targets {
		if _, err := c.monsters.Get(ctx, userID, id); err != nil {
			return EditResult{}, err
		}
	}

	forkID := util.NewDocID()
	if err := c.features.Save(ctx, userID, forkID, updated); err != nil {
		return EditResult{}, fmt.Errorf("save forked feature %s: %w", forkID, err)
	}

	outcomes := c.fanOut(ctx, userID, targets, func(m monster.Monster) monster.Monster {
		m.FeatureIds = swapID(m.FeatureIds, featureID, forkID)
		return m
	})
	return EditResult{FeatureID: forkID, Outcomes: outcomes}, nil
}

// Delete removes the feature from the scoped referrers and garbage collects
// the feature document once nothing references it anymore.
func (c *Coordinator) Delete(ctx context.Context, userID, featureID string, scope Scope) (DeleteResult, error) {
	if _, err := c.features.Get(ctx, userID, featureID); err != nil {
		return DeleteResult{}, err
	}
	referrers, err := c.resolver.FindReferrers(ctx, userID, featureID)
	if err != nil {
		return DeleteResult{}, err
	}
	affected := make([]string, len(referrers))
	for i, ref := range referrers {
		affected[i] = ref.ID
	}

	var targets []string
	switch scope.Kind {
	case ScopeAll:
		targets = affected
	case ScopeThis:
		targets = intersect(affected, []string{scope.MonsterID})
	case ScopeSelected:
		targets = intersect(affected, scope.MonsterIDs)
	default:
		return DeleteResult{}, fmt.Errorf("unknown scope kind %d", scope.Kind)
	}

	outcomes := c.fanOut(ctx, userID, targets, func(m monster.Monster) monster.Monster {
		m.FeatureIds = removeID(m.FeatureIds, featureID)
		return m
	})

	result := DeleteResult{Outcomes: outcomes}
	if len(affected) == len(targets) {
		// No referrer outside the scope remains; drop the document.
		if err := c.features.Delete(ctx, userID, featureID); err != nil {
			return result, fmt.Errorf("delete feature %s: %w", featureID, err)
		}
		result.FeatureDeleted = true
	}
	return result, nil
}

// fanOut fetches, mutates, rebuilds and persists each target monster
// concurrently, recording one outcome per target in input order.
func (c *Coordinator) fanOut(ctx context.Context, userID string, targets []string, mutate func(monster.Monster) monster.Monster) []TargetOutcome {
	outcomes := make([]TargetOutcome, len(targets))
	var wg sync.WaitGroup
	for i, id := range targets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcomes[i] = TargetOutcome{MonsterID: id, Err: c.applyToMonster(ctx, userID, id, mutate)}
		}()
	}
	wg.Wait()
	return outcomes
}

func (c *Coordinator) applyToMonster(ctx context.Context, userID, monsterID string, mutate func(monster.Monster) monster.Monster) error {
	m, err := c.monsters.Get(ctx, userID, monsterID)
	if err != nil {
		return err
	}
	m = mutate(m)
	rebuilt, err := c.rebuilder.Rebuild(ctx, userID, m)
	if err != nil {
		return err
	}
	if err := c.monsters.Save(ctx, userID, monsterID, rebuilt); err != nil {
		return fmt.Errorf("save monster %s: %w", monsterID, err)
	}
	return nil
}

// OrphanCheck deletes the feature if nothing references it. Called after a
// monster delete removes the last referrer of embedded features.
func (c *Coordinator) OrphanCheck(ctx context.Context, userID, featureID string) (bool, error) {
	referrers, err := c.resolver.FindReferrers(ctx, userID, featureID)
	if err != nil {
		return false, err
	}
	if len(referrers) > 0 {
		return false, nil
	}
	if err := c.features.Delete(ctx, userID, featureID); err != nil {
		return false, err
	}
	return true, nil
}

func swapID(ids []string, from, to string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		if id == from {
			out[i] = to
		} else {
			out[i] = id
		}
	}
	return out
}

func removeID(ids []string, drop string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != drop {
			out = append(out, id)
		}
	}
	return out
}

func intersect(affected, requested []string) []string {
	want := make(map[string]bool, len(requested))
	for _, id := range requested {
		want[id] = true
	}
	out := make([]string, 0, len(requested))
	for _, id := range affected {
		if want[id] {
			out = append(out, id)
		}
	}
	return out
}
