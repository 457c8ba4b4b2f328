// Package migrate runs the per-user legacy migrations at sign-in: object-store
// monsters into the document store, then embedded feature arrays into the
// features collection.
package migrate

import (
	"context"
	"fmt"
	"log"

	"golang.org/x/sync/singleflight"

	"grimoire/api/internal/feature"
	"grimoire/api/internal/legacy"
	"grimoire/api/internal/monster"
	"grimoire/api/internal/util"
)

// LegacyStore lists a user's monsters in the old object-store layout.
type LegacyStore interface {
	ListMonsters(ctx context.Context, email string) ([]legacy.Record, error)
}

// FlagStore reads and claims the one-shot feature-migration flag.
type FlagStore interface {
	FeaturesMigrated(ctx context.Context, userID string) (bool, error)
	// MarkFeaturesMigrated returns false when the flag was already set.
	MarkFeaturesMigrated(ctx context.Context, userID string) (bool, error)
}

// Runner executes both migration phases for a user. Concurrent runs for the
// same user collapse into one via singleflight; the flag's conditional update
// closes the remaining cross-process race.
type Runner struct {
	flags    FlagStore
	legacy   LegacyStore
	monsters *monster.Repository
	features *feature.Repository
	rebuild  *feature.Rebuilder
	logger   *log.Logger

	group singleflight.Group
}

// NewRunner builds a runner. legacyStore may be nil when no object store is
// configured, which skips phase one.
func NewRunner(flags FlagStore, legacyStore LegacyStore, monsters *monster.Repository, features *feature.Repository, rebuild *feature.Rebuilder, logger *log.Logger) *Runner {
	return &Runner{flags: flags, legacy: legacyStore, monsters: monsters, features: features, rebuild: rebuild, logger: logger}
}

// Run migrates the user if needed. Safe to call on every sign-in; completed
// phases are skipped cheaply.
func (r *Runner) Run(ctx context.Context, userID, email string) error {
	// Collapsed callers share the first caller's run. Detach it from that
	// caller's cancellation so an aborted sign-in request cannot fail the
	// migration for everyone who piled onto it.
	runCtx := context.WithoutCancel(ctx)
	_, err, _ := r.group.Do(userID, func() (any, error) {
		if err := r.importLegacyMonsters(runCtx, userID, email); err != nil {
			return nil, err
		}
		return nil, r.extractFeatures(runCtx, userID)
	})
	return err
}

// importLegacyMonsters copies object-store records into the document store,
// unmodified, but only for users who have no monster documents yet. Users who
// already created documents are past this phase.
func (r *Runner) importLegacyMonsters(ctx context.Context, userID, email string) error {
	if r.legacy == nil {
		return nil
	}
	existing, err := r.monsters.List(ctx, userID)
	if err != nil {
		return fmt.Errorf("list monsters: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}
	records, err := r.legacy.ListMonsters(ctx, email)
	if err != nil {
		return err
	}
	for _, rec := range records {
		if err := r.monsters.SaveRaw(ctx, userID, rec.ID, rec.Data); err != nil {
			return fmt.Errorf("import legacy monster %s: %w", rec.ID, err)
		}
	}
	if len(records) > 0 {
		r.logger.Printf("migrate: imported %d legacy monsters for user %s", len(records), userID)
	}
	return nil
}

// extractFeatures normalizes embedded category arrays into feature documents.
// The per-user flag gates the whole phase; individual monsters that already
// carry FeatureIds, even an empty list, are left alone so a rerun after a
// partial failure never duplicates features.
func (r *Runner) extractFeatures(ctx context.Context, userID string) error {
	done, err := r.flags.FeaturesMigrated(ctx, userID)
	if err != nil {
		return err
	}
	if done {
		return nil
	}

	items, err := r.monsters.List(ctx, userID)
	if err != nil {
		return fmt.Errorf("list monsters: %w", err)
	}

	migrated := 0
	for _, item := range items {
		if item.Normalized() {
			continue
		}
		if err := r.extractMonster(ctx, userID, item.ID, item.Monster); err != nil {
			return fmt.Errorf("extract features of monster %s: %w", item.ID, err)
		}
		migrated++
	}

	claimed, err := r.flags.MarkFeaturesMigrated(ctx, userID)
	if err != nil {
		return err
	}
	if claimed && migrated > 0 {
		r.logger.Printf("migrate: extracted features from %d monsters for user %s", migrated, userID)
	}
	return nil
}

// extractMonster mints one feature document per embedded entry, category by
// category in stat-block order, then rewrites the monster with the new
// FeatureIds and freshly projected arrays.
func (r *Runner) extractMonster(ctx context.Context, userID, monsterID string, m monster.Monster) error {
	ids := make([]string, 0, len(m.Traits)+len(m.Actions)+len(m.Reactions)+len(m.LegendaryActions))

	mint := func(entries []monster.FeatureEntry, category feature.Category) error {
		for _, entry := range entries {
			id := util.NewDocID()
			f := feature.Feature{Name: entry.Name, Content: entry.Content, Usage: entry.Usage, Category: category}
			if err := r.features.Save(ctx, userID, id, f); err != nil {
				return fmt.Errorf("save feature %s: %w", id, err)
			}
			ids = append(ids, id)
		}
		return nil
	}

	if err := mint(m.Traits, feature.CategoryTraits); err != nil {
		return err
	}
	if err := mint(m.Actions, feature.CategoryActions); err != nil {
		return err
	}
	if err := mint(m.Reactions, feature.CategoryReactions); err != nil {
		return err
	}
	if err := mint(m.LegendaryActions, feature.CategoryLegendaryActions); err != nil {
		return err
	}

	m.FeatureIds = ids
	rebuilt, err := r.rebuild.Rebuild(ctx, userID, m)
	if err != nil {
		return err
	}
	return r.monsters.Save(ctx, userID, monsterID, rebuilt)
}
