package app

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"grimoire/api/internal/auth"
	"grimoire/api/internal/authpw"
	"grimoire/api/internal/combat"
	"grimoire/api/internal/config"
	"grimoire/api/internal/docstore"
	"grimoire/api/internal/export"
	"grimoire/api/internal/feature"
	"grimoire/api/internal/monster"
	"grimoire/api/internal/search"
	"grimoire/api/internal/store"
	"grimoire/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	Email        string
	JTI          string
	ExpiresAt    time.Time
}

type userStore interface {
	CreateUser(context.Context, store.User) error
	GetUserByEmail(context.Context, string) (store.User, error)
	GetUserByID(context.Context, string) (store.User, error)
	RevokeAccessToken(context.Context, string, time.Time) error
	IsAccessTokenRevoked(context.Context, string) (bool, error)
	Ping(ctx context.Context) error
}

type sessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (string, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

// migrator runs the per-user legacy migrations at sign-in.
type migrator interface {
	Run(ctx context.Context, userID, email string) error
}

type Service struct {
	cfg      config.Config
	users    userStore
	sessions sessionStore
	pw       *authpw.Service
	migrate  migrator

	monsters    *monster.Repository
	features    *feature.Repository
	resolver    *feature.Resolver
	rebuilder   *feature.Rebuilder
	coordinator *feature.Coordinator
	combat      *combat.Service
	search      *search.Service
	export      *export.Service
}

// New wires the domain services over the given stores. searchSvc may be nil
// when search is not configured; migrate may be nil when no legacy data
// exists.
func New(cfg config.Config, users userStore, sessions sessionStore, docs docstore.Store, migrate migrator, searchSvc *search.Service) *Service {
	monsters := monster.NewRepository(docs)
	features := feature.NewRepository(docs)
	resolver := feature.NewResolver(docs)
	rebuilder := feature.NewRebuilder(features)

	return &Service{
		cfg:         cfg,
		users:       users,
		sessions:    sessions,
		pw:          authpw.NewService(users),
		migrate:     migrate,
		monsters:    monsters,
		features:    features,
		resolver:    resolver,
		rebuilder:   rebuilder,
		coordinator: feature.NewCoordinator(features, monsters, resolver, rebuilder),
		combat:      combat.NewService(docs),
		search:      searchSvc,
		export:      export.NewService(monsters),
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.users.Ping(ctx)
}

// --- Sessions ---

func (s *Service) SignUp(ctx context.Context, email, displayName, password string) (Session, error) {
	user, err := s.pw.SignUp(ctx, email, displayName, password)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

// SignIn verifies credentials, runs pending per-user migrations, then issues
// a session. A migration failure is logged and retried on the next sign-in
// rather than blocking access.
func (s *Service) SignIn(ctx context.Context, email, password string) (Session, error) {
	user, err := s.pw.SignIn(ctx, email, password)
	if err != nil {
		return Session{}, err
	}
	if s.migrate != nil {
		if err := s.migrate.Run(ctx, user.ID, user.Email); err != nil {
			log.Printf("app: migration for user %s failed: %v", user.ID, err)
		}
	}
	return s.issueSession(ctx, user)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	userID, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), user.ID, user.DisplayName, jti, s.cfg.AccessTTL)
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.DisplayName,
		Email:        user.Email,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.users.IsAccessTokenRevoked(ctx, claims.ID)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	user, err := s.users.GetUserByID(ctx, claims.Subject)
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		Email:     user.Email,
		JTI:       claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (s *Service) Logout(ctx context.Context, session Session, refreshToken string) error {
	if session.JTI != "" {
		_ = s.users.RevokeAccessToken(ctx, session.JTI, session.ExpiresAt)
	}
	if refreshToken != "" {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

// --- Monsters ---

func (s *Service) ListMonsters(ctx context.Context, userID string) ([]monster.WithID, error) {
	return s.monsters.List(ctx, userID)
}

func (s *Service) GetMonster(ctx context.Context, userID, monsterID string) (monster.Monster, error) {
	return s.monsters.Get(ctx, userID, monsterID)
}

// CreateMonster validates and stores a new monster. Monsters created through
// the API are always normalized; a missing FeatureIds becomes an empty list
// and the embedded arrays are recomputed from it.
func (s *Service) CreateMonster(ctx context.Context, userID string, m monster.Monster) (map[string]any, error) {
	if err := monster.Validate(m); err != nil {
		return nil, err
	}
	if m.FeatureIds == nil {
		m.FeatureIds = []string{}
	}
	rebuilt, err := s.rebuilder.Rebuild(ctx, userID, m)
	if err != nil {
		return nil, err
	}
	monsterID := util.NewDocID()
	if err := s.monsters.Save(ctx, userID, monsterID, rebuilt); err != nil {
		return nil, err
	}
	s.indexMonster(userID, monsterID, rebuilt)
	return map[string]any{"success": true, "id": monsterID}, nil
}

func (s *Service) UpdateMonster(ctx context.Context, userID, monsterID string, m monster.Monster) (map[string]any, error) {
	if _, err := s.monsters.Get(ctx, userID, monsterID); err != nil {
		return nil, err
	}
	if err := monster.Validate(m); err != nil {
		return nil, err
	}
	if m.FeatureIds == nil {
		m.FeatureIds = []string{}
	}
	rebuilt, err := s.rebuilder.Rebuild(ctx, userID, m)
	if err != nil {
		return nil, err
	}
	if err := s.monsters.Save(ctx, userID, monsterID, rebuilt); err != nil {
		return nil, err
	}
	s.indexMonster(userID, monsterID, rebuilt)
	return map[string]any{"success": true, "id": monsterID}, nil
}

// DeleteMonster removes the monster and garbage collects any of its features
// that no other monster references.
func (s *Service) DeleteMonster(ctx context.Context, userID, monsterID string) (map[string]any, error) {
	m, err := s.monsters.Get(ctx, userID, monsterID)
	if err != nil {
		return nil, err
	}
	if err := s.monsters.Delete(ctx, userID, monsterID); err != nil {
		return nil, err
	}

	deletedFeatures := make([]string, 0)
	for _, featureID := range m.FeatureIds {
		deleted, err := s.coordinator.OrphanCheck(ctx, userID, featureID)
		if err != nil {
			log.Printf("app: orphan check for feature %s: %v", featureID, err)
			continue
		}
		if deleted {
			deletedFeatures = append(deletedFeatures, featureID)
			if s.search != nil {
				s.search.DeleteFeature(featureID)
			}
		}
	}
	if s.search != nil {
		s.search.DeleteMonster(monsterID)
	}
	return map[string]any{"success": true, "deletedFeatures": deletedFeatures}, nil
}

// --- Features ---

func (s *Service) ListFeatures(ctx context.Context, userID string) ([]feature.WithID, error) {
	return s.features.List(ctx, userID)
}

// GetFeature returns the feature together with the monsters that use it.
func (s *Service) GetFeature(ctx context.Context, userID, featureID string) (map[string]any, error) {
	f, err := s.features.Get(ctx, userID, featureID)
	if err != nil {
		return nil, err
	}
	usedBy, err := s.resolver.Summaries(ctx, userID, featureID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"id": featureID, "feature": f, "usedBy": usedBy, "count": len(usedBy)}, nil
}

func (s *Service) CreateFeature(ctx context.Context, userID string, f feature.Feature) (map[string]any, error) {
	if err := feature.Validate(f); err != nil {
		return nil, err
	}
	featureID := util.NewDocID()
	if err := s.features.Save(ctx, userID, featureID, f); err != nil {
		return nil, err
	}
	s.indexFeature(userID, featureID, f)
	return map[string]any{"success": true, "id": featureID}, nil
}

// EditFeature applies a scoped edit and reports the landed feature id, the
// updated monsters and any per-monster failures.
func (s *Service) EditFeature(ctx context.Context, userID, featureID string, f feature.Feature, scope feature.Scope) (map[string]any, error) {
	result, err := s.coordinator.Edit(ctx, userID, featureID, f, scope)
	if err != nil {
		return nil, err
	}

	s.indexFeature(userID, result.FeatureID, f)
	updated, failures := splitOutcomes(result.Outcomes)
	for _, id := range updated {
		s.reindexMonster(ctx, userID, id)
	}

	payload := map[string]any{
		"success":         len(failures) == 0,
		"featureId":       result.FeatureID,
		"updatedMonsters": updated,
	}
	if len(failures) > 0 {
		payload["errors"] = failures
	}
	return payload, nil
}

// DeleteFeature applies a scoped delete and reports whether the feature
// document itself was removed.
func (s *Service) DeleteFeature(ctx context.Context, userID, featureID string, scope feature.Scope) (map[string]any, error) {
	result, err := s.coordinator.Delete(ctx, userID, featureID, scope)
	if err != nil {
		return nil, err
	}

	if result.FeatureDeleted && s.search != nil {
		s.search.DeleteFeature(featureID)
	}
	updated, failures := splitOutcomes(result.Outcomes)
	for _, id := range updated {
		s.reindexMonster(ctx, userID, id)
	}

	payload := map[string]any{
		"success":         len(failures) == 0,
		"updatedMonsters": updated,
		"featureDeleted":  result.FeatureDeleted,
	}
	if len(failures) > 0 {
		payload["errors"] = failures
	}
	return payload, nil
}

func (s *Service) FeatureUsage(ctx context.Context, userID, featureID string) (map[string]any, error) {
	if _, err := s.features.Get(ctx, userID, featureID); err != nil {
		return nil, err
	}
	usedBy, err := s.resolver.Summaries(ctx, userID, featureID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"usedBy": usedBy, "count": len(usedBy)}, nil
}

func splitOutcomes(outcomes []feature.TargetOutcome) (updated []string, failures []map[string]any) {
	updated = make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Err != nil {
			failures = append(failures, map[string]any{"monsterId": o.MonsterID, "error": o.Err.Error()})
			continue
		}
		updated = append(updated, o.MonsterID)
	}
	return updated, failures
}

// --- Combat ---

func (s *Service) SaveCombat(ctx context.Context, userID, sessionID string, monsters []byte, version int) (map[string]any, error) {
	newVersion, err := s.combat.Save(ctx, userID, sessionID, monsters, version)
	if err != nil {
		var conflict *combat.ConflictError
		if errors.As(err, &conflict) {
			return nil, domainError(http.StatusConflict, "CONFLICT", "Newer version exists. Reload to sync.", map[string]any{
				"conflict":       true,
				"currentVersion": conflict.Current.Version,
				"session":        conflict.Current,
			})
		}
		return nil, err
	}
	return map[string]any{"success": true, "version": newVersion}, nil
}

func (s *Service) GetCombat(ctx context.Context, userID, sessionID string) (map[string]any, error) {
	session, err := s.combat.Get(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"session": session}, nil
}

func (s *Service) DeleteCombat(ctx context.Context, userID, sessionID string) error {
	return s.combat.Delete(ctx, userID, sessionID)
}

// --- Search ---

func (s *Service) Search(ctx context.Context, userID, text, filterType string, limit, offset int) (search.Response, error) {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: text}, nil
	}
	return s.search.Search(search.Query{
		UserID:     userID,
		Text:       text,
		FilterType: search.ResultType(filterType),
		Limit:      limit,
		Offset:     offset,
	}), nil
}

// --- Export ---

func (s *Service) ExportMonster(ctx context.Context, userID, monsterID string, format export.Format) (*export.Result, error) {
	return s.export.Export(ctx, userID, export.Request{MonsterID: monsterID, Format: format})
}

// --- Search indexing helpers ---

func (s *Service) indexMonster(userID, monsterID string, m monster.Monster) {
	if s.search == nil {
		return
	}
	s.search.IndexMonster(search.MonsterRecord{
		ID:          monsterID,
		UserID:      userID,
		Name:        m.Name,
		Type:        m.Type,
		Challenge:   m.Challenge,
		Description: m.Description,
	})
}

func (s *Service) indexFeature(userID, featureID string, f feature.Feature) {
	if s.search == nil {
		return
	}
	s.search.IndexFeature(search.FeatureRecord{
		ID:       featureID,
		UserID:   userID,
		Name:     f.Name,
		Content:  f.Content,
		Category: string(f.Category),
	})
}

func (s *Service) reindexMonster(ctx context.Context, userID, monsterID string) {
	if s.search == nil {
		return
	}
	m, err := s.monsters.Get(ctx, userID, monsterID)
	if err != nil {
		return
	}
	s.indexMonster(userID, monsterID, m)
}
