// Package combat stores per-user combat sessions with versioned, last-writer
// conflict detection.
package combat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"grimoire/api/internal/docstore"
)

const collection = "combatSessions"

// Session is a saved combat encounter. Monsters is an opaque client payload;
// the server only tracks the version counter and the save timestamp.
type Session struct {
	SessionID    string          `json:"sessionId"`
	Monsters     json.RawMessage `json:"monsters"`
	Version      int             `json:"version"`
	LastModified int64           `json:"lastModified"`
}

// ConflictError reports that the stored session ran ahead of the client and
// carries the stored state so the client can resync.
type ConflictError struct {
	Current Session
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("combat session %s at version %d is newer than the client", e.Current.SessionID, e.Current.Version)
}

// Service reads and writes combat sessions in the document store.
type Service struct {
	store docstore.Store
	now   func() time.Time
}

func NewService(store docstore.Store) *Service {
	return &Service{store: store, now: time.Now}
}

// Get returns the session or docstore.ErrNotFound.
func (s *Service) Get(ctx context.Context, userID, sessionID string) (Session, error) {
	data, err := s.store.Get(ctx, userID, collection, sessionID)
	if err != nil {
		return Session{}, err
	}
	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return Session{}, fmt.Errorf("decode combat session %s: %w", sessionID, err)
	}
	return session, nil
}

// Save persists a session at the next version. A client may lag the stored
// version by one save without conflicting, which absorbs sync delay; further
// behind returns ConflictError with the stored session. The stored version is
// max(stored, client)+1 so counters never move backwards.
func (s *Service) Save(ctx context.Context, userID, sessionID string, monsters json.RawMessage, clientVersion int) (int, error) {
	storedVersion := 0
	current, err := s.Get(ctx, userID, sessionID)
	switch {
	case err == nil:
		storedVersion = current.Version
	case errors.Is(err, docstore.ErrNotFound):
	default:
		return 0, err
	}

	if storedVersion > clientVersion+1 {
		return 0, &ConflictError{Current: current}
	}

	newVersion := max(storedVersion, clientVersion) + 1
	session := Session{
		SessionID:    sessionID,
		Monsters:     monsters,
		Version:      newVersion,
		LastModified: s.now().UnixMilli(),
	}
	if err := s.store.Set(ctx, userID, collection, sessionID, session); err != nil {
		return 0, fmt.Errorf("save combat session %s: %w", sessionID, err)
	}
	return newVersion, nil
}

// Delete removes the session.
func (s *Service) Delete(ctx context.Context, userID, sessionID string) error {
	return s.store.Delete(ctx, userID, collection, sessionID)
}
