package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore is an in-memory Store used by tests across the domain packages.
type MemoryStore struct {
	mu sync.RWMutex
	// userID -> collection -> docID -> raw document
	data map[string]map[string]map[string]json.RawMessage
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]map[string]map[string]json.RawMessage)}
}

func (s *MemoryStore) Get(ctx context.Context, userID, collection, docID string) (json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.data[userID][collection][docID]
	if !ok {
		return nil, ErrNotFound
	}
	out := make(json.RawMessage, len(doc))
	copy(out, doc)
	return out, nil
}

func (s *MemoryStore) Set(ctx context.Context, userID, collection, docID string, doc any) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal %s/%s: %w", collection, docID, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data[userID] == nil {
		s.data[userID] = make(map[string]map[string]json.RawMessage)
	}
	if s.data[userID][collection] == nil {
		s.data[userID][collection] = make(map[string]json.RawMessage)
	}
	s.data[userID][collection][docID] = payload
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, userID, collection, docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data[userID][collection], docID)
	return nil
}

func (s *MemoryStore) List(ctx context.Context, userID, collection string) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]Document, 0)
	for id, doc := range s.data[userID][collection] {
		out := make(json.RawMessage, len(doc))
		copy(out, doc)
		items = append(items, Document{ID: id, Data: out})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (s *MemoryStore) QueryArrayContains(ctx context.Context, userID, collection, arrayField, value string) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]Document, 0)
	for id, doc := range s.data[userID][collection] {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(doc, &fields); err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", collection, id, err)
		}
		var values []string
		if raw, ok := fields[arrayField]; ok {
			// Non-array fields simply never match.
			_ = json.Unmarshal(raw, &values)
		}
		for _, v := range values {
			if v == value {
				out := make(json.RawMessage, len(doc))
				copy(out, doc)
				items = append(items, Document{ID: id, Data: out})
				break
			}
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}
