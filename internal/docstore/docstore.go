// Package docstore provides per-user document collections with get/set/delete
// and an array-membership query, the storage contract the monster and feature
// repositories are built on.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrNotFound is returned when a document id does not resolve.
var ErrNotFound = errors.New("document not found")

// Document is a raw stored document with its id.
type Document struct {
	ID   string
	Data json.RawMessage
}

// Store is the minimum capability the domain layer needs from the backing
// document database. All operations are scoped to a single user's collections.
type Store interface {
	// Get returns the document or ErrNotFound.
	Get(ctx context.Context, userID, collection, docID string) (json.RawMessage, error)
	// Set upserts the document. doc is marshaled to JSON.
	Set(ctx context.Context, userID, collection, docID string, doc any) error
	// Delete removes the document. Deleting an absent document is not an error.
	Delete(ctx context.Context, userID, collection, docID string) error
	// List returns every document in the collection.
	List(ctx context.Context, userID, collection string) ([]Document, error)
	// QueryArrayContains returns documents whose top-level array field
	// contains the given string value.
	QueryArrayContains(ctx context.Context, userID, collection, arrayField, value string) ([]Document, error)
}
