package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// PostgresStore keeps every user document in a single JSONB table keyed by
// (user_id, collection, doc_id). Array-membership queries use the JSONB
// containment operator backed by a GIN index.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, userID, collection, docID string) (json.RawMessage, error) {
	var doc json.RawMessage
	err := s.db.QueryRowContext(ctx, `
		SELECT doc FROM user_documents
		WHERE user_id=$1 AND collection=$2 AND doc_id=$3
	`, userID, collection, docID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, docID, err)
	}
	return doc, nil
}

func (s *PostgresStore) Set(ctx context.Context, userID, collection, docID string, doc any) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal %s/%s: %w", collection, docID, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO user_documents (user_id, collection, doc_id, doc)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, collection, doc_id) DO UPDATE SET doc=EXCLUDED.doc, updated_at=NOW()
	`, userID, collection, docID, payload)
	if err != nil {
		return fmt.Errorf("set %s/%s: %w", collection, docID, err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, userID, collection, docID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM user_documents
		WHERE user_id=$1 AND collection=$2 AND doc_id=$3
	`, userID, collection, docID)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, docID, err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, userID, collection string) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT doc_id, doc FROM user_documents
		WHERE user_id=$1 AND collection=$2
		ORDER BY doc_id
	`, userID, collection)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	defer rows.Close()

	return scanDocuments(rows, collection)
}

func (s *PostgresStore) QueryArrayContains(ctx context.Context, userID, collection, arrayField, value string) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT doc_id, doc FROM user_documents
		WHERE user_id=$1 AND collection=$2 AND doc->$3 @> to_jsonb($4::text)
		ORDER BY doc_id
	`, userID, collection, arrayField, value)
	if err != nil {
		return nil, fmt.Errorf("query %s by %s: %w", collection, arrayField, err)
	}
	defer rows.Close()

	return scanDocuments(rows, collection)
}

func scanDocuments(rows *sql.Rows, collection string) ([]Document, error) {
	items := make([]Document, 0)
	for rows.Next() {
		var item Document
		if err := rows.Scan(&item.ID, &item.Data); err != nil {
			return nil, fmt.Errorf("scan %s document: %w", collection, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s documents: %w", collection, err)
	}
	return items, nil
}
