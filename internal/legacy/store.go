// Package legacy reads monster records from the old object-store layout,
// one JSON object per monster under users/{email}/monsters/{id}.json.
package legacy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
)

// Record is one legacy monster object, keyed by the id encoded in its object
// name.
type Record struct {
	ID   string
	Data json.RawMessage
}

// Store lists and fetches legacy monster objects for a user.
type Store struct {
	client *minio.Client
	bucket string
}

func NewStore(client *minio.Client, bucket string) *Store {
	return &Store{client: client, bucket: bucket}
}

func userPrefix(email string) string {
	return "users/" + email + "/monsters/"
}

// ListMonsters returns every legacy monster record for the user's email, in
// object-name order. A user with no legacy prefix yields an empty slice.
func (s *Store) ListMonsters(ctx context.Context, email string) ([]Record, error) {
	prefix := userPrefix(email)
	records := make([]Record, 0)
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list legacy monsters: %w", obj.Err)
		}
		if !strings.HasSuffix(obj.Key, ".json") {
			continue
		}
		data, err := s.fetch(ctx, obj.Key)
		if err != nil {
			return nil, err
		}
		id := strings.TrimSuffix(path.Base(obj.Key), ".json")
		records = append(records, Record{ID: id, Data: data})
	}
	return records, nil
}

// GetMonster fetches one legacy record. Returns ok=false when the object does
// not exist.
func (s *Store) GetMonster(ctx context.Context, email, monsterID string) (json.RawMessage, bool, error) {
	data, err := s.fetch(ctx, userPrefix(email)+monsterID+".json")
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

func (s *Store) fetch(ctx context.Context, key string) (json.RawMessage, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("object %s is not valid JSON", key)
	}
	return data, nil
}
