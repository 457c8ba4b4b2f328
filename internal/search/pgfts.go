package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search over the JSONB
// document table, as a fallback when Meilisearch is down.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true. If Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

const (
	monsterTSV = `to_tsvector('english', coalesce(doc->>'Name','') || ' ' || coalesce(doc->>'Type','') || ' ' || coalesce(doc->>'Description',''))`
	featureTSV = `to_tsvector('english', coalesce(doc->>'Name','') || ' ' || coalesce(doc->>'Content',''))`
)

// Search executes a UNION ALL query across the monsters and features
// collections using plainto_tsquery and ts_rank, with ts_headline snippets.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	tsQuery := "plainto_tsquery('english', $1)"
	args := []any{q.Text, q.UserID}

	var subQueries []string

	if q.FilterType == "" || q.FilterType == ResultMonster {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'monster'::text AS type, doc_id AS id,
				coalesce(doc->>'Name','') AS name,
				ts_headline('english', coalesce(doc->>'Description',''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				''::text AS category,
				ts_rank(%s, %s) AS rank
			FROM user_documents
			WHERE user_id = $2 AND collection = 'monsters' AND %s @@ %s`,
			tsQuery, monsterTSV, tsQuery, monsterTSV, tsQuery))
	}

	if q.FilterType == "" || q.FilterType == ResultFeature {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'feature'::text AS type, doc_id AS id,
				coalesce(doc->>'Name','') AS name,
				ts_headline('english', coalesce(doc->>'Content',''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				coalesce(doc->>'Category','') AS category,
				ts_rank(%s, %s) AS rank
			FROM user_documents
			WHERE user_id = $2 AND collection = 'features' AND %s @@ %s`,
			tsQuery, featureTSV, tsQuery, featureTSV, tsQuery))
	}

	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub",
		strings.Join(subQueries, " UNION ALL "))

	dataSQL := fmt.Sprintf(`SELECT type, id, name, snippet, category
		FROM (%s) sub
		ORDER BY rank DESC
		LIMIT %d OFFSET %d`,
		strings.Join(subQueries, " UNION ALL "),
		limit, offset)

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var typ string
		if err := rows.Scan(&typ, &r.ID, &r.Name, &r.Snippet, &r.Category); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns every user's searchable records for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]MonsterRecord, []FeatureRecord, error) {
	monsterRows, err := p.db.QueryContext(ctx, `
		SELECT user_id, doc_id,
			coalesce(doc->>'Name',''), coalesce(doc->>'Type',''),
			coalesce(doc->>'Challenge',''), coalesce(doc->>'Description','')
		FROM user_documents
		WHERE collection = 'monsters'
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load monsters: %w", err)
	}
	defer monsterRows.Close()

	monsters := make([]MonsterRecord, 0)
	for monsterRows.Next() {
		var rec MonsterRecord
		if err := monsterRows.Scan(&rec.UserID, &rec.ID, &rec.Name, &rec.Type, &rec.Challenge, &rec.Description); err != nil {
			return nil, nil, fmt.Errorf("scan monster: %w", err)
		}
		monsters = append(monsters, rec)
	}
	if err := monsterRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate monsters: %w", err)
	}

	featureRows, err := p.db.QueryContext(ctx, `
		SELECT user_id, doc_id,
			coalesce(doc->>'Name',''), coalesce(doc->>'Content',''), coalesce(doc->>'Category','')
		FROM user_documents
		WHERE collection = 'features'
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load features: %w", err)
	}
	defer featureRows.Close()

	features := make([]FeatureRecord, 0)
	for featureRows.Next() {
		var rec FeatureRecord
		if err := featureRows.Scan(&rec.UserID, &rec.ID, &rec.Name, &rec.Content, &rec.Category); err != nil {
			return nil, nil, fmt.Errorf("scan feature: %w", err)
		}
		features = append(features, rec)
	}
	if err := featureRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate features: %w", err)
	}

	return monsters, features, nil
}
