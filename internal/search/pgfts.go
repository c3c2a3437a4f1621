package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true — if Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search runs a UNION ALL over build_updates, client_reviews, and
// technical_milestones using plainto_tsquery, ranked by ts_rank with
// ts_headline snippets.
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

	const tsQuery = "plainto_tsquery('english', $1)"
	var subQueries []string

	if q.FilterType == "" || q.FilterType == ResultUpdate {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'update'::text AS type, u.id, u.title,
				ts_headline('english', u.description, %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				ts_rank(u.fts, %s) AS rank
			FROM build_updates u
			WHERE u.fts @@ %s`, tsQuery, tsQuery, tsQuery))
	}

	if q.FilterType == "" || q.FilterType == ResultReview {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'review'::text AS type, r.id, r.client_name AS title,
				ts_headline('english', r.summary, %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				ts_rank(r.fts, %s) AS rank
			FROM client_reviews r
			WHERE r.fts @@ %s`, tsQuery, tsQuery, tsQuery))
	}

	if q.FilterType == "" || q.FilterType == ResultMilestone {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'milestone'::text AS type, m.id, m.title,
				ts_headline('english', m.description, %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				ts_rank(m.fts, %s) AS rank
			FROM technical_milestones m
			WHERE m.fts @@ %s`, tsQuery, tsQuery, tsQuery))
	}

	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	query := fmt.Sprintf(`
		SELECT type, id, title, snippet FROM (%s) hits
		ORDER BY rank DESC, id ASC
		LIMIT %d OFFSET %d
	`, strings.Join(subQueries, " UNION ALL "), limit, offset)

	rows, err := p.db.Query(query, q.Text)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts search: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var typ string
		if err := rows.Scan(&typ, &r.ID, &r.Title, &r.Snippet); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}
	return results, len(results), rows.Err()
}

// LoadAllRecords reads every searchable row so the Meilisearch indexes can
// be rebuilt from scratch.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]UpdateRecord, []ReviewRecord, []MilestoneRecord, error) {
	updates, err := loadRows(ctx, p.db,
		`SELECT id, title, description, status FROM build_updates`,
		func(rows *sql.Rows) (UpdateRecord, error) {
			var u UpdateRecord
			err := rows.Scan(&u.ID, &u.Title, &u.Description, &u.Status)
			return u, err
		})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load build updates: %w", err)
	}

	reviews, err := loadRows(ctx, p.db,
		`SELECT id, client_name, summary FROM client_reviews`,
		func(rows *sql.Rows) (ReviewRecord, error) {
			var r ReviewRecord
			err := rows.Scan(&r.ID, &r.ClientName, &r.Summary)
			return r, err
		})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load client reviews: %w", err)
	}

	milestones, err := loadRows(ctx, p.db,
		`SELECT id, title, description, category FROM technical_milestones`,
		func(rows *sql.Rows) (MilestoneRecord, error) {
			var m MilestoneRecord
			err := rows.Scan(&m.ID, &m.Title, &m.Description, &m.Category)
			return m, err
		})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load milestones: %w", err)
	}

	return updates, reviews, milestones, nil
}

func loadRows[T any](ctx context.Context, db *sql.DB, query string, scan func(*sql.Rows) (T, error)) ([]T, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		rec, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
