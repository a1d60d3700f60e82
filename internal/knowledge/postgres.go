package knowledge

import (
	"context"
	"database/sql"
	"strings"
)

const maxKeywords = 8

// PostgresStore searches and seeds the knowledge_base table.
type PostgresStore struct {
	db    *sql.DB
	limit int
}

// NewPostgresStore returns a store returning at most limit articles per search (DefaultLimit if <= 0).
func NewPostgresStore(conn *sql.DB, limit int) *PostgresStore {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &PostgresStore{db: conn, limit: limit}
}

// Search matches message keywords case-insensitively against article content.
func (s *PostgresStore) Search(ctx context.Context, query string) Result {
	terms := Keywords(query, maxKeywords)
	if len(terms) == 0 {
		return Empty
	}
	patterns := make([]string, len(terms))
	for i, t := range terms {
		patterns[i] = "%" + escapeLike(t) + "%"
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT content FROM knowledge_base
		 WHERE content ILIKE ANY($1) OR title ILIKE ANY($1)
		 ORDER BY created_at ASC
		 LIMIT $2`,
		patterns, s.limit)
	if err != nil {
		return Unavailable(err)
	}
	defer rows.Close()
	var entries []string
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return Unavailable(err)
		}
		entries = append(entries, content)
	}
	if err := rows.Err(); err != nil {
		return Unavailable(err)
	}
	return Found(entries)
}

// Upsert inserts or replaces an article keyed by title. a.ID is used only on insert.
func (s *PostgresStore) Upsert(ctx context.Context, a Article) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO knowledge_base (id, title, content, category)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (title) DO UPDATE SET content = EXCLUDED.content, category = EXCLUDED.category`,
		a.ID, a.Title, a.Content, sql.NullString{String: a.Category, Valid: a.Category != ""})
	return err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
