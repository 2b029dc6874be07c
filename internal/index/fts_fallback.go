//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"
)

func initFTS(conn *sql.DB) error {
	// FTS5 not compiled in; full-text entries live in a plain table and
	// search falls back to conjunctive LIKE matching.
	_, err := conn.Exec(`
		CREATE TABLE IF NOT EXISTS documents_fts (
			path  TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			body  TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_fts_path ON documents_fts(path);
	`)
	return err
}

// Search performs a LIKE-based search (fallback when FTS5 is not compiled
// in). Every query word must appear in the title, body, or path. An empty
// query returns no results without touching the index.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	words := tokenizeQuery(query)
	if len(words) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	var conds []string
	var args []any
	for _, w := range words {
		conds = append(conds, `(f.title LIKE ? OR f.body LIKE ? OR f.path LIKE ?)`)
		like := "%" + w + "%"
		args = append(args, like, like, like)
	}
	args = append(args, limit)

	rows, err := db.conn.Query(`
		SELECT d.id, f.title, f.path, substr(f.body, 1, 200)
		FROM documents_fts f
		JOIN documents d ON d.path = f.path
		WHERE `+strings.Join(conds, " AND ")+`
		LIMIT ?
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.ID, &r.Title, &r.Path, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
