//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS documents_fts USING fts5(
			path,
			title,
			body,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

// Search performs a conjunctive prefix-matching full-text search: every
// query word must match some token prefix. Results are ranked and carry a
// highlighted snippet of the body. An empty query returns no results
// without touching the index.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	words := tokenizeQuery(query)
	if len(words) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := db.conn.Query(`
		SELECT d.id,
		       f.title,
		       f.path,
		       snippet(documents_fts, 2, '<b>', '</b>', '...', 64)
		FROM documents_fts f
		JOIN documents d ON d.path = f.path
		WHERE documents_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, matchExpr(words), limit)
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

// matchExpr builds an FTS5 MATCH expression of quoted prefix terms; terms
// separated by whitespace are implicitly conjunctive.
func matchExpr(words []string) string {
	terms := make([]string, len(words))
	for i, w := range words {
		terms[i] = `"` + strings.ReplaceAll(w, `"`, `""`) + `"*`
	}
	return strings.Join(terms, " ")
}
