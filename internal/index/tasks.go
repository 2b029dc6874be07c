package index

import (
	"fmt"
	"time"
)

// TaskRow is one task item annotated with its owning document's title and
// path for display.
type TaskRow struct {
	ID         int64
	DocumentID string
	Content    string
	Completed  bool
	Path       string
	Title      string
	CreatedAt  time.Time
}

// Tasks returns every task item across all documents, open items first,
// then grouped by document path.
func (db *DB) Tasks() ([]TaskRow, error) {
	rows, err := db.conn.Query(`
		SELECT t.id, t.document_id, t.content, t.completed, d.path, COALESCE(f.title, ''), t.created_at
		FROM tasks t
		JOIN documents d ON d.id = t.document_id
		LEFT JOIN documents_fts f ON f.path = d.path
		ORDER BY t.completed, d.path, t.id
	`)
	if err != nil {
		return nil, fmt.Errorf("index: tasks: %w", err)
	}
	defer rows.Close()

	var out []TaskRow
	for rows.Next() {
		var t TaskRow
		if err := rows.Scan(&t.ID, &t.DocumentID, &t.Content, &t.Completed, &t.Path, &t.Title, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
