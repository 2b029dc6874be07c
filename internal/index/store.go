package index

import (
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/starford/mimir/internal/apperr"
)

// DocumentRow represents a row in the documents table, enriched with the
// title stored in the full-text entry.
type DocumentRow struct {
	ID          string
	Path        string
	Title       string
	Fingerprint string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TaskItem is one checkbox item belonging to a document, as written.
type TaskItem struct {
	Content   string
	Completed bool
}

// SearchResult represents one full-text search hit.
type SearchResult struct {
	ID      string
	Title   string
	Path    string
	Snippet string
}

// InsertDocument inserts a document row if absent. A pre-existing row for
// the same identifier is left untouched; change events go through
// TouchDocument instead.
func (db *DB) InsertDocument(id, path, fingerprint string) error {
	_, err := db.conn.Exec(`
		INSERT INTO documents (id, path, fingerprint) VALUES (?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, id, path, fingerprint)
	if err != nil {
		return fmt.Errorf("index: insert document: %w", err)
	}
	return nil
}

// TouchDocument updates a document's fingerprint and update timestamp.
func (db *DB) TouchDocument(id, fingerprint string) error {
	_, err := db.conn.Exec(`
		UPDATE documents SET fingerprint = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, fingerprint, id)
	if err != nil {
		return fmt.Errorf("index: touch document: %w", err)
	}
	return nil
}

// ReplaceFullText replaces the full-text entry for a path: delete-by-path
// then insert, in one transaction, so at most one entry per path survives
// even under duplicate add events.
func (db *DB) ReplaceFullText(path, title, body string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if _, err := tx.Exec(`DELETE FROM documents_fts WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: delete fts entry: %w", err)
	}
	if _, err := tx.Exec(`INSERT INTO documents_fts (path, title, body) VALUES (?, ?, ?)`, path, title, body); err != nil {
		return fmt.Errorf("index: insert fts entry: %w", err)
	}
	return tx.Commit()
}

// ReplaceLinks atomically replaces the outbound link set of a source
// document. The edge set is never a mix of old and new targets.
func (db *DB) ReplaceLinks(sourceID string, targets []string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`DELETE FROM links WHERE source = ?`, sourceID); err != nil {
		return fmt.Errorf("index: delete links: %w", err)
	}
	if len(targets) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO links (source, target) VALUES (?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare link insert: %w", err)
		}
		defer stmt.Close()
		for _, target := range targets {
			if _, err := stmt.Exec(sourceID, target); err != nil {
				return fmt.Errorf("index: insert link: %w", err)
			}
		}
	}
	return tx.Commit()
}

// ReplaceTasks atomically replaces the task items of a document.
func (db *DB) ReplaceTasks(docID string, tasks []TaskItem) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`DELETE FROM tasks WHERE document_id = ?`, docID); err != nil {
		return fmt.Errorf("index: delete tasks: %w", err)
	}
	if len(tasks) > 0 {
		stmt, err := tx.Prepare(`INSERT INTO tasks (document_id, content, completed) VALUES (?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare task insert: %w", err)
		}
		defer stmt.Close()
		for _, task := range tasks {
			if _, err := stmt.Exec(docID, task.Content, task.Completed); err != nil {
				return fmt.Errorf("index: insert task: %w", err)
			}
		}
	}
	return tx.Commit()
}

// PutEmbedding stores (or replaces) a document's embedding vector.
func (db *DB) PutEmbedding(docID string, vector []float32) error {
	_, err := db.conn.Exec(`
		INSERT INTO embeddings (document_id, vector, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(document_id) DO UPDATE SET
			vector     = excluded.vector,
			updated_at = CURRENT_TIMESTAMP
	`, docID, encodeVector(vector))
	if err != nil {
		return fmt.Errorf("index: put embedding: %w", err)
	}
	return nil
}

// RemoveDocument deletes the full-text entry and the document row; foreign
// keys cascade the delete to links, tasks, and the embedding.
func (db *DB) RemoveDocument(id, path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`DELETE FROM documents_fts WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: delete fts entry: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM documents WHERE id = ?`, id); err != nil {
		return fmt.Errorf("index: delete document: %w", err)
	}
	return tx.Commit()
}

// Clear wipes every table. Used only when switching the active vault.
func (db *DB) Clear() error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, table := range []string{"links", "tasks", "embeddings", "documents_fts", "documents"} {
		if _, err := tx.Exec(`DELETE FROM ` + table); err != nil {
			return fmt.Errorf("index: clear %s: %w", table, err)
		}
	}
	return tx.Commit()
}

// CountDocuments returns the number of indexed documents.
func (db *DB) CountDocuments() (int, error) {
	var n int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("index: count documents: %w", err)
	}
	return n, nil
}

// GetFingerprint returns the stored fingerprint for a document identifier,
// or empty string if the document is not indexed.
func (db *DB) GetFingerprint(id string) (string, error) {
	var fp string
	err := db.conn.QueryRow(`SELECT fingerprint FROM documents WHERE id = ?`, id).Scan(&fp)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("index: get fingerprint: %w", err)
	}
	return fp, nil
}

// GetDocumentByPath returns the document row for a vault-relative path.
func (db *DB) GetDocumentByPath(path string) (*DocumentRow, error) {
	row := db.conn.QueryRow(`
		SELECT d.id, d.path, COALESCE(f.title, ''), d.fingerprint, d.created_at, d.updated_at
		FROM documents d
		LEFT JOIN documents_fts f ON f.path = d.path
		WHERE d.path = ?
	`, path)
	var d DocumentRow
	if err := row.Scan(&d.ID, &d.Path, &d.Title, &d.Fingerprint, &d.CreatedAt, &d.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("index: get document: %w", err)
	}
	return &d, nil
}

// AllDocuments returns every indexed document ordered by path.
func (db *DB) AllDocuments() ([]DocumentRow, error) {
	rows, err := db.conn.Query(`
		SELECT d.id, d.path, COALESCE(f.title, ''), d.fingerprint, d.created_at, d.updated_at
		FROM documents d
		LEFT JOIN documents_fts f ON f.path = d.path
		ORDER BY d.path
	`)
	if err != nil {
		return nil, fmt.Errorf("index: all documents: %w", err)
	}
	defer rows.Close()

	var out []DocumentRow
	for rows.Next() {
		var d DocumentRow
		if err := rows.Scan(&d.ID, &d.Path, &d.Title, &d.Fingerprint, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// DocumentsByIDs returns document rows keyed by identifier.
func (db *DB) DocumentsByIDs(ids []string) (map[string]DocumentRow, error) {
	out := make(map[string]DocumentRow, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	placeholders := strings.Repeat("?,", len(ids)-1) + "?"
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := db.conn.Query(`
		SELECT d.id, d.path, COALESCE(f.title, ''), d.fingerprint, d.created_at, d.updated_at
		FROM documents d
		LEFT JOIN documents_fts f ON f.path = d.path
		WHERE d.id IN (`+placeholders+`)
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("index: documents by ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var d DocumentRow
		if err := rows.Scan(&d.ID, &d.Path, &d.Title, &d.Fingerprint, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		out[d.ID] = d
	}
	return out, rows.Err()
}

// AllEmbeddings returns every stored embedding keyed by document identifier.
// Used to rebuild the in-memory vector index on startup.
func (db *DB) AllEmbeddings() (map[string][]float32, error) {
	rows, err := db.conn.Query(`SELECT document_id, vector FROM embeddings`)
	if err != nil {
		return nil, fmt.Errorf("index: all embeddings: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]float32)
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, err
		}
		out[id] = decodeVector(blob)
	}
	return out, rows.Err()
}

// tokenizeQuery splits a raw search query into words. An empty result means
// the query must not reach the index at all.
func tokenizeQuery(query string) []string {
	return strings.Fields(strings.TrimSpace(query))
}

// encodeVector packs float32s as a little-endian blob.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

// decodeVector unpacks a little-endian float32 blob.
func decodeVector(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return v
}
