// Package queryservice exposes read-only queries over the index: full-text
// search, semantic search, the link graph, related documents, and task
// aggregation.
package queryservice

import (
	"context"
	"log/slog"
	"time"

	"github.com/starford/mimir/internal/embed"
	"github.com/starford/mimir/internal/index"
	"github.com/starford/mimir/internal/vector"
)

// DefaultLimit caps result counts when the caller does not set one.
const DefaultLimit = 20

// SemanticHit is one semantic search result: a document plus its
// similarity score in [0,1].
type SemanticHit struct {
	ID    string  `json:"id"`
	Path  string  `json:"path"`
	Title string  `json:"title"`
	Score float32 `json:"score"`
}

// RelatedDocument is one entry in a related-documents response.
type RelatedDocument struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	Title     string    `json:"title"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Service answers queries against the index, the vector cache, and the
// embedder. All methods are safe to call while indexing is in progress;
// they observe whatever state is committed at the time of the call.
type Service struct {
	db       *index.DB
	embedder embed.Embedder
	vectors  *vector.Index
	logger   *slog.Logger
}

func NewService(db *index.DB, embedder embed.Embedder, vectors *vector.Index, logger *slog.Logger) *Service {
	return &Service{db: db, embedder: embedder, vectors: vectors, logger: logger}
}

// Search runs a conjunctive prefix full-text query. A blank query returns
// an empty result without touching the database.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return s.db.Search(query, limit)
}

// SemanticSearch embeds the query and returns the nearest documents by
// cosine similarity. When no embedding can be produced for the query the
// result is empty rather than an error.
func (s *Service) SemanticSearch(ctx context.Context, query string, limit int) ([]SemanticHit, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		s.logger.Warn("query: embedding failed", "error", err)
		return []SemanticHit{}, nil
	}
	if len(vec) == 0 {
		return []SemanticHit{}, nil
	}

	matches, err := s.vectors.Search(vec, limit)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return []SemanticHit{}, nil
	}

	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m.ID)
	}
	rows, err := s.db.DocumentsByIDs(ids)
	if err != nil {
		return nil, err
	}

	hits := make([]SemanticHit, 0, len(matches))
	for _, m := range matches {
		row, ok := rows[m.ID]
		if !ok {
			// Vector entry for a document deleted since the last
			// rebuild; skip it.
			continue
		}
		hits = append(hits, SemanticHit{
			ID:    m.ID,
			Path:  row.Path,
			Title: row.Title,
			Score: m.Score,
		})
	}
	return hits, nil
}

// Graph returns the full link graph, ghost nodes included.
func (s *Service) Graph(_ context.Context) ([]index.GraphNode, []index.GraphEdge, error) {
	return s.db.Graph()
}

// Related returns the documents one link hop away from the document at
// path, in either direction.
func (s *Service) Related(_ context.Context, path string) ([]RelatedDocument, error) {
	rows, err := s.db.Related(path)
	if err != nil {
		return nil, err
	}
	out := make([]RelatedDocument, 0, len(rows))
	for _, r := range rows {
		out = append(out, RelatedDocument{
			ID:        r.ID,
			Path:      r.Path,
			Title:     r.Title,
			UpdatedAt: r.UpdatedAt,
		})
	}
	return out, nil
}

// DocumentCount returns the number of indexed documents.
func (s *Service) DocumentCount(_ context.Context) (int, error) {
	return s.db.CountDocuments()
}

// Tasks returns every checkbox item in the vault, open items first.
func (s *Service) Tasks(_ context.Context) ([]index.TaskRow, error) {
	return s.db.Tasks()
}
