package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/mimir/internal/indexer"
	"github.com/starford/mimir/internal/queryservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *queryservice.Service, idx *indexer.Indexer, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc, idx)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Indexing lifecycle.
	r.Post("/index/start", h.StartIndexing)
	r.Post("/index/stop", h.StopIndexing)
	r.Get("/index/status", h.Status)

	// Search.
	r.Get("/search", h.Search)
	r.Get("/search/semantic", h.SemanticSearch)

	// Graph.
	r.Get("/graph", h.Graph)
	r.Get("/related", h.Related)

	// Tasks.
	r.Get("/tasks", h.Tasks)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
