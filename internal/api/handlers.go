package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/starford/mimir/internal/apperr"
	"github.com/starford/mimir/internal/indexer"
	"github.com/starford/mimir/internal/queryservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *queryservice.Service
	idx *indexer.Indexer
}

// NewHandler creates a new Handler.
func NewHandler(svc *queryservice.Service, idx *indexer.Indexer) *Handler {
	return &Handler{svc: svc, idx: idx}
}

// StartIndexing handles POST /api/index/start.
//
//	@Summary		Start (or restart) indexing a vault directory
//	@Tags			index
//	@Accept			json
//	@Produce		json
//	@Param			body	body		StartIndexingRequest	true	"Vault root"
//	@Success		200		{object}	StatusResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/index/start [post]
func (h *Handler) StartIndexing(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req StartIndexingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Root == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("root is required"))
		return
	}
	if err := h.idx.Start(r.Context(), req.Root); err != nil {
		slog.Error("start indexing failed", slog.String("root", req.Root), slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, errorBody("cannot index root: "+err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Running: true, Root: h.idx.Root()})
}

// StopIndexing handles POST /api/index/stop.
//
//	@Summary		Stop the active indexing session
//	@Tags			index
//	@Produce		json
//	@Success		200	{object}	StatusResponse
//	@Security		BearerAuth
//	@Router			/index/stop [post]
func (h *Handler) StopIndexing(w http.ResponseWriter, r *http.Request) {
	h.idx.Stop()
	writeJSON(w, http.StatusOK, StatusResponse{Running: false})
}

// Status handles GET /api/index/status.
//
//	@Summary		Report indexing state and document count
//	@Tags			index
//	@Produce		json
//	@Success		200	{object}	StatusResponse
//	@Security		BearerAuth
//	@Router			/index/status [get]
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	count, err := h.svc.DocumentCount(r.Context())
	if err != nil {
		slog.Error("status failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{
		Running:   h.idx.IsRunning(),
		Root:      h.idx.Root(),
		Documents: count,
	})
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across the vault
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		slog.Error("search failed", slog.String("query", q), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: toSearchResults(results)})
}

// SemanticSearch handles GET /api/search/semantic.
//
//	@Summary		Semantic similarity search across the vault
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SemanticSearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search/semantic [get]
func (h *Handler) SemanticSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	hits, err := h.svc.SemanticSearch(r.Context(), q, limit)
	if err != nil {
		slog.Error("semantic search failed", slog.String("query", q), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, SemanticSearchResponse{Results: hits})
}

// Graph handles GET /api/graph.
//
//	@Summary		Get the link graph, ghost nodes included
//	@Tags			graph
//	@Produce		json
//	@Success		200	{object}	GraphResponse
//	@Security		BearerAuth
//	@Router			/graph [get]
func (h *Handler) Graph(w http.ResponseWriter, r *http.Request) {
	nodes, edges, err := h.svc.Graph(r.Context())
	if err != nil {
		slog.Error("graph failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, toGraphResponse(nodes, edges))
}

// Related handles GET /api/related.
//
//	@Summary		Documents one link hop away from a document
//	@Tags			graph
//	@Produce		json
//	@Param			path	query		string	true	"Vault-relative document path"
//	@Success		200		{object}	RelatedResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/related [get]
func (h *Handler) Related(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'path' is required"))
		return
	}
	related, err := h.svc.Related(r.Context(), path)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("related failed", slog.String("path", path), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, RelatedResponse{Path: path, Related: related})
}

// Tasks handles GET /api/tasks.
//
//	@Summary		List every checkbox task in the vault
//	@Tags			tasks
//	@Produce		json
//	@Success		200	{object}	TasksResponse
//	@Security		BearerAuth
//	@Router			/tasks [get]
func (h *Handler) Tasks(w http.ResponseWriter, r *http.Request) {
	rows, err := h.svc.Tasks(r.Context())
	if err != nil {
		slog.Error("tasks failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, TasksResponse{Tasks: toTasks(rows)})
}
