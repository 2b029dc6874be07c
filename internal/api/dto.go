package api

import (
	"time"

	"github.com/starford/mimir/internal/index"
	"github.com/starford/mimir/internal/queryservice"
)

// StartIndexingRequest is the request body for starting an indexing session.
type StartIndexingRequest struct {
	Root string `json:"root" example:"/home/me/vault" validate:"required"`
}

// StatusResponse reports the indexing lifecycle state.
type StatusResponse struct {
	Running   bool   `json:"running" validate:"required"`
	Root      string `json:"root,omitempty" example:"/home/me/vault"`
	Documents int    `json:"documents" example:"42"`
}

// SearchResult is a single full-text hit in the API response.
type SearchResult struct {
	ID      string `json:"id" validate:"required"`
	Path    string `json:"path" example:"topics/hello.md" validate:"required"`
	Title   string `json:"title" example:"Hello"`
	Snippet string `json:"snippet" example:"...matched text..."`
}

// SearchResponse wraps full-text search results.
type SearchResponse struct {
	Results []SearchResult `json:"results" validate:"required"`
}

// SemanticHit is one semantic search result (aliased from the domain layer).
type SemanticHit = queryservice.SemanticHit

// SemanticSearchResponse wraps semantic search results.
type SemanticSearchResponse struct {
	Results []SemanticHit `json:"results" validate:"required"`
}

// GraphNode is a node in the link graph. Ghost nodes carry exists=false and
// an empty path.
type GraphNode struct {
	ID     string `json:"id" validate:"required"`
	Title  string `json:"title,omitempty" example:"Hello"`
	Path   string `json:"path,omitempty" example:"topics/hello.md"`
	Exists bool   `json:"exists"`
}

// GraphEdge is a directed edge in the link graph.
type GraphEdge struct {
	Source string `json:"source" validate:"required"`
	Target string `json:"target" validate:"required"`
}

// GraphResponse wraps the link graph.
type GraphResponse struct {
	Nodes []GraphNode `json:"nodes" validate:"required"`
	Edges []GraphEdge `json:"edges" validate:"required"`
}

// RelatedDocument is one related-documents entry (aliased from the domain layer).
type RelatedDocument = queryservice.RelatedDocument

// RelatedResponse wraps a related-documents lookup.
type RelatedResponse struct {
	Path    string            `json:"path" validate:"required"`
	Related []RelatedDocument `json:"related" validate:"required"`
}

// Task is one checkbox item in the task aggregation response.
type Task struct {
	ID        int64     `json:"id" validate:"required"`
	Path      string    `json:"path" example:"topics/hello.md" validate:"required"`
	Title     string    `json:"title,omitempty" example:"Hello"`
	Content   string    `json:"content" example:"ship it" validate:"required"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"created_at"`
}

// TasksResponse wraps the task aggregation.
type TasksResponse struct {
	Tasks []Task `json:"tasks" validate:"required"`
}

func toSearchResults(rows []index.SearchResult) []SearchResult {
	out := make([]SearchResult, 0, len(rows))
	for _, r := range rows {
		out = append(out, SearchResult{ID: r.ID, Path: r.Path, Title: r.Title, Snippet: r.Snippet})
	}
	return out
}

func toGraphResponse(nodes []index.GraphNode, edges []index.GraphEdge) GraphResponse {
	resp := GraphResponse{
		Nodes: make([]GraphNode, 0, len(nodes)),
		Edges: make([]GraphEdge, 0, len(edges)),
	}
	for _, n := range nodes {
		resp.Nodes = append(resp.Nodes, GraphNode{ID: n.ID, Title: n.Title, Path: n.Path, Exists: n.Exists})
	}
	for _, e := range edges {
		resp.Edges = append(resp.Edges, GraphEdge{Source: e.Source, Target: e.Target})
	}
	return resp
}

func toTasks(rows []index.TaskRow) []Task {
	out := make([]Task, 0, len(rows))
	for _, r := range rows {
		out = append(out, Task{
			ID:        r.ID,
			Path:      r.Path,
			Title:     r.Title,
			Content:   r.Content,
			Completed: r.Completed,
			CreatedAt: r.CreatedAt,
		})
	}
	return out
}
