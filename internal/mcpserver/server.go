// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Mimir query tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/mimir/internal/indexer"
	"github.com/starford/mimir/internal/queryservice"
)

// Server wraps the MCP server with Mimir tools.
type Server struct {
	mcp *server.MCPServer
	svc *queryservice.Service
	idx *indexer.Indexer
}

// New creates a new MCP server with all Mimir tools registered.
func New(svc *queryservice.Service, idx *indexer.Indexer) *Server {
	s := &Server{svc: svc, idx: idx}

	s.mcp = server.NewMCPServer(
		"Mimir",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_vault",
		mcp.WithDescription("Full-text search through indexed document titles and bodies."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchVault)

	s.mcp.AddTool(mcp.NewTool("semantic_search",
		mcp.WithDescription("Find documents by meaning rather than exact words, ranked by similarity."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Natural language query")),
	), s.semanticSearch)

	s.mcp.AddTool(mcp.NewTool("read_document",
		mcp.WithDescription("Read the raw content of a vault document."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault-relative path (e.g. topics/doc.md)")),
	), s.readDocument)

	s.mcp.AddTool(mcp.NewTool("get_graph",
		mcp.WithDescription("Return the full link graph: every document as a node, one edge per link. "+
			"Nodes with exists=false are link targets that have no document yet."),
	), s.getGraph)

	s.mcp.AddTool(mcp.NewTool("related_documents",
		mcp.WithDescription("Find documents one link hop away from the given document, in either direction."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault-relative path of the document")),
	), s.relatedDocuments)

	s.mcp.AddTool(mcp.NewTool("list_tasks",
		mcp.WithDescription("List every checkbox task across the vault, open items first."),
	), s.listTasks)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) searchVault(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) semanticSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	hits, err := s.svc.SemanticSearch(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(hits, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := s.idx.ReadFile(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("cannot read %s: %v", path, err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) getGraph(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	nodes, edges, err := s.svc.Graph(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(map[string]any{
		"nodes": nodes,
		"edges": edges,
	}, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) relatedDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	related, err := s.svc.Related(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(related) == 0 {
		return mcp.NewToolResultText("no related documents"), nil
	}
	out, _ := json.MarshalIndent(related, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listTasks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tasks, err := s.svc.Tasks(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(tasks) == 0 {
		return mcp.NewToolResultText("no tasks found"), nil
	}
	out, _ := json.MarshalIndent(tasks, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}
