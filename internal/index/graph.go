package index

import (
	"fmt"
	"strings"
)

// GraphNode is a node in the link graph. Exists is false for ghost nodes:
// link targets with no corresponding document. Ghost nodes are synthesized
// at query time and never persisted.
type GraphNode struct {
	ID     string
	Title  string
	Path   string
	Exists bool
}

// GraphEdge is a directed edge from a source document to a resolved target
// node (real or ghost).
type GraphEdge struct {
	Source string
	Target string
}

// LinkRow is one stored outbound link: source document identifier and the
// raw target label as written.
type LinkRow struct {
	Source string
	Target string
}

// GhostIDPrefix marks synthetic node identifiers; real document IDs are hex
// digests and can never collide with it.
const GhostIDPrefix = "ghost:"

// Graph assembles the full link graph: every document as a node, one edge
// per stored link. A target label that matches no document's path or title
// becomes a ghost node so consumers can offer "create this document"
// affordances.
func (db *DB) Graph() ([]GraphNode, []GraphEdge, error) {
	docs, err := db.AllDocuments()
	if err != nil {
		return nil, nil, err
	}
	links, err := db.allLinks()
	if err != nil {
		return nil, nil, err
	}

	res := newResolver(docs)

	nodes := make([]GraphNode, 0, len(docs))
	for _, d := range docs {
		nodes = append(nodes, GraphNode{ID: d.ID, Title: d.Title, Path: d.Path, Exists: true})
	}

	ghosts := make(map[string]struct{})
	edges := make([]GraphEdge, 0, len(links))
	for _, l := range links {
		targetID, ok := res.resolve(l.Target)
		if !ok {
			targetID = GhostIDPrefix + l.Target
			if _, seen := ghosts[targetID]; !seen {
				ghosts[targetID] = struct{}{}
				nodes = append(nodes, GraphNode{ID: targetID, Title: l.Target, Exists: false})
			}
		}
		edges = append(edges, GraphEdge{Source: l.Source, Target: targetID})
	}
	return nodes, edges, nil
}

// Related returns the one-hop neighborhood of the document at path:
// documents it links to plus documents linking to it. Link targets resolve
// best-effort against paths and titles; unresolved targets contribute no
// neighbors.
func (db *DB) Related(path string) ([]DocumentRow, error) {
	doc, err := db.GetDocumentByPath(path)
	if err != nil {
		return nil, err
	}
	docs, err := db.AllDocuments()
	if err != nil {
		return nil, err
	}
	links, err := db.allLinks()
	if err != nil {
		return nil, err
	}

	res := newResolver(docs)
	byID := make(map[string]DocumentRow, len(docs))
	for _, d := range docs {
		byID[d.ID] = d
	}

	neighbors := make(map[string]struct{})
	for _, l := range links {
		targetID, ok := res.resolve(l.Target)
		if !ok {
			continue
		}
		switch {
		case l.Source == doc.ID && targetID != doc.ID:
			neighbors[targetID] = struct{}{}
		case targetID == doc.ID && l.Source != doc.ID:
			neighbors[l.Source] = struct{}{}
		}
	}

	// Preserve AllDocuments path ordering.
	out := make([]DocumentRow, 0, len(neighbors))
	for _, d := range docs {
		if _, ok := neighbors[d.ID]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

// allLinks returns every stored link edge.
func (db *DB) allLinks() ([]LinkRow, error) {
	rows, err := db.conn.Query(`SELECT source, target FROM links ORDER BY source, target`)
	if err != nil {
		return nil, fmt.Errorf("index: all links: %w", err)
	}
	defer rows.Close()

	var out []LinkRow
	for rows.Next() {
		var l LinkRow
		if err := rows.Scan(&l.Source, &l.Target); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// resolver maps raw link labels to document identifiers. A label resolves
// when it equals a document's path, the path without its .md extension, the
// filename stem, or the title (titles case-insensitively). Resolution is
// computed per query, never stored.
type resolver struct {
	byKey map[string]string
}

func newResolver(docs []DocumentRow) *resolver {
	r := &resolver{byKey: make(map[string]string, len(docs)*4)}
	for _, d := range docs {
		r.put(d.Path, d.ID)
		noExt := strings.TrimSuffix(d.Path, ".md")
		r.put(noExt, d.ID)
		if i := strings.LastIndex(noExt, "/"); i >= 0 {
			r.put(noExt[i+1:], d.ID)
		}
		if d.Title != "" {
			r.put(strings.ToLower(d.Title), d.ID)
		}
	}
	return r
}

// put registers a key without overwriting: the first document (in path
// order) wins on ambiguous labels.
func (r *resolver) put(key, id string) {
	if _, ok := r.byKey[key]; !ok {
		r.byKey[key] = id
	}
}

func (r *resolver) resolve(label string) (string, bool) {
	label = strings.TrimSpace(label)
	if id, ok := r.byKey[label]; ok {
		return id, true
	}
	if id, ok := r.byKey[strings.ToLower(label)]; ok {
		return id, true
	}
	return "", false
}
