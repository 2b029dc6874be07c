// Package vector provides an in-memory HNSW similarity index over document
// embeddings. It is a cache rebuilt from the embeddings table on startup;
// the index database remains the persistent source.
package vector

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/coder/hnsw"
)

// Result is one nearest-neighbor hit. Score is a similarity value in [0,1]
// derived from cosine distance.
type Result struct {
	ID    string
	Score float32
}

// Index maps document identifiers to embedding vectors and answers
// k-nearest-neighbor queries under cosine similarity.
//
// Deletion is lazy: removed IDs are dropped from the mapping but their
// nodes stay in the graph, because coder/hnsw misbehaves when the last
// node is deleted. Orphans are filtered out of search results.
type Index struct {
	mu    sync.RWMutex
	graph *hnsw.Graph[uint64]
	dims  int

	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64
}

// New creates an empty index for vectors of the given dimensionality.
func New(dims int) *Index {
	return &Index{
		graph:  newGraph(),
		dims:   dims,
		idMap:  make(map[string]uint64),
		keyMap: make(map[uint64]string),
	}
}

func newGraph() *hnsw.Graph[uint64] {
	g := hnsw.NewGraph[uint64]()
	g.Distance = hnsw.CosineDistance
	g.M = 16
	g.EfSearch = 20
	g.Ml = 0.25
	return g
}

// Dimensions returns the vector dimensionality the index accepts.
func (ix *Index) Dimensions() int {
	return ix.dims
}

// Add inserts or replaces the vector for an ID. Replacement orphans the old
// graph node (lazy deletion).
func (ix *Index) Add(id string, vec []float32) error {
	if len(vec) != ix.dims {
		return fmt.Errorf("vector: dimension mismatch: got %d, want %d", len(vec), ix.dims)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if oldKey, exists := ix.idMap[id]; exists {
		delete(ix.keyMap, oldKey)
		delete(ix.idMap, id)
	}

	key := ix.nextKey
	ix.nextKey++

	normalized := make([]float32, len(vec))
	copy(normalized, vec)
	normalize(normalized)

	ix.graph.Add(hnsw.MakeNode(key, normalized))
	ix.idMap[id] = key
	ix.keyMap[key] = id
	return nil
}

// Delete removes an ID from the index. Missing IDs are a no-op.
func (ix *Index) Delete(id string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if key, exists := ix.idMap[id]; exists {
		delete(ix.keyMap, key)
		delete(ix.idMap, id)
	}
}

// Search returns up to k nearest neighbors of the query vector, best first.
func (ix *Index) Search(query []float32, k int) ([]Result, error) {
	if len(query) != ix.dims {
		return nil, fmt.Errorf("vector: dimension mismatch: got %d, want %d", len(query), ix.dims)
	}
	if k <= 0 {
		k = 10
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if len(ix.idMap) == 0 {
		return nil, nil
	}

	normalized := make([]float32, len(query))
	copy(normalized, query)
	normalize(normalized)

	// Over-fetch to compensate for lazily deleted orphans.
	orphans := ix.graph.Len() - len(ix.idMap)
	nodes := ix.graph.Search(normalized, k+orphans)

	results := make([]Result, 0, k)
	for _, node := range nodes {
		id, ok := ix.keyMap[node.Key]
		if !ok {
			continue // orphaned by lazy deletion
		}
		dist := ix.graph.Distance(normalized, node.Value)
		results = append(results, Result{ID: id, Score: 1 - dist/2})
		if len(results) == k {
			break
		}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results, nil
}

// Clear drops every vector. Used when switching the active vault.
func (ix *Index) Clear() {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.graph = newGraph()
	ix.idMap = make(map[string]uint64)
	ix.keyMap = make(map[uint64]string)
	ix.nextKey = 0
}

// Len returns the number of live vectors.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.idMap)
}

// normalize scales v to unit length in place. Zero vectors stay zero.
func normalize(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}
