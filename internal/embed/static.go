package embed

import (
	"context"
	"hash/fnv"
	"regexp"
	"strings"
)

// StaticEmbedder generates embeddings with a deterministic hash-based
// scheme: no network, no model download, instant startup. Semantic quality
// is reduced compared to a learned model, but results are stable and fast.
type StaticEmbedder struct{}

// stopWords are common English words excluded from token hashing.
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"but": {}, "by": {}, "for": {}, "from": {}, "has": {}, "have": {},
	"in": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {}, "or": {},
	"that": {}, "the": {}, "this": {}, "to": {}, "was": {}, "were": {},
	"will": {}, "with": {},
}

const (
	tokenWeight = 0.7
	ngramWeight = 0.3
	ngramSize   = 3
)

var wordRe = regexp.MustCompile(`[a-z0-9]+`)

// NewStaticEmbedder creates a new static embedder.
func NewStaticEmbedder() *StaticEmbedder {
	return &StaticEmbedder{}
}

// Embed hashes word tokens and character trigrams into a fixed-size vector
// and normalizes it. Blank input yields no embedding.
func (e *StaticEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, nil
	}

	vector := make([]float32, StaticDimensions)
	lowered := strings.ToLower(trimmed)

	for _, token := range wordRe.FindAllString(lowered, -1) {
		if _, skip := stopWords[token]; skip {
			continue
		}
		vector[hashToIndex(token)] += tokenWeight
	}

	compact := strings.Join(strings.Fields(lowered), " ")
	runes := []rune(compact)
	for i := 0; i+ngramSize <= len(runes); i++ {
		vector[hashToIndex(string(runes[i:i+ngramSize]))] += ngramWeight
	}

	return normalizeVector(vector), nil
}

// Dimensions returns the embedding dimension.
func (e *StaticEmbedder) Dimensions() int { return StaticDimensions }

// ModelName returns the model identifier.
func (e *StaticEmbedder) ModelName() string { return "static-hash" }

// Available always reports true: the static embedder has no dependencies.
func (e *StaticEmbedder) Available(context.Context) bool { return true }

// Close releases nothing.
func (e *StaticEmbedder) Close() error { return nil }

var _ Embedder = (*StaticEmbedder)(nil)

func hashToIndex(s string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return int(h.Sum32() % StaticDimensions)
}
