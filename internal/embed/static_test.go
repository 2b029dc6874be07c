package embed

import (
	"context"
	"math"
	"testing"
)

func TestStaticEmbed_Deterministic(t *testing.T) {
	e := NewStaticEmbedder()
	a, err := e.Embed(context.Background(), "the quick brown fox")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	b, _ := e.Embed(context.Background(), "the quick brown fox")
	if len(a) != StaticDimensions || len(b) != StaticDimensions {
		t.Fatalf("dims = %d/%d, want %d", len(a), len(b), StaticDimensions)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("embedding not deterministic at %d: %f vs %f", i, a[i], b[i])
		}
	}
}

func TestStaticEmbed_Normalized(t *testing.T) {
	e := NewStaticEmbedder()
	v, _ := e.Embed(context.Background(), "some document text about gardening")
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	if math.Abs(math.Sqrt(sum)-1) > 1e-5 {
		t.Errorf("vector magnitude = %f, want 1", math.Sqrt(sum))
	}
}

func TestStaticEmbed_BlankInputYieldsNoVector(t *testing.T) {
	e := NewStaticEmbedder()
	for _, input := range []string{"", "   ", "\n\t"} {
		v, err := e.Embed(context.Background(), input)
		if err != nil {
			t.Fatalf("Embed(%q): %v", input, err)
		}
		if v != nil {
			t.Errorf("Embed(%q) = %v, want nil (no embedding)", input, v)
		}
	}
}

func TestStaticEmbed_SimilarTextScoresCloser(t *testing.T) {
	e := NewStaticEmbedder()
	ctx := context.Background()
	base, _ := e.Embed(ctx, "planting tomatoes in the garden this spring")
	near, _ := e.Embed(ctx, "garden planting guide for tomatoes")
	far, _ := e.Embed(ctx, "quarterly financial report revenue forecast")

	if dot(base, near) <= dot(base, far) {
		t.Errorf("similar text not closer: near=%f far=%f", dot(base, near), dot(base, far))
	}
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}
