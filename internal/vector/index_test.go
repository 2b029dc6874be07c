package vector

import (
	"testing"
)

func TestAddAndSearch(t *testing.T) {
	ix := New(3)
	_ = ix.Add("x", []float32{1, 0, 0})
	_ = ix.Add("y", []float32{0, 1, 0})
	_ = ix.Add("z", []float32{0.9, 0.1, 0})

	results, err := ix.Search([]float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %+v, want 2", results)
	}
	if results[0].ID != "x" {
		t.Errorf("best match = %q, want x", results[0].ID)
	}
	if results[1].ID != "z" {
		t.Errorf("second match = %q, want z", results[1].ID)
	}
	for _, r := range results {
		if r.Score < 0 || r.Score > 1 {
			t.Errorf("score %f out of [0,1]", r.Score)
		}
	}
	if results[0].Score < results[1].Score {
		t.Error("results not ordered best first")
	}
}

func TestDimensionMismatch(t *testing.T) {
	ix := New(3)
	if err := ix.Add("x", []float32{1, 0}); err == nil {
		t.Error("expected dimension error on Add")
	}
	if _, err := ix.Search([]float32{1}, 1); err == nil {
		t.Error("expected dimension error on Search")
	}
}

func TestDelete_ExcludedFromResults(t *testing.T) {
	ix := New(2)
	_ = ix.Add("a", []float32{1, 0})
	_ = ix.Add("b", []float32{0, 1})
	ix.Delete("a")

	if ix.Len() != 1 {
		t.Errorf("Len = %d, want 1", ix.Len())
	}
	results, err := ix.Search([]float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for _, r := range results {
		if r.ID == "a" {
			t.Error("deleted id surfaced in results")
		}
	}
}

func TestAdd_ReplacesExisting(t *testing.T) {
	ix := New(2)
	_ = ix.Add("a", []float32{1, 0})
	_ = ix.Add("a", []float32{0, 1})

	if ix.Len() != 1 {
		t.Errorf("Len = %d, want 1 after replacement", ix.Len())
	}
	results, _ := ix.Search([]float32{0, 1}, 1)
	if len(results) != 1 || results[0].ID != "a" || results[0].Score < 0.99 {
		t.Errorf("results = %+v, want replaced vector to match exactly", results)
	}
}

func TestClearAndEmptySearch(t *testing.T) {
	ix := New(2)
	_ = ix.Add("a", []float32{1, 0})
	ix.Clear()

	if ix.Len() != 0 {
		t.Errorf("Len = %d after Clear, want 0", ix.Len())
	}
	results, err := ix.Search([]float32{1, 0}, 3)
	if err != nil {
		t.Fatalf("Search on empty index: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("results = %+v, want none", results)
	}
}
