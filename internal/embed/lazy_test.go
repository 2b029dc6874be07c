package embed

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestLazy_BuildsExactlyOnceUnderConcurrency(t *testing.T) {
	var builds atomic.Int32
	l := NewLazy(StaticDimensions, "static-hash", func(context.Context) (Embedder, error) {
		builds.Add(1)
		return NewStaticEmbedder(), nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Embed(context.Background(), "hello world"); err != nil {
				t.Errorf("Embed: %v", err)
			}
		}()
	}
	wg.Wait()

	if builds.Load() != 1 {
		t.Errorf("constructor ran %d times, want 1", builds.Load())
	}
}

func TestLazy_BuildFailureIsSticky(t *testing.T) {
	var builds atomic.Int32
	l := NewLazy(8, "broken", func(context.Context) (Embedder, error) {
		builds.Add(1)
		return nil, errors.New("model load failed")
	})

	for i := 0; i < 3; i++ {
		if _, err := l.Embed(context.Background(), "text"); err == nil {
			t.Fatal("expected error from failed build")
		}
	}
	if builds.Load() != 1 {
		t.Errorf("constructor ran %d times, want 1 (failure remembered)", builds.Load())
	}
	if l.Available(context.Background()) {
		t.Error("Available should be false after failed build")
	}
}

func TestLazy_MetadataWithoutBuild(t *testing.T) {
	built := false
	l := NewLazy(768, "some-model", func(context.Context) (Embedder, error) {
		built = true
		return NewStaticEmbedder(), nil
	})
	if l.Dimensions() != 768 || l.ModelName() != "some-model" {
		t.Errorf("metadata = %d/%q", l.Dimensions(), l.ModelName())
	}
	if built {
		t.Error("metadata access must not force the build")
	}
	if err := l.Close(); err != nil {
		t.Errorf("Close before build: %v", err)
	}
}

func TestNew_ProviderSelection(t *testing.T) {
	e, err := New(Config{Provider: ProviderStatic})
	if err != nil || e.ModelName() != "static-hash" {
		t.Errorf("static provider: %v %v", e, err)
	}

	e, err = New(Config{Provider: ProviderDisabled})
	if err != nil {
		t.Fatalf("disabled provider: %v", err)
	}
	if v, err := e.Embed(context.Background(), "anything"); err != nil || v != nil {
		t.Errorf("disabled embedder returned %v, %v", v, err)
	}

	if _, err := New(Config{Provider: "bogus"}); err == nil {
		t.Error("expected error for unknown provider")
	}
}
