package embed

import (
	"context"
	"sync"
)

// Lazy defers construction of an expensive embedder until first use. The
// build runs at most once even under concurrent first use; a failed build
// is remembered and every subsequent call reports the same error.
type Lazy struct {
	dims  int
	name  string
	build func(ctx context.Context) (Embedder, error)

	once  sync.Once
	inner Embedder
	err   error
}

// NewLazy wraps a constructor. dims and name must be known up front so the
// rest of the system can size vector storage without forcing the build.
func NewLazy(dims int, name string, build func(ctx context.Context) (Embedder, error)) *Lazy {
	return &Lazy{dims: dims, name: name, build: build}
}

func (l *Lazy) ensure(ctx context.Context) error {
	l.once.Do(func() {
		l.inner, l.err = l.build(ctx)
	})
	return l.err
}

// Embed builds the underlying embedder on first call, then delegates.
func (l *Lazy) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := l.ensure(ctx); err != nil {
		return nil, err
	}
	return l.inner.Embed(ctx, text)
}

// Dimensions returns the configured dimensionality without forcing a build.
func (l *Lazy) Dimensions() int {
	return l.dims
}

// ModelName returns the configured model name without forcing a build.
func (l *Lazy) ModelName() string {
	return l.name
}

// Available forces the build and reports readiness.
func (l *Lazy) Available(ctx context.Context) bool {
	if err := l.ensure(ctx); err != nil {
		return false
	}
	return l.inner.Available(ctx)
}

// Close releases the underlying embedder if it was ever built.
func (l *Lazy) Close() error {
	if l.inner != nil {
		return l.inner.Close()
	}
	return nil
}

var _ Embedder = (*Lazy)(nil)
