// Package storage provides read-only access to the vault file tree.
package storage

import (
	"strings"
	"time"
)

// FileMeta is a lightweight description of one vault file.
type FileMeta struct {
	Path      string
	UpdatedAt time.Time
}

// Provider abstracts vault reads so the indexer can be tested against
// temporary directories.
type Provider interface {
	// List returns metadata for every indexable file under the root.
	List() ([]FileMeta, error)
	// Read returns the raw bytes of a vault file by relative path.
	Read(path string) ([]byte, error)
}

// skippedDirs are dependency-style directories never scanned or watched.
var skippedDirs = map[string]struct{}{
	"node_modules": {},
	"vendor":       {},
	"bower_components": {},
	"__pycache__":  {},
}

// SkipDir reports whether a directory name is excluded from indexing:
// hidden entries and dependency directories.
func SkipDir(name string) bool {
	if strings.HasPrefix(name, ".") && name != "." {
		return true
	}
	_, ok := skippedDirs[name]
	return ok
}

// Indexable reports whether a vault-relative path names an indexable file:
// it must carry the .md extension and no hidden path segment.
func Indexable(rel string) bool {
	if !strings.HasSuffix(rel, ".md") {
		return false
	}
	for _, seg := range strings.Split(rel, "/") {
		if strings.HasPrefix(seg, ".") {
			return false
		}
	}
	return true
}
