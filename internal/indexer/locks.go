package indexer

import "sync"

// keyedLocks provides per-document mutual exclusion so overlapping events
// for the same path never interleave their index writes, while events for
// different documents proceed in parallel.
type keyedLocks struct {
	mu sync.Mutex
	m  map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// lock acquires the lock for key and returns its release func.
func (kl *keyedLocks) lock(key string) func() {
	kl.mu.Lock()
	if kl.m == nil {
		kl.m = make(map[string]*lockEntry)
	}
	e := kl.m[key]
	if e == nil {
		e = &lockEntry{}
		kl.m[key] = e
	}
	e.refs++
	kl.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		kl.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(kl.m, key)
		}
		kl.mu.Unlock()
	}
}
