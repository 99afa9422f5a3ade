package cache

import (
	"sync"
	"time"
)

// LocalTier is the per-replica in-process cache. It is only ever a
// performance optimization over the shared tier; dropping it entirely
// costs extra origin fetches, never correctness.
type LocalTier struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	clock   func() time.Time
}

// NewLocalTier builds an empty local tier. A nil clock defaults to time.Now.
func NewLocalTier(clock func() time.Time) *LocalTier {
	if clock == nil {
		clock = time.Now
	}
	return &LocalTier{
		entries: make(map[string]*Entry),
		clock:   clock,
	}
}

// Get returns the entry for key, fresh or stale, or nil. Entries past their
// stale-if-error horizon are evicted on sight.
func (t *LocalTier) Get(key string) *Entry {
	t.mu.RLock()
	entry := t.entries[key]
	t.mu.RUnlock()
	if entry == nil {
		return nil
	}
	if !entry.Servable(t.clock()) {
		t.Delete(key)
		return nil
	}
	return entry
}

// Set stores an entry.
func (t *LocalTier) Set(key string, entry *Entry) {
	t.mu.Lock()
	t.entries[key] = entry
	t.mu.Unlock()
}

// Delete removes an entry. Deleting a missing key is not an error.
func (t *LocalTier) Delete(key string) {
	t.mu.Lock()
	delete(t.entries, key)
	t.mu.Unlock()
}

// Len reports the number of resident entries.
func (t *LocalTier) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Sweep evicts every entry past its stale-if-error horizon and returns the
// number removed.
func (t *LocalTier) Sweep() int {
	now := t.clock()
	t.mu.Lock()
	defer t.mu.Unlock()
	removed := 0
	for key, entry := range t.entries {
		if !entry.Servable(now) {
			delete(t.entries, key)
			removed++
		}
	}
	return removed
}
