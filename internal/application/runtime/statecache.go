// Package runtime assembles content descriptors, student state, and the
// module registry into live runtime modules for one request. The Loader is
// the only place where module instances are constructed; everything above it
// (commands, queries, HTTP) works with loaded modules.
package runtime

import (
	"context"
	"sync"

	"github.com/campus-hub/courseware-hub/internal/domain/content"
	"github.com/campus-hub/courseware-hub/internal/domain/student"
	"github.com/campus-hub/courseware-hub/internal/domain/studentstate"
)

// DefaultCacheDepth is how deep below the requested descriptor state records
// are prefetched. Depth 2 covers the common chapter -> sequence -> leaf render.
const DefaultCacheDepth = 2

// ══════════════════════════════════════════════════════════════════════════════
// STATE CACHE
// A per-request cache of StudentModule records, prefetched in one query so
// that rendering a subtree does not issue one state lookup per module.
// ══════════════════════════════════════════════════════════════════════════════

// StateCache holds the state records of one student for one request. It is
// populated up front by Prefetch and appended to as the loader lazily creates
// records for modules outside the prefetch window.
type StateCache struct {
	mu        sync.RWMutex
	studentID string
	records   map[string]*studentstate.StudentModule
}

// NewStateCache creates an empty cache for a student. An empty studentID means
// an anonymous request; the cache stays empty and lookups always miss.
func NewStateCache(studentID string) *StateCache {
	return &StateCache{
		studentID: studentID,
		records:   make(map[string]*studentstate.StudentModule),
	}
}

// PrefetchStateCache builds a cache and fills it with every record the student
// has for the descriptor's subtree down to depth. Anonymous users get an empty
// cache.
func PrefetchStateCache(
	ctx context.Context,
	repo studentstate.Repository,
	user *student.Student,
	desc *content.Descriptor,
	depth int,
) (*StateCache, error) {
	if !user.IsAuthenticated() {
		return NewStateCache(""), nil
	}

	cache := NewStateCache(user.ID)

	keys := desc.UsageKeys(depth)
	if len(keys) == 0 {
		return cache, nil
	}

	records, err := repo.GetForStudent(ctx, user.ID, keys)
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		cache.Append(rec)
	}

	return cache, nil
}

// StudentID returns the student the cache belongs to ("" for anonymous).
func (c *StateCache) StudentID() string {
	return c.studentID
}

// Lookup returns the cached record for a module state key.
func (c *StateCache) Lookup(moduleStateKey string) (*studentstate.StudentModule, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.records[moduleStateKey]
	return rec, ok
}

// Append adds a record to the cache, replacing any record under the same key.
func (c *StateCache) Append(rec *studentstate.StudentModule) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records[rec.ModuleStateKey] = rec
}

// Len returns the number of cached records.
func (c *StateCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}
