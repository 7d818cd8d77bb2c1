package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/campus-hub/courseware-hub/internal/application/query"
)

// ══════════════════════════════════════════════════════════════════════════════
// TOC CACHE
// The table of contents only changes when course content is reloaded, so a
// short TTL keeps it fresh enough without an explicit invalidation hook.
// ══════════════════════════════════════════════════════════════════════════════

// TOCCache implements query.TOCCache on Redis.
type TOCCache struct {
	cache *Cache
}

// NewTOCCache creates a TOCCache backed by the given Redis cache.
func NewTOCCache(cache *Cache) *TOCCache {
	return &TOCCache{cache: cache}
}

// Get implements query.TOCCache. The second return reports whether the entry
// was present.
func (t *TOCCache) Get(ctx context.Context, courseID string) ([]query.ChapterEntry, bool, error) {
	var chapters []query.ChapterEntry

	err := t.cache.Get(ctx, TOCKey(courseID), &chapters)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis: get toc: %w", err)
	}

	return chapters, true, nil
}

// Set implements query.TOCCache.
func (t *TOCCache) Set(ctx context.Context, courseID string, chapters []query.ChapterEntry) error {
	if err := t.cache.Set(ctx, TOCKey(courseID), chapters, TTLTOCCache); err != nil {
		return fmt.Errorf("redis: cache toc: %w", err)
	}
	return nil
}
