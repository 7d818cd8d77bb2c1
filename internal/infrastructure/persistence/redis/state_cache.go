package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/campus-hub/courseware-hub/internal/domain/shared"
	"github.com/campus-hub/courseware-hub/internal/domain/studentstate"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATE CACHE
// Read-through cache in front of the student_modules table. Entries are
// invalidated on save rather than updated, so a stale entry can only ever
// cause one extra database read.
// ══════════════════════════════════════════════════════════════════════════════

// StateCache implements studentstate.Cache on Redis.
type StateCache struct {
	cache *Cache
}

// NewStateCache creates a StateCache backed by the given Redis cache.
func NewStateCache(cache *Cache) *StateCache {
	return &StateCache{cache: cache}
}

// Get implements studentstate.Cache.
func (s *StateCache) Get(ctx context.Context, studentID, moduleStateKey string) (*studentstate.StudentModule, error) {
	var rec studentstate.StudentModule

	err := s.cache.Get(ctx, ModuleStateKey(studentID, moduleStateKey), &rec)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, shared.ErrStateNotFound
		}
		return nil, fmt.Errorf("redis: get module state: %w", err)
	}

	return &rec, nil
}

// Set implements studentstate.Cache.
func (s *StateCache) Set(ctx context.Context, record *studentstate.StudentModule, ttl time.Duration) error {
	if record == nil {
		return ErrCacheNilValue
	}
	if ttl <= 0 {
		ttl = TTLStateCache
	}

	key := ModuleStateKey(record.StudentID, record.ModuleStateKey)
	if err := s.cache.Set(ctx, key, record, ttl); err != nil {
		return fmt.Errorf("redis: cache module state: %w", err)
	}
	return nil
}

// Invalidate implements studentstate.Cache.
func (s *StateCache) Invalidate(ctx context.Context, studentID, moduleStateKey string) error {
	if err := s.cache.Delete(ctx, ModuleStateKey(studentID, moduleStateKey)); err != nil {
		return fmt.Errorf("redis: invalidate module state: %w", err)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CACHED REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// CachedStateRepository decorates a studentstate.Repository with the state
// cache. Single-record reads go through the cache; writes invalidate. The
// bulk prefetch bypasses the cache since it is one database round trip
// already.
type CachedStateRepository struct {
	repo  studentstate.Repository
	cache studentstate.Cache
}

// NewCachedStateRepository creates a CachedStateRepository.
func NewCachedStateRepository(repo studentstate.Repository, cache studentstate.Cache) *CachedStateRepository {
	return &CachedStateRepository{repo: repo, cache: cache}
}

// Create implements studentstate.Repository.
func (r *CachedStateRepository) Create(ctx context.Context, rec *studentstate.StudentModule) error {
	if err := r.repo.Create(ctx, rec); err != nil {
		return err
	}
	_ = r.cache.Set(ctx, rec, TTLStateCache)
	return nil
}

// Get implements studentstate.Repository.
func (r *CachedStateRepository) Get(ctx context.Context, studentID, moduleStateKey string) (*studentstate.StudentModule, error) {
	if rec, err := r.cache.Get(ctx, studentID, moduleStateKey); err == nil {
		return rec, nil
	}

	rec, err := r.repo.Get(ctx, studentID, moduleStateKey)
	if err != nil {
		return nil, err
	}

	_ = r.cache.Set(ctx, rec, TTLStateCache)
	return rec, nil
}

// GetForStudent implements studentstate.Repository.
func (r *CachedStateRepository) GetForStudent(ctx context.Context, studentID string, keys []string) ([]*studentstate.StudentModule, error) {
	return r.repo.GetForStudent(ctx, studentID, keys)
}

// Save implements studentstate.Repository. The entry is invalidated rather
// than updated so a failed write never leaves a newer cache than database.
func (r *CachedStateRepository) Save(ctx context.Context, rec *studentstate.StudentModule) error {
	_ = r.cache.Invalidate(ctx, rec.StudentID, rec.ModuleStateKey)
	return r.repo.Save(ctx, rec)
}

// CountForModule implements studentstate.Repository.
func (r *CachedStateRepository) CountForModule(ctx context.Context, moduleStateKey string) (int, error) {
	return r.repo.CountForModule(ctx, moduleStateKey)
}

// GradeDistribution implements studentstate.Repository.
func (r *CachedStateRepository) GradeDistribution(ctx context.Context, moduleStateKey string) ([]studentstate.GradeBucket, error) {
	return r.repo.GradeDistribution(ctx, moduleStateKey)
}
