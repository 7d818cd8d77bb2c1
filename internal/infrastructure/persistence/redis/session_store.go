package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/campus-hub/courseware-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SESSION STORE
// Bearer tokens map to student IDs. Expiry is handled entirely by Redis TTLs,
// so a restart never resurrects a revoked session.
// ══════════════════════════════════════════════════════════════════════════════

// SessionStore implements student.SessionStore on Redis.
type SessionStore struct {
	cache *Cache
}

// NewSessionStore creates a SessionStore backed by the given Redis cache.
func NewSessionStore(cache *Cache) *SessionStore {
	return &SessionStore{cache: cache}
}

// Create implements student.SessionStore.
func (s *SessionStore) Create(ctx context.Context, studentID string, ttl time.Duration) (string, error) {
	if studentID == "" {
		return "", shared.ErrInvalidInput
	}
	if ttl <= 0 {
		ttl = TTLSessionData
	}

	token := uuid.NewString()
	if err := s.cache.SetString(ctx, SessionKey(token), studentID, ttl); err != nil {
		return "", fmt.Errorf("redis: create session: %w", err)
	}

	return token, nil
}

// Resolve implements student.SessionStore.
func (s *SessionStore) Resolve(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", shared.ErrSessionNotFound
	}

	studentID, err := s.cache.GetString(ctx, SessionKey(token))
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return "", shared.ErrSessionNotFound
		}
		return "", fmt.Errorf("redis: resolve session: %w", err)
	}

	return studentID, nil
}

// Revoke implements student.SessionStore.
func (s *SessionStore) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.cache.Delete(ctx, SessionKey(token)); err != nil {
		return fmt.Errorf("redis: revoke session: %w", err)
	}
	return nil
}
