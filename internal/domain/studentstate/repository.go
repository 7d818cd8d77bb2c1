package studentstate

import (
	"context"
	"time"
)

// ═══════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// These interfaces define the persistence contract for student module state.
// Implementations live in infrastructure/persistence.
// ═══════════════════════════════════════════════════════════════════════════

// Repository defines the persistence operations for StudentModule records.
type Repository interface {
	// Create persists a new record.
	// Returns shared.ErrStateAlreadyExists when a record already exists for
	// (student, module state key).
	Create(ctx context.Context, record *StudentModule) error

	// Get returns the record for (student, module state key).
	// Returns shared.ErrStateNotFound when no record exists.
	Get(ctx context.Context, studentID, moduleStateKey string) (*StudentModule, error)

	// GetForStudent returns the records a student has for any of the given
	// keys. Missing keys are simply absent from the result; this is the
	// prefetch path for the per-request state cache.
	GetForStudent(ctx context.Context, studentID string, keys []string) ([]*StudentModule, error)

	// Save updates an existing record's state, grade, and max grade.
	// Returns shared.ErrStateNotFound when the record does not exist.
	Save(ctx context.Context, record *StudentModule) error

	// CountForModule returns how many students have a record for the key.
	CountForModule(ctx context.Context, moduleStateKey string) (int, error)

	// GradeDistribution returns the grade histogram for one module state
	// key: buckets of (grade, student count) ordered by grade, with the
	// NULL-grade bucket first when present.
	GradeDistribution(ctx context.Context, moduleStateKey string) ([]GradeBucket, error)
}

// GradeBucket is one histogram bucket: a grade value (nil for ungraded
// records) and the number of students holding it.
type GradeBucket struct {
	Grade *float64
	Count int
}

// Cache defines the read-through cache for StudentModule records, keyed by
// (student, module state key). Implementations live in persistence/redis.
type Cache interface {
	// Get returns a cached record, or shared.ErrStateNotFound on a miss.
	Get(ctx context.Context, studentID, moduleStateKey string) (*StudentModule, error)

	// Set caches a record with the given TTL.
	Set(ctx context.Context, record *StudentModule, ttl time.Duration) error

	// Invalidate drops the cached record for (student, module state key).
	Invalidate(ctx context.Context, studentID, moduleStateKey string) error
}
