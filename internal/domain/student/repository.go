package student

import (
	"context"
	"time"
)

// Repository defines the persistence operations for students.
// Implementations live in infrastructure/persistence.
type Repository interface {
	// Create persists a new student.
	// Returns shared.ErrStudentAlreadyExists when the email is taken.
	Create(ctx context.Context, s *Student) error

	// GetByID returns a student by internal ID.
	// Returns shared.ErrStudentNotFound when no student exists.
	GetByID(ctx context.Context, id string) (*Student, error)

	// GetByEmail returns a student by normalized email.
	// Returns shared.ErrStudentNotFound when no student exists.
	GetByEmail(ctx context.Context, email string) (*Student, error)

	// Update persists changes to an existing student.
	// Returns shared.ErrStudentNotFound when the student does not exist.
	Update(ctx context.Context, s *Student) error

	// Count returns the total number of students.
	Count(ctx context.Context) (int, error)
}

// SessionStore issues and resolves bearer session tokens.
// Implementations live in persistence/redis.
type SessionStore interface {
	// Create issues a new session token for the student.
	Create(ctx context.Context, studentID string, ttl time.Duration) (token string, err error)

	// Resolve returns the student ID for a token.
	// Returns shared.ErrSessionNotFound for unknown or expired tokens.
	Resolve(ctx context.Context, token string) (studentID string, err error)

	// Revoke deletes a session token.
	Revoke(ctx context.Context, token string) error
}
