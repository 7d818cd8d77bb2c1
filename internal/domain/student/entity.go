// Package student contains the learner identity domain: the Student entity,
// credential handling, and the repository and session contracts. Authenticated
// access is what triggers lazy creation of student module state records, so
// this package is the authorization anchor of the runtime.
package student

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/campus-hub/courseware-hub/internal/domain/shared"
)

// Student is a registered learner.
type Student struct {
	// ID is the internal record UUID.
	ID string

	// Email is the normalized login email. Unique.
	Email shared.Email

	// DisplayName is shown in course UIs.
	DisplayName string

	// PasswordHash is the bcrypt hash of the password.
	PasswordHash []byte

	// IsStaff grants access to staff debug output and admin endpoints.
	IsStaff bool

	// Active is false for deactivated accounts.
	Active bool

	// CreatedAt is when the account was created.
	CreatedAt time.Time

	// UpdatedAt is when the account was last modified.
	UpdatedAt time.Time
}

// NewParams holds the inputs for registering a student.
type NewParams struct {
	Email       string
	DisplayName string
	Password    string
	IsStaff     bool
}

// MinPasswordLength is the minimum accepted password length.
const MinPasswordLength = 8

// New registers a new student with a freshly hashed password.
func New(params NewParams) (*Student, error) {
	email, err := shared.NewEmail(params.Email)
	if err != nil {
		return nil, err
	}

	if len(params.Password) < MinPasswordLength {
		return nil, shared.NewDomainError("student", "New", shared.ErrInvalidInput,
			"password too short")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, shared.WrapError("student", "New", shared.ErrInvalidInput,
			"failed to hash password", err)
	}

	now := time.Now().UTC()
	return &Student{
		ID:           uuid.NewString(),
		Email:        email,
		DisplayName:  params.DisplayName,
		PasswordHash: hash,
		IsStaff:      params.IsStaff,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// CheckPassword verifies a password attempt against the stored hash.
func (s *Student) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword(s.PasswordHash, []byte(password)) == nil
}

// SetPassword replaces the password hash.
func (s *Student) SetPassword(password string) error {
	if len(password) < MinPasswordLength {
		return shared.NewDomainError("student", "SetPassword", shared.ErrInvalidInput,
			"password too short")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return shared.WrapError("student", "SetPassword", shared.ErrInvalidInput,
			"failed to hash password", err)
	}
	s.PasswordHash = hash
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// Seed returns the per-student randomization seed passed to runtime modules.
// Anonymous access uses seed 0; SeedFor handles the nil case.
func (s *Student) Seed() int64 {
	u, err := uuid.Parse(s.ID)
	if err != nil {
		return 0
	}
	// Fold the first 8 bytes of the UUID into a stable seed.
	var seed int64
	for _, b := range u[:8] {
		seed = seed<<8 | int64(b)
	}
	if seed < 0 {
		seed = -seed
	}
	return seed
}

// SeedFor returns the randomization seed for a possibly-nil student.
func SeedFor(s *Student) int64 {
	if s == nil {
		return 0
	}
	return s.Seed()
}

// IsAuthenticated reports whether the student represents a real, active
// account (nil receivers stand for anonymous requests).
func (s *Student) IsAuthenticated() bool {
	return s != nil && s.Active
}
