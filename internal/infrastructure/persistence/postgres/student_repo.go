package postgres

import (
	"context"
	"fmt"

	"github.com/campus-hub/courseware-hub/internal/domain/shared"
	"github.com/campus-hub/courseware-hub/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// StudentRepository implements student.Repository on PostgreSQL.
type StudentRepository struct {
	conn *Connection
}

// NewStudentRepository creates a StudentRepository.
func NewStudentRepository(conn *Connection) *StudentRepository {
	return &StudentRepository{conn: conn}
}

const studentColumns = `id, email, display_name, password_hash, is_staff, active, created_at, updated_at`

// Create implements student.Repository.
func (r *StudentRepository) Create(ctx context.Context, s *student.Student) error {
	query := `
		INSERT INTO students (id, email, display_name, password_hash, is_staff, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.conn.Exec(ctx, query,
		s.ID,
		s.Email.String(),
		s.DisplayName,
		s.PasswordHash,
		s.IsStaff,
		s.Active,
		s.CreatedAt,
		s.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrStudentAlreadyExists
		}
		return fmt.Errorf("postgres: create student: %w", err)
	}

	return nil
}

// GetByID implements student.Repository.
func (r *StudentRepository) GetByID(ctx context.Context, id string) (*student.Student, error) {
	query := fmt.Sprintf(`SELECT %s FROM students WHERE id = $1`, studentColumns)
	return r.scanStudent(ctx, query, id)
}

// GetByEmail implements student.Repository. The email is normalized before
// lookup so login is case-insensitive.
func (r *StudentRepository) GetByEmail(ctx context.Context, email string) (*student.Student, error) {
	normalized, err := shared.NewEmail(email)
	if err != nil {
		return nil, shared.ErrStudentNotFound
	}
	query := fmt.Sprintf(`SELECT %s FROM students WHERE email = $1`, studentColumns)
	return r.scanStudent(ctx, query, normalized.String())
}

// Update implements student.Repository.
func (r *StudentRepository) Update(ctx context.Context, s *student.Student) error {
	query := `
		UPDATE students
		SET email = $2, display_name = $3, password_hash = $4, is_staff = $5, active = $6
		WHERE id = $1
	`

	tag, err := r.conn.Exec(ctx, query,
		s.ID,
		s.Email.String(),
		s.DisplayName,
		s.PasswordHash,
		s.IsStaff,
		s.Active,
	)
	if err != nil {
		return fmt.Errorf("postgres: update student: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrStudentNotFound
	}

	return nil
}

// Count implements student.Repository.
func (r *StudentRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.conn.QueryRow(ctx, `SELECT COUNT(*) FROM students`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres: count students: %w", err)
	}
	return count, nil
}

// scanStudent runs a single-row student query.
func (r *StudentRepository) scanStudent(ctx context.Context, query string, args ...interface{}) (*student.Student, error) {
	var (
		s     student.Student
		email string
	)

	err := r.conn.QueryRow(ctx, query, args...).Scan(
		&s.ID,
		&email,
		&s.DisplayName,
		&s.PasswordHash,
		&s.IsStaff,
		&s.Active,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrStudentNotFound
		}
		return nil, fmt.Errorf("postgres: get student: %w", err)
	}

	// Stored emails are already normalized; reconstruct the value object
	// without re-validating.
	s.Email = shared.Email(email)

	return &s, nil
}
