package postgres

import (
	"context"
	"fmt"

	"github.com/campus-hub/courseware-hub/internal/domain/shared"
	"github.com/campus-hub/courseware-hub/internal/domain/studentstate"
)

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT MODULE REPOSITORY
// Persists per-student module state records. The (student_id, module_state_key)
// unique constraint is what makes lazy record creation race-safe: concurrent
// first accesses collapse into one row.
// ══════════════════════════════════════════════════════════════════════════════

// StudentModuleRepository implements studentstate.Repository on PostgreSQL.
type StudentModuleRepository struct {
	conn *Connection
}

// NewStudentModuleRepository creates a StudentModuleRepository.
func NewStudentModuleRepository(conn *Connection) *StudentModuleRepository {
	return &StudentModuleRepository{conn: conn}
}

const studentModuleColumns = `id, student_id, module_type, module_state_key, state, grade, max_grade, created_at, updated_at`

// Create implements studentstate.Repository.
func (r *StudentModuleRepository) Create(ctx context.Context, rec *studentstate.StudentModule) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO student_modules
			(id, student_id, module_type, module_state_key, state, grade, max_grade, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.conn.Exec(ctx, query,
		rec.ID,
		rec.StudentID,
		rec.ModuleType,
		rec.ModuleStateKey,
		stateArg(rec),
		rec.Grade,
		rec.MaxGrade,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrStateAlreadyExists
		}
		return fmt.Errorf("postgres: create student module: %w", err)
	}

	return nil
}

// Get implements studentstate.Repository.
func (r *StudentModuleRepository) Get(ctx context.Context, studentID, moduleStateKey string) (*studentstate.StudentModule, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM student_modules
		WHERE student_id = $1 AND module_state_key = $2
	`, studentModuleColumns)

	rec, err := r.scanRecord(r.conn.QueryRow(ctx, query, studentID, moduleStateKey))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrStateNotFound
		}
		return nil, fmt.Errorf("postgres: get student module: %w", err)
	}
	return rec, nil
}

// GetForStudent implements studentstate.Repository. This is the state cache
// prefetch: one query for all keys a request may touch.
func (r *StudentModuleRepository) GetForStudent(ctx context.Context, studentID string, keys []string) ([]*studentstate.StudentModule, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`
		SELECT %s FROM student_modules
		WHERE student_id = $1 AND module_state_key = ANY($2)
	`, studentModuleColumns)

	rows, err := r.conn.Query(ctx, query, studentID, keys)
	if err != nil {
		return nil, fmt.Errorf("postgres: prefetch student modules: %w", err)
	}
	defer rows.Close()

	var records []*studentstate.StudentModule
	for rows.Next() {
		rec, err := r.scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan student module: %w", err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// Save implements studentstate.Repository.
func (r *StudentModuleRepository) Save(ctx context.Context, rec *studentstate.StudentModule) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	query := `
		UPDATE student_modules
		SET state = $3, grade = $4, max_grade = $5
		WHERE student_id = $1 AND module_state_key = $2
	`

	tag, err := r.conn.Exec(ctx, query,
		rec.StudentID,
		rec.ModuleStateKey,
		stateArg(rec),
		rec.Grade,
		rec.MaxGrade,
	)
	if err != nil {
		return fmt.Errorf("postgres: save student module: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrStateNotFound
	}

	return nil
}

// CountForModule implements studentstate.Repository.
func (r *StudentModuleRepository) CountForModule(ctx context.Context, moduleStateKey string) (int, error) {
	var count int
	err := r.conn.QueryRow(ctx,
		`SELECT COUNT(*) FROM student_modules WHERE module_state_key = $1`,
		moduleStateKey,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres: count student modules: %w", err)
	}
	return count, nil
}

// GradeDistribution implements studentstate.Repository. NULLS FIRST puts the
// ungraded bucket ahead of the graded ones.
func (r *StudentModuleRepository) GradeDistribution(ctx context.Context, moduleStateKey string) ([]studentstate.GradeBucket, error) {
	query := `
		SELECT grade, COUNT(*)
		FROM student_modules
		WHERE module_state_key = $1
		GROUP BY grade
		ORDER BY grade ASC NULLS FIRST
	`

	rows, err := r.conn.Query(ctx, query, moduleStateKey)
	if err != nil {
		return nil, fmt.Errorf("postgres: grade distribution: %w", err)
	}
	defer rows.Close()

	var buckets []studentstate.GradeBucket
	for rows.Next() {
		var b studentstate.GradeBucket
		if err := rows.Scan(&b.Grade, &b.Count); err != nil {
			return nil, fmt.Errorf("postgres: scan grade bucket: %w", err)
		}
		buckets = append(buckets, b)
	}

	return buckets, rows.Err()
}

// rowScanner is satisfied by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanRecord reads one student module row.
func (r *StudentModuleRepository) scanRecord(row rowScanner) (*studentstate.StudentModule, error) {
	var (
		rec   studentstate.StudentModule
		state []byte
	)

	err := row.Scan(
		&rec.ID,
		&rec.StudentID,
		&rec.ModuleType,
		&rec.ModuleStateKey,
		&state,
		&rec.Grade,
		&rec.MaxGrade,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.State = state
	return &rec, nil
}

// stateArg returns the state blob as the JSONB argument, mapping empty state
// to NULL.
func stateArg(rec *studentstate.StudentModule) interface{} {
	if len(rec.State) == 0 {
		return nil
	}
	return []byte(rec.State)
}
