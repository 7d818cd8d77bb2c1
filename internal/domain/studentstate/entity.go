// Package studentstate contains the per-student persisted module state domain:
// the StudentModule record, its invariants, and the repository contracts.
// One record exists per (student, module usage key); modules that declare a
// shared-state key additionally share one record per (student, shared key).
package studentstate

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/campus-hub/courseware-hub/internal/domain/shared"
)

// StudentModule is the persisted state of one student on one module. The
// ModuleStateKey is either the module's usage key (instance state) or the
// descriptor's shared-state key (state shared across modules).
type StudentModule struct {
	// ID is the internal record UUID.
	ID string

	// StudentID is the internal ID of the owning student.
	StudentID string

	// ModuleType is the category of the module that created the record.
	ModuleType string

	// ModuleStateKey is the usage key or shared-state key. Unique together
	// with StudentID.
	ModuleStateKey string

	// State is the opaque module state blob (JSON).
	State json.RawMessage

	// Grade is the current grade; nil until the module produces a score.
	Grade *float64

	// MaxGrade is the maximum achievable grade; nil when the module has no
	// score.
	MaxGrade *float64

	// CreatedAt is when the record was first persisted.
	CreatedAt time.Time

	// UpdatedAt is when the record was last saved.
	UpdatedAt time.Time
}

// New creates a fresh StudentModule record for first persistence.
func New(studentID, moduleType, moduleStateKey string, state json.RawMessage, maxGrade *float64) *StudentModule {
	now := time.Now().UTC()
	return &StudentModule{
		ID:             uuid.NewString(),
		StudentID:      studentID,
		ModuleType:     moduleType,
		ModuleStateKey: moduleStateKey,
		State:          state,
		MaxGrade:       maxGrade,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Validate checks record invariants.
func (m *StudentModule) Validate() error {
	if m.StudentID == "" {
		return shared.NewDomainError("studentstate", "Validate", shared.ErrEmptyValue,
			"student ID is required")
	}
	if m.ModuleStateKey == "" {
		return shared.NewDomainError("studentstate", "Validate", shared.ErrEmptyValue,
			"module state key is required")
	}
	if m.ModuleType == "" {
		return shared.NewDomainError("studentstate", "Validate", shared.ErrEmptyValue,
			"module type is required")
	}
	if m.Grade != nil {
		if *m.Grade < 0 {
			return shared.ErrInvalidGrade
		}
		if m.MaxGrade != nil && *m.Grade > *m.MaxGrade {
			return shared.ErrInvalidGrade
		}
	}
	return nil
}

// GradeValue returns the grade as a comparable value object.
func (m *StudentModule) GradeValue() shared.Grade {
	return shared.GradeFromPtr(m.Grade)
}

// SetGrade replaces the grade.
func (m *StudentModule) SetGrade(g shared.Grade) {
	m.Grade = g.Ptr()
}

// StateEquals compares the state blob against another snapshot byte-wise.
// Save decisions hinge on this: state is written back only when it changed.
func (m *StudentModule) StateEquals(other json.RawMessage) bool {
	return bytes.Equal(m.State, other)
}

// Snapshot captures the fields consulted by save-if-changed logic.
type Snapshot struct {
	Grade shared.Grade
	State json.RawMessage
}

// TakeSnapshot copies the current grade and state for later comparison.
func (m *StudentModule) TakeSnapshot() Snapshot {
	state := make(json.RawMessage, len(m.State))
	copy(state, m.State)
	return Snapshot{
		Grade: m.GradeValue(),
		State: state,
	}
}

// ChangedSince reports whether grade or state differ from the snapshot.
func (m *StudentModule) ChangedSince(snap Snapshot) (gradeChanged, stateChanged bool) {
	gradeChanged = !m.GradeValue().Equals(snap.Grade)
	stateChanged = !m.StateEquals(snap.State)
	return gradeChanged, stateChanged
}
