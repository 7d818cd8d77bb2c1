package studentstate

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-hub/courseware-hub/internal/domain/shared"
)

func newRecord(t *testing.T) *StudentModule {
	t.Helper()
	rec := New("student-1", "problem", "block://c1/problem/p1", json.RawMessage(`{"attempts":0}`), nil)
	require.NoError(t, rec.Validate())
	return rec
}

func TestNew(t *testing.T) {
	rec := newRecord(t)
	assert.NotEmpty(t, rec.ID)
	assert.Nil(t, rec.Grade)
	assert.False(t, rec.CreatedAt.IsZero())
}

func TestValidate_Required(t *testing.T) {
	rec := newRecord(t)
	rec.StudentID = ""
	assert.ErrorIs(t, rec.Validate(), shared.ErrEmptyValue)

	rec = newRecord(t)
	rec.ModuleStateKey = ""
	assert.ErrorIs(t, rec.Validate(), shared.ErrEmptyValue)
}

func TestValidate_GradeRange(t *testing.T) {
	rec := newRecord(t)
	grade, max := -1.0, 10.0
	rec.Grade = &grade
	rec.MaxGrade = &max
	assert.Error(t, rec.Validate())

	grade = 11.0
	assert.Error(t, rec.Validate())

	grade = 10.0
	assert.NoError(t, rec.Validate())
}

func TestChangedSince_NoChange(t *testing.T) {
	rec := newRecord(t)
	snap := rec.TakeSnapshot()

	gradeChanged, stateChanged := rec.ChangedSince(snap)
	assert.False(t, gradeChanged)
	assert.False(t, stateChanged)
}

func TestChangedSince_StateOnly(t *testing.T) {
	rec := newRecord(t)
	snap := rec.TakeSnapshot()

	rec.State = json.RawMessage(`{"attempts":1}`)

	gradeChanged, stateChanged := rec.ChangedSince(snap)
	assert.False(t, gradeChanged)
	assert.True(t, stateChanged)
}

func TestChangedSince_GradeOnly(t *testing.T) {
	rec := newRecord(t)
	snap := rec.TakeSnapshot()

	rec.SetGrade(shared.NewGrade(0.5))

	gradeChanged, stateChanged := rec.ChangedSince(snap)
	assert.True(t, gradeChanged)
	assert.False(t, stateChanged)
}

func TestChangedSince_NilToZeroGradeIsChange(t *testing.T) {
	// A module producing a score of 0 is different from no score at all.
	rec := newRecord(t)
	snap := rec.TakeSnapshot()

	rec.SetGrade(shared.NewGrade(0))

	gradeChanged, _ := rec.ChangedSince(snap)
	assert.True(t, gradeChanged)
}

func TestSnapshot_IsACopy(t *testing.T) {
	rec := newRecord(t)
	snap := rec.TakeSnapshot()

	// Mutating the live state must not corrupt the snapshot.
	rec.State[2] = 'x'

	_, stateChanged := rec.ChangedSince(snap)
	assert.True(t, stateChanged)
}
