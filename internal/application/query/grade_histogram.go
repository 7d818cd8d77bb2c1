package query

import (
	"context"

	"github.com/campus-hub/courseware-hub/internal/domain/content"
	"github.com/campus-hub/courseware-hub/internal/domain/shared"
	"github.com/campus-hub/courseware-hub/internal/domain/student"
	"github.com/campus-hub/courseware-hub/internal/domain/studentstate"
)

// ══════════════════════════════════════════════════════════════════════════════
// GRADE HISTOGRAM QUERY
// Staff-only: how student grades are distributed on one module. Backed by a
// single GROUP BY over the state records.
// ══════════════════════════════════════════════════════════════════════════════

// GradeHistogramQuery requests a module's grade distribution.
type GradeHistogramQuery struct {
	// User must be staff.
	User *student.Student

	// CourseID is the course.
	CourseID string

	// ModuleSegment is the module URL segment.
	ModuleSegment string
}

// HistogramBucket is one grade bucket.
type HistogramBucket struct {
	// Grade is the grade value; nil is the ungraded bucket.
	Grade *float64 `json:"grade"`

	// Count is how many students hold this grade.
	Count int `json:"count"`
}

// GradeHistogram is a module's grade distribution.
type GradeHistogram struct {
	// Location is the module's canonical usage key.
	Location string `json:"location"`

	// Buckets are ordered by grade, ungraded first.
	Buckets []HistogramBucket `json:"buckets"`

	// TotalStudents is the number of students with any record on the module.
	TotalStudents int `json:"total_students"`
}

// GradeHistogramHandler handles GradeHistogramQuery.
type GradeHistogramHandler struct {
	states studentstate.Repository
}

// NewGradeHistogramHandler creates a GradeHistogramHandler.
func NewGradeHistogramHandler(states studentstate.Repository) *GradeHistogramHandler {
	return &GradeHistogramHandler{states: states}
}

// Handle computes the histogram. A distribution where nobody has a grade yet
// collapses to no buckets at all.
func (h *GradeHistogramHandler) Handle(ctx context.Context, q GradeHistogramQuery) (*GradeHistogram, error) {
	if q.User == nil || !q.User.IsStaff {
		return nil, shared.ErrStaffOnly
	}

	loc, err := content.ParseUsageSegment(q.CourseID, q.ModuleSegment)
	if err != nil {
		return nil, err
	}

	buckets, err := h.states.GradeDistribution(ctx, loc.UsageKey())
	if err != nil {
		return nil, err
	}

	total := 0
	for _, b := range buckets {
		total += b.Count
	}

	if len(buckets) == 1 && buckets[0].Grade == nil {
		buckets = nil
	}

	out := make([]HistogramBucket, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, HistogramBucket{Grade: b.Grade, Count: b.Count})
	}

	return &GradeHistogram{
		Location:      loc.UsageKey(),
		Buckets:       out,
		TotalStudents: total,
	}, nil
}
