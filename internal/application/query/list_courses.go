package query

import (
	"context"

	"github.com/campus-hub/courseware-hub/internal/domain/content"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST COURSES QUERY
// ══════════════════════════════════════════════════════════════════════════════

// CourseSummary is one course in the catalog listing.
type CourseSummary struct {
	// CourseID identifies the course.
	CourseID string `json:"course_id"`

	// DisplayName is the course title.
	DisplayName string `json:"display_name"`

	// Chapters is the number of visible chapters.
	Chapters int `json:"chapters"`
}

// ListCoursesHandler lists the loaded courses.
type ListCoursesHandler struct {
	store content.Store
}

// NewListCoursesHandler creates a ListCoursesHandler.
func NewListCoursesHandler(store content.Store) *ListCoursesHandler {
	return &ListCoursesHandler{store: store}
}

// Handle returns summaries of every loaded course.
func (h *ListCoursesHandler) Handle(ctx context.Context) ([]CourseSummary, error) {
	courses, err := h.store.Courses(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]CourseSummary, 0, len(courses))
	for _, course := range courses {
		out = append(out, CourseSummary{
			CourseID:    course.Location.Course,
			DisplayName: course.Name(),
			Chapters:    len(course.DisplayItems()),
		})
	}
	return out, nil
}
