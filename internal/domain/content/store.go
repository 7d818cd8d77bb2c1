package content

import (
	"context"
)

// Store is the content store contract: resolves descriptors by location.
// Implementations live in infrastructure (filesystem-backed JSON courses).
type Store interface {
	// GetItem returns the descriptor at the given location.
	// Returns shared.ErrItemNotFound when the location is unknown.
	GetItem(ctx context.Context, loc Location) (*Descriptor, error)

	// GetCourse returns the root descriptor of a course.
	// Returns shared.ErrCourseNotFound when the course is unknown.
	GetCourse(ctx context.Context, courseID string) (*Descriptor, error)

	// Courses lists the root descriptors of all loaded courses.
	Courses(ctx context.Context) ([]*Descriptor, error)
}
