// Package content contains the course content domain model: module locations,
// descriptor trees, and the content store contract. This is the static side of
// courseware - what a course is made of, independent of any student.
package content

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/campus-hub/courseware-hub/internal/domain/shared"
)

// Location identifies one module within a course. The canonical string form is
//
//	block://{course}/{category}/{name}
//
// which doubles as the module usage key persisted with student state. In URLs
// the module appears as the single segment "{category}@{name}" scoped by the
// course in the path.
type Location struct {
	// Course is the course ID this module belongs to.
	Course string

	// Category is the module category (e.g., "problem", "html", "sequence").
	Category string

	// Name is the unique name of the module within (course, category).
	Name string
}

var locationPartRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

// NewLocation validates and constructs a Location.
func NewLocation(course, category, name string) (Location, error) {
	loc := Location{Course: course, Category: category, Name: name}
	if err := loc.Validate(); err != nil {
		return Location{}, err
	}
	return loc, nil
}

// ParseLocation parses the canonical "block://course/category/name" form.
func ParseLocation(s string) (Location, error) {
	rest, ok := strings.CutPrefix(s, "block://")
	if !ok {
		return Location{}, shared.WrapError("content", "ParseLocation", shared.ErrInvalidFormat,
			"missing block:// prefix", fmt.Errorf("got %q", s))
	}

	parts := strings.Split(rest, "/")
	if len(parts) != 3 {
		return Location{}, shared.WrapError("content", "ParseLocation", shared.ErrInvalidFormat,
			"expected course/category/name", fmt.Errorf("got %q", s))
	}

	return NewLocation(parts[0], parts[1], parts[2])
}

// ParseUsageSegment parses the URL segment form "{category}@{name}" scoped to
// a course.
func ParseUsageSegment(course, segment string) (Location, error) {
	category, name, ok := strings.Cut(segment, "@")
	if !ok {
		return Location{}, shared.WrapError("content", "ParseLocation", shared.ErrInvalidFormat,
			"expected category@name segment", fmt.Errorf("got %q", segment))
	}
	return NewLocation(course, category, name)
}

// Validate checks all location parts.
func (l Location) Validate() error {
	for _, part := range []struct {
		field, value string
	}{
		{"course", l.Course},
		{"category", l.Category},
		{"name", l.Name},
	} {
		if part.value == "" {
			return shared.NewDomainError("content", "Validate", shared.ErrEmptyValue,
				fmt.Sprintf("location %s cannot be empty", part.field))
		}
		if !locationPartRegex.MatchString(part.value) {
			return shared.NewDomainError("content", "Validate", shared.ErrInvalidFormat,
				fmt.Sprintf("location %s %q has invalid characters", part.field, part.value))
		}
	}
	return nil
}

// String returns the canonical usage key form.
func (l Location) String() string {
	return fmt.Sprintf("block://%s/%s/%s", l.Course, l.Category, l.Name)
}

// UsageKey is an alias for String, used where the persistence key is meant.
func (l Location) UsageKey() string {
	return l.String()
}

// URLSegment returns the "{category}@{name}" path segment form.
func (l Location) URLSegment() string {
	return l.Category + "@" + l.Name
}

// IsZero reports whether the location is empty.
func (l Location) IsZero() bool {
	return l == Location{}
}

// HTMLID returns a form of the location safe for use as an HTML element ID.
func (l Location) HTMLID() string {
	return strings.NewReplacer(".", "_", "/", "_").Replace(
		fmt.Sprintf("%s-%s-%s", l.Course, l.Category, l.Name))
}
