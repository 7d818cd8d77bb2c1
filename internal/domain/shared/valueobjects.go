// Package shared contains common domain types, errors, events, and value objects.
package shared

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ═══════════════════════════════════════════════════════════════════════════
// StudentID - internal UUID identifier
// ═══════════════════════════════════════════════════════════════════════════

// StudentID is the internal unique identifier of a student (UUID string).
type StudentID string

var uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// IsValid checks that the StudentID is a well-formed UUID.
func (s StudentID) IsValid() bool {
	return uuidRegex.MatchString(string(s))
}

// String returns the string representation.
func (s StudentID) String() string {
	return string(s)
}

// IsEmpty returns true for the zero value.
func (s StudentID) IsEmpty() bool {
	return s == ""
}

// NewStudentID validates and wraps a raw ID string.
func NewStudentID(id string) (StudentID, error) {
	s := StudentID(id)
	if !s.IsValid() {
		return "", fmt.Errorf("%w: %q is not a valid student ID", ErrInvalidID, id)
	}
	return s, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Email
// ═══════════════════════════════════════════════════════════════════════════

// Email is a student email address.
type Email string

var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// IsValid checks that the email looks well-formed.
func (e Email) IsValid() bool {
	return emailRegex.MatchString(string(e))
}

// String returns the string representation.
func (e Email) String() string {
	return string(e)
}

// Normalize lowercases and trims the address.
func (e Email) Normalize() Email {
	return Email(strings.ToLower(strings.TrimSpace(string(e))))
}

// NewEmail validates and normalizes a raw address.
func NewEmail(addr string) (Email, error) {
	e := Email(addr).Normalize()
	if !e.IsValid() {
		return "", fmt.Errorf("%w: %q is not a valid email", ErrInvalidFormat, addr)
	}
	return e, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// CourseID
// ═══════════════════════════════════════════════════════════════════════════

// CourseID identifies a course (e.g., "mit-6002x-2024").
type CourseID string

var courseIDRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]{1,99}$`)

// IsValid checks course ID format.
func (c CourseID) IsValid() bool {
	return courseIDRegex.MatchString(string(c))
}

// String returns the string representation.
func (c CourseID) String() string {
	return string(c)
}

// NewCourseID validates and wraps a raw course ID.
func NewCourseID(id string) (CourseID, error) {
	c := CourseID(id)
	if !c.IsValid() {
		return "", fmt.Errorf("%w: %q is not a valid course ID", ErrInvalidID, id)
	}
	return c, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Grade
// ═══════════════════════════════════════════════════════════════════════════

// Grade is a nullable score on a module: nil until the module produces one.
// Grades are compared by value and validity when deciding whether to persist.
type Grade struct {
	value float64
	valid bool
}

// NewGrade creates a present grade.
func NewGrade(v float64) Grade {
	return Grade{value: v, valid: true}
}

// NoGrade is the absent grade.
func NoGrade() Grade {
	return Grade{}
}

// GradeFromPtr converts a nullable float into a Grade.
func GradeFromPtr(p *float64) Grade {
	if p == nil {
		return NoGrade()
	}
	return NewGrade(*p)
}

// Valid reports whether a grade is present.
func (g Grade) Valid() bool {
	return g.valid
}

// Value returns the grade value; zero when absent.
func (g Grade) Value() float64 {
	return g.value
}

// Ptr returns the grade as a nullable float for persistence.
func (g Grade) Ptr() *float64 {
	if !g.valid {
		return nil
	}
	v := g.value
	return &v
}

// Equals compares two grades by validity and value.
func (g Grade) Equals(other Grade) bool {
	if g.valid != other.valid {
		return false
	}
	if !g.valid {
		return true
	}
	return g.value == other.value
}

// ═══════════════════════════════════════════════════════════════════════════
// TimeRange
// ═══════════════════════════════════════════════════════════════════════════

// TimeRange is a half-open [From, To) interval.
type TimeRange struct {
	From time.Time
	To   time.Time
}

// IsValid checks that From precedes To.
func (t TimeRange) IsValid() bool {
	return t.From.Before(t.To)
}

// Duration returns the range length.
func (t TimeRange) Duration() time.Duration {
	return t.To.Sub(t.From)
}

// Contains reports whether tm falls inside the range.
func (t TimeRange) Contains(tm time.Time) bool {
	return !tm.Before(t.From) && tm.Before(t.To)
}

// ═══════════════════════════════════════════════════════════════════════════
// Pagination
// ═══════════════════════════════════════════════════════════════════════════

// Pagination carries page-based listing parameters.
type Pagination struct {
	Page     int
	PageSize int
}

// Pagination limits.
const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// Offset returns the row offset for the page.
func (p Pagination) Offset() int {
	if p.Page <= 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit()
}

// Limit returns the clamped page size.
func (p Pagination) Limit() int {
	if p.PageSize <= 0 {
		return DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		return MaxPageSize
	}
	return p.PageSize
}

// NewPagination clamps raw page parameters.
func NewPagination(page, pageSize int) Pagination {
	if page < 1 {
		page = 1
	}
	return Pagination{Page: page, PageSize: pageSize}
}

// DefaultPagination returns the first page with the default size.
func DefaultPagination() Pagination {
	return Pagination{Page: 1, PageSize: DefaultPageSize}
}
