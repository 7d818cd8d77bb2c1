// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"

	"github.com/campus-hub/courseware-hub/internal/application/runtime"
	"github.com/campus-hub/courseware-hub/internal/domain/content"
	"github.com/campus-hub/courseware-hub/internal/domain/student"
	"github.com/campus-hub/courseware-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// TABLE OF CONTENTS QUERY
// Builds the course navigation tree: chapters and their sections, with the
// requested chapter/section marked active. Chapters named "hidden" never
// appear.
// ══════════════════════════════════════════════════════════════════════════════

// SectionEntry is one section in the table of contents.
type SectionEntry struct {
	// DisplayName is the section's navigation label.
	DisplayName string `json:"display_name"`

	// URLSegment addresses the section in module URLs.
	URLSegment string `json:"url_segment"`

	// Format is the grading format label ("Homework", "Exam"), if any.
	Format string `json:"format,omitempty"`

	// Due is the human-readable due date, empty when none is set.
	Due string `json:"due,omitempty"`

	// Graded marks sections that count toward the course grade.
	Graded bool `json:"graded"`

	// Active marks the section the student is currently viewing.
	Active bool `json:"active"`
}

// ChapterEntry is one chapter in the table of contents.
type ChapterEntry struct {
	// DisplayName is the chapter's navigation label.
	DisplayName string `json:"display_name"`

	// URLSegment addresses the chapter in module URLs.
	URLSegment string `json:"url_segment"`

	// Sections are the chapter's visible sections.
	Sections []SectionEntry `json:"sections"`

	// Active marks the chapter the student is currently viewing.
	Active bool `json:"active"`
}

// TOCCache caches the navigation structure per course. Active flags are
// per-request and applied after a cache hit.
type TOCCache interface {
	Get(ctx context.Context, courseID string) ([]ChapterEntry, bool, error)
	Set(ctx context.Context, courseID string, chapters []ChapterEntry) error
}

// GetTOCQuery requests a course's table of contents.
type GetTOCQuery struct {
	// User is the requesting student (may be nil for anonymous preview).
	User *student.Student

	// CourseID is the course.
	CourseID string

	// ActiveChapter is the display name of the chapter in view, if any.
	ActiveChapter string

	// ActiveSection is the display name of the section in view, if any.
	ActiveSection string
}

// GetTOCHandler handles GetTOCQuery.
type GetTOCHandler struct {
	loader *runtime.Loader
	cache  TOCCache
}

// NewGetTOCHandler creates a GetTOCHandler. cache may be nil.
func NewGetTOCHandler(loader *runtime.Loader, cache TOCCache) *GetTOCHandler {
	return &GetTOCHandler{loader: loader, cache: cache}
}

// Handle builds the table of contents. Loading goes through the loader so an
// authenticated student's course record is created on first visit.
func (h *GetTOCHandler) Handle(ctx context.Context, q GetTOCQuery) ([]ChapterEntry, error) {
	if chapters, ok := h.cachedChapters(ctx, q.CourseID); ok {
		return markActive(chapters, q.ActiveChapter, q.ActiveSection), nil
	}

	loaded, _, err := h.loader.LoadCourse(ctx, q.User, q.CourseID)
	if err != nil {
		return nil, err
	}

	chapters := buildChapters(loaded.Descriptor)

	if h.cache != nil {
		_ = h.cache.Set(ctx, q.CourseID, chapters)
	}

	return markActive(chapters, q.ActiveChapter, q.ActiveSection), nil
}

// cachedChapters returns the cached structure, if a cache is wired and warm.
func (h *GetTOCHandler) cachedChapters(ctx context.Context, courseID string) ([]ChapterEntry, bool) {
	if h.cache == nil {
		return nil, false
	}
	chapters, ok, err := h.cache.Get(ctx, courseID)
	if err != nil || !ok {
		return nil, false
	}
	return chapters, true
}

// buildChapters converts the course descriptor tree to TOC entries.
func buildChapters(course *content.Descriptor) []ChapterEntry {
	items := course.DisplayItems()
	chapters := make([]ChapterEntry, 0, len(items))

	for _, chapter := range items {
		entry := ChapterEntry{
			DisplayName: chapter.Name(),
			URLSegment:  chapter.Location.URLSegment(),
		}

		sections := chapter.DisplayItems()
		entry.Sections = make([]SectionEntry, 0, len(sections))
		for _, section := range sections {
			entry.Sections = append(entry.Sections, SectionEntry{
				DisplayName: section.Name(),
				URLSegment:  section.Location.URLSegment(),
				Format:      section.Meta(content.MetaFormat, ""),
				Due:         formatDue(section.Meta(content.MetaDue, "")),
				Graded:      section.Meta(content.MetaGraded, "") == "true",
			})
		}

		chapters = append(chapters, entry)
	}

	return chapters
}

// markActive returns a copy of the chapters with active flags set for the
// viewed chapter and section.
func markActive(chapters []ChapterEntry, activeChapter, activeSection string) []ChapterEntry {
	out := make([]ChapterEntry, len(chapters))
	for i, chapter := range chapters {
		out[i] = chapter
		out[i].Active = chapter.DisplayName == activeChapter

		out[i].Sections = make([]SectionEntry, len(chapter.Sections))
		copy(out[i].Sections, chapter.Sections)
		if out[i].Active {
			for j := range out[i].Sections {
				out[i].Sections[j].Active = out[i].Sections[j].DisplayName == activeSection
			}
		}
	}
	return out
}

// formatDue renders an authored due date for display. Unparseable or missing
// dates show as empty rather than failing the TOC.
func formatDue(raw string) string {
	due, err := timeutil.ParseDue(raw)
	if err != nil || due.IsZero() {
		return ""
	}
	return timeutil.FormatDue(due)
}
