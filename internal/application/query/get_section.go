package query

import (
	"context"

	"github.com/campus-hub/courseware-hub/internal/application/runtime"
	"github.com/campus-hub/courseware-hub/internal/domain/shared"
	"github.com/campus-hub/courseware-hub/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET SECTION QUERY
// Resolves a chapter/section pair by display name and renders the section.
// Names are what appears in navigation, so lookup is a linear scan of the
// course tree rather than an index.
// ══════════════════════════════════════════════════════════════════════════════

// GetSectionQuery requests one section of a course by navigation names.
type GetSectionQuery struct {
	// User is the requesting student (nil for anonymous preview).
	User *student.Student

	// CourseID is the course.
	CourseID string

	// ChapterName is the chapter's display name.
	ChapterName string

	// SectionName is the section's display name.
	SectionName string

	// Position is the 1-based position hint for sequences, 0 for none.
	Position int
}

// SectionView is a rendered section.
type SectionView struct {
	// DisplayName is the section's navigation label.
	DisplayName string `json:"display_name"`

	// Location is the section's canonical usage key.
	Location string `json:"location"`

	// Category is the section's module category.
	Category string `json:"category"`

	// HTML is the rendered section content.
	HTML string `json:"html"`
}

// GetSectionHandler handles GetSectionQuery.
type GetSectionHandler struct {
	loader *runtime.Loader
}

// NewGetSectionHandler creates a GetSectionHandler.
func NewGetSectionHandler(loader *runtime.Loader) *GetSectionHandler {
	return &GetSectionHandler{loader: loader}
}

// Handle finds and renders the section. Unknown chapter or section names come
// back as ErrItemNotFound.
func (h *GetSectionHandler) Handle(ctx context.Context, q GetSectionQuery) (*SectionView, error) {
	course, err := h.loader.Store().GetCourse(ctx, q.CourseID)
	if err != nil {
		return nil, err
	}

	chapter := course.ChildByDisplayName(q.ChapterName)
	if chapter == nil {
		return nil, shared.WrapError("query", "GetSection", shared.ErrItemNotFound,
			"no such chapter: "+q.ChapterName, nil)
	}

	section := chapter.ChildByDisplayName(q.SectionName)
	if section == nil {
		return nil, shared.WrapError("query", "GetSection", shared.ErrItemNotFound,
			"no such section: "+q.SectionName, nil)
	}

	cache, err := runtime.PrefetchStateCache(ctx, h.loader.States(), q.User, section, runtime.DefaultCacheDepth)
	if err != nil {
		return nil, err
	}

	loaded, err := h.loader.GetModule(ctx, q.User, section.Location, cache, q.Position)
	if err != nil {
		return nil, err
	}

	html, err := loaded.RenderHTML(ctx)
	if err != nil {
		return nil, err
	}

	return &SectionView{
		DisplayName: section.Name(),
		Location:    section.Location.UsageKey(),
		Category:    section.Category,
		HTML:        html,
	}, nil
}
