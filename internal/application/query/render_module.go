package query

import (
	"context"

	"github.com/campus-hub/courseware-hub/internal/application/runtime"
	"github.com/campus-hub/courseware-hub/internal/domain/content"
	"github.com/campus-hub/courseware-hub/internal/domain/shared"
	"github.com/campus-hub/courseware-hub/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// RENDER MODULE QUERY
// Renders one module by URL segment. This is the read path behind the module
// HTML endpoint; staff users additionally get the debug panel from the loader.
// ══════════════════════════════════════════════════════════════════════════════

// RenderModuleQuery requests one module's rendered HTML.
type RenderModuleQuery struct {
	// User is the requesting student (nil for anonymous preview).
	User *student.Student

	// CourseID is the course.
	CourseID string

	// ModuleSegment is the module URL segment ("sequence@welcome-week").
	ModuleSegment string

	// Position is the 1-based position hint for sequences, 0 for none.
	Position int
}

// ModuleView is a rendered module.
type ModuleView struct {
	// DisplayName is the module's navigation label.
	DisplayName string `json:"display_name"`

	// Location is the module's canonical usage key.
	Location string `json:"location"`

	// Category is the module category.
	Category string `json:"category"`

	// AjaxURL is where client callbacks for this module go.
	AjaxURL string `json:"ajax_url"`

	// HTML is the rendered content.
	HTML string `json:"html"`
}

// RenderModuleHandler handles RenderModuleQuery.
type RenderModuleHandler struct {
	loader    *runtime.Loader
	publisher shared.EventPublisher
}

// NewRenderModuleHandler creates a RenderModuleHandler.
func NewRenderModuleHandler(loader *runtime.Loader, publisher shared.EventPublisher) *RenderModuleHandler {
	return &RenderModuleHandler{loader: loader, publisher: publisher}
}

// Handle loads and renders the module.
func (h *RenderModuleHandler) Handle(ctx context.Context, q RenderModuleQuery) (*ModuleView, error) {
	loc, err := content.ParseUsageSegment(q.CourseID, q.ModuleSegment)
	if err != nil {
		return nil, err
	}

	desc, err := h.loader.Store().GetItem(ctx, loc)
	if err != nil {
		return nil, err
	}

	cache, err := runtime.PrefetchStateCache(ctx, h.loader.States(), q.User, desc, runtime.DefaultCacheDepth)
	if err != nil {
		return nil, err
	}

	loaded, err := h.loader.GetModule(ctx, q.User, loc, cache, q.Position)
	if err != nil {
		return nil, err
	}

	html, err := loaded.RenderHTML(ctx)
	if err != nil {
		return nil, err
	}

	if h.publisher != nil && q.User.IsAuthenticated() {
		_ = h.publisher.Publish(shared.NewModuleEvent(shared.EventModuleRendered,
			loc.UsageKey(), q.User.ID, q.CourseID, loaded.Descriptor.Category))
	}

	return &ModuleView{
		DisplayName: loaded.Descriptor.Name(),
		Location:    loc.UsageKey(),
		Category:    loaded.Descriptor.Category,
		AjaxURL:     loaded.System.AjaxURL,
		HTML:        html,
	}, nil
}
