// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"net/url"
	"strings"

	"github.com/campus-hub/courseware-hub/internal/application/runtime"
	"github.com/campus-hub/courseware-hub/internal/domain/content"
	"github.com/campus-hub/courseware-hub/internal/domain/shared"
	"github.com/campus-hub/courseware-hub/internal/domain/student"
	"github.com/campus-hub/courseware-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// DISPATCH MODULE COMMAND
// Routes a client callback ("check this problem", "go to position 3") to the
// runtime module it addresses and persists whatever state the module changed.
// This is the write path of every module interaction.
// ══════════════════════════════════════════════════════════════════════════════

// DispatchModuleCommand carries one module callback.
type DispatchModuleCommand struct {
	// User is the requesting student. Dispatch requires an authenticated
	// user; anonymous callbacks are rejected.
	User *student.Student

	// CourseID is the course the module belongs to.
	CourseID string

	// ModuleSegment is the module URL segment ("problem@circuits-1").
	ModuleSegment string

	// RawCommand is the command path segment as received. Anything from the
	// first '?' on is query noise appended by clients and is cut off.
	RawCommand string

	// Payload is the submitted form data.
	Payload url.Values

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c DispatchModuleCommand) Validate() error {
	if c.CourseID == "" {
		return shared.NewDomainError("command", "Dispatch", shared.ErrEmptyValue,
			"course ID is required")
	}
	if c.ModuleSegment == "" {
		return shared.NewDomainError("command", "Dispatch", shared.ErrEmptyValue,
			"module segment is required")
	}
	if c.RawCommand == "" {
		return shared.NewDomainError("command", "Dispatch", shared.ErrEmptyValue,
			"command is required")
	}
	return nil
}

// Command returns the effective command with any '?' suffix stripped.
func (c DispatchModuleCommand) Command() string {
	if i := strings.Index(c.RawCommand, "?"); i >= 0 {
		return c.RawCommand[:i]
	}
	return c.RawCommand
}

// DispatchModuleResult is the module's opaque response body.
type DispatchModuleResult struct {
	// Response is returned to the client verbatim.
	Response []byte

	// GradeChanged reports whether the dispatch changed the stored grade.
	GradeChanged bool

	// StateChanged reports whether the dispatch changed the stored state.
	StateChanged bool
}

// DispatchModuleHandler handles DispatchModuleCommand.
type DispatchModuleHandler struct {
	loader    *runtime.Loader
	publisher shared.EventPublisher
	log       *logger.Logger
}

// NewDispatchModuleHandler creates a DispatchModuleHandler.
func NewDispatchModuleHandler(
	loader *runtime.Loader,
	publisher shared.EventPublisher,
	log *logger.Logger,
) *DispatchModuleHandler {
	if log == nil {
		log = logger.Default()
	}
	return &DispatchModuleHandler{
		loader:    loader,
		publisher: publisher,
		log:       log,
	}
}

// Handle executes the dispatch.
func (h *DispatchModuleHandler) Handle(ctx context.Context, cmd DispatchModuleCommand) (*DispatchModuleResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	loc, err := content.ParseUsageSegment(cmd.CourseID, cmd.ModuleSegment)
	if err != nil {
		return nil, err
	}

	cache := runtime.NewStateCache(studentID(cmd.User))
	loaded, err := h.loader.GetModule(ctx, cmd.User, loc, cache, 0)
	if err != nil {
		return nil, err
	}

	// No backing record means the user is anonymous; modules never take
	// callbacks without a place to keep their state.
	if loaded.Instance == nil {
		return nil, shared.ErrStateNotFound
	}

	command := cmd.Command()
	instSnap := loaded.Instance.TakeSnapshot()

	var sharedSnap []byte
	if loaded.Shared != nil {
		sharedSnap = loaded.Shared.TakeSnapshot().State
	}

	response, err := loaded.Module.HandleRequest(ctx, command, cmd.Payload)
	if err != nil {
		return nil, err
	}

	loaded.ApplyModuleState()

	gradeChanged, stateChanged := loaded.Instance.ChangedSince(instSnap)
	if gradeChanged || stateChanged {
		if err := h.loader.States().Save(ctx, loaded.Instance); err != nil {
			return nil, err
		}
		h.publishSaved(cmd, loaded.Instance.ModuleStateKey, loaded.Instance.ModuleType,
			loaded.Instance.Grade, gradeChanged, stateChanged)
	}

	if loaded.Shared != nil && !loaded.Shared.StateEquals(sharedSnap) {
		if err := h.loader.States().Save(ctx, loaded.Shared); err != nil {
			return nil, err
		}
		h.publishSaved(cmd, loaded.Shared.ModuleStateKey, loaded.Shared.ModuleType,
			nil, false, true)
	}

	h.publishDispatched(cmd, loc, loaded.Descriptor.Category, command)

	h.log.Debug("module dispatched",
		logger.StudentID(cmd.User.ID),
		logger.CourseID(cmd.CourseID),
		logger.ModuleKey(loc.UsageKey()),
		logger.Command(command),
		logger.Bool("grade_changed", gradeChanged),
		logger.Bool("state_changed", stateChanged),
	)

	return &DispatchModuleResult{
		Response:     response,
		GradeChanged: gradeChanged,
		StateChanged: stateChanged,
	}, nil
}

// publishDispatched emits the module dispatch event.
func (h *DispatchModuleHandler) publishDispatched(cmd DispatchModuleCommand, loc content.Location, category, command string) {
	if h.publisher == nil {
		return
	}
	event := shared.NewModuleEvent(shared.EventModuleDispatched,
		loc.UsageKey(), cmd.User.ID, cmd.CourseID, category).WithCommand(command)
	if cmd.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	_ = h.publisher.Publish(event)
}

// publishSaved emits the state saved event for one record.
func (h *DispatchModuleHandler) publishSaved(cmd DispatchModuleCommand, key, moduleType string, grade *float64, gradeChanged, stateChanged bool) {
	if h.publisher == nil {
		return
	}
	event := shared.NewStateSavedEvent(shared.EventStateSaved, key, cmd.User.ID, moduleType)
	event.Grade = grade
	event.GradeChanged = gradeChanged
	event.StateChanged = stateChanged
	if cmd.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	_ = h.publisher.Publish(event)
}

// studentID returns the ID of a possibly-nil student.
func studentID(s *student.Student) string {
	if s == nil {
		return ""
	}
	return s.ID
}
