// Package eventhandler contains subscribers for domain events.
package eventhandler

import (
	"sync/atomic"

	"github.com/campus-hub/courseware-hub/internal/domain/shared"
	"github.com/campus-hub/courseware-hub/pkg/logger"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON GRADE CHANGED HANDLER
// Audits grade changes flowing out of module state saves. Grades are the one
// piece of student state with real-world consequences, so every change gets a
// dedicated audit line regardless of the log level configured for the rest of
// the tracking pipeline.
// ═══════════════════════════════════════════════════════════════════════════

// GradeChangedConfig configures the grade audit handler.
type GradeChangedConfig struct {
	// AuditStateOnly also logs saves where only instance state changed.
	AuditStateOnly bool
}

// DefaultGradeChangedConfig returns the default configuration.
func DefaultGradeChangedConfig() GradeChangedConfig {
	return GradeChangedConfig{
		AuditStateOnly: false,
	}
}

// OnGradeChangedHandler writes an audit log line for every grade change.
type OnGradeChangedHandler struct {
	log    *logger.Logger
	config GradeChangedConfig

	gradeChanges atomic.Int64
	stateChanges atomic.Int64
}

// NewOnGradeChangedHandler creates a grade audit handler.
func NewOnGradeChangedHandler(log *logger.Logger, config GradeChangedConfig) *OnGradeChangedHandler {
	if log == nil {
		log = logger.Default()
	}

	return &OnGradeChangedHandler{
		log:    log.With(logger.String("handler", "on_grade_changed")),
		config: config,
	}
}

// EventType returns the event type this handler subscribes to.
func (h *OnGradeChangedHandler) EventType() shared.EventType {
	return shared.EventStateSaved
}

// Handle processes a state saved event. Implements shared.EventHandler.
func (h *OnGradeChangedHandler) Handle(event shared.Event) error {
	saved, ok := event.(shared.StateSavedEvent)
	if !ok {
		h.log.Warn("received unexpected event type",
			logger.String("event_type", string(event.EventType())),
		)
		return nil
	}

	if !saved.GradeChanged {
		if saved.StateChanged {
			h.stateChanges.Add(1)
			if h.config.AuditStateOnly {
				h.log.Debug("module state saved",
					logger.String("student_id", saved.StudentID),
					logger.String("usage_key", saved.AggregateID()),
					logger.String("module_type", saved.ModuleType),
				)
			}
		}
		return nil
	}

	h.gradeChanges.Add(1)

	fields := []logger.Field{
		logger.String("student_id", saved.StudentID),
		logger.String("usage_key", saved.AggregateID()),
		logger.String("module_type", saved.ModuleType),
	}
	if saved.Grade != nil {
		fields = append(fields, logger.Float64("grade", *saved.Grade))
	}
	if saved.CorrelationID != "" {
		fields = append(fields, logger.String("correlation_id", saved.CorrelationID))
	}

	h.log.Info("grade changed", fields...)
	return nil
}

// Stats returns how many grade and state-only changes have been audited.
func (h *OnGradeChangedHandler) Stats() (grades, states int64) {
	return h.gradeChanges.Load(), h.stateChanges.Load()
}
