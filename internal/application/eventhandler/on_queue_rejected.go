package eventhandler

import (
	"sync"
	"time"

	"github.com/campus-hub/courseware-hub/internal/domain/shared"
	"github.com/campus-hub/courseware-hub/pkg/logger"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON QUEUE REJECTED HANDLER
// Watches rejected grading queue callbacks. A single rejection is usually a
// stale retry from the grader; repeated rejections against the same module
// point at a misconfigured queue or someone probing callback URLs, so those
// get escalated.
// ═══════════════════════════════════════════════════════════════════════════

// QueueRejectedConfig configures the rejected-callback watcher.
type QueueRejectedConfig struct {
	// WarnThreshold is how many rejections within Window escalate to an
	// error log.
	WarnThreshold int

	// Window is the sliding window for counting rejections per usage key.
	Window time.Duration
}

// DefaultQueueRejectedConfig returns the default configuration.
func DefaultQueueRejectedConfig() QueueRejectedConfig {
	return QueueRejectedConfig{
		WarnThreshold: 5,
		Window:        10 * time.Minute,
	}
}

// OnQueueRejectedHandler logs rejected queue callbacks and escalates bursts.
type OnQueueRejectedHandler struct {
	log    *logger.Logger
	config QueueRejectedConfig

	mu         sync.Mutex
	rejections map[string][]time.Time // usage key -> rejection times
}

// NewOnQueueRejectedHandler creates a rejected-callback watcher.
func NewOnQueueRejectedHandler(log *logger.Logger, config QueueRejectedConfig) *OnQueueRejectedHandler {
	if log == nil {
		log = logger.Default()
	}
	if config.WarnThreshold <= 0 {
		config.WarnThreshold = DefaultQueueRejectedConfig().WarnThreshold
	}
	if config.Window <= 0 {
		config.Window = DefaultQueueRejectedConfig().Window
	}

	return &OnQueueRejectedHandler{
		log:        log.With(logger.String("handler", "on_queue_rejected")),
		config:     config,
		rejections: make(map[string][]time.Time),
	}
}

// EventType returns the event type this handler subscribes to.
func (h *OnQueueRejectedHandler) EventType() shared.EventType {
	return shared.EventQueueCallbackRejected
}

// Handle processes a rejected queue callback event. Implements
// shared.EventHandler.
func (h *OnQueueRejectedHandler) Handle(event shared.Event) error {
	queueEvent, ok := event.(shared.QueueEvent)
	if !ok {
		h.log.Warn("received unexpected event type",
			logger.String("event_type", string(event.EventType())),
		)
		return nil
	}

	count := h.record(queueEvent.AggregateID(), queueEvent.OccurredAt())

	fields := []logger.Field{
		logger.String("usage_key", queueEvent.AggregateID()),
		logger.String("student_id", queueEvent.StudentID),
		logger.String("reason", queueEvent.Reason),
		logger.Int("recent_rejections", count),
	}

	if count >= h.config.WarnThreshold {
		h.log.Error("repeated rejected queue callbacks", fields...)
		return nil
	}

	h.log.Warn("queue callback rejected", fields...)
	return nil
}

// record appends a rejection for the key and returns how many fall inside the
// window. Entries outside the window are dropped on the way.
func (h *OnQueueRejectedHandler) record(key string, at time.Time) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	cutoff := at.Add(-h.config.Window)
	kept := h.rejections[key][:0]
	for _, t := range h.rejections[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	kept = append(kept, at)
	h.rejections[key] = kept

	return len(kept)
}
