package messaging

import (
	"context"

	"github.com/campus-hub/courseware-hub/internal/domain/shared"
	"github.com/campus-hub/courseware-hub/internal/domain/student"
	"github.com/campus-hub/courseware-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// EVENT TRACKER
// Bridges module tracking callbacks onto the event bus: every track call from
// a runtime module becomes a ServerEvent that subscribers (tracking log,
// analytics) can consume.
// ══════════════════════════════════════════════════════════════════════════════

// AnonymousAggregateID is the aggregate used for events from anonymous users.
const AnonymousAggregateID = "anonymous"

// EventTracker publishes module tracking events to the event bus.
type EventTracker struct {
	bus shared.EventPublisher
	log *logger.Logger
}

// NewEventTracker creates an EventTracker.
func NewEventTracker(bus shared.EventPublisher, log *logger.Logger) *EventTracker {
	if log == nil {
		log = logger.Default()
	}
	return &EventTracker{bus: bus, log: log}
}

// Track publishes a server event for the user. Publish failures are logged,
// never propagated: tracking must not break request handling.
func (t *EventTracker) Track(ctx context.Context, user *student.Student, eventType, page string, data map[string]interface{}) {
	aggregateID := AnonymousAggregateID
	if user.IsAuthenticated() {
		aggregateID = user.ID
	}

	event := shared.NewServerEvent(aggregateID, eventType, page, data)
	if err := t.bus.Publish(event); err != nil {
		t.log.Warn("failed to publish tracking event",
			logger.String("event_type", eventType),
			logger.Err(err),
		)
	}
}

// NewTrackingLogHandler returns a bus handler that writes every event to the
// structured log. Subscribe it with SubscribeAll to get a tracking log.
func NewTrackingLogHandler(log *logger.Logger) shared.EventHandler {
	if log == nil {
		log = logger.Default()
	}
	return func(event shared.Event) error {
		log.Info("event",
			logger.String("event_type", string(event.EventType())),
			logger.String("aggregate_id", event.AggregateID()),
			logger.Any("payload", event.Payload()),
		)
		return nil
	}
}
