// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types - these drive the event tracking pipeline.
// Each event represents something significant that happened in the domain.
const (
	// Module runtime events
	EventModuleAccessed   EventType = "module.accessed"
	EventModuleRendered   EventType = "module.rendered"
	EventModuleDispatched EventType = "module.dispatched"
	EventModuleGraded     EventType = "module.graded"

	// Student state events
	EventStateCreated EventType = "state.created"
	EventStateSaved   EventType = "state.saved"

	// Grading queue events
	EventQueueSubmitted        EventType = "queue.submitted"
	EventQueueCallbackReceived EventType = "queue.callback_received"
	EventQueueCallbackRejected EventType = "queue.callback_rejected"

	// Student events
	EventStudentRegistered EventType = "student.registered"
	EventStudentLoggedIn   EventType = "student.logged_in"

	// System events
	EventCourseLoaded EventType = "system.course_loaded"
	EventServerEvent  EventType = "system.server_event"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// EventHandler processes a single domain event. Handler errors are logged by
// the bus, not propagated to publishers.
type EventHandler func(event Event) error

// EventPublisher publishes domain events. Application handlers depend on this
// narrow interface rather than on a concrete bus.
type EventPublisher interface {
	Publish(event Event) error
}

// EventBus is the full pub/sub contract. Implementations live in
// infrastructure/messaging.
type EventBus interface {
	EventPublisher

	// Subscribe registers a handler for one event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for every event.
	SubscribeAll(handler EventHandler) error

	// Close shuts the bus down, waiting for in-flight handlers.
	Close() error
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Module Runtime Events
// ═══════════════════════════════════════════════════════════════════════════

// ModuleEvent is emitted for module interactions: access, dispatch, render.
// It is the Go counterpart of the tracking callback attached to the runtime
// system - the aggregate is the module usage key.
type ModuleEvent struct {
	BaseEvent
	StudentID  string                 `json:"student_id,omitempty"`
	CourseID   string                 `json:"course_id"`
	ModuleType string                 `json:"module_type"`
	Command    string                 `json:"command,omitempty"`
	Data       map[string]interface{} `json:"data,omitempty"`
}

// Payload implements Event interface.
func (e ModuleEvent) Payload() map[string]interface{} {
	p := map[string]interface{}{
		"student_id":  e.StudentID,
		"course_id":   e.CourseID,
		"module_type": e.ModuleType,
	}
	if e.Command != "" {
		p["command"] = e.Command
	}
	for k, v := range e.Data {
		p[k] = v
	}
	return p
}

// NewModuleEvent creates a module runtime event.
func NewModuleEvent(eventType EventType, usageKey, studentID, courseID, moduleType string) ModuleEvent {
	return ModuleEvent{
		BaseEvent:  NewBaseEvent(eventType, usageKey),
		StudentID:  studentID,
		CourseID:   courseID,
		ModuleType: moduleType,
	}
}

// WithCommand attaches the dispatched command name.
func (e ModuleEvent) WithCommand(command string) ModuleEvent {
	e.Command = command
	return e
}

// WithData attaches free-form tracking data.
func (e ModuleEvent) WithData(data map[string]interface{}) ModuleEvent {
	e.Data = data
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Student State Events
// ═══════════════════════════════════════════════════════════════════════════

// StateSavedEvent is emitted when a student module record is created or saved.
type StateSavedEvent struct {
	BaseEvent
	StudentID    string   `json:"student_id"`
	ModuleType   string   `json:"module_type"`
	Grade        *float64 `json:"grade,omitempty"`
	GradeChanged bool     `json:"grade_changed"`
	StateChanged bool     `json:"state_changed"`
}

// Payload implements Event interface.
func (e StateSavedEvent) Payload() map[string]interface{} {
	p := map[string]interface{}{
		"student_id":    e.StudentID,
		"module_type":   e.ModuleType,
		"grade_changed": e.GradeChanged,
		"state_changed": e.StateChanged,
	}
	if e.Grade != nil {
		p["grade"] = *e.Grade
	}
	return p
}

// NewStateSavedEvent creates a state saved event for the given usage key.
func NewStateSavedEvent(eventType EventType, usageKey, studentID, moduleType string) StateSavedEvent {
	return StateSavedEvent{
		BaseEvent:  NewBaseEvent(eventType, usageKey),
		StudentID:  studentID,
		ModuleType: moduleType,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Grading Queue Events
// ═══════════════════════════════════════════════════════════════════════════

// QueueEvent is emitted for grading queue submissions and callbacks.
type QueueEvent struct {
	BaseEvent
	StudentID string `json:"student_id"`
	QueueKey  string `json:"queue_key"`
	QueueName string `json:"queue_name,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// Payload implements Event interface.
func (e QueueEvent) Payload() map[string]interface{} {
	p := map[string]interface{}{
		"student_id": e.StudentID,
		"queue_key":  e.QueueKey,
	}
	if e.QueueName != "" {
		p["queue_name"] = e.QueueName
	}
	if e.Reason != "" {
		p["reason"] = e.Reason
	}
	return p
}

// NewQueueEvent creates a grading queue event for the given usage key.
func NewQueueEvent(eventType EventType, usageKey, studentID, queueKey string) QueueEvent {
	return QueueEvent{
		BaseEvent: NewBaseEvent(eventType, usageKey),
		StudentID: studentID,
		QueueKey:  queueKey,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Student Events
// ═══════════════════════════════════════════════════════════════════════════

// StudentEvent is emitted for student lifecycle operations.
type StudentEvent struct {
	BaseEvent
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
}

// Payload implements Event interface.
func (e StudentEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"email":        e.Email,
		"display_name": e.DisplayName,
	}
}

// NewStudentEvent creates a student lifecycle event.
func NewStudentEvent(eventType EventType, studentID, email, displayName string) StudentEvent {
	return StudentEvent{
		BaseEvent:   NewBaseEvent(eventType, studentID),
		Email:       email,
		DisplayName: displayName,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Server Events
// ═══════════════════════════════════════════════════════════════════════════

// ServerEvent carries an arbitrary tracking event emitted by a module through
// the runtime system track function. The event type string from the module is
// preserved in TrackType.
type ServerEvent struct {
	BaseEvent
	TrackType string                 `json:"track_type"`
	Page      string                 `json:"page"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// Payload implements Event interface.
func (e ServerEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"track_type": e.TrackType,
		"page":       e.Page,
		"data":       e.Data,
	}
}

// NewServerEvent creates a free-form server tracking event.
func NewServerEvent(aggregateID, trackType, page string, data map[string]interface{}) ServerEvent {
	return ServerEvent{
		BaseEvent: NewBaseEvent(EventServerEvent, aggregateID),
		TrackType: trackType,
		Page:      page,
		Data:      data,
	}
}
