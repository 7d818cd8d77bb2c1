package eventhandler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-hub/courseware-hub/internal/domain/shared"
)

func savedEvent(gradeChanged, stateChanged bool) shared.StateSavedEvent {
	event := shared.NewStateSavedEvent(shared.EventStateSaved,
		"block://c1/problem/p1", "student-1", "problem")
	event.GradeChanged = gradeChanged
	event.StateChanged = stateChanged
	if gradeChanged {
		grade := 4.5
		event.Grade = &grade
	}
	return event
}

func TestOnGradeChanged_CountsGradeAndStateChanges(t *testing.T) {
	h := NewOnGradeChangedHandler(nil, DefaultGradeChangedConfig())

	require.NoError(t, h.Handle(savedEvent(true, true)))
	require.NoError(t, h.Handle(savedEvent(true, false)))
	require.NoError(t, h.Handle(savedEvent(false, true)))
	require.NoError(t, h.Handle(savedEvent(false, false)))

	grades, states := h.Stats()
	assert.Equal(t, int64(2), grades)
	assert.Equal(t, int64(1), states)
}

func TestOnGradeChanged_IgnoresForeignEvents(t *testing.T) {
	h := NewOnGradeChangedHandler(nil, DefaultGradeChangedConfig())

	event := shared.NewModuleEvent(shared.EventModuleRendered,
		"block://c1/problem/p1", "student-1", "c1", "problem")
	require.NoError(t, h.Handle(event))

	grades, states := h.Stats()
	assert.Zero(t, grades)
	assert.Zero(t, states)
}

func TestOnGradeChanged_EventType(t *testing.T) {
	h := NewOnGradeChangedHandler(nil, DefaultGradeChangedConfig())
	assert.Equal(t, shared.EventStateSaved, h.EventType())
}

func rejectedAt(at time.Time) shared.QueueEvent {
	event := shared.NewQueueEvent(shared.EventQueueCallbackRejected,
		"block://c1/problem/ext", "student-1", "key-1")
	event.Timestamp = at
	event.Reason = "queue key mismatch"
	return event
}

func TestOnQueueRejected_CountsWithinWindow(t *testing.T) {
	h := NewOnQueueRejectedHandler(nil, QueueRejectedConfig{
		WarnThreshold: 3,
		Window:        time.Minute,
	})

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, h.Handle(rejectedAt(base)))
	require.NoError(t, h.Handle(rejectedAt(base.Add(10*time.Second))))

	assert.Equal(t, 3, h.record("block://c1/problem/ext", base.Add(20*time.Second)))
}

func TestOnQueueRejected_WindowPrunesOldRejections(t *testing.T) {
	h := NewOnQueueRejectedHandler(nil, QueueRejectedConfig{
		WarnThreshold: 3,
		Window:        time.Minute,
	})

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, h.Handle(rejectedAt(base)))
	require.NoError(t, h.Handle(rejectedAt(base.Add(time.Second))))

	// Both earlier rejections fall outside the window by now.
	assert.Equal(t, 1, h.record("block://c1/problem/ext", base.Add(2*time.Minute)))
}

func TestOnQueueRejected_KeysAreIndependent(t *testing.T) {
	h := NewOnQueueRejectedHandler(nil, DefaultQueueRejectedConfig())

	now := time.Now()
	assert.Equal(t, 1, h.record("block://c1/problem/a", now))
	assert.Equal(t, 1, h.record("block://c1/problem/b", now))
	assert.Equal(t, 2, h.record("block://c1/problem/a", now))
}

func TestOnQueueRejected_IgnoresForeignEvents(t *testing.T) {
	h := NewOnQueueRejectedHandler(nil, DefaultQueueRejectedConfig())

	event := shared.NewModuleEvent(shared.EventModuleRendered,
		"block://c1/problem/p1", "student-1", "c1", "problem")
	require.NoError(t, h.Handle(event))
	assert.Empty(t, h.rejections)
}

func TestOnQueueRejected_EventType(t *testing.T) {
	h := NewOnQueueRejectedHandler(nil, DefaultQueueRejectedConfig())
	assert.Equal(t, shared.EventQueueCallbackRejected, h.EventType())
}
