package command

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-hub/courseware-hub/internal/domain/content"
	"github.com/campus-hub/courseware-hub/internal/domain/shared"
	"github.com/campus-hub/courseware-hub/internal/domain/studentstate"
)

func pendingSubmission(t *testing.T, env *commandEnv, queueKey string) {
	t.Helper()
	rec := studentstate.New(testStudentID, content.CategoryProblem,
		"block://c1/problem/ext", []byte(`{"attempts":1,"queue_key":"`+queueKey+`"}`), nil)
	require.NoError(t, env.repo.Create(context.Background(), rec))
}

func callbackPayload(header, score string) url.Values {
	payload := url.Values{}
	if header != "" {
		payload.Set(QueueHeaderField, header)
	}
	if score != "" {
		payload.Set("score", score)
	}
	return payload
}

func TestQueueCallback_AppliesScore(t *testing.T) {
	env := newCommandEnv()
	pendingSubmission(t, env, "key-1")
	handler := NewQueueCallbackHandler(env.loader, env.students, env.publisher, nil)

	err := handler.Handle(context.Background(), QueueCallbackCommand{
		CourseID:      "c1",
		StudentID:     testStudentID,
		ModuleSegment: "problem@ext",
		Command:       "score_update",
		Payload:       callbackPayload(`{"queuekey":"key-1"}`, "7.5"),
	})
	require.NoError(t, err)

	rec, err := env.repo.Get(context.Background(), testStudentID, "block://c1/problem/ext")
	require.NoError(t, err)
	require.NotNil(t, rec.Grade)
	assert.Equal(t, 7.5, *rec.Grade)

	received := env.publisher.ofType(shared.EventQueueCallbackReceived)
	require.Len(t, received, 1)
	event := received[0].(shared.QueueEvent)
	assert.Equal(t, "key-1", event.QueueKey)
	assert.Equal(t, testStudentID, event.StudentID)
	assert.Empty(t, env.publisher.ofType(shared.EventQueueCallbackRejected))
}

func TestQueueCallback_BadHeader(t *testing.T) {
	env := newCommandEnv()
	pendingSubmission(t, env, "key-1")
	handler := NewQueueCallbackHandler(env.loader, env.students, env.publisher, nil)

	cases := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"not json", "{{nope"},
		{"empty key", `{"queuekey":""}`},
		{"wrong field", `{"key":"key-1"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := handler.Handle(context.Background(), QueueCallbackCommand{
				CourseID:      "c1",
				StudentID:     testStudentID,
				ModuleSegment: "problem@ext",
				Command:       "score_update",
				Payload:       callbackPayload(tc.header, "7.5"),
			})
			assert.ErrorIs(t, err, shared.ErrBadQueueHeader)
		})
	}
	assert.Equal(t, 0, env.repo.saves)
}

func TestQueueCallback_KeyMismatchRejected(t *testing.T) {
	env := newCommandEnv()
	pendingSubmission(t, env, "key-1")
	handler := NewQueueCallbackHandler(env.loader, env.students, env.publisher, nil)

	err := handler.Handle(context.Background(), QueueCallbackCommand{
		CourseID:      "c1",
		StudentID:     testStudentID,
		ModuleSegment: "problem@ext",
		Command:       "score_update",
		Payload:       callbackPayload(`{"queuekey":"stale-key"}`, "7.5"),
	})
	assert.ErrorIs(t, err, shared.ErrQueueKeyMismatch)

	rejected := env.publisher.ofType(shared.EventQueueCallbackRejected)
	require.Len(t, rejected, 1)
	event := rejected[0].(shared.QueueEvent)
	assert.Equal(t, "stale-key", event.QueueKey)
	assert.NotEmpty(t, event.Reason)

	// Nothing was saved for the rejected callback.
	assert.Equal(t, 0, env.repo.saves)
	rec, err := env.repo.Get(context.Background(), testStudentID, "block://c1/problem/ext")
	require.NoError(t, err)
	assert.Nil(t, rec.Grade)
}

func TestQueueCallback_UnknownStudent(t *testing.T) {
	env := newCommandEnv()
	handler := NewQueueCallbackHandler(env.loader, env.students, env.publisher, nil)

	err := handler.Handle(context.Background(), QueueCallbackCommand{
		CourseID:      "c1",
		StudentID:     "d41d8cd9-0000-0000-0000-000000000000",
		ModuleSegment: "problem@ext",
		Command:       "score_update",
		Payload:       callbackPayload(`{"queuekey":"key-1"}`, "7.5"),
	})
	assert.ErrorIs(t, err, shared.ErrStudentNotFound)
}

func TestQueueCallback_ValidatesInput(t *testing.T) {
	env := newCommandEnv()
	handler := NewQueueCallbackHandler(env.loader, env.students, env.publisher, nil)

	err := handler.Handle(context.Background(), QueueCallbackCommand{
		CourseID:      "c1",
		StudentID:     "",
		ModuleSegment: "problem@ext",
		Command:       "score_update",
	})
	assert.ErrorIs(t, err, shared.ErrEmptyValue)
}

func TestQueueCallback_PayloadNotMutated(t *testing.T) {
	env := newCommandEnv()
	pendingSubmission(t, env, "key-1")
	handler := NewQueueCallbackHandler(env.loader, env.students, env.publisher, nil)

	payload := callbackPayload(`{"queuekey":"key-1"}`, "7.5")
	err := handler.Handle(context.Background(), QueueCallbackCommand{
		CourseID:      "c1",
		StudentID:     testStudentID,
		ModuleSegment: "problem@ext",
		Command:       "score_update",
		Payload:       payload,
	})
	require.NoError(t, err)

	// The merged queuekey lives in the handler's copy, not the caller's form.
	assert.Empty(t, payload.Get("queuekey"))
}
