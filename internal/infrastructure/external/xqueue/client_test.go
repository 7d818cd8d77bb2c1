package xqueue

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-hub/courseware-hub/internal/domain/shared"
	"github.com/campus-hub/courseware-hub/internal/domain/xmodule"
)

func testSubmission() xmodule.QueueSubmission {
	return xmodule.QueueSubmission{
		QueueName:   "circuits",
		QueueKey:    "key-1",
		CallbackURL: "http://lms/courses/c1/queue-callback/s1/problem@p1/score_update",
		Body:        map[string]string{"q1": "42"},
	}
}

func newTestClient(baseURL string) *Client {
	cfg := DefaultConfig(baseURL)
	cfg.Timeout = 2 * time.Second
	return NewClient(cfg, nil)
}

func TestSubmit_WireFormat(t *testing.T) {
	var header submissionHeader
	var body map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/xqueue/submit/", r.URL.Path)
		require.NoError(t, r.ParseForm())
		require.NoError(t, json.Unmarshal([]byte(r.PostForm.Get("xqueue_header")), &header))
		require.NoError(t, json.Unmarshal([]byte(r.PostForm.Get("xqueue_body")), &body))
		_, _ = w.Write([]byte(`{"return_code":0}`))
	}))
	defer srv.Close()

	err := newTestClient(srv.URL).Submit(context.Background(), testSubmission())
	require.NoError(t, err)

	assert.Equal(t, "circuits", header.QueueName)
	assert.Equal(t, "key-1", header.LMSKey)
	assert.Contains(t, header.LMSCallbackURL, "queue-callback")
	assert.Equal(t, "42", body["q1"])
}

func TestSubmit_DefaultQueueName(t *testing.T) {
	var header submissionHeader
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.NoError(t, json.Unmarshal([]byte(r.PostForm.Get("xqueue_header")), &header))
		_, _ = w.Write([]byte(`{"return_code":0}`))
	}))
	defer srv.Close()

	sub := testSubmission()
	sub.QueueName = ""
	require.NoError(t, newTestClient(srv.URL).Submit(context.Background(), sub))
	assert.Equal(t, "default", header.QueueName)
}

func TestSubmit_RetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"return_code":0}`))
	}))
	defer srv.Close()

	err := newTestClient(srv.URL).Submit(context.Background(), testSubmission())
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestSubmit_RejectionNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"return_code":1,"content":"unknown queue"}`))
	}))
	defer srv.Close()

	err := newTestClient(srv.URL).Submit(context.Background(), testSubmission())
	assert.ErrorIs(t, err, shared.ErrQueueUnavailable)
	assert.Equal(t, int32(1), hits.Load())
}

func TestSubmit_ClientErrorNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	err := newTestClient(srv.URL).Submit(context.Background(), testSubmission())
	assert.ErrorIs(t, err, shared.ErrQueueUnavailable)
	assert.Equal(t, int32(1), hits.Load())
}

func TestSubmit_CircuitOpensAfterRepeatedFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	for i := 0; i < 3; i++ {
		err := client.Submit(context.Background(), testSubmission())
		assert.ErrorIs(t, err, shared.ErrQueueUnavailable)
	}
	require.Equal(t, int32(3), hits.Load())

	// Fourth submission fails fast without reaching the grader.
	err := client.Submit(context.Background(), testSubmission())
	assert.ErrorIs(t, err, shared.ErrQueueUnavailable)
	assert.Equal(t, int32(3), hits.Load())
}

func TestIsHealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/xqueue/status/", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))

	client := newTestClient(srv.URL)
	assert.True(t, client.IsHealthy(context.Background()))

	srv.Close()
	assert.False(t, client.IsHealthy(context.Background()))
}
