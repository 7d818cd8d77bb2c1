package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReloader struct {
	err   error
	calls int
}

func (r *fakeReloader) Reload() error {
	r.calls++
	return r.err
}

func TestReloadContentJob(t *testing.T) {
	reloader := &fakeReloader{}
	job := NewReloadContentJob(reloader)

	assert.Equal(t, "reload_content", job.Name())
	assert.NotEmpty(t, job.Description())

	require.NoError(t, job.Run(context.Background()))
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 2, reloader.calls)

	reloads, failures := job.Stats()
	assert.Equal(t, int64(2), reloads)
	assert.Zero(t, failures)
}

func TestReloadContentJob_Failure(t *testing.T) {
	boom := errors.New("bad course file")
	job := NewReloadContentJob(&fakeReloader{err: boom})

	err := job.Run(context.Background())
	assert.ErrorIs(t, err, boom)

	reloads, failures := job.Stats()
	assert.Zero(t, reloads)
	assert.Equal(t, int64(1), failures)
}

func TestReloadContentJob_CancelledContext(t *testing.T) {
	reloader := &fakeReloader{}
	job := NewReloadContentJob(reloader)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, job.Run(ctx), context.Canceled)
	assert.Zero(t, reloader.calls)
}
