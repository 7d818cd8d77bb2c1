// Package jobs contains implementations of scheduled jobs for Courseware Hub.
package jobs

import (
	"context"
	"fmt"
	"sync/atomic"
)

// ══════════════════════════════════════════════════════════════════════════════
// RELOAD CONTENT JOB
// ══════════════════════════════════════════════════════════════════════════════

// ContentReloader reloads course content from its backing source.
type ContentReloader interface {
	Reload() error
}

// ReloadContentJob periodically re-reads course definitions so content edits
// land without a restart. Course descriptors are immutable once loaded, so a
// reload swaps the whole tree atomically.
type ReloadContentJob struct {
	store ContentReloader

	reloadCount atomic.Int64
	failCount   atomic.Int64
}

// NewReloadContentJob creates a ReloadContentJob.
func NewReloadContentJob(store ContentReloader) *ReloadContentJob {
	return &ReloadContentJob{store: store}
}

// Name implements scheduler.Job.
func (j *ReloadContentJob) Name() string {
	return "reload_content"
}

// Description implements scheduler.Job.
func (j *ReloadContentJob) Description() string {
	return "Reloads course content definitions from disk"
}

// Run implements scheduler.Job.
func (j *ReloadContentJob) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := j.store.Reload(); err != nil {
		j.failCount.Add(1)
		return fmt.Errorf("reload content: %w", err)
	}

	j.reloadCount.Add(1)
	return nil
}

// Stats returns how many reloads have succeeded and failed.
func (j *ReloadContentJob) Stats() (reloads, failures int64) {
	return j.reloadCount.Load(), j.failCount.Load()
}
