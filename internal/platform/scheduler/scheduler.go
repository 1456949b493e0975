// Package scheduler runs one-shot jobs at absolute times. Job ids are
// persisted through a JobStore so a restarted process can see which check-ins
// were armed before it died.
package scheduler

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// JobTTL is how long persisted job ids live. Slightly longer than the longest
// check-in offset (14 days).
const JobTTL = 15 * 24 * time.Hour

// Callback runs when a job fires.
type Callback func(ctx context.Context)

// JobStore persists job ids so they survive process restarts.
type JobStore interface {
	Save(ctx context.Context, jobID string, at time.Time) error
	Delete(ctx context.Context, jobID string) error
	ListByPrefix(ctx context.Context, prefix string) ([]string, error)
}

// Runner schedules and cancels one-shot jobs keyed by id.
type Runner struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
	store  JobStore
	logger zerolog.Logger
}

func NewRunner(store JobStore, logger zerolog.Logger) *Runner {
	return &Runner{
		timers: make(map[string]*time.Timer),
		store:  store,
		logger: logger,
	}
}

// Schedule arms a one-shot job that invokes fn at the given time. A job id
// already scheduled is replaced. Times in the past fire immediately.
func (r *Runner) Schedule(ctx context.Context, jobID string, at time.Time, fn Callback) error {
	if err := r.store.Save(ctx, jobID, at); err != nil {
		return err
	}

	d := time.Until(at)
	if d < 0 {
		d = 0
	}

	r.mu.Lock()
	if old, ok := r.timers[jobID]; ok {
		old.Stop()
	}
	r.timers[jobID] = time.AfterFunc(d, func() {
		r.mu.Lock()
		delete(r.timers, jobID)
		r.mu.Unlock()
		if err := r.store.Delete(context.Background(), jobID); err != nil {
			r.logger.Warn().Err(err).Str("job_id", jobID).Msg("delete fired job id")
		}
		fn(context.Background())
	})
	r.mu.Unlock()

	r.logger.Debug().Str("job_id", jobID).Time("at", at).Msg("job scheduled")
	return nil
}

// Cancel stops one job. Returns true when a pending job was stopped.
func (r *Runner) Cancel(ctx context.Context, jobID string) bool {
	r.mu.Lock()
	timer, ok := r.timers[jobID]
	if ok {
		timer.Stop()
		delete(r.timers, jobID)
	}
	r.mu.Unlock()

	if err := r.store.Delete(ctx, jobID); err != nil {
		r.logger.Warn().Err(err).Str("job_id", jobID).Msg("delete cancelled job id")
	}
	return ok
}

// CancelByPrefix stops every pending job whose id starts with prefix and
// returns how many were cancelled. Already-fired jobs are unaffected.
func (r *Runner) CancelByPrefix(ctx context.Context, prefix string) int {
	r.mu.Lock()
	var ids []string
	for id := range r.timers {
		if strings.HasPrefix(id, prefix) {
			ids = append(ids, id)
		}
	}
	r.mu.Unlock()

	count := 0
	for _, id := range ids {
		if r.Cancel(ctx, id) {
			count++
		}
	}
	return count
}

// ListByPrefix returns the persisted job ids matching prefix, including ids
// armed by a previous process. Callers re-arm survivors through Schedule.
func (r *Runner) ListByPrefix(ctx context.Context, prefix string) ([]string, error) {
	return r.store.ListByPrefix(ctx, prefix)
}

// PendingCount returns the number of armed jobs.
func (r *Runner) PendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers)
}

// Stop cancels all pending jobs without touching the store, for shutdown.
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, timer := range r.timers {
		timer.Stop()
		delete(r.timers, id)
	}
}
