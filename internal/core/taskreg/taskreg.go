// Package taskreg implements the process-wide background task table
// of spec.md §5: named long operations (batch account sync,
// fleet-wide recompute) tracked in a `{task_id -> handle}` map guarded
// by a read-write lock, with a bit-indexed progress vector kept in the
// cache so a fleet of gateway replicas can all observe one task's
// progress.
package taskreg

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is a background task's terminal/non-terminal lifecycle state.
type State int

const (
	StateRunning State = iota
	StateDone
	StateFailed
	StateAborted
)

// Handle is the process-wide record of one running background task.
// Cancel aborts the task's context; callers of long operations must
// select on ctx.Done() at their suspension points (spec.md §5,
// "Cancellation & timeout").
type Handle struct {
	TaskId    string
	Label     string
	StartedAt time.Time
	State     State
	cancel    context.CancelFunc
}

// Registry is the in-process `{task_id -> handle}` table, guarded by
// a read-write lock per spec.md §5's explicit requirement for
// TOKEN_CTX_MAP/TASK_HANDLE-style in-process maps.
type Registry struct {
	mu      sync.RWMutex
	handles map[string]*Handle
	clock   func() time.Time
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handles: map[string]*Handle{}, clock: time.Now}
}

// Spawn registers a new background task, returning a context the
// caller's goroutine must run under (so Abort can cancel it) and the
// task id assigned.
func (r *Registry) Spawn(parent context.Context, label string) (context.Context, string) {
	ctx, cancel := context.WithCancel(parent)

	taskId := uuid.NewString()

	r.mu.Lock()
	r.handles[taskId] = &Handle{
		TaskId:    taskId,
		Label:     label,
		StartedAt: r.clock(),
		State:     StateRunning,
		cancel:    cancel,
	}
	r.mu.Unlock()

	return ctx, taskId
}

// Finish marks a task terminal. Calling Finish on an unknown task id
// is a no-op: the caller may race a Cleanup sweep that already evicted
// it.
func (r *Registry) Finish(taskId string, state State) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.handles[taskId]; ok {
		h.State = state
	}
}

// Abort cancels a running task's context and marks it StateAborted.
// Reports false if the task id is unknown.
func (r *Registry) Abort(taskId string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.handles[taskId]
	if !ok {
		return false
	}

	h.cancel()
	h.State = StateAborted

	return true
}

// Lookup returns a copy of the handle's public fields, or false if
// the task id is unknown or has been swept.
func (r *Registry) Lookup(taskId string) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handles[taskId]
	if !ok {
		return Handle{}, false
	}

	return *h, true
}

// Cleanup evicts terminal (non-running) entries older than olderThan,
// meant to run on a 30-minute ticker per spec.md §5's "background
// cleaner task that evicts expired entries every 30 minutes".
func (r *Registry) Cleanup(olderThan time.Duration) int {
	cutoff := r.clock().Add(-olderThan)

	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0

	for id, h := range r.handles {
		if h.State != StateRunning && h.StartedAt.Before(cutoff) {
			delete(r.handles, id)
			evicted++
		}
	}

	return evicted
}

// RunCleaner blocks running Cleanup every interval until ctx is
// canceled, the idiomatic ticker-loop shape for the process-wide
// cleaner spec.md §5 calls for.
func (r *Registry) RunCleaner(ctx context.Context, interval, olderThan time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Cleanup(olderThan)
		}
	}
}
