package taskreg

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpawn_RegistersRunningHandle(t *testing.T) {
	r := NewRegistry()

	_, taskId := r.Spawn(context.Background(), "batch-account-sync")

	h, ok := r.Lookup(taskId)
	require.True(t, ok)
	assert.Equal(t, StateRunning, h.State)
	assert.Equal(t, "batch-account-sync", h.Label)
}

func TestAbort_CancelsContextAndMarksAborted(t *testing.T) {
	r := NewRegistry()

	ctx, taskId := r.Spawn(context.Background(), "fleet-recompute")

	ok := r.Abort(taskId)
	require.True(t, ok)

	select {
	case <-ctx.Done():
	default:
		t.Fatal("expected task context to be canceled")
	}

	h, _ := r.Lookup(taskId)
	assert.Equal(t, StateAborted, h.State)
}

func TestAbort_UnknownTaskReturnsFalse(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.Abort("does-not-exist"))
}

func TestCleanup_EvictsOnlyTerminalEntriesOlderThanCutoff(t *testing.T) {
	r := NewRegistry()

	now := time.Now()
	r.clock = func() time.Time { return now }

	_, running := r.Spawn(context.Background(), "still-running")
	_, finished := r.Spawn(context.Background(), "finished-long-ago")
	_, recent := r.Spawn(context.Background(), "finished-recently")

	r.Finish(finished, StateDone)
	r.Finish(recent, StateDone)

	r.clock = func() time.Time { return now.Add(time.Hour) }

	// finished-recently completed "just now" in relative terms: bump
	// its StartedAt forward so it isn't swept alongside finished.
	r.mu.Lock()
	r.handles[recent].StartedAt = now.Add(55 * time.Minute)
	r.mu.Unlock()

	evicted := r.Cleanup(30 * time.Minute)
	assert.Equal(t, 1, evicted)

	_, runningStillThere := r.Lookup(running)
	assert.True(t, runningStillThere)

	_, finishedGone := r.Lookup(finished)
	assert.False(t, finishedGone)

	_, recentStillThere := r.Lookup(recent)
	assert.True(t, recentStillThere)
}
