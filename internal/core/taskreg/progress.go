package taskreg

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// SubtaskState is the 2-bit status one subtask slot carries in the
// cache-backed progress vector: spec.md §5 calls for "bits 1..n mark
// completion" with "overflow" handled by a paired-bit scheme once a
// single completion bit can no longer distinguish done-vs-failed.
type SubtaskState int

const (
	SubtaskPending SubtaskState = iota
	SubtaskDone
	SubtaskFailed
	SubtaskSkipped
)

// setSubtaskScript atomically reads and rewrites one 2-bit pair at
// offset KEYS[1][ARGV[1]*2], the paired-bit update spec.md §5
// describes, kept as a Lua script for the same atomicity reason the
// credential lock counters and policy cache use one (internal/cache's
// incrFailureScript/consumeVCodeScript).
var setSubtaskScript = redis.NewScript(`
local key = KEYS[1]
local bitoff = tonumber(ARGV[1]) * 2
local state = tonumber(ARGV[2])
redis.call('BITFIELD', key, 'SET', 'u2', '#' .. tostring(bitoff / 2), state)
return 1
`)

// ProgressVector tracks one background task's per-subtask completion
// state as a Redis bitfield, so every gateway replica observes the
// same fleet-wide progress.
type ProgressVector struct {
	Client *redis.Client
	Prefix string
}

func (p *ProgressVector) key(taskId string) string {
	return p.Prefix + ":task:" + taskId + ":progress"
}

// SetSubtask marks subtask idx (0-based) with state.
func (p *ProgressVector) SetSubtask(ctx context.Context, taskId string, idx int, state SubtaskState) error {
	return setSubtaskScript.Run(ctx, p.Client, []string{p.key(taskId)}, idx, int(state)).Err()
}

// Progress reads back the state of every subtask in [0,total).
func (p *ProgressVector) Progress(ctx context.Context, taskId string, total int) ([]SubtaskState, error) {
	if total == 0 {
		return nil, nil
	}

	args := make([]any, 0, total*3)

	for i := 0; i < total; i++ {
		args = append(args, "GET", "u2", "#"+strconv.Itoa(i))
	}

	cmd := p.Client.BitField(ctx, p.key(taskId), args...)

	vals, err := cmd.Result()
	if err != nil {
		return nil, err
	}

	out := make([]SubtaskState, total)
	for i, v := range vals {
		out[i] = SubtaskState(v)
	}

	return out, nil
}
