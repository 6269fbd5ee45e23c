package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// rateLimitScript implements a fixed-window counter: the first hit in
// a window sets the TTL, every hit increments, and the caller is
// denied once the window's budget is exhausted. A fixed window is
// simpler than a sliding one and matches spec.md §5's "Login/logout
// paths bypass most checks but still enforce rate-limit per tenant"
// requirement, which only needs a coarse per-tenant budget rather than
// precise pacing.
var rateLimitScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
	redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// RateLimiter implements gateway.RateLimiter against Redis: a per-
// tenant fixed-window counter, using the same scripted-atomic-update
// pattern as Locker's incrFailureScript (spec.md §5's "all counter
// updates ... use scripted atomic updates").
type RateLimiter struct {
	Conn       *Connection
	WindowSec  int
	MaxPerWindow int64
}

func (r *RateLimiter) Allow(ctx context.Context, tenantID string) (bool, error) {
	client, err := r.Conn.GetClient(ctx)
	if err != nil {
		return false, err
	}

	windowSec := r.WindowSec
	if windowSec <= 0 {
		windowSec = 1
	}

	key := fmt.Sprintf("ratelimit:%s:%d", tenantID, time.Now().Unix()/int64(windowSec))

	count, err := rateLimitScript.Run(ctx, client, []string{key}, windowSec).Int64()
	if err != nil {
		return false, err
	}

	max := r.MaxPerWindow
	if max <= 0 {
		max = 100
	}

	return count <= max, nil
}
