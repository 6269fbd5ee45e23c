package cache

import (
	"context"
	"fmt"
	"time"
)

// NonceGuard implements gateway.NonceChecker against Redis: a single
// SETNX-with-TTL call gives atomic claim-or-reject semantics for the
// Mix-API form's nonce:{ts}:{digest} anti-replay marker (spec.md
// §4.5).
type NonceGuard struct {
	Conn *Connection
}

func (n *NonceGuard) ClaimNonce(ctx context.Context, ts int64, digest string, ttl time.Duration) (bool, error) {
	client, err := n.Conn.GetClient(ctx)
	if err != nil {
		return false, err
	}

	key := fmt.Sprintf("nonce:%d:%s", ts, digest)

	return client.SetNX(ctx, key, "1", ttl).Result()
}
