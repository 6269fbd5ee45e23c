package token

import (
	"context"
	"time"
)

// AccountTokenStore is the narrow cache contract of spec.md §4.3:
// token:{t} metadata plus the per-account account-tokens:{account}
// hash used both for coexistence counting and sliding-window TTL
// bumps.
type AccountTokenStore interface {
	// Put writes token:{value} with ttl, and adds value to
	// account-tokens:{account_id}.
	Put(ctx context.Context, value string, tok Token, ttl time.Duration) error
	// Get reads token:{value}, returning ok=false if absent/expired.
	Get(ctx context.Context, value string) (Token, bool, error)
	// Bump resets both the token:{value} TTL and the owning
	// account-tokens:{account_id} hash TTL (the sliding window).
	Bump(ctx context.Context, value, accountID string, ttl time.Duration) error
	// Revoke deletes token:{value} and removes it from
	// account-tokens:{account_id}.
	Revoke(ctx context.Context, value, accountID string) error
	// ListLive returns the live tokens of (account, kind), in no
	// particular order, for the coexistence cap check (P3).
	ListLive(ctx context.Context, accountID string, kind Kind) ([]string, error)
	// RevokeAllForAccount deletes every live token of accountID
	// regardless of kind, used by the inactivity sweeper's Logout
	// transition (spec.md §4.6).
	RevokeAllForAccount(ctx context.Context, accountID string) error
}
