// Package token implements the Token Manager (C3) of spec.md §4.3:
// minting, binding, renewal, and revocation of opaque tokens, the
// coexistence cap (P3), and the sliding-window TTL bump on each
// successful request.
package token

import "time"

// State is the token lifecycle state of spec.md §4.6's state machine:
// Fresh -> Active -> Idle -> Expired|Revoked.
type State string

const (
	StateFresh   State = "Fresh"
	StateActive  State = "Active"
	StateIdle    State = "Idle"
	StateExpired State = "Expired"
	StateRevoked State = "Revoked"
)

// Kind distinguishes coexistence cap pools; each kind carries its own
// expiry and cap (spec.md §4.3).
type Kind string

const (
	KindDefault Kind = "Default"
	KindJWT     Kind = "JWT"
)

// Token is the minted credential handed back to the caller. The
// opaque value itself is never persisted in this struct's JSON form —
// only the cache layer maps Value to this metadata.
type Token struct {
	Value     string    `json:"-"`
	AccountId string    `json:"account_id"`
	Kind      Kind      `json:"kind"`
	AppId     string    `json:"app_id,omitempty"`
	IssuedAt  time.Time `json:"issued_at"`
	State     State     `json:"state"`
}
