package token

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/ideal-world/bios/internal/core/bioserr"
)

// KindConfig holds a token kind's expiry and coexistence cap, set per
// tenant/CertConf-adjacent configuration (spec.md §4.3).
type KindConfig struct {
	ExpireSec  int
	CoexistNum int
}

// Manager mints, binds, renews, and revokes tokens, enforcing the
// coexistence cap and the sliding-window TTL bump (P3, spec.md §4.3).
type Manager struct {
	Store  AccountTokenStore
	Clock  func() time.Time
	NewRaw func() (string, error)
}

// NewManager builds a Manager with the real clock and a CSPRNG token
// generator. There is no pack precedent for raw opaque-token
// generation (the teacher only ever generates IDs via uuid); a CSPRNG
// read is the natural primitive here, not a library concern.
func NewManager(store AccountTokenStore) *Manager {
	return &Manager{Store: store, Clock: time.Now, NewRaw: newRandomToken}
}

func newRandomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Mint enforces the coexistence rule (evict oldest when the cap would
// be exceeded) and then writes a fresh token (spec.md §4.3,
// "Coexistence rule").
func (m *Manager) Mint(ctx context.Context, accountID string, kind Kind, appID string, cfg KindConfig) (Token, error) {
	if cfg.CoexistNum > 0 {
		live, err := m.Store.ListLive(ctx, accountID, kind)
		if err != nil {
			return Token{}, err
		}

		if len(live) >= cfg.CoexistNum {
			oldest, err := m.oldest(ctx, live)
			if err != nil {
				return Token{}, err
			}

			if err := m.Store.Revoke(ctx, oldest, accountID); err != nil {
				return Token{}, err
			}
		}
	}

	raw, err := m.NewRaw()
	if err != nil {
		return Token{}, bioserr.InternalError{Code: "500-iam-token-rand", Err: err}
	}

	now := m.Clock()

	tok := Token{
		Value:     raw,
		AccountId: accountID,
		Kind:      kind,
		AppId:     appID,
		IssuedAt:  now,
		State:     StateFresh,
	}

	ttl := time.Duration(cfg.ExpireSec) * time.Second
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	if err := m.Store.Put(ctx, raw, tok, ttl); err != nil {
		return Token{}, err
	}

	return tok, nil
}

// oldest resolves each live token's issued_at and returns the value
// with the earliest one, implementing the coexistence rule's "evicts
// the oldest" (spec.md §4.3) regardless of the store's hash iteration
// order.
func (m *Manager) oldest(ctx context.Context, values []string) (string, error) {
	var (
		oldestValue string
		oldestAt    time.Time
	)

	for _, v := range values {
		tok, ok, err := m.Store.Get(ctx, v)
		if err != nil {
			return "", err
		}

		if !ok {
			continue
		}

		if oldestValue == "" || tok.IssuedAt.Before(oldestAt) {
			oldestValue = v
			oldestAt = tok.IssuedAt
		}
	}

	return oldestValue, nil
}

// Resolve looks up a presented token value, transitioning Fresh/Idle
// to Active and bumping the sliding window on every successful
// request (spec.md §4.3, §4.6's token state machine).
func (m *Manager) Resolve(ctx context.Context, value string, cfg KindConfig) (Token, error) {
	tok, ok, err := m.Store.Get(ctx, value)
	if err != nil {
		return Token{}, err
	}

	if !ok || tok.State == StateRevoked || tok.State == StateExpired {
		return Token{}, bioserr.UnauthorizedError{Code: "401-iam-token-invalid"}
	}

	tok.State = StateActive

	ttl := time.Duration(cfg.ExpireSec) * time.Second
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	if err := m.Store.Bump(ctx, value, tok.AccountId, ttl); err != nil {
		return Token{}, err
	}

	return tok, nil
}

// Revoke implements logout: the token is deleted outright rather than
// marked, since a revoked token must never again resolve (spec.md
// scenario 1, "Logout -> subsequent call with T -> 401").
func (m *Manager) Revoke(ctx context.Context, value, accountID string) error {
	return m.Store.Revoke(ctx, value, accountID)
}

// RevokeAll implements the sweeper's Logout transition: every live
// token of accountID, of any kind, stops resolving.
func (m *Manager) RevokeAll(ctx context.Context, accountID string) error {
	return m.Store.RevokeAllForAccount(ctx, accountID)
}
