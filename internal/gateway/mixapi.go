package gateway

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ideal-world/bios/internal/core/bioserr"
	"github.com/ideal-world/bios/internal/crypto/sm"
)

// MixEnvelope is the inner request the Mix-API form wraps inside an
// encrypted outer envelope (spec.md §4.5, "Mix-API form").
type MixEnvelope struct {
	Method  string            `json:"method"`
	URI     string            `json:"uri"`
	Body    json.RawMessage   `json:"body"`
	Headers map[string]string `json:"headers"`
	Ts      int64             `json:"ts"` // unix millis
}

// NonceChecker is the narrow cache contract anti-replay detection
// needs: a short-TTL nonce:{ts}:{digest} marker (spec.md §4.5).
type NonceChecker interface {
	// ClaimNonce atomically sets the marker if absent, returning
	// false if it was already present (a replay).
	ClaimNonce(ctx context.Context, ts int64, digest string, ttl time.Duration) (claimed bool, err error)
}

// MixSkew bounds how far a Mix-API envelope's ts may drift from now.
const MixSkew = 5 * time.Minute

// NonceTTL is how long a claimed nonce marker survives, must exceed
// MixSkew so a replay within the skew window is still caught.
const NonceTTL = 10 * time.Minute

// UnwrapMix decodes the outer envelope's body as a MixEnvelope, checks
// its ts against the configured skew, and claims its replay-detection
// nonce, then returns the inner Request ready for Pipeline.Handle.
func UnwrapMix(ctx context.Context, outer Request, nonces NonceChecker, now time.Time) (Request, error) {
	var mix MixEnvelope
	if err := json.Unmarshal(outer.Body, &mix); err != nil {
		return Request{}, bioserr.ValidationError{Code: "400-bios-mix-malformed", Message: "mix-api envelope could not be decoded"}
	}

	ts := time.UnixMilli(mix.Ts)
	if now.Sub(ts) > MixSkew || ts.Sub(now) > MixSkew {
		return Request{}, bioserr.UnauthorizedError{Code: "401-bios-mix-skew", Message: "request timestamp outside the allowed skew"}
	}

	digest := sm.HashHex(mix.Body)

	claimed, err := nonces.ClaimNonce(ctx, mix.Ts, digest, NonceTTL)
	if err != nil {
		return Request{}, err
	}

	if !claimed {
		return Request{}, bioserr.UnauthorizedError{Code: "401-bios-mix-replay", Message: "request already seen"}
	}

	return Request{
		Method:  mix.Method,
		Path:    mix.URI,
		Body:    mix.Body,
		Headers: mix.Headers,
		Date:    ts,
	}, nil
}
