package token

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the self-describing payload carried by a KindJWT token's
// Value, alongside (not instead of) the opaque-token cache entry
// Store.Put still writes — the coexistence cap and sliding-window TTL
// bump of spec.md §4.3 apply identically regardless of which kind
// mints the value.
type Claims struct {
	jwt.RegisteredClaims
	AccountId string `json:"account_id"`
	AppId     string `json:"app_id,omitempty"`
}

// JWTIssuer signs and parses KindJWT token values with a single HMAC
// key, for callers (service-to-service API clients) that want a
// self-verifiable token instead of an opaque cache-only one.
type JWTIssuer struct {
	SigningKey []byte
}

// Sign mints a compact JWT string carrying accountID/appID and an
// expiry ttl from now.
func (j *JWTIssuer) Sign(accountID, appID string, ttl time.Duration, now time.Time) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		AccountId: accountID,
		AppId:     appID,
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.SigningKey)
}

// Parse validates value's signature and expiry and returns its claims.
func (j *JWTIssuer) Parse(value string) (*Claims, error) {
	var claims Claims

	_, err := jwt.ParseWithClaims(value, &claims, func(t *jwt.Token) (any, error) {
		return j.SigningKey, nil
	})
	if err != nil {
		return nil, err
	}

	return &claims, nil
}

// MintJWT mints a KindJWT token: a signed JWT as the opaque value,
// still subject to the coexistence cap and stored under the same
// AccountTokenStore keyspace as any other kind (spec.md §4.3).
func (m *Manager) MintJWT(ctx context.Context, issuer *JWTIssuer, accountID, appID string, cfg KindConfig) (Token, error) {
	if cfg.CoexistNum > 0 {
		live, err := m.Store.ListLive(ctx, accountID, KindJWT)
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

	now := m.Clock()

	ttl := time.Duration(cfg.ExpireSec) * time.Second
	if ttl <= 0 {
		ttl = time.Hour
	}

	value, err := issuer.Sign(accountID, appID, ttl, now)
	if err != nil {
		return Token{}, err
	}

	tok := Token{Value: value, AccountId: accountID, Kind: KindJWT, AppId: appID, IssuedAt: now, State: StateFresh}

	if err := m.Store.Put(ctx, value, tok, ttl); err != nil {
		return Token{}, err
	}

	return tok, nil
}
