package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ideal-world/bios/internal/token"
)

// TokenStore implements token.AccountTokenStore against Redis: the
// token:{t} metadata key plus the account-tokens:{account} hash,
// grounded on the teacher's RedisConsumerRepository Set/Get wrapper
// (common/mredis) generalized to a two-key sliding-window scheme.
type TokenStore struct {
	Conn *Connection
}

func tokenMetaKey(value string) string       { return "token:" + value }
func accountTokensKey(accountID string) string { return "account-tokens:" + accountID }

type tokenMeta struct {
	AccountId string    `json:"account_id"`
	Kind      string    `json:"kind"`
	AppId     string    `json:"app_id,omitempty"`
	IssuedAt  time.Time `json:"issued_at"`
	State     string    `json:"state"`
}

func (s *TokenStore) Put(ctx context.Context, value string, tok token.Token, ttl time.Duration) error {
	client, err := s.Conn.GetClient(ctx)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(tokenMeta{
		AccountId: tok.AccountId,
		Kind:      string(tok.Kind),
		AppId:     tok.AppId,
		IssuedAt:  tok.IssuedAt,
		State:     string(tok.State),
	})
	if err != nil {
		return err
	}

	pipe := client.TxPipeline()
	pipe.Set(ctx, tokenMetaKey(value), string(raw), ttl)
	pipe.HSet(ctx, accountTokensKey(tok.AccountId), value, string(tok.Kind))
	pipe.Expire(ctx, accountTokensKey(tok.AccountId), ttl)

	_, err = pipe.Exec(ctx)

	return err
}

func (s *TokenStore) Get(ctx context.Context, value string) (token.Token, bool, error) {
	client, err := s.Conn.GetClient(ctx)
	if err != nil {
		return token.Token{}, false, err
	}

	raw, err := client.Get(ctx, tokenMetaKey(value)).Result()
	if err == redis.Nil {
		return token.Token{}, false, nil
	}

	if err != nil {
		return token.Token{}, false, err
	}

	var meta tokenMeta
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return token.Token{}, false, fmt.Errorf("cache: unmarshal token meta: %w", err)
	}

	return token.Token{
		Value:     value,
		AccountId: meta.AccountId,
		Kind:      token.Kind(meta.Kind),
		AppId:     meta.AppId,
		IssuedAt:  meta.IssuedAt,
		State:     token.State(meta.State),
	}, true, nil
}

func (s *TokenStore) Bump(ctx context.Context, value, accountID string, ttl time.Duration) error {
	client, err := s.Conn.GetClient(ctx)
	if err != nil {
		return err
	}

	pipe := client.TxPipeline()
	pipe.Expire(ctx, tokenMetaKey(value), ttl)
	pipe.Expire(ctx, accountTokensKey(accountID), ttl)

	_, err = pipe.Exec(ctx)

	return err
}

func (s *TokenStore) Revoke(ctx context.Context, value, accountID string) error {
	client, err := s.Conn.GetClient(ctx)
	if err != nil {
		return err
	}

	pipe := client.TxPipeline()
	pipe.Del(ctx, tokenMetaKey(value))
	pipe.HDel(ctx, accountTokensKey(accountID), value)

	_, err = pipe.Exec(ctx)

	return err
}

// RevokeAllForAccount deletes every token:{t} key for account's live
// tokens and the account-tokens:{account} hash itself.
func (s *TokenStore) RevokeAllForAccount(ctx context.Context, accountID string) error {
	client, err := s.Conn.GetClient(ctx)
	if err != nil {
		return err
	}

	values, err := client.HKeys(ctx, accountTokensKey(accountID)).Result()
	if err != nil {
		return err
	}

	pipe := client.TxPipeline()
	for _, v := range values {
		pipe.Del(ctx, tokenMetaKey(v))
	}
	pipe.Del(ctx, accountTokensKey(accountID))

	_, err = pipe.Exec(ctx)

	return err
}

// ListLive returns the live tokens of (account, kind) in no particular
// order; token.Manager resolves each one's issued_at to find the
// eviction candidate, since Redis hash iteration order is not FIFO.
func (s *TokenStore) ListLive(ctx context.Context, accountID string, kind token.Kind) ([]string, error) {
	client, err := s.Conn.GetClient(ctx)
	if err != nil {
		return nil, err
	}

	all, err := client.HGetAll(ctx, accountTokensKey(accountID)).Result()
	if err != nil {
		return nil, err
	}

	var live []string

	for value, k := range all {
		if token.Kind(k) == kind {
			live = append(live, value)
		}
	}

	return live, nil
}
