package token

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	byValue map[string]Token
	seq     int
}

func newFakeStore() *fakeStore {
	return &fakeStore{byValue: map[string]Token{}}
}

func (f *fakeStore) Put(_ context.Context, value string, tok Token, ttl time.Duration) error {
	f.byValue[value] = tok
	return nil
}

func (f *fakeStore) Get(_ context.Context, value string) (Token, bool, error) {
	t, ok := f.byValue[value]
	return t, ok, nil
}

func (f *fakeStore) Bump(_ context.Context, value, accountID string, ttl time.Duration) error {
	return nil
}

func (f *fakeStore) Revoke(_ context.Context, value, accountID string) error {
	delete(f.byValue, value)
	return nil
}

func (f *fakeStore) ListLive(_ context.Context, accountID string, kind Kind) ([]string, error) {
	var out []string

	for v, t := range f.byValue {
		if t.AccountId == accountID && t.Kind == kind {
			out = append(out, v)
		}
	}

	return out, nil
}

func (f *fakeStore) RevokeAllForAccount(_ context.Context, accountID string) error {
	for v, t := range f.byValue {
		if t.AccountId == accountID {
			delete(f.byValue, v)
		}
	}

	return nil
}

func sequentialRaw(seq *int) func() (string, error) {
	return func() (string, error) {
		*seq++
		return "tok-" + string(rune('a'+*seq)), nil
	}
}

func TestMint_EvictsOldestWhenCoexistCapReached(t *testing.T) {
	store := newFakeStore()
	mgr := NewManager(store)

	seq := 0
	mgr.NewRaw = sequentialRaw(&seq)

	base := time.Unix(1000, 0)
	tick := 0
	mgr.Clock = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	cfg := KindConfig{ExpireSec: 3600, CoexistNum: 2}

	first, err := mgr.Mint(context.Background(), "acct-1", KindDefault, "", cfg)
	require.NoError(t, err)

	_, err = mgr.Mint(context.Background(), "acct-1", KindDefault, "", cfg)
	require.NoError(t, err)

	assert.Len(t, store.byValue, 2)

	_, err = mgr.Mint(context.Background(), "acct-1", KindDefault, "", cfg)
	require.NoError(t, err)

	assert.Len(t, store.byValue, 2)
	_, stillLive := store.byValue[first.Value]
	assert.False(t, stillLive, "oldest token should have been evicted")
}

func TestRevoke_TokenNeverResolvesAgain(t *testing.T) {
	store := newFakeStore()
	mgr := NewManager(store)

	cfg := KindConfig{ExpireSec: 3600}

	tok, err := mgr.Mint(context.Background(), "acct-1", KindDefault, "", cfg)
	require.NoError(t, err)

	require.NoError(t, mgr.Revoke(context.Background(), tok.Value, "acct-1"))

	_, err = mgr.Resolve(context.Background(), tok.Value, cfg)
	require.Error(t, err)
}

func TestResolve_BumpsStateToActive(t *testing.T) {
	store := newFakeStore()
	mgr := NewManager(store)

	cfg := KindConfig{ExpireSec: 3600}

	tok, err := mgr.Mint(context.Background(), "acct-1", KindDefault, "", cfg)
	require.NoError(t, err)
	assert.Equal(t, StateFresh, tok.State)

	resolved, err := mgr.Resolve(context.Background(), tok.Value, cfg)
	require.NoError(t, err)
	assert.Equal(t, StateActive, resolved.State)
}
