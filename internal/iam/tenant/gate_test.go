package tenant

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	byItem map[string]*Ext
}

func (f *fakeRepo) Insert(ctx context.Context, ext *Ext) error { return nil }
func (f *fakeRepo) Update(ctx context.Context, itemID string, patch map[string]any) error {
	return nil
}

func (f *fakeRepo) FindByItemID(ctx context.Context, itemID string) (*Ext, error) {
	return f.byItem[itemID], nil
}

func (f *fakeRepo) Delete(ctx context.Context, itemID string) error { return nil }

func TestSelfRegGate_AllowsWhenTenantOptsIn(t *testing.T) {
	repo := &fakeRepo{byItem: map[string]*Ext{"tenant-1": {ItemId: "tenant-1", AccountSelfReg: true}}}
	gate := &SelfRegGate{Repo: repo}

	allowed, err := gate.AllowsSelfReg(context.Background(), "tenant-1/app-2/account-3")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestSelfRegGate_DeniesWhenTenantOptsOut(t *testing.T) {
	repo := &fakeRepo{byItem: map[string]*Ext{"tenant-1": {ItemId: "tenant-1", AccountSelfReg: false}}}
	gate := &SelfRegGate{Repo: repo}

	allowed, err := gate.AllowsSelfReg(context.Background(), "tenant-1")
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestSelfRegGate_DeniesWhenTenantUnknown(t *testing.T) {
	gate := &SelfRegGate{Repo: &fakeRepo{byItem: map[string]*Ext{}}}

	allowed, err := gate.AllowsSelfReg(context.Background(), "missing-tenant")
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestSelfRegGate_EmptyOwnPathsDenies(t *testing.T) {
	gate := &SelfRegGate{Repo: &fakeRepo{byItem: map[string]*Ext{}}}

	allowed, err := gate.AllowsSelfReg(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, allowed)
}
