package propagator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ideal-world/bios/internal/cache"
	"github.com/ideal-world/bios/internal/core/asynctask"
	"github.com/ideal-world/bios/internal/iam/res"
	"github.com/ideal-world/bios/internal/rbum/rel"
)

type fakeRelRepo struct {
	rows []rel.Rel
}

func (f *fakeRelRepo) Insert(_ context.Context, r *rel.Rel) error      { f.rows = append(f.rows, *r); return nil }
func (f *fakeRelRepo) InsertAttr(_ context.Context, a *rel.Attr) error { return nil }
func (f *fakeRelRepo) InsertEnv(_ context.Context, e *rel.Env) error   { return nil }
func (f *fakeRelRepo) FindByID(_ context.Context, id string) (*rel.Rel, error) {
	for _, r := range f.rows {
		if r.Id == id {
			return &r, nil
		}
	}

	return nil, nil
}

func (f *fakeRelRepo) Find(_ context.Context, filter rel.Filter) ([]rel.Rel, error) {
	var out []rel.Rel

	for _, r := range f.rows {
		if filter.Tag != "" && filter.Tag != r.Tag {
			continue
		}

		if filter.FromKind != "" && filter.FromKind != r.FromKind {
			continue
		}

		if filter.FromId != "" && filter.FromId != r.FromId {
			continue
		}

		if filter.ToId != "" && filter.ToId != r.ToId {
			continue
		}

		out = append(out, r)
	}

	return out, nil
}

func (f *fakeRelRepo) Env(_ context.Context, relId string) (*rel.Env, error) { return nil, nil }
func (f *fakeRelRepo) HasStrongDependents(_ context.Context, id string) (bool, error) {
	return false, nil
}

func (f *fakeRelRepo) Delete(_ context.Context, id string) error {
	kept := f.rows[:0]

	for _, r := range f.rows {
		if r.Id != id {
			kept = append(kept, r)
		}
	}

	f.rows = kept

	return nil
}

type fakeResRepo struct {
	byItemID map[string]*res.Ext
}

func (f *fakeResRepo) Insert(_ context.Context, ext *res.Ext) error { f.byItemID[ext.ItemId] = ext; return nil }
func (f *fakeResRepo) Update(_ context.Context, itemID string, patch map[string]any) error {
	return nil
}
func (f *fakeResRepo) FindByItemID(_ context.Context, itemID string) (*res.Ext, error) {
	return f.byItemID[itemID], nil
}
func (f *fakeResRepo) Delete(_ context.Context, itemID string) error { delete(f.byItemID, itemID); return nil }

type fakePolicyWriter struct {
	resources map[string]cache.Descriptor
	bustedAccounts []string
	aksk      map[string]string
}

func newFakePolicyWriter() *fakePolicyWriter {
	return &fakePolicyWriter{resources: map[string]cache.Descriptor{}, aksk: map[string]string{}}
}

func (w *fakePolicyWriter) Write(_ context.Context, fingerprint string, desc cache.Descriptor, _ int64) error {
	w.resources[fingerprint] = desc
	return nil
}

func (w *fakePolicyWriter) Delete(_ context.Context, fingerprint string, _ int64) error {
	delete(w.resources, fingerprint)
	return nil
}

func (w *fakePolicyWriter) BustContext(_ context.Context, account string) error {
	w.bustedAccounts = append(w.bustedAccounts, account)
	return nil
}

func (w *fakePolicyWriter) SetAkSk(_ context.Context, ak, sk, tenant, app string, _ time.Duration) error {
	w.aksk[ak] = sk + ":" + tenant + ":" + app
	return nil
}

func (w *fakePolicyWriter) DeleteAkSk(_ context.Context, ak string) error {
	delete(w.aksk, ak)
	return nil
}

func TestApply_ResRoleRelBuildsResourcesField(t *testing.T) {
	rels := &fakeRelRepo{rows: []rel.Rel{
		{Id: "r1", Tag: TagRoleRes, FromKind: "role", FromId: "role-admin", ToId: "res-1"},
		{Id: "r2", Tag: TagRoleAccount, FromKind: "role", FromId: "role-admin", ToId: "acct-1"},
	}}
	resRepo := &fakeResRepo{byItemID: map[string]*res.Ext{
		"res-1": {ItemId: "res-1", Method: "GET", URI: "/iam/apis"},
	}}
	policy := newFakePolicyWriter()

	p := NewPropagator(rels, resRepo, policy, nil)
	p.Clock = func() time.Time { return time.Unix(1000, 0) }

	err := p.Apply(context.Background(), asynctask.Change{Kind: "res_role_rel", Id: "res-1"})
	require.NoError(t, err)

	desc, ok := policy.resources[cache.Fingerprint("GET", "/iam/apis")]
	require.True(t, ok)
	assert.Contains(t, desc.Roles, "#role-admin#")
	assert.Contains(t, desc.Accounts, "#acct-1#")
}

func TestApply_ResRoleRelRemovedDeletesResourcesField(t *testing.T) {
	fingerprint := cache.Fingerprint("GET", "/iam/apis")

	rels := &fakeRelRepo{} // no role_res rel remains: binding was removed
	resRepo := &fakeResRepo{byItemID: map[string]*res.Ext{
		"res-1": {ItemId: "res-1", Method: "GET", URI: "/iam/apis"},
	}}
	policy := newFakePolicyWriter()
	policy.resources[fingerprint] = cache.Descriptor{Roles: "#role-admin#"}

	p := NewPropagator(rels, resRepo, policy, nil)

	err := p.Apply(context.Background(), asynctask.Change{Kind: "res_role_rel", Id: "res-1"})
	require.NoError(t, err)

	_, ok := policy.resources[fingerprint]
	assert.False(t, ok)
}

func TestApply_RoleSubjectRelRewritesEveryReachableResource(t *testing.T) {
	rels := &fakeRelRepo{rows: []rel.Rel{
		{Id: "r1", Tag: TagRoleRes, FromKind: "role", FromId: "role-admin", ToId: "res-1"},
		{Id: "r2", Tag: TagRoleRes, FromKind: "role", FromId: "role-admin", ToId: "res-2"},
		{Id: "r3", Tag: TagRoleAccount, FromKind: "role", FromId: "role-admin", ToId: "acct-9"},
	}}
	resRepo := &fakeResRepo{byItemID: map[string]*res.Ext{
		"res-1": {ItemId: "res-1", Method: "GET", URI: "/iam/apis"},
		"res-2": {ItemId: "res-2", Method: "POST", URI: "/iam/apis"},
	}}
	policy := newFakePolicyWriter()

	p := NewPropagator(rels, resRepo, policy, nil)

	err := p.Apply(context.Background(), asynctask.Change{Kind: "role_subject_rel", Id: "role-admin", New: "acct-9"})
	require.NoError(t, err)

	_, ok1 := policy.resources[cache.Fingerprint("GET", "/iam/apis")]
	_, ok2 := policy.resources[cache.Fingerprint("POST", "/iam/apis")]
	assert.True(t, ok1)
	assert.True(t, ok2)
	assert.Contains(t, policy.bustedAccounts, "acct-9")
}

func TestApply_CertChangeUpdatesAndRevokesAkSkCache(t *testing.T) {
	policy := newFakePolicyWriter()
	p := NewPropagator(&fakeRelRepo{}, &fakeResRepo{byItemID: map[string]*res.Ext{}}, policy, nil)

	err := p.Apply(context.Background(), asynctask.Change{Kind: "cert", New: CertChange{Ak: "ak-1", Sk: "sk-1", Tenant: "t1", App: "app1", ValidFor: time.Hour}})
	require.NoError(t, err)
	assert.Equal(t, "sk-1:t1:app1", policy.aksk["ak-1"])

	err = p.Apply(context.Background(), asynctask.Change{Kind: "cert", New: CertChange{Ak: "ak-1", Revoked: true}})
	require.NoError(t, err)
	_, ok := policy.aksk["ak-1"]
	assert.False(t, ok)
}

func TestDrain_AppliesAllEnqueuedChangesAndObservesLag(t *testing.T) {
	rels := &fakeRelRepo{rows: []rel.Rel{
		{Id: "r1", Tag: TagRoleRes, FromKind: "role", FromId: "role-admin", ToId: "res-1"},
	}}
	resRepo := &fakeResRepo{byItemID: map[string]*res.Ext{
		"res-1": {ItemId: "res-1", Method: "GET", URI: "/iam/apis"},
	}}
	policy := newFakePolicyWriter()

	p := NewPropagator(rels, resRepo, policy, nil)

	ctx := asynctask.NewContext(context.Background())
	asynctask.Enqueue(ctx, asynctask.Change{Kind: "res_role_rel", Id: "res-1"})

	err := p.Drain(ctx)
	require.NoError(t, err)

	_, ok := policy.resources[cache.Fingerprint("GET", "/iam/apis")]
	assert.True(t, ok)
}
