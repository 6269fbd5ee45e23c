package credential

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ideal-world/bios/internal/core/bioserr"
	"github.com/ideal-world/bios/internal/rbum/item"
	"github.com/ideal-world/bios/internal/rbum/kernel"
	"github.com/ideal-world/bios/internal/rbum/rel"
)

type fakeProvisionItems struct {
	byID map[string]*item.Item
}

func (f *fakeProvisionItems) Insert(_ context.Context, it *item.Item) error {
	cp := *it
	f.byID[it.Id] = &cp
	return nil
}
func (f *fakeProvisionItems) Update(context.Context, string, map[string]any) error { return nil }
func (f *fakeProvisionItems) FindByID(_ context.Context, id string) (*item.Item, error) {
	return f.byID[id], nil
}
func (f *fakeProvisionItems) FindByCode(context.Context, string, string, string, string) (*item.Item, error) {
	return nil, nil
}
func (f *fakeProvisionItems) Paginate(context.Context, item.Filter, int, int, string) (item.Page[item.Item], error) {
	return item.Page[item.Item]{}, nil
}
func (f *fakeProvisionItems) Delete(_ context.Context, id string) error {
	delete(f.byID, id)
	return nil
}

type fakeProvisionRels struct{}

func (fakeProvisionRels) Insert(context.Context, *rel.Rel) error                  { return nil }
func (fakeProvisionRels) InsertAttr(context.Context, *rel.Attr) error             { return nil }
func (fakeProvisionRels) InsertEnv(context.Context, *rel.Env) error               { return nil }
func (fakeProvisionRels) FindByID(context.Context, string) (*rel.Rel, error)      { return nil, nil }
func (fakeProvisionRels) Find(context.Context, rel.Filter) ([]rel.Rel, error)     { return nil, nil }
func (fakeProvisionRels) Env(context.Context, string) (*rel.Env, error)           { return nil, nil }
func (fakeProvisionRels) HasStrongDependents(context.Context, string) (bool, error) {
	return false, nil
}
func (fakeProvisionRels) Delete(context.Context, string) error { return nil }

type fakeAccountExtHandler struct {
	insertErr error
}

func (h *fakeAccountExtHandler) ExtTableName() string { return "iam_account" }
func (h *fakeAccountExtHandler) InsertExt(context.Context, string, any) error {
	return h.insertErr
}
func (h *fakeAccountExtHandler) UpdateExt(context.Context, string, map[string]any) error { return nil }
func (h *fakeAccountExtHandler) DeleteExt(context.Context, string) error                 { return nil }
func (h *fakeAccountExtHandler) DefaultRels(string, any) []rel.Rel                       { return nil }

type alwaysAllowGate struct{ allow bool }

func (g alwaysAllowGate) AllowsSelfReg(context.Context, string) (bool, error) { return g.allow, nil }

func newTestProvisioner(t *testing.T) (*Provisioner, *fakeProvisionItems, *fakeAccountExtHandler) {
	t.Helper()

	items := &fakeProvisionItems{byID: map[string]*item.Item{}}
	registry := kernel.NewRegistry()
	handler := &fakeAccountExtHandler{}
	registry.Register("account", handler)

	k := kernel.New(items, fakeProvisionRels{}, registry)
	k.NewID = func() string { return "new-id" }

	confs := &fakeConfRepo{byID: map[string]*CertConf{
		"conf-1": {Id: "conf-1", Kind: KindOAuth2, OwnPaths: "t1"},
	}}
	certs := &fakeCertRepo{byAk: map[string]*Cert{}}

	p := NewProvisioner(k, confs, certs, alwaysAllowGate{allow: true})
	p.NewID = func() string { return "new-id" }
	p.Clock = func() time.Time { return time.Unix(4000, 0) }

	return p, items, handler
}

func TestResolve_ReturnsExistingCertWithoutProvisioning(t *testing.T) {
	p, items, _ := newTestProvisioner(t)
	p.Certs.(*fakeCertRepo).byAk["bob|conf-1"] = &Cert{Id: "cert-existing", Ak: "bob", CertConfId: "conf-1"}

	cert, err := p.Resolve(context.Background(), "conf-1", "t1", ExternalIdentity{Ak: "bob"})
	require.NoError(t, err)
	assert.Equal(t, "cert-existing", cert.Id)
	assert.Empty(t, items.byID)
}

func TestResolve_RefusesWhenSelfRegDisabled(t *testing.T) {
	p, _, _ := newTestProvisioner(t)
	p.Gate = alwaysAllowGate{allow: false}

	_, err := p.Resolve(context.Background(), "conf-1", "t1", ExternalIdentity{Ak: "bob"})
	require.Error(t, err)

	_, ok := bioserr.As[bioserr.ForbiddenError](err)
	assert.True(t, ok)
}

func TestResolve_RunsAccountAndCertCreationThroughTxer(t *testing.T) {
	p, items, _ := newTestProvisioner(t)

	txCalls := 0
	p.Txer = func(ctx context.Context, fn func(ctx context.Context) error) error {
		txCalls++
		return fn(ctx)
	}

	cert, err := p.Resolve(context.Background(), "conf-1", "t1", ExternalIdentity{Ak: "bob", Name: "Bob"})
	require.NoError(t, err)

	assert.Equal(t, 1, txCalls)
	assert.Equal(t, "new-id", cert.ItemId)
	assert.NotNil(t, items.byID["new-id"])
}

func TestResolve_RollsBackAccountCreationWhenCertInsertFails(t *testing.T) {
	p, items, _ := newTestProvisioner(t)
	p.Certs = &failingInsertCertRepo{fakeCertRepo: p.Certs.(*fakeCertRepo)}

	txCalls := 0
	p.Txer = func(ctx context.Context, fn func(ctx context.Context) error) error {
		txCalls++

		snapshot := make(map[string]*item.Item, len(items.byID))
		for k, v := range items.byID {
			snapshot[k] = v
		}

		if err := fn(ctx); err != nil {
			items.byID = snapshot
			return err
		}

		return nil
	}

	_, err := p.Resolve(context.Background(), "conf-1", "t1", ExternalIdentity{Ak: "bob"})
	require.Error(t, err)

	assert.Equal(t, 1, txCalls)
	assert.Empty(t, items.byID)
}

type failingInsertCertRepo struct {
	*fakeCertRepo
}

func (f *failingInsertCertRepo) Insert(context.Context, *Cert) error {
	return bioserr.InternalError{Code: "500-test-cert-insert-failed"}
}
