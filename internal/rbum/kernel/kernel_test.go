package kernel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ideal-world/bios/internal/core/bioserr"
	"github.com/ideal-world/bios/internal/rbum/item"
	"github.com/ideal-world/bios/internal/rbum/rel"
)

type fakeItems struct {
	byID   map[string]*item.Item
	byCode map[string]*item.Item
}

func newFakeItems() *fakeItems {
	return &fakeItems{byID: map[string]*item.Item{}, byCode: map[string]*item.Item{}}
}

func codeKey(kind, domain, ownPaths, code string) string {
	return kind + "|" + domain + "|" + ownPaths + "|" + code
}

func (f *fakeItems) Insert(_ context.Context, it *item.Item) error {
	cp := *it
	f.byID[it.Id] = &cp
	f.byCode[codeKey(it.Kind, it.Domain, it.OwnPaths, it.Code)] = &cp

	return nil
}

func (f *fakeItems) Update(_ context.Context, id string, patch map[string]any) error {
	it, ok := f.byID[id]
	if !ok {
		return bioserr.NotFoundError{Message: "not found"}
	}

	if code, ok := patch["code"].(string); ok {
		delete(f.byCode, codeKey(it.Kind, it.Domain, it.OwnPaths, it.Code))
		it.Code = code
		f.byCode[codeKey(it.Kind, it.Domain, it.OwnPaths, it.Code)] = it
	}

	return nil
}

func (f *fakeItems) FindByID(_ context.Context, id string) (*item.Item, error) {
	return f.byID[id], nil
}

func (f *fakeItems) FindByCode(_ context.Context, kind, domain, ownPaths, code string) (*item.Item, error) {
	return f.byCode[codeKey(kind, domain, ownPaths, code)], nil
}

func (f *fakeItems) Paginate(_ context.Context, _ item.Filter, page, size int, _ string) (item.Page[item.Item], error) {
	var items []item.Item
	for _, it := range f.byID {
		items = append(items, *it)
	}

	return item.Page[item.Item]{Items: items, Page: page, Size: size, Total: len(items)}, nil
}

func (f *fakeItems) Delete(_ context.Context, id string) error {
	it := f.byID[id]
	if it != nil {
		delete(f.byCode, codeKey(it.Kind, it.Domain, it.OwnPaths, it.Code))
	}

	delete(f.byID, id)

	return nil
}

type fakeRels struct {
	rels   []rel.Rel
	strong map[string]bool
}

func (f *fakeRels) Insert(_ context.Context, r *rel.Rel) error {
	f.rels = append(f.rels, *r)
	return nil
}
func (f *fakeRels) InsertAttr(context.Context, *rel.Attr) error { return nil }
func (f *fakeRels) InsertEnv(context.Context, *rel.Env) error   { return nil }
func (f *fakeRels) FindByID(context.Context, string) (*rel.Rel, error) { return nil, nil }
func (f *fakeRels) Find(context.Context, rel.Filter) ([]rel.Rel, error) { return f.rels, nil }
func (f *fakeRels) Env(context.Context, string) (*rel.Env, error)       { return nil, nil }
func (f *fakeRels) HasStrongDependents(_ context.Context, id string) (bool, error) {
	return f.strong[id], nil
}
func (f *fakeRels) Delete(context.Context, string) error { return nil }

type fakeExtHandler struct {
	table        string
	deleted      []string
	insertExtErr error
}

func (h *fakeExtHandler) ExtTableName() string { return h.table }
func (h *fakeExtHandler) InsertExt(context.Context, string, any) error { return h.insertExtErr }
func (h *fakeExtHandler) UpdateExt(context.Context, string, map[string]any) error { return nil }
func (h *fakeExtHandler) DeleteExt(_ context.Context, itemID string) error {
	h.deleted = append(h.deleted, itemID)
	return nil
}
func (h *fakeExtHandler) DefaultRels(string, any) []rel.Rel { return nil }

func newTestKernel() (*Kernel, *fakeItems, *fakeRels, *fakeExtHandler) {
	items := newFakeItems()
	rels := &fakeRels{strong: map[string]bool{}}
	registry := NewRegistry()
	handler := &fakeExtHandler{table: "iam_account"}
	registry.Register("account", handler)

	k := &Kernel{
		Items:    items,
		Rels:     rels,
		Registry: registry,
		Clock:    func() time.Time { return time.Unix(0, 0) },
		NewID:    func() string { return "id-1" },
	}

	return k, items, rels, handler
}

func TestAdd_RejectsDuplicateCode(t *testing.T) {
	k, _, _, _ := newTestKernel()
	ctx := context.Background()

	_, err := k.Add(ctx, &item.Item{Kind: "account", Domain: "iam", OwnPaths: "t1", Code: "admin"}, nil)
	require.NoError(t, err)

	_, err = k.Add(ctx, &item.Item{Kind: "account", Domain: "iam", OwnPaths: "t1", Code: "admin"}, nil)
	require.Error(t, err)

	var conflict bioserr.ConflictError
	require.ErrorAs(t, err, &conflict)
}

func TestModify_ForbidsKindChange(t *testing.T) {
	k, _, _, _ := newTestKernel()
	ctx := context.Background()

	_, err := k.Add(ctx, &item.Item{Kind: "account", Domain: "iam", OwnPaths: "t1", Code: "admin"}, nil)
	require.NoError(t, err)

	err = k.Modify(ctx, "id-1", map[string]any{"kind": "role"}, nil)
	require.Error(t, err)

	var validation bioserr.ValidationError
	require.ErrorAs(t, err, &validation)
}

func TestDelete_RefusesWhenStrongRelExists(t *testing.T) {
	k, _, rels, _ := newTestKernel()
	ctx := context.Background()

	created, err := k.Add(ctx, &item.Item{Kind: "account", Domain: "iam", OwnPaths: "t1", Code: "admin"}, nil)
	require.NoError(t, err)

	rels.strong[created.Id] = true

	err = k.Delete(ctx, created.Id)
	require.Error(t, err)

	var conflict bioserr.ConflictError
	require.ErrorAs(t, err, &conflict)
}

func TestDelete_CascadesWhenNoStrongRel(t *testing.T) {
	k, items, _, handler := newTestKernel()
	ctx := context.Background()

	created, err := k.Add(ctx, &item.Item{Kind: "account", Domain: "iam", OwnPaths: "t1", Code: "admin"}, nil)
	require.NoError(t, err)

	err = k.Delete(ctx, created.Id)
	require.NoError(t, err)

	assert.Nil(t, items.byID[created.Id])
	assert.Contains(t, handler.deleted, created.Id)
}

// fakeTx simulates pg.WithTx's rollback-on-error semantics against the
// in-memory fakeItems store: it snapshots byID/byCode before running fn
// and restores them if fn fails, so a failed extension insert leaves no
// partial Item behind.
type fakeTx struct {
	items *fakeItems
	calls int
}

func (tx *fakeTx) run(ctx context.Context, fn func(ctx context.Context) error) error {
	tx.calls++

	byID := make(map[string]*item.Item, len(tx.items.byID))
	for k, v := range tx.items.byID {
		byID[k] = v
	}

	byCode := make(map[string]*item.Item, len(tx.items.byCode))
	for k, v := range tx.items.byCode {
		byCode[k] = v
	}

	if err := fn(ctx); err != nil {
		tx.items.byID = byID
		tx.items.byCode = byCode

		return err
	}

	return nil
}

func TestAdd_RunsThroughTxerAndRollsBackOnExtensionFailure(t *testing.T) {
	k, items, _, handler := newTestKernel()
	tx := &fakeTx{items: items}
	k.Txer = tx.run
	handler.insertExtErr = bioserr.ValidationError{Code: "400-test-ext-insert-failed"}

	ctx := context.Background()

	_, err := k.Add(ctx, &item.Item{Kind: "account", Domain: "iam", OwnPaths: "t1", Code: "admin"}, nil)
	require.Error(t, err)

	assert.Equal(t, 1, tx.calls)
	assert.Empty(t, items.byID)
	assert.Empty(t, items.byCode)
}

func TestAdd_SucceedsThroughTxer(t *testing.T) {
	k, items, _, _ := newTestKernel()
	tx := &fakeTx{items: items}
	k.Txer = tx.run

	ctx := context.Background()

	created, err := k.Add(ctx, &item.Item{Kind: "account", Domain: "iam", OwnPaths: "t1", Code: "admin"}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, tx.calls)
	assert.NotNil(t, items.byID[created.Id])
}

func TestGet_DeniesInvisibleItemAsNotFound(t *testing.T) {
	k, _, _, _ := newTestKernel()
	ctx := context.Background()

	created, err := k.Add(ctx, &item.Item{Kind: "account", Domain: "iam", OwnPaths: "t1", Code: "admin", ScopeLevel: item.ScopePrivate}, nil)
	require.NoError(t, err)

	_, err = k.Get(ctx, created.Id, item.Context{OwnPaths: "t2"})
	require.Error(t, err)

	var notFound bioserr.NotFoundError
	require.ErrorAs(t, err, &notFound)
}
