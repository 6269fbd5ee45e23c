package ldap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBinder struct {
	ok map[string]string
}

func (f *fakeBinder) Bind(_ context.Context, dn, password string) (bool, error) {
	return f.ok[dn] == password, nil
}

type fakeQuerier struct {
	rows []map[string]string
}

func (f *fakeQuerier) Query(_ context.Context, whereClause string, args []any, attrs []string) ([]map[string]string, error) {
	return f.rows, nil
}

func TestDirectory_BindDelegatesToBinder(t *testing.T) {
	d := &Directory{Binder: &fakeBinder{ok: map[string]string{"cn=alice": "secret"}}}

	ok, err := d.Bind(context.Background(), "cn=alice", "secret")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = d.Bind(context.Background(), "cn=alice", "wrong")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDirectory_SearchShapesRowsIntoEntries(t *testing.T) {
	d := &Directory{Querier: &fakeQuerier{rows: []map[string]string{
		{"cn": "alice", "mail": "alice@example.com"},
	}}}

	entries, err := d.Search(context.Background(), "(cn=alice)", []string{"cn", "mail"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "cn=alice", entries[0].DN)
	assert.Equal(t, []string{"alice@example.com"}, entries[0].Attributes["mail"])
}
