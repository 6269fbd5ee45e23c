package ldap

import (
	"context"
	"fmt"
)

// Entry is one directory search result.
type Entry struct {
	DN         string
	Attributes map[string][]string
}

// Binder verifies an LdapBound credential's password, the same
// six-step verification the core already runs for UserPwd (spec.md
// §4.2); the Directory adapter is a thin LDAP-shaped facade over it.
type Binder interface {
	Bind(ctx context.Context, dn, password string) (bool, error)
}

// Querier runs the SQL built from a translated filter and returns
// matching rows as generic attribute maps, one per entry.
type Querier interface {
	Query(ctx context.Context, whereClause string, args []any, attrs []string) ([]map[string]string, error)
}

// Directory implements the bind/search Directory contract of spec.md
// §4.7 over the account/cert store.
type Directory struct {
	Binder  Binder
	Querier Querier
}

// Bind implements "bind(dn, pw) -> bool".
func (d *Directory) Bind(ctx context.Context, dn, password string) (bool, error) {
	return d.Binder.Bind(ctx, dn, password)
}

// Search implements "search(filter, attrs) -> [entry]": translate the
// filter to SQL, run it, and shape rows back into LDAP entries keyed
// by DN (the "cn" attribute, per AttrToColumn's identity-attribute
// convention).
func (d *Directory) Search(ctx context.Context, filter string, attrs []string) ([]Entry, error) {
	where, args, err := Translate(filter)
	if err != nil {
		return nil, err
	}

	rows, err := d.Querier.Query(ctx, where, args, attrs)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(rows))

	for _, row := range rows {
		dn := fmt.Sprintf("cn=%s", row["cn"])

		attributes := make(map[string][]string, len(row))
		for k, v := range row {
			attributes[k] = []string{v}
		}

		entries = append(entries, Entry{DN: dn, Attributes: attributes})
	}

	return entries, nil
}
