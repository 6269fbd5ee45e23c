package pg

import (
	"context"
	"fmt"
	"strings"

	"github.com/bxcodec/dbresolver/v2"
)

// LdapQuerier implements ldap.Querier against the joined
// rbum_item/iam_account/rbum_cert rows the attribute->column map of
// internal/adapters/ldap.AttrToColumn addresses (`user_pwd_cert.ak`,
// `mail_vcode_cert.ak`, `iam_account.employee_code`, `rbum_item.name`).
type LdapQuerier struct {
	DB dbresolver.DB
}

const ldapQueryFrom = `
	FROM rbum_item
	JOIN iam_account ON iam_account.item_id = rbum_item.id
	LEFT JOIN rbum_cert user_pwd_cert ON user_pwd_cert.item_id = rbum_item.id AND user_pwd_cert.kind = 'UserPwd'
	LEFT JOIN rbum_cert mail_vcode_cert ON mail_vcode_cert.item_id = rbum_item.id AND mail_vcode_cert.kind = 'MailVCode'`

// Query runs whereClause (produced by ldap.Translate) against the
// joined view and returns one map per matching row, keyed by the
// requested attrs plus "cn" (always included, since Directory.Search
// builds the entry DN from it).
func (l *LdapQuerier) Query(ctx context.Context, whereClause string, args []any, attrs []string) ([]map[string]string, error) {
	cols := map[string]string{
		"cn":             "user_pwd_cert.ak",
		"uid":            "user_pwd_cert.ak",
		"mail":           "mail_vcode_cert.ak",
		"employeenumber": "iam_account.employee_code",
		"displayname":    "rbum_item.name",
	}

	want := map[string]bool{"cn": true}
	for _, a := range attrs {
		want[a] = true
	}

	selectCols := make([]string, 0, len(want))
	names := make([]string, 0, len(want))

	for name := range want {
		col, ok := cols[name]
		if !ok {
			continue
		}

		selectCols = append(selectCols, fmt.Sprintf("%s AS %s", col, name))
		names = append(names, name)
	}

	q := conn(ctx, l.DB)

	query := fmt.Sprintf("SELECT %s %s WHERE %s", joinSelect(selectCols), ldapQueryFrom, positionalPlaceholders(whereClause))

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]map[string]string, 0)

	for rows.Next() {
		vals := make([]any, len(names))
		ptrs := make([]any, len(names))

		for i := range vals {
			ptrs[i] = &vals[i]
		}

		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make(map[string]string, len(names))

		for i, name := range names {
			if s, ok := vals[i].(string); ok {
				row[name] = s
			}
		}

		out = append(out, row)
	}

	return out, rows.Err()
}

// positionalPlaceholders rewrites the "?" placeholders
// internal/adapters/ldap.Translate emits into Postgres's "$1", "$2",
// ... form.
func positionalPlaceholders(whereClause string) string {
	var b strings.Builder

	n := 0
	for _, r := range whereClause {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}

		b.WriteRune(r)
	}

	return b.String()
}

func joinSelect(cols []string) string {
	if len(cols) == 0 {
		return "rbum_item.id"
	}

	out := cols[0]
	for _, c := range cols[1:] {
		out += ", " + c
	}

	return out
}
