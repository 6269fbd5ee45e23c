// Package ldap implements the Directory external adapter of spec.md
// §4.7: bind(dn, pw) -> bool, search(filter, attrs) -> [entry], with
// the core's LDAP filter grammar (equality, presence, substring,
// conjunction/disjunction/negation, comparison, approximate-match, and
// the empty root DSE query) mapped to a SQL WHERE clause over the
// account/cert tables via a fixed attribute->column map, grounded on
// original_source's account_query.rs LDAP_ATTR_TO_DB_FIELD table.
package ldap

import (
	"fmt"
	"strings"

	ber "github.com/go-asn1-ber/asn1-ber"
	"github.com/go-ldap/ldap/v3"
)

// AttrToColumn is the fixed attribute -> SQL column map, grounded
// directly on original_source's LDAP_ATTR_TO_DB_FIELD.
var AttrToColumn = map[string]string{
	"cn":             "user_pwd_cert.ak",
	"uid":            "user_pwd_cert.ak",
	"samaccountname": "user_pwd_cert.ak",
	"mail":           "mail_vcode_cert.ak",
	"employeenumber": "iam_account.employee_code",
	"displayname":    "rbum_item.name",
	"givenname":      "rbum_item.name",
	"sn":             "rbum_item.name",
}

// Translate compiles filter (RFC4515 string form) and returns an
// equivalent SQL WHERE clause plus its positional args, ready to
// append after "WHERE ".
func Translate(filter string) (string, []any, error) {
	if filter == "" || filter == "(objectclass=*)" {
		// empty root DSE query: spec.md §4.7 carves this out as a
		// special case that matches everything.
		return "1=1", nil, nil
	}

	packet, err := ldap.CompileFilter(filter)
	if err != nil {
		return "", nil, fmt.Errorf("ldap: compile filter %q: %w", filter, err)
	}

	var args []any

	clause, err := translateNode(packet, &args)
	if err != nil {
		return "", nil, err
	}

	return clause, args, nil
}

func translateNode(node *ber.Packet, args *[]any) (string, error) {
	switch node.Tag {
	case ldap.FilterAnd:
		return joinChildren(node, "AND", args)
	case ldap.FilterOr:
		return joinChildren(node, "OR", args)
	case ldap.FilterNot:
		if len(node.Children) != 1 {
			return "", fmt.Errorf("ldap: NOT filter requires exactly one child")
		}

		inner, err := translateNode(node.Children[0], args)
		if err != nil {
			return "", err
		}

		return "NOT (" + inner + ")", nil
	case ldap.FilterEqualityMatch:
		return equalityClause(node, "=", args)
	case ldap.FilterGreaterOrEqual:
		return equalityClause(node, ">=", args)
	case ldap.FilterLessOrEqual:
		return equalityClause(node, "<=", args)
	case ldap.FilterApproxMatch:
		return equalityClause(node, "=", args) // no fuzzy-match operator in the target schema; treat as equality
	case ldap.FilterPresent:
		attr := node.Data.String()

		col, ok := AttrToColumn[strings.ToLower(attr)]
		if !ok {
			return "", fmt.Errorf("ldap: unmapped attribute %q", attr)
		}

		return col + " IS NOT NULL", nil
	case ldap.FilterSubstrings:
		return substringClause(node, args)
	default:
		return "", fmt.Errorf("ldap: unsupported filter type (tag %d)", node.Tag)
	}
}

func joinChildren(node *ber.Packet, op string, args *[]any) (string, error) {
	if len(node.Children) == 0 {
		return "1=1", nil
	}

	parts := make([]string, 0, len(node.Children))

	for _, child := range node.Children {
		clause, err := translateNode(child, args)
		if err != nil {
			return "", err
		}

		parts = append(parts, "("+clause+")")
	}

	return strings.Join(parts, " "+op+" "), nil
}

func equalityClause(node *ber.Packet, op string, args *[]any) (string, error) {
	if len(node.Children) != 2 {
		return "", fmt.Errorf("ldap: malformed equality/comparison filter")
	}

	attr := node.Children[0].Value.(string)
	value := node.Children[1].Value.(string)

	col, ok := AttrToColumn[strings.ToLower(attr)]
	if !ok {
		return "", fmt.Errorf("ldap: unmapped attribute %q", attr)
	}

	*args = append(*args, value)

	return fmt.Sprintf("%s %s ?", col, op), nil
}

// substringClause handles initial/any/final substring matches (RFC4515
// §3), each child tagged 0/1/2 for initial/any/final respectively.
func substringClause(node *ber.Packet, args *[]any) (string, error) {
	if len(node.Children) != 2 {
		return "", fmt.Errorf("ldap: malformed substrings filter")
	}

	attr := node.Children[0].Value.(string)

	col, ok := AttrToColumn[strings.ToLower(attr)]
	if !ok {
		return "", fmt.Errorf("ldap: unmapped attribute %q", attr)
	}

	var like strings.Builder

	for _, sub := range node.Children[1].Children {
		piece := sub.Value.(string)

		switch sub.Tag {
		case ldap.FilterSubstringsInitial:
			like.WriteString(piece + "%")
		case ldap.FilterSubstringsAny:
			like.WriteString("%" + piece + "%")
		case ldap.FilterSubstringsFinal:
			like.WriteString("%" + piece)
		default:
			return "", fmt.Errorf("ldap: unsupported substring component (tag %d)", sub.Tag)
		}
	}

	*args = append(*args, like.String())

	return col + " LIKE ?", nil
}
