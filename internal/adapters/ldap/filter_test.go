package ldap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslate_EmptyRootDSEMatchesEverything(t *testing.T) {
	clause, args, err := Translate("")
	require.NoError(t, err)
	assert.Equal(t, "1=1", clause)
	assert.Empty(t, args)
}

func TestTranslate_EqualityMapsToColumn(t *testing.T) {
	clause, args, err := Translate("(cn=alice)")
	require.NoError(t, err)
	assert.Equal(t, "user_pwd_cert.ak = ?", clause)
	require.Len(t, args, 1)
	assert.Equal(t, "alice", args[0])
}

func TestTranslate_AndOfTwoEqualities(t *testing.T) {
	clause, args, err := Translate("(&(cn=alice)(mail=alice@example.com))")
	require.NoError(t, err)
	assert.Contains(t, clause, "AND")
	require.Len(t, args, 2)
}

func TestTranslate_PresenceFilter(t *testing.T) {
	clause, _, err := Translate("(mail=*)")
	require.NoError(t, err)
	assert.Equal(t, "mail_vcode_cert.ak IS NOT NULL", clause)
}

func TestTranslate_SubstringAnyFilter(t *testing.T) {
	clause, args, err := Translate("(cn=*ali*)")
	require.NoError(t, err)
	assert.Equal(t, "user_pwd_cert.ak LIKE ?", clause)
	require.Len(t, args, 1)
	assert.Equal(t, "%ali%", args[0])
}

func TestTranslate_UnmappedAttributeErrors(t *testing.T) {
	_, _, err := Translate("(unmappedattr=x)")
	require.Error(t, err)
}

func TestTranslate_NotFilter(t *testing.T) {
	clause, _, err := Translate("(!(cn=alice))")
	require.NoError(t, err)
	assert.Contains(t, clause, "NOT")
}
