package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprint_LowercasesAction(t *testing.T) {
	assert.Equal(t, "get##/iam/apis", Fingerprint("GET", "/iam/apis"))
	assert.Equal(t, "get##/iam/apis", Fingerprint("get", "/iam/apis"))
}

func TestNormalizeURI_CollapsesPathParamsAndSortsQuery(t *testing.T) {
	assert.Equal(t, "/iam/accounts/*", NormalizeURI("/iam/accounts/:id"))
	assert.Equal(t, "/iam/apis?a=1&b=2", NormalizeURI("/iam/apis?b=2&a=1"))
}

func TestNormalizeURI_PreservesSchemePrefix(t *testing.T) {
	assert.Equal(t, "api://iam/accounts/*", NormalizeURI("api://iam/accounts/:id"))
}
