package ldap

import (
	"context"

	"github.com/ideal-world/bios/internal/credential"
)

// CredentialBinder implements Binder by running the same UserPwd
// verification the core's own login path uses (spec.md §4.2's
// six-step algorithm): an LDAP bind is just another UserPwd check
// against the account identified by dn's "cn" RDN.
type CredentialBinder struct {
	Verifier *credential.Verifier
	OwnPaths string
}

// Bind extracts the ak from "cn=<ak>" and runs it through Verify,
// reporting true only when verification succeeds outright.
func (b *CredentialBinder) Bind(ctx context.Context, dn, password string) (bool, error) {
	ak := dn

	if len(dn) > 3 && dn[:3] == "cn=" {
		ak = dn[3:]
	}

	_, err := b.Verifier.Verify(ctx, credential.KindUserPwd, "", b.OwnPaths, ak, password)
	if err != nil {
		return false, nil
	}

	return true, nil
}
