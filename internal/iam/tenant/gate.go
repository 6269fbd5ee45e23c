package tenant

import (
	"context"
	"strings"
)

// SelfRegGate implements credential.TenantGate by resolving the
// tenant at the root of an own_paths chain (its first slash-delimited
// segment, spec.md §4.1's own_paths ancestry) and reading its
// account_self_reg flag.
type SelfRegGate struct {
	Repo Repository
}

// AllowsSelfReg reports whether the tenant owning tenantOwnPaths
// permits OAuth2/LDAP auto-provisioning (spec.md §4.2).
func (g *SelfRegGate) AllowsSelfReg(ctx context.Context, tenantOwnPaths string) (bool, error) {
	tenantID := strings.SplitN(strings.TrimPrefix(tenantOwnPaths, "/"), "/", 2)[0]
	if tenantID == "" {
		return false, nil
	}

	ext, err := g.Repo.FindByItemID(ctx, tenantID)
	if err != nil {
		return false, err
	}

	if ext == nil {
		return false, nil
	}

	return ext.AccountSelfReg, nil
}
