package credential

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ideal-world/bios/internal/core/bioserr"
	"github.com/ideal-world/bios/internal/iam/account"
	"github.com/ideal-world/bios/internal/rbum/item"
	"github.com/ideal-world/bios/internal/rbum/kernel"
)

// TenantGate is the narrow contract provisioning needs to check
// tenant.account_self_reg (spec.md §4.2, "OAuth2/LDAP auto-provisioning
// gated by tenant self-reg").
type TenantGate interface {
	AllowsSelfReg(ctx context.Context, tenantOwnPaths string) (bool, error)
}

// ExternalIdentity is what an OAuth2 profile fetch or an LDAP bind
// resolves to: enough to either match an existing Account by ak, or
// provision a new one.
type ExternalIdentity struct {
	Ak       string // external subject id (OAuth2 "sub", or LDAP DN)
	Name     string
	Supplier string
}

// Provisioner implements the auto-provisioning half of the OAuth2 and
// LdapBound credential kinds: find-or-create an Account item plus its
// bound Cert, refusing creation when the owning tenant has disabled
// self-registration.
type Provisioner struct {
	Kernel *kernel.Kernel
	Confs  ConfRepository
	Certs  CertRepository
	Gate   TenantGate
	NewID  func() string
	Clock  func() time.Time
	// Txer wraps the account-creation + cert-insert sequence in one
	// transaction (spec.md §3's Lifecycle). Nil runs fn directly
	// against ctx; bootstrap wires it to pg.WithTx.
	Txer kernel.TxFunc
}

// NewProvisioner builds a Provisioner with real UUID/clock providers.
func NewProvisioner(k *kernel.Kernel, confs ConfRepository, certs CertRepository, gate TenantGate) *Provisioner {
	return &Provisioner{Kernel: k, Confs: confs, Certs: certs, Gate: gate, NewID: uuid.NewString, Clock: time.Now}
}

func (p *Provisioner) withTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if p.Txer == nil {
		return fn(ctx)
	}

	return p.Txer(ctx, fn)
}

// Resolve finds the Cert already bound to identity.Ak under confID, or
// — when the tenant allows self-registration — provisions a new
// Account item and binds a fresh Cert to it (spec.md §4.2).
func (p *Provisioner) Resolve(ctx context.Context, confID, tenantOwnPaths string, identity ExternalIdentity) (*Cert, error) {
	conf, err := p.Confs.FindByID(ctx, confID)
	if err != nil {
		return nil, err
	}

	if conf == nil {
		return nil, bioserr.NotFoundError{Code: "404-iam-certconf-not-found", Message: "credential configuration not found"}
	}

	existing, err := p.Certs.FindByAkConf(ctx, identity.Ak, confID)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		return existing, nil
	}

	allowed, err := p.Gate.AllowsSelfReg(ctx, tenantOwnPaths)
	if err != nil {
		return nil, err
	}

	if !allowed {
		return nil, bioserr.ForbiddenError{
			Code:    "403-iam-self-reg-disabled",
			Message: "tenant does not allow automatic account registration",
		}
	}

	now := p.Clock()

	var cert *Cert

	err = p.withTx(ctx, func(ctx context.Context) error {
		acctItem := &item.Item{
			Kind:       "account",
			Domain:     "iam",
			Code:       p.NewID(),
			Name:       identity.Name,
			OwnPaths:   tenantOwnPaths,
			Owner:      identity.Ak,
			ScopeLevel: item.ScopePrivate,
		}

		created, err := p.Kernel.Add(ctx, acctItem, &account.Ext{
			State: account.StateActive,
		})
		if err != nil {
			return err
		}

		cert = &Cert{
			Id:         p.NewID(),
			ItemId:     created.Id,
			CertConfId: confID,
			Ak:         identity.Ak,
			Sk:         "",
			Kind:       conf.Kind,
			Supplier:   identity.Supplier,
			Status:     StatusEnabled,
			CreatedAt:  now,
			UpdatedAt:  now,
		}

		return p.Certs.Insert(ctx, cert)
	})
	if err != nil {
		return nil, err
	}

	return cert, nil
}
