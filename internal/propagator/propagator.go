// Package propagator implements the Change Propagator (C6) of spec.md
// §4.6: synchronous, at-least-once application of authorization-
// affecting mutations into the Policy Index cache.
package propagator

import (
	"context"
	"fmt"
	"time"

	"github.com/ideal-world/bios/internal/cache"
	"github.com/ideal-world/bios/internal/core/asynctask"
	"github.com/ideal-world/bios/internal/iam/res"
	"github.com/ideal-world/bios/internal/obs/metrics"
	"github.com/ideal-world/bios/internal/rbum/rel"
)

// Relation tags the propagator's join queries key on.
const (
	TagRoleRes     = "role_res"
	TagRoleAccount = "role_account"
	TagRoleApp     = "role_app"
	TagRoleGroup   = "role_group"
)

// PolicyWriter is the narrow slice of cache.PolicyIndex the
// propagator writes through, kept as an interface for testability
// (same rationale as internal/gateway.PolicyLookup).
type PolicyWriter interface {
	Write(ctx context.Context, fingerprint string, desc cache.Descriptor, changeTsNs int64) error
	Delete(ctx context.Context, fingerprint string, changeTsNs int64) error
	BustContext(ctx context.Context, account string) error
	SetAkSk(ctx context.Context, ak, sk, tenant, app string, ttl time.Duration) error
	DeleteAkSk(ctx context.Context, ak string) error
}

// Notifier fans a change timestamp out to remote in-process caches
// when the deployment is sharded (spec.md §4.6).
type Notifier interface {
	NotifyChange(ctx context.Context, changeTsNs int64, fingerprint string) error
}

// Propagator applies asynctask.Change descriptors to the Policy Index,
// implementing the "Build protocol" of spec.md §4.6.
type Propagator struct {
	Rels   rel.Repository
	Res    res.Repository
	Policy PolicyWriter
	Notify Notifier
	Clock  func() time.Time
}

// NewPropagator builds a Propagator with the real clock.
func NewPropagator(rels rel.Repository, resRepo res.Repository, policy PolicyWriter, notify Notifier) *Propagator {
	return &Propagator{Rels: rels, Res: resRepo, Policy: policy, Notify: notify, Clock: time.Now}
}

// Drain flushes every change enqueued on ctx and applies each,
// continuing past individual failures since deliveries are
// at-least-once and idempotent (spec.md §4.6): a failed entry is
// dropped, not re-queued, and its cache field stays stale until a
// later change to the same resource rewrites it. The first error
// encountered, if any, is returned after every change has been
// attempted.
func (p *Propagator) Drain(ctx context.Context) error {
	start := p.Clock()

	var firstErr error

	for _, c := range asynctask.Flush(ctx) {
		if err := p.Apply(ctx, c); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	metrics.PropagationLagSeconds.Observe(p.Clock().Sub(start).Seconds())

	return firstErr
}

// Apply dispatches a single change by kind.
func (p *Propagator) Apply(ctx context.Context, c asynctask.Change) error {
	switch c.Kind {
	case "res_role_rel":
		return p.onResRoleChange(ctx, c)
	case "role_subject_rel":
		return p.onRoleSubjectChange(ctx, c)
	case "cert":
		return p.onCertChange(ctx, c)
	default:
		return fmt.Errorf("propagator: unknown change kind %q", c.Kind)
	}
}

func (p *Propagator) onResRoleChange(ctx context.Context, c asynctask.Change) error {
	ext, err := p.Res.FindByItemID(ctx, c.Id)
	if err != nil {
		return err
	}

	if ext == nil {
		// resource itself was deleted; nothing left to rebuild.
		return nil
	}

	startAt, err := parseWindowTime(ext.StartAt)
	if err != nil {
		return err
	}

	endAt, err := parseWindowTime(ext.EndAt)
	if err != nil {
		return err
	}

	fingerprint := cache.Fingerprint(ext.Method, ext.URI)
	now := p.Clock().UnixNano()

	roleIds, err := p.rolesForResource(ctx, c.Id)
	if err != nil {
		return err
	}

	if len(roleIds) == 0 {
		if err := p.Policy.Delete(ctx, fingerprint, now); err != nil {
			return err
		}

		return p.maybeNotify(ctx, now, fingerprint)
	}

	desc, err := p.assembleDescriptor(ctx, roleIds, startAt, endAt)
	if err != nil {
		return err
	}

	if err := p.Policy.Write(ctx, fingerprint, desc, now); err != nil {
		return err
	}

	return p.maybeNotify(ctx, now, fingerprint)
}

// onRoleSubjectChange implements "When only a subject changes ...
// C6 finds all resources reachable from affected roles and rewrites
// each" (spec.md §4.6). c.Id is the affected role's item id.
func (p *Propagator) onRoleSubjectChange(ctx context.Context, c asynctask.Change) error {
	resIds, err := p.Rels.Find(ctx, rel.Filter{Tag: TagRoleRes, FromKind: "role", FromId: c.Id, RelByFrom: true})
	if err != nil {
		return err
	}

	for _, r := range resIds {
		if err := p.onResRoleChange(ctx, asynctask.Change{Kind: "res_role_rel", Id: r.ToId}); err != nil {
			return err
		}
	}

	if account, ok := c.New.(string); ok && account != "" {
		if err := p.Policy.BustContext(ctx, account); err != nil {
			return err
		}
	}

	return nil
}

// CertChange is the asynctask.Change.New payload a "cert" change
// carries: either a new/rotated AK/SK pair to cache, or a revocation.
type CertChange struct {
	Ak       string
	Sk       string
	Tenant   string
	App      string
	Revoked  bool
	ValidFor time.Duration
}

func (p *Propagator) onCertChange(ctx context.Context, c asynctask.Change) error {
	cc, ok := c.New.(CertChange)
	if !ok {
		return fmt.Errorf("propagator: cert change payload has unexpected type %T", c.New)
	}

	if cc.Revoked {
		return p.Policy.DeleteAkSk(ctx, cc.Ak)
	}

	return p.Policy.SetAkSk(ctx, cc.Ak, cc.Sk, cc.Tenant, cc.App, cc.ValidFor)
}

func (p *Propagator) rolesForResource(ctx context.Context, resId string) ([]string, error) {
	rows, err := p.Rels.Find(ctx, rel.Filter{Tag: TagRoleRes, ToId: resId})
	if err != nil {
		return nil, err
	}

	roleIds := make([]string, 0, len(rows))
	for _, r := range rows {
		roleIds = append(roleIds, r.FromId)
	}

	return roleIds, nil
}

// assembleDescriptor joins Role->Account, Role->App, Role->Group for
// every role bound to the resource, per spec.md §4.6's "Build
// protocol".
func (p *Propagator) assembleDescriptor(ctx context.Context, roleIds []string, startAt, endAt *time.Time) (cache.Descriptor, error) {
	var accounts, apps, groups, roles string

	for _, roleId := range roleIds {
		roles += "#" + roleId + "#"

		accRows, err := p.Rels.Find(ctx, rel.Filter{Tag: TagRoleAccount, FromKind: "role", FromId: roleId, RelByFrom: true})
		if err != nil {
			return cache.Descriptor{}, err
		}

		for _, r := range accRows {
			accounts = appendDelimited(accounts, r.ToId)
		}

		appRows, err := p.Rels.Find(ctx, rel.Filter{Tag: TagRoleApp, FromKind: "role", FromId: roleId, RelByFrom: true})
		if err != nil {
			return cache.Descriptor{}, err
		}

		for _, r := range appRows {
			apps = appendDelimited(apps, r.ToId)
		}

		groupRows, err := p.Rels.Find(ctx, rel.Filter{Tag: TagRoleGroup, FromKind: "role", FromId: roleId, RelByFrom: true})
		if err != nil {
			return cache.Descriptor{}, err
		}

		for _, r := range groupRows {
			groups = appendDelimited(groups, r.ToId)
		}
	}

	return cache.Descriptor{
		Accounts: accounts,
		Roles:    roles,
		Groups:   groups,
		Apps:     apps,
		StartAt:  startAt,
		EndAt:    endAt,
	}, nil
}

func appendDelimited(set, id string) string {
	if set == "" {
		return "#" + id + "#"
	}

	if containsDelimited(set, id) {
		return set
	}

	return set + id + "#"
}

func containsDelimited(set, id string) bool {
	target := "#" + id + "#"

	for i := 0; i+len(target) <= len(set); i++ {
		if set[i:i+len(target)] == target {
			return true
		}
	}

	return false
}

func parseWindowTime(raw *string) (*time.Time, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}

	t, err := time.Parse(time.RFC3339, *raw)
	if err != nil {
		return nil, fmt.Errorf("propagator: parse resource window time %q: %w", *raw, err)
	}

	return &t, nil
}

func (p *Propagator) maybeNotify(ctx context.Context, ts int64, fingerprint string) error {
	if p.Notify == nil {
		return nil
	}

	return p.Notify.NotifyChange(ctx, ts, fingerprint)
}
