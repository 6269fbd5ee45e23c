// Package kernel implements the uniform CRUD-with-filter contract of
// spec.md §4.1, generalized across kinds via a registry of
// kind-specific extension handlers (the "trait/interface
// CrudOperation<Kind>... register concrete types per kind" design note
// of spec.md §9).
package kernel

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ideal-world/bios/internal/core/bioserr"
	"github.com/ideal-world/bios/internal/rbum/item"
	"github.com/ideal-world/bios/internal/rbum/rel"
)

// ExtensionHandler is the kind-specific half of CrudOperation<Kind>:
// it owns the kind's extension-table row, leaving the base Item row
// to the kernel. Go's generics can't be stored heterogeneously in a
// single map, so each concrete CrudOperation[T] is adapted to this
// non-generic facade before registration.
type ExtensionHandler interface {
	// ExtTableName names the kind's registered extension table
	// (spec.md §3's Kind.ext_table_name).
	ExtTableName() string
	// InsertExt writes the kind-specific row for a newly created item,
	// within the same transaction as the base Item insert.
	InsertExt(ctx context.Context, itemID string, payload any) error
	// UpdateExt applies a partial update to the kind-specific row.
	UpdateExt(ctx context.Context, itemID string, patch map[string]any) error
	// DeleteExt removes the kind-specific row (cascade step).
	DeleteExt(ctx context.Context, itemID string) error
	// DefaultRels returns the Rel rows to record atomically with the
	// new item (spec.md §4.1's "records zero or more default Rels").
	DefaultRels(itemID string, payload any) []rel.Rel
}

// Registry maps a kind code to its ExtensionHandler.
type Registry struct {
	handlers map[string]ExtensionHandler
}

// NewRegistry returns an empty kind registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]ExtensionHandler)}
}

// Register attaches handler under kind. Re-registering a kind
// replaces its handler (tests do this to swap fakes in).
func (r *Registry) Register(kind string, handler ExtensionHandler) {
	r.handlers[kind] = handler
}

func (r *Registry) lookup(kind string) (ExtensionHandler, error) {
	h, ok := r.handlers[kind]
	if !ok {
		return nil, bioserr.InternalError{
			Code:    "500-bios-kind-unregistered",
			Message: fmt.Sprintf("no CrudOperation registered for kind %q", kind),
		}
	}

	return h, nil
}

// TxFunc runs fn within a store-level transaction attached to the
// returned context, committing on success and rolling back on error
// or panic. Kernel depends on this as a function value rather than an
// interface so the domain layer never imports the storage package that
// implements it.
type TxFunc func(ctx context.Context, fn func(ctx context.Context) error) error

// Kernel is the generic CRUD service of spec.md §4.1, parameterized by
// kind through Registry.
type Kernel struct {
	Items    item.Repository
	Rels     rel.Repository
	Registry *Registry
	Clock    func() time.Time
	NewID    func() string
	// Txer wraps a multi-statement operation in one transaction. Left
	// nil it defaults to running fn directly against ctx, which is
	// fine for tests against a repository already backed by a single
	// transaction but unsafe against a real pool — bootstrap wires it
	// to pg.WithTx.
	Txer TxFunc
}

// New builds a Kernel with real UUID/clock providers.
func New(items item.Repository, rels rel.Repository, registry *Registry) *Kernel {
	return &Kernel{
		Items:    items,
		Rels:     rels,
		Registry: registry,
		Clock:    time.Now,
		NewID:    uuid.NewString,
	}
}

func (k *Kernel) withTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if k.Txer == nil {
		return fn(ctx)
	}

	return k.Txer(ctx, fn)
}

// Add validates code uniqueness under (kind, domain, own_paths),
// writes the base Item and kind extension row, and records default
// Rels, per spec.md §4.1. The base insert, extension insert, and
// default Rel inserts run in one transaction (spec.md §3's Lifecycle,
// "creation is atomic within a transaction spanning all dependent
// rows").
func (k *Kernel) Add(ctx context.Context, it *item.Item, extPayload any) (*item.Item, error) {
	handler, err := k.Registry.lookup(it.Kind)
	if err != nil {
		return nil, err
	}

	existing, err := k.Items.FindByCode(ctx, it.Kind, it.Domain, it.OwnPaths, it.Code)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		return nil, bioserr.ConflictError{
			Entity:  bioserr.EntityType(it.Kind),
			Code:    "409-iam-" + it.Kind + "-duplicate",
			Message: fmt.Sprintf("code %q already exists under (%s,%s,%s)", it.Code, it.Kind, it.Domain, it.OwnPaths),
		}
	}

	now := k.Clock()
	it.Id = k.NewID()
	it.CreatedAt = now
	it.UpdatedAt = now

	err = k.withTx(ctx, func(ctx context.Context) error {
		if err := k.Items.Insert(ctx, it); err != nil {
			return err
		}

		if err := handler.InsertExt(ctx, it.Id, extPayload); err != nil {
			return err
		}

		for _, defaultRel := range handler.DefaultRels(it.Id, extPayload) {
			r := defaultRel
			r.Id = k.NewID()
			r.CreatedAt = now

			if err := k.Rels.Insert(ctx, &r); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return it, nil
}

// Modify applies a partial update; kind and domain are immutable, and
// a code change re-validates uniqueness.
func (k *Kernel) Modify(ctx context.Context, id string, patch map[string]any, extPatch map[string]any) error {
	if _, forbidden := patch["kind"]; forbidden {
		return bioserr.ValidationError{Code: "400-bios-immutable-field", Message: "kind cannot be changed"}
	}

	if _, forbidden := patch["domain"]; forbidden {
		return bioserr.ValidationError{Code: "400-bios-immutable-field", Message: "domain cannot be changed"}
	}

	existing, err := k.Items.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if existing == nil {
		return bioserr.NotFoundError{Code: "404-bios-not-found", Message: "item not found"}
	}

	if newCode, ok := patch["code"].(string); ok && newCode != existing.Code {
		dup, err := k.Items.FindByCode(ctx, existing.Kind, existing.Domain, existing.OwnPaths, newCode)
		if err != nil {
			return err
		}

		if dup != nil {
			return bioserr.ConflictError{
				Entity:  bioserr.EntityType(existing.Kind),
				Code:    "409-iam-" + existing.Kind + "-duplicate",
				Message: fmt.Sprintf("code %q already exists", newCode),
			}
		}
	}

	patch["updated_at"] = k.Clock()

	if len(extPatch) == 0 {
		return k.Items.Update(ctx, id, patch)
	}

	handler, err := k.Registry.lookup(existing.Kind)
	if err != nil {
		return err
	}

	return k.withTx(ctx, func(ctx context.Context) error {
		if err := k.Items.Update(ctx, id, patch); err != nil {
			return err
		}

		return handler.UpdateExt(ctx, id, extPatch)
	})
}

// Get returns the item detail when ctx dominates its
// ownership/scope (P2), or a NotFoundError otherwise — visibility
// failures and absence are deliberately indistinguishable to the
// caller.
func (k *Kernel) Get(ctx context.Context, id string, caller item.Context) (*item.Item, error) {
	found, err := k.Items.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if found == nil || !item.Visible(caller, *found) {
		return nil, bioserr.NotFoundError{Code: "404-bios-not-found", Message: "item not found"}
	}

	return found, nil
}

// Paginate lists items matching filter, composing the scope/ownership
// predicate into the repository query (spec.md §4.1).
func (k *Kernel) Paginate(ctx context.Context, filter item.Filter, page, size int, order string) (item.Page[item.Item], error) {
	return k.Items.Paginate(ctx, filter, page, size, order)
}

// Delete refuses when a "strong"-tagged Rel still depends on id;
// otherwise cascades: Rel removal, extension row removal, base Item
// removal (spec.md §3's Lifecycle, §4.1's delete contract).
func (k *Kernel) Delete(ctx context.Context, id string) error {
	existing, err := k.Items.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if existing == nil {
		return bioserr.NotFoundError{Code: "404-bios-not-found", Message: "item not found"}
	}

	strong, err := k.Rels.HasStrongDependents(ctx, id)
	if err != nil {
		return err
	}

	if strong {
		return bioserr.ConflictError{
			Entity:  bioserr.EntityType(existing.Kind),
			Code:    "409-bios-rel-strong-dependent",
			Message: "cannot delete: strong relations still reference this item",
		}
	}

	handler, err := k.Registry.lookup(existing.Kind)
	if err != nil {
		return err
	}

	return k.withTx(ctx, func(ctx context.Context) error {
		for _, f := range []rel.Filter{{FromId: id}, {ToId: id}} {
			rows, err := k.Rels.Find(ctx, f)
			if err != nil {
				return err
			}

			for _, r := range rows {
				if err := k.Rels.Delete(ctx, r.Id); err != nil {
					return err
				}
			}
		}

		if err := handler.DeleteExt(ctx, id); err != nil {
			return err
		}

		return k.Items.Delete(ctx, id)
	})
}
