package role

import (
	"context"
	"fmt"

	"github.com/ideal-world/bios/internal/rbum/rel"
)

// Handler adapts Repository to kernel.ExtensionHandler for the "role"
// kind.
type Handler struct {
	Repo Repository
}

func (h *Handler) ExtTableName() string { return "iam_role" }

func (h *Handler) InsertExt(ctx context.Context, itemID string, payload any) error {
	in, ok := payload.(*Ext)
	if !ok {
		return fmt.Errorf("role.Handler.InsertExt: unexpected payload type %T", payload)
	}

	in.ItemId = itemID

	return h.Repo.Insert(ctx, in)
}

func (h *Handler) UpdateExt(ctx context.Context, itemID string, patch map[string]any) error {
	return h.Repo.Update(ctx, itemID, patch)
}

func (h *Handler) DeleteExt(ctx context.Context, itemID string) error {
	return h.Repo.Delete(ctx, itemID)
}

// DefaultRels: when the role extends a template role, record a
// "extend"-tagged Rel so the propagator (C6) can walk the template
// chain when recomputing resource allow-sets.
func (h *Handler) DefaultRels(itemID string, payload any) []rel.Rel {
	in, ok := payload.(*Ext)
	if !ok || in.ExtendRoleId == nil {
		return nil
	}

	return []rel.Rel{{
		Tag:      "extend",
		FromKind: "role",
		FromId:   itemID,
		ToId:     *in.ExtendRoleId,
		Strong:   false,
	}}
}
