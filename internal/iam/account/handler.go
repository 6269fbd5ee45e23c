package account

import (
	"context"
	"fmt"

	"github.com/ideal-world/bios/internal/rbum/rel"
)

// Handler adapts Repository to kernel.ExtensionHandler for the
// "account" kind.
type Handler struct {
	Repo Repository
}

func (h *Handler) ExtTableName() string { return "iam_account" }

func (h *Handler) InsertExt(ctx context.Context, itemID string, payload any) error {
	in, ok := payload.(*Ext)
	if !ok {
		return fmt.Errorf("account.Handler.InsertExt: unexpected payload type %T", payload)
	}

	in.ItemId = itemID

	if in.State == "" {
		in.State = StateActive
	}

	return h.Repo.Insert(ctx, in)
}

func (h *Handler) UpdateExt(ctx context.Context, itemID string, patch map[string]any) error {
	return h.Repo.Update(ctx, itemID, patch)
}

func (h *Handler) DeleteExt(ctx context.Context, itemID string) error {
	return h.Repo.Delete(ctx, itemID)
}

// DefaultRels: account creation itself records no default relation —
// role/group binding is a separate, explicit Rel creation in the
// console API (spec.md §4.1 only mandates defaults where the kind's
// semantics require one, e.g. Role->extend_role_id).
func (h *Handler) DefaultRels(string, any) []rel.Rel { return nil }
