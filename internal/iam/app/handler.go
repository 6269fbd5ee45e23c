package app

import (
	"context"
	"fmt"

	"github.com/ideal-world/bios/internal/rbum/rel"
)

// Handler adapts Repository to kernel.ExtensionHandler for the "app"
// kind.
type Handler struct {
	Repo Repository
}

func (h *Handler) ExtTableName() string { return "iam_app" }

func (h *Handler) InsertExt(ctx context.Context, itemID string, payload any) error {
	in, ok := payload.(*Ext)
	if !ok {
		return fmt.Errorf("app.Handler.InsertExt: unexpected payload type %T", payload)
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

func (h *Handler) DefaultRels(string, any) []rel.Rel { return nil }
