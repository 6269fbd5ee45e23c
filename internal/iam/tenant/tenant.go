// Package tenant is the IAM-overlay Tenant kind: the top of the
// ownership-path ancestry every other entity's own_paths is rooted in
// (spec.md §4's IAM overlay, kind "tenant").
package tenant

import "context"

// Ext is the tenant kind's extension row.
type Ext struct {
	ItemId         string `json:"itemId" db:"item_id"`
	AccountSelfReg bool   `json:"accountSelfReg" db:"account_self_reg"`
	ContactPhone   string `json:"contactPhone" db:"contact_phone"`
	ContactEmail   string `json:"contactEmail" db:"contact_email"`
}

// Repository stores Tenant extension rows.
type Repository interface {
	Insert(ctx context.Context, ext *Ext) error
	Update(ctx context.Context, itemID string, patch map[string]any) error
	FindByItemID(ctx context.Context, itemID string) (*Ext, error)
	Delete(ctx context.Context, itemID string) error
}
