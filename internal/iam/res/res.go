// Package res is the IAM-overlay Res (resource) kind protected by the
// authorization gateway: Menu, Api, Ele, Product, Spec sub-kinds
// (spec.md §3).
package res

import "context"

const (
	SubKindMenu    = "Menu"
	SubKindApi     = "Api"
	SubKindEle     = "Ele"
	SubKindProduct = "Product"
	SubKindSpec    = "Spec"
)

// Ext is the resource kind's extension row. Method+URI together form
// the policy fingerprint key (spec.md §4.4).
type Ext struct {
	ItemId  string  `json:"itemId" db:"item_id"`
	SubKind string  `json:"subKind" db:"sub_kind"`
	Method  string  `json:"method" db:"method"`
	URI     string  `json:"uri" db:"uri"`
	StartAt *string `json:"startAt" db:"start_at"` // RFC3339, optional active window
	EndAt   *string `json:"endAt" db:"end_at"`
}

// Repository stores Res extension rows.
type Repository interface {
	Insert(ctx context.Context, ext *Ext) error
	Update(ctx context.Context, itemID string, patch map[string]any) error
	FindByItemID(ctx context.Context, itemID string) (*Ext, error)
	Delete(ctx context.Context, itemID string) error
}
