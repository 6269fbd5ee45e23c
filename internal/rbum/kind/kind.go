// Package kind declares the global Kind/Domain registries of spec.md
// §3: each Kind names an entity family and its extension table;
// each Domain names a functional domain (e.g. "iam").
package kind

// Kind declares an entity family, e.g. "account", "role", "resource".
type Kind struct {
	Code         string `json:"code" db:"code"`
	Name         string `json:"name" db:"name"`
	ExtTableName string `json:"extTableName" db:"ext_table_name"`
}

// Domain declares a functional domain, e.g. "iam".
type Domain struct {
	Code string `json:"code" db:"code"`
	Name string `json:"name" db:"name"`
}

// Well-known kind codes used by the IAM overlay.
const (
	KindTenant  = "tenant"
	KindApp     = "app"
	KindAccount = "account"
	KindRole    = "role"
	KindRes     = "res"
)

// Well-known domain codes.
const (
	DomainIAM = "iam"
)

// KindAttr declares a custom-attribute slot on a Kind: data type,
// widget, required, ordering, and a visibility predicate expression
// (spec.md §3's ItemAttr/KindAttr pair).
type KindAttr struct {
	Id         string `json:"id" db:"id"`
	KindCode   string `json:"kindCode" db:"kind_code"`
	Name       string `json:"name" db:"name"`
	DataType   string `json:"dataType" db:"data_type"` // string|number|bool|date|json
	Widget     string `json:"widget" db:"widget"`
	Required   bool   `json:"required" db:"required"`
	Order      int    `json:"order" db:"order"`
	ShowPredic string `json:"showPredicate" db:"show_predicate"`
}

// ItemAttr is a concrete extension attribute value on an item, driven
// by a KindAttr declaration.
type ItemAttr struct {
	Id         string `json:"id" db:"id"`
	ItemId     string `json:"itemId" db:"item_id"`
	KindAttrId string `json:"kindAttrId" db:"kind_attr_id"`
	Value      string `json:"value" db:"value"`
}
