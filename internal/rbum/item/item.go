// Package item implements the polymorphic base of every administrable
// entity (spec.md §3's Item) plus the ownership/scope discipline
// (I1, I2, P2) shared by every kind built on top of it.
package item

import "time"

// ScopeLevel ranks cross-tenant visibility in addition to
// ownership-path prefix containment.
type ScopeLevel int

const (
	ScopePrivate ScopeLevel = iota
	ScopeL1
	ScopeL2
	ScopeL3
	ScopeRoot
)

// Item is the polymorphic base row shared by every kind (Tenant, App,
// Account, Role, Res, ...). Kind-specific fields live in an extension
// row joined by ID (spec.md §9's "base row + extension row" design).
type Item struct {
	Id         string     `json:"id" db:"id"`
	Kind       string     `json:"kind" db:"kind"`
	Domain     string     `json:"domain" db:"domain"`
	Code       string     `json:"code" db:"code"`
	Name       string     `json:"name" db:"name"`
	OwnPaths   string     `json:"ownPaths" db:"own_paths"`
	Owner      string     `json:"owner" db:"owner"`
	ScopeLevel ScopeLevel `json:"scopeLevel" db:"scope_level"`
	Disabled   bool       `json:"disabled" db:"disabled"`
	CreatedAt  time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt  time.Time  `json:"updatedAt" db:"updated_at"`
}

// Context is the authenticated caller identity bundle consulted for
// every visibility and scope decision (spec.md Glossary: "Context").
type Context struct {
	OwnPaths string
	Ak       string
	Owner    string
	Roles    []string
	Groups   []string
	Token    string
	IsSystem bool // Root-scope caller; may bypass own_paths-bypass guards
}

// Filter composes the paginate/get predicates spec.md §4.1 names:
// id-set, name substring, own_paths inclusion/exclusion, scope level,
// enabled, and rel-joins (attached separately by the rel package).
type Filter struct {
	Ids             []string
	NameLike        string
	OwnPathsInclude []string
	OwnPathsExclude []string
	ScopeLevels     []ScopeLevel
	EnabledOnly     bool
}

// Page is a generic paginated result.
type Page[T any] struct {
	Items []T `json:"items"`
	Page  int `json:"page"`
	Size  int `json:"size"`
	Total int `json:"total"`
}
