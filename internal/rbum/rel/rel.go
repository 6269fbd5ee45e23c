// Package rel implements Rel, the single tagged-edge join primitive
// spec.md §9 designates as the only "join" construct in the model —
// every many-to-many relationship in RBUM/IAM is a Rel row, never a
// bespoke foreign-key table.
package rel

import "time"

// Rel is a tagged, directed edge from (FromKind, FromId) to ToId.
type Rel struct {
	Id          string            `json:"id" db:"id"`
	Tag         string            `json:"tag" db:"tag"`
	FromKind    string            `json:"fromKind" db:"from_kind"`
	FromId      string            `json:"fromId" db:"from_id"`
	ToId        string            `json:"toId" db:"to_id"`
	ToIsOutside bool              `json:"toIsOutside" db:"to_is_outside"`
	Strong      bool              `json:"strong" db:"strong"`
	Ext         map[string]any    `json:"ext" db:"ext"`
	OwnPaths    string            `json:"ownPaths" db:"own_paths"`
	CreatedAt   time.Time         `json:"createdAt" db:"created_at"`
}

// Attr is a captured from/to side attribute value, snapshotted at
// relation-creation time so later edits/deletes to the endpoint item
// do not retroactively alter a historical relation's displayed value
// (supplemented from original_source's rel_attr handling; see
// SPEC_FULL.md §4.1).
type Attr struct {
	Id     string `json:"id" db:"id"`
	RelId  string `json:"relId" db:"rel_id"`
	IsFrom bool   `json:"isFrom" db:"is_from"`
	Name   string `json:"name" db:"name"`
	Value  string `json:"value" db:"value"`
}

// Env is an active-time-window / IP-constraint / predicate guard
// attached to a Rel (supplemented from original_source; SPEC_FULL.md
// §4.1).
type Env struct {
	Id        string    `json:"id" db:"id"`
	RelId     string    `json:"relId" db:"rel_id"`
	StartTime time.Time `json:"startTime" db:"start_time"`
	EndTime   time.Time `json:"endTime" db:"end_time"`
	CIDRs     []string  `json:"cidrs" db:"cidrs"`
}

// Filter supports joins by tag, from-kind, from-id/to-id, and the
// "rel-by-from" direction flag (spec.md §4.1's RelFilter).
type Filter struct {
	Tag        string
	FromKind   string
	FromId     string
	ToId       string
	RelByFrom  bool
}
