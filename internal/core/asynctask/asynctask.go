// Package asynctask implements the request-scoped change list of
// spec.md §4.6: every C1/C2 write that affects authorization enqueues
// a descriptor here, and the caller flushes the list synchronously on
// commit-success.
package asynctask

import "context"

// Change is a pending authorization-affecting mutation: a relation
// add/remove, a role-to-subject binding change, or a cert change
// (spec.md §4.6).
type Change struct {
	Kind string // "res_role_rel" | "role_subject_rel" | "cert"
	Id   string
	Old  any
	New  any
}

type ctxKey struct{}

type list struct {
	changes []Change
}

// NewContext attaches an empty change list to ctx.
func NewContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, &list{})
}

// Enqueue appends c to the change list attached to ctx. It is a no-op
// (not a panic) if ctx carries no list, so call sites that forget to
// wrap with NewContext fail open rather than crash a request.
func Enqueue(ctx context.Context, c Change) {
	if l, ok := ctx.Value(ctxKey{}).(*list); ok {
		l.changes = append(l.changes, c)
	}
}

// Flush returns and clears every change enqueued on ctx so far, ready
// for synchronous application on commit-success (spec.md §4.6).
func Flush(ctx context.Context) []Change {
	l, ok := ctx.Value(ctxKey{}).(*list)
	if !ok {
		return nil
	}

	out := l.changes
	l.changes = nil

	return out
}
