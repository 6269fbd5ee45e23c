package rel

import (
	"context"
	"net"
	"time"
)

// Repository is the storage contract for Rel/Attr/Env rows.
type Repository interface {
	Insert(ctx context.Context, r *Rel) error
	InsertAttr(ctx context.Context, a *Attr) error
	InsertEnv(ctx context.Context, e *Env) error
	FindByID(ctx context.Context, id string) (*Rel, error)
	Find(ctx context.Context, filter Filter) ([]Rel, error)
	Env(ctx context.Context, relId string) (*Env, error)
	// HasStrongDependents reports whether any Rel tagged "strong"
	// still targets id, per spec.md §4.1's delete guard.
	HasStrongDependents(ctx context.Context, id string) (bool, error)
	Delete(ctx context.Context, id string) error
}

// Evaluate checks a Rel's optional Env guard against the caller's IP
// and the wall clock, per spec.md §4.1's supplemented RelEnv handling.
// A Rel with no Env row is unconstrained and always passes.
func Evaluate(env *Env, callerIP string, now time.Time) bool {
	if env == nil {
		return true
	}

	if !env.StartTime.IsZero() && now.Before(env.StartTime) {
		return false
	}

	if !env.EndTime.IsZero() && now.After(env.EndTime) {
		return false
	}

	if len(env.CIDRs) == 0 {
		return true
	}

	ip := net.ParseIP(callerIP)
	if ip == nil {
		return false
	}

	for _, cidr := range env.CIDRs {
		_, block, err := net.ParseCIDR(cidr)
		if err == nil && block.Contains(ip) {
			return true
		}
	}

	return false
}
