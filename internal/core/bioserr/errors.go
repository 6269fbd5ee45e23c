// Package bioserr groups the error kinds of the authorization platform
// into the families spec.md §7 names: Validation, Auth, Authorization,
// Conflict, Upstream, Internal. HTTP status is derivative of the kind,
// never the primary classification.
package bioserr

import (
	"errors"
	"fmt"
)

// EntityType names the entity a business error concerns, used for
// Code/Title templating instead of hardcoding per call site.
type EntityType string

// NotFoundError indicates the target entity does not exist, or is not
// visible to the caller's ownership/scope context.
type NotFoundError struct {
	Entity  EntityType
	Code    string
	Message string
	Err     error
}

func (e NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	return fmt.Sprintf("%s not found", e.Entity)
}

func (e NotFoundError) Unwrap() error { return e.Err }

// ValidationError indicates malformed input: bad shape, regex
// violation, duplicate code, missing required field.
type ValidationError struct {
	Entity  EntityType
	Code    string
	Message string
	Err     error
}

func (e ValidationError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s - %s", e.Code, e.Message)
	}

	return e.Message
}

func (e ValidationError) Unwrap() error { return e.Err }

// UnauthorizedError indicates the caller's identity could not be
// resolved or verified: unknown/expired token, bad signature. Messages
// are intentionally generic to avoid an authentication oracle.
type UnauthorizedError struct {
	Code    string
	Message string
	Err     error
}

func (e UnauthorizedError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	return "authentication failed"
}

func (e UnauthorizedError) Unwrap() error { return e.Err }

// LockedError indicates a credential is locked out per its CertConf
// failure-budget policy (P4).
type LockedError struct {
	Code       string
	Message    string
	RetryAfter int // seconds
}

func (e LockedError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	return "credential locked"
}

// ForbiddenError indicates a resolved identity was denied by policy:
// predicate failure, double-auth required.
type ForbiddenError struct {
	Code    string
	Message string
}

func (e ForbiddenError) Error() string { return e.Message }

// ConflictError indicates a state conflict: coexist-cap exceeded,
// scope violation, strong-rel delete guard.
type ConflictError struct {
	Entity  EntityType
	Code    string
	Message string
}

func (e ConflictError) Error() string { return e.Message }

// UpstreamError indicates an external adapter (LDAP, OAuth2, notifier)
// was unreachable or replied non-OK.
type UpstreamError struct {
	Adapter string
	Code    string
	Message string
	Err     error
}

func (e UpstreamError) Error() string {
	return fmt.Sprintf("%s: %s", e.Adapter, e.Message)
}

func (e UpstreamError) Unwrap() error { return e.Err }

// InternalError indicates a bug, exhausted retries, or an invariant
// violation. The caller sees only a stable opaque code; the detail is
// meant for logs keyed by CorrelationID.
type InternalError struct {
	CorrelationID string
	Code          string
	Message       string
	Err           error
}

func (e InternalError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}

	return e.Message
}

func (e InternalError) Unwrap() error { return e.Err }

// As is a convenience wrapper over errors.As for the bioserr families,
// sparing call sites the `var x T; errors.As(err, &x)` boilerplate.
func As[T error](err error) (T, bool) {
	var target T
	ok := errors.As(err, &target)

	return target, ok
}
