// Package gateway implements the Authorization Gateway (C5) of
// spec.md §4.5: the six-step per-request pipeline (envelope decode,
// identity resolution, fingerprint lookup, predicate evaluation,
// cross-cutting checks, egress sealing) plus the Mix-API nested-
// envelope form.
package gateway

import "time"

// Request is the inbound request shape the pipeline operates over,
// deliberately decoupled from fiber.Ctx so the pipeline is unit
// testable without an HTTP server (the teacher's services package
// keeps the same separation between fiber handlers and plain Go
// service functions).
type Request struct {
	Method  string
	Path    string
	Query   string // raw query string, as received
	Body    []byte
	Headers map[string]string
	Date    time.Time
	// CryptoHeaderValue is the raw value of the configured crypto
	// header, if the caller set one.
	CryptoHeaderValue string
	// CallerPub is the caller's SM2 public key, supplied alongside the
	// crypto triple for response sealing (spec.md §4.5 step 1).
	CallerPub []byte
}

func (r Request) header(name string) (string, bool) {
	v, ok := r.Headers[name]
	return v, ok
}
