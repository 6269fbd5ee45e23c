// Package audit implements the Audit sink external adapter of spec.md
// §4.7: append(tag, key, op, content, ext, ts), best-effort and
// at-least-once via a per-request outbox, grounded on the same
// request-scoped flush pattern internal/core/asynctask establishes
// for change propagation.
package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/ideal-world/bios/internal/obs/mlog"
)

// Entry is one audit record.
type Entry struct {
	Tag     string
	Key     string
	Op      string
	Content string
	Ext     map[string]any
	Ts      time.Time
}

type ctxKey struct{}

type outbox struct {
	mu      sync.Mutex
	entries []Entry
}

// NewContext attaches an empty outbox to ctx.
func NewContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, &outbox{})
}

// Append enqueues e onto ctx's outbox. A no-op if ctx carries none, so
// call sites that forget NewContext fail open.
func Append(ctx context.Context, e Entry) {
	if ob, ok := ctx.Value(ctxKey{}).(*outbox); ok {
		ob.mu.Lock()
		ob.entries = append(ob.entries, e)
		ob.mu.Unlock()
	}
}

// Drain returns and clears ctx's outbox.
func Drain(ctx context.Context) []Entry {
	ob, ok := ctx.Value(ctxKey{}).(*outbox)
	if !ok {
		return nil
	}

	ob.mu.Lock()
	defer ob.mu.Unlock()

	out := ob.entries
	ob.entries = nil

	return out
}

// Writer persists an audit entry; a single row insert, kept narrow so
// the sink is swappable (relational table today, log shipper or
// search index tomorrow) without touching call sites.
type Writer interface {
	Write(ctx context.Context, e Entry) error
}

// Sink is the best-effort at-least-once Audit adapter: Flush writes
// every entry in ctx's outbox through Writer, logging (never
// returning) individual failures so one bad audit row never fails the
// request that produced it (spec.md §4.7, "best-effort").
type Sink struct {
	Writer Writer
	Logger mlog.Logger
}

// NewSink builds a Sink.
func NewSink(writer Writer, logger mlog.Logger) *Sink {
	return &Sink{Writer: writer, Logger: logger}
}

// Append records e directly (bypassing the per-request outbox), for
// callers outside a request context such as the background sweepers.
func (s *Sink) Append(ctx context.Context, tag, key, op, content string, ext map[string]any, ts time.Time) error {
	return s.Writer.Write(ctx, Entry{Tag: tag, Key: key, Op: op, Content: content, Ext: ext, Ts: ts})
}

// Flush drains ctx's outbox and persists every entry, continuing past
// individual write failures.
func (s *Sink) Flush(ctx context.Context) {
	for _, e := range Drain(ctx) {
		if err := s.Writer.Write(ctx, e); err != nil && s.Logger != nil {
			raw, _ := json.Marshal(e)
			s.Logger.Errorf("audit: write failed, entry dropped: %v (%s)", err, raw)
		}
	}
}
