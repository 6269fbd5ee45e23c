package audit

import (
	"context"
	"time"
)

// CredentialAuditAdapter adapts Sink to credential.AuditSink's
// narrower 4-string Append(ctx, tag, key, op, content) shape,
// stamping Ext nil and Ts via Clock.
type CredentialAuditAdapter struct {
	Sink  *Sink
	Clock func() time.Time
}

// NewCredentialAuditAdapter builds a CredentialAuditAdapter with the
// real clock.
func NewCredentialAuditAdapter(sink *Sink) CredentialAuditAdapter {
	return CredentialAuditAdapter{Sink: sink, Clock: time.Now}
}

// Append implements credential.AuditSink.
func (a CredentialAuditAdapter) Append(ctx context.Context, tag, key, op, content string) error {
	clock := a.Clock
	if clock == nil {
		clock = time.Now
	}

	return a.Sink.Append(ctx, tag, key, op, content, nil, clock())
}
