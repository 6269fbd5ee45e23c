package pg

import (
	"context"
	"encoding/json"

	"github.com/bxcodec/dbresolver/v2"

	"github.com/ideal-world/bios/internal/adapters/audit"
)

// AuditWriter implements audit.Writer against the append-only
// `rbum_audit` table.
type AuditWriter struct {
	DB dbresolver.DB
}

func (w *AuditWriter) Write(ctx context.Context, e audit.Entry) error {
	q := conn(ctx, w.DB)

	ext, err := json.Marshal(e.Ext)
	if err != nil {
		return err
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO rbum_audit (tag, key, op, content, ext, ts) VALUES ($1, $2, $3, $4, $5, $6)`,
		e.Tag, e.Key, e.Op, e.Content, ext, e.Ts,
	)

	return err
}
