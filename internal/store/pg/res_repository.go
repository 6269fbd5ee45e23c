package pg

import (
	"context"
	"database/sql"
	"errors"

	"github.com/bxcodec/dbresolver/v2"

	"github.com/ideal-world/bios/internal/iam/res"
)

// ResRepository implements res.Repository against `iam_res`.
type ResRepository struct {
	DB dbresolver.DB
}

func (r *ResRepository) Insert(ctx context.Context, ext *res.Ext) error {
	q := conn(ctx, r.DB)

	_, err := q.ExecContext(ctx, `
		INSERT INTO iam_res (item_id, sub_kind, method, uri, start_at, end_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		ext.ItemId, ext.SubKind, ext.Method, ext.URI, ext.StartAt, ext.EndAt,
	)

	return err
}

func (r *ResRepository) Update(ctx context.Context, itemID string, patch map[string]any) error {
	return updateByItemID(ctx, conn(ctx, r.DB), "iam_res", itemID, patch)
}

func (r *ResRepository) FindByItemID(ctx context.Context, itemID string) (*res.Ext, error) {
	q := conn(ctx, r.DB)

	row := q.QueryRowContext(ctx, `
		SELECT item_id, sub_kind, method, uri, start_at, end_at FROM iam_res WHERE item_id = $1`, itemID)

	var ext res.Ext

	err := row.Scan(&ext.ItemId, &ext.SubKind, &ext.Method, &ext.URI, &ext.StartAt, &ext.EndAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return &ext, nil
}

func (r *ResRepository) Delete(ctx context.Context, itemID string) error {
	return deleteByItemID(ctx, conn(ctx, r.DB), "iam_res", itemID)
}
