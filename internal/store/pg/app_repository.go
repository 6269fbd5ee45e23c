package pg

import (
	"context"
	"database/sql"
	"errors"

	"github.com/bxcodec/dbresolver/v2"

	"github.com/ideal-world/bios/internal/iam/app"
)

// AppRepository implements app.Repository against `iam_app`.
type AppRepository struct {
	DB dbresolver.DB
}

func (r *AppRepository) Insert(ctx context.Context, ext *app.Ext) error {
	q := conn(ctx, r.DB)

	_, err := q.ExecContext(ctx, `
		INSERT INTO iam_app (item_id, tenant_id, icon) VALUES ($1, $2, $3)`,
		ext.ItemId, ext.TenantId, ext.Icon,
	)

	return err
}

func (r *AppRepository) Update(ctx context.Context, itemID string, patch map[string]any) error {
	return updateByItemID(ctx, conn(ctx, r.DB), "iam_app", itemID, patch)
}

func (r *AppRepository) FindByItemID(ctx context.Context, itemID string) (*app.Ext, error) {
	q := conn(ctx, r.DB)

	row := q.QueryRowContext(ctx, `SELECT item_id, tenant_id, icon FROM iam_app WHERE item_id = $1`, itemID)

	var ext app.Ext

	err := row.Scan(&ext.ItemId, &ext.TenantId, &ext.Icon)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return &ext, nil
}

func (r *AppRepository) Delete(ctx context.Context, itemID string) error {
	return deleteByItemID(ctx, conn(ctx, r.DB), "iam_app", itemID)
}
