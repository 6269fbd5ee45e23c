package pg

import (
	"context"
	"database/sql"
	"errors"

	"github.com/bxcodec/dbresolver/v2"

	"github.com/ideal-world/bios/internal/iam/role"
)

// RoleRepository implements role.Repository against `iam_role`.
type RoleRepository struct {
	DB dbresolver.DB
}

func (r *RoleRepository) Insert(ctx context.Context, ext *role.Ext) error {
	q := conn(ctx, r.DB)

	_, err := q.ExecContext(ctx, `
		INSERT INTO iam_role (item_id, sub_kind, extend_role_id) VALUES ($1, $2, $3)`,
		ext.ItemId, ext.SubKind, ext.ExtendRoleId,
	)

	return err
}

func (r *RoleRepository) Update(ctx context.Context, itemID string, patch map[string]any) error {
	return updateByItemID(ctx, conn(ctx, r.DB), "iam_role", itemID, patch)
}

func (r *RoleRepository) FindByItemID(ctx context.Context, itemID string) (*role.Ext, error) {
	q := conn(ctx, r.DB)

	row := q.QueryRowContext(ctx, `
		SELECT item_id, sub_kind, extend_role_id FROM iam_role WHERE item_id = $1`, itemID)

	var ext role.Ext

	err := row.Scan(&ext.ItemId, &ext.SubKind, &ext.ExtendRoleId)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return &ext, nil
}

func (r *RoleRepository) Delete(ctx context.Context, itemID string) error {
	return deleteByItemID(ctx, conn(ctx, r.DB), "iam_role", itemID)
}
