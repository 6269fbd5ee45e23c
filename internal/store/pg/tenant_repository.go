package pg

import (
	"context"
	"database/sql"
	"errors"

	"github.com/bxcodec/dbresolver/v2"

	"github.com/ideal-world/bios/internal/iam/tenant"
)

// TenantRepository implements tenant.Repository against `iam_tenant`.
type TenantRepository struct {
	DB dbresolver.DB
}

func (r *TenantRepository) Insert(ctx context.Context, ext *tenant.Ext) error {
	q := conn(ctx, r.DB)

	_, err := q.ExecContext(ctx, `
		INSERT INTO iam_tenant (item_id, account_self_reg, contact_phone, contact_email)
		VALUES ($1, $2, $3, $4)`,
		ext.ItemId, ext.AccountSelfReg, ext.ContactPhone, ext.ContactEmail,
	)

	return err
}

func (r *TenantRepository) Update(ctx context.Context, itemID string, patch map[string]any) error {
	return updateByItemID(ctx, conn(ctx, r.DB), "iam_tenant", itemID, patch)
}

func (r *TenantRepository) FindByItemID(ctx context.Context, itemID string) (*tenant.Ext, error) {
	q := conn(ctx, r.DB)

	row := q.QueryRowContext(ctx, `
		SELECT item_id, account_self_reg, contact_phone, contact_email FROM iam_tenant WHERE item_id = $1`, itemID)

	var ext tenant.Ext

	err := row.Scan(&ext.ItemId, &ext.AccountSelfReg, &ext.ContactPhone, &ext.ContactEmail)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return &ext, nil
}

func (r *TenantRepository) Delete(ctx context.Context, itemID string) error {
	return deleteByItemID(ctx, conn(ctx, r.DB), "iam_tenant", itemID)
}
