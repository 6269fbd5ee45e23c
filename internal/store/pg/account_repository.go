package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/bxcodec/dbresolver/v2"

	"github.com/ideal-world/bios/internal/iam/account"
)

// AccountRepository implements account.Repository against
// `iam_account`, the extension table registered by account.Handler
// (spec.md §3's "kind-specific extension row").
type AccountRepository struct {
	DB dbresolver.DB
}

func (r *AccountRepository) Insert(ctx context.Context, ext *account.Ext) error {
	q := conn(ctx, r.DB)

	_, err := q.ExecContext(ctx, `
		INSERT INTO iam_account (item_id, temporary, state, last_login_at, parent_item_id)
		VALUES ($1, $2, $3, $4, $5)`,
		ext.ItemId, ext.Temporary, ext.State, nullableTime(ext.LastLoginAt), ext.ParentItemId,
	)

	return err
}

func (r *AccountRepository) Update(ctx context.Context, itemID string, patch map[string]any) error {
	return updateByItemID(ctx, conn(ctx, r.DB), "iam_account", itemID, patch)
}

func (r *AccountRepository) FindByItemID(ctx context.Context, itemID string) (*account.Ext, error) {
	q := conn(ctx, r.DB)

	row := q.QueryRowContext(ctx, `
		SELECT item_id, temporary, state, last_login_at, parent_item_id FROM iam_account WHERE item_id = $1`, itemID)

	ext, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	return ext, err
}

func (r *AccountRepository) ListInactiveSince(ctx context.Context, cutoff time.Time, states []account.State) ([]account.Ext, error) {
	q := conn(ctx, r.DB)

	strs := make([]string, len(states))
	for i, s := range states {
		strs[i] = string(s)
	}

	rows, err := q.QueryContext(ctx, `
		SELECT item_id, temporary, state, last_login_at, parent_item_id
		FROM iam_account WHERE last_login_at < $1 AND state = ANY($2)`, cutoff, strs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]account.Ext, 0)

	for rows.Next() {
		ext, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, *ext)
	}

	return out, rows.Err()
}

func (r *AccountRepository) Delete(ctx context.Context, itemID string) error {
	return deleteByItemID(ctx, conn(ctx, r.DB), "iam_account", itemID)
}

func scanAccount(s rowScanner) (*account.Ext, error) {
	var ext account.Ext

	var lastLogin sql.NullTime

	if err := s.Scan(&ext.ItemId, &ext.Temporary, &ext.State, &lastLogin, &ext.ParentItemId); err != nil {
		return nil, err
	}

	if lastLogin.Valid {
		ext.LastLoginAt = &lastLogin.Time
	}

	return &ext, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}

	return *t
}
