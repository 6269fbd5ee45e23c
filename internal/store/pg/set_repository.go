package pg

import (
	"context"

	"github.com/bxcodec/dbresolver/v2"

	"github.com/ideal-world/bios/internal/rbum/set"
)

// SetRepository implements set.Repository against the
// `rbum_set`/`rbum_set_cate`/`rbum_set_item` tables (spec.md §4.1's
// sys_code-indexed tree).
type SetRepository struct {
	DB dbresolver.DB
}

func (r *SetRepository) InsertSet(ctx context.Context, s *set.Set) error {
	q := conn(ctx, r.DB)

	_, err := q.ExecContext(ctx, `
		INSERT INTO rbum_set (id, code, name, own_paths) VALUES ($1, $2, $3, $4)`,
		s.Id, s.Code, s.Name, s.OwnPaths)

	return err
}

func (r *SetRepository) InsertCate(ctx context.Context, c *set.Cate) error {
	q := conn(ctx, r.DB)

	_, err := q.ExecContext(ctx, `
		INSERT INTO rbum_set_cate (id, set_id, sys_code, name, created_at) VALUES ($1, $2, $3, $4, $5)`,
		c.Id, c.SetId, c.SysCode, c.Name, c.CreatedAt)

	return err
}

func (r *SetRepository) InsertItem(ctx context.Context, i *set.Item) error {
	q := conn(ctx, r.DB)

	_, err := q.ExecContext(ctx, `
		INSERT INTO rbum_set_item (id, cate_id, rel_item_id, sort) VALUES ($1, $2, $3, $4)`,
		i.Id, i.CateId, i.RelItemId, i.Sort)

	return err
}

func (r *SetRepository) CountChildren(ctx context.Context, setID, parentSysCode string) (int, error) {
	q := conn(ctx, r.DB)

	var n int

	err := q.QueryRowContext(ctx, `
		SELECT count(*) FROM rbum_set_cate
		WHERE set_id = $1 AND sys_code LIKE $2 AND length(sys_code) = $3`,
		setID, set.LikePrefix(parentSysCode), len(parentSysCode)+4).Scan(&n)

	return n, err
}

func (r *SetRepository) ListDescendants(ctx context.Context, setID, sysCodePrefix string) ([]set.Cate, error) {
	q := conn(ctx, r.DB)

	rows, err := q.QueryContext(ctx, `
		SELECT id, set_id, sys_code, name, created_at FROM rbum_set_cate
		WHERE set_id = $1 AND sys_code LIKE $2
		ORDER BY sys_code`,
		setID, set.LikePrefix(sysCodePrefix))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []set.Cate

	for rows.Next() {
		var c set.Cate
		if err := rows.Scan(&c.Id, &c.SetId, &c.SysCode, &c.Name, &c.CreatedAt); err != nil {
			return nil, err
		}

		out = append(out, c)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(out) == 0 {
		return nil, nil
	}

	return out, nil
}
