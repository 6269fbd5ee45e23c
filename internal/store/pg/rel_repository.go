package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/bxcodec/dbresolver/v2"

	"github.com/ideal-world/bios/internal/rbum/rel"
)

// RelRepository implements rel.Repository against the `rbum_rel`,
// `rbum_rel_attr`, and `rbum_rel_env` tables — the single tagged-edge
// join primitive of spec.md §9 ("avoid bespoke foreign-key graphs").
type RelRepository struct {
	DB dbresolver.DB
}

func (r *RelRepository) Insert(ctx context.Context, rl *rel.Rel) error {
	q := conn(ctx, r.DB)

	ext, err := json.Marshal(rl.Ext)
	if err != nil {
		return err
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO rbum_rel
			(id, tag, from_kind, from_id, to_id, to_is_outside, strong, ext, own_paths, created_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rl.Id, rl.Tag, rl.FromKind, rl.FromId, rl.ToId, rl.ToIsOutside, rl.Strong, ext, rl.OwnPaths, rl.CreatedAt,
	)

	return err
}

func (r *RelRepository) InsertAttr(ctx context.Context, a *rel.Attr) error {
	q := conn(ctx, r.DB)

	_, err := q.ExecContext(ctx, `
		INSERT INTO rbum_rel_attr (id, rel_id, is_from, name, value) VALUES ($1, $2, $3, $4, $5)`,
		a.Id, a.RelId, a.IsFrom, a.Name, a.Value,
	)

	return err
}

func (r *RelRepository) InsertEnv(ctx context.Context, e *rel.Env) error {
	q := conn(ctx, r.DB)

	_, err := q.ExecContext(ctx, `
		INSERT INTO rbum_rel_env (id, rel_id, start_time, end_time, cidrs) VALUES ($1, $2, $3, $4, $5)`,
		e.Id, e.RelId, nullTime(e.StartTime), nullTime(e.EndTime), strings.Join(e.CIDRs, ","),
	)

	return err
}

func (r *RelRepository) FindByID(ctx context.Context, id string) (*rel.Rel, error) {
	q := conn(ctx, r.DB)

	row := q.QueryRowContext(ctx, `
		SELECT id, tag, from_kind, from_id, to_id, to_is_outside, strong, ext, own_paths, created_at
		FROM rbum_rel WHERE id = $1`, id)

	rl, err := scanRel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	return rl, err
}

func (r *RelRepository) Find(ctx context.Context, filter rel.Filter) ([]rel.Rel, error) {
	q := conn(ctx, r.DB)

	where := make([]string, 0, 4)
	args := make([]any, 0, 4)
	i := 1

	if filter.Tag != "" {
		where = append(where, placeholder("tag", &i))
		args = append(args, filter.Tag)
	}

	if filter.FromKind != "" {
		where = append(where, placeholder("from_kind", &i))
		args = append(args, filter.FromKind)
	}

	if filter.FromId != "" {
		where = append(where, placeholder("from_id", &i))
		args = append(args, filter.FromId)
	}

	if filter.ToId != "" {
		where = append(where, placeholder("to_id", &i))
		args = append(args, filter.ToId)
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	rows, err := q.QueryContext(ctx, `
		SELECT id, tag, from_kind, from_id, to_id, to_is_outside, strong, ext, own_paths, created_at
		FROM rbum_rel `+whereClause+` ORDER BY created_at ASC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]rel.Rel, 0)

	for rows.Next() {
		rl, err := scanRel(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, *rl)
	}

	return out, rows.Err()
}

func (r *RelRepository) Env(ctx context.Context, relId string) (*rel.Env, error) {
	q := conn(ctx, r.DB)

	row := q.QueryRowContext(ctx, `
		SELECT id, rel_id, start_time, end_time, cidrs FROM rbum_rel_env WHERE rel_id = $1`, relId)

	var e rel.Env

	var start, end sql.NullTime

	var cidrs string

	if err := row.Scan(&e.Id, &e.RelId, &start, &end, &cidrs); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, err
	}

	e.StartTime = start.Time
	e.EndTime = end.Time

	if cidrs != "" {
		e.CIDRs = strings.Split(cidrs, ",")
	}

	return &e, nil
}

func (r *RelRepository) HasStrongDependents(ctx context.Context, id string) (bool, error) {
	q := conn(ctx, r.DB)

	var count int

	err := q.QueryRowContext(ctx, `
		SELECT count(*) FROM rbum_rel WHERE to_id = $1 AND strong = true`, id).Scan(&count)

	return count > 0, err
}

func (r *RelRepository) Delete(ctx context.Context, id string) error {
	q := conn(ctx, r.DB)

	_, err := q.ExecContext(ctx, "DELETE FROM rbum_rel WHERE id = $1", id)

	return err
}

func scanRel(s rowScanner) (*rel.Rel, error) {
	var rl rel.Rel

	var ext []byte

	err := s.Scan(&rl.Id, &rl.Tag, &rl.FromKind, &rl.FromId, &rl.ToId, &rl.ToIsOutside, &rl.Strong,
		&ext, &rl.OwnPaths, &rl.CreatedAt)
	if err != nil {
		return nil, err
	}

	if len(ext) > 0 {
		if err := json.Unmarshal(ext, &rl.Ext); err != nil {
			return nil, err
		}
	}

	return &rl, nil
}

func placeholder(col string, i *int) string {
	p := col + " = $" + strconv.Itoa(*i)
	*i++

	return p
}
