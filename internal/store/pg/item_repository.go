package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/bxcodec/dbresolver/v2"

	"github.com/ideal-world/bios/internal/core/bioserr"
	"github.com/ideal-world/bios/internal/rbum/item"
)

// ItemRepository implements item.Repository against the generic
// `rbum_item` table (the base Item row of spec.md §3's "polymorphic
// base + extension row" design), grounded on the teacher's
// product.postgresql.go Create/FindByName/Update shape: named-column
// INSERT/UPDATE, RowsAffected checks, and pgconn.PgError translation
// to the package's own bioserr family rather than the teacher's
// cn.Err* constants.
type ItemRepository struct {
	DB dbresolver.DB
}

func (r *ItemRepository) Insert(ctx context.Context, it *item.Item) error {
	q := conn(ctx, r.DB)

	_, err := q.ExecContext(ctx, `
		INSERT INTO rbum_item
			(id, kind, domain, code, name, own_paths, owner, scope_level, disabled, created_at, updated_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		it.Id, it.Kind, it.Domain, it.Code, it.Name, it.OwnPaths, it.Owner,
		it.ScopeLevel, it.Disabled, it.CreatedAt, it.UpdatedAt,
	)
	if err != nil {
		return translatePgError(err, it.Kind)
	}

	return nil
}

func (r *ItemRepository) Update(ctx context.Context, id string, patch map[string]any) error {
	if len(patch) == 0 {
		return nil
	}

	q := conn(ctx, r.DB)

	sets := make([]string, 0, len(patch))
	args := make([]any, 0, len(patch)+1)
	i := 1

	for col, val := range patch {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, i))
		args = append(args, val)
		i++
	}

	args = append(args, id)

	query := fmt.Sprintf("UPDATE rbum_item SET %s WHERE id = $%d", strings.Join(sets, ", "), i)

	result, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return translatePgError(err, "item")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return bioserr.NotFoundError{Code: "404-bios-not-found", Message: "item not found: " + id}
	}

	return nil
}

func (r *ItemRepository) FindByID(ctx context.Context, id string) (*item.Item, error) {
	q := conn(ctx, r.DB)

	row := q.QueryRowContext(ctx, `
		SELECT id, kind, domain, code, name, own_paths, owner, scope_level, disabled, created_at, updated_at
		FROM rbum_item WHERE id = $1`, id)

	return scanItem(row)
}

func (r *ItemRepository) FindByCode(ctx context.Context, kind, domain, ownPaths, code string) (*item.Item, error) {
	q := conn(ctx, r.DB)

	row := q.QueryRowContext(ctx, `
		SELECT id, kind, domain, code, name, own_paths, owner, scope_level, disabled, created_at, updated_at
		FROM rbum_item WHERE kind = $1 AND domain = $2 AND own_paths = $3 AND code = $4`,
		kind, domain, ownPaths, code)

	return scanItem(row)
}

// Paginate composes the scope/ownership predicate of spec.md §4.1
// into one SQL query: id-set, name substring, own_paths
// inclusion/exclusion, scope level, and enabled filters are all
// optional ANDed clauses.
func (r *ItemRepository) Paginate(ctx context.Context, filter item.Filter, page, size int, order string) (item.Page[item.Item], error) {
	q := conn(ctx, r.DB)

	where := make([]string, 0, 6)
	args := make([]any, 0, 8)
	i := 1

	if len(filter.Ids) > 0 {
		where = append(where, fmt.Sprintf("id = ANY($%d)", i))
		args = append(args, filter.Ids)
		i++
	}

	if filter.NameLike != "" {
		where = append(where, fmt.Sprintf("name ILIKE $%d", i))
		args = append(args, "%"+filter.NameLike+"%")
		i++
	}

	for _, p := range filter.OwnPathsInclude {
		where = append(where, fmt.Sprintf("own_paths LIKE $%d", i))
		args = append(args, p+"%")
		i++
	}

	for _, p := range filter.OwnPathsExclude {
		where = append(where, fmt.Sprintf("own_paths NOT LIKE $%d", i))
		args = append(args, p+"%")
		i++
	}

	if len(filter.ScopeLevels) > 0 {
		levels := make([]int, len(filter.ScopeLevels))
		for idx, lvl := range filter.ScopeLevels {
			levels[idx] = int(lvl)
		}

		where = append(where, fmt.Sprintf("scope_level = ANY($%d)", i))
		args = append(args, levels)
		i++
	}

	if filter.EnabledOnly {
		where = append(where, "disabled = false")
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	if order == "" {
		order = "created_at DESC"
	}

	if page < 1 {
		page = 1
	}

	if size < 1 {
		size = 20
	}

	var total int

	countQuery := fmt.Sprintf("SELECT count(*) FROM rbum_item %s", whereClause)
	if err := q.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return item.Page[item.Item]{}, err
	}

	listArgs := append(append([]any{}, args...), size, (page-1)*size)
	listQuery := fmt.Sprintf(`
		SELECT id, kind, domain, code, name, own_paths, owner, scope_level, disabled, created_at, updated_at
		FROM rbum_item %s ORDER BY %s LIMIT $%d OFFSET $%d`, whereClause, order, i, i+1)

	rows, err := q.QueryContext(ctx, listQuery, listArgs...)
	if err != nil {
		return item.Page[item.Item]{}, err
	}
	defer rows.Close()

	items := make([]item.Item, 0, size)

	for rows.Next() {
		it, err := scanItemRows(rows)
		if err != nil {
			return item.Page[item.Item]{}, err
		}

		items = append(items, *it)
	}

	if err := rows.Err(); err != nil {
		return item.Page[item.Item]{}, err
	}

	return item.Page[item.Item]{Items: items, Page: page, Size: size, Total: total}, nil
}

func (r *ItemRepository) Delete(ctx context.Context, id string) error {
	q := conn(ctx, r.DB)

	_, err := q.ExecContext(ctx, "DELETE FROM rbum_item WHERE id = $1", id)

	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row *sql.Row) (*item.Item, error) {
	it, err := scanItemRows(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	return it, err
}

func scanItemRows(s rowScanner) (*item.Item, error) {
	var it item.Item

	err := s.Scan(&it.Id, &it.Kind, &it.Domain, &it.Code, &it.Name, &it.OwnPaths, &it.Owner,
		&it.ScopeLevel, &it.Disabled, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return nil, err
	}

	return &it, nil
}

func translatePgError(err error, entity string) error {
	if strings.Contains(err.Error(), "duplicate key") {
		return bioserr.ConflictError{
			Entity:  bioserr.EntityType(entity),
			Code:    "409-iam-" + entity + "-duplicate",
			Message: "entity already exists",
		}
	}

	return err
}
