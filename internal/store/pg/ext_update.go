package pg

import (
	"context"
	"fmt"
	"strings"
)

// updateByItemID applies patch as a partial UPDATE against table
// keyed by item_id, the shape every IAM-overlay extension repository
// (account, app, tenant, role, res) shares.
func updateByItemID(ctx context.Context, q querier, table, itemID string, patch map[string]any) error {
	if len(patch) == 0 {
		return nil
	}

	sets := make([]string, 0, len(patch))
	args := make([]any, 0, len(patch)+1)
	i := 1

	for col, val := range patch {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, i))
		args = append(args, val)
		i++
	}

	args = append(args, itemID)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE item_id = $%d", table, strings.Join(sets, ", "), i)
	_, err := q.ExecContext(ctx, query, args...)

	return err
}

func deleteByItemID(ctx context.Context, q querier, table, itemID string) error {
	_, err := q.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE item_id = $1", table), itemID)
	return err
}
