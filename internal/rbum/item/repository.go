package item

import "context"

// Repository is the storage contract the generic kernel drives; a
// Postgres implementation lives in internal/store/pg.
type Repository interface {
	Insert(ctx context.Context, it *Item) error
	Update(ctx context.Context, id string, patch map[string]any) error
	FindByID(ctx context.Context, id string) (*Item, error)
	FindByCode(ctx context.Context, kind, domain, ownPaths, code string) (*Item, error)
	Paginate(ctx context.Context, filter Filter, page, size int, order string) (Page[Item], error)
	Delete(ctx context.Context, id string) error
}
