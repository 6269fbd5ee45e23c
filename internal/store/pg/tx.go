package pg

import (
	"context"
	"database/sql"
)

// querier is the minimal database/sql surface both *sql.Tx and
// dbresolver.DB satisfy, letting every repository method run unchanged
// whether or not a transaction is open on ctx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type txKey struct{}

// txBeginner is the BeginTx subset dbresolver.DB shares with *sql.DB,
// routed to the primary pool (dbresolver always sends BeginTx to a
// primary since a transaction implies a pending write).
type txBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// WithTx opens a transaction against db, attaches it to ctx, and runs
// fn; fn's error (or a panic) rolls the transaction back, otherwise it
// commits. Every Kernel.Add call spans the base Item insert, the
// kind-extension insert, and default Rel inserts in one transaction
// per spec.md §3's Lifecycle ("creation is atomic within a transaction
// spanning all dependent rows"); callers open one WithTx per request
// around the whole Kernel operation. If ctx already carries a
// transaction (an outer WithTx, e.g. credential.Provisioner wrapping a
// Kernel.Add call that opens its own), WithTx joins it instead of
// nesting: fn runs against the existing tx and only the outermost
// WithTx commits or rolls back.
func WithTx(ctx context.Context, db txBeginner, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}

		if err != nil {
			_ = tx.Rollback()
			return
		}

		err = tx.Commit()
	}()

	err = fn(context.WithValue(ctx, txKey{}, tx))

	return err
}

// conn resolves the querier to use for this call: the transaction
// attached to ctx by WithTx if present, otherwise db directly (a
// single-statement read has no need to open one).
func conn(ctx context.Context, db querier) querier {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok && tx != nil {
		return tx
	}

	return db
}
