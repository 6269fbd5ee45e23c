// Package pg implements the Postgres-backed Repository contracts the
// RBUM kernel, credential store, and IAM overlay kinds are written
// against (internal/rbum/item.Repository, internal/rbum/rel.
// Repository, internal/credential.ConfRepository/CertRepository, and
// the per-kind extension repositories), per spec.md §3's "transactional
// tabular store" treatment of the relational backend.
//
// The teacher platform reaches this layer through mpostgres, a thin
// wrapper around database/sql that lazily opens the connection and
// memoizes it (internal/cache.Connection mirrors the same shape for
// Redis). This package follows the identical pattern, additionally
// splitting primary/replica traffic with dbresolver the way the
// teacher's dual_pool_middleware routes organization/ledger traffic to
// separate pools.
package pg

import (
	"context"
	"database/sql"

	"github.com/bxcodec/dbresolver/v2"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/ideal-world/bios/internal/obs/mlog"
)

// Connection is a hub dealing with the Postgres connection lifecycle:
// one primary DSN (writes) and zero or more replica DSNs (reads),
// resolved lazily on first use and memoized, mirroring internal/cache.
// Connection's Connect/GetClient shape.
type Connection struct {
	PrimaryDSN  string
	ReplicaDSNs []string
	Logger      mlog.Logger

	db dbresolver.DB
}

// Connect opens the primary and replica pools and wraps them in a
// dbresolver.DB that round-robins reads across replicas while routing
// every write to the primary.
func (c *Connection) Connect(ctx context.Context) error {
	logger := c.logger()
	logger.Info("pg: connecting to postgres...")

	primary, err := sql.Open("pgx", c.PrimaryDSN)
	if err != nil {
		return err
	}

	if err := primary.PingContext(ctx); err != nil {
		logger.Errorf("pg: primary ping failed: %v", err)
		return err
	}

	opts := []dbresolver.OptionFunc{
		dbresolver.WithPrimaryDBs(primary),
		dbresolver.WithLoadBalancer(dbresolver.RandomLB),
	}

	if len(c.ReplicaDSNs) > 0 {
		replicas := make([]*sql.DB, 0, len(c.ReplicaDSNs))

		for _, dsn := range c.ReplicaDSNs {
			replica, err := sql.Open("pgx", dsn)
			if err != nil {
				return err
			}

			if err := replica.PingContext(ctx); err != nil {
				logger.Errorf("pg: replica ping failed: %v", err)
				return err
			}

			replicas = append(replicas, replica)
		}

		opts = append(opts, dbresolver.WithReplicaDBs(replicas...))
	}

	c.db = dbresolver.New(opts...)
	logger.Info("pg: connected to postgres")

	return nil
}

// GetDB returns the memoized dbresolver.DB, connecting first if
// needed.
func (c *Connection) GetDB(ctx context.Context) (dbresolver.DB, error) {
	if c.db == nil {
		if err := c.Connect(ctx); err != nil {
			return nil, err
		}
	}

	return c.db, nil
}

func (c *Connection) logger() mlog.Logger {
	if c.Logger != nil {
		return c.Logger
	}

	return mlog.NewLoggerFromContext(context.Background())
}
