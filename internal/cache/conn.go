// Package cache implements the Policy Index/Invalidation cache (C4) of
// spec.md §4.4 and the credential lock/fail/vcode keyspace of §6, both
// backed by a single Redis connection.
package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ideal-world/bios/internal/obs/mlog"
)

// DefaultTTL is the lifetime of change:{ts} entries when
// PolicyIndex.ChangeEntryTTL is non-positive.
const DefaultTTL = 24 * time.Hour

// Connection is a hub dealing with the redis connection lifecycle,
// lazily connecting on first use and memoizing the client.
type Connection struct {
	ConnectionString string
	Client           *redis.Client
	Logger           mlog.Logger
}

// Connect establishes the singleton client connection.
func (c *Connection) Connect(ctx context.Context) error {
	logger := c.logger()
	logger.Info("cache: connecting to redis...")

	opts, err := redis.ParseURL(c.ConnectionString)
	if err != nil {
		return err
	}

	client := redis.NewClient(opts)

	if _, err := client.Ping(ctx).Result(); err != nil {
		logger.Errorf("cache: ping failed: %v", err)
		return err
	}

	logger.Info("cache: connected to redis")
	c.Client = client

	return nil
}

// GetClient returns the memoized client, connecting first if needed.
func (c *Connection) GetClient(ctx context.Context) (*redis.Client, error) {
	if c.Client == nil {
		if err := c.Connect(ctx); err != nil {
			return nil, err
		}
	}

	return c.Client, nil
}

func (c *Connection) logger() mlog.Logger {
	if c.Logger != nil {
		return c.Logger
	}

	return mlog.NewLoggerFromContext(context.Background())
}
