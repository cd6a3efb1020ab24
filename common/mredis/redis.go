package mredis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/opendogma/dogma/common/mlog"
)

// RedisConnection is a hub which deals with the read-through cache used to
// look up repository head revisions without hitting the replicated log (C4).
type RedisConnection struct {
	ConnectionStringSource string
	Client                 *redis.Client
	Connected              bool
	Logger                 mlog.Logger
}

// Connect keeps a singleton connection with redis.
func (rc *RedisConnection) Connect(ctx context.Context) error {
	rc.Logger.Info("connecting to redis...")

	opts, err := redis.ParseURL(rc.ConnectionStringSource)
	if err != nil {
		return fmt.Errorf("parsing redis connection string: %w", err)
	}

	rdb := redis.NewClient(opts)

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		rc.Logger.Errorf("redis ping failed: %v", err)
		return fmt.Errorf("pinging redis: %w", err)
	}

	rc.Logger.Info("connected to redis")

	rc.Connected = true
	rc.Client = rdb

	return nil
}

// GetDB returns the redis client, connecting lazily if necessary.
func (rc *RedisConnection) GetDB(ctx context.Context) (*redis.Client, error) {
	if rc.Client == nil {
		if err := rc.Connect(ctx); err != nil {
			return nil, err
		}
	}

	return rc.Client, nil
}
