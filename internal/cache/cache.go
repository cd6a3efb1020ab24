// Package cache implements the repository head cache fronting Storage
// (C4, spec.md §6 repositoryCacheSpec): a read-through cache over
// NormalizeRevision for the common case of resolving HEAD, invalidated by
// Commit, ApplyTransform and GC on the same repository. Repository and
// project lifecycle calls (create, remove, unremove, purge) do not
// invalidate; an entry they make stale lives until its TTL expires.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/opendogma/dogma/common/mlog"
	"github.com/opendogma/dogma/internal/command"
	"github.com/opendogma/dogma/internal/storage"
)

const defaultTTL = 5 * time.Second

// Option configures a RevisionCache.
type Option func(*RevisionCache)

func WithTTL(ttl time.Duration) Option { return func(c *RevisionCache) { c.ttl = ttl } }
func WithLogger(l mlog.Logger) Option  { return func(c *RevisionCache) { c.logger = l } }

// RevisionCache decorates a storage.Storage with a redis-backed cache of
// each repository's current HEAD revision. Every method other than
// NormalizeRevision and the mutators passes straight through.
type RevisionCache struct {
	storage.Storage
	redis  *redis.Client
	ttl    time.Duration
	logger mlog.Logger
}

// New wraps next with a HEAD cache backed by client.
func New(next storage.Storage, client *redis.Client, opts ...Option) *RevisionCache {
	c := &RevisionCache{Storage: next, redis: client, ttl: defaultTTL, logger: &mlog.NoneLogger{}}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func headKey(project, repo string) string {
	return fmt.Sprintf("dogma:head:%s:%s", project, repo)
}

// NormalizeRevision serves command.Head out of cache, falling back to and
// repopulating from the wrapped Storage on miss. Any other revision is
// already absolute or storage-specific and bypasses the cache.
func (c *RevisionCache) NormalizeRevision(
	ctx context.Context, project, repo string, rev command.Revision,
) (command.Revision, error) {
	if rev != command.Head {
		return c.Storage.NormalizeRevision(ctx, project, repo, rev)
	}

	key := headKey(project, repo)

	if cached, err := c.redis.Get(ctx, key).Int64(); err == nil {
		return command.Revision{Major: cached}, nil
	}

	resolved, err := c.Storage.NormalizeRevision(ctx, project, repo, rev)
	if err != nil {
		return command.Revision{}, err
	}

	if err := c.redis.Set(ctx, key, resolved.Major, c.ttl).Err(); err != nil {
		c.logger.Warnf("cache: failed to populate head cache for %s/%s: %v", project, repo, err)
	}

	return resolved, nil
}

// Commit invalidates the HEAD cache for (project, repo) after a successful
// write; a failed commit leaves HEAD unchanged so the cache stays valid.
func (c *RevisionCache) Commit(ctx context.Context, req storage.CommitRequest) (storage.CommitResult, error) {
	res, err := c.Storage.Commit(ctx, req)
	if err == nil {
		c.invalidate(ctx, req.Project, req.Repository)
	}

	return res, err
}

// ApplyTransform invalidates the HEAD cache after a successful transform.
func (c *RevisionCache) ApplyTransform(
	ctx context.Context, req storage.TransformRequest,
) (storage.CommitResult, error) {
	res, err := c.Storage.ApplyTransform(ctx, req)
	if err == nil {
		c.invalidate(ctx, req.Project, req.Repository)
	}

	return res, err
}

// GC invalidates the HEAD cache after a successful compaction.
func (c *RevisionCache) GC(ctx context.Context, project, repo string) (command.Revision, error) {
	rev, err := c.Storage.GC(ctx, project, repo)
	if err == nil {
		c.invalidate(ctx, project, repo)
	}

	return rev, err
}

func (c *RevisionCache) invalidate(ctx context.Context, project, repo string) {
	if err := c.redis.Del(ctx, headKey(project, repo)).Err(); err != nil {
		c.logger.Warnf("cache: failed to invalidate head cache for %s/%s: %v", project, repo, err)
	}
}
