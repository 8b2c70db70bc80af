package repository

import (
	"context"
	"crypto/sha1"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/metavr/access-service/internal/config"
	"github.com/metavr/access-service/internal/model"
)

// CachedApplicationRepo fronts ApplicationRepo with a Redis read-through
// cache for the id and path lookups made on every supervisor access check.
// Only hits are cached. Redis errors fall through to MySQL.
type CachedApplicationRepo struct {
	*ApplicationRepo
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

// NewCachedApplicationRepo wraps inner. When caching is disabled or rdb is
// nil the returned repo behaves exactly like inner.
func NewCachedApplicationRepo(inner *ApplicationRepo, rdb *redis.Client, cfg config.AppCacheConfig) *CachedApplicationRepo {
	c := &CachedApplicationRepo{ApplicationRepo: inner, ttl: cfg.TTL, prefix: cfg.Prefix}
	if cfg.Enabled {
		c.rdb = rdb
	}
	if c.ttl <= 0 {
		c.ttl = time.Minute
	}
	return c
}

// GetByID is the cached form of ApplicationRepo.GetByID.
func (c *CachedApplicationRepo) GetByID(ctx context.Context, id string) (model.Application, error) {
	return c.cached(ctx, "id", id, func() (model.Application, error) { return c.ApplicationRepo.GetByID(ctx, id) })
}

// FindByPath is the cached form of ApplicationRepo.FindByPath.
func (c *CachedApplicationRepo) FindByPath(ctx context.Context, path string) (model.Application, error) {
	return c.cached(ctx, "path", path, func() (model.Application, error) { return c.ApplicationRepo.FindByPath(ctx, path) })
}

func (c *CachedApplicationRepo) cached(ctx context.Context, kind, value string, load func() (model.Application, error)) (model.Application, error) {
	if c.rdb == nil {
		return load()
	}
	key := c.key(kind, value)
	if raw, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		var app model.Application
		if json.Unmarshal(raw, &app) == nil {
			return app, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		return load()
	}

	app, err := load()
	if err != nil {
		return app, err
	}
	if raw, err := json.Marshal(app); err == nil {
		_ = c.rdb.Set(ctx, key, raw, c.ttl).Err()
	}
	return app, nil
}

func (c *CachedApplicationRepo) key(kind, value string) string {
	sum := sha1.Sum([]byte(value))
	return fmt.Sprintf("%s:%s:%x", c.prefix, kind, sum[:])
}
