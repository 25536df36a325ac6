// Package cache keeps hot authorization lookups in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"propdesk.io/internal/auth"
	"propdesk.io/internal/obs"
)

const adminKeyPrefix = "propdesk:admin:identity:"

// AdminDirectory caches admin grants in front of a source directory. Only
// found grants are cached; Redis failures fall through to the source.
type AdminDirectory struct {
	source auth.AdminDirectory
	client *redis.Client
	ttl    time.Duration
}

// NewAdminDirectory wraps source. A nil client disables caching.
func NewAdminDirectory(source auth.AdminDirectory, client *redis.Client, ttl time.Duration) *AdminDirectory {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &AdminDirectory{source: source, client: client, ttl: ttl}
}

// NewClient builds a Redis client for addr. An empty addr returns nil.
func NewClient(addr, password string, db int) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  500 * time.Millisecond,
		ReadTimeout:  250 * time.Millisecond,
		WriteTimeout: 250 * time.Millisecond,
	})
}

func adminKey(identityUserID string) string { return adminKeyPrefix + identityUserID }

func (c *AdminDirectory) FindAdminByIdentity(ctx context.Context, identityUserID string) (auth.AdminGrant, error) {
	if c.client == nil {
		return c.source.FindAdminByIdentity(ctx, identityUserID)
	}
	key := adminKey(identityUserID)
	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var grant auth.AdminGrant
		if jsonErr := json.Unmarshal(raw, &grant); jsonErr == nil {
			return grant, nil
		}
		obs.Logger().WithField("key", key).Warn("discarding unreadable admin cache entry")
	case !errors.Is(err, redis.Nil):
		obs.Logger().WithError(err).Debug("admin cache unavailable")
	}

	grant, err := c.source.FindAdminByIdentity(ctx, identityUserID)
	if err != nil {
		return auth.AdminGrant{}, err
	}
	if payload, err := json.Marshal(grant); err == nil {
		if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
			obs.Logger().WithFields(logrus.Fields{"key": key}).WithError(err).Debug("admin cache write failed")
		}
	}
	return grant, nil
}

// Invalidate drops the cached grant for an identity after an admin change.
func (c *AdminDirectory) Invalidate(ctx context.Context, identityUserID string) error {
	if c.client == nil {
		return nil
	}
	return c.client.Del(ctx, adminKey(identityUserID)).Err()
}

// Ping reports whether Redis is reachable. Without a client it always succeeds.
func (c *AdminDirectory) Ping(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	return c.client.Ping(ctx).Err()
}
