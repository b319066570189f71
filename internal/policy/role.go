package policy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"replybot/internal/constants"
	"replybot/internal/logger"
	"replybot/pkg/metrics"
)

// RoleResolver returns a member's role within a conversation, e.g.
// "owner", "admin" or "member".
type RoleResolver interface {
	GetRole(ctx context.Context, conversationID, userID string) (string, error)
}

// RedisRoleCache keeps resolved roles in Redis for a short TTL so that
// every router instance shares one lookup per member.
type RedisRoleCache struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
	next      RoleResolver
	logger    logger.Logger
}

func NewRedisRoleCache(client redis.UniversalClient, keyPrefix string, ttl time.Duration, next RoleResolver, log logger.Logger) *RedisRoleCache {
	return &RedisRoleCache{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
		next:      next,
		logger:    log,
	}
}

func (c *RedisRoleCache) key(conversationID, userID string) string {
	return c.keyPrefix + constants.KeyPrefixRole + conversationID + ":" + userID
}

func (c *RedisRoleCache) GetRole(ctx context.Context, conversationID, userID string) (string, error) {
	key := c.key(conversationID, userID)

	role, err := c.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		metrics.IncCacheRequest("roles", true)
		return role, nil
	case errors.Is(err, redis.Nil):
		metrics.IncCacheRequest("roles", false)
	default:
		// A cache failure must not hide the role; fall through to the lookup.
		c.logger.WarnwCtx(ctx, "Role cache read failed",
			"key", key,
			"error", err,
		)
	}

	role, err = c.next.GetRole(ctx, conversationID, userID)
	if err != nil {
		return "", fmt.Errorf("role lookup failed: %w", err)
	}

	if err := c.client.Set(ctx, key, role, c.ttl).Err(); err != nil {
		c.logger.WarnwCtx(ctx, "Role cache write failed",
			"key", key,
			"error", err,
		)
	}

	return role, nil
}
