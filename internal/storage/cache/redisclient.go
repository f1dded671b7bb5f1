package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tinywideclouds/go-push-webhook/pkg/notification"
)

const redisDialCheck = 2 * time.Second

// RedisEndpointCache keeps each user's tokens as a Redis list, in directory
// order, under push:endpoints:<user>.
type RedisEndpointCache struct {
	rdb *redis.Client
}

// NewRedisEndpointCache connects and pings before returning.
func NewRedisEndpointCache(ctx context.Context, opts *redis.Options) (*RedisEndpointCache, error) {
	rdb := redis.NewClient(opts)

	checkCtx, cancel := context.WithTimeout(ctx, redisDialCheck)
	defer cancel()
	if err := rdb.Ping(checkCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis at %s unreachable: %w", opts.Addr, err)
	}
	return &RedisEndpointCache{rdb: rdb}, nil
}

// Endpoints returns an empty slice for a user with nothing cached.
func (c *RedisEndpointCache) Endpoints(ctx context.Context, userID notification.UserID) ([]notification.DeliveryEndpoint, error) {
	tokens, err := c.rdb.LRange(ctx, endpointKey(userID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	endpoints := make([]notification.DeliveryEndpoint, 0, len(tokens))
	for _, token := range tokens {
		endpoints = append(endpoints, notification.DeliveryEndpoint{Token: token})
	}
	return endpoints, nil
}

// StoreEndpoints replaces the user's list and its expiry in one transaction.
func (c *RedisEndpointCache) StoreEndpoints(ctx context.Context, userID notification.UserID, endpoints []notification.DeliveryEndpoint, ttl time.Duration) error {
	if len(endpoints) == 0 {
		return nil
	}
	tokens := make([]any, len(endpoints))
	for i, e := range endpoints {
		tokens[i] = e.Token
	}

	key := endpointKey(userID)
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.RPush(ctx, key, tokens...)
		pipe.PExpire(ctx, key, ttl)
		return nil
	})
	return err
}

func (c *RedisEndpointCache) Close() error {
	return c.rdb.Close()
}

func endpointKey(userID notification.UserID) string {
	return "push:endpoints:" + userID.String()
}
