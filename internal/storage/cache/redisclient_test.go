//go:build integration

package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/illmade-knight/go-test/emulators"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-push-webhook/internal/storage/cache"
	"github.com/tinywideclouds/go-push-webhook/pkg/notification"
)

func TestRedisEndpointCache_Integration(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	t.Cleanup(cancel)

	conn := emulators.SetupRedisContainer(t, ctx, emulators.GetDefaultRedisImageContainer())
	opts := &redis.Options{Addr: conn.EmulatorAddress}

	store, err := cache.NewRedisEndpointCache(ctx, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	raw := redis.NewClient(opts)
	t.Cleanup(func() { _ = raw.Close() })

	t.Run("Miss is an empty slice", func(t *testing.T) {
		got, err := store.Endpoints(ctx, "nobody")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("Store keeps order and expiry", func(t *testing.T) {
		endpoints := []notification.DeliveryEndpoint{{Token: "C"}, {Token: "A"}, {Token: "B"}}
		require.NoError(t, store.StoreEndpoints(ctx, "user-1", endpoints, time.Minute))

		got, err := store.Endpoints(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, endpoints, got)

		ttl, err := raw.PTTL(ctx, "push:endpoints:user-1").Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, time.Duration(0))
		assert.LessOrEqual(t, ttl, time.Minute)
	})

	t.Run("Store replaces rather than appends", func(t *testing.T) {
		require.NoError(t, store.StoreEndpoints(ctx, "user-2", []notification.DeliveryEndpoint{{Token: "old"}}, time.Minute))
		require.NoError(t, store.StoreEndpoints(ctx, "user-2", []notification.DeliveryEndpoint{{Token: "new1"}, {Token: "new2"}}, time.Minute))

		got, err := store.Endpoints(ctx, "user-2")
		require.NoError(t, err)
		assert.Equal(t, []notification.DeliveryEndpoint{{Token: "new1"}, {Token: "new2"}}, got)
	})

	t.Run("Unreachable server fails at construction", func(t *testing.T) {
		_, err := cache.NewRedisEndpointCache(ctx, &redis.Options{Addr: "127.0.0.1:1"})
		assert.ErrorContains(t, err, "unreachable")
	})
}
