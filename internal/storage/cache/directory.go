package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/tinywideclouds/go-push-webhook/pkg/dispatch"
	"github.com/tinywideclouds/go-push-webhook/pkg/notification"
)

// EndpointCache holds recently looked-up endpoints per user.
type EndpointCache interface {
	// Endpoints returns an empty slice on a miss.
	Endpoints(ctx context.Context, userID notification.UserID) ([]notification.DeliveryEndpoint, error)
	StoreEndpoints(ctx context.Context, userID notification.UserID, endpoints []notification.DeliveryEndpoint, ttl time.Duration) error
}

// CachedDirectory adds read-aside caching to any Directory.
type CachedDirectory struct {
	source dispatch.Directory
	cache  EndpointCache
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedDirectory(source dispatch.Directory, cache EndpointCache, ttl time.Duration, logger *slog.Logger) *CachedDirectory {
	return &CachedDirectory{
		source: source,
		cache:  cache,
		ttl:    ttl,
		logger: logger.With("component", "CachedDirectory"),
	}
}

func (d *CachedDirectory) Lookup(ctx context.Context, userID notification.UserID) ([]notification.DeliveryEndpoint, error) {
	cached, err := d.cache.Endpoints(ctx, userID)
	if err != nil {
		d.logger.Warn("Endpoint cache read failed, using source", "user_id", userID.String(), "err", err)
	} else if len(cached) > 0 {
		return cached, nil
	}

	fresh, err := d.source.Lookup(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Empty results are not cached so a newly registered device is seen on the next event.
	if len(fresh) > 0 {
		if err := d.cache.StoreEndpoints(ctx, userID, fresh, d.ttl); err != nil {
			d.logger.Warn("Failed to populate endpoint cache", "user_id", userID.String(), "err", err)
		}
	}
	return fresh, nil
}
