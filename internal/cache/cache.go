// Package cache holds computed forecasts keyed by asset and horizon.
package cache

import (
	"context"
	"fmt"

	"github.com/johnayoung/go-quote-forecaster/internal/models"
)

// Backend names accepted by New.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Key identifies one cached forecast.
type Key struct {
	AssetID string
	Horizon int
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%d", k.AssetID, k.Horizon)
}

// ForecastCache stores forecasts until the underlying data for an asset
// changes. Implementations must be safe for concurrent use.
type ForecastCache interface {
	// Get returns the cached forecast for key. A miss is (nil, false, nil).
	Get(ctx context.Context, key Key) (*models.ForecastResult, bool, error)
	Put(ctx context.Context, key Key, result *models.ForecastResult) error
	// Invalidate drops every horizon cached for assetID.
	Invalidate(ctx context.Context, assetID string) error
	Purge(ctx context.Context) error
	Len(ctx context.Context) (int, error)
	Close() error
}

// New builds the cache selected by backend. An empty backend means memory.
func New(ctx context.Context, backend string, size int, redisOpts RedisOptions) (ForecastCache, error) {
	switch backend {
	case "", BackendMemory:
		return NewLRU(size)
	case BackendRedis:
		return NewRedisCache(ctx, redisOpts)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", backend)
	}
}
