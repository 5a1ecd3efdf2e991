package cache

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/johnayoung/go-quote-forecaster/internal/models"
)

// DefaultSize is the number of forecasts kept when no size is configured.
const DefaultSize = 32

// LRU is a bounded in-process cache. A hit returns the same pointer that was
// stored, so callers must treat cached results as read-only.
type LRU struct {
	mu    sync.Mutex
	cache *lru.Cache[Key, *models.ForecastResult]
}

// NewLRU creates a cache holding at most size forecasts.
func NewLRU(size int) (*LRU, error) {
	if size <= 0 {
		size = DefaultSize
	}
	c, err := lru.New[Key, *models.ForecastResult](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create lru cache: %w", err)
	}
	return &LRU{cache: c}, nil
}

func (l *LRU) Get(_ context.Context, key Key) (*models.ForecastResult, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	result, ok := l.cache.Get(key)
	return result, ok, nil
}

func (l *LRU) Put(_ context.Context, key Key, result *models.ForecastResult) error {
	if result == nil {
		return fmt.Errorf("cannot cache nil forecast for %s", key)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache.Add(key, result)
	return nil
}

func (l *LRU) Invalidate(_ context.Context, assetID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, key := range l.cache.Keys() {
		if key.AssetID == assetID {
			l.cache.Remove(key)
		}
	}
	return nil
}

func (l *LRU) Purge(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache.Purge()
	return nil
}

func (l *LRU) Len(_ context.Context) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cache.Len(), nil
}

func (l *LRU) Close() error {
	return nil
}
