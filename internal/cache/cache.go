package cache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"coupon-share-service/internal/apperr"
	"coupon-share-service/internal/storage"

	"github.com/dgraph-io/ristretto"
	"golang.org/x/sync/singleflight"
)

// Cache puts an in-memory L1 in front of a persistent image store (L2) and
// coalesces concurrent first renders of the same coupon code.
type Cache struct {
	l1           *ristretto.Cache
	l1TTL        time.Duration
	l2           storage.Store
	singleflight singleflight.Group

	// Metrics
	l1Hits   atomic.Uint64
	l1Misses atomic.Uint64
	l2Hits   atomic.Uint64
	l2Misses atomic.Uint64
	renders  atomic.Uint64
}

// Config for cache initialization
type Config struct {
	L1MaxCost     int64 `json:"l1_max_cost" yaml:"l1_max_cost"`         // Max bytes held in L1 (default: 64MB)
	L1NumCounters int64 `json:"l1_num_counters" yaml:"l1_num_counters"` // Keys tracked for admission (default: 100k)
	// L1TTL bounds how long a replica may keep serving an image another
	// replica already deleted from the shared store (default: 1m).
	L1TTL time.Duration `json:"l1_ttl" yaml:"l1_ttl"`
}

// RenderFunc produces the image for a code that is not cached yet.
type RenderFunc func(ctx context.Context) ([]byte, error)

// NewCache creates a new multi-layer image cache
func NewCache(store storage.Store, cfg Config) (*Cache, error) {
	if cfg.L1MaxCost == 0 {
		cfg.L1MaxCost = 64 << 20
	}
	if cfg.L1NumCounters == 0 {
		cfg.L1NumCounters = 100000
	}
	if cfg.L1TTL <= 0 {
		cfg.L1TTL = time.Minute
	}

	l1, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.L1NumCounters,
		MaxCost:     cfg.L1MaxCost,
		BufferItems: 64,
		Metrics:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create L1 cache: %w", err)
	}

	return &Cache{l1: l1, l1TTL: cfg.L1TTL, l2: store}, nil
}

// Has reports whether an image is stored for code. It always asks the
// store, so a delete made through another replica is seen immediately.
func (c *Cache) Has(ctx context.Context, code string) (bool, error) {
	return c.l2.Has(ctx, code)
}

// Get returns the stored image, or apperr.ErrCacheMiss.
func (c *Cache) Get(ctx context.Context, code string) ([]byte, error) {
	if val, found := c.l1.Get(code); found {
		c.l1Hits.Add(1)
		return val.([]byte), nil
	}
	c.l1Misses.Add(1)

	data, err := c.l2.Get(ctx, code)
	if err != nil {
		if errors.Is(err, apperr.ErrCacheMiss) {
			c.l2Misses.Add(1)
		}
		return nil, err
	}
	c.l2Hits.Add(1)
	c.setL1(code, data)
	return data, nil
}

// Put stores data in both layers.
func (c *Cache) Put(ctx context.Context, code string, data []byte) error {
	if err := c.l2.Put(ctx, code, data); err != nil {
		return err
	}
	c.setL1(code, data)
	return nil
}

// Delete removes code from every layer and reports whether the persistent
// store held it.
func (c *Cache) Delete(ctx context.Context, code string) (bool, error) {
	c.l1.Del(code)
	return c.l2.Delete(ctx, code)
}

// GetOrRender returns the cached image for code, rendering and storing it on
// a miss. Concurrent callers for the same code share one render. The second
// return value reports whether this call triggered a render.
func (c *Cache) GetOrRender(ctx context.Context, code string, render RenderFunc) ([]byte, bool, error) {
	if data, err := c.Get(ctx, code); err == nil {
		return data, false, nil
	} else if !errors.Is(err, apperr.ErrCacheMiss) {
		return nil, false, err
	}

	var rendered bool
	val, err, _ := c.singleflight.Do(code, func() (interface{}, error) {
		// Another flight may have stored it between our miss and now
		if data, err := c.l2.Get(ctx, code); err == nil {
			return data, nil
		} else if !errors.Is(err, apperr.ErrCacheMiss) {
			return nil, err
		}

		data, err := render(ctx)
		if err != nil {
			return nil, err
		}
		c.renders.Add(1)
		rendered = true

		if err := c.Put(ctx, code, data); err != nil {
			return nil, err
		}
		return data, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.([]byte), rendered, nil
}

func (c *Cache) setL1(code string, data []byte) {
	c.l1.SetWithTTL(code, data, int64(len(data)), c.l1TTL)
	c.l1.Wait()
}

// GetMetrics returns cache performance metrics
func (c *Cache) GetMetrics() Metrics {
	l1Total := c.l1Hits.Load() + c.l1Misses.Load()
	l2Total := c.l2Hits.Load() + c.l2Misses.Load()

	var l1HitRate, l2HitRate float64
	if l1Total > 0 {
		l1HitRate = float64(c.l1Hits.Load()) / float64(l1Total)
	}
	if l2Total > 0 {
		l2HitRate = float64(c.l2Hits.Load()) / float64(l2Total)
	}

	return Metrics{
		L1Hits:        c.l1Hits.Load(),
		L1Misses:      c.l1Misses.Load(),
		L1HitRate:     l1HitRate,
		L2Hits:        c.l2Hits.Load(),
		L2Misses:      c.l2Misses.Load(),
		L2HitRate:     l2HitRate,
		Renders:       c.renders.Load(),
		L1KeysAdded:   c.l1.Metrics.KeysAdded(),
		L1KeysEvicted: c.l1.Metrics.KeysEvicted(),
		L1CostAdded:   c.l1.Metrics.CostAdded(),
		L1CostEvicted: c.l1.Metrics.CostEvicted(),
	}
}

// Metrics holds cache performance data
type Metrics struct {
	L1Hits        uint64
	L1Misses      uint64
	L1HitRate     float64
	L2Hits        uint64
	L2Misses      uint64
	L2HitRate     float64
	Renders       uint64
	L1KeysAdded   uint64
	L1KeysEvicted uint64
	L1CostAdded   uint64
	L1CostEvicted uint64
}

// Close gracefully shuts down the cache
func (c *Cache) Close() {
	c.l1.Close()
}
