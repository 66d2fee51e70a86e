// Package catalog manages the bounded product cache used for offline
// browsing. Refreshes are wholesale: a fresh batch replaces capacity
// overflow by evicting the oldest snapshots first.
package catalog

import (
	"context"
	"time"

	platformerrors "github.com/louisbranch/outpost/internal/platform/errors"
	"github.com/louisbranch/outpost/internal/storage"
)

// DefaultCapacity bounds the product cache when no capacity is configured.
const DefaultCapacity = 100

// Manager orchestrates product cache refreshes over the durable store.
type Manager struct {
	store    storage.ProductCacheStore
	capacity int
	now      func() time.Time
}

// Option adjusts manager construction.
type Option func(*Manager)

// WithCapacity overrides the cache capacity bound.
func WithCapacity(capacity int) Option {
	return func(m *Manager) { m.capacity = capacity }
}

// WithClock overrides the cached-at clock.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// New creates a manager over store.
func New(store storage.ProductCacheStore, opts ...Option) (*Manager, error) {
	m := &Manager{store: store, capacity: DefaultCapacity, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	if m.store == nil {
		return nil, platformerrors.New(platformerrors.CodeStorageUnavailable, "product cache store is required")
	}
	if m.capacity <= 0 {
		return nil, platformerrors.New(platformerrors.CodeCacheCapacityInvalid, "cache capacity must be positive")
	}
	return m, nil
}

// Capacity reports the configured cache bound.
func (m *Manager) Capacity() int {
	return m.capacity
}

// Refresh replaces the cache with products, stamping entries that carry no
// cached-at time and evicting the oldest snapshots to honor the capacity
// bound. Batches are never merged incrementally.
func (m *Manager) Refresh(ctx context.Context, products []storage.CachedProduct) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := m.now()
	stamped := make([]storage.CachedProduct, 0, len(products))
	for _, p := range products {
		if p.ID == "" {
			return platformerrors.New(platformerrors.CodeProductIDEmpty, "product id is required")
		}
		if p.CachedAt.IsZero() {
			p.CachedAt = now
		}
		stamped = append(stamped, p)
	}
	if err := m.store.ReplaceProductCache(ctx, stamped, m.capacity); err != nil {
		return err
	}
	return nil
}

// Products returns the cached snapshots, newest first.
func (m *Manager) Products(ctx context.Context) ([]storage.CachedProduct, error) {
	return m.store.ReadProductCache(ctx)
}
