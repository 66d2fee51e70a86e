// Package cart manages the single persisted cart snapshot. Saves are full
// replacements; the store always reflects the last save, never a merge.
package cart

import (
	"context"
	"time"

	platformerrors "github.com/louisbranch/outpost/internal/platform/errors"
	"github.com/louisbranch/outpost/internal/storage"
)

// Manager orchestrates cart snapshot persistence over the durable store.
type Manager struct {
	store storage.CartStore
	now   func() time.Time
}

// New creates a manager over store.
func New(store storage.CartStore) (*Manager, error) {
	if store == nil {
		return nil, platformerrors.New(platformerrors.CodeStorageUnavailable, "cart store is required")
	}
	return &Manager{store: store, now: time.Now}, nil
}

// Save replaces the persisted snapshot with entries. Entries without an
// added-at time are stamped now so insertion order survives the replace.
func (m *Manager) Save(ctx context.Context, entries []storage.CartEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := m.now()
	stamped := make([]storage.CartEntry, 0, len(entries))
	for _, e := range entries {
		if e.ProductID == "" || e.Quantity <= 0 {
			return platformerrors.New(platformerrors.CodeCartItemInvalid, "cart entry needs a product id and a positive quantity")
		}
		if e.AddedAt.IsZero() {
			e.AddedAt = now
		}
		stamped = append(stamped, e)
	}
	return m.store.SaveCart(ctx, stamped)
}

// SetItem upserts one entry into the snapshot, keeping at most one entry per
// product and preserving the position of an existing entry. Quantity zero
// removes the product.
func (m *Manager) SetItem(ctx context.Context, entry storage.CartEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if entry.ProductID == "" {
		return platformerrors.New(platformerrors.CodeCartItemInvalid, "cart entry needs a product id")
	}
	if entry.Quantity < 0 {
		return platformerrors.New(platformerrors.CodeCartItemInvalid, "cart entry quantity cannot be negative")
	}

	current, err := m.store.ReadCart(ctx)
	if err != nil {
		return err
	}

	next := make([]storage.CartEntry, 0, len(current)+1)
	found := false
	for _, e := range current {
		if e.ProductID != entry.ProductID {
			next = append(next, e)
			continue
		}
		found = true
		if entry.Quantity == 0 {
			continue
		}
		entry.AddedAt = e.AddedAt
		next = append(next, entry)
	}
	if !found && entry.Quantity > 0 {
		if entry.AddedAt.IsZero() {
			entry.AddedAt = m.now()
		}
		next = append(next, entry)
	}
	return m.store.SaveCart(ctx, next)
}

// Entries returns the persisted snapshot in insertion order, empty when the
// cart was never saved or was cleared.
func (m *Manager) Entries(ctx context.Context) ([]storage.CartEntry, error) {
	return m.store.ReadCart(ctx)
}

// Clear empties the snapshot, for checkout completion or abandonment.
func (m *Manager) Clear(ctx context.Context) error {
	return m.store.ClearCart(ctx)
}
