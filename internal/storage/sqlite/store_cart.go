package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	platformerrors "github.com/louisbranch/outpost/internal/platform/errors"
	"github.com/louisbranch/outpost/internal/storage"
)

// SaveCart replaces the persisted cart snapshot with entries. Save is a full
// replace, never a merge: whatever was stored before is gone.
func (s *Store) SaveCart(ctx context.Context, entries []storage.CartEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	for _, entry := range entries {
		if strings.TrimSpace(entry.ProductID) == "" || entry.Quantity <= 0 {
			return platformerrors.New(platformerrors.CodeCartItemInvalid, "cart entry requires a product id and a positive quantity")
		}
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return platformerrors.Wrap(platformerrors.CodePersistenceFailed, "start cart transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cart_entries`); err != nil {
		return platformerrors.Wrap(platformerrors.CodePersistenceFailed, "clear previous cart", err)
	}

	now := time.Now().UTC()
	for _, entry := range entries {
		addedAt := entry.AddedAt
		if addedAt.IsZero() {
			addedAt = now
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO cart_entries (product_id, name, price_cents, quantity, added_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(product_id) DO UPDATE SET
	name = excluded.name,
	price_cents = excluded.price_cents,
	quantity = excluded.quantity,
	added_at = excluded.added_at
`,
			strings.TrimSpace(entry.ProductID),
			entry.Name,
			entry.PriceCents,
			entry.Quantity,
			toMillis(addedAt),
		); err != nil {
			return platformerrors.Wrap(platformerrors.CodePersistenceFailed, "save cart entry", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return platformerrors.Wrap(platformerrors.CodePersistenceFailed, "commit cart", err)
	}
	return nil
}

// ReadCart returns the persisted cart snapshot in the order items were added.
func (s *Store) ReadCart(ctx context.Context) ([]storage.CartEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT product_id, name, price_cents, quantity, added_at
FROM cart_entries
ORDER BY added_at ASC, product_id ASC
`)
	if err != nil {
		return nil, fmt.Errorf("read cart: %w", err)
	}
	defer rows.Close()

	entries := []storage.CartEntry{}
	for rows.Next() {
		var entry storage.CartEntry
		var addedAt int64
		if err := rows.Scan(&entry.ProductID, &entry.Name, &entry.PriceCents, &entry.Quantity, &addedAt); err != nil {
			return nil, fmt.Errorf("scan cart entry: %w", err)
		}
		entry.AddedAt = fromMillis(addedAt)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cart entries: %w", err)
	}
	return entries, nil
}

// ClearCart removes the persisted cart snapshot.
func (s *Store) ClearCart(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}

	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM cart_entries`); err != nil {
		return platformerrors.Wrap(platformerrors.CodePersistenceFailed, "clear cart", err)
	}
	return nil
}
