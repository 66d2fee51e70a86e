package sqlite

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	platformerrors "github.com/louisbranch/outpost/internal/platform/errors"
	"github.com/louisbranch/outpost/internal/storage"
)

// ReplaceProductCache inserts a fresh product batch, evicting the oldest
// cached entries first so the partition never exceeds capacity. The eviction
// count is max(0, current+incoming-capacity); a batch larger than capacity
// keeps only its newest entries. The batch and its evictions commit in one
// transaction.
func (s *Store) ReplaceProductCache(ctx context.Context, products []storage.CachedProduct, capacity int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	if capacity <= 0 {
		return platformerrors.New(platformerrors.CodeCacheCapacityInvalid, "cache capacity must be greater than zero")
	}

	now := time.Now().UTC()
	batch := make([]storage.CachedProduct, 0, len(products))
	for _, product := range products {
		product.ID = strings.TrimSpace(product.ID)
		if product.ID == "" {
			return platformerrors.New(platformerrors.CodeProductIDEmpty, "product id is required")
		}
		if product.CachedAt.IsZero() {
			product.CachedAt = now
		}
		batch = append(batch, product)
	}
	if len(batch) > capacity {
		sort.SliceStable(batch, func(i, j int) bool {
			return batch[i].CachedAt.Before(batch[j].CachedAt)
		})
		batch = batch[len(batch)-capacity:]
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return platformerrors.Wrap(platformerrors.CodePersistenceFailed, "start product cache transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var current int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM cached_products`).Scan(&current); err != nil {
		return fmt.Errorf("count cached products: %w", err)
	}

	overflow := current + len(batch) - capacity
	if overflow > 0 {
		if _, err := tx.ExecContext(ctx, `
DELETE FROM cached_products
WHERE id IN (
	SELECT id FROM cached_products ORDER BY cached_at ASC, id ASC LIMIT ?
)
`, overflow); err != nil {
			return platformerrors.Wrap(platformerrors.CodePersistenceFailed, "evict cached products", err)
		}
	}

	for _, product := range batch {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO cached_products (id, name, price_cents, payload_json, cached_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	name = excluded.name,
	price_cents = excluded.price_cents,
	payload_json = excluded.payload_json,
	cached_at = excluded.cached_at
`,
			product.ID,
			product.Name,
			product.PriceCents,
			product.PayloadJSON,
			toMillis(product.CachedAt),
		); err != nil {
			return platformerrors.Wrap(platformerrors.CodePersistenceFailed, "cache product", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return platformerrors.Wrap(platformerrors.CodePersistenceFailed, "commit product cache", err)
	}
	return nil
}

// ReadProductCache returns all cached products, newest first.
func (s *Store) ReadProductCache(ctx context.Context) ([]storage.CachedProduct, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, name, price_cents, payload_json, cached_at
FROM cached_products
ORDER BY cached_at DESC, id ASC
`)
	if err != nil {
		return nil, fmt.Errorf("read product cache: %w", err)
	}
	defer rows.Close()

	products := []storage.CachedProduct{}
	for rows.Next() {
		var product storage.CachedProduct
		var cachedAt int64
		if err := rows.Scan(&product.ID, &product.Name, &product.PriceCents, &product.PayloadJSON, &cachedAt); err != nil {
			return nil, fmt.Errorf("scan cached product: %w", err)
		}
		product.CachedAt = fromMillis(cachedAt)
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cached products: %w", err)
	}
	return products, nil
}
