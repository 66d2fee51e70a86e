package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	platformerrors "github.com/louisbranch/outpost/internal/platform/errors"
	"github.com/louisbranch/outpost/internal/storage"
)

// EnqueueOrder upserts one captured order by ID. A new order is stored with
// synced=false and the current queue timestamp; re-enqueueing an existing ID
// refreshes the payload and resets the synced flag but preserves QueuedAt so
// the original capture order survives edits.
func (s *Store) EnqueueOrder(ctx context.Context, order storage.QueuedOrder) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}

	order.ID = strings.TrimSpace(order.ID)
	if order.ID == "" {
		return platformerrors.New(platformerrors.CodeOrderIDEmpty, "order id is required")
	}
	if strings.TrimSpace(order.PayloadJSON) == "" {
		return platformerrors.New(platformerrors.CodeOrderPayloadEmpty, "order payload is required")
	}
	if order.QueuedAt.IsZero() {
		order.QueuedAt = time.Now().UTC()
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO pending_orders (id, payload_json, queued_at, synced, parked, park_reason, attempt_count, last_error)
VALUES (?, ?, ?, 0, 0, '', 0, '')
ON CONFLICT(id) DO UPDATE SET
	payload_json = excluded.payload_json,
	synced = 0
`,
		order.ID,
		order.PayloadJSON,
		toMillis(order.QueuedAt),
	)
	if err != nil {
		return platformerrors.Wrap(platformerrors.CodePersistenceFailed, "enqueue order", err)
	}
	return nil
}

// ListUnsyncedOrders returns orders awaiting remote delivery, oldest first.
// Parked orders are excluded; they left the retry queue.
func (s *Store) ListUnsyncedOrders(ctx context.Context) ([]storage.QueuedOrder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, payload_json, queued_at, synced, attempt_count, last_error
FROM pending_orders
WHERE synced = 0 AND parked = 0
ORDER BY queued_at ASC, id ASC
`)
	if err != nil {
		return nil, fmt.Errorf("list unsynced orders: %w", err)
	}
	defer rows.Close()
	return scanOrders(rows)
}

// GetOrder returns one queued order by ID.
func (s *Store) GetOrder(ctx context.Context, id string) (storage.QueuedOrder, error) {
	if err := ctx.Err(); err != nil {
		return storage.QueuedOrder{}, err
	}
	if err := s.ready(); err != nil {
		return storage.QueuedOrder{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return storage.QueuedOrder{}, platformerrors.New(platformerrors.CodeOrderIDEmpty, "order id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, payload_json, queued_at, synced, attempt_count, last_error
FROM pending_orders
WHERE id = ?
`, id)
	var order storage.QueuedOrder
	var queuedAt int64
	var synced int
	err := row.Scan(&order.ID, &order.PayloadJSON, &queuedAt, &synced, &order.AttemptCount, &order.LastError)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.QueuedOrder{}, platformerrors.Wrap(platformerrors.CodeNotFound, "order not found", storage.ErrNotFound)
		}
		return storage.QueuedOrder{}, fmt.Errorf("get order: %w", err)
	}
	order.QueuedAt = fromMillis(queuedAt)
	order.Synced = synced != 0
	return order, nil
}

// MarkOrderSynced flips the synced flag in place. The record is retained for
// audit; a missing ID is a no-op.
func (s *Store) MarkOrderSynced(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return platformerrors.New(platformerrors.CodeOrderIDEmpty, "order id is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
UPDATE pending_orders SET synced = 1, last_error = '' WHERE id = ?
`, id)
	if err != nil {
		return platformerrors.Wrap(platformerrors.CodePersistenceFailed, "mark order synced", err)
	}
	return nil
}

// PurgeSyncedOrders deletes records already delivered to the remote store.
// It is an explicit cleanup operation, never invoked implicitly by sync.
func (s *Store) PurgeSyncedOrders(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := s.ready(); err != nil {
		return 0, err
	}

	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM pending_orders WHERE synced = 1`)
	if err != nil {
		return 0, platformerrors.Wrap(platformerrors.CodePersistenceFailed, "purge synced orders", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge synced orders affected: %w", err)
	}
	return int(affected), nil
}

// RecordOrderFailure increments the attempt counter and stores the last
// remote write error for one order. A missing ID is a no-op.
func (s *Store) RecordOrderFailure(ctx context.Context, id string, lastError string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return platformerrors.New(platformerrors.CodeOrderIDEmpty, "order id is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
UPDATE pending_orders
SET attempt_count = attempt_count + 1, last_error = ?
WHERE id = ?
`, strings.TrimSpace(lastError), id)
	if err != nil {
		return platformerrors.Wrap(platformerrors.CodePersistenceFailed, "record order failure", err)
	}
	return nil
}

// ParkOrder moves one order to the needs-attention partition. Parked orders
// are excluded from sync passes until revived.
func (s *Store) ParkOrder(ctx context.Context, id string, reason string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return platformerrors.New(platformerrors.CodeOrderIDEmpty, "order id is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
UPDATE pending_orders SET parked = 1, park_reason = ? WHERE id = ? AND synced = 0
`, strings.TrimSpace(reason), id)
	if err != nil {
		return platformerrors.Wrap(platformerrors.CodePersistenceFailed, "park order", err)
	}
	return nil
}

// ListParkedOrders returns orders waiting for manual attention, oldest first.
func (s *Store) ListParkedOrders(ctx context.Context) ([]storage.QueuedOrder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, payload_json, queued_at, synced, attempt_count, last_error
FROM pending_orders
WHERE parked = 1
ORDER BY queued_at ASC, id ASC
`)
	if err != nil {
		return nil, fmt.Errorf("list parked orders: %w", err)
	}
	defer rows.Close()
	return scanOrders(rows)
}

// ReviveOrder returns a parked order to the sync queue with a fresh attempt
// budget.
func (s *Store) ReviveOrder(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return platformerrors.New(platformerrors.CodeOrderIDEmpty, "order id is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
UPDATE pending_orders
SET parked = 0, park_reason = '', attempt_count = 0, last_error = ''
WHERE id = ?
`, id)
	if err != nil {
		return platformerrors.Wrap(platformerrors.CodePersistenceFailed, "revive order", err)
	}
	return nil
}

func scanOrders(rows *sql.Rows) ([]storage.QueuedOrder, error) {
	orders := []storage.QueuedOrder{}
	for rows.Next() {
		var order storage.QueuedOrder
		var queuedAt int64
		var synced int
		if err := rows.Scan(&order.ID, &order.PayloadJSON, &queuedAt, &synced, &order.AttemptCount, &order.LastError); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		order.QueuedAt = fromMillis(queuedAt)
		order.Synced = synced != 0
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	return orders, nil
}
