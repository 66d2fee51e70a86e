package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	platformerrors "github.com/louisbranch/outpost/internal/platform/errors"
	"github.com/louisbranch/outpost/internal/storage"
)

// RecordSyncAttempt persists one remote write attempt outcome.
func (s *Store) RecordSyncAttempt(ctx context.Context, attempt storage.SyncAttempt) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}

	attempt.OrderID = strings.TrimSpace(attempt.OrderID)
	attempt.Outcome = strings.TrimSpace(attempt.Outcome)
	if attempt.OrderID == "" {
		return platformerrors.New(platformerrors.CodeOrderIDEmpty, "order id is required")
	}
	if attempt.Outcome == "" {
		return fmt.Errorf("attempt outcome is required")
	}
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = time.Now().UTC()
	}

	if _, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO sync_attempts (order_id, outcome, attempt_count, last_error, created_at)
VALUES (?, ?, ?, ?, ?)
`,
		attempt.OrderID,
		attempt.Outcome,
		attempt.AttemptCount,
		strings.TrimSpace(attempt.LastError),
		toMillis(attempt.CreatedAt),
	); err != nil {
		return platformerrors.Wrap(platformerrors.CodePersistenceFailed, "record sync attempt", err)
	}
	return nil
}

// ListSyncAttempts lists newest-first attempts for one order.
func (s *Store) ListSyncAttempts(ctx context.Context, orderID string, limit int) ([]storage.SyncAttempt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, platformerrors.New(platformerrors.CodeOrderIDEmpty, "order id is required")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, order_id, outcome, attempt_count, last_error, created_at
FROM sync_attempts
WHERE order_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?
`, orderID, limit)
	if err != nil {
		return nil, fmt.Errorf("list sync attempts: %w", err)
	}
	defer rows.Close()

	attempts := []storage.SyncAttempt{}
	for rows.Next() {
		var attempt storage.SyncAttempt
		var createdAt int64
		if err := rows.Scan(&attempt.ID, &attempt.OrderID, &attempt.Outcome, &attempt.AttemptCount, &attempt.LastError, &createdAt); err != nil {
			return nil, fmt.Errorf("scan sync attempt: %w", err)
		}
		attempt.CreatedAt = fromMillis(createdAt)
		attempts = append(attempts, attempt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sync attempts: %w", err)
	}
	return attempts, nil
}
