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

// AcquireSyncLease claims the single sync lease for owner. The claim succeeds
// when no lease exists, the existing lease expired, or owner already holds
// it; otherwise storage.ErrLeaseHeld is returned. The lease lives in the same
// database file as the order queue, so two processes sharing the file cannot
// run concurrent passes.
func (s *Store) AcquireSyncLease(ctx context.Context, owner string, now time.Time, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return fmt.Errorf("lease owner is required")
	}
	if ttl <= 0 {
		return fmt.Errorf("lease ttl must be greater than zero")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return platformerrors.Wrap(platformerrors.CodePersistenceFailed, "start lease transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var currentOwner string
	var expiresAt int64
	err = tx.QueryRowContext(ctx, `SELECT owner, expires_at FROM sync_lease WHERE singleton = 1`).
		Scan(&currentOwner, &expiresAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// No lease yet; claim below.
	case err != nil:
		return fmt.Errorf("read sync lease: %w", err)
	default:
		if currentOwner != owner && fromMillis(expiresAt).After(now) {
			return platformerrors.Wrap(platformerrors.CodeSyncLeaseHeld, "sync lease held by another owner", storage.ErrLeaseHeld)
		}
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO sync_lease (singleton, owner, expires_at)
VALUES (1, ?, ?)
ON CONFLICT(singleton) DO UPDATE SET
	owner = excluded.owner,
	expires_at = excluded.expires_at
`, owner, toMillis(now.Add(ttl))); err != nil {
		return platformerrors.Wrap(platformerrors.CodePersistenceFailed, "claim sync lease", err)
	}

	if err := tx.Commit(); err != nil {
		return platformerrors.Wrap(platformerrors.CodePersistenceFailed, "commit sync lease", err)
	}
	return nil
}

// RenewSyncLease extends the lease expiry for owner. Renewal of a lease the
// owner no longer holds returns storage.ErrLeaseHeld.
func (s *Store) RenewSyncLease(ctx context.Context, owner string, now time.Time, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return fmt.Errorf("lease owner is required")
	}
	if ttl <= 0 {
		return fmt.Errorf("lease ttl must be greater than zero")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE sync_lease SET expires_at = ? WHERE singleton = 1 AND owner = ?
`, toMillis(now.Add(ttl)), owner)
	if err != nil {
		return platformerrors.Wrap(platformerrors.CodePersistenceFailed, "renew sync lease", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("renew sync lease affected: %w", err)
	}
	if affected == 0 {
		return platformerrors.Wrap(platformerrors.CodeSyncLeaseHeld, "sync lease lost to another owner", storage.ErrLeaseHeld)
	}
	return nil
}

// ReleaseSyncLease drops the lease when owner still holds it. Releasing a
// lease claimed by someone else is a no-op.
func (s *Store) ReleaseSyncLease(ctx context.Context, owner string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return fmt.Errorf("lease owner is required")
	}

	if _, err := s.sqlDB.ExecContext(ctx, `
DELETE FROM sync_lease WHERE singleton = 1 AND owner = ?
`, owner); err != nil {
		return platformerrors.Wrap(platformerrors.CodePersistenceFailed, "release sync lease", err)
	}
	return nil
}
