package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// ErrLeaseHeld indicates another owner currently holds the sync lease.
var ErrLeaseHeld = errors.New("sync lease held by another owner")

// QueuedOrder is one durably captured order awaiting remote delivery.
// Exactly one record exists per ID; enqueue is an idempotent upsert.
type QueuedOrder struct {
	ID           string
	PayloadJSON  string
	QueuedAt     time.Time
	Synced       bool
	AttemptCount int
	LastError    string
}

// CachedProduct is one product snapshot retained for offline browsing.
type CachedProduct struct {
	ID          string
	Name        string
	PriceCents  int64
	PayloadJSON string
	CachedAt    time.Time
}

// CartEntry is one line of the persisted cart snapshot.
type CartEntry struct {
	ProductID  string
	Name       string
	PriceCents int64
	Quantity   int
	AddedAt    time.Time
}

// SyncLease is the single durable lease guarding a sync pass across
// processes that share the same database file.
type SyncLease struct {
	Owner     string
	ExpiresAt time.Time
}

// SyncAttempt is one durable audit record of a remote write attempt.
type SyncAttempt struct {
	ID           int64
	OrderID      string
	Outcome      string
	AttemptCount int
	LastError    string
	CreatedAt    time.Time
}

// Sync attempt outcome values.
const (
	AttemptOutcomeSucceeded = "succeeded"
	AttemptOutcomeRetry     = "retry"
	AttemptOutcomeParked    = "parked"
)

// TelemetryEvent records one operational event emitted by the engine.
type TelemetryEvent struct {
	Timestamp      time.Time
	EventName      string
	Severity       string
	OrderID        string
	PassID         string
	Attributes     map[string]any
	AttributesJSON []byte
}

// OrderQueueStore persists the pending-order partition. Only order-placement
// code inserts new orders and only the sync coordinator flips the synced flag.
type OrderQueueStore interface {
	EnqueueOrder(ctx context.Context, order QueuedOrder) error
	ListUnsyncedOrders(ctx context.Context) ([]QueuedOrder, error)
	GetOrder(ctx context.Context, id string) (QueuedOrder, error)
	MarkOrderSynced(ctx context.Context, id string) error
	PurgeSyncedOrders(ctx context.Context) (int, error)
	RecordOrderFailure(ctx context.Context, id string, lastError string) error
	ParkOrder(ctx context.Context, id string, reason string) error
	ListParkedOrders(ctx context.Context) ([]QueuedOrder, error)
	ReviveOrder(ctx context.Context, id string) error
}

// ProductCacheStore persists the bounded product cache partition.
type ProductCacheStore interface {
	ReplaceProductCache(ctx context.Context, products []CachedProduct, capacity int) error
	ReadProductCache(ctx context.Context) ([]CachedProduct, error)
}

// CartStore persists the single active cart snapshot partition.
type CartStore interface {
	SaveCart(ctx context.Context, entries []CartEntry) error
	ReadCart(ctx context.Context) ([]CartEntry, error)
	ClearCart(ctx context.Context) error
}

// SyncLeaseStore coordinates the cross-process sync lease.
type SyncLeaseStore interface {
	AcquireSyncLease(ctx context.Context, owner string, now time.Time, ttl time.Duration) error
	RenewSyncLease(ctx context.Context, owner string, now time.Time, ttl time.Duration) error
	ReleaseSyncLease(ctx context.Context, owner string) error
}

// SyncAttemptStore persists the remote write attempt audit trail.
type SyncAttemptStore interface {
	RecordSyncAttempt(ctx context.Context, attempt SyncAttempt) error
	ListSyncAttempts(ctx context.Context, orderID string, limit int) ([]SyncAttempt, error)
}

// TelemetryStore persists operational telemetry events.
type TelemetryStore interface {
	AppendTelemetryEvent(ctx context.Context, evt TelemetryEvent) error
	ListTelemetryEvents(ctx context.Context, limit int) ([]TelemetryEvent, error)
}

// Store is the full local durable store contract owned by the engine.
type Store interface {
	OrderQueueStore
	ProductCacheStore
	CartStore
	SyncLeaseStore
	SyncAttemptStore
	TelemetryStore
}
