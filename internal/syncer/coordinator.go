// Package syncer drains the pending-order queue into the remote store. One
// pass runs at a time per coordinator, orders are delivered strictly in
// capture order, and a single bad order never blocks the rest of the queue.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	platformerrors "github.com/louisbranch/outpost/internal/platform/errors"
	"github.com/louisbranch/outpost/internal/platform/id"
	"github.com/louisbranch/outpost/internal/platform/timeouts"
	"github.com/louisbranch/outpost/internal/remote"
	"github.com/louisbranch/outpost/internal/storage"
	"github.com/louisbranch/outpost/internal/telemetry"
)

// State is the coordinator pass state.
type State int32

const (
	// StateIdle means no sync pass is active.
	StateIdle State = iota
	// StateRunning means a pass currently owns the queue snapshot.
	StateRunning
)

const defaultLeaseTTL = 30 * time.Second

// ProgressFunc observes per-order success within a pass.
type ProgressFunc func(succeeded, total int)

// ErrorFunc observes per-order failures within a pass.
type ErrorFunc func(orderID string, err error)

// Result summarizes one sync pass. A pass skipped because another pass or
// process owns the queue, or because the platform is offline, reports zeros.
type Result struct {
	Succeeded int
	Failed    int
	Parked    int
	Total     int
}

// Store is the durable state surface the coordinator depends on.
type Store interface {
	storage.OrderQueueStore
	storage.SyncLeaseStore
	storage.SyncAttemptStore
}

// Config tunes coordinator behavior.
type Config struct {
	// Owner identifies this coordinator in the cross-process sync lease.
	// Generated when empty.
	Owner string
	// LeaseTTL bounds how long a crashed pass blocks other processes.
	LeaseTTL time.Duration
	// MaxAttempts parks an order after this many failed remote writes.
	// Zero disables the budget; transient failures then retry forever.
	MaxAttempts int
	// WriteTimeout caps each remote write. Defaults to timeouts.RemoteWrite.
	WriteTimeout time.Duration
	// OnProgress, when set, receives (succeeded, total) after each delivery.
	OnProgress ProgressFunc
	// OnError, when set, receives each per-order failure.
	OnError ErrorFunc
	// Logf receives operational log lines. Defaults to log.Printf.
	Logf func(string, ...any)
}

// Coordinator owns the Idle/Running pass state and the drain loop.
type Coordinator struct {
	store   Store
	remote  remote.Store
	online  func(context.Context) bool
	emitter *telemetry.Emitter
	cfg     Config
	clock   func() time.Time
	tracer  trace.Tracer
	state   atomic.Int32
}

// New creates a sync coordinator. online reports the platform connectivity
// check consulted right before a pass starts; a nil online always passes.
func New(store Store, remoteStore remote.Store, online func(context.Context) bool, emitter *telemetry.Emitter, cfg Config) (*Coordinator, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if remoteStore == nil {
		return nil, fmt.Errorf("remote store is required")
	}
	if cfg.Owner == "" {
		owner, err := id.NewID()
		if err != nil {
			return nil, fmt.Errorf("generate lease owner: %w", err)
		}
		cfg.Owner = owner
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = defaultLeaseTTL
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = timeouts.RemoteWrite
	}
	if cfg.Logf == nil {
		cfg.Logf = log.Printf
	}
	return &Coordinator{
		store:   store,
		remote:  remoteStore,
		online:  online,
		emitter: emitter,
		cfg:     cfg,
		clock:   time.Now,
		tracer:  otel.Tracer("github.com/louisbranch/outpost/internal/syncer"),
	}, nil
}

// State returns the current pass state.
func (c *Coordinator) State() State {
	return State(c.state.Load())
}

// RunPass drains the current snapshot of unsynced orders. A trigger arriving
// while a pass is running is a benign no-op reporting zeros; the same applies
// when the platform is offline, the remote store is unreachable, or another
// process holds the sync lease. Storage failures while reading the queue
// propagate to the caller; per-order remote failures never do.
func (c *Coordinator) RunPass(ctx context.Context) (Result, error) {
	if !c.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		c.cfg.Logf("sync pass already running, trigger ignored")
		return Result{}, nil
	}
	defer c.state.Store(int32(StateIdle))

	// Double-check connectivity: the trigger may be stale by the time the
	// pass actually starts.
	if c.online != nil && !c.online(ctx) {
		c.cfg.Logf("sync pass skipped: platform offline")
		return Result{}, nil
	}
	if !c.remote.Reachable(ctx) {
		c.cfg.Logf("sync pass skipped: remote store unreachable")
		return Result{}, nil
	}

	now := c.clock().UTC()
	if err := c.store.AcquireSyncLease(ctx, c.cfg.Owner, now, c.cfg.LeaseTTL); err != nil {
		if errors.Is(err, storage.ErrLeaseHeld) {
			c.cfg.Logf("sync pass skipped: lease held by another process")
			return Result{}, nil
		}
		return Result{}, fmt.Errorf("acquire sync lease: %w", err)
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeouts.Shutdown)
		defer cancel()
		if err := c.store.ReleaseSyncLease(releaseCtx, c.cfg.Owner); err != nil {
			c.cfg.Logf("release sync lease: %v", err)
		}
	}()

	orders, err := c.store.ListUnsyncedOrders(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list unsynced orders: %w", err)
	}

	passID, err := id.NewID()
	if err != nil {
		passID = c.cfg.Owner
	}

	ctx, span := c.tracer.Start(ctx, "syncer.pass", trace.WithAttributes(
		attribute.String("sync.pass_id", passID),
		attribute.Int("sync.queue_depth", len(orders)),
	))
	defer span.End()

	result := Result{Total: len(orders)}
	for _, order := range orders {
		if ctxErr := ctx.Err(); ctxErr != nil {
			c.finishPass(ctx, span, passID, result)
			return result, ctxErr
		}
		// Keep the lease alive for long queues. Losing it means another
		// process took over the queue; delivering further orders would
		// break mutual exclusion, so the pass stops here.
		if err := c.store.RenewSyncLease(ctx, c.cfg.Owner, c.clock().UTC(), c.cfg.LeaseTTL); err != nil {
			if errors.Is(err, storage.ErrLeaseHeld) {
				c.cfg.Logf("sync pass aborted: lease lost to another process")
				c.finishPass(ctx, span, passID, result)
				return result, nil
			}
			c.cfg.Logf("renew sync lease: %v", err)
		}

		c.deliverOrder(ctx, passID, order, &result)
	}

	c.finishPass(ctx, span, passID, result)
	return result, nil
}

// deliverOrder attempts one remote write and records its outcome. Failures
// are isolated: the pass continues with the next order regardless.
func (c *Coordinator) deliverOrder(ctx context.Context, passID string, order storage.QueuedOrder, result *Result) {
	writeCtx, cancel := context.WithTimeout(ctx, c.cfg.WriteTimeout)
	defer cancel()

	writeResult, err := c.remote.CreateOrder(writeCtx, remote.CreateOrderRequest{
		IdempotencyKey: order.ID,
		PayloadJSON:    order.PayloadJSON,
	})
	if err != nil {
		c.recordFailure(ctx, passID, order, err, result)
		return
	}

	if writeResult.Duplicate {
		c.cfg.Logf("order %s already present upstream, collapsing", order.ID)
	}
	if err := c.store.MarkOrderSynced(ctx, order.ID); err != nil {
		// The write landed but the flag did not; the next pass will resend
		// and rely on the idempotency key upstream.
		c.cfg.Logf("mark order %s synced: %v", order.ID, err)
		result.Failed++
		if c.cfg.OnError != nil {
			c.cfg.OnError(order.ID, err)
		}
		return
	}

	result.Succeeded++
	if err := c.store.RecordSyncAttempt(ctx, storage.SyncAttempt{
		OrderID:      order.ID,
		Outcome:      storage.AttemptOutcomeSucceeded,
		AttemptCount: order.AttemptCount + 1,
		CreatedAt:    c.clock().UTC(),
	}); err != nil {
		c.cfg.Logf("record sync attempt for %s: %v", order.ID, err)
	}
	if c.cfg.OnProgress != nil {
		c.cfg.OnProgress(result.Succeeded, result.Total)
	}
}

func (c *Coordinator) recordFailure(ctx context.Context, passID string, order storage.QueuedOrder, writeErr error, result *Result) {
	result.Failed++
	attemptCount := order.AttemptCount + 1
	c.cfg.Logf("remote write for order %s failed (attempt %d): %v", order.ID, attemptCount, writeErr)

	if err := c.store.RecordOrderFailure(ctx, order.ID, writeErr.Error()); err != nil {
		c.cfg.Logf("record failure for %s: %v", order.ID, err)
	}

	outcome := storage.AttemptOutcomeRetry
	park := remote.IsPermanent(writeErr)
	if !park && c.cfg.MaxAttempts > 0 && attemptCount >= c.cfg.MaxAttempts {
		park = true
	}
	if park {
		outcome = storage.AttemptOutcomeParked
		reason := fmt.Sprintf("parked after %d attempts: %v", attemptCount, writeErr)
		if err := c.store.ParkOrder(ctx, order.ID, reason); err != nil {
			c.cfg.Logf("park order %s: %v", order.ID, err)
		} else {
			result.Parked++
			c.emit(ctx, storage.TelemetryEvent{
				EventName: "sync.order_parked",
				Severity:  string(telemetry.SeverityWarn),
				OrderID:   order.ID,
				PassID:    passID,
				Attributes: map[string]any{
					"attempt_count": attemptCount,
					"error":         writeErr.Error(),
				},
			})
		}
	}

	if err := c.store.RecordSyncAttempt(ctx, storage.SyncAttempt{
		OrderID:      order.ID,
		Outcome:      outcome,
		AttemptCount: attemptCount,
		LastError:    writeErr.Error(),
		CreatedAt:    c.clock().UTC(),
	}); err != nil {
		c.cfg.Logf("record sync attempt for %s: %v", order.ID, err)
	}
	if c.cfg.OnError != nil {
		c.cfg.OnError(order.ID, platformerrors.Wrap(platformerrors.CodeRemoteWriteFailed, "remote write failed", writeErr))
	}
}

func (c *Coordinator) finishPass(ctx context.Context, span trace.Span, passID string, result Result) {
	span.SetAttributes(
		attribute.Int("sync.succeeded", result.Succeeded),
		attribute.Int("sync.failed", result.Failed),
		attribute.Int("sync.parked", result.Parked),
	)
	severity := telemetry.SeverityInfo
	if result.Failed > 0 {
		severity = telemetry.SeverityWarn
	}
	c.emit(ctx, storage.TelemetryEvent{
		EventName: "sync.pass_completed",
		Severity:  string(severity),
		PassID:    passID,
		Attributes: map[string]any{
			"succeeded": result.Succeeded,
			"failed":    result.Failed,
			"parked":    result.Parked,
			"total":     result.Total,
		},
	})
	c.cfg.Logf("sync pass complete: %d/%d succeeded, %d failed, %d parked",
		result.Succeeded, result.Total, result.Failed, result.Parked)
}

func (c *Coordinator) emit(ctx context.Context, evt storage.TelemetryEvent) {
	if err := c.emitter.Emit(ctx, evt); err != nil {
		c.cfg.Logf("emit telemetry %s: %v", evt.EventName, err)
	}
}
