// Package remote defines the contract with the remote order system-of-record.
// The engine only ever appends orders; every failure leaves the local record
// unsynced so the next pass retries it.
package remote

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies a remote write failure for the parking policy.
type ErrorKind string

const (
	// KindTransient marks failures worth retrying on the next pass.
	KindTransient ErrorKind = "transient"
	// KindPermanent marks failures that will never succeed, such as a
	// validation rejection of the payload itself.
	KindPermanent ErrorKind = "permanent"
)

// WriteError wraps a failed remote order write with its classification.
type WriteError struct {
	Kind ErrorKind
	Err  error
}

// Error implements the error interface.
func (e *WriteError) Error() string {
	if e == nil {
		return "remote write error"
	}
	return fmt.Sprintf("remote write (%s): %v", e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *WriteError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsPermanent reports whether err carries a permanent classification.
// Unclassified errors count as transient: retrying is the safer default.
func IsPermanent(err error) bool {
	var writeErr *WriteError
	if errors.As(err, &writeErr) {
		return writeErr.Kind == KindPermanent
	}
	return false
}

// CreateOrderRequest is one idempotent order submission. IdempotencyKey is
// the local queue ID, letting the remote store collapse duplicate
// submissions of the same logical order.
type CreateOrderRequest struct {
	IdempotencyKey string
	PayloadJSON    string
}

// CreateOrderResult reports the remote identity of a created order.
type CreateOrderResult struct {
	RemoteID  string
	Duplicate bool
}

// OrderWriter is the append-style write surface of the remote store.
type OrderWriter interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (CreateOrderResult, error)
}

// Probe answers cheap reachability checks consulted before a sync pass.
type Probe interface {
	Reachable(ctx context.Context) bool
}

// Store is the full remote collaborator surface the engine consumes.
type Store interface {
	OrderWriter
	Probe
}
