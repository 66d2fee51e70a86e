// Package errors provides structured error handling for the sync engine.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Storage errors
	CodeStorageUnavailable Code = "STORAGE_UNAVAILABLE"
	CodePersistenceFailed  Code = "PERSISTENCE_FAILED"
	CodeNotFound           Code = "NOT_FOUND"

	// Order queue errors
	CodeOrderIDEmpty      Code = "ORDER_ID_EMPTY"
	CodeOrderPayloadEmpty Code = "ORDER_PAYLOAD_EMPTY"

	// Sync errors
	CodeRemoteWriteFailed Code = "REMOTE_WRITE_FAILED"
	CodeSyncLeaseHeld     Code = "SYNC_LEASE_HELD"

	// Product cache errors
	CodeProductIDEmpty       Code = "PRODUCT_ID_EMPTY"
	CodeCacheCapacityInvalid Code = "CACHE_CAPACITY_INVALID"

	// Cart errors
	CodeCartItemInvalid Code = "CART_ITEM_INVALID"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeOrderIDEmpty,
		CodeOrderPayloadEmpty,
		CodeProductIDEmpty,
		CodeCacheCapacityInvalid,
		CodeCartItemInvalid:
		return codes.InvalidArgument

	// NotFound - missing records
	case CodeNotFound:
		return codes.NotFound

	// FailedPrecondition - storage not usable in this session
	case CodeStorageUnavailable:
		return codes.FailedPrecondition

	// Aborted - another process owns the sync lease
	case CodeSyncLeaseHeld:
		return codes.Aborted

	// Unavailable - durable medium or remote collaborator rejected the write
	case CodePersistenceFailed,
		CodeRemoteWriteFailed:
		return codes.Unavailable

	default:
		return codes.Internal
	}
}
