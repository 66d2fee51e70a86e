// Package storage defines the local durable store contract for the engine:
// the pending-order queue, the bounded product cache, the cart snapshot, the
// cross-process sync lease, and the sync attempt audit trail. Implementations
// must make every write durable before returning; order-placement code treats
// a successful enqueue as "this order will eventually reach the server".
package storage
