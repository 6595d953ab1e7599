// Package kv defines the persistent key-value contract the state stores
// write through. Values are opaque strings (JSON-encoded sequences); the
// backend decides durability. Implementations live in the subpackages:
// memory (mutex map), redis (go-redis), postgres (single kv table).
package kv

import "context"

// Store is a synchronous string key-value store. Get reports presence with
// the second return value rather than a sentinel error; absent keys are a
// normal condition for this system, not a failure.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string) error
	Delete(ctx context.Context, key string) error
}
