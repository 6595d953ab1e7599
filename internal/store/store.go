// Package store holds the two state containers of the POS backend: the
// sales store (completed transactions, append-only) and the order store
// (customer orders, with the completed-order-to-sale derivation workflow).
//
// Both stores follow the same lifecycle: construct (loads the persisted
// sequence from the key-value backend), mutate (every mutation re-serializes
// the whole sequence and writes it back), subscribe (listeners get a snapshot
// after each commit). In-memory state is authoritative for the running
// session; a failed persist is reported but never rolled back.
package store

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")

	// ErrPersist wraps key-value write failures. A mutation returning an
	// error that matches ErrPersist has still committed in memory; the
	// persisted copy has diverged.
	ErrPersist = errors.New("persist failed")
)
