package kvproxy

import "context"

// Store is the contract this proxy demands of the external consistent
// store: reads, unconditional writes, and compare-and-swap, all
// linearizable. The proxy assumes, not implements, that guarantee.
//
// Implementations return *wire.RPCError with code KeyDoesNotExist or
// PreconditionFailed for the business failures; anything else is treated as
// an opaque store failure. Calls must respect ctx and fail fast on
// cancellation rather than leak the pending call.
type Store interface {
	// Name identifies the backend in stats output.
	Name() string

	// Read returns the value for key, or KeyDoesNotExist.
	Read(ctx context.Context, key string) (interface{}, error)

	// Write upserts the value for key unconditionally.
	Write(ctx context.Context, key string, value interface{}) error

	// CompareAndSwap updates key to to only if its current value equals
	// from. With createIfNotExists, an absent key is treated as a fresh
	// write of to; otherwise an absent key is KeyDoesNotExist and a
	// mismatched value is PreconditionFailed.
	CompareAndSwap(ctx context.Context, key string, from, to interface{}, createIfNotExists bool) error
}
