package store

import (
	"context"
)

// TxManager is the explicit unit-of-work boundary for every mutating
// operation in the engine. A caller either runs inside an ambient
// transaction (nested WithTx calls join it) or WithTx opens its own.
//
// The contract expected from a real implementation is at least
// read-committed isolation with re-validation of guard reads before the
// final write, or an optimistic-concurrency conflict error that callers can
// retry on.
type TxManager interface {
	// WithTx wraps the given function in a transaction
	WithTx(ctx context.Context, fn func(context.Context) error) error

	// InTx reports whether the context carries an open transaction
	InTx(ctx context.Context) bool
}
