package store

import (
	"context"
	"sync"

	"github.com/acadfin/treasury/internal/types"
)

// InMemoryTxManager serializes units of work behind a single mutex. The
// in-memory stores cannot undo writes, so atomicity degrades to mutual
// exclusion; a real host driver replaces this with database transactions.
type InMemoryTxManager struct {
	mu sync.Mutex
}

func NewInMemoryTxManager() *InMemoryTxManager {
	return &InMemoryTxManager{}
}

func (m *InMemoryTxManager) WithTx(ctx context.Context, fn func(context.Context) error) error {
	if m.InTx(ctx) {
		// Join the ambient transaction
		return fn(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	txCtx := context.WithValue(ctx, types.CtxTxHandle, m)
	return fn(txCtx)
}

func (m *InMemoryTxManager) InTx(ctx context.Context) bool {
	handle, ok := ctx.Value(types.CtxTxHandle).(*InMemoryTxManager)
	return ok && handle == m
}
