package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/acadfin/treasury/internal/domain/numbering"
	"github.com/acadfin/treasury/internal/types"
)

// SequentialNumbering implements numbering.Service with a per-series
// counter. Numbers are unique and monotonically increasing per series.
type SequentialNumbering struct {
	mu       sync.Mutex
	counters map[types.DocumentSeries]int
}

func NewSequentialNumbering() *SequentialNumbering {
	return &SequentialNumbering{
		counters: make(map[types.DocumentSeries]int),
	}
}

func (n *SequentialNumbering) OpenDocument(ctx context.Context, accountID string, series types.DocumentSeries, at time.Time) (*numbering.DocumentRef, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.counters[series]++
	seq := n.counters[series]

	return &numbering.DocumentRef{
		ID:        types.GenerateUUID(),
		Number:    fmt.Sprintf("%s%d/%06d", types.SHORT_ID_PREFIX_DEBIT_NOTE, at.Year(), seq),
		Series:    series,
		AccountID: accountID,
		OpenedAt:  at,
	}, nil
}

func (n *SequentialNumbering) Clear() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.counters = make(map[types.DocumentSeries]int)
}
