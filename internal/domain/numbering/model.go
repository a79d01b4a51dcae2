package numbering

import (
	"context"
	"time"

	"github.com/acadfin/treasury/internal/types"
)

// DocumentRef is a handle to a numbered financial document opened through
// the treasury module's numbering service.
type DocumentRef struct {
	ID        string               `json:"id"`
	Number    string               `json:"number"`
	Series    types.DocumentSeries `json:"series"`
	AccountID string               `json:"account_id"`
	OpenedAt  time.Time            `json:"opened_at"`
}

// Service is the boundary to the document numbering service. It must
// guarantee a unique sequential number per series.
type Service interface {
	OpenDocument(ctx context.Context, accountID string, series types.DocumentSeries, at time.Time) (*DocumentRef, error)
}
