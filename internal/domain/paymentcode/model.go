package paymentcode

import (
	"context"
	"time"

	"github.com/acadfin/treasury/internal/types"
	"github.com/shopspring/decimal"
)

// ReferenceCode is a payment reference covering a set of debit lines for a
// bounded validity window.
type ReferenceCode struct {
	ID           string          `json:"id"`
	Code         string          `json:"code"`
	AccountID    string          `json:"account_id"`
	DebitLineIDs []string        `json:"debit_line_ids"`
	Amount       decimal.Decimal `json:"amount"`
	ValidFrom    time.Time       `json:"valid_from"`
	ValidTo      time.Time       `json:"valid_to"`

	types.BaseModel
}

// Issuer is the boundary to the payment-reference-code service of the
// treasury module.
type Issuer interface {
	Issue(ctx context.Context, accountID string, lineIDs []string, amount decimal.Decimal, validFrom, validTo time.Time) (*ReferenceCode, error)
}
