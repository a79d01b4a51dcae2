package vat

import (
	"context"
	"time"

	"github.com/acadfin/treasury/internal/types"
	"github.com/shopspring/decimal"
)

// Vat is one time-bounded VAT rate for a category within a financial entity.
type Vat struct {
	ID        string          `json:"id"`
	Category  string          `json:"category"`
	EntityID  string          `json:"entity_id"`
	Percent   decimal.Decimal `json:"percent"`
	BeginDate time.Time       `json:"begin_date"`
	EndDate   *time.Time      `json:"end_date,omitempty"`

	types.BaseModel
}

// IsActiveAt reports whether the rate is in force at the given instant.
func (v *Vat) IsActiveAt(when time.Time) bool {
	if when.Before(v.BeginDate) {
		return false
	}
	if v.EndDate != nil && when.After(*v.EndDate) {
		return false
	}
	return true
}

// Resolver is the boundary to the treasury module's VAT catalog. It must
// resolve exactly one active rate or fail.
type Resolver interface {
	FindActiveVat(ctx context.Context, category string, entityID string, at time.Time) (*Vat, error)
}
