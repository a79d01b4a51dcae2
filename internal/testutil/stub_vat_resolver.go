package testutil

import (
	"context"
	"time"

	"github.com/acadfin/treasury/internal/domain/vat"
	"github.com/acadfin/treasury/internal/types"
	"github.com/shopspring/decimal"
)

// StubVatResolver implements vat.Resolver with a single rate applied to
// every category.
type StubVatResolver struct {
	Percent decimal.Decimal
}

func NewStubVatResolver(percent decimal.Decimal) *StubVatResolver {
	return &StubVatResolver{Percent: percent}
}

func (r *StubVatResolver) FindActiveVat(ctx context.Context, category string, entityID string, at time.Time) (*vat.Vat, error) {
	return &vat.Vat{
		ID:        types.GenerateUUID(),
		Category:  category,
		EntityID:  entityID,
		Percent:   r.Percent,
		BeginDate: at.AddDate(-1, 0, 0),
		BaseModel: types.GetDefaultBaseModel(ctx),
	}, nil
}
