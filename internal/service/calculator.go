package service

import (
	"github.com/acadfin/treasury/internal/domain/debt"
	"github.com/acadfin/treasury/internal/domain/tariff"
	"github.com/acadfin/treasury/internal/types"
	"github.com/shopspring/decimal"
)

// UsageFacts are the billing facts of one issuance: how many units and
// pages were consumed and which rate surcharges apply.
type UsageFacts struct {
	UnitCount       int  `json:"unit_count"`
	PageCount       int  `json:"page_count"`
	LanguageApplies bool `json:"language_applies"`
	Urgent          bool `json:"urgent"`
}

// AmountCalculator computes the payable amount of a matched tariff through
// the fixed pricing pipeline:
//
//	base -> additional units -> pages -> maximum cap -> language -> urgency
//
// The maximum cap applies before the rate surcharges, and urgency is
// computed on the language-adjusted amount. Rate steps keep the
// high-precision intermediate scale; only the stored subtotals and the
// final amount are rounded to currency scale.
type AmountCalculator interface {
	AmountToPay(t *tariff.TariffRecord, facts UsageFacts) *debt.AmountBreakdown
}

type amountCalculator struct{}

func NewAmountCalculator() AmountCalculator {
	return &amountCalculator{}
}

func (c *amountCalculator) AmountToPay(t *tariff.TariffRecord, facts UsageFacts) *debt.AmountBreakdown {
	breakdown := &debt.AmountBreakdown{
		BaseAmount:            t.BaseAmount,
		AdditionalUnitsAmount: decimal.Zero,
		PagesAmount:           decimal.Zero,
		LanguageRateAmount:    decimal.Zero,
		UrgencyRateAmount:     decimal.Zero,
	}

	amount := t.BaseAmount

	if types.IsPositive(t.UnitAmount) && facts.UnitCount > t.UnitsForBase {
		extraUnits := int64(facts.UnitCount - t.UnitsForBase)
		breakdown.AdditionalUnitsAmount = t.UnitAmount.Mul(decimal.NewFromInt(extraUnits))
		amount = amount.Add(breakdown.AdditionalUnitsAmount)
	}

	if types.IsPositive(t.PageAmount) && facts.PageCount > 0 {
		breakdown.PagesAmount = t.PageAmount.Mul(decimal.NewFromInt(int64(facts.PageCount)))
		amount = amount.Add(breakdown.PagesAmount)
	}

	// The cap can only reduce, never increase, and applies before the
	// rate surcharges.
	if t.MaximumAmount != nil && amount.GreaterThan(*t.MaximumAmount) {
		amount = *t.MaximumAmount
		breakdown.MaximumAmountApplied = true
	}

	if facts.LanguageApplies && types.IsPositive(t.LanguageRatePercent) {
		breakdown.LanguageRateAmount = types.ApplyPercent(amount, t.LanguageRatePercent)
		amount = amount.Add(breakdown.LanguageRateAmount)
	}

	if facts.Urgent && types.IsPositive(t.UrgencyRatePercent) {
		breakdown.UrgencyRateAmount = types.ApplyPercent(amount, t.UrgencyRatePercent)
		amount = amount.Add(breakdown.UrgencyRateAmount)
	}

	breakdown.BaseAmount = types.RoundCurrency(breakdown.BaseAmount)
	breakdown.AdditionalUnitsAmount = types.RoundCurrency(breakdown.AdditionalUnitsAmount)
	breakdown.PagesAmount = types.RoundCurrency(breakdown.PagesAmount)
	breakdown.LanguageRateAmount = types.RoundCurrency(breakdown.LanguageRateAmount)
	breakdown.UrgencyRateAmount = types.RoundCurrency(breakdown.UrgencyRateAmount)
	breakdown.FinalAmount = types.RoundCurrency(amount)

	return breakdown
}
