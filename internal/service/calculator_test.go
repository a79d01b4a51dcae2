package service

import (
	"testing"

	"github.com/acadfin/treasury/internal/domain/tariff"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type CalculatorTestSuite struct {
	suite.Suite
	calculator AmountCalculator
}

func TestCalculatorSuite(t *testing.T) {
	suite.Run(t, new(CalculatorTestSuite))
}

func (s *CalculatorTestSuite) SetupTest() {
	s.calculator = NewAmountCalculator()
}

func (s *CalculatorTestSuite) newTariff() *tariff.TariffRecord {
	maximum := decimal.NewFromInt(150)
	return &tariff.TariffRecord{
		BaseAmount:          decimal.NewFromInt(100),
		UnitsForBase:        2,
		UnitAmount:          decimal.NewFromInt(10),
		PageAmount:          decimal.Zero,
		MaximumAmount:       &maximum,
		LanguageRatePercent: decimal.NewFromInt(10),
		UrgencyRatePercent:  decimal.NewFromInt(5),
	}
}

func (s *CalculatorTestSuite) TestPipelineOrder() {
	// base 100, 3 extra units at 10 -> 130, below the 150 cap,
	// language 10% -> 143, urgency 5% on the language-adjusted
	// amount -> 150.15
	breakdown := s.calculator.AmountToPay(s.newTariff(), UsageFacts{
		UnitCount:       5,
		LanguageApplies: true,
		Urgent:          true,
	})

	s.True(decimal.NewFromInt(100).Equal(breakdown.BaseAmount))
	s.True(decimal.NewFromInt(30).Equal(breakdown.AdditionalUnitsAmount))
	s.False(breakdown.MaximumAmountApplied)
	s.True(decimal.NewFromInt(13).Equal(breakdown.LanguageRateAmount))
	s.True(decimal.RequireFromString("7.15").Equal(breakdown.UrgencyRateAmount))
	s.Equal("150.15", breakdown.FinalAmount.StringFixed(2))
}

func (s *CalculatorTestSuite) TestUrgencyAppliesToLanguageAdjustedAmount() {
	// With equal 10% rates the urgency surcharge must be computed on the
	// language-adjusted amount: 100 -> 110 -> +11, not +10.
	t := s.newTariff()
	t.MaximumAmount = nil
	t.LanguageRatePercent = decimal.NewFromInt(10)
	t.UrgencyRatePercent = decimal.NewFromInt(10)

	breakdown := s.calculator.AmountToPay(t, UsageFacts{
		UnitCount:       1,
		LanguageApplies: true,
		Urgent:          true,
	})

	s.True(decimal.NewFromInt(10).Equal(breakdown.LanguageRateAmount))
	s.True(decimal.NewFromInt(11).Equal(breakdown.UrgencyRateAmount))
	s.Equal("121.00", breakdown.FinalAmount.StringFixed(2))
}

func (s *CalculatorTestSuite) TestMaximumCapAppliesBeforeRates() {
	t := s.newTariff()

	// base 100 + 8 extra units at 10 -> 180, capped to 150, then the
	// rates are applied to the capped amount.
	breakdown := s.calculator.AmountToPay(t, UsageFacts{
		UnitCount:       10,
		LanguageApplies: true,
		Urgent:          false,
	})

	s.True(breakdown.MaximumAmountApplied)
	s.True(decimal.NewFromInt(15).Equal(breakdown.LanguageRateAmount))
	s.Equal("165.00", breakdown.FinalAmount.StringFixed(2))
}

func (s *CalculatorTestSuite) TestPagesContribute() {
	t := s.newTariff()
	t.PageAmount = decimal.RequireFromString("0.50")
	t.MaximumAmount = nil

	breakdown := s.calculator.AmountToPay(t, UsageFacts{
		UnitCount: 2,
		PageCount: 7,
	})

	s.True(decimal.RequireFromString("3.50").Equal(breakdown.PagesAmount))
	s.Equal("103.50", breakdown.FinalAmount.StringFixed(2))
}

func (s *CalculatorTestSuite) TestUnitCountBelowBaseAddsNothing() {
	breakdown := s.calculator.AmountToPay(s.newTariff(), UsageFacts{
		UnitCount: 2,
	})

	s.True(breakdown.AdditionalUnitsAmount.IsZero())
	s.Equal("100.00", breakdown.FinalAmount.StringFixed(2))
}

func (s *CalculatorTestSuite) TestInactiveRatesAreSkipped() {
	breakdown := s.calculator.AmountToPay(s.newTariff(), UsageFacts{
		UnitCount:       2,
		LanguageApplies: false,
		Urgent:          false,
	})

	s.True(breakdown.LanguageRateAmount.IsZero())
	s.True(breakdown.UrgencyRateAmount.IsZero())
	s.Equal("100.00", breakdown.FinalAmount.StringFixed(2))
}
