package types

// DueDateCalculationType determines how a tariff derives the due date of the
// debit lines it prices.
type DueDateCalculationType string

const (
	// DueDateFixed uses the fixed date configured on the tariff.
	DueDateFixed DueDateCalculationType = "fixed_date"
	// DueDateDaysAfterCreation adds the configured number of days to the
	// issuance timestamp.
	DueDateDaysAfterCreation DueDateCalculationType = "days_after_creation"
)

func (t DueDateCalculationType) Validate() bool {
	switch t {
	case DueDateFixed, DueDateDaysAfterCreation:
		return true
	}
	return false
}

// InterestRateType determines how late-payment interest accrues on a line.
type InterestRateType string

const (
	InterestFixedAmount InterestRateType = "fixed_amount"
	InterestMonthly     InterestRateType = "monthly"
	InterestDaily       InterestRateType = "daily"
)

func (t InterestRateType) Validate() bool {
	switch t {
	case InterestFixedAmount, InterestMonthly, InterestDaily:
		return true
	}
	return false
}

// TariffScopeLevel identifies one level of the specificity hierarchy used
// when matching a tariff to a registration. Lower Order is more specific.
type TariffScopeLevel string

const (
	ScopeLevelCycle      TariffScopeLevel = "cycle"
	ScopeLevelDegree     TariffScopeLevel = "degree"
	ScopeLevelDegreeType TariffScopeLevel = "degree_type"
	ScopeLevelBroad      TariffScopeLevel = "broad"
)

// ScopeLevelsMostSpecificFirst is the fallback order of FindMatch. Keeping it
// as one table makes the fallback reviewable as a single unit.
var ScopeLevelsMostSpecificFirst = []TariffScopeLevel{
	ScopeLevelCycle,
	ScopeLevelDegree,
	ScopeLevelDegreeType,
	ScopeLevelBroad,
}
