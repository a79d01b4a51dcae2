package tariff

import (
	"time"

	ierr "github.com/acadfin/treasury/internal/errors"
	"github.com/acadfin/treasury/internal/types"
	"github.com/shopspring/decimal"
)

// InterestPolicy is the optional late-payment interest configuration nested
// in a tariff and propagated to the debit lines it prices.
type InterestPolicy struct {
	Type            types.InterestRateType `json:"type"`
	RatePercent     decimal.Decimal        `json:"rate_percent"`
	FixedAmount     decimal.Decimal        `json:"fixed_amount"`
	GracePeriodDays int                    `json:"grace_period_days"`
}

func (p *InterestPolicy) Validate() error {
	if !p.Type.Validate() {
		return ierr.NewError("invalid interest rate type").
			WithHintf("unknown interest rate type %s", p.Type).
			Mark(ierr.ErrValidation)
	}
	if types.IsNegative(p.RatePercent) || types.IsNegative(p.FixedAmount) {
		return ierr.NewError("interest rate values must not be negative").
			Mark(ierr.ErrValidation)
	}
	if p.GracePeriodDays < 0 {
		return ierr.NewError("grace period days must not be negative").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// TariffRecord is a time-bounded priced rule for one product of one
// financial entity at a given specificity scope.
type TariffRecord struct {
	ID        string `json:"id"`
	EntityID  string `json:"entity_id"`
	ProductID string `json:"product_id"`

	BeginDate time.Time  `json:"begin_date"`
	EndDate   *time.Time `json:"end_date,omitempty"`

	// Scope. Cycle requires degree; degree fixes the degree type.
	ScopeDegreeTypeCode *string `json:"scope_degree_type_code,omitempty"`
	ScopeDegreeCode     *string `json:"scope_degree_code,omitempty"`
	ScopeCycleCode      *string `json:"scope_cycle_code,omitempty"`

	BaseAmount          decimal.Decimal  `json:"base_amount"`
	UnitsForBase        int              `json:"units_for_base"`
	UnitAmount          decimal.Decimal  `json:"unit_amount"`
	PageAmount          decimal.Decimal  `json:"page_amount"`
	MaximumAmount       *decimal.Decimal `json:"maximum_amount,omitempty"`
	UrgencyRatePercent  decimal.Decimal  `json:"urgency_rate_percent"`
	LanguageRatePercent decimal.Decimal  `json:"language_rate_percent"`

	DueDateType               types.DueDateCalculationType `json:"due_date_type"`
	FixedDueDate              *time.Time                   `json:"fixed_due_date,omitempty"`
	NumberOfDaysAfterCreation int                          `json:"number_of_days_after_creation"`

	InterestPolicy *InterestPolicy `json:"interest_policy,omitempty"`

	types.BaseModel
}

// Clone returns a copy detached from the receiver: mutating the clone
// never writes through to the original's pointer fields.
func (t *TariffRecord) Clone() *TariffRecord {
	clone := *t
	clone.EndDate = clonePtr(t.EndDate)
	clone.FixedDueDate = clonePtr(t.FixedDueDate)
	clone.MaximumAmount = clonePtr(t.MaximumAmount)
	clone.ScopeDegreeTypeCode = clonePtr(t.ScopeDegreeTypeCode)
	clone.ScopeDegreeCode = clonePtr(t.ScopeDegreeCode)
	clone.ScopeCycleCode = clonePtr(t.ScopeCycleCode)
	clone.InterestPolicy = clonePtr(t.InterestPolicy)
	return &clone
}

// ScopeLevel returns the specificity level of the record's scope tuple.
func (t *TariffRecord) ScopeLevel() types.TariffScopeLevel {
	switch {
	case t.ScopeCycleCode != nil:
		return types.ScopeLevelCycle
	case t.ScopeDegreeCode != nil:
		return types.ScopeLevelDegree
	case t.ScopeDegreeTypeCode != nil:
		return types.ScopeLevelDegreeType
	default:
		return types.ScopeLevelBroad
	}
}

// effectiveEnd returns the exclusive end instant of the interval. A present
// end date is treated as inclusive end-of-day.
func (t *TariffRecord) effectiveEnd() *time.Time {
	if t.EndDate == nil {
		return nil
	}
	end := time.Date(t.EndDate.Year(), t.EndDate.Month(), t.EndDate.Day(), 0, 0, 0, 0, t.EndDate.Location()).AddDate(0, 0, 1)
	return &end
}

// IsActiveAt reports whether the record is in force at the given instant.
func (t *TariffRecord) IsActiveAt(when time.Time) bool {
	if t.Status != types.StatusActive {
		return false
	}
	if when.Before(t.BeginDate) {
		return false
	}
	if end := t.effectiveEnd(); end != nil && !when.Before(*end) {
		return false
	}
	return true
}

// OverlapsWith reports whether the two records' date intervals intersect.
func (t *TariffRecord) OverlapsWith(other *TariffRecord) bool {
	tEnd := t.effectiveEnd()
	oEnd := other.effectiveEnd()

	if tEnd != nil && !other.BeginDate.Before(*tEnd) {
		return false
	}
	if oEnd != nil && !t.BeginDate.Before(*oEnd) {
		return false
	}
	return true
}

// ScopeEquals reports whether both records target the exact same scope tuple.
func (t *TariffRecord) ScopeEquals(other *TariffRecord) bool {
	return equalPtr(t.ScopeDegreeTypeCode, other.ScopeDegreeTypeCode) &&
		equalPtr(t.ScopeDegreeCode, other.ScopeDegreeCode) &&
		equalPtr(t.ScopeCycleCode, other.ScopeCycleCode)
}

// ScopeCovers reports whether this record's scope is the same as or broader
// than the other's, i.e. whether any registration priced by other would
// also fall under this record's scope.
func (t *TariffRecord) ScopeCovers(other *TariffRecord) bool {
	switch t.ScopeLevel() {
	case types.ScopeLevelBroad:
		return true
	case types.ScopeLevelDegreeType:
		return other.ScopeDegreeTypeCode != nil &&
			equalPtr(t.ScopeDegreeTypeCode, other.ScopeDegreeTypeCode)
	case types.ScopeLevelDegree:
		return other.ScopeDegreeCode != nil &&
			equalPtr(t.ScopeDegreeCode, other.ScopeDegreeCode)
	default:
		return t.ScopeEquals(other)
	}
}

// MatchesScope reports whether the record applies to the given registration
// coordinates at the given specificity level.
func (t *TariffRecord) MatchesScope(level types.TariffScopeLevel, degreeTypeCode, degreeCode, cycleCode string) bool {
	if t.ScopeLevel() != level {
		return false
	}
	switch level {
	case types.ScopeLevelCycle:
		return *t.ScopeDegreeCode == degreeCode && *t.ScopeCycleCode == cycleCode
	case types.ScopeLevelDegree:
		return *t.ScopeDegreeCode == degreeCode
	case types.ScopeLevelDegreeType:
		return *t.ScopeDegreeTypeCode == degreeTypeCode
	default:
		return true
	}
}

// Validate enforces the record invariants. It is called on every mutating
// entry point, not just initial construction.
func (t *TariffRecord) Validate() error {
	if t.EntityID == "" || t.ProductID == "" {
		return ierr.NewError("entity and product are required").
			Mark(ierr.ErrValidation)
	}
	if t.BeginDate.IsZero() {
		return ierr.NewError("begin date is required").
			Mark(ierr.ErrValidation)
	}
	if t.EndDate != nil && t.EndDate.Before(t.BeginDate) {
		return ierr.NewError("end date must not precede begin date").
			WithReportableDetails(map[string]any{
				"begin_date": t.BeginDate,
				"end_date":   *t.EndDate,
			}).
			Mark(ierr.ErrValidation)
	}

	if t.ScopeCycleCode != nil && t.ScopeDegreeCode == nil {
		return ierr.NewError("cycle scope requires a degree scope").
			Mark(ierr.ErrValidation)
	}
	if t.ScopeDegreeCode != nil && t.ScopeDegreeTypeCode == nil {
		return ierr.NewError("degree scope requires its degree type").
			Mark(ierr.ErrValidation)
	}

	if types.IsNegative(t.BaseAmount) || types.IsNegative(t.UnitAmount) || types.IsNegative(t.PageAmount) {
		return ierr.NewError("tariff amounts must not be negative").
			Mark(ierr.ErrValidation)
	}
	if t.UnitsForBase < 0 {
		return ierr.NewError("units for base must not be negative").
			Mark(ierr.ErrValidation)
	}
	if t.MaximumAmount != nil && types.IsNegative(*t.MaximumAmount) {
		return ierr.NewError("maximum amount must not be negative").
			Mark(ierr.ErrValidation)
	}
	if !validRatePercent(t.UrgencyRatePercent) || !validRatePercent(t.LanguageRatePercent) {
		return ierr.NewError("rate percentages must be between 0 and 100").
			Mark(ierr.ErrValidation)
	}

	switch t.DueDateType {
	case types.DueDateFixed:
		if t.FixedDueDate == nil {
			return ierr.NewError("fixed due date rule requires a fixed due date").
				Mark(ierr.ErrValidation)
		}
	case types.DueDateDaysAfterCreation:
		if t.NumberOfDaysAfterCreation < 0 {
			return ierr.NewError("days after creation must not be negative").
				Mark(ierr.ErrValidation)
		}
	default:
		return ierr.NewError("invalid due date calculation type").
			WithHintf("unknown due date type %s", t.DueDateType).
			Mark(ierr.ErrValidation)
	}

	if t.InterestPolicy != nil {
		if err := t.InterestPolicy.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// DueDateFor derives the due date for a line issued at the given instant.
func (t *TariffRecord) DueDateFor(when time.Time) time.Time {
	if t.DueDateType == types.DueDateFixed {
		return *t.FixedDueDate
	}
	return when.AddDate(0, 0, t.NumberOfDaysAfterCreation)
}

func validRatePercent(p decimal.Decimal) bool {
	return !types.IsNegative(p) && p.LessThanOrEqual(decimal.NewFromInt(100))
}

func equalPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
