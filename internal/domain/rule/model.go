package rule

import (
	ierr "github.com/acadfin/treasury/internal/errors"
	"github.com/acadfin/treasury/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// GenerationRule is a reusable, ordered, typed batch-billing directive.
type GenerationRule struct {
	ID                string         `json:"id"`
	Kind              types.RuleKind `json:"kind"`
	EntityID          string         `json:"entity_id"`
	ExecutionPeriodID string         `json:"execution_period_id"`

	// OrderNumber defines execution and tie-break order within the same
	// kind and period.
	OrderNumber int `json:"order_number"`

	Active              bool `json:"active"`
	BackgroundExecution bool `json:"background_execution"`

	AggregateOnDebitNote  bool `json:"aggregate_on_debit_note"`
	AggregateAllOrNothing bool `json:"aggregate_all_or_nothing"`
	CloseDebitNote        bool `json:"close_debit_note"`

	GeneratePaymentReference    bool             `json:"generate_payment_reference"`
	MinimumAmountForPaymentCode *decimal.Decimal `json:"minimum_amount_for_payment_code,omitempty"`

	Entries      []*RuleEntry       `json:"entries"`
	Restrictions []*RuleRestriction `json:"restrictions"`

	// CopiedFromID links a rule cloned into a new period back to its
	// origin for auditability.
	CopiedFromID string `json:"copied_from_id,omitempty"`

	types.BaseModel
}

// Validate enforces the flag implications. Re-run on every mutation.
func (r *GenerationRule) Validate() error {
	if r.EntityID == "" || r.ExecutionPeriodID == "" {
		return ierr.NewError("entity and execution period are required").
			Mark(ierr.ErrValidation)
	}
	if r.CloseDebitNote && !r.AggregateOnDebitNote {
		return ierr.NewError("close debit note requires aggregation on a debit note").
			Mark(ierr.ErrValidation)
	}
	if r.AggregateAllOrNothing && !r.AggregateOnDebitNote {
		return ierr.NewError("all-or-nothing aggregation requires aggregation on a debit note").
			Mark(ierr.ErrValidation)
	}
	if r.MinimumAmountForPaymentCode != nil && types.IsNegative(*r.MinimumAmountForPaymentCode) {
		return ierr.NewError("minimum amount for payment code must not be negative").
			Mark(ierr.ErrValidation)
	}
	for _, restriction := range r.Restrictions {
		if err := restriction.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// RuleEntry binds one product to the rule together with per-entry usage
// facts and flags.
type RuleEntry struct {
	ID        string `json:"id"`
	RuleID    string `json:"rule_id"`
	ProductID string `json:"product_id"`

	// ForceCreation issues the debt even for subjects an entry-level
	// eligibility check would skip.
	ForceCreation bool `json:"force_creation"`

	NumberOfUnits int `json:"number_of_units"`
	NumberOfPages int `json:"number_of_pages"`

	types.BaseModel
}

// Copy returns a deep copy of the entry attached to the target rule.
func (e *RuleEntry) Copy(targetRuleID string) *RuleEntry {
	clone := *e
	clone.ID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_RULE_ENTRY)
	clone.RuleID = targetRuleID
	return &clone
}

// RuleRestriction is a named, invertible boolean eligibility predicate.
// Test semantics are condition(subject) XOR ExcludeIfMatches, so the same
// kind can either require or exclude a match.
type RuleRestriction struct {
	ID     string                `json:"id"`
	RuleID string                `json:"rule_id"`
	Kind   types.RestrictionKind `json:"kind"`

	// ExcludeIfMatches inverts the restriction's contribution.
	ExcludeIfMatches bool `json:"exclude_if_matches"`

	Parameters map[string]string `json:"parameters,omitempty"`

	types.BaseModel
}

func (r *RuleRestriction) Validate() error {
	if !r.Kind.Validate() {
		return ierr.NewError("unresolvable restriction kind").
			WithHintf("restriction kind %s is not registered", r.Kind).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// Copy returns a deep copy of the restriction attached to the target rule.
// Restrictions are never shared between rules.
func (r *RuleRestriction) Copy(targetRuleID string) *RuleRestriction {
	clone := *r
	clone.ID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_RULE_RESTRICTION)
	clone.RuleID = targetRuleID
	clone.Parameters = lo.Assign(map[string]string{}, r.Parameters)
	return &clone
}
