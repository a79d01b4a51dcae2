package debt

import (
	"time"

	"github.com/acadfin/treasury/internal/domain/tariff"
	ierr "github.com/acadfin/treasury/internal/errors"
	"github.com/acadfin/treasury/internal/types"
	"github.com/shopspring/decimal"
)

// AmountBreakdown stores the per-step subtotals of the pricing pipeline on
// the event for audit and display. It is recomputed on every recalculation.
type AmountBreakdown struct {
	BaseAmount            decimal.Decimal `json:"base_amount"`
	AdditionalUnitsAmount decimal.Decimal `json:"additional_units_amount"`
	PagesAmount           decimal.Decimal `json:"pages_amount"`
	MaximumAmountApplied  bool            `json:"maximum_amount_applied"`
	LanguageRateAmount    decimal.Decimal `json:"language_rate_amount"`
	UrgencyRateAmount     decimal.Decimal `json:"urgency_rate_amount"`
	FinalAmount           decimal.Decimal `json:"final_amount"`
}

// BillableEvent is one logical charge target. Exactly one active event
// exists per (subject, product); lookups always search-or-create.
type BillableEvent struct {
	ID          string `json:"id"`
	EntityID    string `json:"entity_id"`
	ProductID   string `json:"product_id"`
	SubjectID   string `json:"subject_id"`
	AccountID   string `json:"account_id"`
	Description string `json:"description"`

	Breakdown *AmountBreakdown `json:"breakdown,omitempty"`

	// AnnulledAt is set on soft annulment of the whole event.
	AnnulledAt  *time.Time `json:"annulled_at,omitempty"`
	AnnulReason string     `json:"annul_reason,omitempty"`

	types.BaseModel
}

func (e *BillableEvent) IsAnnulled() bool {
	return e.AnnulledAt != nil
}

// DebitNote is the parent document debit lines are created under.
type DebitNote struct {
	ID        string     `json:"id"`
	Number    string     `json:"number"`
	AccountID string     `json:"account_id"`
	Currency  string     `json:"currency"`
	IssuedAt  time.Time  `json:"issued_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`

	types.BaseModel
}

func (n *DebitNote) IsClosed() bool {
	return n.ClosedAt != nil
}

// DebitLine is one charged amount with a due date, belonging to a
// BillableEvent and a parent debit note. Immutable once settled.
type DebitLine struct {
	ID          string `json:"id"`
	EventID     string `json:"event_id"`
	NoteID      string `json:"note_id"`
	Description string `json:"description"`

	Amount         decimal.Decimal `json:"amount"`
	VatPercent     decimal.Decimal `json:"vat_percent"`
	ExemptedAmount decimal.Decimal `json:"exempted_amount"`

	DueDate  time.Time             `json:"due_date"`
	IssuedAt time.Time             `json:"issued_at"`
	Status   types.DebitLineStatus `json:"line_status"`

	InterestPolicy     *tariff.InterestPolicy `json:"interest_policy,omitempty"`
	PaymentReferenceID string                 `json:"payment_reference_id,omitempty"`
	IdempotencyKey     string                 `json:"idempotency_key,omitempty"`

	// TariffID links tariff-priced lines back to the tariff that priced
	// them; it blocks deletion of a referenced tariff. Empty on the
	// custom-debt path.
	TariffID string `json:"tariff_id,omitempty"`

	types.BaseModel
}

// OpenAmount is the amount still owed on the line after exemptions.
func (l *DebitLine) OpenAmount() decimal.Decimal {
	return l.Amount.Sub(l.ExemptedAmount)
}

// Exempt writes down part of the line amount. Settled or annulled lines
// cannot be exempted.
func (l *DebitLine) Exempt(amount decimal.Decimal) error {
	if l.Status != types.DebitLineActive {
		return ierr.NewError("only active lines can be exempted").
			WithReportableDetails(map[string]any{"line_id": l.ID, "line_status": l.Status}).
			Mark(ierr.ErrInvalidOperation)
	}
	if !types.IsPositive(amount) {
		return ierr.NewError("exemption amount must be positive").
			Mark(ierr.ErrValidation)
	}
	if amount.GreaterThan(l.OpenAmount()) {
		return ierr.NewError("exemption exceeds the open amount of the line").
			WithReportableDetails(map[string]any{
				"line_id":     l.ID,
				"open_amount": l.OpenAmount(),
				"exemption":   amount,
			}).
			Mark(ierr.ErrValidation)
	}
	l.ExemptedAmount = l.ExemptedAmount.Add(amount)
	return nil
}

// Annul soft-cancels the line. Settled lines are immutable.
func (l *DebitLine) Annul() error {
	if l.Status == types.DebitLineSettled {
		return ierr.NewError("settled lines cannot be annulled").
			WithReportableDetails(map[string]any{"line_id": l.ID}).
			Mark(ierr.ErrInvalidOperation)
	}
	l.Status = types.DebitLineAnnulled
	return nil
}
