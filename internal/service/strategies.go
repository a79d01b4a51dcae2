package service

import (
	"context"
	"time"

	"github.com/acadfin/treasury/internal/domain/academic"
	"github.com/acadfin/treasury/internal/domain/account"
	"github.com/acadfin/treasury/internal/domain/debt"
	"github.com/acadfin/treasury/internal/domain/rule"
	ierr "github.com/acadfin/treasury/internal/errors"
	"github.com/acadfin/treasury/internal/types"
	"github.com/shopspring/decimal"
)

// RuleExecutionResult describes one materialized outcome of a rule run.
// Batch callers needing per-subject visibility inspect this list for the
// absence of an expected subject.
type RuleExecutionResult struct {
	RuleID    string          `json:"rule_id"`
	RuleKind  types.RuleKind  `json:"rule_kind"`
	SubjectID string          `json:"subject_id"`
	ProductID string          `json:"product_id,omitempty"`
	EventID   string          `json:"event_id,omitempty"`
	LineID    string          `json:"line_id,omitempty"`
	NoteID    string          `json:"note_id,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	Created   bool            `json:"created"`
}

// RuleStrategy is the executable behaviour behind one rule kind. The set
// of strategies is closed at engine construction; rule creation verifies
// the referenced kind resolves.
type RuleStrategy interface {
	Kind() types.RuleKind

	// RequiresEntries reports whether rules of this kind must carry at
	// least one product entry.
	RequiresEntries() bool

	// Process executes the rule across the period's population.
	Process(ctx context.Context, r *rule.GenerationRule, asOf time.Time) ([]*RuleExecutionResult, error)

	// ProcessSubject executes the rule for a single registration.
	ProcessSubject(ctx context.Context, r *rule.GenerationRule, reg *academic.Registration, asOf time.Time) ([]*RuleExecutionResult, error)
}

// tariffIssuanceStrategy prices and issues debt for each rule entry across
// the eligible registration population.
type tariffIssuanceStrategy struct {
	ServiceParams
	issuance     IssuanceService
	restrictions *restrictionSet
}

func (st *tariffIssuanceStrategy) Kind() types.RuleKind { return types.RuleKindTariffIssuance }

func (st *tariffIssuanceStrategy) RequiresEntries() bool { return true }

func (st *tariffIssuanceStrategy) Process(ctx context.Context, r *rule.GenerationRule, asOf time.Time) ([]*RuleExecutionResult, error) {
	registrations, err := st.RegistrationRepo.ListByPeriod(ctx, r.ExecutionPeriodID)
	if err != nil {
		return nil, err
	}

	results := make([]*RuleExecutionResult, 0, len(registrations))
	for _, reg := range registrations {
		subjectResults, err := st.ProcessSubject(ctx, r, reg, asOf)
		if err != nil {
			// Per-subject containment: one student's failure never
			// blocks the rest of the population.
			st.Logger.Errorw("rule execution failed for registration",
				"rule_id", r.ID,
				"registration_id", reg.ID,
				"error", err,
			)
			continue
		}
		results = append(results, subjectResults...)
	}

	if len(results) == 0 {
		return nil, ierr.NewError("no eligible registrations for rule").
			WithReportableDetails(map[string]any{
				"rule_id":   r.ID,
				"period_id": r.ExecutionPeriodID,
			}).
			Mark(ierr.ErrInvalidOperation)
	}
	return results, nil
}

func (st *tariffIssuanceStrategy) ProcessSubject(ctx context.Context, r *rule.GenerationRule, reg *academic.Registration, asOf time.Time) ([]*RuleExecutionResult, error) {
	eligible, err := st.restrictions.eligible(ctx, r, reg)
	if err != nil {
		return nil, err
	}

	results := make([]*RuleExecutionResult, 0, len(r.Entries))
	noteID := ""
	for _, entry := range r.Entries {
		// Forced entries issue even for subjects the restrictions skip.
		if !eligible && !entry.ForceCreation {
			continue
		}

		res, err := st.issuance.IssueWithTariff(ctx, IssueTariffRequest{
			EntityID:  r.EntityID,
			ProductID: entry.ProductID,
			Subject: account.SubjectIdentity{
				SubjectID:    reg.ID,
				Name:         reg.StudentName,
				FiscalNumber: reg.FiscalNumber,
			},
			DegreeTypeCode: reg.DegreeTypeCode,
			DegreeCode:     reg.DegreeCode,
			CycleCode:      reg.CycleCode,
			When:           asOf,
			Facts: UsageFacts{
				UnitCount: entry.NumberOfUnits,
				PageCount: entry.NumberOfPages,
			},
			GeneratePaymentReference:    r.GeneratePaymentReference,
			MinimumAmountForPaymentCode: r.MinimumAmountForPaymentCode,
			AppendToNoteID:              noteID,
		})
		if err != nil {
			if r.AggregateAllOrNothing {
				return nil, err
			}
			st.Logger.Warnw("entry issuance failed",
				"rule_id", r.ID,
				"registration_id", reg.ID,
				"product_id", entry.ProductID,
				"error", err,
			)
			continue
		}
		if !res.Created {
			continue
		}

		if r.AggregateOnDebitNote && res.Note != nil {
			noteID = res.Note.ID
		}

		results = append(results, &RuleExecutionResult{
			RuleID:    r.ID,
			RuleKind:  r.Kind,
			SubjectID: reg.ID,
			ProductID: entry.ProductID,
			EventID:   res.Event.ID,
			LineID:    res.Line.ID,
			NoteID:    res.Note.ID,
			Amount:    res.Line.Amount,
			Created:   true,
		})
	}

	if r.CloseDebitNote && noteID != "" {
		if err := st.issuance.CloseNote(ctx, noteID); err != nil {
			return nil, err
		}
	}

	return results, nil
}

// paymentReferenceBackfillStrategy creates payment references for charged
// events whose active lines still lack one.
type paymentReferenceBackfillStrategy struct {
	ServiceParams
	restrictions *restrictionSet
}

func (st *paymentReferenceBackfillStrategy) Kind() types.RuleKind {
	return types.RuleKindPaymentReferenceBackfill
}

func (st *paymentReferenceBackfillStrategy) RequiresEntries() bool { return false }

func (st *paymentReferenceBackfillStrategy) Process(ctx context.Context, r *rule.GenerationRule, asOf time.Time) ([]*RuleExecutionResult, error) {
	registrations, err := st.RegistrationRepo.ListByPeriod(ctx, r.ExecutionPeriodID)
	if err != nil {
		return nil, err
	}

	results := make([]*RuleExecutionResult, 0)
	for _, reg := range registrations {
		subjectResults, err := st.ProcessSubject(ctx, r, reg, asOf)
		if err != nil {
			st.Logger.Errorw("payment reference backfill failed for registration",
				"rule_id", r.ID,
				"registration_id", reg.ID,
				"error", err,
			)
			continue
		}
		results = append(results, subjectResults...)
	}

	if len(results) == 0 {
		return nil, ierr.NewError("no unreferenced debit lines to backfill").
			WithReportableDetails(map[string]any{
				"rule_id":   r.ID,
				"period_id": r.ExecutionPeriodID,
			}).
			Mark(ierr.ErrInvalidOperation)
	}
	return results, nil
}

func (st *paymentReferenceBackfillStrategy) ProcessSubject(ctx context.Context, r *rule.GenerationRule, reg *academic.Registration, asOf time.Time) ([]*RuleExecutionResult, error) {
	eligible, err := st.restrictions.eligible(ctx, r, reg)
	if err != nil {
		return nil, err
	}
	if !eligible {
		return nil, nil
	}

	minimum := st.Config.Treasury.MinimumAmountForPaymentCode
	if r.MinimumAmountForPaymentCode != nil {
		minimum = *r.MinimumAmountForPaymentCode
	}

	events, err := st.EventRepo.ListEventsBySubject(ctx, reg.ID)
	if err != nil {
		return nil, err
	}

	results := make([]*RuleExecutionResult, 0)
	for _, event := range events {
		if event.IsAnnulled() {
			continue
		}
		lines, err := st.LineRepo.ListLinesByEvent(ctx, event.ID)
		if err != nil {
			return nil, err
		}
		for _, line := range lines {
			if line.Status != types.DebitLineActive || line.PaymentReferenceID != "" {
				continue
			}
			if line.OpenAmount().LessThan(minimum) {
				continue
			}
			if err := st.backfillLine(ctx, event, line); err != nil {
				return nil, err
			}
			results = append(results, &RuleExecutionResult{
				RuleID:    r.ID,
				RuleKind:  r.Kind,
				SubjectID: reg.ID,
				ProductID: event.ProductID,
				EventID:   event.ID,
				LineID:    line.ID,
				Amount:    line.OpenAmount(),
				Created:   true,
			})
		}
	}
	return results, nil
}

func (st *paymentReferenceBackfillStrategy) backfillLine(ctx context.Context, event *debt.BillableEvent, line *debt.DebitLine) error {
	ref, err := st.ReferenceIssuer.Issue(ctx, event.AccountID, []string{line.ID}, line.OpenAmount(), line.IssuedAt, line.DueDate)
	if err != nil {
		return err
	}
	line.PaymentReferenceID = ref.ID
	return st.LineRepo.UpdateLine(ctx, line)
}
