package service

import (
	"context"
	"time"

	"github.com/acadfin/treasury/internal/domain/account"
	"github.com/acadfin/treasury/internal/domain/debt"
	"github.com/acadfin/treasury/internal/domain/tariff"
	ierr "github.com/acadfin/treasury/internal/errors"
	"github.com/acadfin/treasury/internal/idempotency"
	"github.com/acadfin/treasury/internal/types"
	"github.com/cenkalti/backoff/v4"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// issuanceMaxRetries bounds the optimistic-concurrency retry of one
// issuance unit of work.
const issuanceMaxRetries = 3

// IssueTariffRequest issues debt priced by the tariff catalog: the amount
// and due date are derived from the matched tariff and the usage facts.
type IssueTariffRequest struct {
	EntityID  string `json:"entity_id"`
	ProductID string `json:"product_id"`

	Subject account.SubjectIdentity `json:"subject"`

	// Registration coordinates driving the specificity match.
	DegreeTypeCode string `json:"degree_type_code"`
	DegreeCode     string `json:"degree_code"`
	CycleCode      string `json:"cycle_code"`

	When  time.Time  `json:"when"`
	Facts UsageFacts `json:"facts"`

	Description string `json:"description"`

	GeneratePaymentReference    bool             `json:"generate_payment_reference"`
	MinimumAmountForPaymentCode *decimal.Decimal `json:"minimum_amount_for_payment_code,omitempty"`

	// AppendToNoteID attaches the new line to an already open debit note
	// instead of opening a new one. Used by aggregating rules.
	AppendToNoteID string `json:"append_to_note_id,omitempty"`
}

func (r IssueTariffRequest) Validate() error {
	if r.EntityID == "" || r.ProductID == "" {
		return ierr.NewError("entity and product are required").
			Mark(ierr.ErrValidation)
	}
	if r.Subject.SubjectID == "" {
		return ierr.NewError("subject identity is required before debt creation").
			Mark(ierr.ErrValidation)
	}
	if r.When.IsZero() {
		return ierr.NewError("issuance timestamp is required").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// IssueCustomRequest issues ad hoc debt with a caller-supplied amount and
// due date, bypassing the tariff lookup.
type IssueCustomRequest struct {
	EntityID  string `json:"entity_id"`
	ProductID string `json:"product_id"`

	Subject account.SubjectIdentity `json:"subject"`

	Amount  decimal.Decimal `json:"amount"`
	DueDate time.Time       `json:"due_date"`
	When    time.Time       `json:"when"`

	Description string `json:"description"`

	GeneratePaymentReference bool   `json:"generate_payment_reference"`
	AppendToNoteID           string `json:"append_to_note_id,omitempty"`
}

func (r IssueCustomRequest) Validate() error {
	if r.EntityID == "" || r.ProductID == "" {
		return ierr.NewError("entity and product are required").
			Mark(ierr.ErrValidation)
	}
	if r.Subject.SubjectID == "" {
		return ierr.NewError("subject identity is required before debt creation").
			Mark(ierr.ErrValidation)
	}
	if types.IsNegative(r.Amount) {
		return ierr.NewError("custom debt amount must not be negative").
			WithReportableDetails(map[string]any{"amount": r.Amount}).
			Mark(ierr.ErrValidation)
	}
	if r.When.IsZero() || r.DueDate.IsZero() {
		return ierr.NewError("issuance timestamp and due date are required").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// IssueResult reports what one issuance call materialized. Line and Note
// are nil when the call short-circuited on an already charged event.
type IssueResult struct {
	Event   *debt.BillableEvent `json:"event"`
	Line    *debt.DebitLine     `json:"line,omitempty"`
	Note    *debt.DebitNote     `json:"note,omitempty"`
	Created bool                `json:"created"`
}

type IssuanceService interface {
	// IssueWithTariff resolves the applicable tariff, prices the debt and
	// materializes event, note and line. Re-running for an already
	// charged (subject, product) pair is a no-op returning the existing
	// event.
	IssueWithTariff(ctx context.Context, req IssueTariffRequest) (*IssueResult, error)

	// IssueCustom issues with an explicit amount and due date.
	IssueCustom(ctx context.Context, req IssueCustomRequest) (*IssueResult, error)

	// AnnulEvent soft-cancels the event and all its unsettled lines.
	AnnulEvent(ctx context.Context, eventID string, reason string) error

	// ExemptLine writes down part of a line amount.
	ExemptLine(ctx context.Context, lineID string, amount decimal.Decimal) error

	// CloseNote closes an open debit note.
	CloseNote(ctx context.Context, noteID string) error
}

type issuanceService struct {
	ServiceParams
	tariffService TariffService
	calculator    AmountCalculator
	idempGen      *idempotency.Generator
}

func NewIssuanceService(params ServiceParams) IssuanceService {
	return &issuanceService{
		ServiceParams: params,
		tariffService: NewTariffService(params),
		calculator:    NewAmountCalculator(),
		idempGen:      idempotency.NewGenerator(),
	}
}

func (s *issuanceService) IssueWithTariff(ctx context.Context, req IssueTariffRequest) (*IssueResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	product, err := s.ProductRepo.Get(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}

	matched, err := s.tariffService.FindMatch(ctx,
		req.EntityID, req.ProductID, req.DegreeTypeCode, req.DegreeCode, req.CycleCode, req.When)
	if err != nil {
		return nil, err
	}
	if matched == nil {
		// Never silently default to zero; the caller gets the product
		// and date that failed to price.
		return nil, ierr.NewError("no tariff found for product").
			WithHintf("product %s has no active tariff at %s", product.Code, req.When.Format("2006-01-02")).
			WithReportableDetails(map[string]any{
				"entity_id":  req.EntityID,
				"product_id": req.ProductID,
				"when":       req.When,
			}).
			Mark(ierr.ErrNotFound)
	}

	breakdown := s.calculator.AmountToPay(matched, req.Facts)

	issuedAt := req.When
	dueDate := matched.DueDateFor(req.When)
	// A fixed due date earlier than the issuance date pulls the issuance
	// date backward; a line is never issued with a due date in its past.
	if dueDate.Before(issuedAt) {
		issuedAt = dueDate
	}

	key := s.idempGen.GenerateKey(idempotency.ScopeAcademicDebt, map[string]interface{}{
		"subject_id": req.Subject.SubjectID,
		"product_id": req.ProductID,
		"entity_id":  req.EntityID,
	})

	minimum := s.Config.Treasury.MinimumAmountForPaymentCode
	if req.MinimumAmountForPaymentCode != nil {
		minimum = *req.MinimumAmountForPaymentCode
	}

	return s.materialize(ctx, materializeParams{
		entityID:         req.EntityID,
		productID:        req.ProductID,
		subject:          req.Subject,
		description:      lo.Ternary(req.Description != "", req.Description, product.Name),
		amount:           breakdown.FinalAmount,
		breakdown:        breakdown,
		tariff:           matched,
		vatCategory:      product.VatCategory,
		issuedAt:         issuedAt,
		dueDate:          dueDate,
		idempotencyKey:   key,
		generateRef:      req.GeneratePaymentReference,
		minimumForRef:    minimum,
		appendToNoteID:   req.AppendToNoteID,
	})
}

func (s *issuanceService) IssueCustom(ctx context.Context, req IssueCustomRequest) (*IssueResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	product, err := s.ProductRepo.Get(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}

	issuedAt := req.When
	if req.DueDate.Before(issuedAt) {
		issuedAt = req.DueDate
	}

	key := s.idempGen.GenerateKey(idempotency.ScopeCustomDebt, map[string]interface{}{
		"subject_id": req.Subject.SubjectID,
		"product_id": req.ProductID,
		"entity_id":  req.EntityID,
		"amount":     req.Amount.String(),
		"due_date":   req.DueDate.Format("2006-01-02"),
	})

	return s.materialize(ctx, materializeParams{
		entityID:       req.EntityID,
		productID:      req.ProductID,
		subject:        req.Subject,
		description:    lo.Ternary(req.Description != "", req.Description, product.Name),
		amount:         types.RoundCurrency(req.Amount),
		vatCategory:    product.VatCategory,
		issuedAt:       issuedAt,
		dueDate:        req.DueDate,
		idempotencyKey: key,
		generateRef:    req.GeneratePaymentReference,
		minimumForRef:  s.Config.Treasury.MinimumAmountForPaymentCode,
		appendToNoteID: req.AppendToNoteID,
	})
}

type materializeParams struct {
	entityID    string
	productID   string
	subject     account.SubjectIdentity
	description string

	amount    decimal.Decimal
	breakdown *debt.AmountBreakdown
	tariff    *tariff.TariffRecord

	vatCategory string
	issuedAt    time.Time
	dueDate     time.Time

	idempotencyKey string
	generateRef    bool
	minimumForRef  decimal.Decimal
	appendToNoteID string
}

// materialize runs the shared issuance mechanics of both calculation paths
// inside one unit of work, retried on optimistic-concurrency conflicts.
func (s *issuanceService) materialize(ctx context.Context, p materializeParams) (*IssueResult, error) {
	var result *IssueResult

	operation := func() error {
		err := s.DB.WithTx(ctx, func(ctx context.Context) error {
			var txErr error
			result, txErr = s.materializeInTx(ctx, p)
			return txErr
		})
		if err != nil && !ierr.IsVersionConflict(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	if err := backoff.Retry(operation, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), issuanceMaxRetries)); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *issuanceService) materializeInTx(ctx context.Context, p materializeParams) (*IssueResult, error) {
	acc, err := s.AccountDirectory.FindOrCreateAccount(ctx, p.entityID, p.subject)
	if err != nil {
		return nil, err
	}

	event, err := s.EventRepo.FindEventBySubjectProduct(ctx, p.subject.SubjectID, p.productID)
	if err != nil {
		return nil, err
	}
	if event == nil {
		event = &debt.BillableEvent{
			ID:          types.GenerateUUIDWithPrefix(types.UUID_PREFIX_BILLABLE_EVENT),
			EntityID:    p.entityID,
			ProductID:   p.productID,
			SubjectID:   p.subject.SubjectID,
			AccountID:   acc.ID,
			Description: p.description,
			BaseModel:   types.GetDefaultBaseModel(ctx),
		}
		if err := s.EventRepo.CreateEvent(ctx, event); err != nil {
			return nil, err
		}
	}

	// Idempotence guarantee: an already charged event short-circuits,
	// returning the existing state unchanged. The check runs inside the
	// transaction so a racing issuance re-reads before the final write.
	charged, err := s.isCharged(ctx, event.ID)
	if err != nil {
		return nil, err
	}
	if charged {
		s.Logger.Infow("event already charged, returning existing state",
			"event_id", event.ID,
			"subject_id", p.subject.SubjectID,
			"product_id", p.productID,
		)
		return &IssueResult{Event: event, Created: false}, nil
	}

	if existing, err := s.LineRepo.GetLineByIdempotencyKey(ctx, p.idempotencyKey); err != nil {
		return nil, err
	} else if existing != nil && existing.Status != types.DebitLineAnnulled {
		return &IssueResult{Event: event, Created: false}, nil
	}

	activeVat, err := s.VatResolver.FindActiveVat(ctx, p.vatCategory, p.entityID, p.issuedAt)
	if err != nil {
		return nil, err
	}

	note, err := s.resolveNote(ctx, acc.ID, p.appendToNoteID, p.issuedAt)
	if err != nil {
		return nil, err
	}

	line := &debt.DebitLine{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_DEBIT_LINE),
		EventID:        event.ID,
		NoteID:         note.ID,
		Description:    p.description,
		Amount:         p.amount,
		VatPercent:     activeVat.Percent,
		ExemptedAmount: decimal.Zero,
		DueDate:        p.dueDate,
		IssuedAt:       p.issuedAt,
		Status:         types.DebitLineActive,
		IdempotencyKey: p.idempotencyKey,
		BaseModel:      types.GetDefaultBaseModel(ctx),
	}
	if p.tariff != nil {
		line.TariffID = p.tariff.ID
		line.InterestPolicy = p.tariff.InterestPolicy
	}
	if err := s.LineRepo.CreateLine(ctx, line); err != nil {
		return nil, err
	}

	event.Breakdown = p.breakdown
	event.UpdatedAt = time.Now().UTC()
	event.UpdatedBy = types.GetUserID(ctx)
	if err := s.EventRepo.UpdateEvent(ctx, event); err != nil {
		return nil, err
	}

	if p.generateRef && line.OpenAmount().GreaterThanOrEqual(p.minimumForRef) {
		ref, err := s.ReferenceIssuer.Issue(ctx, acc.ID, []string{line.ID}, line.OpenAmount(), p.issuedAt, p.dueDate)
		if err != nil {
			return nil, err
		}
		line.PaymentReferenceID = ref.ID
		if err := s.LineRepo.UpdateLine(ctx, line); err != nil {
			return nil, err
		}
	}

	s.Logger.Infow("debt issued",
		"event_id", event.ID,
		"line_id", line.ID,
		"note_id", note.ID,
		"subject_id", p.subject.SubjectID,
		"product_id", p.productID,
		"amount", p.amount,
		"due_date", p.dueDate,
	)

	return &IssueResult{Event: event, Line: line, Note: note, Created: true}, nil
}

// isCharged reports whether the event has at least one non-annulled line.
func (s *issuanceService) isCharged(ctx context.Context, eventID string) (bool, error) {
	lines, err := s.LineRepo.ListLinesByEvent(ctx, eventID)
	if err != nil {
		return false, err
	}
	return lo.SomeBy(lines, func(l *debt.DebitLine) bool {
		return l.Status != types.DebitLineAnnulled
	}), nil
}

func (s *issuanceService) resolveNote(ctx context.Context, accountID, appendToNoteID string, issuedAt time.Time) (*debt.DebitNote, error) {
	if appendToNoteID != "" {
		note, err := s.NoteRepo.GetNote(ctx, appendToNoteID)
		if err != nil {
			return nil, err
		}
		if note.IsClosed() {
			return nil, ierr.NewError("cannot append to a closed debit note").
				WithReportableDetails(map[string]any{"note_id": note.ID}).
				Mark(ierr.ErrInvalidOperation)
		}
		return note, nil
	}

	doc, err := s.Numbering.OpenDocument(ctx, accountID, types.SeriesDebit, issuedAt)
	if err != nil {
		return nil, err
	}
	number := doc.Number
	if number == "" {
		// Some host numbering services defer the definitive series number
		// until the document is printed; the note still needs a working
		// reference from day one.
		number = types.GenerateShortIDWithPrefix(types.SHORT_ID_PREFIX_DEBIT_NOTE)
	}
	note := &debt.DebitNote{
		ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_DEBIT_NOTE),
		Number:    number,
		AccountID: accountID,
		Currency:  s.Config.Treasury.DefaultCurrency,
		IssuedAt:  issuedAt,
		BaseModel: types.GetDefaultBaseModel(ctx),
	}
	if err := s.NoteRepo.CreateNote(ctx, note); err != nil {
		return nil, err
	}
	return note, nil
}

func (s *issuanceService) AnnulEvent(ctx context.Context, eventID string, reason string) error {
	if reason == "" {
		return ierr.NewError("annulment reason is required").
			Mark(ierr.ErrValidation)
	}

	return s.DB.WithTx(ctx, func(ctx context.Context) error {
		event, err := s.EventRepo.GetEvent(ctx, eventID)
		if err != nil {
			return err
		}
		if event.IsAnnulled() {
			return nil
		}

		lines, err := s.LineRepo.ListLinesByEvent(ctx, eventID)
		if err != nil {
			return err
		}
		for _, line := range lines {
			if line.Status == types.DebitLineSettled {
				return ierr.NewError("event has settled lines, cannot annul").
					WithReportableDetails(map[string]any{
						"event_id": eventID,
						"line_id":  line.ID,
					}).
					Mark(ierr.ErrInvalidOperation)
			}
		}
		for _, line := range lines {
			if line.Status != types.DebitLineActive {
				continue
			}
			if err := line.Annul(); err != nil {
				return err
			}
			if err := s.LineRepo.UpdateLine(ctx, line); err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		event.AnnulledAt = &now
		event.AnnulReason = reason
		event.UpdatedAt = now
		event.UpdatedBy = types.GetUserID(ctx)
		return s.EventRepo.UpdateEvent(ctx, event)
	})
}

func (s *issuanceService) ExemptLine(ctx context.Context, lineID string, amount decimal.Decimal) error {
	return s.DB.WithTx(ctx, func(ctx context.Context) error {
		line, err := s.LineRepo.GetLine(ctx, lineID)
		if err != nil {
			return err
		}
		if err := line.Exempt(amount); err != nil {
			return err
		}
		return s.LineRepo.UpdateLine(ctx, line)
	})
}

func (s *issuanceService) CloseNote(ctx context.Context, noteID string) error {
	return s.DB.WithTx(ctx, func(ctx context.Context) error {
		note, err := s.NoteRepo.GetNote(ctx, noteID)
		if err != nil {
			return err
		}
		if note.IsClosed() {
			return ierr.NewError("debit note is already closed").
				WithReportableDetails(map[string]any{"note_id": noteID}).
				Mark(ierr.ErrInvalidOperation)
		}
		now := time.Now().UTC()
		note.ClosedAt = &now
		return s.NoteRepo.UpdateNote(ctx, note)
	})
}
