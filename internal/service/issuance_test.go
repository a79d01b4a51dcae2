package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/acadfin/treasury/internal/domain/account"
	"github.com/acadfin/treasury/internal/domain/numbering"
	"github.com/acadfin/treasury/internal/domain/product"
	"github.com/acadfin/treasury/internal/domain/tariff"
	ierr "github.com/acadfin/treasury/internal/errors"
	"github.com/acadfin/treasury/internal/testutil"
	"github.com/acadfin/treasury/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type IssuanceServiceSuite struct {
	testutil.BaseServiceTestSuite
	service IssuanceService
	tariffs TariffService

	entityID  string
	productID string
	subject   account.SubjectIdentity
	when      time.Time
}

func TestIssuanceServiceSuite(t *testing.T) {
	suite.Run(t, new(IssuanceServiceSuite))
}

func (s *IssuanceServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	params := testServiceParams(&s.BaseServiceTestSuite)
	s.service = NewIssuanceService(params)
	s.tariffs = NewTariffService(params)

	s.entityID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_FINANCIAL_ENTITY)
	s.productID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PRODUCT)
	s.subject = account.SubjectIdentity{
		SubjectID:    types.GenerateUUIDWithPrefix(types.UUID_PREFIX_REGISTRATION),
		Name:         "Maria Silva",
		FiscalNumber: "123456789",
	}
	s.when = time.Date(2025, 10, 1, 10, 0, 0, 0, time.UTC)

	ctx := s.GetContext()
	err := s.GetStores().ProductRepo.Create(ctx, &product.Product{
		ID:          s.productID,
		Code:        "CERT-1",
		Name:        "Degree certificate",
		Category:    "emolument",
		VatCategory: "exempt",
		BaseModel:   types.GetDefaultBaseModel(ctx),
	})
	s.NoError(err)
}

func (s *IssuanceServiceSuite) createBroadTariff(mutate func(*CreateTariffRequest)) {
	req := CreateTariffRequest{
		EntityID:                  s.entityID,
		ProductID:                 s.productID,
		BeginDate:                 time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
		BaseAmount:                decimal.NewFromInt(50),
		DueDateType:               types.DueDateDaysAfterCreation,
		NumberOfDaysAfterCreation: 30,
	}
	if mutate != nil {
		mutate(&req)
	}
	_, err := s.tariffs.Create(s.GetContext(), req)
	s.Require().NoError(err)
}

func (s *IssuanceServiceSuite) issueRequest() IssueTariffRequest {
	return IssueTariffRequest{
		EntityID:  s.entityID,
		ProductID: s.productID,
		Subject:   s.subject,
		When:      s.when,
	}
}

func (s *IssuanceServiceSuite) TestIssueWithTariffIsIdempotent() {
	s.createBroadTariff(nil)
	ctx := s.GetContext()

	first, err := s.service.IssueWithTariff(ctx, s.issueRequest())
	s.NoError(err)
	s.True(first.Created)
	s.Equal("50.00", first.Line.Amount.StringFixed(2))

	second, err := s.service.IssueWithTariff(ctx, s.issueRequest())
	s.NoError(err)
	s.False(second.Created)
	s.Equal(first.Event.ID, second.Event.ID)

	lines, err := s.GetStores().LineRepo.ListLinesByEvent(ctx, first.Event.ID)
	s.NoError(err)
	s.Len(lines, 1)
	s.Equal(first.Line.ID, lines[0].ID)
}

func (s *IssuanceServiceSuite) TestDueDateClamp() {
	fixed := time.Date(2025, 9, 15, 0, 0, 0, 0, time.UTC)
	s.createBroadTariff(func(req *CreateTariffRequest) {
		req.DueDateType = types.DueDateFixed
		req.FixedDueDate = &fixed
		req.NumberOfDaysAfterCreation = 0
	})

	// Issuing after the fixed due date pulls the issuance timestamp back
	// so the line never carries a due date in its own past.
	result, err := s.service.IssueWithTariff(s.GetContext(), s.issueRequest())
	s.NoError(err)
	s.True(result.Line.IssuedAt.Equal(fixed))
	s.False(result.Line.DueDate.Before(result.Line.IssuedAt))
}

func (s *IssuanceServiceSuite) TestIssueWithoutTariffFails() {
	_, err := s.service.IssueWithTariff(s.GetContext(), s.issueRequest())
	s.Error(err)
	s.True(ierr.IsNotFound(err))
}

func (s *IssuanceServiceSuite) TestIssueCustom() {
	ctx := s.GetContext()

	result, err := s.service.IssueCustom(ctx, IssueCustomRequest{
		EntityID:  s.entityID,
		ProductID: s.productID,
		Subject:   s.subject,
		Amount:    decimal.RequireFromString("12.345"),
		DueDate:   s.when.AddDate(0, 1, 0),
		When:      s.when,
	})
	s.NoError(err)
	s.True(result.Created)
	s.Equal("12.34", result.Line.Amount.StringFixed(2))
	s.Empty(result.Line.TariffID)
}

func (s *IssuanceServiceSuite) TestIssueCustomRejectsNegativeAmount() {
	_, err := s.service.IssueCustom(s.GetContext(), IssueCustomRequest{
		EntityID:  s.entityID,
		ProductID: s.productID,
		Subject:   s.subject,
		Amount:    decimal.NewFromInt(-1),
		DueDate:   s.when.AddDate(0, 1, 0),
		When:      s.when,
	})
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *IssuanceServiceSuite) TestPaymentReferenceMinimumGate() {
	s.createBroadTariff(nil)
	ctx := s.GetContext()
	issuer := s.GetStores().ReferenceIssuer.(*testutil.RecordingReferenceIssuer)

	req := s.issueRequest()
	req.GeneratePaymentReference = true
	req.MinimumAmountForPaymentCode = lo.ToPtr(decimal.NewFromInt(100))

	result, err := s.service.IssueWithTariff(ctx, req)
	s.NoError(err)
	s.True(result.Created)
	s.Empty(result.Line.PaymentReferenceID)
	s.Empty(issuer.Issued())
}

func (s *IssuanceServiceSuite) TestPaymentReferenceIssuedAboveMinimum() {
	s.createBroadTariff(nil)
	ctx := s.GetContext()
	issuer := s.GetStores().ReferenceIssuer.(*testutil.RecordingReferenceIssuer)

	req := s.issueRequest()
	req.GeneratePaymentReference = true
	req.MinimumAmountForPaymentCode = lo.ToPtr(decimal.NewFromInt(10))

	result, err := s.service.IssueWithTariff(ctx, req)
	s.NoError(err)
	s.NotEmpty(result.Line.PaymentReferenceID)

	issued := issuer.Issued()
	s.Require().Len(issued, 1)
	s.Equal([]string{result.Line.ID}, issued[0].DebitLineIDs)
	s.True(result.Line.OpenAmount().Equal(issued[0].Amount))
}

func (s *IssuanceServiceSuite) TestAnnulEventThenReissue() {
	s.createBroadTariff(nil)
	ctx := s.GetContext()

	first, err := s.service.IssueWithTariff(ctx, s.issueRequest())
	s.NoError(err)

	s.Error(s.service.AnnulEvent(ctx, first.Event.ID, ""))
	s.NoError(s.service.AnnulEvent(ctx, first.Event.ID, "issued by mistake"))

	event, err := s.GetStores().EventRepo.GetEvent(ctx, first.Event.ID)
	s.NoError(err)
	s.True(event.IsAnnulled())
	s.Equal("issued by mistake", event.AnnulReason)

	line, err := s.GetStores().LineRepo.GetLine(ctx, first.Line.ID)
	s.NoError(err)
	s.Equal(types.DebitLineAnnulled, line.Status)

	// The annulled event no longer counts as charged; a new issuance
	// materializes a fresh event and line.
	second, err := s.service.IssueWithTariff(ctx, s.issueRequest())
	s.NoError(err)
	s.True(second.Created)
	s.NotEqual(first.Line.ID, second.Line.ID)
}

func (s *IssuanceServiceSuite) TestAnnulBlockedBySettledLine() {
	s.createBroadTariff(nil)
	ctx := s.GetContext()

	result, err := s.service.IssueWithTariff(ctx, s.issueRequest())
	s.NoError(err)

	line, err := s.GetStores().LineRepo.GetLine(ctx, result.Line.ID)
	s.NoError(err)
	line.Status = types.DebitLineSettled
	s.NoError(s.GetStores().LineRepo.UpdateLine(ctx, line))

	err = s.service.AnnulEvent(ctx, result.Event.ID, "too late")
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))
}

func (s *IssuanceServiceSuite) TestExemptLine() {
	s.createBroadTariff(nil)
	ctx := s.GetContext()

	result, err := s.service.IssueWithTariff(ctx, s.issueRequest())
	s.NoError(err)

	s.NoError(s.service.ExemptLine(ctx, result.Line.ID, decimal.NewFromInt(20)))

	line, err := s.GetStores().LineRepo.GetLine(ctx, result.Line.ID)
	s.NoError(err)
	s.Equal("30.00", line.OpenAmount().StringFixed(2))

	// Exempting beyond the open amount is refused.
	err = s.service.ExemptLine(ctx, result.Line.ID, decimal.NewFromInt(40))
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *IssuanceServiceSuite) TestCloseNoteAndAppendRejection() {
	s.createBroadTariff(nil)
	ctx := s.GetContext()

	result, err := s.service.IssueWithTariff(ctx, s.issueRequest())
	s.NoError(err)

	s.NoError(s.service.CloseNote(ctx, result.Note.ID))

	err = s.service.CloseNote(ctx, result.Note.ID)
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))

	other := s.issueRequest()
	other.Subject.SubjectID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_REGISTRATION)
	other.AppendToNoteID = result.Note.ID
	_, err = s.service.IssueWithTariff(ctx, other)
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))
}

// unnumberedDocuments simulates a host numbering service that defers the
// definitive series number until the document is printed.
type unnumberedDocuments struct{}

func (unnumberedDocuments) OpenDocument(ctx context.Context, accountID string, series types.DocumentSeries, at time.Time) (*numbering.DocumentRef, error) {
	return &numbering.DocumentRef{
		ID:        types.GenerateUUID(),
		Series:    series,
		AccountID: accountID,
		OpenedAt:  at,
	}, nil
}

func (s *IssuanceServiceSuite) TestNoteNumberFallsBackToShortReference() {
	s.createBroadTariff(nil)

	params := testServiceParams(&s.BaseServiceTestSuite)
	params.Numbering = unnumberedDocuments{}
	service := NewIssuanceService(params)

	result, err := service.IssueWithTariff(s.GetContext(), s.issueRequest())
	s.NoError(err)
	s.Require().NotNil(result.Note)
	s.True(strings.HasPrefix(result.Note.Number, types.SHORT_ID_PREFIX_DEBIT_NOTE))
	s.LessOrEqual(len(result.Note.Number), 12)
}

func (s *IssuanceServiceSuite) TestTariffInterestPolicyPropagates() {
	s.createBroadTariff(func(req *CreateTariffRequest) {
		req.InterestPolicy = &tariff.InterestPolicy{
			Type:            types.InterestMonthly,
			RatePercent:     decimal.NewFromInt(1),
			GracePeriodDays: 15,
		}
	})

	result, err := s.service.IssueWithTariff(s.GetContext(), s.issueRequest())
	s.NoError(err)
	s.Require().NotNil(result.Line.InterestPolicy)
	s.Equal(types.InterestMonthly, result.Line.InterestPolicy.Type)
	s.NotEmpty(result.Line.TariffID)
}
