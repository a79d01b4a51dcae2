package service

import (
	"testing"
	"time"

	"github.com/acadfin/treasury/internal/domain/academic"
	"github.com/acadfin/treasury/internal/domain/debt"
	"github.com/acadfin/treasury/internal/domain/product"
	"github.com/acadfin/treasury/internal/domain/tariff"
	ierr "github.com/acadfin/treasury/internal/errors"
	"github.com/acadfin/treasury/internal/testutil"
	"github.com/acadfin/treasury/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

// testServiceParams assembles ServiceParams from the base suite's stores.
// Shared by every service suite in this package.
func testServiceParams(base *testutil.BaseServiceTestSuite) ServiceParams {
	stores := base.GetStores()
	return ServiceParams{
		Logger: base.GetLogger(),
		Config: base.GetConfig(),
		DB:     base.GetDB(),
		Cache:  base.GetCache(),

		TariffRepo:       stores.TariffRepo,
		ProductRepo:      stores.ProductRepo,
		RegistrationRepo: stores.RegistrationRepo,
		DegreeRepo:       stores.DegreeRepo,
		RuleRepo:         stores.RuleRepo,
		EventRepo:        stores.EventRepo,
		NoteRepo:         stores.NoteRepo,
		LineRepo:         stores.LineRepo,

		AccountDirectory: stores.AccountDirectory,
		VatResolver:      stores.VatResolver,
		Numbering:        stores.Numbering,
		ReferenceIssuer:  stores.ReferenceIssuer,
	}
}

type TariffServiceSuite struct {
	testutil.BaseServiceTestSuite
	service TariffService

	entityID  string
	productID string
}

func TestTariffServiceSuite(t *testing.T) {
	suite.Run(t, new(TariffServiceSuite))
}

func (s *TariffServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewTariffService(testServiceParams(&s.BaseServiceTestSuite))

	s.entityID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_FINANCIAL_ENTITY)
	s.productID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PRODUCT)

	ctx := s.GetContext()
	stores := s.GetStores()

	err := stores.ProductRepo.Create(ctx, &product.Product{
		ID:          s.productID,
		Code:        "TUITION-1",
		Name:        "Tuition first installment",
		Category:    "tuition",
		VatCategory: "exempt",
		BaseModel:   types.GetDefaultBaseModel(ctx),
	})
	s.NoError(err)

	degreeStore := stores.DegreeRepo.(*testutil.InMemoryDegreeStore)
	s.NoError(degreeStore.AddDegreeType(ctx, &academic.DegreeType{
		Code:      "master",
		Name:      "Master",
		BaseModel: types.GetDefaultBaseModel(ctx),
	}))
	s.NoError(degreeStore.AddDegree(ctx, &academic.Degree{
		Code:           "M-CS",
		Name:           "Computer Science",
		DegreeTypeCode: "master",
		CycleCodes:     []string{"1", "2"},
		BaseModel:      types.GetDefaultBaseModel(ctx),
	}))
}

func (s *TariffServiceSuite) newCreateRequest(scope TariffScope, base int64) CreateTariffRequest {
	return CreateTariffRequest{
		EntityID:                  s.entityID,
		ProductID:                 s.productID,
		Scope:                     scope,
		BeginDate:                 time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
		BaseAmount:                decimal.NewFromInt(base),
		DueDateType:               types.DueDateDaysAfterCreation,
		NumberOfDaysAfterCreation: 30,
	}
}

func (s *TariffServiceSuite) TestCreateAndGet() {
	created, err := s.service.Create(s.GetContext(), s.newCreateRequest(TariffScope{}, 100))
	s.NoError(err)
	s.NotEmpty(created.ID)

	got, err := s.service.Get(s.GetContext(), created.ID)
	s.NoError(err)
	s.Equal(created.ID, got.ID)
	s.Equal(types.ScopeLevelBroad, got.ScopeLevel())
}

func (s *TariffServiceSuite) TestCreateRejectsCycleWithoutDegree() {
	req := s.newCreateRequest(TariffScope{CycleCode: lo.ToPtr("2")}, 100)

	_, err := s.service.Create(s.GetContext(), req)
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *TariffServiceSuite) TestCreateRejectsUnknownDegree() {
	req := s.newCreateRequest(TariffScope{
		DegreeTypeCode: lo.ToPtr("master"),
		DegreeCode:     lo.ToPtr("M-UNKNOWN"),
	}, 100)

	_, err := s.service.Create(s.GetContext(), req)
	s.Error(err)
	s.True(ierr.IsNotFound(err))
}

func (s *TariffServiceSuite) TestCreateRejectsDegreeOfWrongType() {
	req := s.newCreateRequest(TariffScope{
		DegreeTypeCode: lo.ToPtr("bachelor"),
		DegreeCode:     lo.ToPtr("M-CS"),
	}, 100)

	_, err := s.service.Create(s.GetContext(), req)
	s.Error(err)
}

func (s *TariffServiceSuite) TestCreateRejectsUnofferedCycle() {
	req := s.newCreateRequest(TariffScope{
		DegreeTypeCode: lo.ToPtr("master"),
		DegreeCode:     lo.ToPtr("M-CS"),
		CycleCode:      lo.ToPtr("3"),
	}, 100)

	_, err := s.service.Create(s.GetContext(), req)
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

// createScopeLadder registers one tariff per specificity level, most
// specific first so no broader record blocks a narrower one.
func (s *TariffServiceSuite) createScopeLadder() map[types.TariffScopeLevel]*tariff.TariffRecord {
	ctx := s.GetContext()
	ladder := map[types.TariffScopeLevel]*tariff.TariffRecord{}

	cycleScoped, err := s.service.Create(ctx, s.newCreateRequest(TariffScope{
		DegreeTypeCode: lo.ToPtr("master"),
		DegreeCode:     lo.ToPtr("M-CS"),
		CycleCode:      lo.ToPtr("2"),
	}, 400))
	s.NoError(err)
	ladder[types.ScopeLevelCycle] = cycleScoped

	degreeScoped, err := s.service.Create(ctx, s.newCreateRequest(TariffScope{
		DegreeTypeCode: lo.ToPtr("master"),
		DegreeCode:     lo.ToPtr("M-CS"),
	}, 300))
	s.NoError(err)
	ladder[types.ScopeLevelDegree] = degreeScoped

	typeScoped, err := s.service.Create(ctx, s.newCreateRequest(TariffScope{
		DegreeTypeCode: lo.ToPtr("master"),
	}, 200))
	s.NoError(err)
	ladder[types.ScopeLevelDegreeType] = typeScoped

	broad, err := s.service.Create(ctx, s.newCreateRequest(TariffScope{}, 100))
	s.NoError(err)
	ladder[types.ScopeLevelBroad] = broad

	return ladder
}

func (s *TariffServiceSuite) TestSpecificityFallback() {
	ctx := s.GetContext()
	ladder := s.createScopeLadder()
	when := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)

	findMatch := func() *tariff.TariffRecord {
		matched, err := s.service.FindMatch(ctx, s.entityID, s.productID, "master", "M-CS", "2", when)
		s.NoError(err)
		return matched
	}

	// Most specific wins; each removal falls back one level.
	for _, level := range types.ScopeLevelsMostSpecificFirst {
		matched := findMatch()
		s.Require().NotNil(matched)
		s.Equal(ladder[level].ID, matched.ID)
		s.NoError(s.service.Delete(ctx, matched.ID))
	}

	matched := findMatch()
	s.Nil(matched)
}

func (s *TariffServiceSuite) TestOverlapRejectionAtIdenticalScope() {
	ctx := s.GetContext()

	_, err := s.service.Create(ctx, s.newCreateRequest(TariffScope{}, 100))
	s.NoError(err)

	_, err = s.service.Create(ctx, s.newCreateRequest(TariffScope{}, 200))
	s.Error(err)
	s.True(ierr.IsOverlappingInterval(err))
}

func (s *TariffServiceSuite) TestNonOverlappingIntervalsCoexist() {
	ctx := s.GetContext()

	first := s.newCreateRequest(TariffScope{}, 100)
	first.EndDate = lo.ToPtr(time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC))
	_, err := s.service.Create(ctx, first)
	s.NoError(err)

	second := s.newCreateRequest(TariffScope{}, 200)
	second.BeginDate = time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	_, err = s.service.Create(ctx, second)
	s.NoError(err)
}

func (s *TariffServiceSuite) TestEndDateIsInclusiveEndOfDay() {
	ctx := s.GetContext()

	req := s.newCreateRequest(TariffScope{}, 100)
	req.EndDate = lo.ToPtr(time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC))
	created, err := s.service.Create(ctx, req)
	s.NoError(err)

	s.True(created.IsActiveAt(time.Date(2026, 8, 31, 23, 59, 0, 0, time.UTC)))
	s.False(created.IsActiveAt(time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)))
}

func (s *TariffServiceSuite) TestBroaderScopeBlocksNarrowerOverlap() {
	ctx := s.GetContext()

	_, err := s.service.Create(ctx, s.newCreateRequest(TariffScope{}, 100))
	s.NoError(err)

	// An active broad tariff already covers this interval, so a narrower
	// record cannot be slotted under it.
	_, err = s.service.Create(ctx, s.newCreateRequest(TariffScope{
		DegreeTypeCode: lo.ToPtr("master"),
	}, 200))
	s.Error(err)
	s.True(ierr.IsOverlappingInterval(err))
}

func (s *TariffServiceSuite) TestFindMatchAmbiguityIsFatal() {
	ctx := s.GetContext()
	when := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)

	// Two broad records slipped in through non-adjacent operations; the
	// read path must refuse to pick one.
	for _, base := range []int64{100, 200} {
		record := s.newCreateRequest(TariffScope{}, base).ToTariffRecord(ctx)
		s.NoError(s.GetStores().TariffRepo.Create(ctx, record))
	}

	_, err := s.service.FindMatch(ctx, s.entityID, s.productID, "master", "M-CS", "2", when)
	s.Error(err)
	s.True(ierr.IsAmbiguousMatch(err))
}

func (s *TariffServiceSuite) TestFindMatchReturnsNilWithoutError() {
	matched, err := s.service.FindMatch(s.GetContext(), s.entityID, s.productID, "master", "M-CS", "2",
		time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC))
	s.NoError(err)
	s.Nil(matched)
}

func (s *TariffServiceSuite) TestDeleteBlockedWhenReferencedByDebt() {
	ctx := s.GetContext()

	created, err := s.service.Create(ctx, s.newCreateRequest(TariffScope{}, 100))
	s.NoError(err)

	line := &debt.DebitLine{
		ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_DEBIT_LINE),
		EventID:   types.GenerateUUIDWithPrefix(types.UUID_PREFIX_BILLABLE_EVENT),
		Amount:    decimal.NewFromInt(100),
		Status:    types.DebitLineActive,
		TariffID:  created.ID,
		BaseModel: types.GetDefaultBaseModel(ctx),
	}
	s.NoError(s.GetStores().LineRepo.CreateLine(ctx, line))

	err = s.service.Delete(ctx, created.ID)
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))
}

func (s *TariffServiceSuite) TestEditRejectedLeavesStoredRecordUnchanged() {
	ctx := s.GetContext()

	created, err := s.service.Create(ctx, s.newCreateRequest(TariffScope{}, 100))
	s.NoError(err)

	_, err = s.service.Edit(ctx, created.ID, EditTariffRequest{
		BeginDate: time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   lo.ToPtr(time.Date(2025, 9, 15, 0, 0, 0, 0, time.UTC)),
	})
	s.Error(err)
	s.True(ierr.IsValidation(err))

	// The rejected dates must not have bled into the stored record.
	stored, err := s.service.Get(ctx, created.ID)
	s.NoError(err)
	s.True(stored.BeginDate.Equal(time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)))
	s.Nil(stored.EndDate)
}

func (s *TariffServiceSuite) TestFindMatchReturnsDetachedCopies() {
	ctx := s.GetContext()
	when := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)

	created, err := s.service.Create(ctx, s.newCreateRequest(TariffScope{}, 100))
	s.NoError(err)

	first, err := s.service.FindMatch(ctx, s.entityID, s.productID, "master", "M-CS", "2", when)
	s.NoError(err)
	s.Require().NotNil(first)
	first.BaseAmount = decimal.NewFromInt(999)

	// The second lookup is served from cache and must not reflect the
	// caller's mutation of the first result.
	second, err := s.service.FindMatch(ctx, s.entityID, s.productID, "master", "M-CS", "2", when)
	s.NoError(err)
	s.Require().NotNil(second)
	s.True(decimal.NewFromInt(100).Equal(second.BaseAmount))

	stored, err := s.service.Get(ctx, created.ID)
	s.NoError(err)
	s.True(decimal.NewFromInt(100).Equal(stored.BaseAmount))
}

func (s *TariffServiceSuite) TestEditRevalidatesInterval() {
	ctx := s.GetContext()

	created, err := s.service.Create(ctx, s.newCreateRequest(TariffScope{}, 100))
	s.NoError(err)

	_, err = s.service.Edit(ctx, created.ID, EditTariffRequest{
		BeginDate: time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   lo.ToPtr(time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)),
	})
	s.Error(err)
	s.True(ierr.IsValidation(err))
}
