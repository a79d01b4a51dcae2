package testutil

import (
	"context"
	"time"

	"github.com/acadfin/treasury/internal/cache"
	"github.com/acadfin/treasury/internal/config"
	"github.com/acadfin/treasury/internal/domain/academic"
	"github.com/acadfin/treasury/internal/domain/account"
	"github.com/acadfin/treasury/internal/domain/debt"
	"github.com/acadfin/treasury/internal/domain/numbering"
	"github.com/acadfin/treasury/internal/domain/paymentcode"
	"github.com/acadfin/treasury/internal/domain/product"
	"github.com/acadfin/treasury/internal/domain/rule"
	"github.com/acadfin/treasury/internal/domain/tariff"
	"github.com/acadfin/treasury/internal/domain/vat"
	"github.com/acadfin/treasury/internal/logger"
	"github.com/acadfin/treasury/internal/store"
	"github.com/acadfin/treasury/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

// Stores holds all the repository interfaces for testing
type Stores struct {
	TariffRepo       tariff.Repository
	ProductRepo      product.Repository
	RegistrationRepo academic.RegistrationRepository
	DegreeRepo       academic.DegreeRepository
	RuleRepo         rule.Repository
	EventRepo        debt.EventRepository
	NoteRepo         debt.NoteRepository
	LineRepo         debt.LineRepository

	AccountDirectory account.Directory
	VatResolver      vat.Resolver
	Numbering        numbering.Service
	ReferenceIssuer  paymentcode.Issuer
}

// BaseServiceTestSuite provides common functionality for all service test suites
type BaseServiceTestSuite struct {
	suite.Suite
	ctx    context.Context
	stores Stores
	db     store.TxManager
	cache  cache.Cache
	logger *logger.Logger
	config *config.Configuration
	now    time.Time
}

// SetupSuite is called once before running the tests in the suite
func (s *BaseServiceTestSuite) SetupSuite() {
	cfg := config.GetDefaultConfig()

	var err error
	s.config = cfg
	s.logger, err = logger.NewLogger(cfg)
	if err != nil {
		s.T().Fatalf("failed to create logger: %v", err)
	}
}

// SetupTest is called before each test
func (s *BaseServiceTestSuite) SetupTest() {
	s.setupContext()
	s.setupStores()
	s.now = time.Now().UTC()
}

// TearDownTest is called after each test
func (s *BaseServiceTestSuite) TearDownTest() {
	s.clearStores()
}

func (s *BaseServiceTestSuite) setupContext() {
	s.ctx = context.Background()
	s.ctx = context.WithValue(s.ctx, types.CtxInstitutionID, types.DefaultInstitutionID)
	s.ctx = context.WithValue(s.ctx, types.CtxUserID, types.DefaultUserID)
	s.ctx = context.WithValue(s.ctx, types.CtxRequestID, types.GenerateUUID())
}

func (s *BaseServiceTestSuite) setupStores() {
	s.stores = Stores{
		TariffRepo:       NewInMemoryTariffStore(),
		ProductRepo:      NewInMemoryProductStore(),
		RegistrationRepo: NewInMemoryRegistrationStore(),
		DegreeRepo:       NewInMemoryDegreeStore(),
		RuleRepo:         NewInMemoryRuleStore(),
		EventRepo:        NewInMemoryEventStore(),
		NoteRepo:         NewInMemoryNoteStore(),
		LineRepo:         NewInMemoryLineStore(),

		AccountDirectory: NewInMemoryAccountDirectory(),
		VatResolver:      NewStubVatResolver(decimal.Zero),
		Numbering:        NewSequentialNumbering(),
		ReferenceIssuer:  NewRecordingReferenceIssuer(),
	}

	s.db = store.NewInMemoryTxManager()
	s.cache = cache.NewInMemoryCache()
}

func (s *BaseServiceTestSuite) clearStores() {
	s.stores.TariffRepo.(*InMemoryTariffStore).Clear()
	s.stores.ProductRepo.(*InMemoryProductStore).Clear()
	s.stores.RegistrationRepo.(*InMemoryRegistrationStore).Clear()
	s.stores.DegreeRepo.(*InMemoryDegreeStore).Clear()
	s.stores.RuleRepo.(*InMemoryRuleStore).Clear()
	s.stores.EventRepo.(*InMemoryEventStore).Clear()
	s.stores.NoteRepo.(*InMemoryNoteStore).Clear()
	s.stores.LineRepo.(*InMemoryLineStore).Clear()
	s.stores.AccountDirectory.(*InMemoryAccountDirectory).Clear()
	s.stores.Numbering.(*SequentialNumbering).Clear()
	s.stores.ReferenceIssuer.(*RecordingReferenceIssuer).Clear()
	s.cache.Flush(s.ctx)
}

func (s *BaseServiceTestSuite) ClearStores() {
	s.clearStores()
}

// GetContext returns the test context
func (s *BaseServiceTestSuite) GetContext() context.Context {
	return s.ctx
}

// GetConfig returns the test configuration
func (s *BaseServiceTestSuite) GetConfig() *config.Configuration {
	return s.config
}

// GetStores returns all test repositories
func (s *BaseServiceTestSuite) GetStores() Stores {
	return s.stores
}

// GetDB returns the test transaction manager
func (s *BaseServiceTestSuite) GetDB() store.TxManager {
	return s.db
}

// GetCache returns the test cache
func (s *BaseServiceTestSuite) GetCache() cache.Cache {
	return s.cache
}

// GetLogger returns the test logger
func (s *BaseServiceTestSuite) GetLogger() *logger.Logger {
	return s.logger
}

// GetNow returns the current test time
func (s *BaseServiceTestSuite) GetNow() time.Time {
	return s.now.UTC()
}

// GetUUID returns a new UUID string
func (s *BaseServiceTestSuite) GetUUID() string {
	return types.GenerateUUID()
}
