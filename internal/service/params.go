package service

import (
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
)

// ServiceParams holds common dependencies for services
type ServiceParams struct {
	Logger *logger.Logger
	Config *config.Configuration
	DB     store.TxManager
	Cache  cache.Cache

	// Repositories
	TariffRepo       tariff.Repository
	ProductRepo      product.Repository
	RegistrationRepo academic.RegistrationRepository
	DegreeRepo       academic.DegreeRepository
	RuleRepo         rule.Repository
	EventRepo        debt.EventRepository
	NoteRepo         debt.NoteRepository
	LineRepo         debt.LineRepository

	// Boundary collaborators provided by the host
	AccountDirectory account.Directory
	VatResolver      vat.Resolver
	Numbering        numbering.Service
	ReferenceIssuer  paymentcode.Issuer
}
