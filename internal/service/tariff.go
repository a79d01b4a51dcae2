package service

import (
	"context"
	"time"

	"github.com/acadfin/treasury/internal/cache"
	"github.com/acadfin/treasury/internal/domain/tariff"
	ierr "github.com/acadfin/treasury/internal/errors"
	"github.com/acadfin/treasury/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// TariffScope is the scope tuple of a create request. Cycle requires
// degree; degree fixes the degree type.
type TariffScope struct {
	DegreeTypeCode *string `json:"degree_type_code,omitempty"`
	DegreeCode     *string `json:"degree_code,omitempty"`
	CycleCode      *string `json:"cycle_code,omitempty"`
}

// CreateTariffRequest carries everything needed to register a priced rule.
type CreateTariffRequest struct {
	EntityID  string      `json:"entity_id"`
	ProductID string      `json:"product_id"`
	Scope     TariffScope `json:"scope"`

	BeginDate time.Time  `json:"begin_date"`
	EndDate   *time.Time `json:"end_date,omitempty"`

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

	InterestPolicy *tariff.InterestPolicy `json:"interest_policy,omitempty"`
}

func (r CreateTariffRequest) ToTariffRecord(ctx context.Context) *tariff.TariffRecord {
	return &tariff.TariffRecord{
		ID:                        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_TARIFF),
		EntityID:                  r.EntityID,
		ProductID:                 r.ProductID,
		BeginDate:                 r.BeginDate,
		EndDate:                   r.EndDate,
		ScopeDegreeTypeCode:       r.Scope.DegreeTypeCode,
		ScopeDegreeCode:           r.Scope.DegreeCode,
		ScopeCycleCode:            r.Scope.CycleCode,
		BaseAmount:                r.BaseAmount,
		UnitsForBase:              r.UnitsForBase,
		UnitAmount:                r.UnitAmount,
		PageAmount:                r.PageAmount,
		MaximumAmount:             r.MaximumAmount,
		UrgencyRatePercent:        r.UrgencyRatePercent,
		LanguageRatePercent:       r.LanguageRatePercent,
		DueDateType:               r.DueDateType,
		FixedDueDate:              r.FixedDueDate,
		NumberOfDaysAfterCreation: r.NumberOfDaysAfterCreation,
		InterestPolicy:            r.InterestPolicy,
		BaseModel:                 types.GetDefaultBaseModel(ctx),
	}
}

// EditTariffRequest mutates the only fields that stay mutable after
// creation: the date range and the interest policy.
type EditTariffRequest struct {
	BeginDate      time.Time              `json:"begin_date"`
	EndDate        *time.Time             `json:"end_date,omitempty"`
	InterestPolicy *tariff.InterestPolicy `json:"interest_policy,omitempty"`
}

type TariffService interface {
	Create(ctx context.Context, req CreateTariffRequest) (*tariff.TariffRecord, error)
	Get(ctx context.Context, id string) (*tariff.TariffRecord, error)
	Edit(ctx context.Context, id string, req EditTariffRequest) (*tariff.TariffRecord, error)
	Delete(ctx context.Context, id string) error

	// FindMatch resolves the most specific tariff applicable to the given
	// registration coordinates at the given instant, trying cycle+degree,
	// degree, degree type, then broad scope. It returns nil without error
	// when no level matches; more than one match at a level is fatal.
	FindMatch(ctx context.Context, entityID, productID, degreeTypeCode, degreeCode, cycleCode string, when time.Time) (*tariff.TariffRecord, error)
}

type tariffService struct {
	ServiceParams
}

func NewTariffService(params ServiceParams) TariffService {
	return &tariffService{
		ServiceParams: params,
	}
}

func (s *tariffService) Create(ctx context.Context, req CreateTariffRequest) (*tariff.TariffRecord, error) {
	record := req.ToTariffRecord(ctx)

	if err := record.Validate(); err != nil {
		s.Logger.Warnw("tariff creation validation failed",
			"error", err,
			"entity_id", req.EntityID,
			"product_id", req.ProductID,
		)
		return nil, err
	}

	if err := s.validateScopeCodes(ctx, record); err != nil {
		return nil, err
	}

	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		if err := s.validateNoOverlap(ctx, record); err != nil {
			return err
		}
		return s.TariffRepo.Create(ctx, record)
	})
	if err != nil {
		return nil, err
	}

	s.invalidateMatches(ctx, record.EntityID, record.ProductID)

	s.Logger.Infow("tariff created",
		"tariff_id", record.ID,
		"entity_id", record.EntityID,
		"product_id", record.ProductID,
		"scope_level", record.ScopeLevel(),
	)
	return record, nil
}

func (s *tariffService) Get(ctx context.Context, id string) (*tariff.TariffRecord, error) {
	if id == "" {
		return nil, ierr.NewError("tariff_id is required").
			WithHint("tariff id cannot be empty").
			Mark(ierr.ErrValidation)
	}
	return s.TariffRepo.Get(ctx, id)
}

func (s *tariffService) Edit(ctx context.Context, id string, req EditTariffRequest) (*tariff.TariffRecord, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	// The request is applied to a detached copy so a rejected edit never
	// leaves half-applied fields on the stored record.
	record := existing.Clone()
	record.BeginDate = req.BeginDate
	record.EndDate = req.EndDate
	record.InterestPolicy = req.InterestPolicy
	record.UpdatedAt = time.Now().UTC()
	record.UpdatedBy = types.GetUserID(ctx)

	// Invariants are re-checked after every field change, not just at
	// initial construction.
	if err := record.Validate(); err != nil {
		return nil, err
	}

	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		if err := s.validateNoOverlap(ctx, record); err != nil {
			return err
		}
		return s.TariffRepo.Update(ctx, record)
	})
	if err != nil {
		return nil, err
	}

	s.invalidateMatches(ctx, record.EntityID, record.ProductID)
	return record, nil
}

func (s *tariffService) Delete(ctx context.Context, id string) error {
	record, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	count, err := s.LineRepo.CountLinesByTariff(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return ierr.NewError("tariff is referenced by issued debt, cannot delete").
			WithReportableDetails(map[string]any{
				"tariff_id":  id,
				"line_count": count,
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		return s.TariffRepo.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	s.invalidateMatches(ctx, record.EntityID, record.ProductID)
	return nil
}

func (s *tariffService) FindMatch(ctx context.Context, entityID, productID, degreeTypeCode, degreeCode, cycleCode string, when time.Time) (*tariff.TariffRecord, error) {
	cacheKey := cache.GenerateKey(cache.PrefixTariffMatch,
		entityID, productID, degreeTypeCode, degreeCode, cycleCode, when.Format("2006-01-02"))
	if s.Cache != nil {
		if cached, found := s.Cache.Get(ctx, cacheKey); found {
			if record, ok := cached.(*tariff.TariffRecord); ok {
				return record.Clone(), nil
			}
		}
	}

	candidates, err := s.TariffRepo.ListByEntityProduct(ctx, entityID, productID)
	if err != nil {
		return nil, err
	}

	active := lo.Filter(candidates, func(t *tariff.TariffRecord, _ int) bool {
		return t.IsActiveAt(when)
	})

	for _, level := range types.ScopeLevelsMostSpecificFirst {
		matches := lo.Filter(active, func(t *tariff.TariffRecord, _ int) bool {
			return t.MatchesScope(level, degreeTypeCode, degreeCode, cycleCode)
		})
		switch len(matches) {
		case 0:
			continue
		case 1:
			// Callers and the cache each get their own copy; neither the
			// cached entry nor a returned record tracks later mutations of
			// the stored one.
			if s.Cache != nil {
				s.Cache.Set(ctx, cacheKey, matches[0].Clone(), s.Config.Treasury.MatchCacheTTL)
			}
			return matches[0].Clone(), nil
		default:
			// Never silently pick one of several matches; this is a
			// configuration error that can only surface at read time.
			return nil, ierr.NewError("more than one active tariff matches").
				WithHintf("ambiguous tariff configuration for product %s at scope level %s", productID, level).
				WithReportableDetails(map[string]any{
					"entity_id":   entityID,
					"product_id":  productID,
					"scope_level": level,
					"when":        when,
					"tariff_ids":  lo.Map(matches, func(t *tariff.TariffRecord, _ int) string { return t.ID }),
				}).
				Mark(ierr.ErrAmbiguousMatch)
		}
	}

	return nil, nil
}

// validateScopeCodes checks the scope tuple against the academic catalog:
// the degree must exist, carry the declared degree type and offer the cycle.
func (s *tariffService) validateScopeCodes(ctx context.Context, record *tariff.TariffRecord) error {
	if record.ScopeDegreeTypeCode != nil {
		if _, err := s.DegreeRepo.GetDegreeType(ctx, *record.ScopeDegreeTypeCode); err != nil {
			return err
		}
	}
	if record.ScopeDegreeCode == nil {
		return nil
	}

	degree, err := s.DegreeRepo.GetDegree(ctx, *record.ScopeDegreeCode)
	if err != nil {
		return err
	}
	if degree.DegreeTypeCode != *record.ScopeDegreeTypeCode {
		return ierr.NewError("degree does not belong to the declared degree type").
			WithReportableDetails(map[string]any{
				"degree_code":        degree.Code,
				"degree_type_code":   degree.DegreeTypeCode,
				"declared_type_code": *record.ScopeDegreeTypeCode,
			}).
			Mark(ierr.ErrValidation)
	}
	if record.ScopeCycleCode != nil && !degree.HasCycle(*record.ScopeCycleCode) {
		return ierr.NewError("degree does not offer the declared cycle").
			WithReportableDetails(map[string]any{
				"degree_code": degree.Code,
				"cycle_code":  *record.ScopeCycleCode,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// validateNoOverlap rejects the record when an existing active record at
// the same or broader scope overlaps its date interval. Narrower scopes
// coexist independently.
func (s *tariffService) validateNoOverlap(ctx context.Context, record *tariff.TariffRecord) error {
	existing, err := s.TariffRepo.ListByEntityProduct(ctx, record.EntityID, record.ProductID)
	if err != nil {
		return err
	}

	for _, other := range existing {
		if other.ID == record.ID || other.Status != types.StatusActive {
			continue
		}
		if other.ScopeCovers(record) && other.OverlapsWith(record) {
			return ierr.NewError("tariff interval overlaps an existing tariff").
				WithHint("an active tariff at the same or broader scope already covers part of this interval").
				WithReportableDetails(map[string]any{
					"tariff_id":   other.ID,
					"scope_level": other.ScopeLevel(),
					"begin_date":  other.BeginDate,
					"end_date":    other.EndDate,
				}).
				Mark(ierr.ErrOverlappingInterval)
		}
	}
	return nil
}

func (s *tariffService) invalidateMatches(ctx context.Context, entityID, productID string) {
	if s.Cache == nil {
		return
	}
	s.Cache.DeleteByPrefix(ctx, cache.GenerateKey(cache.PrefixTariffMatch, entityID, productID))
}
