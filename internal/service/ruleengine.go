package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/acadfin/treasury/internal/domain/rule"
	ierr "github.com/acadfin/treasury/internal/errors"
	"github.com/acadfin/treasury/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc/pool"
)

// suppressedBatchMessages is the fixed allow-list of routine skip
// conditions that are kept out of the error log during batch runs.
var suppressedBatchMessages = []string{
	"no eligible registrations",
	"no unreferenced debit lines",
	"event already charged",
}

type CreateRuleEntryRequest struct {
	ProductID     string `json:"product_id"`
	ForceCreation bool   `json:"force_creation"`
	NumberOfUnits int    `json:"number_of_units"`
	NumberOfPages int    `json:"number_of_pages"`
}

type CreateRuleRestrictionRequest struct {
	Kind             types.RestrictionKind `json:"kind"`
	ExcludeIfMatches bool                  `json:"exclude_if_matches"`
	Parameters       map[string]string     `json:"parameters,omitempty"`
}

type CreateRuleRequest struct {
	Kind              types.RuleKind `json:"kind"`
	EntityID          string         `json:"entity_id"`
	ExecutionPeriodID string         `json:"execution_period_id"`

	Active              bool `json:"active"`
	BackgroundExecution bool `json:"background_execution"`

	AggregateOnDebitNote  bool `json:"aggregate_on_debit_note"`
	AggregateAllOrNothing bool `json:"aggregate_all_or_nothing"`
	CloseDebitNote        bool `json:"close_debit_note"`

	GeneratePaymentReference    bool             `json:"generate_payment_reference"`
	MinimumAmountForPaymentCode *decimal.Decimal `json:"minimum_amount_for_payment_code,omitempty"`

	Entries      []CreateRuleEntryRequest       `json:"entries"`
	Restrictions []CreateRuleRestrictionRequest `json:"restrictions"`
}

type EditRuleRequest struct {
	Active              bool `json:"active"`
	BackgroundExecution bool `json:"background_execution"`

	AggregateOnDebitNote  bool `json:"aggregate_on_debit_note"`
	AggregateAllOrNothing bool `json:"aggregate_all_or_nothing"`
	CloseDebitNote        bool `json:"close_debit_note"`

	GeneratePaymentReference    bool             `json:"generate_payment_reference"`
	MinimumAmountForPaymentCode *decimal.Decimal `json:"minimum_amount_for_payment_code,omitempty"`

	Entries      []CreateRuleEntryRequest       `json:"entries"`
	Restrictions []CreateRuleRestrictionRequest `json:"restrictions"`
}

type RuleEngine interface {
	CreateRule(ctx context.Context, req CreateRuleRequest) (*rule.GenerationRule, error)
	GetRule(ctx context.Context, id string) (*rule.GenerationRule, error)
	EditRule(ctx context.Context, id string, req EditRuleRequest) (*rule.GenerationRule, error)
	DeleteRule(ctx context.Context, id string) error

	// CopyRule clones a rule into a new execution period. The clone is
	// appended at the end of that period's order sequence and links back
	// to its origin; entries and restrictions are deep-copied.
	CopyRule(ctx context.Context, id string, targetPeriodID string) (*rule.GenerationRule, error)

	MoveRuleUp(ctx context.Context, id string) error
	MoveRuleDown(ctx context.Context, id string) error
	ActivateRule(ctx context.Context, id string) error
	InactivateRule(ctx context.Context, id string) error

	// RunAllActive executes every active rule, kinds in their declared
	// order and rules in order number order, each rule as an isolated
	// unit of work. Task errors are classified and logged, never
	// propagated; failed tasks simply contribute no results.
	RunAllActive(ctx context.Context, backgroundOnly bool) ([]*RuleExecutionResult, error)

	// RunRuleForRegistration executes one rule for one registration.
	RunRuleForRegistration(ctx context.Context, ruleID string, registrationID string) ([]*RuleExecutionResult, error)
}

type ruleEngine struct {
	ServiceParams
	strategies   map[types.RuleKind]RuleStrategy
	restrictions *restrictionSet
}

func NewRuleEngine(params ServiceParams) RuleEngine {
	restrictions := newRestrictionSet(params)
	issuance := NewIssuanceService(params)

	strategies := map[types.RuleKind]RuleStrategy{}
	for _, strategy := range []RuleStrategy{
		&tariffIssuanceStrategy{ServiceParams: params, issuance: issuance, restrictions: restrictions},
		&paymentReferenceBackfillStrategy{ServiceParams: params, restrictions: restrictions},
	} {
		strategies[strategy.Kind()] = strategy
	}

	return &ruleEngine{
		ServiceParams: params,
		strategies:    strategies,
		restrictions:  restrictions,
	}
}

func (s *ruleEngine) CreateRule(ctx context.Context, req CreateRuleRequest) (*rule.GenerationRule, error) {
	strategy, err := s.resolveStrategy(req.Kind)
	if err != nil {
		return nil, err
	}
	if strategy.RequiresEntries() && len(req.Entries) == 0 {
		return nil, ierr.NewError("rule kind requires product entries").
			WithHintf("rules of kind %s must carry at least one entry", req.Kind).
			Mark(ierr.ErrValidation)
	}

	newRule := &rule.GenerationRule{
		ID:                          types.GenerateUUIDWithPrefix(types.UUID_PREFIX_GENERATION_RULE),
		Kind:                        req.Kind,
		EntityID:                    req.EntityID,
		ExecutionPeriodID:           req.ExecutionPeriodID,
		Active:                      req.Active,
		BackgroundExecution:         req.BackgroundExecution,
		AggregateOnDebitNote:        req.AggregateOnDebitNote,
		AggregateAllOrNothing:       req.AggregateAllOrNothing,
		CloseDebitNote:              req.CloseDebitNote,
		GeneratePaymentReference:    req.GeneratePaymentReference,
		MinimumAmountForPaymentCode: req.MinimumAmountForPaymentCode,
		BaseModel:                   types.GetDefaultBaseModel(ctx),
	}
	newRule.Entries = s.buildEntries(ctx, newRule.ID, req.Entries)
	newRule.Restrictions, err = s.buildRestrictions(ctx, newRule.ID, req.Restrictions)
	if err != nil {
		return nil, err
	}

	if err := newRule.Validate(); err != nil {
		return nil, err
	}

	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		siblings, err := s.RuleRepo.ListByKindAndPeriod(ctx, newRule.Kind, newRule.ExecutionPeriodID)
		if err != nil {
			return err
		}
		newRule.OrderNumber = nextOrderNumber(siblings)
		return s.RuleRepo.Create(ctx, newRule)
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("generation rule created",
		"rule_id", newRule.ID,
		"kind", newRule.Kind,
		"period_id", newRule.ExecutionPeriodID,
		"order_number", newRule.OrderNumber,
	)
	return newRule, nil
}

func (s *ruleEngine) GetRule(ctx context.Context, id string) (*rule.GenerationRule, error) {
	if id == "" {
		return nil, ierr.NewError("rule_id is required").
			Mark(ierr.ErrValidation)
	}
	return s.RuleRepo.Get(ctx, id)
}

func (s *ruleEngine) EditRule(ctx context.Context, id string, req EditRuleRequest) (*rule.GenerationRule, error) {
	existing, err := s.GetRule(ctx, id)
	if err != nil {
		return nil, err
	}

	strategy, err := s.resolveStrategy(existing.Kind)
	if err != nil {
		return nil, err
	}
	if strategy.RequiresEntries() && len(req.Entries) == 0 {
		return nil, ierr.NewError("rule kind requires product entries").
			WithHintf("rules of kind %s must carry at least one entry", existing.Kind).
			Mark(ierr.ErrValidation)
	}

	// The request is applied to a detached copy so a rejected edit never
	// leaves half-applied fields on the stored rule. Entries and
	// restrictions are rebuilt wholesale from the request.
	updated := *existing
	updated.Active = req.Active
	updated.BackgroundExecution = req.BackgroundExecution
	updated.AggregateOnDebitNote = req.AggregateOnDebitNote
	updated.AggregateAllOrNothing = req.AggregateAllOrNothing
	updated.CloseDebitNote = req.CloseDebitNote
	updated.GeneratePaymentReference = req.GeneratePaymentReference
	updated.MinimumAmountForPaymentCode = req.MinimumAmountForPaymentCode
	updated.Entries = s.buildEntries(ctx, updated.ID, req.Entries)
	updated.Restrictions, err = s.buildRestrictions(ctx, updated.ID, req.Restrictions)
	if err != nil {
		return nil, err
	}
	updated.UpdatedAt = time.Now().UTC()
	updated.UpdatedBy = types.GetUserID(ctx)

	// Invariants are re-checked after every mutation.
	if err := updated.Validate(); err != nil {
		return nil, err
	}

	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		return s.RuleRepo.Update(ctx, &updated)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *ruleEngine) DeleteRule(ctx context.Context, id string) error {
	existing, err := s.GetRule(ctx, id)
	if err != nil {
		return err
	}
	if existing.Active {
		return ierr.NewError("active rules cannot be deleted").
			WithHint("inactivate the rule before deleting it").
			Mark(ierr.ErrInvalidOperation)
	}
	return s.DB.WithTx(ctx, func(ctx context.Context) error {
		return s.RuleRepo.Delete(ctx, id)
	})
}

func (s *ruleEngine) CopyRule(ctx context.Context, id string, targetPeriodID string) (*rule.GenerationRule, error) {
	origin, err := s.GetRule(ctx, id)
	if err != nil {
		return nil, err
	}
	if targetPeriodID == "" {
		return nil, ierr.NewError("target execution period is required").
			Mark(ierr.ErrValidation)
	}

	clone := *origin
	clone.ID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_GENERATION_RULE)
	clone.ExecutionPeriodID = targetPeriodID
	clone.CopiedFromID = origin.ID
	clone.BaseModel = types.GetDefaultBaseModel(ctx)
	clone.Entries = lo.Map(origin.Entries, func(e *rule.RuleEntry, _ int) *rule.RuleEntry {
		return e.Copy(clone.ID)
	})
	clone.Restrictions = lo.Map(origin.Restrictions, func(r *rule.RuleRestriction, _ int) *rule.RuleRestriction {
		return r.Copy(clone.ID)
	})

	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		siblings, err := s.RuleRepo.ListByKindAndPeriod(ctx, clone.Kind, targetPeriodID)
		if err != nil {
			return err
		}
		clone.OrderNumber = nextOrderNumber(siblings)
		return s.RuleRepo.Create(ctx, &clone)
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("generation rule copied",
		"rule_id", clone.ID,
		"origin_rule_id", origin.ID,
		"target_period_id", targetPeriodID,
	)
	return &clone, nil
}

func (s *ruleEngine) MoveRuleUp(ctx context.Context, id string) error {
	return s.swapWithNeighbour(ctx, id, -1)
}

func (s *ruleEngine) MoveRuleDown(ctx context.Context, id string) error {
	return s.swapWithNeighbour(ctx, id, +1)
}

func (s *ruleEngine) ActivateRule(ctx context.Context, id string) error {
	return s.setActive(ctx, id, true)
}

func (s *ruleEngine) InactivateRule(ctx context.Context, id string) error {
	return s.setActive(ctx, id, false)
}

func (s *ruleEngine) RunAllActive(ctx context.Context, backgroundOnly bool) ([]*RuleExecutionResult, error) {
	asOf := time.Now().UTC()

	results := make([]*RuleExecutionResult, 0)
	var mu sync.Mutex

	// Kinds run behind a barrier so later kinds observe the debt created
	// by earlier ones. Within a kind the default single-worker pool
	// preserves order number sequencing; operators opting into more
	// workers accept interleaving inside the kind.
	for _, kind := range types.RuleKindsInExecutionOrder {
		rules, err := s.RuleRepo.ListByKind(ctx, kind)
		if err != nil {
			return nil, err
		}
		runnable := lo.Filter(rules, func(r *rule.GenerationRule, _ int) bool {
			return r.Active && (!backgroundOnly || r.BackgroundExecution)
		})

		p := pool.New().WithMaxGoroutines(s.Config.Treasury.RuleWorkers)
		for _, r := range runnable {
			p.Go(func() {
				ruleResults, err := s.executeRule(ctx, r, asOf)
				if err != nil {
					s.logTaskError(r, err)
					return
				}
				mu.Lock()
				results = append(results, ruleResults...)
				mu.Unlock()
			})
		}
		p.Wait()
	}

	return results, nil
}

func (s *ruleEngine) RunRuleForRegistration(ctx context.Context, ruleID string, registrationID string) ([]*RuleExecutionResult, error) {
	r, err := s.GetRule(ctx, ruleID)
	if err != nil {
		return nil, err
	}
	strategy, err := s.resolveStrategy(r.Kind)
	if err != nil {
		return nil, err
	}
	reg, err := s.RegistrationRepo.Get(ctx, registrationID)
	if err != nil {
		return nil, err
	}

	var results []*RuleExecutionResult
	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		var txErr error
		results, txErr = strategy.ProcessSubject(ctx, r, reg, time.Now().UTC())
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// executeRule runs one rule as its own isolated unit of work so that one
// rule's failure cannot corrupt or block another's.
func (s *ruleEngine) executeRule(ctx context.Context, r *rule.GenerationRule, asOf time.Time) ([]*RuleExecutionResult, error) {
	strategy, err := s.resolveStrategy(r.Kind)
	if err != nil {
		return nil, err
	}

	var results []*RuleExecutionResult
	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		var txErr error
		results, txErr = strategy.Process(ctx, r, asOf)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (s *ruleEngine) resolveStrategy(kind types.RuleKind) (RuleStrategy, error) {
	strategy, ok := s.strategies[kind]
	if !ok {
		return nil, ierr.NewError("unresolvable rule kind").
			WithHintf("rule kind %s is not registered", kind).
			Mark(ierr.ErrValidation)
	}
	return strategy, nil
}

func (s *ruleEngine) logTaskError(r *rule.GenerationRule, err error) {
	for _, suppressed := range suppressedBatchMessages {
		if strings.Contains(err.Error(), suppressed) {
			s.Logger.Debugw("rule skipped",
				"rule_id", r.ID,
				"kind", r.Kind,
				"reason", err.Error(),
			)
			return
		}
	}
	s.Logger.Errorw("rule execution failed",
		"rule_id", r.ID,
		"kind", r.Kind,
		"error", err,
	)
}

func (s *ruleEngine) buildEntries(ctx context.Context, ruleID string, reqs []CreateRuleEntryRequest) []*rule.RuleEntry {
	return lo.Map(reqs, func(req CreateRuleEntryRequest, _ int) *rule.RuleEntry {
		return &rule.RuleEntry{
			ID:            types.GenerateUUIDWithPrefix(types.UUID_PREFIX_RULE_ENTRY),
			RuleID:        ruleID,
			ProductID:     req.ProductID,
			ForceCreation: req.ForceCreation,
			NumberOfUnits: req.NumberOfUnits,
			NumberOfPages: req.NumberOfPages,
			BaseModel:     types.GetDefaultBaseModel(ctx),
		}
	})
}

func (s *ruleEngine) buildRestrictions(ctx context.Context, ruleID string, reqs []CreateRuleRestrictionRequest) ([]*rule.RuleRestriction, error) {
	restrictions := make([]*rule.RuleRestriction, 0, len(reqs))
	for _, req := range reqs {
		if !s.restrictions.resolvable(req.Kind) {
			return nil, ierr.NewError("unresolvable restriction kind").
				WithHintf("restriction kind %s is not registered", req.Kind).
				Mark(ierr.ErrValidation)
		}
		restrictions = append(restrictions, &rule.RuleRestriction{
			ID:               types.GenerateUUIDWithPrefix(types.UUID_PREFIX_RULE_RESTRICTION),
			RuleID:           ruleID,
			Kind:             req.Kind,
			ExcludeIfMatches: req.ExcludeIfMatches,
			Parameters:       req.Parameters,
			BaseModel:        types.GetDefaultBaseModel(ctx),
		})
	}
	return restrictions, nil
}

func (s *ruleEngine) setActive(ctx context.Context, id string, active bool) error {
	existing, err := s.GetRule(ctx, id)
	if err != nil {
		return err
	}
	if existing.Active == active {
		return nil
	}
	updated := *existing
	updated.Active = active
	updated.UpdatedAt = time.Now().UTC()
	updated.UpdatedBy = types.GetUserID(ctx)
	if err := updated.Validate(); err != nil {
		return err
	}
	return s.DB.WithTx(ctx, func(ctx context.Context) error {
		return s.RuleRepo.Update(ctx, &updated)
	})
}

// swapWithNeighbour exchanges order numbers with the previous or next rule
// of the same kind and period.
func (s *ruleEngine) swapWithNeighbour(ctx context.Context, id string, direction int) error {
	existing, err := s.GetRule(ctx, id)
	if err != nil {
		return err
	}

	return s.DB.WithTx(ctx, func(ctx context.Context) error {
		siblings, err := s.RuleRepo.ListByKindAndPeriod(ctx, existing.Kind, existing.ExecutionPeriodID)
		if err != nil {
			return err
		}
		idx := lo.IndexOf(lo.Map(siblings, func(r *rule.GenerationRule, _ int) string { return r.ID }), id)
		if idx < 0 {
			return ierr.NewError("rule not found among its siblings").
				Mark(ierr.ErrSystem)
		}
		neighbourIdx := idx + direction
		if neighbourIdx < 0 || neighbourIdx >= len(siblings) {
			// Already at the edge of the sequence.
			return nil
		}

		current := siblings[idx]
		neighbour := siblings[neighbourIdx]
		current.OrderNumber, neighbour.OrderNumber = neighbour.OrderNumber, current.OrderNumber

		if err := s.RuleRepo.Update(ctx, current); err != nil {
			return err
		}
		return s.RuleRepo.Update(ctx, neighbour)
	})
}

func nextOrderNumber(siblings []*rule.GenerationRule) int {
	next := 1
	for _, sibling := range siblings {
		if sibling.OrderNumber >= next {
			next = sibling.OrderNumber + 1
		}
	}
	return next
}
