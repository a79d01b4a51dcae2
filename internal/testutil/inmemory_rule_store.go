package testutil

import (
	"context"

	"github.com/acadfin/treasury/internal/domain/rule"
	ierr "github.com/acadfin/treasury/internal/errors"
	"github.com/acadfin/treasury/internal/types"
)

// InMemoryRuleStore implements rule.Repository
type InMemoryRuleStore struct {
	*InMemoryStore[*rule.GenerationRule]
}

func NewInMemoryRuleStore() *InMemoryRuleStore {
	return &InMemoryRuleStore{
		InMemoryStore: NewInMemoryStore[*rule.GenerationRule](),
	}
}

type ruleFilter struct {
	kind     types.RuleKind
	periodID string
}

func ruleFilterFn(ctx context.Context, r *rule.GenerationRule, filter interface{}) bool {
	if r == nil || r.Status == types.StatusDeleted {
		return false
	}
	if !CheckInstitutionFilter(ctx, r.InstitutionID) {
		return false
	}

	f, ok := filter.(ruleFilter)
	if !ok {
		return true
	}
	if r.Kind != f.kind {
		return false
	}
	return f.periodID == "" || r.ExecutionPeriodID == f.periodID
}

func ruleSortFn(i, j *rule.GenerationRule) bool {
	if i.OrderNumber == j.OrderNumber {
		return i.ID < j.ID
	}
	return i.OrderNumber < j.OrderNumber
}

func (s *InMemoryRuleStore) Create(ctx context.Context, r *rule.GenerationRule) error {
	if r == nil {
		return ierr.NewError("rule cannot be nil").
			Mark(ierr.ErrValidation)
	}

	if err := s.InMemoryStore.Create(ctx, r.ID, r); err != nil {
		return ierr.WithError(err).
			WithHint("a rule with this identifier already exists").
			WithReportableDetails(map[string]any{
				"rule_id": r.ID,
			}).
			Mark(ierr.ErrAlreadyExists)
	}
	return nil
}

func (s *InMemoryRuleStore) Get(ctx context.Context, id string) (*rule.GenerationRule, error) {
	r, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHintf("rule with ID %s was not found", id).
			Mark(ierr.ErrNotFound)
	}
	return r, nil
}

func (s *InMemoryRuleStore) Update(ctx context.Context, r *rule.GenerationRule) error {
	if r == nil {
		return ierr.NewError("rule cannot be nil").
			Mark(ierr.ErrValidation)
	}

	if err := s.InMemoryStore.Update(ctx, r.ID, r); err != nil {
		return ierr.WithError(err).
			WithHintf("rule with ID %s was not found", r.ID).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func (s *InMemoryRuleStore) Delete(ctx context.Context, id string) error {
	if err := s.InMemoryStore.Delete(ctx, id); err != nil {
		return ierr.WithError(err).
			WithHintf("rule with ID %s was not found", id).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func (s *InMemoryRuleStore) ListByKindAndPeriod(ctx context.Context, kind types.RuleKind, periodID string) ([]*rule.GenerationRule, error) {
	return s.InMemoryStore.List(ctx, ruleFilter{kind: kind, periodID: periodID}, ruleFilterFn, ruleSortFn)
}

func (s *InMemoryRuleStore) ListByKind(ctx context.Context, kind types.RuleKind) ([]*rule.GenerationRule, error) {
	return s.InMemoryStore.List(ctx, ruleFilter{kind: kind}, ruleFilterFn, ruleSortFn)
}
