package service

import (
	"context"

	"github.com/acadfin/treasury/internal/domain/academic"
	"github.com/acadfin/treasury/internal/domain/debt"
	"github.com/acadfin/treasury/internal/domain/rule"
	ierr "github.com/acadfin/treasury/internal/errors"
	"github.com/acadfin/treasury/internal/types"
	"github.com/samber/lo"
)

// restrictionCondition evaluates the base condition of one restriction
// kind for a registration, before the exclude-if-matches inversion.
type restrictionCondition func(ctx context.Context, r *rule.GenerationRule, reg *academic.Registration) (bool, error)

// restrictionSet is the closed registry of restriction kinds. It replaces
// the host's reflection-by-class-name lookup; a persisted restriction
// referencing a kind outside this table is a configuration error caught at
// rule creation.
type restrictionSet struct {
	conditions map[types.RestrictionKind]restrictionCondition
}

func newRestrictionSet(params ServiceParams) *restrictionSet {
	set := &restrictionSet{conditions: map[types.RestrictionKind]restrictionCondition{}}

	set.conditions[types.RestrictionFirstTimeStudent] = func(ctx context.Context, r *rule.GenerationRule, reg *academic.Registration) (bool, error) {
		return reg.IsFirstTimeIn(r.ExecutionPeriodID), nil
	}

	set.conditions[types.RestrictionEnrollmentRenewal] = func(ctx context.Context, r *rule.GenerationRule, reg *academic.Registration) (bool, error) {
		return reg.IsEnrolledIn(r.ExecutionPeriodID) && !reg.IsFirstTimeIn(r.ExecutionPeriodID), nil
	}

	set.conditions[types.RestrictionNoExistingPaymentReference] = func(ctx context.Context, r *rule.GenerationRule, reg *academic.Registration) (bool, error) {
		events, err := params.EventRepo.ListEventsBySubject(ctx, reg.ID)
		if err != nil {
			return false, err
		}
		for _, event := range events {
			if event.IsAnnulled() {
				continue
			}
			lines, err := params.LineRepo.ListLinesByEvent(ctx, event.ID)
			if err != nil {
				return false, err
			}
			referenced := lo.SomeBy(lines, func(l *debt.DebitLine) bool {
				return l.Status == types.DebitLineActive && l.PaymentReferenceID != ""
			})
			if referenced {
				return false, nil
			}
		}
		return true, nil
	}

	return set
}

// resolvable reports whether the kind is registered.
func (s *restrictionSet) resolvable(kind types.RestrictionKind) bool {
	_, ok := s.conditions[kind]
	return ok
}

// test evaluates one restriction for a registration. The result is the
// base condition XOR the restriction's exclude flag, so the same kind can
// either require or exclude a match.
func (s *restrictionSet) test(ctx context.Context, r *rule.GenerationRule, restriction *rule.RuleRestriction, reg *academic.Registration) (bool, error) {
	condition, ok := s.conditions[restriction.Kind]
	if !ok {
		return false, ierr.NewError("unresolvable restriction kind").
			WithHintf("restriction kind %s is not registered", restriction.Kind).
			Mark(ierr.ErrValidation)
	}
	matched, err := condition(ctx, r, reg)
	if err != nil {
		return false, err
	}
	return matched != restriction.ExcludeIfMatches, nil
}

// eligible reports whether the registration passes every restriction
// attached to the rule.
func (s *restrictionSet) eligible(ctx context.Context, r *rule.GenerationRule, reg *academic.Registration) (bool, error) {
	for _, restriction := range r.Restrictions {
		pass, err := s.test(ctx, r, restriction, reg)
		if err != nil {
			return false, err
		}
		if !pass {
			return false, nil
		}
	}
	return true, nil
}
