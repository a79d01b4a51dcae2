package rule

import (
	"context"

	"github.com/acadfin/treasury/internal/types"
)

type Repository interface {
	Create(ctx context.Context, rule *GenerationRule) error
	Get(ctx context.Context, id string) (*GenerationRule, error)
	Update(ctx context.Context, rule *GenerationRule) error
	Delete(ctx context.Context, id string) error

	// ListByKindAndPeriod returns the non-deleted rules for the pair in
	// order number order, ties broken by id.
	ListByKindAndPeriod(ctx context.Context, kind types.RuleKind, periodID string) ([]*GenerationRule, error)

	// ListByKind returns every non-deleted rule of the kind across
	// periods, ordered like ListByKindAndPeriod.
	ListByKind(ctx context.Context, kind types.RuleKind) ([]*GenerationRule, error)
}
