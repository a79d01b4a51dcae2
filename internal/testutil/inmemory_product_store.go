package testutil

import (
	"context"

	"github.com/acadfin/treasury/internal/domain/product"
	ierr "github.com/acadfin/treasury/internal/errors"
)

// InMemoryProductStore implements product.Repository
type InMemoryProductStore struct {
	*InMemoryStore[*product.Product]
}

func NewInMemoryProductStore() *InMemoryProductStore {
	return &InMemoryProductStore{
		InMemoryStore: NewInMemoryStore[*product.Product](),
	}
}

func productFilterFn(ctx context.Context, p *product.Product, filter interface{}) bool {
	if p == nil {
		return false
	}
	return CheckInstitutionFilter(ctx, p.InstitutionID)
}

func productSortFn(i, j *product.Product) bool {
	return i.Code < j.Code
}

func (s *InMemoryProductStore) Create(ctx context.Context, p *product.Product) error {
	if p == nil {
		return ierr.NewError("product cannot be nil").
			Mark(ierr.ErrValidation)
	}

	if err := s.InMemoryStore.Create(ctx, p.ID, p); err != nil {
		return ierr.WithError(err).
			WithHint("a product with this identifier already exists").
			WithReportableDetails(map[string]any{
				"product_id": p.ID,
			}).
			Mark(ierr.ErrAlreadyExists)
	}
	return nil
}

func (s *InMemoryProductStore) Get(ctx context.Context, id string) (*product.Product, error) {
	p, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHintf("product with ID %s was not found", id).
			Mark(ierr.ErrNotFound)
	}
	return p, nil
}

func (s *InMemoryProductStore) GetByCode(ctx context.Context, code string) (*product.Product, error) {
	products, err := s.InMemoryStore.List(ctx, nil, productFilterFn, nil)
	if err != nil {
		return nil, err
	}
	for _, p := range products {
		if p.Code == code {
			return p, nil
		}
	}
	return nil, ierr.NewError("product not found").
		WithHintf("product with code %s was not found", code).
		Mark(ierr.ErrNotFound)
}

func (s *InMemoryProductStore) List(ctx context.Context) ([]*product.Product, error) {
	return s.InMemoryStore.List(ctx, nil, productFilterFn, productSortFn)
}
