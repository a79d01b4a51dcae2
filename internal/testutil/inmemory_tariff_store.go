package testutil

import (
	"context"

	"github.com/acadfin/treasury/internal/domain/tariff"
	ierr "github.com/acadfin/treasury/internal/errors"
	"github.com/acadfin/treasury/internal/types"
)

// InMemoryTariffStore implements tariff.Repository
type InMemoryTariffStore struct {
	*InMemoryStore[*tariff.TariffRecord]
}

func NewInMemoryTariffStore() *InMemoryTariffStore {
	return &InMemoryTariffStore{
		InMemoryStore: NewInMemoryStore[*tariff.TariffRecord](),
	}
}

type tariffFilter struct {
	entityID  string
	productID string
}

func tariffFilterFn(ctx context.Context, t *tariff.TariffRecord, filter interface{}) bool {
	if t == nil || t.Status == types.StatusDeleted {
		return false
	}
	if !CheckInstitutionFilter(ctx, t.InstitutionID) {
		return false
	}

	f, ok := filter.(tariffFilter)
	if !ok {
		return true
	}
	return t.EntityID == f.entityID && t.ProductID == f.productID
}

func tariffSortFn(i, j *tariff.TariffRecord) bool {
	if i.CreatedAt.Equal(j.CreatedAt) {
		return i.ID > j.ID
	}
	return i.CreatedAt.After(j.CreatedAt)
}

func (s *InMemoryTariffStore) Create(ctx context.Context, t *tariff.TariffRecord) error {
	if t == nil {
		return ierr.NewError("tariff cannot be nil").
			Mark(ierr.ErrValidation)
	}

	if err := s.InMemoryStore.Create(ctx, t.ID, t); err != nil {
		return ierr.WithError(err).
			WithHint("a tariff with this identifier already exists").
			WithReportableDetails(map[string]any{
				"tariff_id": t.ID,
			}).
			Mark(ierr.ErrAlreadyExists)
	}
	return nil
}

func (s *InMemoryTariffStore) Get(ctx context.Context, id string) (*tariff.TariffRecord, error) {
	t, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHintf("tariff with ID %s was not found", id).
			Mark(ierr.ErrNotFound)
	}
	return t, nil
}

func (s *InMemoryTariffStore) Update(ctx context.Context, t *tariff.TariffRecord) error {
	if t == nil {
		return ierr.NewError("tariff cannot be nil").
			Mark(ierr.ErrValidation)
	}

	if err := s.InMemoryStore.Update(ctx, t.ID, t); err != nil {
		return ierr.WithError(err).
			WithHintf("tariff with ID %s was not found", t.ID).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func (s *InMemoryTariffStore) Delete(ctx context.Context, id string) error {
	if err := s.InMemoryStore.Delete(ctx, id); err != nil {
		return ierr.WithError(err).
			WithHintf("tariff with ID %s was not found", id).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func (s *InMemoryTariffStore) ListByEntityProduct(ctx context.Context, entityID, productID string) ([]*tariff.TariffRecord, error) {
	return s.InMemoryStore.List(ctx, tariffFilter{entityID: entityID, productID: productID}, tariffFilterFn, tariffSortFn)
}
