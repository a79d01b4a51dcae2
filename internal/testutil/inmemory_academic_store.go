package testutil

import (
	"context"

	"github.com/acadfin/treasury/internal/domain/academic"
	ierr "github.com/acadfin/treasury/internal/errors"
)

// InMemoryRegistrationStore implements academic.RegistrationRepository
type InMemoryRegistrationStore struct {
	*InMemoryStore[*academic.Registration]
}

func NewInMemoryRegistrationStore() *InMemoryRegistrationStore {
	return &InMemoryRegistrationStore{
		InMemoryStore: NewInMemoryStore[*academic.Registration](),
	}
}

// Add seeds a registration into the store, failing the caller on conflict.
func (s *InMemoryRegistrationStore) Add(ctx context.Context, reg *academic.Registration) error {
	return s.InMemoryStore.Create(ctx, reg.ID, reg)
}

func (s *InMemoryRegistrationStore) Get(ctx context.Context, id string) (*academic.Registration, error) {
	reg, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHintf("registration with ID %s was not found", id).
			Mark(ierr.ErrNotFound)
	}
	return reg, nil
}

func (s *InMemoryRegistrationStore) ListByPeriod(ctx context.Context, periodID string) ([]*academic.Registration, error) {
	filterFn := func(ctx context.Context, reg *academic.Registration, _ interface{}) bool {
		if reg == nil || !CheckInstitutionFilter(ctx, reg.InstitutionID) {
			return false
		}
		return reg.IsEnrolledIn(periodID)
	}
	sortFn := func(i, j *academic.Registration) bool {
		return i.ID < j.ID
	}
	return s.InMemoryStore.List(ctx, nil, filterFn, sortFn)
}

// InMemoryDegreeStore implements academic.DegreeRepository. Degrees and
// degree types are keyed by code.
type InMemoryDegreeStore struct {
	degrees     *InMemoryStore[*academic.Degree]
	degreeTypes *InMemoryStore[*academic.DegreeType]
}

func NewInMemoryDegreeStore() *InMemoryDegreeStore {
	return &InMemoryDegreeStore{
		degrees:     NewInMemoryStore[*academic.Degree](),
		degreeTypes: NewInMemoryStore[*academic.DegreeType](),
	}
}

func (s *InMemoryDegreeStore) AddDegree(ctx context.Context, d *academic.Degree) error {
	return s.degrees.Create(ctx, d.Code, d)
}

func (s *InMemoryDegreeStore) AddDegreeType(ctx context.Context, dt *academic.DegreeType) error {
	return s.degreeTypes.Create(ctx, dt.Code, dt)
}

func (s *InMemoryDegreeStore) GetDegree(ctx context.Context, code string) (*academic.Degree, error) {
	d, err := s.degrees.Get(ctx, code)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHintf("degree with code %s was not found", code).
			Mark(ierr.ErrNotFound)
	}
	return d, nil
}

func (s *InMemoryDegreeStore) GetDegreeType(ctx context.Context, code string) (*academic.DegreeType, error) {
	dt, err := s.degreeTypes.Get(ctx, code)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHintf("degree type with code %s was not found", code).
			Mark(ierr.ErrNotFound)
	}
	return dt, nil
}

func (s *InMemoryDegreeStore) Clear() {
	s.degrees.Clear()
	s.degreeTypes.Clear()
}
