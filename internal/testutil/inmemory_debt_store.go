package testutil

import (
	"context"

	"github.com/acadfin/treasury/internal/domain/debt"
	ierr "github.com/acadfin/treasury/internal/errors"
)

// InMemoryEventStore implements debt.EventRepository
type InMemoryEventStore struct {
	*InMemoryStore[*debt.BillableEvent]
}

func NewInMemoryEventStore() *InMemoryEventStore {
	return &InMemoryEventStore{
		InMemoryStore: NewInMemoryStore[*debt.BillableEvent](),
	}
}

func eventFilterFn(ctx context.Context, e *debt.BillableEvent, _ interface{}) bool {
	return e != nil && CheckInstitutionFilter(ctx, e.InstitutionID)
}

func eventSortFn(i, j *debt.BillableEvent) bool {
	if i.CreatedAt.Equal(j.CreatedAt) {
		return i.ID < j.ID
	}
	return i.CreatedAt.Before(j.CreatedAt)
}

func (s *InMemoryEventStore) CreateEvent(ctx context.Context, event *debt.BillableEvent) error {
	if event == nil {
		return ierr.NewError("event cannot be nil").
			Mark(ierr.ErrValidation)
	}

	if err := s.InMemoryStore.Create(ctx, event.ID, event); err != nil {
		return ierr.WithError(err).
			WithHint("an event with this identifier already exists").
			WithReportableDetails(map[string]any{
				"event_id": event.ID,
			}).
			Mark(ierr.ErrAlreadyExists)
	}
	return nil
}

func (s *InMemoryEventStore) GetEvent(ctx context.Context, id string) (*debt.BillableEvent, error) {
	event, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHintf("event with ID %s was not found", id).
			Mark(ierr.ErrNotFound)
	}
	return event, nil
}

func (s *InMemoryEventStore) UpdateEvent(ctx context.Context, event *debt.BillableEvent) error {
	if event == nil {
		return ierr.NewError("event cannot be nil").
			Mark(ierr.ErrValidation)
	}

	if err := s.InMemoryStore.Update(ctx, event.ID, event); err != nil {
		return ierr.WithError(err).
			WithHintf("event with ID %s was not found", event.ID).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func (s *InMemoryEventStore) FindEventBySubjectProduct(ctx context.Context, subjectID, productID string) (*debt.BillableEvent, error) {
	events, err := s.InMemoryStore.List(ctx, nil, eventFilterFn, eventSortFn)
	if err != nil {
		return nil, err
	}
	for _, event := range events {
		if event.SubjectID == subjectID && event.ProductID == productID && !event.IsAnnulled() {
			return event, nil
		}
	}
	return nil, nil
}

func (s *InMemoryEventStore) ListEventsBySubject(ctx context.Context, subjectID string) ([]*debt.BillableEvent, error) {
	filterFn := func(ctx context.Context, e *debt.BillableEvent, _ interface{}) bool {
		return eventFilterFn(ctx, e, nil) && e.SubjectID == subjectID
	}
	return s.InMemoryStore.List(ctx, nil, filterFn, eventSortFn)
}

// InMemoryNoteStore implements debt.NoteRepository
type InMemoryNoteStore struct {
	*InMemoryStore[*debt.DebitNote]
}

func NewInMemoryNoteStore() *InMemoryNoteStore {
	return &InMemoryNoteStore{
		InMemoryStore: NewInMemoryStore[*debt.DebitNote](),
	}
}

func (s *InMemoryNoteStore) CreateNote(ctx context.Context, note *debt.DebitNote) error {
	if note == nil {
		return ierr.NewError("note cannot be nil").
			Mark(ierr.ErrValidation)
	}

	if err := s.InMemoryStore.Create(ctx, note.ID, note); err != nil {
		return ierr.WithError(err).
			WithHint("a debit note with this identifier already exists").
			WithReportableDetails(map[string]any{
				"note_id": note.ID,
			}).
			Mark(ierr.ErrAlreadyExists)
	}
	return nil
}

func (s *InMemoryNoteStore) GetNote(ctx context.Context, id string) (*debt.DebitNote, error) {
	note, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHintf("debit note with ID %s was not found", id).
			Mark(ierr.ErrNotFound)
	}
	return note, nil
}

func (s *InMemoryNoteStore) UpdateNote(ctx context.Context, note *debt.DebitNote) error {
	if note == nil {
		return ierr.NewError("note cannot be nil").
			Mark(ierr.ErrValidation)
	}

	if err := s.InMemoryStore.Update(ctx, note.ID, note); err != nil {
		return ierr.WithError(err).
			WithHintf("debit note with ID %s was not found", note.ID).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

// InMemoryLineStore implements debt.LineRepository
type InMemoryLineStore struct {
	*InMemoryStore[*debt.DebitLine]
}

func NewInMemoryLineStore() *InMemoryLineStore {
	return &InMemoryLineStore{
		InMemoryStore: NewInMemoryStore[*debt.DebitLine](),
	}
}

func lineSortFn(i, j *debt.DebitLine) bool {
	if i.CreatedAt.Equal(j.CreatedAt) {
		return i.ID < j.ID
	}
	return i.CreatedAt.Before(j.CreatedAt)
}

func (s *InMemoryLineStore) CreateLine(ctx context.Context, line *debt.DebitLine) error {
	if line == nil {
		return ierr.NewError("line cannot be nil").
			Mark(ierr.ErrValidation)
	}

	if err := s.InMemoryStore.Create(ctx, line.ID, line); err != nil {
		return ierr.WithError(err).
			WithHint("a debit line with this identifier already exists").
			WithReportableDetails(map[string]any{
				"line_id": line.ID,
			}).
			Mark(ierr.ErrAlreadyExists)
	}
	return nil
}

func (s *InMemoryLineStore) GetLine(ctx context.Context, id string) (*debt.DebitLine, error) {
	line, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHintf("debit line with ID %s was not found", id).
			Mark(ierr.ErrNotFound)
	}
	return line, nil
}

func (s *InMemoryLineStore) UpdateLine(ctx context.Context, line *debt.DebitLine) error {
	if line == nil {
		return ierr.NewError("line cannot be nil").
			Mark(ierr.ErrValidation)
	}

	if err := s.InMemoryStore.Update(ctx, line.ID, line); err != nil {
		return ierr.WithError(err).
			WithHintf("debit line with ID %s was not found", line.ID).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func (s *InMemoryLineStore) ListLinesByEvent(ctx context.Context, eventID string) ([]*debt.DebitLine, error) {
	filterFn := func(ctx context.Context, l *debt.DebitLine, _ interface{}) bool {
		return l != nil && CheckInstitutionFilter(ctx, l.InstitutionID) && l.EventID == eventID
	}
	return s.InMemoryStore.List(ctx, nil, filterFn, lineSortFn)
}

func (s *InMemoryLineStore) GetLineByIdempotencyKey(ctx context.Context, key string) (*debt.DebitLine, error) {
	filterFn := func(ctx context.Context, l *debt.DebitLine, _ interface{}) bool {
		return l != nil && CheckInstitutionFilter(ctx, l.InstitutionID) && l.IdempotencyKey == key
	}
	lines, err := s.InMemoryStore.List(ctx, nil, filterFn, lineSortFn)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, nil
	}
	return lines[0], nil
}

func (s *InMemoryLineStore) CountLinesByTariff(ctx context.Context, tariffID string) (int, error) {
	filterFn := func(ctx context.Context, l *debt.DebitLine, _ interface{}) bool {
		return l != nil && CheckInstitutionFilter(ctx, l.InstitutionID) && l.TariffID == tariffID
	}
	return s.InMemoryStore.Count(ctx, nil, filterFn)
}
