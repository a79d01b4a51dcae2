package debt

import "context"

type EventRepository interface {
	CreateEvent(ctx context.Context, event *BillableEvent) error
	GetEvent(ctx context.Context, id string) (*BillableEvent, error)
	UpdateEvent(ctx context.Context, event *BillableEvent) error

	// FindEventBySubjectProduct returns the single non-annulled event for
	// the pair, or nil when none exists yet.
	FindEventBySubjectProduct(ctx context.Context, subjectID, productID string) (*BillableEvent, error)

	ListEventsBySubject(ctx context.Context, subjectID string) ([]*BillableEvent, error)
}

type NoteRepository interface {
	CreateNote(ctx context.Context, note *DebitNote) error
	GetNote(ctx context.Context, id string) (*DebitNote, error)
	UpdateNote(ctx context.Context, note *DebitNote) error
}

type LineRepository interface {
	CreateLine(ctx context.Context, line *DebitLine) error
	GetLine(ctx context.Context, id string) (*DebitLine, error)
	UpdateLine(ctx context.Context, line *DebitLine) error

	ListLinesByEvent(ctx context.Context, eventID string) ([]*DebitLine, error)
	GetLineByIdempotencyKey(ctx context.Context, key string) (*DebitLine, error)
	CountLinesByTariff(ctx context.Context, tariffID string) (int, error)
}
