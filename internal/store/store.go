package store

import (
	"context"

	"github.com/feral-file/ff-state-reducer/internal/domain"
	"github.com/feral-file/ff-state-reducer/internal/store/schema"
)

// Store defines the interface for database operations
//
//go:generate mockgen -source=store.go -destination=../mocks/store.go -package=mocks -mock_names=Store=MockStore
type Store interface {
	// AppendEvent records an event or moves an existing record of the same log to the new status.
	// It reports whether anything changed. Leaving REVERTED returns domain.ErrInvalidStatusTransition.
	AppendEvent(ctx context.Context, rec domain.EventRecord) (bool, error)
	// ListEventRecords returns every event record of an entity
	ListEventRecords(ctx context.Context, kind domain.EntityKind, entityID string) ([]domain.EventRecord, error)
	// ListEntityIDs returns up to limit entity ids of a kind that have events, in ascending order after afterID
	ListEntityIDs(ctx context.Context, kind domain.EntityKind, afterID string, limit int) ([]string, error)

	// GetEntity returns the stored entity, or nil when it was never stored
	GetEntity(ctx context.Context, kind domain.EntityKind, entityID string) (*schema.Entity, error)
	// SaveEntity writes the entity if its stored version equals expectedVersion (0 for a new entity)
	// and returns the new version. A lost race returns domain.ErrConflict.
	SaveEntity(ctx context.Context, input SaveEntityInput) (int64, error)
	// DeleteEntity removes the entity if its stored version equals expectedVersion
	// and returns the number of removed rows. A lost race returns domain.ErrConflict.
	DeleteEntity(ctx context.Context, kind domain.EntityKind, entityID string, expectedVersion int64) (int64, error)

	// CreateChangeJournal appends a row to the changes journal
	CreateChangeJournal(ctx context.Context, entry *schema.ChangesJournal) error

	CursorStore
}

// SaveEntityInput is a version-conditioned entity write
type SaveEntityInput struct {
	Kind            domain.EntityKind
	EntityID        string
	Data            []byte
	Deleted         bool
	ExpectedVersion int64
}
