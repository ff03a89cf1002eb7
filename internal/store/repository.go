package store

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/feral-file/ff-state-reducer/internal/domain"
	"github.com/feral-file/ff-state-reducer/internal/logger"
	"github.com/feral-file/ff-state-reducer/internal/reducer"
)

// DecodeFunc turns a stored event record into a typed event of one kind
type DecodeFunc[V reducer.Event] func(rec domain.EventRecord) (V, error)

// Repository stores entities of one kind as JSON rows of the entities table
type Repository[E reducer.Entity[E]] struct {
	store Store
	kind  domain.EntityKind
}

// NewRepository creates a typed repository over a store
func NewRepository[E reducer.Entity[E]](s Store, kind domain.EntityKind) *Repository[E] {
	return &Repository[E]{store: s, kind: kind}
}

// Get returns the stored entity, or nil when it was never stored
func (r *Repository[E]) Get(ctx context.Context, id string) (*E, error) {
	row, err := r.store.GetEntity(ctx, r.kind, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}

	var entity E
	if err := json.Unmarshal(row.Data, &entity); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s %s: %w", r.kind, id, err)
	}
	entity = entity.WithVersion(row.Version)
	return &entity, nil
}

// Save writes the entity conditioned on expectedVersion and returns it with its new version
func (r *Repository[E]) Save(ctx context.Context, entity E, expectedVersion int64) (E, error) {
	data, err := json.Marshal(entity)
	if err != nil {
		return entity, fmt.Errorf("failed to marshal %s %s: %w", r.kind, entity.EntityID(), err)
	}

	version, err := r.store.SaveEntity(ctx, SaveEntityInput{
		Kind:            r.kind,
		EntityID:        entity.EntityID(),
		Data:            data,
		Deleted:         entity.IsDeleted(),
		ExpectedVersion: expectedVersion,
	})
	if err != nil {
		return entity, err
	}
	return entity.WithVersion(version), nil
}

// Delete removes the entity conditioned on expectedVersion
func (r *Repository[E]) Delete(ctx context.Context, id string, expectedVersion int64) (int64, error) {
	return r.store.DeleteEntity(ctx, r.kind, id, expectedVersion)
}

// EventSource reads the typed event log of one kind
type EventSource[V reducer.Event] struct {
	store  Store
	kind   domain.EntityKind
	decode DecodeFunc[V]
}

// NewEventSource creates a typed event source over a store
func NewEventSource[V reducer.Event](s Store, kind domain.EntityKind, decode DecodeFunc[V]) *EventSource[V] {
	return &EventSource[V]{store: s, kind: kind, decode: decode}
}

// ListEvents returns the decodable events of an entity. Records that fail to decode are logged and skipped.
func (es *EventSource[V]) ListEvents(ctx context.Context, entityID string) ([]V, error) {
	records, err := es.store.ListEventRecords(ctx, es.kind, entityID)
	if err != nil {
		return nil, err
	}

	events := make([]V, 0, len(records))
	for _, rec := range records {
		ev, err := es.decode(rec)
		if err != nil {
			logger.WarnCtx(ctx, "Skipping undecodable event",
				zap.String("kind", string(es.kind)),
				zap.String("entityID", entityID),
				zap.String("eventID", rec.Meta.ID),
				zap.Error(err))
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}
