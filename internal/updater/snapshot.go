package updater

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/feral-file/ff-state-reducer/internal/domain"
	"github.com/feral-file/ff-state-reducer/internal/reducer"
)

// Snapshot is a kind-erased view of a materialized entity
type Snapshot struct {
	Kind    domain.EntityKind `json:"kind"`
	ID      string            `json:"id"`
	Version int64             `json:"version"`
	Deleted bool              `json:"deleted"`
	Data    json.RawMessage   `json:"data"`
}

// Ref returns the entity reference of the snapshot
func (s Snapshot) Ref() domain.EntityRef {
	return domain.EntityRef{Kind: s.Kind, ID: s.ID}
}

// SnapshotOf encodes an entity of the given kind
func SnapshotOf[E reducer.Entity[E]](kind domain.EntityKind, entity E) (Snapshot, error) {
	data, err := json.Marshal(entity)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to marshal %s %s: %w", kind, entity.EntityID(), err)
	}
	return Snapshot{
		Kind:    kind,
		ID:      entity.EntityID(),
		Version: entity.EntityVersion(),
		Deleted: entity.IsDeleted(),
		Data:    data,
	}, nil
}

// SnapshotListener receives committed changes of any kind
//
//go:generate mockgen -source=snapshot.go -destination=../mocks/snapshot_listener.go -package=mocks -mock_names=SnapshotListener=MockSnapshotListener,Runner=MockRunner
type SnapshotListener interface {
	OnEntityUpdated(ctx context.Context, snapshot Snapshot) error
	OnEntityDeleted(ctx context.Context, ref domain.EntityRef) error
}

type snapshotNotifier[E reducer.Entity[E]] struct {
	kind     domain.EntityKind
	listener SnapshotListener
}

// Notify adapts a kind-erased listener to the listener of one kind
func Notify[E reducer.Entity[E]](kind domain.EntityKind, l SnapshotListener) Listener[E] {
	return &snapshotNotifier[E]{kind: kind, listener: l}
}

func (n *snapshotNotifier[E]) OnEntityUpdated(ctx context.Context, entity E) error {
	snapshot, err := SnapshotOf(n.kind, entity)
	if err != nil {
		return err
	}
	return n.listener.OnEntityUpdated(ctx, snapshot)
}

func (n *snapshotNotifier[E]) OnEntityDeleted(ctx context.Context, id string) error {
	return n.listener.OnEntityDeleted(ctx, domain.EntityRef{Kind: n.kind, ID: id})
}

// Runner is the kind-erased face of an updater
type Runner interface {
	Kind() domain.EntityKind
	// Refresh recomputes and commits the entity, returning its snapshot
	Refresh(ctx context.Context, id string) (Snapshot, error)
	// Get returns the stored snapshot or domain.ErrEntityNotFound
	Get(ctx context.Context, id string) (Snapshot, error)
}

// Refresh runs Update and returns the resulting snapshot
func (u *Updater[E, V]) Refresh(ctx context.Context, id string) (Snapshot, error) {
	entity, err := u.Update(ctx, id)
	if err != nil {
		return Snapshot{}, err
	}
	return SnapshotOf(u.Kind(), entity)
}

// Get returns the stored snapshot without recomputing it
func (u *Updater[E, V]) Get(ctx context.Context, id string) (Snapshot, error) {
	loaded, err := u.Load(ctx, id)
	if err != nil {
		return Snapshot{}, err
	}
	if !loaded.WasPreexisting {
		return Snapshot{}, fmt.Errorf("%w: %s %s", domain.ErrEntityNotFound, u.Kind(), id)
	}
	return SnapshotOf(u.Kind(), loaded.Entity)
}

// IsRetryable reports whether a refresh error is worth retrying later
func IsRetryable(err error) bool {
	return errors.Is(err, domain.ErrRetryExhausted)
}
