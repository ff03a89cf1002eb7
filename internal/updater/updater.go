// Package updater recomputes entities from their event logs and commits them under optimistic concurrency.
package updater

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/feral-file/ff-state-reducer/internal/domain"
	"github.com/feral-file/ff-state-reducer/internal/logger"
	"github.com/feral-file/ff-state-reducer/internal/reducer"
	"github.com/feral-file/ff-state-reducer/internal/retry"
)

// TombstonePolicy decides what happens to an entity whose fold is deleted
type TombstonePolicy string

const (
	// TombstoneFlag keeps the entity with Deleted set
	TombstoneFlag TombstonePolicy = "flag"
	// TombstoneRemove physically removes the entity
	TombstoneRemove TombstonePolicy = "remove"
)

// ParseTombstonePolicy parses a policy name, defaulting to flag when empty
func ParseTombstonePolicy(s string) (TombstonePolicy, error) {
	switch p := TombstonePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return TombstoneFlag, nil
	case TombstoneFlag, TombstoneRemove:
		return p, nil
	default:
		return "", fmt.Errorf("unknown tombstone policy %q", s)
	}
}

// EventSource returns the full event history of one entity
type EventSource[V reducer.Event] interface {
	ListEvents(ctx context.Context, entityID string) ([]V, error)
}

// Repository stores materialized entities of one kind
type Repository[E reducer.Entity[E]] interface {
	// Get returns nil when the entity was never stored
	Get(ctx context.Context, id string) (*E, error)
	// Save writes the entity if the stored version still equals expectedVersion
	// and returns it with its new version. A lost race returns domain.ErrConflict.
	Save(ctx context.Context, entity E, expectedVersion int64) (E, error)
	// Delete removes the entity if the stored version still equals expectedVersion.
	// A lost race returns domain.ErrConflict.
	Delete(ctx context.Context, id string, expectedVersion int64) (int64, error)
}

// Listener is notified once per committed material change
type Listener[E reducer.Entity[E]] interface {
	OnEntityUpdated(ctx context.Context, entity E) error
	OnEntityDeleted(ctx context.Context, id string) error
}

// Loaded is the stored entity, or the empty entity for its id when none is stored
type Loaded[E reducer.Entity[E]] struct {
	Entity         E
	WasPreexisting bool
}

// Config holds the updater behaviours
type Config struct {
	Retry     retry.Policy
	Tombstone TombstonePolicy
}

type change int

const (
	changeNone change = iota
	changeUpdated
	changeDeleted
)

type commit[E any] struct {
	entity E
	change change
}

// Updater is the update orchestrator of one entity kind
type Updater[E reducer.Entity[E], V reducer.Event] struct {
	engine    *reducer.Engine[E, V]
	source    EventSource[V]
	repo      Repository[E]
	listeners []Listener[E]
	cfg       Config
}

// New creates an updater
func New[E reducer.Entity[E], V reducer.Event](
	engine *reducer.Engine[E, V],
	source EventSource[V],
	repo Repository[E],
	cfg Config,
	listeners ...Listener[E],
) *Updater[E, V] {
	if cfg.Tombstone == "" {
		cfg.Tombstone = TombstoneFlag
	}
	return &Updater[E, V]{
		engine:    engine,
		source:    source,
		repo:      repo,
		listeners: listeners,
		cfg:       cfg,
	}
}

// Kind returns the entity kind the updater serves
func (u *Updater[E, V]) Kind() domain.EntityKind {
	return u.engine.Kind()
}

// Load returns the stored entity wrapped with whether it existed
func (u *Updater[E, V]) Load(ctx context.Context, id string) (Loaded[E], error) {
	stored, err := u.repo.Get(ctx, id)
	if err != nil {
		return Loaded[E]{}, fmt.Errorf("failed to get %s %s: %w", u.Kind(), id, err)
	}
	if stored != nil {
		return Loaded[E]{Entity: *stored, WasPreexisting: true}, nil
	}

	empty, err := u.engine.New(id)
	if err != nil {
		return Loaded[E]{}, err
	}
	return Loaded[E]{Entity: empty}, nil
}

// Update recomputes the entity from its full event log and commits it when it changed.
// Version conflicts are retried from the load step; running out of attempts returns
// an error wrapping domain.ErrRetryExhausted.
func (u *Updater[E, V]) Update(ctx context.Context, id string) (E, error) {
	res := retry.WithOptimisticRetry(ctx, u.cfg.Retry, func(ctx context.Context) (commit[E], error) {
		return u.attempt(ctx, id)
	})

	if res.Outcome != retry.OutcomeCommitted {
		if res.Outcome == retry.OutcomeExhausted {
			logger.WarnCtx(ctx, "Entity update gave up after repeated conflicts",
				zap.String("kind", string(u.Kind())),
				zap.String("entityID", id),
				zap.Int("attempts", res.Attempts))
		}
		var zero E
		return zero, res.Err
	}

	u.notify(ctx, id, res.Value)
	return res.Value.entity, nil
}

func (u *Updater[E, V]) attempt(ctx context.Context, id string) (commit[E], error) {
	loaded, err := u.Load(ctx, id)
	if err != nil {
		return commit[E]{}, err
	}

	events, err := u.source.ListEvents(ctx, id)
	if err != nil {
		return commit[E]{}, fmt.Errorf("failed to list events of %s %s: %w", u.Kind(), id, err)
	}
	if !loaded.WasPreexisting && len(events) == 0 {
		return commit[E]{}, fmt.Errorf("%w: %s %s", domain.ErrEntityNotFound, u.Kind(), id)
	}

	next, err := u.engine.Reduce(id, events)
	if err != nil {
		return commit[E]{}, err
	}

	if loaded.WasPreexisting && next.SameState(loaded.Entity) {
		return commit[E]{entity: loaded.Entity}, nil
	}

	if next.IsDeleted() && u.cfg.Tombstone == TombstoneRemove {
		if !loaded.WasPreexisting {
			return commit[E]{entity: next}, nil
		}
		if _, err := u.repo.Delete(ctx, id, loaded.Entity.EntityVersion()); err != nil {
			return commit[E]{}, fmt.Errorf("failed to delete %s %s: %w", u.Kind(), id, err)
		}
		return commit[E]{entity: next, change: changeDeleted}, nil
	}

	saved, err := u.repo.Save(ctx, next, loaded.Entity.EntityVersion())
	if err != nil {
		return commit[E]{}, fmt.Errorf("failed to save %s %s: %w", u.Kind(), id, err)
	}
	if saved.IsDeleted() {
		return commit[E]{entity: saved, change: changeDeleted}, nil
	}
	return commit[E]{entity: saved, change: changeUpdated}, nil
}

func (u *Updater[E, V]) notify(ctx context.Context, id string, c commit[E]) {
	if c.change == changeNone {
		return
	}

	for _, l := range u.listeners {
		var err error
		if c.change == changeDeleted {
			err = l.OnEntityDeleted(ctx, id)
		} else {
			err = l.OnEntityUpdated(ctx, c.entity)
		}
		if err != nil {
			logger.ErrorCtx(ctx, fmt.Errorf("failed to notify listener: %w", err),
				zap.String("kind", string(u.Kind())),
				zap.String("entityID", id))
		}
	}

	logger.DebugCtx(ctx, "Entity committed",
		zap.String("kind", string(u.Kind())),
		zap.String("entityID", id),
		zap.Int64("version", c.entity.EntityVersion()),
		zap.Bool("deleted", c.change == changeDeleted))
}
