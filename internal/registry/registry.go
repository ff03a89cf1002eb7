package registry

import (
	"errors"
	"fmt"

	"github.com/feral-file/ff-state-reducer/internal/balance"
	"github.com/feral-file/ff-state-reducer/internal/domain"
	"github.com/feral-file/ff-state-reducer/internal/item"
	"github.com/feral-file/ff-state-reducer/internal/order"
	"github.com/feral-file/ff-state-reducer/internal/ownership"
	"github.com/feral-file/ff-state-reducer/internal/reducer"
	"github.com/feral-file/ff-state-reducer/internal/store"
	"github.com/feral-file/ff-state-reducer/internal/updater"
)

// Config holds what every kind's updater is built with
type Config struct {
	Engine      reducer.Config
	Updater     updater.Config
	Parallelism int
}

// NewService wires one updater per entity kind over the store.
// Every listener is notified of the changes of every kind.
func NewService(s store.Store, cfg Config, listeners ...updater.SnapshotListener) *updater.Service {
	return updater.NewService(cfg.Parallelism,
		build(s, domain.EntityKindBalance, balance.NewEngine(cfg.Engine), balance.Decode, cfg.Updater, listeners),
		build(s, domain.EntityKindItem, item.NewEngine(cfg.Engine), item.Decode, cfg.Updater, listeners),
		build(s, domain.EntityKindOwnership, ownership.NewEngine(cfg.Engine), ownership.Decode, cfg.Updater, listeners),
		build(s, domain.EntityKindOrder, order.NewEngine(cfg.Engine), order.Decode, cfg.Updater, listeners),
	)
}

func build[E reducer.Entity[E], V reducer.Event](
	s store.Store,
	kind domain.EntityKind,
	engine *reducer.Engine[E, V],
	decode store.DecodeFunc[V],
	cfg updater.Config,
	listeners []updater.SnapshotListener,
) updater.Runner {
	notifiers := make([]updater.Listener[E], 0, len(listeners))
	for _, l := range listeners {
		notifiers = append(notifiers, updater.Notify[E](kind, l))
	}
	return updater.New(engine, store.NewEventSource(s, kind, decode), store.NewRepository[E](s, kind), cfg, notifiers...)
}

// Validate checks that a record decodes into a well-formed event of its kind
func Validate(rec domain.EventRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	switch rec.Kind {
	case domain.EntityKindBalance:
		return check(rec, balance.Decode)
	case domain.EntityKindItem:
		return check(rec, item.Decode)
	case domain.EntityKindOwnership:
		return check(rec, ownership.Decode)
	case domain.EntityKindOrder:
		return check(rec, order.Decode)
	default:
		return fmt.Errorf("%w: %s", domain.ErrUnknownEntityKind, rec.Kind)
	}
}

func check[V reducer.Event](rec domain.EventRecord, decode store.DecodeFunc[V]) error {
	ev, err := decode(rec)
	if err != nil {
		return err
	}
	if err := ev.Validate(); err != nil && !errors.Is(err, domain.ErrInvalidEvent) {
		return fmt.Errorf("%w: %v", domain.ErrInvalidEvent, err)
	} else if err != nil {
		return err
	}
	return nil
}
