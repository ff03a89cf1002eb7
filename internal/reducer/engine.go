package reducer

import (
	"go.uber.org/zap"

	"github.com/feral-file/ff-state-reducer/internal/domain"
	"github.com/feral-file/ff-state-reducer/internal/logger"
)

// Config holds the optional behaviours of an engine
type Config struct {
	// InverseRevert enables inverse application for kinds that provide an inverter
	InverseRevert bool
	Compaction    CompactionConfig
}

// Definition describes how one entity kind is reduced
type Definition[E Entity[E], V Event] struct {
	Kind domain.EntityKind
	// New returns the empty entity for an id, failing when the id is malformed
	New func(id string) (E, error)
	// Reducers run in order; calculated fields go last
	Reducers []Reducer[E, V]
	// Merger enables compaction; nil disables it
	Merger Merger[V]
	// Inverter enables inverse reversal; nil means full replay only
	Inverter Inverter[E, V]
}

// Engine reduces the event log of one entity kind
type Engine[E Entity[E], V Event] struct {
	kind       domain.EntityKind
	newEntity  func(id string) (E, error)
	dispatcher *Dispatcher[E, V]
	compactor  *Compactor[V]
}

// NewEngine wires the forward chain, the reversal strategy, the dispatcher and the compactor for a kind
func NewEngine[E Entity[E], V Event](def Definition[E, V], cfg Config) *Engine[E, V] {
	forward := NewChain(def.Reducers...)
	replay := NewReplayReverser(forward)

	var reverse Reverser[E, V] = replay
	if cfg.InverseRevert && def.Inverter != nil {
		reverse = NewInverseReverser(replay, def.Inverter)
	}

	return &Engine[E, V]{
		kind:       def.Kind,
		newEntity:  def.New,
		dispatcher: NewDispatcher(forward, reverse),
		compactor:  NewCompactor(cfg.Compaction, def.Merger),
	}
}

// Kind returns the entity kind the engine reduces
func (e *Engine[E, V]) Kind() domain.EntityKind {
	return e.kind
}

// New returns the empty entity for an id
func (e *Engine[E, V]) New(id string) (E, error) {
	return e.newEntity(id)
}

// Reduce folds the entity's full event list from the empty entity
func (e *Engine[E, V]) Reduce(id string, events []V) (E, error) {
	base, err := e.newEntity(id)
	if err != nil {
		return base, err
	}

	owned := make([]V, 0, len(events))
	for _, ev := range events {
		if ev.Meta().EntityID != id {
			logger.Warn("Skipping event of another entity",
				zap.String("kind", string(e.kind)),
				zap.String("entityID", id),
				zap.String("eventID", ev.Meta().ID))
			continue
		}
		owned = append(owned, ev)
	}

	prepared := e.compactor.Compact(Prepare(owned))
	return e.dispatcher.Fold(base, prepared).Entity, nil
}
