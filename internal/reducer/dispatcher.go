package reducer

import (
	"github.com/feral-file/ff-state-reducer/internal/domain"
)

// Dispatcher routes events by status: PENDING and CONFIRMED fold forward, REVERTED reverses
type Dispatcher[E Entity[E], V Event] struct {
	forward *Chain[E, V]
	reverse Reverser[E, V]
}

// NewDispatcher creates a status dispatcher
func NewDispatcher[E Entity[E], V Event](forward *Chain[E, V], reverse Reverser[E, V]) *Dispatcher[E, V] {
	return &Dispatcher[E, V]{forward: forward, reverse: reverse}
}

// Apply folds one event into the state. The state's Applied slice is
// extended in place, so the previous state must not be reused.
func (d *Dispatcher[E, V]) Apply(state State[E, V], event V) State[E, V] {
	switch event.Meta().Status {
	case domain.EventStatusPending, domain.EventStatusConfirmed:
		return State[E, V]{
			Base:    state.Base,
			Entity:  d.forward.Reduce(state.Entity, event),
			Applied: append(state.Applied, event),
		}
	case domain.EventStatusReverted:
		return d.reverse.Revert(state, event)
	default:
		return state
	}
}

// Fold applies events, already in ascending order, starting from base
func (d *Dispatcher[E, V]) Fold(base E, events []V) State[E, V] {
	state := State[E, V]{Base: base, Entity: base.Clone()}
	for _, ev := range events {
		state = d.Apply(state, ev)
	}
	return state
}
