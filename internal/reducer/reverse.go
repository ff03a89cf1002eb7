package reducer

import (
	"go.uber.org/zap"

	"github.com/feral-file/ff-state-reducer/internal/logger"
)

// Reverser is the reversed composite reducer: it removes a reverted event's effect from a fold state
type Reverser[E Entity[E], V Event] interface {
	Revert(state State[E, V], reverted V) State[E, V]
}

// Inverter algebraically undoes the effect of the most recently applied event.
// remaining holds the events still applied once the inverted one is gone.
// It returns false whenever exactness cannot be proven, and the caller falls back to replay.
type Inverter[E Entity[E], V Event] interface {
	Invert(entity E, event V, remaining []V) (E, bool)
}

// findApplied returns the index of the applied event that reverted is the status transition of.
// A re-included transaction is a different event even when it sits at the same log position.
func findApplied[V Event](applied []V, reverted V) int {
	id := reverted.Meta().ID
	for i := len(applied) - 1; i >= 0; i-- {
		if applied[i].Meta().ID == id {
			return i
		}
	}
	return -1
}

func without[V Event](events []V, idx int) []V {
	out := make([]V, 0, len(events)-1)
	out = append(out, events[:idx]...)
	return append(out, events[idx+1:]...)
}

// ReplayReverser refolds every remaining applied event from the base entity
type ReplayReverser[E Entity[E], V Event] struct {
	forward *Chain[E, V]
}

// NewReplayReverser creates the full replay strategy
func NewReplayReverser[E Entity[E], V Event](forward *Chain[E, V]) *ReplayReverser[E, V] {
	return &ReplayReverser[E, V]{forward: forward}
}

// Revert removes reverted from the applied events and refolds the rest.
// A reverted event that was never applied leaves the state as folded from the available history.
func (r *ReplayReverser[E, V]) Revert(state State[E, V], reverted V) State[E, V] {
	idx := findApplied(state.Applied, reverted)
	if idx < 0 {
		logger.Debug("Reverted event was never applied forward",
			zap.String("eventID", reverted.Meta().ID),
			zap.String("entityID", reverted.Meta().EntityID))
		return state
	}

	return r.replay(state.Base, without(state.Applied, idx))
}

func (r *ReplayReverser[E, V]) replay(base E, events []V) State[E, V] {
	out := State[E, V]{Base: base, Entity: base, Applied: events}
	for _, ev := range events {
		out.Entity = r.forward.Reduce(out.Entity, ev)
	}
	return out
}

// InverseReverser inverts the tail event in place and degrades to full replay
// whenever the inverter cannot prove the inversion exact
type InverseReverser[E Entity[E], V Event] struct {
	replay   *ReplayReverser[E, V]
	inverter Inverter[E, V]
}

// NewInverseReverser creates the inverse application strategy
func NewInverseReverser[E Entity[E], V Event](replay *ReplayReverser[E, V], inverter Inverter[E, V]) *InverseReverser[E, V] {
	return &InverseReverser[E, V]{replay: replay, inverter: inverter}
}

// Revert removes reverted from the state
func (r *InverseReverser[E, V]) Revert(state State[E, V], reverted V) State[E, V] {
	idx := findApplied(state.Applied, reverted)
	if idx < 0 {
		return r.replay.Revert(state, reverted)
	}

	remaining := without(state.Applied, idx)
	if idx == len(state.Applied)-1 {
		if entity, ok := r.inverter.Invert(state.Entity.Clone(), state.Applied[idx], remaining); ok {
			return State[E, V]{Base: state.Base, Entity: entity, Applied: remaining}
		}
	}

	return r.replay.replay(state.Base, remaining)
}
