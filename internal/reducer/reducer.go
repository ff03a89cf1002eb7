// Package reducer folds ordered entity event logs into materialized entities.
//
// An entity kind plugs into the engine with a set of sub-reducers, each owning a
// disjoint facet of the entity, plus an optional merge rule for compaction and an
// optional inverter for cheap reversal. The engine itself is pure: it never
// performs I/O and never mutates the entity it is handed.
package reducer

import (
	"github.com/feral-file/ff-state-reducer/internal/domain"
)

// Event is a status-tagged, ordered change to one entity
type Event interface {
	// Meta returns the event metadata (status, ordering key, ids)
	Meta() domain.EventMeta
	// Validate rejects payloads that violate their own invariants
	Validate() error
}

// Entity is the contract a materialized entity value satisfies.
// E is the entity type itself so that copies keep their concrete type.
type Entity[E any] interface {
	// EntityID returns the composite id of the entity
	EntityID() string
	// EntityVersion returns the optimistic concurrency token
	EntityVersion() int64
	// WithVersion returns a copy carrying the given version
	WithVersion(version int64) E
	// Clone returns a deep copy that shares no mutable state with the receiver
	Clone() E
	// SameState reports whether both entities materialize the same state, ignoring version
	SameState(other E) bool
	// IsDeleted reports whether the entity is a tombstone
	IsDeleted() bool
}

// Reducer applies a single event to an entity
type Reducer[E any, V Event] interface {
	Reduce(entity E, event V) E
}

// ReducerFunc adapts a function to the Reducer interface
type ReducerFunc[E any, V Event] func(entity E, event V) E

// Reduce calls f(entity, event)
func (f ReducerFunc[E, V]) Reduce(entity E, event V) E {
	return f(entity, event)
}

// Chain is the forward composite reducer: every sub-reducer, in a fixed order,
// applied once to a private copy of the input entity.
type Chain[E Entity[E], V Event] struct {
	reducers []Reducer[E, V]
}

// NewChain creates a forward composite reducer running reducers in the given order
func NewChain[E Entity[E], V Event](reducers ...Reducer[E, V]) *Chain[E, V] {
	return &Chain[E, V]{reducers: reducers}
}

// Reduce applies the full chain to (entity, event). The input entity is left untouched.
func (c *Chain[E, V]) Reduce(entity E, event V) E {
	out := entity.Clone()
	for _, r := range c.reducers {
		out = r.Reduce(out, event)
	}
	return out
}

// State is the result of a fold: the entity plus the events applied forward to it, in order.
// Base is the empty entity the fold started from.
type State[E Entity[E], V Event] struct {
	Base    E
	Entity  E
	Applied []V
}
