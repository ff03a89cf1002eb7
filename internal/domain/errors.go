package domain

import "errors"

var (
	// ErrConflict is returned when a version-conditioned write loses to another writer
	ErrConflict = errors.New("version conflict")

	// ErrRetryExhausted is returned when an update keeps conflicting past its attempt budget
	ErrRetryExhausted = errors.New("optimistic retry exhausted")

	// ErrInvalidEvent is returned when an event payload violates its own invariants
	ErrInvalidEvent = errors.New("invalid event")

	// ErrInvalidStatusTransition is returned when an event status change is not allowed
	ErrInvalidStatusTransition = errors.New("invalid event status transition")

	// ErrUnknownEntityKind is returned for an entity kind the reducer does not serve
	ErrUnknownEntityKind = errors.New("unknown entity kind")

	// ErrInvalidEntityID is returned when an entity id cannot be parsed for its kind
	ErrInvalidEntityID = errors.New("invalid entity id")

	// ErrEntityNotFound is returned when an entity has never been materialized
	ErrEntityNotFound = errors.New("entity not found")
)
