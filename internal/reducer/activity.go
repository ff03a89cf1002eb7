package reducer

import (
	"time"

	"github.com/feral-file/ff-state-reducer/internal/domain"
)

// Activity holds the calculated fields every entity kind derives from the events applied to it
type Activity struct {
	PendingCount    int        `json:"pending_count"`
	LastConfirmedAt *time.Time `json:"last_confirmed_at,omitempty"`
	LastPendingAt   *time.Time `json:"last_pending_at,omitempty"`
	// LastUpdatedAt prefers the latest confirmed timestamp and falls back to the latest pending one
	LastUpdatedAt *time.Time `json:"last_updated_at,omitempty"`
}

// Observe records one forward-applied event
func (a Activity) Observe(meta domain.EventMeta) Activity {
	ts := meta.Timestamp.UTC()
	switch meta.Status {
	case domain.EventStatusConfirmed:
		if a.LastConfirmedAt == nil || ts.After(*a.LastConfirmedAt) {
			a.LastConfirmedAt = &ts
		}
	case domain.EventStatusPending:
		a.PendingCount++
		if a.LastPendingAt == nil || ts.After(*a.LastPendingAt) {
			a.LastPendingAt = &ts
		}
	default:
		return a
	}

	a.LastUpdatedAt = a.LastConfirmedAt
	if a.LastUpdatedAt == nil {
		a.LastUpdatedAt = a.LastPendingAt
	}
	return a
}

// HasPending reports whether any pending event is still applied
func (a Activity) HasPending() bool {
	return a.PendingCount > 0
}

// Same compares two activities by value
func (a Activity) Same(o Activity) bool {
	return a.PendingCount == o.PendingCount &&
		sameTime(a.LastConfirmedAt, o.LastConfirmedAt) &&
		sameTime(a.LastPendingAt, o.LastPendingAt) &&
		sameTime(a.LastUpdatedAt, o.LastUpdatedAt)
}

// ActivityOf derives the activity of a sequence of applied events
func ActivityOf[V Event](applied []V) Activity {
	var a Activity
	for _, ev := range applied {
		a = a.Observe(ev.Meta())
	}
	return a
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
