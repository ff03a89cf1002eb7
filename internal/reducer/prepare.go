package reducer

import (
	"slices"

	"go.uber.org/zap"

	"github.com/feral-file/ff-state-reducer/internal/domain"
	"github.com/feral-file/ff-state-reducer/internal/logger"
)

// Sort orders events by key, status and id. The order is total, so any
// permutation of the same events sorts to the same sequence.
func Sort[V Event](events []V) {
	slices.SortStableFunc(events, func(a, b V) int {
		return a.Meta().Compare(b.Meta())
	})
}

// Prepare drops invalid and superseded events and returns the rest sorted.
// The input slice is not modified.
func Prepare[V Event](events []V) []V {
	valid := make([]V, 0, len(events))
	mined := make(map[string]struct{})
	for _, ev := range events {
		meta := ev.Meta()
		if err := ev.Validate(); err != nil {
			logger.Warn("Skipping invalid event",
				zap.String("eventID", meta.ID),
				zap.String("entityID", meta.EntityID),
				zap.Error(err))
			continue
		}
		if meta.Status != domain.EventStatusPending {
			mined[meta.LogRef()] = struct{}{}
		}
		valid = append(valid, ev)
	}

	out := valid[:0]
	for _, ev := range valid {
		meta := ev.Meta()
		if meta.Status == domain.EventStatusPending {
			if _, ok := mined[meta.LogRef()]; ok {
				continue
			}
		}
		out = append(out, ev)
	}

	Sort(out)
	return out
}
