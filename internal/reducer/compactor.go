package reducer

import (
	"github.com/feral-file/ff-state-reducer/internal/domain"
)

// Merger merges two consecutive events of the same accumulator kind into one
// synthetic event carrying their algebraic sum and the later event's metadata.
// It returns false when the pair cannot be merged without changing the fold.
type Merger[V Event] interface {
	Merge(earlier, later V) (V, bool)
}

// MergerFunc adapts a function to the Merger interface
type MergerFunc[V Event] func(earlier, later V) (V, bool)

// Merge calls f(earlier, later)
func (f MergerFunc[V]) Merge(earlier, later V) (V, bool) {
	return f(earlier, later)
}

// CompactionConfig controls which part of the history the compactor may rewrite
type CompactionConfig struct {
	Enabled bool
	// MinRun is the shortest run worth merging
	MinRun int
	// StableDepth is how many blocks below the newest seen block an event must sit to be merged
	StableDepth uint64
}

// Compactor shortens an ordered event list by merging runs of stable events
type Compactor[V Event] struct {
	cfg    CompactionConfig
	merger Merger[V]
}

// NewCompactor creates a compactor. A nil merger disables compaction.
func NewCompactor[V Event](cfg CompactionConfig, merger Merger[V]) *Compactor[V] {
	if cfg.MinRun < 2 {
		cfg.MinRun = 2
	}
	return &Compactor[V]{cfg: cfg, merger: merger}
}

// Compact returns an equivalent, usually shorter, event list. Input must be sorted.
func (c *Compactor[V]) Compact(events []V) []V {
	if !c.cfg.Enabled || c.merger == nil || len(events) < c.cfg.MinRun {
		return events
	}

	var head uint64
	reverted := make(map[string]struct{})
	for _, ev := range events {
		meta := ev.Meta()
		if meta.Key.Mined() && *meta.Key.BlockNumber > head {
			head = *meta.Key.BlockNumber
		}
		if meta.Status == domain.EventStatusReverted {
			reverted[meta.ID] = struct{}{}
		}
	}

	stable := func(ev V) bool {
		meta := ev.Meta()
		if meta.Status != domain.EventStatusConfirmed || !meta.Key.Mined() {
			return false
		}
		if *meta.Key.BlockNumber+c.cfg.StableDepth > head {
			return false
		}
		_, ok := reverted[meta.ID]
		return !ok
	}

	out := make([]V, 0, len(events))
	for i := 0; i < len(events); {
		if !stable(events[i]) {
			out = append(out, events[i])
			i++
			continue
		}

		acc := events[i]
		j := i + 1
		for j < len(events) && stable(events[j]) {
			merged, ok := c.merger.Merge(acc, events[j])
			if !ok {
				break
			}
			acc = merged
			j++
		}

		if j-i >= c.cfg.MinRun {
			out = append(out, acc)
		} else {
			out = append(out, events[i:j]...)
		}
		i = j
	}

	return out
}
