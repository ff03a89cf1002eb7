package balance

import (
	"github.com/feral-file/ff-state-reducer/internal/domain"
	"github.com/feral-file/ff-state-reducer/internal/reducer"
)

// valueReducer owns Value
type valueReducer struct{}

func (valueReducer) IncomingTransfer(b Balance, e IncomingTransfer) Balance {
	if e.From == b.Owner {
		return b
	}
	b.Value = domain.AddQuantity(b.Value, e.Amount)
	return b
}

func (valueReducer) OutgoingTransfer(b Balance, e OutgoingTransfer) Balance {
	if e.To == b.Owner {
		return b
	}
	b.Value, _ = domain.SubQuantity(b.Value, e.Amount)
	return b
}

func (valueReducer) Unrecognized(b Balance, _ Unrecognized) Balance {
	return b
}

// calculatedReducer owns Activity and Deleted and runs last
type calculatedReducer struct{}

func (r calculatedReducer) IncomingTransfer(b Balance, e IncomingTransfer) Balance {
	return r.derive(b, e.EventMeta)
}

func (r calculatedReducer) OutgoingTransfer(b Balance, e OutgoingTransfer) Balance {
	return r.derive(b, e.EventMeta)
}

// Unrecognized events change nothing, not even the activity
func (calculatedReducer) Unrecognized(b Balance, _ Unrecognized) Balance {
	return b
}

func (calculatedReducer) derive(b Balance, meta domain.EventMeta) Balance {
	b.Activity = b.Activity.Observe(meta)
	b.Deleted = tombstone(b)
	return b
}

func tombstone(b Balance) bool {
	return domain.IsZeroQuantity(b.Value) && !b.HasPending()
}

// inverseValueReducer undoes the value effect of a single event.
// exact turns false when the forward application may have been clamped.
type inverseValueReducer struct {
	exact bool
}

func (r *inverseValueReducer) IncomingTransfer(b Balance, e IncomingTransfer) Balance {
	if e.From == b.Owner {
		return b
	}
	value, clamped := domain.SubQuantity(b.Value, e.Amount)
	if clamped {
		r.exact = false
		return b
	}
	b.Value = value
	return b
}

func (r *inverseValueReducer) OutgoingTransfer(b Balance, e OutgoingTransfer) Balance {
	if e.To == b.Owner {
		return b
	}
	// a zero balance after a debit cannot tell how much was actually removed
	if domain.IsZeroQuantity(b.Value) && !domain.IsZeroQuantity(e.Amount) {
		r.exact = false
		return b
	}
	b.Value = domain.AddQuantity(b.Value, e.Amount)
	return b
}

func (r *inverseValueReducer) Unrecognized(b Balance, _ Unrecognized) Balance {
	return b
}

// inverter implements inverse reversal for balances
type inverter struct{}

func (inverter) Invert(b Balance, e Event, remaining []Event) (Balance, bool) {
	inverse := &inverseValueReducer{exact: true}
	out := e.dispatch(b, inverse)
	if !inverse.exact {
		return b, false
	}
	out.Activity = reducer.ActivityOf(recognized(remaining))
	out.Deleted = tombstone(out)
	return out, true
}

func recognized(events []Event) []Event {
	out := make([]Event, 0, len(events))
	for _, ev := range events {
		if _, ok := ev.(Unrecognized); !ok {
			out = append(out, ev)
		}
	}
	return out
}

// merge merges consecutive transfers in the same direction
func merge(earlier, later Event) (Event, bool) {
	_, owner, err := ParseID(later.Meta().EntityID)
	if err != nil {
		return later, false
	}

	switch a := earlier.(type) {
	case IncomingTransfer:
		b, ok := later.(IncomingTransfer)
		if !ok || a.From == owner || b.From == owner {
			return later, false
		}
		b.Amount = domain.AddQuantity(a.Amount, b.Amount)
		return b, true
	case OutgoingTransfer:
		b, ok := later.(OutgoingTransfer)
		if !ok || a.To == owner || b.To == owner {
			return later, false
		}
		b.Amount = domain.AddQuantity(a.Amount, b.Amount)
		return b, true
	}
	return later, false
}

func asReducer(r SubReducer) reducer.Reducer[Balance, Event] {
	return reducer.ReducerFunc[Balance, Event](func(b Balance, e Event) Balance {
		return e.dispatch(b, r)
	})
}

// Definition describes how balances are reduced
func Definition() reducer.Definition[Balance, Event] {
	return reducer.Definition[Balance, Event]{
		Kind: domain.EntityKindBalance,
		New:  New,
		Reducers: []reducer.Reducer[Balance, Event]{
			asReducer(valueReducer{}),
			asReducer(calculatedReducer{}),
		},
		Merger:   reducer.MergerFunc[Event](merge),
		Inverter: inverter{},
	}
}

// NewEngine creates the balance reduction engine
func NewEngine(cfg reducer.Config) *reducer.Engine[Balance, Event] {
	return reducer.NewEngine(Definition(), cfg)
}
