package order

import (
	"github.com/feral-file/ff-state-reducer/internal/domain"
	"github.com/feral-file/ff-state-reducer/internal/reducer"
)

// placementReducer owns the identity fields. The first placement wins.
type placementReducer struct{}

func (placementReducer) Placed(o Order, e Placed) Order {
	if o.Placed {
		return o
	}
	o.Maker = e.Maker
	o.Make = e.Make
	o.Take = e.Take
	o.Salt = e.Salt
	o.Placed = true
	return o
}

func (placementReducer) Matched(o Order, _ Matched) Order {
	return o
}

func (placementReducer) Cancelled(o Order, _ Cancelled) Order {
	return o
}

func (placementReducer) MakeBalanceChanged(o Order, _ MakeBalanceChanged) Order {
	return o
}

func (placementReducer) Unrecognized(o Order, _ Unrecognized) Order {
	return o
}

// fillReducer owns Fill, clamped to the take value once the order is placed
type fillReducer struct{}

func clampFill(o Order) Order {
	if o.Placed && o.Fill.Cmp(o.Take.Value) > 0 {
		o.Fill = domain.MinQuantity(o.Fill, o.Take.Value)
	}
	return o
}

func (fillReducer) Placed(o Order, _ Placed) Order {
	return clampFill(o)
}

func (fillReducer) Matched(o Order, e Matched) Order {
	o.Fill = domain.AddQuantity(o.Fill, e.Fill)
	return clampFill(o)
}

func (fillReducer) Cancelled(o Order, _ Cancelled) Order {
	return o
}

func (fillReducer) MakeBalanceChanged(o Order, _ MakeBalanceChanged) Order {
	return o
}

func (fillReducer) Unrecognized(o Order, _ Unrecognized) Order {
	return o
}

// cancelReducer owns Cancelled
type cancelReducer struct{}

func (cancelReducer) Placed(o Order, _ Placed) Order {
	return o
}

func (cancelReducer) Matched(o Order, _ Matched) Order {
	return o
}

func (cancelReducer) Cancelled(o Order, _ Cancelled) Order {
	o.Cancelled = true
	return o
}

func (cancelReducer) MakeBalanceChanged(o Order, _ MakeBalanceChanged) Order {
	return o
}

func (cancelReducer) Unrecognized(o Order, _ Unrecognized) Order {
	return o
}

// stockReducer owns MakerBalance
type stockReducer struct{}

func (stockReducer) Placed(o Order, _ Placed) Order {
	return o
}

func (stockReducer) Matched(o Order, _ Matched) Order {
	return o
}

func (stockReducer) Cancelled(o Order, _ Cancelled) Order {
	return o
}

func (stockReducer) MakeBalanceChanged(o Order, e MakeBalanceChanged) Order {
	o.MakerBalance = domain.AddQuantity(e.Balance, nil)
	return o
}

func (stockReducer) Unrecognized(o Order, _ Unrecognized) Order {
	return o
}

// calculatedReducer owns Activity, MakeStock and Status and runs last. Orders are never tombstoned.
type calculatedReducer struct{}

func (r calculatedReducer) Placed(o Order, e Placed) Order {
	return r.derive(o, e.EventMeta)
}

func (r calculatedReducer) Matched(o Order, e Matched) Order {
	return r.derive(o, e.EventMeta)
}

func (r calculatedReducer) Cancelled(o Order, e Cancelled) Order {
	return r.derive(o, e.EventMeta)
}

func (r calculatedReducer) MakeBalanceChanged(o Order, e MakeBalanceChanged) Order {
	return r.derive(o, e.EventMeta)
}

// Unrecognized events change nothing, not even the activity
func (calculatedReducer) Unrecognized(o Order, _ Unrecognized) Order {
	return o
}

func (calculatedReducer) derive(o Order, meta domain.EventMeta) Order {
	o.Activity = o.Activity.Observe(meta)

	o.MakeStock = o.Remaining()
	if o.MakerBalance != nil {
		o.MakeStock = domain.MinQuantity(o.MakeStock, o.MakerBalance)
	}

	switch {
	case o.Cancelled:
		o.Status = StatusCancelled
	case o.Placed && o.Fill.Cmp(o.Take.Value) >= 0:
		o.Status = StatusFilled
	case o.MakeStock.Sign() > 0:
		o.Status = StatusActive
	default:
		o.Status = StatusInactive
	}
	o.Deleted = false
	return o
}

// merge sums consecutive matches and keeps only the last of consecutive balance updates
func merge(earlier, later Event) (Event, bool) {
	switch a := earlier.(type) {
	case Matched:
		b, ok := later.(Matched)
		if !ok {
			return later, false
		}
		b.Fill = domain.AddQuantity(a.Fill, b.Fill)
		return b, true
	case MakeBalanceChanged:
		if _, ok := later.(MakeBalanceChanged); ok {
			return later, true
		}
	}
	return later, false
}

func asReducer(r SubReducer) reducer.Reducer[Order, Event] {
	return reducer.ReducerFunc[Order, Event](func(o Order, e Event) Order {
		return e.dispatch(o, r)
	})
}

// Definition describes how orders are reduced. Orders always revert by full replay.
func Definition() reducer.Definition[Order, Event] {
	return reducer.Definition[Order, Event]{
		Kind: domain.EntityKindOrder,
		New:  New,
		Reducers: []reducer.Reducer[Order, Event]{
			asReducer(placementReducer{}),
			asReducer(fillReducer{}),
			asReducer(cancelReducer{}),
			asReducer(stockReducer{}),
			asReducer(calculatedReducer{}),
		},
		Merger: reducer.MergerFunc[Event](merge),
	}
}

// NewEngine creates the order reduction engine
func NewEngine(cfg reducer.Config) *reducer.Engine[Order, Event] {
	return reducer.NewEngine(Definition(), cfg)
}
