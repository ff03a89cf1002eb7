package ownership

import (
	"github.com/feral-file/ff-state-reducer/internal/domain"
	"github.com/feral-file/ff-state-reducer/internal/reducer"
)

// valueReducer owns Value and LazyValue
type valueReducer struct{}

func (valueReducer) Mint(o Ownership, e Mint) Ownership {
	if e.To != o.Owner {
		return o
	}
	o.Value = domain.AddQuantity(o.Value, e.Amount)
	o.LazyValue, _ = domain.SubQuantity(o.LazyValue, e.Amount)
	return o
}

func (valueReducer) Transfer(o Ownership, e Transfer) Ownership {
	if e.From == e.To {
		return o
	}
	switch o.Owner {
	case e.From:
		o.Value, _ = domain.SubQuantity(o.Value, e.Amount)
	case e.To:
		o.Value = domain.AddQuantity(o.Value, e.Amount)
	}
	return o
}

func (valueReducer) Burn(o Ownership, e Burn) Ownership {
	if e.From != o.Owner {
		return o
	}
	o.Value, _ = domain.SubQuantity(o.Value, e.Amount)
	return o
}

func (valueReducer) CreatorsSet(o Ownership, _ CreatorsSet) Ownership {
	return o
}

func (valueReducer) LazyMint(o Ownership, e LazyMint) Ownership {
	if e.To != o.Owner {
		return o
	}
	o.LazyValue = domain.AddQuantity(o.LazyValue, e.Amount)
	return o
}

func (valueReducer) LazyBurn(o Ownership, e LazyBurn) Ownership {
	if e.From != o.Owner {
		return o
	}
	o.LazyValue, _ = domain.SubQuantity(o.LazyValue, e.Amount)
	return o
}

func (valueReducer) Unrecognized(o Ownership, _ Unrecognized) Ownership {
	return o
}

// creatorsReducer owns the creator set
type creatorsReducer struct{}

func (creatorsReducer) Mint(o Ownership, e Mint) Ownership {
	o.CreatorSet = o.WithMinter(e.Minter)
	return o
}

func (creatorsReducer) Transfer(o Ownership, _ Transfer) Ownership {
	return o
}

func (creatorsReducer) Burn(o Ownership, _ Burn) Ownership {
	return o
}

func (creatorsReducer) CreatorsSet(o Ownership, e CreatorsSet) Ownership {
	o.CreatorSet = o.WithExplicit(e.Creators)
	return o
}

func (creatorsReducer) LazyMint(o Ownership, e LazyMint) Ownership {
	if len(e.Creators) > 0 && !o.CreatorsFinal {
		o.CreatorSet = o.WithExplicit(e.Creators)
	}
	return o
}

func (creatorsReducer) LazyBurn(o Ownership, _ LazyBurn) Ownership {
	return o
}

func (creatorsReducer) Unrecognized(o Ownership, _ Unrecognized) Ownership {
	return o
}

// calculatedReducer owns Activity and Deleted and runs last
type calculatedReducer struct{}

func (r calculatedReducer) Mint(o Ownership, e Mint) Ownership {
	return r.derive(o, e.EventMeta)
}

func (r calculatedReducer) Transfer(o Ownership, e Transfer) Ownership {
	return r.derive(o, e.EventMeta)
}

func (r calculatedReducer) Burn(o Ownership, e Burn) Ownership {
	return r.derive(o, e.EventMeta)
}

func (r calculatedReducer) CreatorsSet(o Ownership, e CreatorsSet) Ownership {
	return r.derive(o, e.EventMeta)
}

func (r calculatedReducer) LazyMint(o Ownership, e LazyMint) Ownership {
	return r.derive(o, e.EventMeta)
}

func (r calculatedReducer) LazyBurn(o Ownership, e LazyBurn) Ownership {
	return r.derive(o, e.EventMeta)
}

// Unrecognized events change nothing, not even the activity
func (calculatedReducer) Unrecognized(o Ownership, _ Unrecognized) Ownership {
	return o
}

func (calculatedReducer) derive(o Ownership, meta domain.EventMeta) Ownership {
	o.Activity = o.Activity.Observe(meta)
	o.Deleted = domain.IsZeroQuantity(o.Value) && domain.IsZeroQuantity(o.LazyValue) && !o.HasPending()
	return o
}

// merge merges consecutive transfers between the same pair and consecutive mints to the same owner
func merge(earlier, later Event) (Event, bool) {
	switch a := earlier.(type) {
	case Mint:
		b, ok := later.(Mint)
		if !ok || a.To != b.To || a.Minter != b.Minter {
			return later, false
		}
		b.Amount = domain.AddQuantity(a.Amount, b.Amount)
		return b, true
	case Transfer:
		b, ok := later.(Transfer)
		if !ok || a.From != b.From || a.To != b.To || a.From == a.To {
			return later, false
		}
		b.Amount = domain.AddQuantity(a.Amount, b.Amount)
		return b, true
	}
	return later, false
}

func asReducer(r SubReducer) reducer.Reducer[Ownership, Event] {
	return reducer.ReducerFunc[Ownership, Event](func(o Ownership, e Event) Ownership {
		return e.dispatch(o, r)
	})
}

// Definition describes how ownerships are reduced. Ownerships always revert by full replay.
func Definition() reducer.Definition[Ownership, Event] {
	return reducer.Definition[Ownership, Event]{
		Kind: domain.EntityKindOwnership,
		New:  New,
		Reducers: []reducer.Reducer[Ownership, Event]{
			asReducer(valueReducer{}),
			asReducer(creatorsReducer{}),
			asReducer(calculatedReducer{}),
		},
		Merger: reducer.MergerFunc[Event](merge),
	}
}

// NewEngine creates the ownership reduction engine
func NewEngine(cfg reducer.Config) *reducer.Engine[Ownership, Event] {
	return reducer.NewEngine(Definition(), cfg)
}
