package item

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/feral-file/ff-state-reducer/internal/domain"
	"github.com/feral-file/ff-state-reducer/internal/reducer"
)

// supplyReducer owns Supply and LazySupply
type supplyReducer struct{}

func (supplyReducer) Mint(i Item, e Mint) Item {
	i.Supply = domain.AddQuantity(i.Supply, e.Amount)
	// minting a lazy item consumes the signed supply
	i.LazySupply, _ = domain.SubQuantity(i.LazySupply, e.Amount)
	return i
}

func (supplyReducer) Transfer(i Item, _ Transfer) Item {
	return i
}

func (supplyReducer) Burn(i Item, e Burn) Item {
	i.Supply, _ = domain.SubQuantity(i.Supply, e.Amount)
	return i
}

func (supplyReducer) CreatorsSet(i Item, _ CreatorsSet) Item {
	return i
}

func (supplyReducer) LazyMint(i Item, e LazyMint) Item {
	i.LazySupply = domain.AddQuantity(i.LazySupply, e.Amount)
	return i
}

func (supplyReducer) LazyBurn(i Item, e LazyBurn) Item {
	i.LazySupply, _ = domain.SubQuantity(i.LazySupply, e.Amount)
	return i
}

func (supplyReducer) Unrecognized(i Item, _ Unrecognized) Item {
	return i
}

// ownersReducer owns Owners. Holders reaching zero are removed from the map.
type ownersReducer struct{}

func credit(owners map[common.Address]*big.Int, account common.Address, amount *big.Int) {
	if account == domain.ZeroAddress {
		return
	}
	next := domain.AddQuantity(owners[account], amount)
	if next.Sign() == 0 {
		delete(owners, account)
		return
	}
	owners[account] = next
}

func debit(owners map[common.Address]*big.Int, account common.Address, amount *big.Int) {
	next, _ := domain.SubQuantity(owners[account], amount)
	if next.Sign() == 0 {
		delete(owners, account)
		return
	}
	owners[account] = next
}

func (ownersReducer) Mint(i Item, e Mint) Item {
	credit(i.Owners, e.To, e.Amount)
	return i
}

func (ownersReducer) Transfer(i Item, e Transfer) Item {
	if e.From == e.To {
		return i
	}
	debit(i.Owners, e.From, e.Amount)
	credit(i.Owners, e.To, e.Amount)
	return i
}

func (ownersReducer) Burn(i Item, e Burn) Item {
	debit(i.Owners, e.From, e.Amount)
	return i
}

func (ownersReducer) CreatorsSet(i Item, _ CreatorsSet) Item {
	return i
}

func (ownersReducer) LazyMint(i Item, _ LazyMint) Item {
	return i
}

func (ownersReducer) LazyBurn(i Item, _ LazyBurn) Item {
	return i
}

func (ownersReducer) Unrecognized(i Item, _ Unrecognized) Item {
	return i
}

// creatorsReducer owns the creator set
type creatorsReducer struct{}

func (creatorsReducer) Mint(i Item, e Mint) Item {
	i.CreatorSet = i.WithMinter(e.Minter)
	return i
}

func (creatorsReducer) Transfer(i Item, _ Transfer) Item {
	return i
}

func (creatorsReducer) Burn(i Item, _ Burn) Item {
	return i
}

func (creatorsReducer) CreatorsSet(i Item, e CreatorsSet) Item {
	i.CreatorSet = i.WithExplicit(e.Creators)
	return i
}

func (creatorsReducer) LazyMint(i Item, e LazyMint) Item {
	if len(e.Creators) > 0 && !i.CreatorsFinal {
		i.CreatorSet = i.WithExplicit(e.Creators)
	}
	return i
}

func (creatorsReducer) LazyBurn(i Item, _ LazyBurn) Item {
	return i
}

func (creatorsReducer) Unrecognized(i Item, _ Unrecognized) Item {
	return i
}

// calculatedReducer owns Activity and Deleted and runs last
type calculatedReducer struct{}

func (r calculatedReducer) Mint(i Item, e Mint) Item {
	return r.derive(i, e.EventMeta)
}

func (r calculatedReducer) Transfer(i Item, e Transfer) Item {
	return r.derive(i, e.EventMeta)
}

func (r calculatedReducer) Burn(i Item, e Burn) Item {
	return r.derive(i, e.EventMeta)
}

func (r calculatedReducer) CreatorsSet(i Item, e CreatorsSet) Item {
	return r.derive(i, e.EventMeta)
}

func (r calculatedReducer) LazyMint(i Item, e LazyMint) Item {
	return r.derive(i, e.EventMeta)
}

func (r calculatedReducer) LazyBurn(i Item, e LazyBurn) Item {
	return r.derive(i, e.EventMeta)
}

// Unrecognized events change nothing, not even the activity
func (calculatedReducer) Unrecognized(i Item, _ Unrecognized) Item {
	return i
}

func (calculatedReducer) derive(i Item, meta domain.EventMeta) Item {
	i.Activity = i.Activity.Observe(meta)
	i.Deleted = domain.IsZeroQuantity(i.Supply) && domain.IsZeroQuantity(i.LazySupply) && !i.HasPending()
	return i
}

// merge merges consecutive homogeneous supply movements
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
	case Burn:
		b, ok := later.(Burn)
		if !ok || a.From != b.From {
			return later, false
		}
		b.Amount = domain.AddQuantity(a.Amount, b.Amount)
		return b, true
	}
	return later, false
}

func asReducer(r SubReducer) reducer.Reducer[Item, Event] {
	return reducer.ReducerFunc[Item, Event](func(i Item, e Event) Item {
		return e.dispatch(i, r)
	})
}

// Definition describes how items are reduced. Items always revert by full replay.
func Definition() reducer.Definition[Item, Event] {
	return reducer.Definition[Item, Event]{
		Kind: domain.EntityKindItem,
		New:  New,
		Reducers: []reducer.Reducer[Item, Event]{
			asReducer(supplyReducer{}),
			asReducer(ownersReducer{}),
			asReducer(creatorsReducer{}),
			asReducer(calculatedReducer{}),
		},
		Merger: reducer.MergerFunc[Event](merge),
	}
}

// NewEngine creates the item reduction engine
func NewEngine(cfg reducer.Config) *reducer.Engine[Item, Event] {
	return reducer.NewEngine(Definition(), cfg)
}
