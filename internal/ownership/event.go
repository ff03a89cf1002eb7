package ownership

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/feral-file/ff-state-reducer/internal/domain"
	"github.com/feral-file/ff-state-reducer/internal/reducer"
)

// Event type names used in event records
const (
	TypeMint        = "mint"
	TypeTransfer    = "transfer"
	TypeBurn        = "burn"
	TypeCreatorsSet = "creators_set"
	TypeLazyMint    = "lazy_mint"
	TypeLazyBurn    = "lazy_burn"
)

// Event is the closed set of ownership events. Directions are relative to the ownership's owner.
type Event interface {
	reducer.Event
	dispatch(o Ownership, r SubReducer) Ownership
}

// SubReducer owns one facet of an ownership and handles every ownership event kind
type SubReducer interface {
	Mint(o Ownership, e Mint) Ownership
	Transfer(o Ownership, e Transfer) Ownership
	Burn(o Ownership, e Burn) Ownership
	CreatorsSet(o Ownership, e CreatorsSet) Ownership
	LazyMint(o Ownership, e LazyMint) Ownership
	LazyBurn(o Ownership, e LazyBurn) Ownership
	Unrecognized(o Ownership, e Unrecognized) Ownership
}

// Mint credits To with newly minted quantity
type Mint struct {
	domain.EventMeta `json:"-"`
	To               common.Address `json:"to"`
	Amount           *big.Int       `json:"amount"`
	Minter           common.Address `json:"minter"`
}

func (e Mint) Validate() error {
	if err := e.EventMeta.Validate(); err != nil {
		return err
	}
	return domain.ValidateQuantity("amount", e.Amount)
}

func (e Mint) dispatch(o Ownership, r SubReducer) Ownership {
	return r.Mint(o, e)
}

// Transfer moves quantity from From to To
type Transfer struct {
	domain.EventMeta `json:"-"`
	From             common.Address `json:"from"`
	To               common.Address `json:"to"`
	Amount           *big.Int       `json:"amount"`
}

func (e Transfer) Validate() error {
	if err := e.EventMeta.Validate(); err != nil {
		return err
	}
	return domain.ValidateQuantity("amount", e.Amount)
}

func (e Transfer) dispatch(o Ownership, r SubReducer) Ownership {
	return r.Transfer(o, e)
}

// Burn destroys quantity held by From
type Burn struct {
	domain.EventMeta `json:"-"`
	From             common.Address `json:"from"`
	Amount           *big.Int       `json:"amount"`
}

func (e Burn) Validate() error {
	if err := e.EventMeta.Validate(); err != nil {
		return err
	}
	return domain.ValidateQuantity("amount", e.Amount)
}

func (e Burn) dispatch(o Ownership, r SubReducer) Ownership {
	return r.Burn(o, e)
}

// CreatorsSet is an authoritative creator list for the item
type CreatorsSet struct {
	domain.EventMeta `json:"-"`
	Creators         []domain.Part `json:"creators"`
}

func (e CreatorsSet) Validate() error {
	if err := e.EventMeta.Validate(); err != nil {
		return err
	}
	return domain.ValidateParts(e.Creators)
}

func (e CreatorsSet) dispatch(o Ownership, r SubReducer) Ownership {
	return r.CreatorsSet(o, e)
}

// LazyMint assigns signed, unminted quantity to To
type LazyMint struct {
	domain.EventMeta `json:"-"`
	To               common.Address `json:"to"`
	Amount           *big.Int       `json:"amount"`
	Creators         []domain.Part  `json:"creators"`
}

func (e LazyMint) Validate() error {
	if err := e.EventMeta.Validate(); err != nil {
		return err
	}
	if err := domain.ValidateQuantity("amount", e.Amount); err != nil {
		return err
	}
	return domain.ValidateParts(e.Creators)
}

func (e LazyMint) dispatch(o Ownership, r SubReducer) Ownership {
	return r.LazyMint(o, e)
}

// LazyBurn withdraws signed, unminted quantity from From
type LazyBurn struct {
	domain.EventMeta `json:"-"`
	From             common.Address `json:"from"`
	Amount           *big.Int       `json:"amount"`
}

func (e LazyBurn) Validate() error {
	if err := e.EventMeta.Validate(); err != nil {
		return err
	}
	return domain.ValidateQuantity("amount", e.Amount)
}

func (e LazyBurn) dispatch(o Ownership, r SubReducer) Ownership {
	return r.LazyBurn(o, e)
}

// Unrecognized is an event of a type this version does not know; it folds as a no-op
type Unrecognized struct {
	domain.EventMeta `json:"-"`
	Type             string          `json:"-"`
	Payload          json.RawMessage `json:"-"`
}

func (e Unrecognized) dispatch(o Ownership, r SubReducer) Ownership {
	return r.Unrecognized(o, e)
}

// Decode turns an event record into a typed ownership event
func Decode(rec domain.EventRecord) (Event, error) {
	switch rec.Type {
	case TypeMint:
		e, err := domain.DecodePayload[Mint](rec)
		e.EventMeta = rec.Meta
		return e, err
	case TypeTransfer:
		e, err := domain.DecodePayload[Transfer](rec)
		e.EventMeta = rec.Meta
		return e, err
	case TypeBurn:
		e, err := domain.DecodePayload[Burn](rec)
		e.EventMeta = rec.Meta
		return e, err
	case TypeCreatorsSet:
		e, err := domain.DecodePayload[CreatorsSet](rec)
		e.EventMeta = rec.Meta
		return e, err
	case TypeLazyMint:
		e, err := domain.DecodePayload[LazyMint](rec)
		e.EventMeta = rec.Meta
		return e, err
	case TypeLazyBurn:
		e, err := domain.DecodePayload[LazyBurn](rec)
		e.EventMeta = rec.Meta
		return e, err
	default:
		return Unrecognized{EventMeta: rec.Meta, Type: rec.Type, Payload: rec.Payload}, nil
	}
}

// Encode turns an ownership event into an event record
func Encode(e Event) (domain.EventRecord, error) {
	rec := domain.EventRecord{Kind: domain.EntityKindOwnership, Meta: e.Meta()}
	switch ev := e.(type) {
	case Mint:
		rec.Type = TypeMint
	case Transfer:
		rec.Type = TypeTransfer
	case Burn:
		rec.Type = TypeBurn
	case CreatorsSet:
		rec.Type = TypeCreatorsSet
	case LazyMint:
		rec.Type = TypeLazyMint
	case LazyBurn:
		rec.Type = TypeLazyBurn
	case Unrecognized:
		rec.Type = ev.Type
		rec.Payload = ev.Payload
		return rec, nil
	default:
		return rec, fmt.Errorf("unsupported ownership event %T", e)
	}

	payload, err := json.Marshal(e)
	if err != nil {
		return rec, fmt.Errorf("failed to encode %s payload: %w", rec.Type, err)
	}
	rec.Payload = payload
	return rec, nil
}
