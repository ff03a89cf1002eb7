package order

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
	TypePlaced             = "placed"
	TypeMatched            = "matched"
	TypeCancelled          = "cancelled"
	TypeMakeBalanceChanged = "make_balance_changed"
)

// Event is the closed set of order events
type Event interface {
	reducer.Event
	dispatch(o Order, r SubReducer) Order
}

// SubReducer owns one facet of an order and handles every order event kind
type SubReducer interface {
	Placed(o Order, e Placed) Order
	Matched(o Order, e Matched) Order
	Cancelled(o Order, e Cancelled) Order
	MakeBalanceChanged(o Order, e MakeBalanceChanged) Order
	Unrecognized(o Order, e Unrecognized) Order
}

// Placed publishes the order's identity fields
type Placed struct {
	domain.EventMeta `json:"-"`
	Maker            common.Address `json:"maker"`
	Make             Asset          `json:"make"`
	Take             Asset          `json:"take"`
	Salt             *big.Int       `json:"salt"`
}

func (e Placed) Validate() error {
	if err := e.EventMeta.Validate(); err != nil {
		return err
	}
	if e.Salt == nil {
		return fmt.Errorf("%w: missing salt", domain.ErrInvalidEvent)
	}
	if err := validatePositive("make value", e.Make.Value); err != nil {
		return err
	}
	if err := validatePositive("take value", e.Take.Value); err != nil {
		return err
	}

	hash, err := Hash(e.Maker, e.Make, e.Take, e.Salt)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidEvent, err)
	}
	if hash != e.EntityID {
		return fmt.Errorf("%w: order fields hash to %s, not %s", domain.ErrInvalidEvent, hash, e.EntityID)
	}
	return nil
}

func validatePositive(name string, q *big.Int) error {
	if err := domain.ValidateQuantity(name, q); err != nil {
		return err
	}
	if q.Sign() == 0 {
		return fmt.Errorf("%w: zero %s", domain.ErrInvalidEvent, name)
	}
	return nil
}

func (e Placed) dispatch(o Order, r SubReducer) Order {
	return r.Placed(o, e)
}

// Matched records take quantity filled by a match
type Matched struct {
	domain.EventMeta `json:"-"`
	Fill             *big.Int `json:"fill"`
}

func (e Matched) Validate() error {
	if err := e.EventMeta.Validate(); err != nil {
		return err
	}
	return domain.ValidateQuantity("fill", e.Fill)
}

func (e Matched) dispatch(o Order, r SubReducer) Order {
	return r.Matched(o, e)
}

// Cancelled marks the order as cancelled by its maker
type Cancelled struct {
	domain.EventMeta `json:"-"`
}

func (e Cancelled) dispatch(o Order, r SubReducer) Order {
	return r.Cancelled(o, e)
}

// MakeBalanceChanged carries the maker's new balance of the make asset
type MakeBalanceChanged struct {
	domain.EventMeta `json:"-"`
	Balance          *big.Int `json:"balance"`
}

func (e MakeBalanceChanged) Validate() error {
	if err := e.EventMeta.Validate(); err != nil {
		return err
	}
	return domain.ValidateQuantity("balance", e.Balance)
}

func (e MakeBalanceChanged) dispatch(o Order, r SubReducer) Order {
	return r.MakeBalanceChanged(o, e)
}

// Unrecognized is an event of a type this version does not know; it folds as a no-op
type Unrecognized struct {
	domain.EventMeta `json:"-"`
	Type             string          `json:"-"`
	Payload          json.RawMessage `json:"-"`
}

func (e Unrecognized) dispatch(o Order, r SubReducer) Order {
	return r.Unrecognized(o, e)
}

// Decode turns an event record into a typed order event
func Decode(rec domain.EventRecord) (Event, error) {
	switch rec.Type {
	case TypePlaced:
		e, err := domain.DecodePayload[Placed](rec)
		e.EventMeta = rec.Meta
		return e, err
	case TypeMatched:
		e, err := domain.DecodePayload[Matched](rec)
		e.EventMeta = rec.Meta
		return e, err
	case TypeCancelled:
		return Cancelled{EventMeta: rec.Meta}, nil
	case TypeMakeBalanceChanged:
		e, err := domain.DecodePayload[MakeBalanceChanged](rec)
		e.EventMeta = rec.Meta
		return e, err
	default:
		return Unrecognized{EventMeta: rec.Meta, Type: rec.Type, Payload: rec.Payload}, nil
	}
}

// Encode turns an order event into an event record
func Encode(e Event) (domain.EventRecord, error) {
	rec := domain.EventRecord{Kind: domain.EntityKindOrder, Meta: e.Meta()}
	switch ev := e.(type) {
	case Placed:
		rec.Type = TypePlaced
	case Matched:
		rec.Type = TypeMatched
	case Cancelled:
		rec.Type = TypeCancelled
	case MakeBalanceChanged:
		rec.Type = TypeMakeBalanceChanged
	case Unrecognized:
		rec.Type = ev.Type
		rec.Payload = ev.Payload
		return rec, nil
	default:
		return rec, fmt.Errorf("unsupported order event %T", e)
	}

	payload, err := json.Marshal(e)
	if err != nil {
		return rec, fmt.Errorf("failed to encode %s payload: %w", rec.Type, err)
	}
	rec.Payload = payload
	return rec, nil
}
