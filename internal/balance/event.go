package balance

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
	TypeIncomingTransfer = "incoming_transfer"
	TypeOutgoingTransfer = "outgoing_transfer"
)

// Event is the closed set of balance events
type Event interface {
	reducer.Event
	// dispatch routes the event to the matching SubReducer method
	dispatch(b Balance, r SubReducer) Balance
}

// SubReducer owns one facet of a balance and handles every balance event kind.
// Adding an event kind adds a method here, so every sub-reducer must handle it.
type SubReducer interface {
	IncomingTransfer(b Balance, e IncomingTransfer) Balance
	OutgoingTransfer(b Balance, e OutgoingTransfer) Balance
	Unrecognized(b Balance, e Unrecognized) Balance
}

// IncomingTransfer credits the owner
type IncomingTransfer struct {
	domain.EventMeta `json:"-"`
	From             common.Address `json:"from"`
	Amount           *big.Int       `json:"amount"`
}

func (e IncomingTransfer) Validate() error {
	if err := e.EventMeta.Validate(); err != nil {
		return err
	}
	return domain.ValidateQuantity("amount", e.Amount)
}

func (e IncomingTransfer) dispatch(b Balance, r SubReducer) Balance {
	return r.IncomingTransfer(b, e)
}

// OutgoingTransfer debits the owner
type OutgoingTransfer struct {
	domain.EventMeta `json:"-"`
	To               common.Address `json:"to"`
	Amount           *big.Int       `json:"amount"`
}

func (e OutgoingTransfer) Validate() error {
	if err := e.EventMeta.Validate(); err != nil {
		return err
	}
	return domain.ValidateQuantity("amount", e.Amount)
}

func (e OutgoingTransfer) dispatch(b Balance, r SubReducer) Balance {
	return r.OutgoingTransfer(b, e)
}

// Unrecognized is an event of a type this version does not know; it folds as a no-op
type Unrecognized struct {
	domain.EventMeta `json:"-"`
	Type             string          `json:"-"`
	Payload          json.RawMessage `json:"-"`
}

func (e Unrecognized) dispatch(b Balance, r SubReducer) Balance {
	return r.Unrecognized(b, e)
}

// Decode turns an event record into a typed balance event
func Decode(rec domain.EventRecord) (Event, error) {
	switch rec.Type {
	case TypeIncomingTransfer:
		e, err := domain.DecodePayload[IncomingTransfer](rec)
		e.EventMeta = rec.Meta
		return e, err
	case TypeOutgoingTransfer:
		e, err := domain.DecodePayload[OutgoingTransfer](rec)
		e.EventMeta = rec.Meta
		return e, err
	default:
		return Unrecognized{EventMeta: rec.Meta, Type: rec.Type, Payload: rec.Payload}, nil
	}
}

// Encode turns a balance event into an event record
func Encode(e Event) (domain.EventRecord, error) {
	rec := domain.EventRecord{Kind: domain.EntityKindBalance, Meta: e.Meta()}
	switch ev := e.(type) {
	case IncomingTransfer:
		rec.Type = TypeIncomingTransfer
	case OutgoingTransfer:
		rec.Type = TypeOutgoingTransfer
	case Unrecognized:
		rec.Type = ev.Type
		rec.Payload = ev.Payload
		return rec, nil
	default:
		return rec, fmt.Errorf("unsupported balance event %T", e)
	}

	payload, err := json.Marshal(e)
	if err != nil {
		return rec, fmt.Errorf("failed to encode %s payload: %w", rec.Type, err)
	}
	rec.Payload = payload
	return rec, nil
}
