// Package order reduces marketplace events into the state of one order.
package order

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gowebpki/jcs"

	"github.com/feral-file/ff-state-reducer/internal/domain"
	"github.com/feral-file/ff-state-reducer/internal/reducer"
)

// Status is the derived lifecycle status of an order
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusFilled    Status = "FILLED"
	StatusCancelled Status = "CANCELLED"
	StatusInactive  Status = "INACTIVE"
)

// Asset is one side of an order. TokenID is nil for fungible assets.
type Asset struct {
	Token   common.Address `json:"token"`
	TokenID *big.Int       `json:"token_id,omitempty"`
	Value   *big.Int       `json:"value"`
}

// Order is a maker's offer to exchange its Make asset for a Take asset
type Order struct {
	Hash  string         `json:"hash"`
	Maker common.Address `json:"maker"`
	Make  Asset          `json:"make"`
	Take  Asset          `json:"take"`
	Salt  *big.Int       `json:"salt"`

	Placed    bool `json:"placed"`
	Cancelled bool `json:"cancelled"`
	// Fill is the take quantity already matched
	Fill *big.Int `json:"fill"`
	// MakerBalance is the maker's last known balance of the make asset; nil when unknown
	MakerBalance *big.Int `json:"maker_balance,omitempty"`
	// MakeStock is the make quantity still available to takers
	MakeStock *big.Int `json:"make_stock"`
	Status    Status   `json:"status"`
	Deleted   bool     `json:"deleted"`
	reducer.Activity

	Version int64 `json:"-"`
}

type assetIdentity struct {
	Token   string `json:"token"`
	TokenID string `json:"tokenId"`
	Value   string `json:"value"`
}

type orderIdentity struct {
	Maker string        `json:"maker"`
	Make  assetIdentity `json:"make"`
	Take  assetIdentity `json:"take"`
	Salt  string        `json:"salt"`
}

func identityOf(a Asset) assetIdentity {
	id := assetIdentity{
		Token: a.Token.Hex(),
		Value: domain.QuantityOrZero(a.Value).String(),
	}
	if a.TokenID != nil {
		id.TokenID = a.TokenID.String()
	}
	return id
}

// Hash derives the order id: keccak256 of the canonical JSON of the identity fields.
// Quantities are encoded as decimal strings so canonicalization never rounds them.
func Hash(maker common.Address, makeAsset, takeAsset Asset, salt *big.Int) (string, error) {
	raw, err := json.Marshal(orderIdentity{
		Maker: maker.Hex(),
		Make:  identityOf(makeAsset),
		Take:  identityOf(takeAsset),
		Salt:  domain.QuantityOrZero(salt).String(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal order identity: %w", err)
	}

	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize order identity: %w", err)
	}
	return crypto.Keccak256Hash(canonical).Hex(), nil
}

// New returns the empty order for an id
func New(id string) (Order, error) {
	b, err := hexutil.Decode(id)
	if err != nil || len(b) != common.HashLength {
		return Order{}, fmt.Errorf("%w: bad order hash %q", domain.ErrInvalidEntityID, id)
	}
	return Order{
		Hash:      common.BytesToHash(b).Hex(),
		Fill:      domain.Zero(),
		MakeStock: domain.Zero(),
		Status:    StatusInactive,
	}, nil
}

// Remaining returns the make quantity not yet matched, pro rata to the take side
func (o Order) Remaining() *big.Int {
	if !o.Placed || domain.IsZeroQuantity(o.Take.Value) {
		return domain.Zero()
	}
	left, _ := domain.SubQuantity(o.Take.Value, o.Fill)
	out := new(big.Int).Mul(domain.QuantityOrZero(o.Make.Value), left)
	return out.Quo(out, o.Take.Value)
}

func (o Order) EntityID() string {
	return o.Hash
}

func (o Order) EntityVersion() int64 {
	return o.Version
}

func (o Order) WithVersion(version int64) Order {
	o.Version = version
	return o
}

// Clone is a shallow copy; reducers never mutate quantities in place
func (o Order) Clone() Order {
	return o
}

func (o Order) IsDeleted() bool {
	return o.Deleted
}

func sameAsset(a, b Asset) bool {
	return a.Token == b.Token &&
		(a.TokenID == nil) == (b.TokenID == nil) &&
		domain.EqualQuantity(a.TokenID, b.TokenID) &&
		domain.EqualQuantity(a.Value, b.Value)
}

func (o Order) SameState(other Order) bool {
	return o.Hash == other.Hash &&
		o.Maker == other.Maker &&
		sameAsset(o.Make, other.Make) &&
		sameAsset(o.Take, other.Take) &&
		domain.EqualQuantity(o.Salt, other.Salt) &&
		o.Placed == other.Placed &&
		o.Cancelled == other.Cancelled &&
		domain.EqualQuantity(o.Fill, other.Fill) &&
		(o.MakerBalance == nil) == (other.MakerBalance == nil) &&
		domain.EqualQuantity(o.MakerBalance, other.MakerBalance) &&
		domain.EqualQuantity(o.MakeStock, other.MakeStock) &&
		o.Status == other.Status &&
		o.Deleted == other.Deleted &&
		o.Activity.Same(other.Activity)
}
