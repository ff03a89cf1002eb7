// Package balance reduces fungible token transfer events into per-owner balances.
package balance

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/feral-file/ff-state-reducer/internal/domain"
	"github.com/feral-file/ff-state-reducer/internal/reducer"
)

// Balance is the amount of one token held by one owner
type Balance struct {
	Token   common.Address `json:"token"`
	Owner   common.Address `json:"owner"`
	Value   *big.Int       `json:"value"`
	Deleted bool           `json:"deleted"`
	reducer.Activity

	Version int64 `json:"-"`
}

// NewID builds the balance id token:owner
func NewID(token, owner common.Address) string {
	return domain.JoinEntityID(token.Hex(), owner.Hex())
}

// ParseID splits a balance id into token and owner
func ParseID(id string) (common.Address, common.Address, error) {
	parts, err := domain.SplitEntityID(id, 2)
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	token, err := domain.ParseAddress(parts[0])
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	owner, err := domain.ParseAddress(parts[1])
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	return token, owner, nil
}

// New returns the empty balance for an id
func New(id string) (Balance, error) {
	token, owner, err := ParseID(id)
	if err != nil {
		return Balance{}, err
	}
	return Balance{Token: token, Owner: owner, Value: domain.Zero()}, nil
}

func (b Balance) EntityID() string {
	return NewID(b.Token, b.Owner)
}

func (b Balance) EntityVersion() int64 {
	return b.Version
}

func (b Balance) WithVersion(version int64) Balance {
	b.Version = version
	return b
}

// Clone returns a copy; quantities are never mutated in place so they may be shared
func (b Balance) Clone() Balance {
	return b
}

func (b Balance) IsDeleted() bool {
	return b.Deleted
}

func (b Balance) SameState(o Balance) bool {
	return b.Token == o.Token &&
		b.Owner == o.Owner &&
		domain.EqualQuantity(b.Value, o.Value) &&
		b.Deleted == o.Deleted &&
		b.Activity.Same(o.Activity)
}
