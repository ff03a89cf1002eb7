// Package item reduces NFT mint, transfer and burn events into item records with an owner map.
package item

import (
	"maps"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/feral-file/ff-state-reducer/internal/domain"
	"github.com/feral-file/ff-state-reducer/internal/reducer"
)

// Item is one token of one contract
type Item struct {
	Token   common.Address `json:"token"`
	TokenID *big.Int       `json:"token_id"`
	// Supply is the on-chain supply, minted minus burned
	Supply *big.Int `json:"supply"`
	// LazySupply is signed but not yet minted supply
	LazySupply *big.Int `json:"lazy_supply"`
	// Owners maps every holder to a strictly positive quantity
	Owners  map[common.Address]*big.Int `json:"owners"`
	Deleted bool                        `json:"deleted"`
	domain.CreatorSet
	reducer.Activity

	Version int64 `json:"-"`
}

// NewID builds the item id token:tokenId
func NewID(token common.Address, tokenID *big.Int) string {
	return domain.JoinEntityID(token.Hex(), tokenID.String())
}

// ParseID splits an item id into token and token id
func ParseID(id string) (common.Address, *big.Int, error) {
	parts, err := domain.SplitEntityID(id, 2)
	if err != nil {
		return common.Address{}, nil, err
	}
	token, err := domain.ParseAddress(parts[0])
	if err != nil {
		return common.Address{}, nil, err
	}
	tokenID, err := domain.ParseTokenID(parts[1])
	if err != nil {
		return common.Address{}, nil, err
	}
	return token, tokenID, nil
}

// New returns the empty item for an id
func New(id string) (Item, error) {
	token, tokenID, err := ParseID(id)
	if err != nil {
		return Item{}, err
	}
	return Item{
		Token:      token,
		TokenID:    tokenID,
		Supply:     domain.Zero(),
		LazySupply: domain.Zero(),
		Owners:     map[common.Address]*big.Int{},
	}, nil
}

func (i Item) EntityID() string {
	return NewID(i.Token, i.TokenID)
}

func (i Item) EntityVersion() int64 {
	return i.Version
}

func (i Item) WithVersion(version int64) Item {
	i.Version = version
	return i
}

// Clone copies the owner map and creator list; quantities are never mutated in place
func (i Item) Clone() Item {
	i.Owners = maps.Clone(i.Owners)
	if i.Owners == nil {
		i.Owners = map[common.Address]*big.Int{}
	}
	i.CreatorSet = i.CloneCreators()
	return i
}

func (i Item) IsDeleted() bool {
	return i.Deleted
}

func (i Item) SameState(o Item) bool {
	return i.Token == o.Token &&
		domain.EqualQuantity(i.TokenID, o.TokenID) &&
		domain.EqualQuantity(i.Supply, o.Supply) &&
		domain.EqualQuantity(i.LazySupply, o.LazySupply) &&
		maps.EqualFunc(i.Owners, o.Owners, domain.EqualQuantity) &&
		i.Deleted == o.Deleted &&
		i.SameCreators(o.CreatorSet) &&
		i.Activity.Same(o.Activity)
}
