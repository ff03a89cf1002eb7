// Package ownership reduces NFT events into the holding of one owner for one item.
package ownership

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/feral-file/ff-state-reducer/internal/domain"
	"github.com/feral-file/ff-state-reducer/internal/reducer"
)

// Ownership is the quantity of one item held by one owner
type Ownership struct {
	Token   common.Address `json:"token"`
	TokenID *big.Int       `json:"token_id"`
	Owner   common.Address `json:"owner"`
	Value   *big.Int       `json:"value"`
	// LazyValue is signed but not yet minted quantity assigned to the owner
	LazyValue *big.Int `json:"lazy_value"`
	Deleted   bool     `json:"deleted"`
	domain.CreatorSet
	reducer.Activity

	Version int64 `json:"-"`
}

// NewID builds the ownership id token:tokenId:owner
func NewID(token common.Address, tokenID *big.Int, owner common.Address) string {
	return domain.JoinEntityID(token.Hex(), tokenID.String(), owner.Hex())
}

// ParseID splits an ownership id into token, token id and owner
func ParseID(id string) (common.Address, *big.Int, common.Address, error) {
	parts, err := domain.SplitEntityID(id, 3)
	if err != nil {
		return common.Address{}, nil, common.Address{}, err
	}
	token, err := domain.ParseAddress(parts[0])
	if err != nil {
		return common.Address{}, nil, common.Address{}, err
	}
	tokenID, err := domain.ParseTokenID(parts[1])
	if err != nil {
		return common.Address{}, nil, common.Address{}, err
	}
	owner, err := domain.ParseAddress(parts[2])
	if err != nil {
		return common.Address{}, nil, common.Address{}, err
	}
	return token, tokenID, owner, nil
}

// New returns the empty ownership for an id
func New(id string) (Ownership, error) {
	token, tokenID, owner, err := ParseID(id)
	if err != nil {
		return Ownership{}, err
	}
	return Ownership{
		Token:     token,
		TokenID:   tokenID,
		Owner:     owner,
		Value:     domain.Zero(),
		LazyValue: domain.Zero(),
	}, nil
}

func (o Ownership) EntityID() string {
	return NewID(o.Token, o.TokenID, o.Owner)
}

func (o Ownership) EntityVersion() int64 {
	return o.Version
}

func (o Ownership) WithVersion(version int64) Ownership {
	o.Version = version
	return o
}

func (o Ownership) Clone() Ownership {
	o.CreatorSet = o.CloneCreators()
	return o
}

func (o Ownership) IsDeleted() bool {
	return o.Deleted
}

func (o Ownership) SameState(other Ownership) bool {
	return o.Token == other.Token &&
		domain.EqualQuantity(o.TokenID, other.TokenID) &&
		o.Owner == other.Owner &&
		domain.EqualQuantity(o.Value, other.Value) &&
		domain.EqualQuantity(o.LazyValue, other.LazyValue) &&
		o.Deleted == other.Deleted &&
		o.SameCreators(other.CreatorSet) &&
		o.Activity.Same(other.Activity)
}
