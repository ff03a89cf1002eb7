package domain

import (
	"fmt"
	"slices"

	"github.com/ethereum/go-ethereum/common"
)

// FULL_SHARE is the share of a sole creator, in basis points
const FULL_SHARE = 10000

// Part is an account with a share in basis points
type Part struct {
	Account common.Address `json:"account"`
	Value   uint32         `json:"value"`
}

// ValidateParts rejects shares that do not add up to at most a full share
func ValidateParts(parts []Part) error {
	var total uint64
	for _, p := range parts {
		total += uint64(p.Value)
	}
	if total > FULL_SHARE {
		return fmt.Errorf("%w: creator shares add up to %d", ErrInvalidEvent, total)
	}
	return nil
}

// CreatorSet is the creator facet shared by items and ownerships.
// A minter is only a provisional guess until an explicit creator list arrives.
type CreatorSet struct {
	Creators      []Part `json:"creators"`
	CreatorsFinal bool   `json:"creators_final"`
}

// WithMinter records the minter as sole creator unless creators are already known
func (c CreatorSet) WithMinter(minter common.Address) CreatorSet {
	if c.CreatorsFinal || len(c.Creators) > 0 || minter == ZeroAddress {
		return c
	}
	return CreatorSet{Creators: []Part{{Account: minter, Value: FULL_SHARE}}}
}

// WithExplicit replaces the creators with an authoritative list
func (c CreatorSet) WithExplicit(parts []Part) CreatorSet {
	return CreatorSet{Creators: slices.Clone(parts), CreatorsFinal: true}
}

// CloneCreators returns a copy that shares no slice with the receiver
func (c CreatorSet) CloneCreators() CreatorSet {
	return CreatorSet{Creators: slices.Clone(c.Creators), CreatorsFinal: c.CreatorsFinal}
}

// SameCreators compares two creator facets by value
func (c CreatorSet) SameCreators(o CreatorSet) bool {
	return c.CreatorsFinal == o.CreatorsFinal && slices.Equal(c.Creators, o.Creators)
}
