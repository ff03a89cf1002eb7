package domain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ZeroAddress is the address used as the counterparty of mints and burns
var ZeroAddress = common.HexToAddress(ETHEREUM_ZERO_ADDRESS)

// ParseAddress parses a hex address, rejecting malformed input instead of truncating it
func ParseAddress(address string) (common.Address, error) {
	address = strings.TrimSpace(address)
	if !common.IsHexAddress(address) {
		return common.Address{}, fmt.Errorf("%w: bad address %q", ErrInvalidEntityID, address)
	}
	return common.HexToAddress(address), nil
}

// ParseTokenID parses a decimal token id
func ParseTokenID(tokenID string) (*big.Int, error) {
	id, ok := new(big.Int).SetString(strings.TrimSpace(tokenID), 10)
	if !ok || id.Sign() < 0 {
		return nil, fmt.Errorf("%w: bad token id %q", ErrInvalidEntityID, tokenID)
	}
	return id, nil
}

// SplitEntityID splits a composite entity id into exactly n parts
func SplitEntityID(id string, n int) ([]string, error) {
	parts := strings.Split(id, ENTITY_ID_SEPARATOR)
	if len(parts) != n {
		return nil, fmt.Errorf("%w: %q has %d parts, want %d", ErrInvalidEntityID, id, len(parts), n)
	}
	return parts, nil
}

// JoinEntityID joins parts into a composite entity id
func JoinEntityID(parts ...string) string {
	return strings.Join(parts, ENTITY_ID_SEPARATOR)
}
