package domain

import (
	"fmt"
	"math/big"
)

// Zero returns a new zero quantity
func Zero() *big.Int {
	return new(big.Int)
}

// QuantityOrZero returns q, or zero when q is nil
func QuantityOrZero(q *big.Int) *big.Int {
	if q == nil {
		return Zero()
	}
	return q
}

// AddQuantity returns a+b without mutating either operand
func AddQuantity(a, b *big.Int) *big.Int {
	return new(big.Int).Add(QuantityOrZero(a), QuantityOrZero(b))
}

// SubQuantity returns max(0, a-b) without mutating either operand.
// The second return value reports whether the result was clamped.
func SubQuantity(a, b *big.Int) (*big.Int, bool) {
	out := new(big.Int).Sub(QuantityOrZero(a), QuantityOrZero(b))
	if out.Sign() < 0 {
		return Zero(), true
	}
	return out, false
}

// MinQuantity returns the smaller of a and b
func MinQuantity(a, b *big.Int) *big.Int {
	if QuantityOrZero(a).Cmp(QuantityOrZero(b)) <= 0 {
		return new(big.Int).Set(QuantityOrZero(a))
	}
	return new(big.Int).Set(QuantityOrZero(b))
}

// IsZeroQuantity reports whether q is nil or zero
func IsZeroQuantity(q *big.Int) bool {
	return q == nil || q.Sign() == 0
}

// EqualQuantity compares two quantities treating nil as zero
func EqualQuantity(a, b *big.Int) bool {
	return QuantityOrZero(a).Cmp(QuantityOrZero(b)) == 0
}

// ValidateQuantity rejects missing or negative amounts carried by an event
func ValidateQuantity(name string, q *big.Int) error {
	if q == nil {
		return fmt.Errorf("%w: missing %s", ErrInvalidEvent, name)
	}
	if q.Sign() < 0 {
		return fmt.Errorf("%w: negative %s %s", ErrInvalidEvent, name, q.String())
	}
	return nil
}
