// Package fixedmath provides the mul-div primitive every price and amount
// computation in the engine routes through. Intermediate products are kept at
// 512 bits so operands may approach the full 256-bit range without overflow;
// results are truncated toward zero. Division by zero and overflow of the
// final result are explicit errors, never silent wraparound.
package fixedmath

import (
	"errors"

	"github.com/holiman/uint256"
)

var (
	ErrDivByZero = errors.New("fixedmath: division by zero")
	ErrOverflow  = errors.New("fixedmath: result exceeds 256 bits")
)

// BpsDenominator is the basis-point scale: 10000 bps == 100%.
const BpsDenominator = 10_000

var wad = uint256.NewInt(1e18)

// Wad returns a fresh copy of the fixed-point unit value (10^18).
func Wad() *uint256.Int { return new(uint256.Int).Set(wad) }

// MulDiv returns floor(x*y/d) computed with a 512-bit intermediate product.
func MulDiv(x, y, d *uint256.Int) (*uint256.Int, error) {
	if d.IsZero() {
		return nil, ErrDivByZero
	}
	z, overflow := new(uint256.Int).MulDivOverflow(x, y, d)
	if overflow {
		return nil, ErrOverflow
	}
	return z, nil
}

// MulWad returns floor(x*y/10^18).
func MulWad(x, y *uint256.Int) (*uint256.Int, error) {
	return MulDiv(x, y, wad)
}

// DivWad returns floor(x*10^18/y).
func DivWad(x, y *uint256.Int) (*uint256.Int, error) {
	return MulDiv(x, wad, y)
}

// BpsOf returns floor(x*bps/10000).
func BpsOf(x *uint256.Int, bps uint64) (*uint256.Int, error) {
	return MulDiv(x, uint256.NewInt(bps), uint256.NewInt(BpsDenominator))
}

// AbsDiff returns |x-y|.
func AbsDiff(x, y *uint256.Int) *uint256.Int {
	if x.Cmp(y) >= 0 {
		return new(uint256.Int).Sub(x, y)
	}
	return new(uint256.Int).Sub(y, x)
}
