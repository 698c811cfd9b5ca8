package clmm

import (
	"github.com/holiman/uint256"
)

var (
	// Q64 is 1.0 in Q64.64.
	Q64 = new(uint256.Int).Lsh(uint256.NewInt(1), 64)

	one = uint256.NewInt(1)
)

// mulDiv returns floor(x*y/d) with a 512-bit intermediate product.
func mulDiv(x, y, d *uint256.Int) (*uint256.Int, error) {
	if d.IsZero() {
		return nil, overflow("mul div by zero")
	}
	z, over := new(uint256.Int).MulDivOverflow(x, y, d)
	if over {
		return nil, overflow("mul div")
	}
	return z, nil
}

// mulDivRoundingUp returns ceil(x*y/d).
func mulDivRoundingUp(x, y, d *uint256.Int) (*uint256.Int, error) {
	z, err := mulDiv(x, y, d)
	if err != nil {
		return nil, err
	}
	if new(uint256.Int).MulMod(x, y, d).IsZero() {
		return z, nil
	}
	return checkedAdd(z, one)
}

func divRoundingUp(x, d *uint256.Int) (*uint256.Int, error) {
	if d.IsZero() {
		return nil, overflow("division by zero")
	}
	q, r := new(uint256.Int).DivMod(x, d, new(uint256.Int))
	if r.IsZero() {
		return q, nil
	}
	return checkedAdd(q, one)
}

func checkedAdd(x, y *uint256.Int) (*uint256.Int, error) {
	z, over := new(uint256.Int).AddOverflow(x, y)
	if over {
		return nil, overflow("add")
	}
	return z, nil
}

func checkedSub(x, y *uint256.Int) (*uint256.Int, error) {
	z, under := new(uint256.Int).SubOverflow(x, y)
	if under {
		return nil, overflow("sub")
	}
	return z, nil
}

func checkedMul(x, y *uint256.Int) (*uint256.Int, error) {
	z, over := new(uint256.Int).MulOverflow(x, y)
	if over {
		return nil, overflow("mul")
	}
	return z, nil
}

func fitsU128(v *uint256.Int) bool {
	return v.BitLen() <= 128
}

// toUint64 downcasts an asset quantity, failing with ArithmeticOverflow.
func toUint64(v *uint256.Int) (uint64, error) {
	if !v.IsUint64() {
		return 0, overflow("amount exceeds u64")
	}
	return v.Uint64(), nil
}

// minU256 returns the smaller of a and b without copying.
func minU256(a, b *uint256.Int) *uint256.Int {
	if a.Lt(b) {
		return a
	}
	return b
}
