package clmm

import (
	"github.com/holiman/uint256"
)

// AmountsForLiquidity returns the asset quantities represented by liquidity over
// [sqrtPriceLower, sqrtPriceUpper] at sqrtPriceCurrent. Results are truncated.
//
//	current <= lower: only A, L*(Pu-Pl)/(Pu*Pl)
//	current >= upper: only B, L*(Pu-Pl)
//	otherwise:        A = L*(Pu-Pc)/(Pu*Pc), B = L*(Pc-Pl)
func AmountsForLiquidity(sqrtPriceCurrent, sqrtPriceLower, sqrtPriceUpper, liquidity *uint256.Int) (uint64, uint64, error) {
	return amountsForLiquidity(sqrtPriceCurrent, sqrtPriceLower, sqrtPriceUpper, liquidity, false)
}

// amountsForLiquidity rounds up when the pool is being paid.
func amountsForLiquidity(sqrtPriceCurrent, sqrtPriceLower, sqrtPriceUpper, liquidity *uint256.Int, roundUp bool) (uint64, uint64, error) {
	if err := checkRange(sqrtPriceLower, sqrtPriceUpper); err != nil {
		return 0, 0, err
	}

	var amountA, amountB *uint256.Int
	var err error
	switch {
	case sqrtPriceCurrent.Cmp(sqrtPriceLower) <= 0:
		amountA, err = amountADelta(sqrtPriceLower, sqrtPriceUpper, liquidity, roundUp)
		if err != nil {
			return 0, 0, err
		}
		amountB = new(uint256.Int)
	case sqrtPriceCurrent.Cmp(sqrtPriceUpper) >= 0:
		amountA = new(uint256.Int)
		amountB, err = amountBDelta(sqrtPriceLower, sqrtPriceUpper, liquidity, roundUp)
		if err != nil {
			return 0, 0, err
		}
	default:
		amountA, err = amountADelta(sqrtPriceCurrent, sqrtPriceUpper, liquidity, roundUp)
		if err != nil {
			return 0, 0, err
		}
		amountB, err = amountBDelta(sqrtPriceLower, sqrtPriceCurrent, liquidity, roundUp)
		if err != nil {
			return 0, 0, err
		}
	}

	a, err := toUint64(amountA)
	if err != nil {
		return 0, 0, err
	}
	b, err := toUint64(amountB)
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

// LiquidityForAmounts returns the largest liquidity that maxA and maxB can fund
// over the range at the current price. Inside the range the smaller of the two
// asset-implied liquidities is used so neither asset is over-spent.
func LiquidityForAmounts(sqrtPriceCurrent, sqrtPriceLower, sqrtPriceUpper *uint256.Int, maxA, maxB uint64) (*uint256.Int, error) {
	if err := checkRange(sqrtPriceLower, sqrtPriceUpper); err != nil {
		return nil, err
	}

	amountA := uint256.NewInt(maxA)
	amountB := uint256.NewInt(maxB)

	var liquidity *uint256.Int
	var err error
	switch {
	case sqrtPriceCurrent.Cmp(sqrtPriceLower) <= 0:
		liquidity, err = liquidityFromA(sqrtPriceLower, sqrtPriceUpper, amountA)
	case sqrtPriceCurrent.Cmp(sqrtPriceUpper) >= 0:
		liquidity, err = liquidityFromB(sqrtPriceLower, sqrtPriceUpper, amountB)
	default:
		var fromA, fromB *uint256.Int
		fromA, err = liquidityFromA(sqrtPriceCurrent, sqrtPriceUpper, amountA)
		if err != nil {
			return nil, err
		}
		fromB, err = liquidityFromB(sqrtPriceLower, sqrtPriceCurrent, amountB)
		if err != nil {
			return nil, err
		}
		liquidity = minU256(fromA, fromB)
	}
	if err != nil {
		return nil, err
	}
	if !fitsU128(liquidity) {
		return nil, overflow("liquidity exceeds u128")
	}
	return liquidity, nil
}

// amountADelta returns L*(high-low)/(high*low) in asset A units.
func amountADelta(sqrtLow, sqrtHigh, liquidity *uint256.Int, roundUp bool) (*uint256.Int, error) {
	if sqrtLow.Gt(sqrtHigh) {
		sqrtLow, sqrtHigh = sqrtHigh, sqrtLow
	}
	if sqrtLow.IsZero() {
		return nil, overflow("zero sqrt price")
	}
	numerator1, err := checkedMul(liquidity, Q64)
	if err != nil {
		return nil, err
	}
	numerator2 := new(uint256.Int).Sub(sqrtHigh, sqrtLow)

	if roundUp {
		q, err := mulDivRoundingUp(numerator1, numerator2, sqrtHigh)
		if err != nil {
			return nil, err
		}
		return divRoundingUp(q, sqrtLow)
	}
	q, err := mulDiv(numerator1, numerator2, sqrtHigh)
	if err != nil {
		return nil, err
	}
	return new(uint256.Int).Div(q, sqrtLow), nil
}

// amountBDelta returns L*(high-low) in asset B units.
func amountBDelta(sqrtLow, sqrtHigh, liquidity *uint256.Int, roundUp bool) (*uint256.Int, error) {
	if sqrtLow.Gt(sqrtHigh) {
		sqrtLow, sqrtHigh = sqrtHigh, sqrtLow
	}
	diff := new(uint256.Int).Sub(sqrtHigh, sqrtLow)
	if roundUp {
		return mulDivRoundingUp(liquidity, diff, Q64)
	}
	return mulDiv(liquidity, diff, Q64)
}

func liquidityFromA(sqrtLow, sqrtHigh, amountA *uint256.Int) (*uint256.Int, error) {
	intermediate, err := mulDiv(sqrtLow, sqrtHigh, Q64)
	if err != nil {
		return nil, err
	}
	return mulDiv(amountA, intermediate, new(uint256.Int).Sub(sqrtHigh, sqrtLow))
}

func liquidityFromB(sqrtLow, sqrtHigh, amountB *uint256.Int) (*uint256.Int, error) {
	return mulDiv(amountB, Q64, new(uint256.Int).Sub(sqrtHigh, sqrtLow))
}

func checkRange(sqrtPriceLower, sqrtPriceUpper *uint256.Int) error {
	if sqrtPriceLower == nil || sqrtPriceUpper == nil {
		return overflow("missing range price")
	}
	if !sqrtPriceLower.Lt(sqrtPriceUpper) {
		return ErrTickMismatch.Wrap("lower price must be below upper price")
	}
	return nil
}
