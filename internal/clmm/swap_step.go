package clmm

import (
	"github.com/holiman/uint256"
)

// StepResult is the outcome of one uncrossed swap segment.
type StepResult struct {
	SqrtPriceNext *uint256.Int
	AmountIn      *uint256.Int
	AmountOut     *uint256.Int
}

// Reached reports whether the step landed on target.
func (s StepResult) Reached(target *uint256.Int) bool {
	return s.SqrtPriceNext.Eq(target)
}

// ComputeSwapStep computes the input consumed and output produced moving from
// sqrtPriceCurrent toward sqrtPriceTarget at constant liquidity, spending at most
// amountRemaining. Inputs round up and outputs round down so the pool never
// pays for rounding.
func ComputeSwapStep(sqrtPriceCurrent, sqrtPriceTarget, liquidity, amountRemaining *uint256.Int, dir Direction) (StepResult, error) {
	if dir == AToB && sqrtPriceTarget.Gt(sqrtPriceCurrent) {
		return StepResult{}, ErrInvalidTickIndex.Wrap("a-to-b target above current price")
	}
	if dir == BToA && sqrtPriceTarget.Lt(sqrtPriceCurrent) {
		return StepResult{}, ErrInvalidTickIndex.Wrap("b-to-a target below current price")
	}

	// Nothing trades across an empty segment.
	if liquidity.IsZero() {
		return StepResult{
			SqrtPriceNext: new(uint256.Int).Set(sqrtPriceTarget),
			AmountIn:      new(uint256.Int),
			AmountOut:     new(uint256.Int),
		}, nil
	}

	var required *uint256.Int
	var err error
	if dir == AToB {
		required, err = amountADelta(sqrtPriceTarget, sqrtPriceCurrent, liquidity, true)
	} else {
		required, err = amountBDelta(sqrtPriceCurrent, sqrtPriceTarget, liquidity, true)
	}
	if err != nil {
		return StepResult{}, err
	}

	var next, amountIn *uint256.Int
	if amountRemaining.Cmp(required) >= 0 {
		next = new(uint256.Int).Set(sqrtPriceTarget)
		amountIn = required
	} else {
		next, err = nextSqrtPriceFromInput(sqrtPriceCurrent, liquidity, amountRemaining, dir)
		if err != nil {
			return StepResult{}, err
		}
		if dir == AToB && next.Lt(sqrtPriceTarget) || dir == BToA && next.Gt(sqrtPriceTarget) {
			next.Set(sqrtPriceTarget)
		}
		amountIn = new(uint256.Int).Set(amountRemaining)
	}

	var amountOut *uint256.Int
	if dir == AToB {
		amountOut, err = amountBDelta(next, sqrtPriceCurrent, liquidity, false)
	} else {
		amountOut, err = amountADelta(sqrtPriceCurrent, next, liquidity, false)
	}
	if err != nil {
		return StepResult{}, err
	}

	return StepResult{SqrtPriceNext: next, AmountIn: amountIn, AmountOut: amountOut}, nil
}

// nextSqrtPriceFromInput solves for the price reached by spending amountIn.
//
//	a-to-b: L*Pc / (L + dx*Pc), rounded up so the price moves no further than paid for
//	b-to-a: Pc + dy/L, rounded down
func nextSqrtPriceFromInput(sqrtPrice, liquidity, amountIn *uint256.Int, dir Direction) (*uint256.Int, error) {
	if dir == AToB {
		// L is Q0 and prices are Q64.64, so L is lifted to Q64.64 first.
		numerator, err := checkedMul(liquidity, Q64)
		if err != nil {
			return nil, err
		}
		product, err := checkedMul(amountIn, sqrtPrice)
		if err != nil {
			return nil, err
		}
		denominator, err := checkedAdd(numerator, product)
		if err != nil {
			return nil, err
		}
		return mulDivRoundingUp(numerator, sqrtPrice, denominator)
	}

	quotient, err := mulDiv(amountIn, Q64, liquidity)
	if err != nil {
		return nil, err
	}
	next, err := checkedAdd(sqrtPrice, quotient)
	if err != nil {
		return nil, err
	}
	if !fitsU128(next) {
		return nil, overflow("sqrt price exceeds u128")
	}
	return next, nil
}
