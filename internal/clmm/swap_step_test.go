package clmm

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestSwapStepFullCrossing(t *testing.T) {
	current, target := Q64, mustPrice(t, -100)
	liquidity := uint256.NewInt(200_000)

	step, err := ComputeSwapStep(current, target, liquidity, uint256.NewInt(1_000_000), AToB)
	require.NoError(t, err)
	require.True(t, step.Reached(target))
	require.True(t, step.AmountIn.Uint64() < 1_000_000)
	require.False(t, step.AmountOut.IsZero())
}

func TestSwapStepPartialFill(t *testing.T) {
	liquidity := uint256.NewInt(200_000)

	down, err := ComputeSwapStep(Q64, mustPrice(t, -100), liquidity, uint256.NewInt(500), AToB)
	require.NoError(t, err)
	require.Equal(t, uint64(500), down.AmountIn.Uint64())
	require.True(t, down.SqrtPriceNext.Lt(Q64))
	require.True(t, down.SqrtPriceNext.Gt(mustPrice(t, -100)))

	up, err := ComputeSwapStep(Q64, mustPrice(t, 100), liquidity, uint256.NewInt(500), BToA)
	require.NoError(t, err)
	require.Equal(t, uint64(500), up.AmountIn.Uint64())
	require.True(t, up.SqrtPriceNext.Gt(Q64))
	require.True(t, up.SqrtPriceNext.Lt(mustPrice(t, 100)))
	// Without a fee the output is slightly below the input at a 1:1 price.
	require.True(t, up.AmountOut.Uint64() <= 500)
	require.True(t, up.AmountOut.Uint64() > 490)
}

func TestSwapStepZeroLiquidityCrossesFree(t *testing.T) {
	target := mustPrice(t, 100)
	step, err := ComputeSwapStep(Q64, target, new(uint256.Int), uint256.NewInt(10), BToA)
	require.NoError(t, err)
	require.True(t, step.Reached(target))
	require.True(t, step.AmountIn.IsZero())
	require.True(t, step.AmountOut.IsZero())
}

func TestSwapStepRejectsWrongSide(t *testing.T) {
	_, err := ComputeSwapStep(Q64, mustPrice(t, 10), uint256.NewInt(1), uint256.NewInt(1), AToB)
	require.ErrorIs(t, err, ErrInvalidTickIndex)

	_, err = ComputeSwapStep(Q64, mustPrice(t, -10), uint256.NewInt(1), uint256.NewInt(1), BToA)
	require.ErrorIs(t, err, ErrInvalidTickIndex)
}

// A full segment crossing moves exactly the quantities the range math assigns
// to that segment, within one unit of rounding.
func TestSwapStepMatchesRangeMath(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		from := rapid.Int32Range(-5000, 5000).Draw(rt, "from")
		width := rapid.Int32Range(1, 2000).Draw(rt, "width")
		liquidity := uint256.NewInt(rapid.Uint64Range(1, 1<<50).Draw(rt, "liquidity"))
		dir := Direction(rapid.IntRange(0, 1).Draw(rt, "dir"))

		low, _ := TickToSqrtPrice(from)
		high, _ := TickToSqrtPrice(from + width)
		current, target := high, low
		if dir == BToA {
			current, target = low, high
		}

		step, err := ComputeSwapStep(current, target, liquidity, new(uint256.Int).SetAllOne(), dir)
		if err != nil {
			rt.Fatal(err)
		}
		if !step.Reached(target) {
			rt.Fatalf("unlimited input did not reach target")
		}

		// At the lower bound the segment is all A; at the upper bound all B.
		a, _, err := AmountsForLiquidity(low, low, high, liquidity)
		if err != nil {
			rt.Fatal(err)
		}
		_, b, err := AmountsForLiquidity(high, low, high, liquidity)
		if err != nil {
			rt.Fatal(err)
		}

		in, out := step.AmountIn.Uint64(), step.AmountOut.Uint64()
		wantIn, wantOut := a, b
		if dir == BToA {
			wantIn, wantOut = b, a
		}
		if in < wantIn || in-wantIn > 1 {
			rt.Fatalf("%s in: step %d, range math %d", dir, in, wantIn)
		}
		if out != wantOut {
			rt.Fatalf("%s out: step %d, range math %d", dir, out, wantOut)
		}
	})
}

func TestSwapStepNeverPassesTarget(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		start := rapid.Int32Range(-10000, 10000).Draw(rt, "start")
		span := rapid.Int32Range(1, 5000).Draw(rt, "span")
		liquidity := uint256.NewInt(rapid.Uint64Range(1, 1<<60).Draw(rt, "liquidity"))
		amount := uint256.NewInt(rapid.Uint64Range(1, 1<<62).Draw(rt, "amount"))
		dir := Direction(rapid.IntRange(0, 1).Draw(rt, "dir"))

		current, _ := TickToSqrtPrice(start)
		end := start + span
		if dir == AToB {
			end = start - span
		}
		target, _ := TickToSqrtPrice(end)

		step, err := ComputeSwapStep(current, target, liquidity, amount, dir)
		if err != nil {
			rt.Fatal(err)
		}
		if step.AmountIn.Gt(amount) {
			rt.Fatalf("consumed %s of %s", step.AmountIn, amount)
		}
		if dir == AToB && (step.SqrtPriceNext.Lt(target) || step.SqrtPriceNext.Gt(current)) {
			rt.Fatalf("a-to-b price %s outside [%s, %s]", step.SqrtPriceNext, target, current)
		}
		if dir == BToA && (step.SqrtPriceNext.Gt(target) || step.SqrtPriceNext.Lt(current)) {
			rt.Fatalf("b-to-a price %s outside [%s, %s]", step.SqrtPriceNext, current, target)
		}
	})
}
