package clmm

import (
	"errors"
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestTickZeroIsUnitPrice(t *testing.T) {
	price, err := TickToSqrtPrice(0)
	require.NoError(t, err)
	require.True(t, price.Eq(Q64), "got %s", price)

	tick, err := SqrtPriceToTick(Q64)
	require.NoError(t, err)
	require.Equal(t, int32(0), tick)
}

func TestTickOutOfRange(t *testing.T) {
	for _, tick := range []int32{MinTick - 1, MaxTick + 1, -1 << 30} {
		_, err := TickToSqrtPrice(tick)
		require.ErrorIs(t, err, ErrArithmeticOverflow, "tick %d", tick)
	}

	below := new(uint256.Int).Sub(MinSqrtPrice, one)
	_, err := SqrtPriceToTick(below)
	require.ErrorIs(t, err, ErrArithmeticOverflow)

	above := new(uint256.Int).Add(MaxSqrtPrice, one)
	_, err = SqrtPriceToTick(above)
	require.True(t, errors.Is(err, ErrArithmeticOverflow))
}

func TestCodecBoundsFitU128(t *testing.T) {
	require.True(t, fitsU128(MaxSqrtPrice))
	require.True(t, MinSqrtPrice.BitLen() > 32)
}

func TestSqrtPriceToTickFloors(t *testing.T) {
	lo, err := TickToSqrtPrice(-51)
	require.NoError(t, err)
	hi, err := TickToSqrtPrice(-50)
	require.NoError(t, err)

	mid := new(uint256.Int).Add(lo, hi)
	mid.Rsh(mid, 1)
	tick, err := SqrtPriceToTick(mid)
	require.NoError(t, err)
	require.Equal(t, int32(-51), tick)

	tick, err = SqrtPriceToTick(new(uint256.Int).Sub(hi, one))
	require.NoError(t, err)
	require.Equal(t, int32(-51), tick)
}

func TestTickReciprocalPrices(t *testing.T) {
	q128 := new(big.Int).Lsh(big.NewInt(1), 128)
	tolerance := new(big.Int).Rsh(q128, 30)

	for _, tick := range []int32{1, 10, 100, 6932, 100000, 400000} {
		up, err := TickToSqrtPrice(tick)
		require.NoError(t, err)
		down, err := TickToSqrtPrice(-tick)
		require.NoError(t, err)

		product := new(big.Int).Mul(up.ToBig(), down.ToBig())
		diff := new(big.Int).Sub(product, q128)
		require.True(t, diff.CmpAbs(tolerance) < 0, "tick %d: product off by %s", tick, diff)
	}
}

func TestTickCodecRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		tick := rapid.Int32Range(MinTick, MaxTick).Draw(rt, "tick")

		price, err := TickToSqrtPrice(tick)
		if err != nil {
			rt.Fatalf("tick %d: %v", tick, err)
		}
		got, err := SqrtPriceToTick(price)
		if err != nil {
			rt.Fatalf("price %s: %v", price, err)
		}
		if got != tick {
			rt.Fatalf("round trip: want %d, got %d", tick, got)
		}
	})
}

func TestTickCodecMonotonic(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		t1 := rapid.Int32Range(MinTick, MaxTick-1).Draw(rt, "t1")
		t2 := rapid.Int32Range(t1+1, MaxTick).Draw(rt, "t2")

		p1, err := TickToSqrtPrice(t1)
		if err != nil {
			rt.Fatal(err)
		}
		p2, err := TickToSqrtPrice(t2)
		if err != nil {
			rt.Fatal(err)
		}
		if !p1.Lt(p2) {
			rt.Fatalf("price(%d)=%s not below price(%d)=%s", t1, p1, t2, p2)
		}
	})
}

func TestIsAligned(t *testing.T) {
	require.True(t, IsAligned(-100, 10))
	require.True(t, IsAligned(0, 10))
	require.False(t, IsAligned(15, 10))
	require.False(t, IsAligned(10, 0))
}
