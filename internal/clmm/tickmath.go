package clmm

import (
	"fmt"

	"github.com/holiman/uint256"
)

const (
	// MinTick is the lowest tick whose Q64.64 square-root price keeps 32 bits of precision.
	MinTick int32 = -443636
	// MaxTick is the highest tick whose Q64.64 square-root price fits in 128 bits.
	MaxTick int32 = 443636
)

var (
	// sqrt(1.0001^-(2^i)) in Q128.128 for i in 0..19.
	ratioConstants = [20]*uint256.Int{
		uint256.MustFromHex("0xfffcb933bd6fad37aa2d162d1a594001"),
		uint256.MustFromHex("0xfff97272373d413259a46990580e213a"),
		uint256.MustFromHex("0xfff2e50f5f656932ef12357cf3c7fdcc"),
		uint256.MustFromHex("0xffe5caca7e10e4e61c3624eaa0941cd0"),
		uint256.MustFromHex("0xffcb9843d60f6159c9db58835c926644"),
		uint256.MustFromHex("0xff973b41fa98c081472e6896dfb254c0"),
		uint256.MustFromHex("0xff2ea16466c96a3843ec78b326b52861"),
		uint256.MustFromHex("0xfe5dee046a99a2a811c461f1969c3053"),
		uint256.MustFromHex("0xfcbe86c7900a88aedcffc83b479aa3a4"),
		uint256.MustFromHex("0xf987a7253ac413176f2b074cf7815e54"),
		uint256.MustFromHex("0xf3392b0822b70005940c7a398e4b70f3"),
		uint256.MustFromHex("0xe7159475a2c29b7443b29c7fa6e889d9"),
		uint256.MustFromHex("0xd097f3bdfd2022b8845ad8f792aa5825"),
		uint256.MustFromHex("0xa9f746462d870fdf8a65dc1f90e061e5"),
		uint256.MustFromHex("0x70d869a156d2a1b890bb3df62baf32f7"),
		uint256.MustFromHex("0x31be135f97d08fd981231505542fcfa6"),
		uint256.MustFromHex("0x9aa508b5b7a84e1c677de54f3e99bc9"),
		uint256.MustFromHex("0x5d6af8dedb81196699c329225ee604"),
		uint256.MustFromHex("0x2216e584f5fa1ea926041bedfe98"),
		uint256.MustFromHex("0x48a170391f7dc42444e8fa2"),
	}

	q128       = new(uint256.Int).Lsh(uint256.NewInt(1), 128)
	maxUint256 = new(uint256.Int).SetAllOne()

	// MinSqrtPrice is TickToSqrtPrice(MinTick).
	MinSqrtPrice = mustSqrtPrice(MinTick)
	// MaxSqrtPrice is TickToSqrtPrice(MaxTick).
	MaxSqrtPrice = mustSqrtPrice(MaxTick)
)

// TickToSqrtPrice returns sqrt(1.0001^tick) as a Q64.64 fixed-point value.
//
// The ratio is accumulated in Q128.128 from precomputed powers of sqrt(1.0001),
// inverted for positive ticks and truncated to 64 fractional bits. Tick 0 maps
// to exactly 2^64.
func TickToSqrtPrice(tick int32) (*uint256.Int, error) {
	if tick < MinTick || tick > MaxTick {
		return nil, ErrArithmeticOverflow.Wrapf("tick %d outside [%d, %d]", tick, MinTick, MaxTick)
	}

	absTick := uint32(tick)
	if tick < 0 {
		absTick = uint32(-tick)
	}

	ratio := new(uint256.Int).Set(q128)
	for i, c := range ratioConstants {
		if absTick&(1<<uint(i)) != 0 {
			// ratio <= 2^128 and c < 2^128, so the product fits in 256 bits.
			ratio.Mul(ratio, c).Rsh(ratio, 128)
		}
	}

	if tick > 0 {
		ratio.Div(maxUint256, ratio)
	}

	return ratio.Rsh(ratio, 64), nil
}

// SqrtPriceToTick returns the greatest tick whose square-root price is <= sqrtPrice.
func SqrtPriceToTick(sqrtPrice *uint256.Int) (int32, error) {
	if sqrtPrice == nil || sqrtPrice.Lt(MinSqrtPrice) || sqrtPrice.Gt(MaxSqrtPrice) {
		return 0, ErrArithmeticOverflow.Wrapf("sqrt price %s outside codec range", formatU256(sqrtPrice))
	}

	low, high := MinTick, MaxTick
	tick := MinTick
	for low <= high {
		mid := low + (high-low)/2
		price, err := TickToSqrtPrice(mid)
		if err != nil {
			return 0, err
		}
		if price.Cmp(sqrtPrice) <= 0 {
			tick = mid
			low = mid + 1
		} else {
			high = mid - 1
		}
	}
	return tick, nil
}

// IsAligned reports whether tick is a multiple of spacing.
func IsAligned(tick int32, spacing uint16) bool {
	if spacing == 0 {
		return false
	}
	return tick%int32(spacing) == 0
}

func mustSqrtPrice(tick int32) *uint256.Int {
	price, err := TickToSqrtPrice(tick)
	if err != nil {
		panic(fmt.Sprintf("tick math: %v", err))
	}
	return price
}

func formatU256(v *uint256.Int) string {
	if v == nil {
		return "<nil>"
	}
	return v.ToBig().String()
}
