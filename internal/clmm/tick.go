package clmm

import (
	"math/big"
	"sort"

	"github.com/holiman/uint256"
)

var (
	minI128 = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
	maxI128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
)

// Tick is an initialized boundary on the price grid.
type Tick struct {
	Index     int32
	SqrtPrice *uint256.Int
	// LiquidityNet is applied to active liquidity when price crosses the tick upward.
	LiquidityNet *big.Int
}

// Crossing returns the active-liquidity adjustment for crossing t in dir.
func (t *Tick) Crossing(dir Direction) *big.Int {
	if t == nil || t.LiquidityNet == nil {
		return new(big.Int)
	}
	if dir == AToB {
		return new(big.Int).Neg(t.LiquidityNet)
	}
	return new(big.Int).Set(t.LiquidityNet)
}

func (t *Tick) clone() *Tick {
	return &Tick{
		Index:        t.Index,
		SqrtPrice:    new(uint256.Int).Set(t.SqrtPrice),
		LiquidityNet: new(big.Int).Set(t.LiquidityNet),
	}
}

// TickRegistry holds the initialized ticks of one pool keyed by index.
type TickRegistry struct {
	spacing uint16
	ticks   map[int32]*Tick
}

func NewTickRegistry(spacing uint16) *TickRegistry {
	return &TickRegistry{spacing: spacing, ticks: make(map[int32]*Tick)}
}

// Spacing returns the tick spacing every registered index is aligned to.
func (r *TickRegistry) Spacing() uint16 {
	return r.spacing
}

// Get returns the tick record stored under index.
func (r *TickRegistry) Get(index int32) (*Tick, bool) {
	t, ok := r.ticks[index]
	return t, ok
}

// Len returns the number of initialized ticks.
func (r *TickRegistry) Len() int {
	return len(r.ticks)
}

// Touch returns the tick at index, creating it with a cached codec price on first use.
func (r *TickRegistry) Touch(index int32) (*Tick, error) {
	if err := r.checkIndex(index); err != nil {
		return nil, err
	}
	if t, ok := r.ticks[index]; ok {
		return t, nil
	}
	price, err := TickToSqrtPrice(index)
	if err != nil {
		return nil, err
	}
	t := &Tick{Index: index, SqrtPrice: price, LiquidityNet: new(big.Int)}
	r.ticks[index] = t
	return t, nil
}

// Restore inserts a previously persisted record under key. The record is kept
// as-is so a mismatched index is caught by Verify.
func (r *TickRegistry) Restore(key int32, t *Tick) {
	r.ticks[key] = t
}

// Verify fails with InvalidTickIndex when the record stored under index
// describes a different tick.
func (r *TickRegistry) Verify(index int32) error {
	t, ok := r.ticks[index]
	if !ok {
		return nil
	}
	if t.Index != index {
		return ErrInvalidTickIndex.Wrapf("record for tick %d holds index %d", index, t.Index)
	}
	return nil
}

func (r *TickRegistry) verifyAll() error {
	for key := range r.ticks {
		if err := r.Verify(key); err != nil {
			return err
		}
	}
	return nil
}

// ApplyRangeDelta adds delta to the lower tick's net liquidity and subtracts it
// from the upper tick's. Both results are checked before either tick changes.
func (r *TickRegistry) ApplyRangeDelta(lower, upper int32, delta *big.Int) error {
	lowerNet, upperNet, err := r.rangeNets(lower, upper, delta)
	if err != nil {
		return err
	}
	lowerTick, err := r.Touch(lower)
	if err != nil {
		return err
	}
	upperTick, err := r.Touch(upper)
	if err != nil {
		return err
	}
	lowerTick.LiquidityNet = lowerNet
	upperTick.LiquidityNet = upperNet
	return nil
}

// CheckRangeDelta reports the error ApplyRangeDelta would return without
// touching any tick.
func (r *TickRegistry) CheckRangeDelta(lower, upper int32, delta *big.Int) error {
	_, _, err := r.rangeNets(lower, upper, delta)
	return err
}

// DrainedBy reports whether applying delta over [lower, upper) would leave every
// tick with zero net liquidity.
func (r *TickRegistry) DrainedBy(lower, upper int32, delta *big.Int) bool {
	lowerNet, upperNet, err := r.rangeNets(lower, upper, delta)
	if err != nil || lowerNet.Sign() != 0 || upperNet.Sign() != 0 {
		return false
	}
	for index, t := range r.ticks {
		if index == lower || index == upper {
			continue
		}
		if t.LiquidityNet.Sign() != 0 {
			return false
		}
	}
	return true
}

func (r *TickRegistry) rangeNets(lower, upper int32, delta *big.Int) (*big.Int, *big.Int, error) {
	if lower >= upper {
		return nil, nil, ErrTickMismatch.Wrapf("lower %d, upper %d", lower, upper)
	}
	if err := r.checkIndex(lower); err != nil {
		return nil, nil, err
	}
	if err := r.checkIndex(upper); err != nil {
		return nil, nil, err
	}

	lowerNet, upperNet := new(big.Int), new(big.Int)
	if t, ok := r.ticks[lower]; ok {
		lowerNet.Set(t.LiquidityNet)
	}
	if t, ok := r.ticks[upper]; ok {
		upperNet.Set(t.LiquidityNet)
	}
	lowerNet.Add(lowerNet, delta)
	upperNet.Sub(upperNet, delta)
	if !inI128(lowerNet) || !inI128(upperNet) {
		return nil, nil, overflow("liquidity net exceeds i128")
	}
	return lowerNet, upperNet, nil
}

// NetSum returns the sum of all liquidity nets; it is zero for a consistent registry.
func (r *TickRegistry) NetSum() *big.Int {
	sum := new(big.Int)
	for _, t := range r.ticks {
		sum.Add(sum, t.LiquidityNet)
	}
	return sum
}

// Ticks returns all records sorted by index.
func (r *TickRegistry) Ticks() []*Tick {
	out := make([]*Tick, 0, len(r.ticks))
	for _, t := range r.ticks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// Boundaries returns up to limit initialized tick indices ahead of currentTick in
// the direction of travel, ordered the way the swap orchestrator consumes them.
// Ticks whose net liquidity returned to zero are still listed. A limit <= 0
// returns every tick ahead.
func (r *TickRegistry) Boundaries(currentTick int32, dir Direction, limit int) []int32 {
	sorted := r.Ticks()
	out := make([]int32, 0)
	if dir == AToB {
		for i := len(sorted) - 1; i >= 0; i-- {
			if sorted[i].Index > currentTick {
				continue
			}
			out = append(out, sorted[i].Index)
			if limit > 0 && len(out) == limit {
				break
			}
		}
		return out
	}
	for _, t := range sorted {
		if t.Index <= currentTick {
			continue
		}
		out = append(out, t.Index)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// ActiveLiquidityAt sums the nets of every tick at or below currentTick, which is
// the active liquidity implied by the registry alone.
func (r *TickRegistry) ActiveLiquidityAt(currentTick int32) (*uint256.Int, error) {
	sum := new(big.Int)
	for _, t := range r.ticks {
		if t.Index <= currentTick {
			sum.Add(sum, t.LiquidityNet)
		}
	}
	if sum.Sign() < 0 {
		return nil, overflow("negative active liquidity")
	}
	out, over := uint256.FromBig(sum)
	if over || !fitsU128(out) {
		return nil, overflow("active liquidity exceeds u128")
	}
	return out, nil
}

func (r *TickRegistry) clone() *TickRegistry {
	out := NewTickRegistry(r.spacing)
	for k, t := range r.ticks {
		out.ticks[k] = t.clone()
	}
	return out
}

func (r *TickRegistry) checkIndex(index int32) error {
	if !IsAligned(index, r.spacing) {
		return ErrUnalignedTick.Wrapf("tick %d, spacing %d", index, r.spacing)
	}
	if index < MinTick || index > MaxTick {
		return ErrArithmeticOverflow.Wrapf("tick %d outside [%d, %d]", index, MinTick, MaxTick)
	}
	return nil
}

func inI128(v *big.Int) bool {
	return v.Cmp(minI128) >= 0 && v.Cmp(maxI128) <= 0
}
