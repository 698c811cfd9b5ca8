package clmm

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

// SwapState tracks the progress of one swap computation.
type SwapState uint8

const (
	SwapStarted SwapState = iota
	SwapStepping
	SwapCompleted
	SwapAborted
)

func (s SwapState) String() string {
	switch s {
	case SwapStarted:
		return "started"
	case SwapStepping:
		return "stepping"
	case SwapCompleted:
		return "completed"
	case SwapAborted:
		return "aborted"
	default:
		return fmt.Sprintf("swap_state(%d)", uint8(s))
	}
}

// SwapParams describes a trade against one pool.
type SwapParams struct {
	AmountIn  uint64
	Direction Direction
	// SqrtPriceLimit is optional. The swap never moves the price past it.
	SqrtPriceLimit *uint256.Int
	MinAmountOut   uint64
	// Boundaries are initialized tick indices in the order price reaches them:
	// descending for AToB, ascending for BToA. Every tick with non-zero net
	// liquidity up to the last listed boundary must be present.
	Boundaries []int32
}

// SwapResult is a fully validated swap that has not been committed.
type SwapResult struct {
	State     SwapState
	Direction Direction
	AmountIn  uint64
	AmountOut uint64

	SqrtPriceBefore *uint256.Int
	SqrtPrice       *uint256.Int
	TickBefore      int32
	Tick            int32
	Liquidity       *uint256.Int

	TicksCrossed []int32
	Steps        int
}

type swapRun struct {
	state     SwapState
	price     *uint256.Int
	tick      int32
	liquidity *uint256.Int
	remaining *uint256.Int
	totalIn   *uint256.Int
	totalOut  *uint256.Int
	crossed   []int32
	steps     int
}

// ComputeSwap walks the pool's price across params.Boundaries and returns the
// resulting state without modifying the pool.
func (p *Pool) ComputeSwap(params SwapParams) (*SwapResult, error) {
	run := &swapRun{state: SwapStarted}
	res, err := run.execute(p, params)
	if err != nil {
		run.state = SwapAborted
		return nil, err
	}
	return res, nil
}

// ApplySwap commits a computed swap to the pool.
func (p *Pool) ApplySwap(res *SwapResult) error {
	if res == nil || res.State != SwapCompleted {
		return fmt.Errorf("apply swap: result not completed")
	}
	if !p.SqrtPrice.Eq(res.SqrtPriceBefore) || p.CurrentTick != res.TickBefore {
		return fmt.Errorf("apply swap: pool moved since the swap was computed")
	}
	p.SqrtPrice = new(uint256.Int).Set(res.SqrtPrice)
	p.CurrentTick = res.Tick
	p.ActiveLiquidity = new(uint256.Int).Set(res.Liquidity)
	return nil
}

func (r *swapRun) execute(p *Pool, params SwapParams) (*SwapResult, error) {
	if params.AmountIn == 0 {
		return nil, ErrZeroAmount.Wrap("swap amount")
	}
	if len(params.Boundaries) == 0 {
		return nil, ErrMissingTickAccounts
	}
	if p.ActiveLiquidity.IsZero() {
		return nil, ErrInsufficientFundsInPool.Wrap("no active liquidity")
	}
	if err := checkBoundaries(p, params.Boundaries, params.Direction); err != nil {
		return nil, err
	}
	limit := params.SqrtPriceLimit
	if limit != nil && (limit.Lt(MinSqrtPrice) || limit.Gt(MaxSqrtPrice)) {
		return nil, ErrArithmeticOverflow.Wrapf("price limit %s outside codec range", formatU256(limit))
	}

	dir := params.Direction
	r.state = SwapStepping
	r.price = new(uint256.Int).Set(p.SqrtPrice)
	r.tick = p.CurrentTick
	r.liquidity = new(uint256.Int).Set(p.ActiveLiquidity)
	r.remaining = uint256.NewInt(params.AmountIn)
	r.totalIn = new(uint256.Int)
	r.totalOut = new(uint256.Int)

	for _, boundary := range params.Boundaries {
		if r.remaining.IsZero() || limitReached(r.price, limit, dir) {
			break
		}
		// Boundaries behind the current position were already crossed.
		if !ahead(boundary, r.tick, dir) {
			continue
		}

		tick, _ := p.Ticks.Get(boundary)
		target, err := boundaryPrice(tick, boundary)
		if err != nil {
			return nil, err
		}
		clamped := false
		if limit != nil && beyond(target, limit, dir) {
			target = limit
			clamped = true
		}

		before := r.price
		if err := r.step(target, dir); err != nil {
			return nil, err
		}

		if !clamped && r.price.Eq(target) {
			if err := r.cross(tick, boundary, dir); err != nil {
				return nil, err
			}
			continue
		}
		if r.price.Eq(before) {
			continue
		}
		if r.tick, err = SqrtPriceToTick(r.price); err != nil {
			return nil, err
		}
	}

	return r.finish(p, params)
}

func (r *swapRun) step(target *uint256.Int, dir Direction) error {
	res, err := ComputeSwapStep(r.price, target, r.liquidity, r.remaining, dir)
	if err != nil {
		return err
	}
	r.steps++
	if r.totalIn, err = checkedAdd(r.totalIn, res.AmountIn); err != nil {
		return err
	}
	if r.totalOut, err = checkedAdd(r.totalOut, res.AmountOut); err != nil {
		return err
	}
	if r.remaining, err = checkedSub(r.remaining, res.AmountIn); err != nil {
		return err
	}
	r.price = res.SqrtPriceNext
	return nil
}

// cross moves the run past boundary and adjusts liquidity by its crossing delta.
// A downward crossing leaves the price on the boundary with the tick just below.
func (r *swapRun) cross(tick *Tick, boundary int32, dir Direction) error {
	next := new(big.Int).Add(r.liquidity.ToBig(), tick.Crossing(dir))
	if next.Sign() < 0 {
		return ErrArithmeticOverflow.Wrapf("liquidity below zero crossing tick %d", boundary)
	}
	liquidity, over := uint256.FromBig(next)
	if over || !fitsU128(liquidity) {
		return ErrArithmeticOverflow.Wrapf("liquidity exceeds u128 crossing tick %d", boundary)
	}
	r.liquidity = liquidity
	if dir == AToB {
		r.tick = boundary - 1
	} else {
		r.tick = boundary
	}
	r.crossed = append(r.crossed, boundary)
	return nil
}

func (r *swapRun) finish(p *Pool, params SwapParams) (*SwapResult, error) {
	amountIn, err := toUint64(r.totalIn)
	if err != nil {
		return nil, ErrAmountTooLarge.Wrap("swap input")
	}
	amountOut, err := toUint64(r.totalOut)
	if err != nil {
		return nil, ErrAmountTooLarge.Wrap("swap output")
	}
	if amountOut == 0 {
		return nil, ErrZeroSwapOutput
	}
	if amountOut < params.MinAmountOut {
		return nil, ErrSlippageExceeded.Wrapf("output %d below minimum %d", amountOut, params.MinAmountOut)
	}

	r.state = SwapCompleted
	return &SwapResult{
		State:           r.state,
		Direction:       params.Direction,
		AmountIn:        amountIn,
		AmountOut:       amountOut,
		SqrtPriceBefore: new(uint256.Int).Set(p.SqrtPrice),
		SqrtPrice:       r.price,
		TickBefore:      p.CurrentTick,
		Tick:            r.tick,
		Liquidity:       r.liquidity,
		TicksCrossed:    r.crossed,
		Steps:           r.steps,
	}, nil
}

func checkBoundaries(p *Pool, boundaries []int32, dir Direction) error {
	for i, b := range boundaries {
		if !IsAligned(b, p.TickSpacing) {
			return ErrUnalignedTick.Wrapf("boundary %d, spacing %d", b, p.TickSpacing)
		}
		if b < MinTick || b > MaxTick {
			return ErrArithmeticOverflow.Wrapf("boundary %d outside [%d, %d]", b, MinTick, MaxTick)
		}
		if err := p.Ticks.Verify(b); err != nil {
			return err
		}
		if i == 0 {
			continue
		}
		prev := boundaries[i-1]
		if dir == AToB && b >= prev || dir == BToA && b <= prev {
			return ErrInvalidTickIndex.Wrapf("boundaries not ordered for %s at %d", dir, b)
		}
	}
	return checkComplete(p, boundaries, dir)
}

// checkComplete fails when an initialized tick carrying liquidity lies between
// the current tick and the last boundary ahead of it but is not in the list.
// Walking past such a tick would leave active liquidity out of step with the
// registry.
func checkComplete(p *Pool, boundaries []int32, dir Direction) error {
	listed := make(map[int32]struct{}, len(boundaries))
	var last int32
	for _, b := range boundaries {
		if ahead(b, p.CurrentTick, dir) {
			listed[b] = struct{}{}
			last = b
		}
	}
	if len(listed) == 0 {
		return nil
	}
	for _, t := range p.Ticks.Ticks() {
		if t.LiquidityNet.Sign() == 0 || !ahead(t.Index, p.CurrentTick, dir) {
			continue
		}
		if dir == AToB && t.Index < last || dir == BToA && t.Index > last {
			continue
		}
		if _, ok := listed[t.Index]; !ok {
			return ErrMissingTickAccounts.Wrapf("boundary list skips initialized tick %d", t.Index)
		}
	}
	return nil
}

// ahead reports whether the walk still has to cross index from currentTick.
func ahead(index, currentTick int32, dir Direction) bool {
	if dir == AToB {
		return index <= currentTick
	}
	return index > currentTick
}

// boundaryPrice uses the cached price of an initialized tick and the codec for
// an uninitialized one, which crosses with zero net liquidity.
func boundaryPrice(tick *Tick, index int32) (*uint256.Int, error) {
	if tick != nil && tick.SqrtPrice != nil {
		return tick.SqrtPrice, nil
	}
	return TickToSqrtPrice(index)
}

// beyond reports whether price lies past limit in the direction of travel.
func beyond(price, limit *uint256.Int, dir Direction) bool {
	if dir == AToB {
		return price.Lt(limit)
	}
	return price.Gt(limit)
}

func limitReached(price, limit *uint256.Int, dir Direction) bool {
	if limit == nil {
		return false
	}
	if dir == AToB {
		return price.Cmp(limit) <= 0
	}
	return price.Cmp(limit) >= 0
}
