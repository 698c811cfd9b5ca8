package clmm

import (
	"math"

	"github.com/holiman/uint256"
)

// Reserves are the pool's vault balances as reported by the token ledger.
type Reserves struct {
	A uint64
	B uint64
}

// AddLiquidityParams opens liquidity over [TickLower, TickUpper).
type AddLiquidityParams struct {
	TickLower int32
	TickUpper int32
	MaxA      uint64
	MaxB      uint64
	MinA      uint64
	MinB      uint64
}

// AddLiquidityPlan is a validated deposit ready to commit.
type AddLiquidityPlan struct {
	TickLower int32
	TickUpper int32
	Liquidity *uint256.Int
	AmountA   uint64
	AmountB   uint64
	Shares    uint64
	InRange   bool
}

// WithdrawLiquidityParams closes Liquidity over [TickLower, TickUpper).
type WithdrawLiquidityParams struct {
	TickLower int32
	TickUpper int32
	Liquidity *uint256.Int
}

// WithdrawLiquidityPlan is a validated withdrawal ready to commit.
type WithdrawLiquidityPlan struct {
	TickLower int32
	TickUpper int32
	Liquidity *uint256.Int
	AmountA   uint64
	AmountB   uint64
	Shares    uint64
	InRange   bool
	// FullExit is set when the withdrawal removes the last liquidity in the
	// pool; it pays out both vaults and burns every outstanding share.
	FullExit bool
}

// PlanAddLiquidity computes the liquidity, deposit and shares for params
// against the current pool state and reserves. The pool is not modified.
func (p *Pool) PlanAddLiquidity(params AddLiquidityParams, reserves Reserves) (*AddLiquidityPlan, error) {
	lower, upper, err := p.rangePrices(params.TickLower, params.TickUpper)
	if err != nil {
		return nil, err
	}
	if params.MaxA == 0 && params.MaxB == 0 {
		return nil, ErrZeroAmount.Wrap("max amounts")
	}
	if params.MinA > params.MaxA || params.MinB > params.MaxB {
		return nil, ErrQuantityMismatch
	}

	liquidity, err := LiquidityForAmounts(p.SqrtPrice, lower, upper, params.MaxA, params.MaxB)
	if err != nil {
		return nil, err
	}
	if liquidity.IsZero() {
		return nil, ErrZeroAmount.Wrap("deposit funds no liquidity")
	}
	amountA, amountB, err := amountsForLiquidity(p.SqrtPrice, lower, upper, liquidity, true)
	if err != nil {
		return nil, err
	}
	if amountA > params.MaxA || amountB > params.MaxB {
		return nil, ErrSlippageExceeded.Wrapf("deposit %d/%d exceeds max %d/%d", amountA, amountB, params.MaxA, params.MaxB)
	}
	if amountA == 0 && amountB == 0 {
		return nil, ErrZeroAmount.Wrap("deposit amounts")
	}
	if amountA < params.MinA || amountB < params.MinB {
		return nil, ErrSlippageExceeded.Wrapf("deposit %d/%d below min %d/%d", amountA, amountB, params.MinA, params.MinB)
	}

	if err := p.Ticks.CheckRangeDelta(params.TickLower, params.TickUpper, liquidity.ToBig()); err != nil {
		return nil, err
	}
	inRange := p.InRange(params.TickLower, params.TickUpper)
	if inRange {
		active, err := checkedAdd(p.ActiveLiquidity, liquidity)
		if err != nil || !fitsU128(active) {
			return nil, overflow("active liquidity exceeds u128")
		}
	}

	shares, err := p.sharesToMint(amountA, amountB, reserves)
	if err != nil {
		return nil, err
	}
	if p.TotalLPIssued > math.MaxUint64-shares {
		return nil, overflow("share supply exceeds u64")
	}

	return &AddLiquidityPlan{
		TickLower: params.TickLower,
		TickUpper: params.TickUpper,
		Liquidity: liquidity,
		AmountA:   amountA,
		AmountB:   amountB,
		Shares:    shares,
		InRange:   inRange,
	}, nil
}

// CommitAddLiquidity applies a plan produced by PlanAddLiquidity.
func (p *Pool) CommitAddLiquidity(plan *AddLiquidityPlan) error {
	if err := p.Ticks.ApplyRangeDelta(plan.TickLower, plan.TickUpper, plan.Liquidity.ToBig()); err != nil {
		return err
	}
	if plan.InRange {
		p.ActiveLiquidity = new(uint256.Int).Add(p.ActiveLiquidity, plan.Liquidity)
	}
	p.TotalLPIssued += plan.Shares
	return nil
}

// PlanWithdrawLiquidity computes the payout and shares to burn for removing
// params.Liquidity. heldShares is the caller's share balance.
func (p *Pool) PlanWithdrawLiquidity(params WithdrawLiquidityParams, reserves Reserves, heldShares uint64) (*WithdrawLiquidityPlan, error) {
	if params.TickLower >= params.TickUpper {
		return nil, ErrTickMismatch.Wrapf("lower %d, upper %d", params.TickLower, params.TickUpper)
	}
	if params.Liquidity == nil || params.Liquidity.IsZero() {
		return nil, ErrZeroAmount.Wrap("liquidity to remove")
	}
	if !fitsU128(params.Liquidity) {
		return nil, overflow("liquidity exceeds u128")
	}
	if p.TotalLPIssued == 0 {
		return nil, ErrPoolEmpty.Wrap("no shares issued")
	}
	lower, upper, err := p.rangePrices(params.TickLower, params.TickUpper)
	if err != nil {
		return nil, err
	}
	for _, index := range []int32{params.TickLower, params.TickUpper} {
		if _, ok := p.Ticks.Get(index); !ok {
			return nil, ErrInvalidTickIndex.Wrapf("tick %d is not initialized", index)
		}
	}

	delta := params.Liquidity.ToBig()
	delta.Neg(delta)
	if err := p.Ticks.CheckRangeDelta(params.TickLower, params.TickUpper, delta); err != nil {
		return nil, err
	}
	inRange := p.InRange(params.TickLower, params.TickUpper)
	if inRange && p.ActiveLiquidity.Lt(params.Liquidity) {
		return nil, overflow("active liquidity below zero")
	}

	plan := &WithdrawLiquidityPlan{
		TickLower: params.TickLower,
		TickUpper: params.TickUpper,
		Liquidity: new(uint256.Int).Set(params.Liquidity),
		InRange:   inRange,
	}

	if p.Ticks.DrainedBy(params.TickLower, params.TickUpper, delta) {
		if reserves.A == 0 && reserves.B == 0 {
			return nil, ErrPoolEmpty.Wrap("both vaults are empty")
		}
		plan.FullExit = true
		plan.AmountA, plan.AmountB = reserves.A, reserves.B
		plan.Shares = p.TotalLPIssued
	} else {
		plan.AmountA, plan.AmountB, err = AmountsForLiquidity(p.SqrtPrice, lower, upper, params.Liquidity)
		if err != nil {
			return nil, err
		}
		if plan.AmountA > reserves.A || plan.AmountB > reserves.B {
			return nil, ErrInsufficientFundsInPool.Wrapf("owed %d/%d, vaults hold %d/%d", plan.AmountA, plan.AmountB, reserves.A, reserves.B)
		}
		plan.Shares, err = p.sharesToBurn(plan.AmountA, plan.AmountB, reserves)
		if err != nil {
			return nil, err
		}
		if plan.Shares == 0 && (plan.AmountA > 0 || plan.AmountB > 0) {
			return nil, ErrZeroAmount.Wrap("withdrawal burns no shares")
		}
	}

	if heldShares < plan.Shares {
		return nil, ErrInsufficientLPTokens.Wrapf("burn %d, held %d", plan.Shares, heldShares)
	}
	if plan.Shares > p.TotalLPIssued {
		return nil, overflow("burn exceeds share supply")
	}
	return plan, nil
}

// CommitWithdrawLiquidity applies a plan produced by PlanWithdrawLiquidity.
func (p *Pool) CommitWithdrawLiquidity(plan *WithdrawLiquidityPlan) error {
	delta := plan.Liquidity.ToBig()
	delta.Neg(delta)
	if err := p.Ticks.ApplyRangeDelta(plan.TickLower, plan.TickUpper, delta); err != nil {
		return err
	}
	if plan.InRange {
		p.ActiveLiquidity = new(uint256.Int).Sub(p.ActiveLiquidity, plan.Liquidity)
	}
	p.TotalLPIssued -= plan.Shares
	return nil
}

// rangePrices validates a range against the pool and returns its boundary prices.
func (p *Pool) rangePrices(tickLower, tickUpper int32) (*uint256.Int, *uint256.Int, error) {
	if tickLower >= tickUpper {
		return nil, nil, ErrTickMismatch.Wrapf("lower %d, upper %d", tickLower, tickUpper)
	}
	if !IsAligned(tickLower, p.TickSpacing) || !IsAligned(tickUpper, p.TickSpacing) {
		return nil, nil, ErrUnalignedTick.Wrapf("range [%d, %d), spacing %d", tickLower, tickUpper, p.TickSpacing)
	}
	if err := p.Ticks.Verify(tickLower); err != nil {
		return nil, nil, err
	}
	if err := p.Ticks.Verify(tickUpper); err != nil {
		return nil, nil, err
	}
	lower, err := p.tickPrice(tickLower)
	if err != nil {
		return nil, nil, err
	}
	upper, err := p.tickPrice(tickUpper)
	if err != nil {
		return nil, nil, err
	}
	return lower, upper, nil
}

func (p *Pool) tickPrice(index int32) (*uint256.Int, error) {
	if t, ok := p.Ticks.Get(index); ok && t.SqrtPrice != nil {
		return t.SqrtPrice, nil
	}
	return TickToSqrtPrice(index)
}

// sharesToMint values a deposit against the pool. The first deposit mints the
// geometric mean of the two amounts; later deposits mint the smaller of the
// proportional claims of each asset contributed to a non-empty vault.
func (p *Pool) sharesToMint(amountA, amountB uint64, reserves Reserves) (uint64, error) {
	if p.TotalLPIssued == 0 {
		if amountA > 0 && amountB > 0 {
			product := new(uint256.Int).Mul(uint256.NewInt(amountA), uint256.NewInt(amountB))
			return new(uint256.Int).Sqrt(product).Uint64(), nil
		}
		return max(amountA, amountB), nil
	}
	if reserves.A == 0 && reserves.B == 0 {
		return 0, ErrPoolEmpty.Wrap("both vaults are empty")
	}

	var shares *uint256.Int
	for _, c := range [][2]uint64{{amountA, reserves.A}, {amountB, reserves.B}} {
		if c[0] == 0 || c[1] == 0 {
			continue
		}
		claim, err := proportion(c[0], p.TotalLPIssued, c[1])
		if err != nil {
			return 0, err
		}
		if shares == nil || claim.Lt(shares) {
			shares = claim
		}
	}
	if shares == nil {
		// Every contributed asset lands in an empty vault.
		var err error
		if shares, err = p.sharesByValue(amountA, amountB, reserves); err != nil {
			return 0, err
		}
	}
	if shares.IsZero() {
		return 0, ErrZeroAmount.Wrap("deposit mints no shares")
	}
	return toUint64(shares)
}

// sharesByValue prices both sides in asset B at the current price and mints
// the deposit's fraction of the pool's total value.
func (p *Pool) sharesByValue(amountA, amountB uint64, reserves Reserves) (*uint256.Int, error) {
	priceX128 := new(uint256.Int).Mul(p.SqrtPrice, p.SqrtPrice)
	value := func(a, b uint64) (*uint256.Int, error) {
		inB, err := mulDiv(uint256.NewInt(a), priceX128, q128)
		if err != nil {
			return nil, err
		}
		return checkedAdd(inB, uint256.NewInt(b))
	}
	deposit, err := value(amountA, amountB)
	if err != nil {
		return nil, err
	}
	pool, err := value(reserves.A, reserves.B)
	if err != nil {
		return nil, err
	}
	if pool.IsZero() {
		return nil, ErrPoolEmpty.Wrap("pool holds no value")
	}
	return mulDiv(deposit, uint256.NewInt(p.TotalLPIssued), pool)
}

// sharesToBurn charges the larger of the proportional claims on each non-empty vault.
func (p *Pool) sharesToBurn(amountA, amountB uint64, reserves Reserves) (uint64, error) {
	if reserves.A == 0 && reserves.B == 0 {
		return 0, ErrPoolEmpty.Wrap("both vaults are empty")
	}
	burn := new(uint256.Int)
	for _, c := range [][2]uint64{{amountA, reserves.A}, {amountB, reserves.B}} {
		if c[1] == 0 {
			continue
		}
		claim, err := proportion(c[0], p.TotalLPIssued, c[1])
		if err != nil {
			return 0, err
		}
		if claim.Gt(burn) {
			burn = claim
		}
	}
	return toUint64(burn)
}

// proportion returns floor(amount*total/reserve).
func proportion(amount, total, reserve uint64) (*uint256.Int, error) {
	return mulDiv(uint256.NewInt(amount), uint256.NewInt(total), uint256.NewInt(reserve))
}
