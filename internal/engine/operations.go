package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"liquidityEngine/internal/clmm"
	"liquidityEngine/internal/dex"
	"liquidityEngine/internal/ledger"
	"liquidityEngine/internal/model"
)

// InitializePoolParams creates a pool. SqrtPrice takes precedence over Tick.
type InitializePoolParams struct {
	MintA       common.Address
	MintB       common.Address
	SqrtPrice   *uint256.Int
	Tick        int32
	TickSpacing uint16
}

// AddLiquidityParams opens a range on behalf of Owner.
type AddLiquidityParams struct {
	Pool      common.Address
	Owner     common.Address
	TickLower int32
	TickUpper int32
	MaxA      uint64
	MaxB      uint64
	MinA      uint64
	MinB      uint64
}

type AddLiquidityResult struct {
	Liquidity    *uint256.Int
	AmountA      uint64
	AmountB      uint64
	SharesMinted uint64
}

// WithdrawLiquidityParams closes Liquidity of a range on behalf of Owner.
type WithdrawLiquidityParams struct {
	Pool      common.Address
	Owner     common.Address
	TickLower int32
	TickUpper int32
	Liquidity *uint256.Int
}

type WithdrawResult struct {
	AmountA      uint64
	AmountB      uint64
	SharesBurned uint64
	FullExit     bool
}

// SwapParams trades AmountIn of the input asset for Trader. Boundaries are
// initialized tick indices in the order the price reaches them.
type SwapParams struct {
	Pool           common.Address
	Trader         common.Address
	AmountIn       uint64
	Direction      clmm.Direction
	SqrtPriceLimit *uint256.Int
	MinAmountOut   uint64
	Boundaries     []int32
}

func (p SwapParams) swapParams() clmm.SwapParams {
	return clmm.SwapParams{
		AmountIn:       p.AmountIn,
		Direction:      p.Direction,
		SqrtPriceLimit: p.SqrtPriceLimit,
		MinAmountOut:   p.MinAmountOut,
		Boundaries:     p.Boundaries,
	}
}

// InitializePool creates a pool for the ordered mint pair.
func (e *Engine) InitializePool(ctx context.Context, params InitializePoolParams) (*clmm.Pool, error) {
	start := time.Now()
	p, err := e.initializePool(ctx, params)
	e.finish("initialize_pool", start, err, clmm.DerivePoolAddresses(params.MintA, params.MintB).Pool)
	if err != nil {
		return nil, err
	}

	e.logger.Info("pool initialized",
		zap.String("pool", p.Address.Hex()),
		zap.String("mint_a", p.MintA.Hex()),
		zap.String("mint_b", p.MintB.Hex()),
		zap.Int32("tick", p.CurrentTick),
		zap.Uint16("tick_spacing", p.TickSpacing),
	)
	return p.Clone(), nil
}

func (e *Engine) initializePool(ctx context.Context, params InitializePoolParams) (*clmm.Pool, error) {
	var (
		p   *clmm.Pool
		err error
	)
	if params.SqrtPrice != nil {
		p, err = clmm.NewPool(params.MintA, params.MintB, params.SqrtPrice, params.TickSpacing)
	} else {
		p, err = clmm.NewPoolAtTick(params.MintA, params.MintB, params.Tick, params.TickSpacing)
	}
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.pools[p.Address]; ok {
		return nil, clmm.ErrPoolExists.Wrapf("pool %s", p.Address.Hex())
	}
	if err := e.commit(ctx, p, nil); err != nil {
		return nil, fmt.Errorf("save pool: %w", err)
	}
	if e.metrics != nil {
		e.metrics.PoolsTotal.Set(float64(len(e.pools)))
	}
	e.emit(ctx, p.Address, func(meta dex.EventMeta) (model.LogRecord, error) {
		return e.encoder.PoolInitialized(meta, p.MintA, p.MintB, p.TickSpacing, p.SqrtPrice.ToBig(), p.CurrentTick)
	})
	return p, nil
}

// AddLiquidity opens a range, moves the deposit into the vaults and mints
// shares to the owner.
func (e *Engine) AddLiquidity(ctx context.Context, params AddLiquidityParams) (AddLiquidityResult, error) {
	start := time.Now()
	plan, next, err := e.addLiquidity(ctx, params)
	e.finish("add_liquidity", start, err, params.Pool)
	if err != nil {
		return AddLiquidityResult{}, err
	}
	if e.metrics != nil {
		e.metrics.LiquidityEvents.WithLabelValues(next.Address.Hex(), "add").Inc()
	}

	e.logger.Info("liquidity added",
		zap.String("pool", next.Address.Hex()),
		zap.String("owner", params.Owner.Hex()),
		zap.Int32("tick_lower", plan.TickLower),
		zap.Int32("tick_upper", plan.TickUpper),
		zap.String("liquidity", plan.Liquidity.Dec()),
		zap.Uint64("amount_a", plan.AmountA),
		zap.Uint64("amount_b", plan.AmountB),
		zap.Uint64("shares", plan.Shares),
	)
	return AddLiquidityResult{
		Liquidity:    new(uint256.Int).Set(plan.Liquidity),
		AmountA:      plan.AmountA,
		AmountB:      plan.AmountB,
		SharesMinted: plan.Shares,
	}, nil
}

func (e *Engine) addLiquidity(ctx context.Context, params AddLiquidityParams) (*clmm.AddLiquidityPlan, *clmm.Pool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, err := e.pool(params.Pool)
	if err != nil {
		return nil, nil, err
	}
	reserves, err := e.reserves(ctx, p)
	if err != nil {
		return nil, nil, err
	}

	plan, err := p.PlanAddLiquidity(clmm.AddLiquidityParams{
		TickLower: params.TickLower,
		TickUpper: params.TickUpper,
		MaxA:      params.MaxA,
		MaxB:      params.MaxB,
		MinA:      params.MinA,
		MinB:      params.MinB,
	}, reserves)
	if err != nil {
		return nil, nil, err
	}

	next := p.Clone()
	if err := next.CommitAddLiquidity(plan); err != nil {
		return nil, nil, err
	}
	batch := []ledger.Instruction{
		ledger.Transfer(p.MintA, params.Owner, p.VaultA, plan.AmountA),
		ledger.Transfer(p.MintB, params.Owner, p.VaultB, plan.AmountB),
		ledger.Mint(p.LPMint, params.Owner, plan.Shares),
	}
	if err := e.commit(ctx, next, batch); err != nil {
		return nil, nil, err
	}

	reserves.A += plan.AmountA
	reserves.B += plan.AmountB
	e.emitLiquidity(ctx, next.Address, params.Owner, model.EventLiquidityAdded, plan.TickLower, plan.TickUpper, plan.Liquidity, plan.AmountA, plan.AmountB, plan.Shares, reserves)
	return plan, next, nil
}

// WithdrawLiquidity closes liquidity of a range, burns the owner's shares and
// pays out of the vaults.
func (e *Engine) WithdrawLiquidity(ctx context.Context, params WithdrawLiquidityParams) (WithdrawResult, error) {
	start := time.Now()
	plan, next, err := e.withdrawLiquidity(ctx, params)
	e.finish("withdraw_liquidity", start, err, params.Pool)
	if err != nil {
		return WithdrawResult{}, err
	}
	if e.metrics != nil {
		e.metrics.LiquidityEvents.WithLabelValues(next.Address.Hex(), "withdraw").Inc()
	}

	e.logger.Info("liquidity withdrawn",
		zap.String("pool", next.Address.Hex()),
		zap.String("owner", params.Owner.Hex()),
		zap.Int32("tick_lower", plan.TickLower),
		zap.Int32("tick_upper", plan.TickUpper),
		zap.String("liquidity", plan.Liquidity.Dec()),
		zap.Uint64("amount_a", plan.AmountA),
		zap.Uint64("amount_b", plan.AmountB),
		zap.Uint64("shares", plan.Shares),
		zap.Bool("full_exit", plan.FullExit),
	)
	return WithdrawResult{
		AmountA:      plan.AmountA,
		AmountB:      plan.AmountB,
		SharesBurned: plan.Shares,
		FullExit:     plan.FullExit,
	}, nil
}

func (e *Engine) withdrawLiquidity(ctx context.Context, params WithdrawLiquidityParams) (*clmm.WithdrawLiquidityPlan, *clmm.Pool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, err := e.pool(params.Pool)
	if err != nil {
		return nil, nil, err
	}
	reserves, err := e.reserves(ctx, p)
	if err != nil {
		return nil, nil, err
	}
	held, err := e.store.Balance(ctx, p.LPMint, params.Owner)
	if err != nil {
		return nil, nil, fmt.Errorf("share balance: %w", err)
	}

	plan, err := p.PlanWithdrawLiquidity(clmm.WithdrawLiquidityParams{
		TickLower: params.TickLower,
		TickUpper: params.TickUpper,
		Liquidity: params.Liquidity,
	}, reserves, held)
	if err != nil {
		return nil, nil, err
	}

	next := p.Clone()
	if err := next.CommitWithdrawLiquidity(plan); err != nil {
		return nil, nil, err
	}
	batch := []ledger.Instruction{
		ledger.Burn(p.LPMint, params.Owner, plan.Shares),
		ledger.Transfer(p.MintA, p.VaultA, params.Owner, plan.AmountA),
		ledger.Transfer(p.MintB, p.VaultB, params.Owner, plan.AmountB),
	}
	if err := e.commit(ctx, next, batch); err != nil {
		return nil, nil, err
	}

	reserves.A -= plan.AmountA
	reserves.B -= plan.AmountB
	e.emitLiquidity(ctx, next.Address, params.Owner, model.EventLiquidityWithdrawn, plan.TickLower, plan.TickUpper, plan.Liquidity, plan.AmountA, plan.AmountB, plan.Shares, reserves)
	return plan, next, nil
}

// Swap executes a trade and settles it through the ledger.
func (e *Engine) Swap(ctx context.Context, params SwapParams) (*clmm.SwapResult, error) {
	start := time.Now()
	res, next, err := e.swap(ctx, params)
	e.finish("swap", start, err, params.Pool)
	if err != nil {
		return nil, err
	}
	e.metrics.swap(next, res)

	e.logger.Info("swap executed",
		zap.String("pool", next.Address.Hex()),
		zap.String("trader", params.Trader.Hex()),
		zap.Stringer("direction", res.Direction),
		zap.Uint64("amount_in", res.AmountIn),
		zap.Uint64("amount_out", res.AmountOut),
		zap.Int32("tick_before", res.TickBefore),
		zap.Int32("tick", res.Tick),
		zap.Int("ticks_crossed", len(res.TicksCrossed)),
	)
	return res, nil
}

func (e *Engine) swap(ctx context.Context, params SwapParams) (*clmm.SwapResult, *clmm.Pool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, err := e.pool(params.Pool)
	if err != nil {
		return nil, nil, err
	}
	res, err := p.ComputeSwap(params.swapParams())
	if err != nil {
		return nil, nil, err
	}

	reserves, err := e.reserves(ctx, p)
	if err != nil {
		return nil, nil, err
	}
	inMint, inVault, outMint, outVault := p.MintA, p.VaultA, p.MintB, p.VaultB
	available := reserves.B
	if res.Direction == clmm.BToA {
		inMint, inVault, outMint, outVault = p.MintB, p.VaultB, p.MintA, p.VaultA
		available = reserves.A
	}
	if available < res.AmountOut {
		return nil, nil, clmm.ErrInsufficientFundsInPool.Wrapf("owe %d, vault holds %d", res.AmountOut, available)
	}

	next := p.Clone()
	if err := next.ApplySwap(res); err != nil {
		return nil, nil, err
	}
	batch := []ledger.Instruction{
		ledger.Transfer(inMint, params.Trader, inVault, res.AmountIn),
		ledger.Transfer(outMint, outVault, params.Trader, res.AmountOut),
	}
	if err := e.commit(ctx, next, batch); err != nil {
		return nil, nil, err
	}

	if res.Direction == clmm.AToB {
		reserves.A += res.AmountIn
		reserves.B -= res.AmountOut
	} else {
		reserves.B += res.AmountIn
		reserves.A -= res.AmountOut
	}
	e.emitSwap(ctx, next.Address, params.Trader, res, reserves)
	return res, next, nil
}

// Quote simulates a swap without touching the ledger or the pool.
func (e *Engine) Quote(params SwapParams) (*clmm.SwapResult, error) {
	start := time.Now()
	e.mu.Lock()
	p, err := e.pool(params.Pool)
	var res *clmm.SwapResult
	if err == nil {
		res, err = p.ComputeSwap(params.swapParams())
	}
	e.mu.Unlock()
	e.metrics.observe("quote", start, err)
	return res, err
}

func (e *Engine) emitLiquidity(ctx context.Context, pool, owner common.Address, name string, lower, upper int32, liquidity *uint256.Int, amountA, amountB, shares uint64, reserves clmm.Reserves) {
	change := dex.LiquidityChange{
		Owner:     owner,
		TickLower: lower,
		TickUpper: upper,
		Liquidity: liquidity.ToBig(),
		AmountA:   amountA,
		AmountB:   amountB,
		Shares:    shares,
		ReserveA:  reserves.A,
		ReserveB:  reserves.B,
	}
	e.emit(ctx, pool, func(meta dex.EventMeta) (model.LogRecord, error) {
		if name == model.EventLiquidityAdded {
			return e.encoder.LiquidityAdded(meta, change)
		}
		return e.encoder.LiquidityWithdrawn(meta, change)
	})
}

func (e *Engine) emitSwap(ctx context.Context, pool, trader common.Address, res *clmm.SwapResult, reserves clmm.Reserves) {
	e.emit(ctx, pool, func(meta dex.EventMeta) (model.LogRecord, error) {
		return e.encoder.Swap(meta, dex.SwapExecuted{
			Trader:       trader,
			AToB:         res.Direction == clmm.AToB,
			AmountIn:     res.AmountIn,
			AmountOut:    res.AmountOut,
			SqrtPrice:    res.SqrtPrice.ToBig(),
			Tick:         res.Tick,
			Liquidity:    res.Liquidity.ToBig(),
			TicksCrossed: uint32(len(res.TicksCrossed)),
			ReserveA:     reserves.A,
			ReserveB:     reserves.B,
		})
	})
}
