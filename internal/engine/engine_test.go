package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"liquidityEngine/internal/clmm"
	"liquidityEngine/internal/dex"
	"liquidityEngine/internal/ledger"
	"liquidityEngine/internal/model"
	"liquidityEngine/internal/storage"
)

var (
	mintA = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	mintB = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	alice = common.HexToAddress("0x000000000000000000000000000000000000a11c")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

type captureSink struct {
	logs []model.LogRecord
	err  error
}

func (s *captureSink) PutLogBatch(logs []model.LogRecord) error {
	if s.err != nil {
		return s.err
	}
	s.logs = append(s.logs, logs...)
	return nil
}

type fixture struct {
	engine  *Engine
	store   *storage.MemoryStore
	events  *captureSink
	metrics *Metrics
	pool    common.Address
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := storage.NewMemoryStore()
	events := &captureSink{}
	metrics := NewMetrics(prometheus.NewRegistry())
	clock := func() time.Time { return time.Unix(1700000000, 0) }

	e, err := New(ctx, Config{ChainID: 31337, Clock: clock}, store, events, metrics, nil)
	require.NoError(t, err)

	p, err := e.InitializePool(ctx, InitializePoolParams{MintA: mintA, MintB: mintB, Tick: 0, TickSpacing: 10})
	require.NoError(t, err)

	require.NoError(t, store.Execute(ctx, []ledger.Instruction{
		ledger.Mint(mintA, alice, 10_000),
		ledger.Mint(mintB, alice, 10_000),
		ledger.Mint(mintA, bob, 10_000),
		ledger.Mint(mintB, bob, 10_000),
	}))
	return &fixture{engine: e, store: store, events: events, metrics: metrics, pool: p.Address}
}

// scenarioA deposits up to 1000/1000 over [-100, 100) for alice.
func (f *fixture) scenarioA(t *testing.T) AddLiquidityResult {
	t.Helper()
	res, err := f.engine.AddLiquidity(context.Background(), AddLiquidityParams{
		Pool:      f.pool,
		Owner:     alice,
		TickLower: -100,
		TickUpper: 100,
		MaxA:      1000,
		MaxB:      1000,
	})
	require.NoError(t, err)
	return res
}

func (f *fixture) balance(t *testing.T, mint, owner common.Address) uint64 {
	t.Helper()
	bal, err := f.store.Balance(context.Background(), mint, owner)
	require.NoError(t, err)
	return bal
}

func TestInitializePool(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.engine.Pool(f.pool)
	require.NoError(t, err)
	require.Equal(t, int32(0), p.CurrentTick)
	require.True(t, p.SqrtPrice.Eq(new(uint256.Int).Lsh(uint256.NewInt(1), 64)))
	require.Equal(t, clmm.DerivePoolAddresses(mintA, mintB).Pool, p.Address)

	_, err = f.engine.InitializePool(ctx, InitializePoolParams{MintA: mintA, MintB: mintB, TickSpacing: 10})
	require.ErrorIs(t, err, clmm.ErrPoolExists)

	_, err = f.engine.InitializePool(ctx, InitializePoolParams{MintA: mintA, MintB: mintA, TickSpacing: 10})
	require.ErrorIs(t, err, clmm.ErrSameTokenMint)

	_, err = f.engine.Pool(common.HexToAddress("0x01"))
	require.ErrorIs(t, err, clmm.ErrPoolNotFound)

	require.Len(t, f.events.logs, 1)
	require.Equal(t, uint64(1), f.events.logs[0].BlockNumber)
}

func TestScenarioAAddLiquidity(t *testing.T) {
	f := newFixture(t)
	res := f.scenarioA(t)

	require.False(t, res.Liquidity.IsZero())
	require.LessOrEqual(t, res.AmountA, uint64(1000))
	require.LessOrEqual(t, res.AmountB, uint64(1000))
	require.Positive(t, res.SharesMinted)

	reserves, err := f.engine.Reserves(context.Background(), f.pool)
	require.NoError(t, err)
	require.Equal(t, clmm.Reserves{A: res.AmountA, B: res.AmountB}, reserves)
	require.Equal(t, 10_000-res.AmountA, f.balance(t, mintA, alice))

	shares, err := f.engine.Shares(context.Background(), f.pool, alice)
	require.NoError(t, err)
	require.Equal(t, res.SharesMinted, shares)

	p, err := f.engine.Pool(f.pool)
	require.NoError(t, err)
	require.True(t, p.ActiveLiquidity.Eq(res.Liquidity))
	require.Equal(t, res.SharesMinted, p.TotalLPIssued)

	supply, err := f.store.Supply(context.Background(), p.LPMint)
	require.NoError(t, err)
	require.Equal(t, p.TotalLPIssued, supply)
}

func TestScenarioBSwapInsideRange(t *testing.T) {
	f := newFixture(t)
	added := f.scenarioA(t)

	res, err := f.engine.Swap(context.Background(), SwapParams{
		Pool:       f.pool,
		Trader:     bob,
		AmountIn:   500,
		Direction:  clmm.AToB,
		Boundaries: []int32{-100},
	})
	require.NoError(t, err)
	require.Positive(t, res.AmountOut)
	require.Less(t, res.Tick, int32(0))

	p, err := f.engine.Pool(f.pool)
	require.NoError(t, err)
	require.Less(t, p.CurrentTick, int32(0))
	require.True(t, p.ActiveLiquidity.Eq(added.Liquidity))

	require.Equal(t, uint64(10_000-500), f.balance(t, mintA, bob))
	require.Equal(t, 10_000+res.AmountOut, f.balance(t, mintB, bob))
	reserves, err := f.engine.Reserves(context.Background(), f.pool)
	require.NoError(t, err)
	require.Equal(t, added.AmountA+500, reserves.A)
	require.Equal(t, added.AmountB-res.AmountOut, reserves.B)
}

func TestSwapRejectsIncompleteBoundaries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.scenarioA(t)
	_, err := f.engine.AddLiquidity(ctx, AddLiquidityParams{Pool: f.pool, Owner: bob, TickLower: 200, TickUpper: 300, MaxA: 1000})
	require.NoError(t, err)

	before, err := f.engine.Pool(f.pool)
	require.NoError(t, err)
	bobB := f.balance(t, mintB, bob)

	_, err = f.engine.Swap(ctx, SwapParams{Pool: f.pool, Trader: bob, AmountIn: 5000, Direction: clmm.BToA, Boundaries: []int32{300}})
	require.ErrorIs(t, err, clmm.ErrMissingTickAccounts)
	_, err = f.engine.Quote(SwapParams{Pool: f.pool, AmountIn: 5000, Direction: clmm.BToA, Boundaries: []int32{100, 300}})
	require.ErrorIs(t, err, clmm.ErrMissingTickAccounts)

	after, err := f.engine.Pool(f.pool)
	require.NoError(t, err)
	require.True(t, after.SqrtPrice.Eq(before.SqrtPrice))
	require.True(t, after.ActiveLiquidity.Eq(before.ActiveLiquidity))
	require.Equal(t, bobB, f.balance(t, mintB, bob))

	res, err := f.engine.Swap(ctx, SwapParams{Pool: f.pool, Trader: bob, AmountIn: 5000, Direction: clmm.BToA, Boundaries: []int32{100, 200, 300}})
	require.NoError(t, err)
	require.Equal(t, []int32{100, 200, 300}, res.TicksCrossed)
	after, err = f.engine.Pool(f.pool)
	require.NoError(t, err)
	require.NoError(t, after.Validate())
}

func TestScenarioCSwapCrossesUpperTick(t *testing.T) {
	f := newFixture(t)
	f.scenarioA(t)

	before, err := f.engine.Pool(f.pool)
	require.NoError(t, err)
	upper, ok := before.Ticks.Get(100)
	require.True(t, ok)

	res, err := f.engine.Swap(context.Background(), SwapParams{
		Pool:       f.pool,
		Trader:     bob,
		AmountIn:   5000,
		Direction:  clmm.BToA,
		Boundaries: []int32{-100, 100},
	})
	require.NoError(t, err)
	require.Equal(t, []int32{100}, res.TicksCrossed)

	after, err := f.engine.Pool(f.pool)
	require.NoError(t, err)
	require.Equal(t, int32(100), after.CurrentTick)
	want := before.ActiveLiquidity.ToBig()
	want.Add(want, upper.LiquidityNet)
	require.Zero(t, want.Cmp(after.ActiveLiquidity.ToBig()))
}

func TestScenarioDWithdraw(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	added := f.scenarioA(t)

	_, err := f.engine.WithdrawLiquidity(ctx, WithdrawLiquidityParams{
		Pool: f.pool, Owner: bob, TickLower: -100, TickUpper: 100, Liquidity: added.Liquidity,
	})
	require.ErrorIs(t, err, clmm.ErrInsufficientLPTokens)

	out, err := f.engine.WithdrawLiquidity(ctx, WithdrawLiquidityParams{
		Pool: f.pool, Owner: alice, TickLower: -100, TickUpper: 100, Liquidity: added.Liquidity,
	})
	require.NoError(t, err)
	require.True(t, out.FullExit)
	require.Equal(t, added.SharesMinted, out.SharesBurned)

	shares, err := f.engine.Shares(ctx, f.pool, alice)
	require.NoError(t, err)
	require.Zero(t, shares)
	require.Equal(t, uint64(10_000), f.balance(t, mintA, alice))
	require.Equal(t, uint64(10_000), f.balance(t, mintB, alice))

	p, err := f.engine.Pool(f.pool)
	require.NoError(t, err)
	require.Zero(t, p.TotalLPIssued)
	require.True(t, p.ActiveLiquidity.IsZero())
}

func TestScenarioERangeValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.AddLiquidity(ctx, AddLiquidityParams{Pool: f.pool, Owner: alice, TickLower: 100, TickUpper: 100, MaxA: 10, MaxB: 10})
	require.ErrorIs(t, err, clmm.ErrTickMismatch)

	_, err = f.engine.AddLiquidity(ctx, AddLiquidityParams{Pool: f.pool, Owner: alice, TickLower: -15, TickUpper: 100, MaxA: 10, MaxB: 10})
	require.ErrorIs(t, err, clmm.ErrUnalignedTick)

	require.Equal(t, uint64(10_000), f.balance(t, mintA, alice))
	require.Equal(t, float64(2), testutil.ToFloat64(f.metrics.Operations.WithLabelValues("add_liquidity", "error")))
}

func TestAddLiquidityWithoutFundsChangesNothing(t *testing.T) {
	f := newFixture(t)
	poor := common.HexToAddress("0x000000000000000000000000000000000000dead")

	_, err := f.engine.AddLiquidity(context.Background(), AddLiquidityParams{
		Pool: f.pool, Owner: poor, TickLower: -100, TickUpper: 100, MaxA: 1000, MaxB: 1000,
	})
	require.ErrorIs(t, err, ledger.ErrInsufficientBalance)

	p, err := f.engine.Pool(f.pool)
	require.NoError(t, err)
	require.True(t, p.ActiveLiquidity.IsZero())
	require.Zero(t, p.Ticks.Len())
	require.Len(t, f.events.logs, 1)
}

func TestSwapRejectsUnfundedOutput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.scenarioA(t)

	// Drain vault B out from under the pool.
	p, err := f.engine.Pool(f.pool)
	require.NoError(t, err)
	reserves, err := f.engine.Reserves(ctx, f.pool)
	require.NoError(t, err)
	require.NoError(t, f.store.Execute(ctx, []ledger.Instruction{ledger.Transfer(mintB, p.VaultB, bob, reserves.B)}))

	_, err = f.engine.Swap(ctx, SwapParams{Pool: f.pool, Trader: bob, AmountIn: 500, Direction: clmm.AToB, Boundaries: []int32{-100}})
	require.ErrorIs(t, err, clmm.ErrInsufficientFundsInPool)

	after, err := f.engine.Pool(f.pool)
	require.NoError(t, err)
	require.Equal(t, p.CurrentTick, after.CurrentTick)
}

func TestQuoteLeavesStateAlone(t *testing.T) {
	f := newFixture(t)
	f.scenarioA(t)

	params := SwapParams{Pool: f.pool, Trader: bob, AmountIn: 500, Direction: clmm.AToB, Boundaries: []int32{-100}}
	quote, err := f.engine.Quote(params)
	require.NoError(t, err)

	p, err := f.engine.Pool(f.pool)
	require.NoError(t, err)
	require.Equal(t, int32(0), p.CurrentTick)

	res, err := f.engine.Swap(context.Background(), params)
	require.NoError(t, err)
	require.Equal(t, quote.AmountOut, res.AmountOut)
	require.True(t, quote.SqrtPrice.Eq(res.SqrtPrice))
}

func TestEngineReloadsFromStore(t *testing.T) {
	f := newFixture(t)
	f.scenarioA(t)
	_, err := f.engine.Swap(context.Background(), SwapParams{Pool: f.pool, Trader: bob, AmountIn: 300, Direction: clmm.AToB, Boundaries: []int32{-100}})
	require.NoError(t, err)

	reloaded, err := New(context.Background(), Config{}, f.store, nil, nil, nil)
	require.NoError(t, err)
	want, err := f.engine.Pool(f.pool)
	require.NoError(t, err)
	got, err := reloaded.Pool(f.pool)
	require.NoError(t, err)
	require.Equal(t, EncodePool(want), EncodePool(got))
}

func TestEventsDecode(t *testing.T) {
	f := newFixture(t)
	f.scenarioA(t)
	swap, err := f.engine.Swap(context.Background(), SwapParams{Pool: f.pool, Trader: bob, AmountIn: 500, Direction: clmm.AToB, Boundaries: []int32{-100}})
	require.NoError(t, err)

	decoder, err := dex.NewEngineDecoder()
	require.NoError(t, err)
	ctx := dex.DecodeContext{PoolMetaCache: dex.NewPoolMetaCache()}

	require.Len(t, f.events.logs, 3)
	names := make([]string, 0, len(f.events.logs))
	var last *model.TypedEvent
	for i, rec := range f.events.logs {
		require.Equal(t, uint64(i+1), rec.BlockNumber)
		ev, err := decoder.Decode(rec, ctx)
		require.NoError(t, err)
		names = append(names, ev.EventName)
		last = ev
	}
	require.Equal(t, []string{model.EventPoolInitialized, model.EventLiquidityAdded, model.EventSwap}, names)

	data, ok := last.Decoded.(model.EngineSwapData)
	require.True(t, ok)
	require.True(t, data.AToB)
	require.Equal(t, swap.SqrtPrice.Dec(), data.SqrtPrice)

	reserves, err := f.engine.Reserves(context.Background(), f.pool)
	require.NoError(t, err)
	require.Equal(t, uint256.NewInt(reserves.A).Dec(), data.ReserveA)
	require.Equal(t, uint256.NewInt(reserves.B).Dec(), data.ReserveB)
}

func TestEventSinkFailureDoesNotFailOperation(t *testing.T) {
	f := newFixture(t)
	f.events.err = errors.New("disk full")

	res := f.scenarioA(t)
	require.Positive(t, res.SharesMinted)
}

func TestImportPool(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other := common.HexToAddress("0x00000000000000000000000000000000000000cc")
	p, err := clmm.NewPoolAtTick(mintA, other, 120, 60)
	require.NoError(t, err)
	require.NoError(t, p.Ticks.ApplyRangeDelta(60, 180, uint256.NewInt(5000).ToBig()))
	p.ActiveLiquidity = uint256.NewInt(5000)

	require.NoError(t, f.engine.ImportPool(ctx, p))
	require.Len(t, f.engine.Pools(), 2)

	quote, err := f.engine.Quote(SwapParams{Pool: p.Address, AmountIn: 10, Direction: clmm.AToB, Boundaries: p.Ticks.Boundaries(p.CurrentTick, clmm.AToB, 0)})
	require.NoError(t, err)
	require.Positive(t, quote.AmountOut)

	p.ActiveLiquidity = uint256.NewInt(1)
	p.Ticks.Restore(240, &clmm.Tick{Index: 0, SqrtPrice: uint256.NewInt(1), LiquidityNet: uint256.NewInt(0).ToBig()})
	require.Error(t, f.engine.ImportPool(ctx, p))
}
