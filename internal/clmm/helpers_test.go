package clmm

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

var (
	testMintA = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	testMintB = common.HexToAddress("0x00000000000000000000000000000000000000bb")
)

func mustPrice(t testing.TB, tick int32) *uint256.Int {
	t.Helper()
	price, err := TickToSqrtPrice(tick)
	require.NoError(t, err)
	return price
}

func newTestPool(t testing.TB, tick int32, spacing uint16) *Pool {
	t.Helper()
	pool, err := NewPoolAtTick(testMintA, testMintB, tick, spacing)
	require.NoError(t, err)
	return pool
}

// vaults tracks reserves and share balances the way the ledger would.
type vaults struct {
	reserves Reserves
	shares   map[string]uint64
}

func newVaults() *vaults {
	return &vaults{shares: make(map[string]uint64)}
}

func (v *vaults) deposit(t testing.TB, pool *Pool, owner string, params AddLiquidityParams) *AddLiquidityPlan {
	t.Helper()
	plan, err := pool.PlanAddLiquidity(params, v.reserves)
	require.NoError(t, err)
	require.NoError(t, pool.CommitAddLiquidity(plan))
	v.reserves.A += plan.AmountA
	v.reserves.B += plan.AmountB
	v.shares[owner] += plan.Shares
	return plan
}

func (v *vaults) withdraw(pool *Pool, owner string, params WithdrawLiquidityParams) (*WithdrawLiquidityPlan, error) {
	plan, err := pool.PlanWithdrawLiquidity(params, v.reserves, v.shares[owner])
	if err != nil {
		return nil, err
	}
	if err := pool.CommitWithdrawLiquidity(plan); err != nil {
		return nil, err
	}
	v.reserves.A -= plan.AmountA
	v.reserves.B -= plan.AmountB
	v.shares[owner] -= plan.Shares
	return plan, nil
}

// scenarioPool is a pool at tick 0 with spacing 10 and one deposit of up to
// 1000/1000 over [-100, 100).
func scenarioPool(t testing.TB) (*Pool, *vaults, *AddLiquidityPlan) {
	t.Helper()
	pool := newTestPool(t, 0, 10)
	v := newVaults()
	plan := v.deposit(t, pool, "alice", AddLiquidityParams{TickLower: -100, TickUpper: 100, MaxA: 1000, MaxB: 1000})
	return pool, v, plan
}
