package clmm

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestNewPool(t *testing.T) {
	pool := newTestPool(t, 0, 10)

	require.True(t, pool.SqrtPrice.Eq(Q64))
	require.Equal(t, int32(0), pool.CurrentTick)
	require.True(t, pool.ActiveLiquidity.IsZero())
	require.Zero(t, pool.TotalLPIssued)

	addrs := DerivePoolAddresses(testMintA, testMintB)
	require.Equal(t, addrs.Pool, pool.Address)
	require.Equal(t, addrs.VaultA, pool.VaultA)
	require.NotEqual(t, pool.VaultA, pool.VaultB)
	require.NotEqual(t, DerivePoolAddresses(testMintB, testMintA).Pool, pool.Address)
	require.NoError(t, pool.Validate())
}

func TestNewPoolFromPrice(t *testing.T) {
	price := new(uint256.Int).Add(mustPrice(t, 250), uint256.NewInt(12345))
	pool, err := NewPool(testMintA, testMintB, price, 5)
	require.NoError(t, err)
	require.Equal(t, int32(250), pool.CurrentTick)
	require.NoError(t, pool.Validate())
}

func TestNewPoolRejects(t *testing.T) {
	_, err := NewPoolAtTick(testMintA, testMintA, 0, 10)
	require.ErrorIs(t, err, ErrSameTokenMint)

	_, err = NewPoolAtTick(testMintA, testMintB, 0, 0)
	require.ErrorIs(t, err, ErrInvalidTickSpacing)

	_, err = NewPoolAtTick(testMintA, testMintB, MaxTick+1, 1)
	require.ErrorIs(t, err, ErrArithmeticOverflow)

	_, err = NewPool(testMintA, testMintB, uint256.NewInt(1), 1)
	require.ErrorIs(t, err, ErrArithmeticOverflow)
}

func TestPoolValidateDetectsCorruption(t *testing.T) {
	pool, _, _ := scenarioPool(t)

	bad := pool.Clone()
	bad.VaultA = common.HexToAddress("0x01")
	require.ErrorIs(t, bad.Validate(), ErrInvalidVault)

	bad = pool.Clone()
	bad.CurrentTick = 50
	require.ErrorIs(t, bad.Validate(), ErrInvalidTickIndex)

	bad = pool.Clone()
	tick, _ := bad.Ticks.Get(100)
	tick.LiquidityNet.SetInt64(0)
	require.ErrorIs(t, bad.Validate(), ErrInvalidTickIndex)

	// Clone is deep.
	original, _ := pool.Ticks.Get(100)
	require.NotZero(t, original.LiquidityNet.Sign())
	require.NoError(t, pool.Validate())
}

func TestCheckMints(t *testing.T) {
	pool := newTestPool(t, 0, 10)
	require.NoError(t, pool.CheckMints(testMintA, testMintB))
	require.ErrorIs(t, pool.CheckMints(testMintB, testMintA), ErrInvalidTokenMint)
}

func TestParseDirection(t *testing.T) {
	for in, want := range map[string]Direction{"a-to-b": AToB, "AtoB": AToB, "b": BToA, " b-to-a ": BToA} {
		got, err := ParseDirection(in)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
	_, err := ParseDirection("sideways")
	require.Error(t, err)
	require.Equal(t, "b-to-a", BToA.String())
}
