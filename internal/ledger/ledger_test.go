package ledger

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

var (
	mintX = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	alice = common.HexToAddress("0x0000000000000000000000000000000000000a11")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

func balance(t *testing.T, m *Memory, owner common.Address) uint64 {
	t.Helper()
	v, err := m.Balance(context.Background(), mintX, owner)
	require.NoError(t, err)
	return v
}

func TestMemoryExecute(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Execute(ctx, []Instruction{Mint(mintX, alice, 100)}))
	require.NoError(t, m.Execute(ctx, []Instruction{
		Transfer(mintX, alice, bob, 30),
		Burn(mintX, bob, 10),
	}))

	require.Equal(t, uint64(70), balance(t, m, alice))
	require.Equal(t, uint64(20), balance(t, m, bob))
	supply, err := m.Supply(ctx, mintX)
	require.NoError(t, err)
	require.Equal(t, uint64(90), supply)
}

func TestMemoryExecuteIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Execute(ctx, []Instruction{Mint(mintX, alice, 50)}))

	err := m.Execute(ctx, []Instruction{
		Transfer(mintX, alice, bob, 40),
		Transfer(mintX, alice, bob, 40),
	})
	require.ErrorIs(t, err, ErrInsufficientBalance)
	require.Equal(t, uint64(50), balance(t, m, alice))
	require.Zero(t, balance(t, m, bob))

	failing := errors.New("commit failed")
	err = m.ExecuteWith(ctx, []Instruction{Transfer(mintX, alice, bob, 10)}, func() error { return failing })
	require.ErrorIs(t, err, failing)
	require.Equal(t, uint64(50), balance(t, m, alice))
}

func TestResolveRejectsInvalidInstructions(t *testing.T) {
	read := func(Account) (uint64, error) { return 10, nil }
	cases := map[string]Instruction{
		"missing mint":     Transfer(common.Address{}, alice, bob, 1),
		"self transfer":    Transfer(mintX, alice, alice, 1),
		"mint to nobody":   Mint(mintX, common.Address{}, 1),
		"burn from nobody": Burn(mintX, common.Address{}, 1),
		"unknown kind":     {Kind: Kind(9), Mint: mintX, From: alice, To: bob, Amount: 1},
	}
	for name, ins := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Resolve([]Instruction{ins}, read)
			require.ErrorIs(t, err, ErrInvalidInstruction)
		})
	}

	out, err := Resolve([]Instruction{Transfer(mintX, alice, alice, 0)}, read)
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestResolveOverflow(t *testing.T) {
	read := func(acc Account) (uint64, error) {
		if acc.Owner == bob {
			return math.MaxUint64, nil
		}
		return 1, nil
	}
	_, err := Resolve([]Instruction{Transfer(mintX, alice, bob, 1)}, read)
	require.ErrorIs(t, err, ErrBalanceOverflow)
}

func TestTransfersConserveSupply(t *testing.T) {
	owners := []common.Address{alice, bob, common.HexToAddress("0xc0")}
	rapid.Check(t, func(rt *rapid.T) {
		ctx := context.Background()
		m := NewMemory()
		var minted uint64
		for _, owner := range owners {
			amount := rapid.Uint64Range(0, 1_000_000).Draw(rt, "mint")
			if err := m.Execute(ctx, []Instruction{Mint(mintX, owner, amount)}); err != nil {
				rt.Fatal(err)
			}
			minted += amount
		}

		for i, n := 0, rapid.IntRange(1, 20).Draw(rt, "transfers"); i < n; i++ {
			from := owners[rapid.IntRange(0, 2).Draw(rt, "from")]
			to := owners[rapid.IntRange(0, 2).Draw(rt, "to")]
			if from == to {
				continue
			}
			// Failed transfers must leave balances untouched, so errors are ignored.
			_ = m.Execute(ctx, []Instruction{Transfer(mintX, from, to, rapid.Uint64Range(1, 500_000).Draw(rt, "amount"))})
		}

		var total uint64
		for _, owner := range owners {
			v, _ := m.Balance(ctx, mintX, owner)
			total += v
		}
		supply, _ := m.Supply(ctx, mintX)
		if total != minted || supply != minted {
			rt.Fatalf("balances sum to %d, supply %d, minted %d", total, supply, minted)
		}
	})
}
