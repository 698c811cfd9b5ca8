package engine

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"liquidityEngine/internal/clmm"
	"liquidityEngine/internal/model"
)

// EncodePool converts a pool into its persisted record. Ticks are sorted.
func EncodePool(p *clmm.Pool) model.Pool {
	ticks := p.Ticks.Ticks()
	out := model.Pool{
		Address:         p.Address.Hex(),
		MintA:           p.MintA.Hex(),
		MintB:           p.MintB.Hex(),
		VaultA:          p.VaultA.Hex(),
		VaultB:          p.VaultB.Hex(),
		LPMint:          p.LPMint.Hex(),
		Authority:       p.Authority.Hex(),
		SqrtPrice:       p.SqrtPrice.Dec(),
		CurrentTick:     p.CurrentTick,
		ActiveLiquidity: p.ActiveLiquidity.Dec(),
		TotalLPIssued:   p.TotalLPIssued,
		TickSpacing:     p.TickSpacing,
		Ticks:           make([]model.Tick, 0, len(ticks)),
	}
	for _, t := range ticks {
		out.Ticks = append(out.Ticks, model.Tick{
			Index:        t.Index,
			SqrtPrice:    t.SqrtPrice.Dec(),
			LiquidityNet: t.LiquidityNet.String(),
		})
	}
	return out
}

// DecodePool rebuilds a pool from its record and validates it.
func DecodePool(r model.Pool) (*clmm.Pool, error) {
	addrs := make([]common.Address, 7)
	for i, s := range []string{r.Address, r.MintA, r.MintB, r.VaultA, r.VaultB, r.LPMint, r.Authority} {
		if !common.IsHexAddress(s) {
			return nil, fmt.Errorf("pool %s: invalid address %q", r.Address, s)
		}
		addrs[i] = common.HexToAddress(s)
	}

	price, err := uint256.FromDecimal(r.SqrtPrice)
	if err != nil {
		return nil, fmt.Errorf("pool %s: sqrt price: %w", r.Address, err)
	}
	liquidity, err := uint256.FromDecimal(r.ActiveLiquidity)
	if err != nil {
		return nil, fmt.Errorf("pool %s: active liquidity: %w", r.Address, err)
	}

	p := &clmm.Pool{
		Address:         addrs[0],
		MintA:           addrs[1],
		MintB:           addrs[2],
		VaultA:          addrs[3],
		VaultB:          addrs[4],
		LPMint:          addrs[5],
		Authority:       addrs[6],
		SqrtPrice:       price,
		CurrentTick:     r.CurrentTick,
		ActiveLiquidity: liquidity,
		TotalLPIssued:   r.TotalLPIssued,
		TickSpacing:     r.TickSpacing,
		Ticks:           clmm.NewTickRegistry(r.TickSpacing),
	}
	for _, t := range r.Ticks {
		tp, err := uint256.FromDecimal(t.SqrtPrice)
		if err != nil {
			return nil, fmt.Errorf("pool %s tick %d: sqrt price: %w", r.Address, t.Index, err)
		}
		net, ok := new(big.Int).SetString(t.LiquidityNet, 10)
		if !ok {
			return nil, fmt.Errorf("pool %s tick %d: invalid liquidity net %q", r.Address, t.Index, t.LiquidityNet)
		}
		p.Ticks.Restore(t.Index, &clmm.Tick{Index: t.Index, SqrtPrice: tp, LiquidityNet: net})
	}

	if p.Address != clmm.DerivePoolAddresses(p.MintA, p.MintB).Pool {
		return nil, clmm.ErrInvalidVault.Wrapf("record address %s does not match its mints", r.Address)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("pool %s: %w", r.Address, err)
	}
	return p, nil
}
