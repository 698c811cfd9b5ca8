package main

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/spf13/cobra"

	"liquidityEngine/internal/clmm"
	"liquidityEngine/internal/engine"
	"liquidityEngine/internal/indexer"
	"liquidityEngine/internal/ledger"
	"liquidityEngine/internal/model"
)

type poolView struct {
	model.Pool
	ReserveA uint64 `json:"reserve_a"`
	ReserveB uint64 `json:"reserve_b"`
}

type swapView struct {
	State           string  `json:"state"`
	Direction       string  `json:"direction"`
	AmountIn        uint64  `json:"amount_in"`
	AmountOut       uint64  `json:"amount_out"`
	SqrtPriceBefore string  `json:"sqrt_price_before"`
	SqrtPrice       string  `json:"sqrt_price"`
	TickBefore      int32   `json:"tick_before"`
	Tick            int32   `json:"tick"`
	Liquidity       string  `json:"liquidity"`
	TicksCrossed    []int32 `json:"ticks_crossed"`
	Steps           int     `json:"steps"`
}

func newSwapView(res *clmm.SwapResult) swapView {
	return swapView{
		State:           res.State.String(),
		Direction:       res.Direction.String(),
		AmountIn:        res.AmountIn,
		AmountOut:       res.AmountOut,
		SqrtPriceBefore: res.SqrtPriceBefore.Dec(),
		SqrtPrice:       res.SqrtPrice.Dec(),
		TickBefore:      res.TickBefore,
		Tick:            res.Tick,
		Liquidity:       res.Liquidity.Dec(),
		TicksCrossed:    res.TicksCrossed,
		Steps:           res.Steps,
	}
}

func newInitPoolCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init-pool",
		Short: "Create a pool for a mint pair",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			mintA, err := addressFlag(cmd, "mint-a")
			if err != nil {
				return err
			}
			mintB, err := addressFlag(cmd, "mint-b")
			if err != nil {
				return err
			}
			spacing, _ := cmd.Flags().GetUint16("tick-spacing")
			tick, _ := cmd.Flags().GetInt32("tick")
			sqrtPrice, err := optionalUint256Flag(cmd, "sqrt-price")
			if err != nil {
				return err
			}

			p, err := s.engine.InitializePool(s.ctx, engine.InitializePoolParams{
				MintA:       mintA,
				MintB:       mintB,
				SqrtPrice:   sqrtPrice,
				Tick:        tick,
				TickSpacing: spacing,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, engine.EncodePool(p))
		},
	}
	engineFlags(cmd)
	cmd.Flags().String("mint-a", "", "asset A mint address")
	cmd.Flags().String("mint-b", "", "asset B mint address")
	cmd.Flags().Uint16("tick-spacing", 10, "tick spacing")
	cmd.Flags().Int32("tick", 0, "initial tick, used when --sqrt-price is empty")
	cmd.Flags().String("sqrt-price", "", "initial Q64.64 sqrt price (decimal)")
	return cmd
}

func newMintCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Credit tokens to an owner",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			mint, err := addressFlag(cmd, "mint")
			if err != nil {
				return err
			}
			owner, err := addressFlag(cmd, "owner")
			if err != nil {
				return err
			}
			amount, _ := cmd.Flags().GetUint64("amount")
			if err := s.store.Execute(s.ctx, []ledger.Instruction{ledger.Mint(mint, owner, amount)}); err != nil {
				return err
			}
			balance, err := s.store.Balance(s.ctx, mint, owner)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]interface{}{
				"mint":    mint.Hex(),
				"owner":   owner.Hex(),
				"balance": balance,
			})
		},
	}
	engineFlags(cmd)
	cmd.Flags().String("mint", "", "mint address")
	cmd.Flags().String("owner", "", "owner address")
	cmd.Flags().Uint64("amount", 0, "amount to credit")
	return cmd
}

func newAddLiquidityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add-liquidity",
		Short: "Deposit liquidity over a tick range",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			pool, owner, lower, upper, err := rangeFlags(cmd)
			if err != nil {
				return err
			}
			maxA, _ := cmd.Flags().GetUint64("max-a")
			maxB, _ := cmd.Flags().GetUint64("max-b")
			minA, _ := cmd.Flags().GetUint64("min-a")
			minB, _ := cmd.Flags().GetUint64("min-b")

			res, err := s.engine.AddLiquidity(s.ctx, engine.AddLiquidityParams{
				Pool:      pool,
				Owner:     owner,
				TickLower: lower,
				TickUpper: upper,
				MaxA:      maxA,
				MaxB:      maxB,
				MinA:      minA,
				MinB:      minB,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]interface{}{
				"liquidity":     res.Liquidity.Dec(),
				"amount_a":      res.AmountA,
				"amount_b":      res.AmountB,
				"shares_minted": res.SharesMinted,
			})
		},
	}
	engineFlags(cmd)
	addRangeFlags(cmd)
	cmd.Flags().Uint64("max-a", 0, "maximum asset A to deposit")
	cmd.Flags().Uint64("max-b", 0, "maximum asset B to deposit")
	cmd.Flags().Uint64("min-a", 0, "minimum asset A to deposit")
	cmd.Flags().Uint64("min-b", 0, "minimum asset B to deposit")
	return cmd
}

func newWithdrawLiquidityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "withdraw-liquidity",
		Short: "Remove liquidity from a tick range",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			pool, owner, lower, upper, err := rangeFlags(cmd)
			if err != nil {
				return err
			}
			liquidity, err := optionalUint256Flag(cmd, "liquidity")
			if err != nil {
				return err
			}
			if liquidity == nil {
				return fmt.Errorf("--liquidity is required")
			}

			res, err := s.engine.WithdrawLiquidity(s.ctx, engine.WithdrawLiquidityParams{
				Pool:      pool,
				Owner:     owner,
				TickLower: lower,
				TickUpper: upper,
				Liquidity: liquidity,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]interface{}{
				"amount_a":      res.AmountA,
				"amount_b":      res.AmountB,
				"shares_burned": res.SharesBurned,
				"full_exit":     res.FullExit,
			})
		},
	}
	engineFlags(cmd)
	addRangeFlags(cmd)
	cmd.Flags().String("liquidity", "", "liquidity to remove (decimal)")
	return cmd
}

func newSwapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "swap",
		Short: "Trade against a pool",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			params, err := swapFlags(cmd, s.engine)
			if err != nil {
				return err
			}
			if params.Trader == (common.Address{}) {
				return fmt.Errorf("--trader is required")
			}
			res, err := s.engine.Swap(s.ctx, params)
			if err != nil {
				return err
			}
			return printJSON(cmd, newSwapView(res))
		},
	}
	engineFlags(cmd)
	addSwapFlags(cmd)
	return cmd
}

func newQuoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Simulate a swap without settling it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			params, err := swapFlags(cmd, s.engine)
			if err != nil {
				return err
			}
			res, err := s.engine.Quote(params)
			if err != nil {
				return err
			}
			return printJSON(cmd, newSwapView(res))
		},
	}
	engineFlags(cmd)
	addSwapFlags(cmd)
	return cmd
}

func newShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print one pool, or every pool",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			var pools []*clmm.Pool
			if raw, _ := cmd.Flags().GetString("pool"); raw != "" {
				addr, err := indexer.ParseAddress(raw)
				if err != nil {
					return err
				}
				p, err := s.engine.Pool(addr)
				if err != nil {
					return err
				}
				pools = append(pools, p)
			} else {
				pools = s.engine.Pools()
			}

			views := make([]poolView, 0, len(pools))
			for _, p := range pools {
				reserves, err := s.engine.Reserves(s.ctx, p.Address)
				if err != nil {
					return err
				}
				views = append(views, poolView{Pool: engine.EncodePool(p), ReserveA: reserves.A, ReserveB: reserves.B})
			}
			return printJSON(cmd, views)
		},
	}
	engineFlags(cmd)
	cmd.Flags().String("pool", "", "pool address (default all)")
	return cmd
}

func addRangeFlags(cmd *cobra.Command) {
	cmd.Flags().String("pool", "", "pool address")
	cmd.Flags().String("owner", "", "position owner address")
	cmd.Flags().Int32("lower", 0, "lower tick (inclusive)")
	cmd.Flags().Int32("upper", 0, "upper tick (exclusive)")
}

func rangeFlags(cmd *cobra.Command) (pool, owner common.Address, lower, upper int32, err error) {
	if pool, err = addressFlag(cmd, "pool"); err != nil {
		return
	}
	if owner, err = addressFlag(cmd, "owner"); err != nil {
		return
	}
	lower, _ = cmd.Flags().GetInt32("lower")
	upper, _ = cmd.Flags().GetInt32("upper")
	return
}

func addSwapFlags(cmd *cobra.Command) {
	cmd.Flags().String("pool", "", "pool address")
	cmd.Flags().String("trader", "", "trader address")
	cmd.Flags().Uint64("amount-in", 0, "input amount")
	cmd.Flags().String("direction", "a-to-b", "a-to-b or b-to-a")
	cmd.Flags().String("sqrt-price-limit", "", "optional Q64.64 price limit (decimal)")
	cmd.Flags().Uint64("min-out", 0, "minimum output amount")
	cmd.Flags().Int32Slice("ticks", nil, "boundary ticks in crossing order (default every initialized tick ahead)")
}

func swapFlags(cmd *cobra.Command, eng *engine.Engine) (engine.SwapParams, error) {
	pool, err := addressFlag(cmd, "pool")
	if err != nil {
		return engine.SwapParams{}, err
	}
	var trader common.Address
	if raw, _ := cmd.Flags().GetString("trader"); raw != "" {
		if trader, err = indexer.ParseAddress(raw); err != nil {
			return engine.SwapParams{}, err
		}
	}
	rawDir, _ := cmd.Flags().GetString("direction")
	dir, err := clmm.ParseDirection(rawDir)
	if err != nil {
		return engine.SwapParams{}, err
	}
	limit, err := optionalUint256Flag(cmd, "sqrt-price-limit")
	if err != nil {
		return engine.SwapParams{}, err
	}
	amountIn, _ := cmd.Flags().GetUint64("amount-in")
	minOut, _ := cmd.Flags().GetUint64("min-out")

	boundaries, _ := cmd.Flags().GetInt32Slice("ticks")
	if !cmd.Flags().Changed("ticks") {
		p, err := eng.Pool(pool)
		if err != nil {
			return engine.SwapParams{}, err
		}
		boundaries = p.Ticks.Boundaries(p.CurrentTick, dir, 0)
	}

	return engine.SwapParams{
		Pool:           pool,
		Trader:         trader,
		AmountIn:       amountIn,
		Direction:      dir,
		SqrtPriceLimit: limit,
		MinAmountOut:   minOut,
		Boundaries:     boundaries,
	}, nil
}

func addressFlag(cmd *cobra.Command, name string) (common.Address, error) {
	raw, _ := cmd.Flags().GetString(name)
	if raw == "" {
		return common.Address{}, fmt.Errorf("--%s is required", name)
	}
	return indexer.ParseAddress(raw)
}

func optionalUint256Flag(cmd *cobra.Command, name string) (*uint256.Int, error) {
	raw, _ := cmd.Flags().GetString(name)
	if raw == "" {
		return nil, nil
	}
	v, err := uint256.FromDecimal(raw)
	if err != nil {
		return nil, fmt.Errorf("parse --%s: %w", name, err)
	}
	return v, nil
}
