package aggregate

import (
	"encoding/json"
	"fmt"
	"math/big"

	"liquidityEngine/internal/model"
)

// Accumulator holds aggregate values for a pool window.
type Accumulator struct {
	ChainID       uint64
	PoolAddress   string
	Source        string
	WindowStart   uint64
	WindowEnd     uint64
	SwapCount     uint64
	TicksCrossed  uint64
	LiquidityAdds uint64
	Withdrawals   uint64
	VolumeA       *big.Int
	VolumeB       *big.Int

	OpenSqrtPrice  *string
	CloseSqrtPrice *string
	OpenTick       *int32
	CloseTick      *int32
	ReserveA       *string
	ReserveB       *string

	LastTS uint64
}

func NewAccumulator(record model.TypedEventRecord, windowStart, windowEnd uint64) *Accumulator {
	return &Accumulator{
		ChainID:     record.ChainID,
		PoolAddress: record.Address,
		Source:      record.Source,
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		VolumeA:     big.NewInt(0),
		VolumeB:     big.NewInt(0),
		LastTS:      record.Timestamp,
	}
}

func (a *Accumulator) AddEvent(record model.TypedEventRecord) error {
	if record.Source == model.SourceV3 {
		return a.addV3(record)
	}

	switch record.EventName {
	case model.EventPoolInitialized:
		var data model.PoolInitializedData
		if err := json.Unmarshal(record.Decoded, &data); err != nil {
			return fmt.Errorf("decode pool initialized: %w", err)
		}
		a.observePrice(record.Timestamp, data.SqrtPrice, data.Tick)
	case model.EventLiquidityAdded, model.EventLiquidityWithdrawn:
		var data model.LiquidityEventData
		if err := json.Unmarshal(record.Decoded, &data); err != nil {
			return fmt.Errorf("decode liquidity change: %w", err)
		}
		if record.EventName == model.EventLiquidityAdded {
			a.LiquidityAdds++
		} else {
			a.Withdrawals++
		}
		a.observeReserves(record.Timestamp, data.ReserveA, data.ReserveB)
	case model.EventSwap:
		var swap model.EngineSwapData
		if err := json.Unmarshal(record.Decoded, &swap); err != nil {
			return fmt.Errorf("decode swap: %w", err)
		}
		return a.applyEngineSwap(record.Timestamp, swap)
	}
	return nil
}

func (a *Accumulator) addV3(record model.TypedEventRecord) error {
	switch record.EventName {
	case model.EventMint:
		a.LiquidityAdds++
	case model.EventBurn:
		a.Withdrawals++
	case model.EventSwap:
		var swap model.SwapEventData
		if err := json.Unmarshal(record.Decoded, &swap); err != nil {
			return fmt.Errorf("decode swap: %w", err)
		}
		return a.applyV3Swap(record.Timestamp, swap)
	}
	return nil
}

func (a *Accumulator) applyEngineSwap(ts uint64, swap model.EngineSwapData) error {
	amountIn, err := parseBigInt(swap.AmountIn)
	if err != nil {
		return err
	}
	amountOut, err := parseBigInt(swap.AmountOut)
	if err != nil {
		return err
	}

	if swap.AToB {
		a.VolumeA.Add(a.VolumeA, amountIn)
		a.VolumeB.Add(a.VolumeB, amountOut)
	} else {
		a.VolumeB.Add(a.VolumeB, amountIn)
		a.VolumeA.Add(a.VolumeA, amountOut)
	}
	a.TicksCrossed += uint64(swap.TicksCrossed)
	a.SwapCount++
	a.observePrice(ts, swap.SqrtPrice, swap.Tick)
	a.observeReserves(ts, swap.ReserveA, swap.ReserveB)
	return nil
}

func (a *Accumulator) applyV3Swap(ts uint64, swap model.SwapEventData) error {
	amount0, err := parseBigInt(swap.Amount0)
	if err != nil {
		return err
	}
	amount1, err := parseBigInt(swap.Amount1)
	if err != nil {
		return err
	}
	sqrtX96, err := parseBigInt(swap.SqrtPriceX96)
	if err != nil {
		return err
	}

	absAdd(a.VolumeA, amount0)
	absAdd(a.VolumeB, amount1)
	a.SwapCount++
	a.observePrice(ts, q96ToQ64(sqrtX96), swap.Tick)
	return nil
}

// observePrice keeps the first price seen as open and the latest as close.
func (a *Accumulator) observePrice(ts uint64, sqrtPrice string, tick int32) {
	if a.OpenSqrtPrice == nil {
		price, t := sqrtPrice, tick
		a.OpenSqrtPrice, a.OpenTick = &price, &t
	}
	if ts >= a.LastTS || a.CloseSqrtPrice == nil {
		price, t := sqrtPrice, tick
		a.CloseSqrtPrice, a.CloseTick = &price, &t
		a.LastTS = ts
	}
}

func (a *Accumulator) observeReserves(ts uint64, reserveA, reserveB string) {
	if reserveA == "" && reserveB == "" {
		return
	}
	if ts < a.LastTS && a.ReserveA != nil {
		return
	}
	ra, rb := reserveA, reserveB
	a.ReserveA, a.ReserveB = &ra, &rb
	a.LastTS = ts
}
