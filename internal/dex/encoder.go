package dex

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"liquidityEngine/internal/model"
)

// EventMeta positions one engine event. Sequence doubles as the block number.
type EventMeta struct {
	Pool      common.Address
	Sequence  uint64
	Timestamp time.Time
}

// LiquidityChange is the payload of LiquidityAdded and LiquidityWithdrawn.
type LiquidityChange struct {
	Owner     common.Address
	TickLower int32
	TickUpper int32
	Liquidity *big.Int
	AmountA   uint64
	AmountB   uint64
	Shares    uint64
	ReserveA  uint64
	ReserveB  uint64
}

// SwapExecuted is the payload of an engine Swap.
type SwapExecuted struct {
	Trader       common.Address
	AToB         bool
	AmountIn     uint64
	AmountOut    uint64
	SqrtPrice    *big.Int
	Tick         int32
	Liquidity    *big.Int
	TicksCrossed uint32
	ReserveA     uint64
	ReserveB     uint64
}

// EventEncoder turns engine events into ABI-encoded log records.
type EventEncoder struct {
	abi     abi.ABI
	chainID uint64
}

func NewEventEncoder(chainID uint64) (*EventEncoder, error) {
	parsed, err := EngineABI()
	if err != nil {
		return nil, fmt.Errorf("parse engine abi: %w", err)
	}
	return &EventEncoder{abi: parsed, chainID: chainID}, nil
}

func (e *EventEncoder) PoolInitialized(meta EventMeta, mintA, mintB common.Address, tickSpacing uint16, sqrtPrice *big.Int, tick int32) (model.LogRecord, error) {
	return e.encode(meta, model.EventPoolInitialized, []common.Address{mintA, mintB}, tickSpacing, sqrtPrice, tick)
}

func (e *EventEncoder) LiquidityAdded(meta EventMeta, c LiquidityChange) (model.LogRecord, error) {
	return e.liquidity(meta, model.EventLiquidityAdded, c)
}

func (e *EventEncoder) LiquidityWithdrawn(meta EventMeta, c LiquidityChange) (model.LogRecord, error) {
	return e.liquidity(meta, model.EventLiquidityWithdrawn, c)
}

func (e *EventEncoder) Swap(meta EventMeta, s SwapExecuted) (model.LogRecord, error) {
	return e.encode(meta, model.EventSwap, []common.Address{s.Trader},
		s.AToB, s.AmountIn, s.AmountOut, s.SqrtPrice, s.Tick, s.Liquidity, s.TicksCrossed, s.ReserveA, s.ReserveB)
}

func (e *EventEncoder) liquidity(meta EventMeta, name string, c LiquidityChange) (model.LogRecord, error) {
	return e.encode(meta, name, []common.Address{c.Owner},
		c.TickLower, c.TickUpper, c.Liquidity, c.AmountA, c.AmountB, c.Shares, c.ReserveA, c.ReserveB)
}

func (e *EventEncoder) encode(meta EventMeta, name string, indexed []common.Address, args ...interface{}) (model.LogRecord, error) {
	event, ok := e.abi.Events[name]
	if !ok {
		return model.LogRecord{}, fmt.Errorf("unknown engine event %s", name)
	}
	data, err := event.Inputs.NonIndexed().Pack(args...)
	if err != nil {
		return model.LogRecord{}, fmt.Errorf("pack %s: %w", name, err)
	}

	topics := make([]string, 0, len(indexed)+1)
	topics = append(topics, event.ID.Hex())
	for _, addr := range indexed {
		topics = append(topics, common.BytesToHash(addr.Bytes()).Hex())
	}

	var seq [8]byte
	binary.BigEndian.PutUint64(seq[:], meta.Sequence)
	ts := meta.Timestamp.UTC()

	return model.LogRecord{
		ChainID:     e.chainID,
		BlockNumber: meta.Sequence,
		TxHash:      crypto.Keccak256Hash(meta.Pool.Bytes(), seq[:]).Hex(),
		Address:     meta.Pool.Hex(),
		Topics:      topics,
		Data:        hexutil.Encode(data),
		Timestamp:   uint64(ts.Unix()),
		IngestedAt:  ts.Format(time.RFC3339Nano),
	}, nil
}
