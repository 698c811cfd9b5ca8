package dex

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"liquidityEngine/internal/model"
)

// EngineDecoder decodes the events written by the engine's EventEncoder.
type EngineDecoder struct {
	abi         abi.ABI
	topicToName map[string]string
}

func NewEngineDecoder() (*EngineDecoder, error) {
	parsed, err := EngineABI()
	if err != nil {
		return nil, err
	}
	topicToName := make(map[string]string, len(parsed.Events))
	for name, event := range parsed.Events {
		topicToName[strings.ToLower(event.ID.Hex())] = name
	}
	return &EngineDecoder{abi: parsed, topicToName: topicToName}, nil
}

func (d *EngineDecoder) CanDecode(topic0 string) bool {
	_, ok := d.topicToName[strings.ToLower(topic0)]
	return ok
}

// Decode converts an engine LogRecord into a TypedEvent. PoolInitialized
// seeds the metadata cache for the pool's later events.
func (d *EngineDecoder) Decode(log model.LogRecord, ctx DecodeContext) (*model.TypedEvent, error) {
	name, ok := d.topicToName[strings.ToLower(log.Topic0())]
	if !ok {
		return nil, fmt.Errorf("unsupported topic0: %s", log.Topic0())
	}
	if !common.IsHexAddress(log.Address) {
		return nil, fmt.Errorf("invalid pool address: %s", log.Address)
	}
	pool := common.HexToAddress(log.Address)

	event := d.abi.Events[name]
	topics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return nil, err
	}
	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return nil, err
	}

	var decoded interface{}
	switch name {
	case model.EventPoolInitialized:
		created, err := decodePoolInitialized(topics, values)
		if err != nil {
			return nil, err
		}
		if ctx.PoolMetaCache != nil {
			ctx.PoolMetaCache.Set(pool, model.PoolMeta{MintA: created.MintA, MintB: created.MintB, TickSpacing: int32(created.TickSpacing)})
		}
		decoded = created
	case model.EventLiquidityAdded, model.EventLiquidityWithdrawn:
		decoded, err = decodeLiquidityChange(topics, values)
	case model.EventSwap:
		decoded, err = decodeEngineSwap(topics, values)
	default:
		err = fmt.Errorf("unsupported event name: %s", name)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}

	var meta model.PoolMeta
	if ctx.PoolMetaCache != nil {
		meta, ok = ctx.PoolMetaCache.Get(pool)
	}
	if !ok && ctx.Logger != nil {
		ctx.Logger.Debug("no metadata for engine pool", zap.String("pool", log.Address), zap.String("event", name))
	}
	return buildTypedEvent(log, model.SourceEngine, name, decoded, meta), nil
}

func decodePoolInitialized(topics []common.Hash, values []interface{}) (model.PoolInitializedData, error) {
	if len(topics) != 2 || len(values) != 3 {
		return model.PoolInitializedData{}, fmt.Errorf("unexpected layout: %d topics, %d values", len(topics), len(values))
	}
	spacing, ok := values[0].(uint16)
	if !ok {
		return model.PoolInitializedData{}, fmt.Errorf("tick spacing type %T", values[0])
	}
	price, err := asBigInt(values[1])
	if err != nil {
		return model.PoolInitializedData{}, err
	}
	tick, err := asInt32(values[2])
	if err != nil {
		return model.PoolInitializedData{}, err
	}
	return model.PoolInitializedData{
		MintA:       common.BytesToAddress(topics[0].Bytes()).Hex(),
		MintB:       common.BytesToAddress(topics[1].Bytes()).Hex(),
		TickSpacing: spacing,
		SqrtPrice:   price.String(),
		Tick:        tick,
	}, nil
}

func decodeLiquidityChange(topics []common.Hash, values []interface{}) (model.LiquidityEventData, error) {
	if len(topics) != 1 || len(values) != 8 {
		return model.LiquidityEventData{}, fmt.Errorf("unexpected layout: %d topics, %d values", len(topics), len(values))
	}
	lower, err := asInt32(values[0])
	if err != nil {
		return model.LiquidityEventData{}, err
	}
	upper, err := asInt32(values[1])
	if err != nil {
		return model.LiquidityEventData{}, err
	}
	strs, err := bigStrings(values[2:])
	if err != nil {
		return model.LiquidityEventData{}, err
	}
	return model.LiquidityEventData{
		Owner:     common.BytesToAddress(topics[0].Bytes()).Hex(),
		TickLower: lower,
		TickUpper: upper,
		Liquidity: strs[0],
		AmountA:   strs[1],
		AmountB:   strs[2],
		Shares:    strs[3],
		ReserveA:  strs[4],
		ReserveB:  strs[5],
	}, nil
}

func decodeEngineSwap(topics []common.Hash, values []interface{}) (model.EngineSwapData, error) {
	if len(topics) != 1 || len(values) != 9 {
		return model.EngineSwapData{}, fmt.Errorf("unexpected layout: %d topics, %d values", len(topics), len(values))
	}
	aToB, ok := values[0].(bool)
	if !ok {
		return model.EngineSwapData{}, fmt.Errorf("direction type %T", values[0])
	}
	tick, err := asInt32(values[4])
	if err != nil {
		return model.EngineSwapData{}, err
	}
	crossed, ok := values[6].(uint32)
	if !ok {
		return model.EngineSwapData{}, fmt.Errorf("ticks crossed type %T", values[6])
	}
	strs, err := bigStrings([]interface{}{values[1], values[2], values[3], values[5], values[7], values[8]})
	if err != nil {
		return model.EngineSwapData{}, err
	}
	return model.EngineSwapData{
		Trader:       common.BytesToAddress(topics[0].Bytes()).Hex(),
		AToB:         aToB,
		AmountIn:     strs[0],
		AmountOut:    strs[1],
		SqrtPrice:    strs[2],
		Tick:         tick,
		Liquidity:    strs[3],
		TicksCrossed: crossed,
		ReserveA:     strs[4],
		ReserveB:     strs[5],
	}, nil
}

func bigStrings(values []interface{}) ([]string, error) {
	out := make([]string, len(values))
	for i, v := range values {
		n, err := asBigInt(v)
		if err != nil {
			return nil, err
		}
		out[i] = n.String()
	}
	return out, nil
}

func asInt32(value interface{}) (int32, error) {
	switch v := value.(type) {
	case int32:
		return v, nil
	default:
		n, err := asBigInt(value)
		if err != nil {
			return 0, err
		}
		if !n.IsInt64() || n.Int64() < -1<<31 || n.Int64() > 1<<31-1 {
			return 0, fmt.Errorf("int32 overflow: %s", n)
		}
		return int32(n.Int64()), nil
	}
}
