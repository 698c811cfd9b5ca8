package dex

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"

	"liquidityEngine/internal/model"
)

// DecoderConfig configures decoder behavior.
type DecoderConfig struct {
	Topic0Map map[string]string
}

// V3PoolDecoder decodes Uniswap-V3 style pool events from a mirrored chain pool.
type V3PoolDecoder struct {
	poolABI     abi.ABI
	topicToName map[string]string
}

// NewV3PoolDecoder builds a V3 pool decoder.
func NewV3PoolDecoder(cfg DecoderConfig) (*V3PoolDecoder, error) {
	poolABI, err := V3PoolABI()
	if err != nil {
		return nil, err
	}

	topicToName := map[string]string{
		strings.ToLower(poolABI.Events["Swap"].ID.Hex()): model.EventSwap,
		strings.ToLower(poolABI.Events["Mint"].ID.Hex()): model.EventMint,
		strings.ToLower(poolABI.Events["Burn"].ID.Hex()): model.EventBurn,
	}

	for topic0, name := range cfg.Topic0Map {
		original := name
		name = normalizeEventName(name)
		if name == "" {
			return nil, fmt.Errorf("unsupported event name in topic0 map: %s", original)
		}
		if topic0 == "" {
			continue
		}
		topicToName[strings.ToLower(topic0)] = name
	}

	return &V3PoolDecoder{
		poolABI:     poolABI,
		topicToName: topicToName,
	}, nil
}

// CanDecode checks if the topic0 is supported.
func (d *V3PoolDecoder) CanDecode(topic0 string) bool {
	if topic0 == "" {
		return false
	}
	_, ok := d.topicToName[strings.ToLower(topic0)]
	return ok
}

// Decode converts a LogRecord into a TypedEvent.
func (d *V3PoolDecoder) Decode(log model.LogRecord, ctx DecodeContext) (*model.TypedEvent, error) {
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("missing topics")
	}
	name, ok := d.topicToName[strings.ToLower(log.Topic0())]
	if !ok {
		return nil, fmt.Errorf("unsupported topic0: %s", log.Topic0())
	}

	if !common.IsHexAddress(log.Address) {
		return nil, fmt.Errorf("invalid pool address: %s", log.Address)
	}
	pool := common.HexToAddress(log.Address)

	poolMeta, err := getPoolMeta(ctx, pool, log.BlockNumber)
	if err != nil {
		return nil, err
	}

	var decoded interface{}
	switch name {
	case model.EventSwap:
		decoded, err = d.decodeSwap(log)
	case model.EventMint:
		decoded, err = d.decodeMint(log)
	case model.EventBurn:
		decoded, err = d.decodeBurn(log)
	default:
		err = fmt.Errorf("unsupported event name: %s", name)
	}
	if err != nil {
		return nil, err
	}
	return buildTypedEvent(log, model.SourceV3, name, decoded, poolMeta), nil
}

func normalizeEventName(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "swap":
		return model.EventSwap
	case "mint":
		return model.EventMint
	case "burn":
		return model.EventBurn
	default:
		return ""
	}
}

func getPoolMeta(ctx DecodeContext, pool common.Address, blockNumber uint64) (model.PoolMeta, error) {
	var meta model.PoolMeta
	var ok bool
	if ctx.PoolMetaCache != nil {
		meta, ok = ctx.PoolMetaCache.Get(pool)
	}
	if ok && !ctx.IncludeLiveMeta {
		return meta, nil
	}
	if ctx.Chain == nil {
		if ok {
			return meta, nil
		}
		return model.PoolMeta{}, fmt.Errorf("no metadata for pool %s and no chain client", pool.Hex())
	}

	callCtx := ctx.Context
	if callCtx == nil {
		callCtx = context.Background()
	}

	if !ok {
		var err error
		meta, err = FetchPoolMeta(callCtx, ctx.Chain, pool)
		if err != nil {
			return model.PoolMeta{}, err
		}
		if ctx.PoolMetaCache != nil {
			ctx.PoolMetaCache.Set(pool, meta)
		}
	}

	if ctx.IncludeLiveMeta {
		state, err := FetchPoolState(callCtx, ctx.Chain, pool, blockNumber)
		if err != nil {
			if ctx.Logger != nil {
				ctx.Logger.Debug("live pool state unavailable", zap.String("pool", pool.Hex()), zap.Error(err))
			}
			return meta, nil
		}
		meta.Liquidity = state.Liquidity.String()
		meta.State = &model.PoolState{
			SqrtPrice: SqrtPriceX96ToQ64(state.SqrtPriceX96).String(),
			Tick:      state.Tick,
		}
	}
	return meta, nil
}

// Field names follow the event arguments so abi can fill them by name.
type (
	v3Swap struct {
		Sender       common.Address
		Recipient    common.Address
		Amount0      *big.Int
		Amount1      *big.Int
		SqrtPriceX96 *big.Int
		Liquidity    *big.Int
		Tick         *big.Int
	}
	v3Mint struct {
		Sender    common.Address
		Owner     common.Address
		TickLower *big.Int
		TickUpper *big.Int
		Amount    *big.Int
		Amount0   *big.Int
		Amount1   *big.Int
	}
	v3Burn struct {
		Owner     common.Address
		TickLower *big.Int
		TickUpper *big.Int
		Amount    *big.Int
		Amount0   *big.Int
		Amount1   *big.Int
	}
)

// unpack fills out from both the indexed topics and the data of log.
func (d *V3PoolDecoder) unpack(name string, log model.LogRecord, out interface{}) error {
	event := d.poolABI.Events[name]
	topics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return err
	}
	if err := abi.ParseTopics(out, indexedArguments(event.Inputs), topics); err != nil {
		return fmt.Errorf("parse topics: %w", err)
	}
	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return err
	}
	if err := event.Inputs.NonIndexed().Copy(out, values); err != nil {
		return fmt.Errorf("copy %s values: %w", name, err)
	}
	return nil
}

func (d *V3PoolDecoder) decodeSwap(log model.LogRecord) (model.SwapEventData, error) {
	var ev v3Swap
	if err := d.unpack("Swap", log, &ev); err != nil {
		return model.SwapEventData{}, err
	}
	tick, err := int24FromBig(ev.Tick)
	if err != nil {
		return model.SwapEventData{}, err
	}
	return model.SwapEventData{
		Sender:       ev.Sender.Hex(),
		Recipient:    ev.Recipient.Hex(),
		Amount0:      ev.Amount0.String(),
		Amount1:      ev.Amount1.String(),
		SqrtPriceX96: ev.SqrtPriceX96.String(),
		Liquidity:    ev.Liquidity.String(),
		Tick:         tick,
	}, nil
}

func (d *V3PoolDecoder) decodeMint(log model.LogRecord) (model.MintEventData, error) {
	var ev v3Mint
	if err := d.unpack("Mint", log, &ev); err != nil {
		return model.MintEventData{}, err
	}
	lower, upper, err := tickRange(ev.TickLower, ev.TickUpper)
	if err != nil {
		return model.MintEventData{}, err
	}
	return model.MintEventData{
		Sender:    ev.Sender.Hex(),
		Owner:     ev.Owner.Hex(),
		TickLower: lower,
		TickUpper: upper,
		Amount:    ev.Amount.String(),
		Amount0:   ev.Amount0.String(),
		Amount1:   ev.Amount1.String(),
	}, nil
}

func (d *V3PoolDecoder) decodeBurn(log model.LogRecord) (model.BurnEventData, error) {
	var ev v3Burn
	if err := d.unpack("Burn", log, &ev); err != nil {
		return model.BurnEventData{}, err
	}
	lower, upper, err := tickRange(ev.TickLower, ev.TickUpper)
	if err != nil {
		return model.BurnEventData{}, err
	}
	return model.BurnEventData{
		Owner:     ev.Owner.Hex(),
		TickLower: lower,
		TickUpper: upper,
		Amount:    ev.Amount.String(),
		Amount0:   ev.Amount0.String(),
		Amount1:   ev.Amount1.String(),
	}, nil
}

func tickRange(lower, upper *big.Int) (int32, int32, error) {
	l, err := int24FromBig(lower)
	if err != nil {
		return 0, 0, err
	}
	u, err := int24FromBig(upper)
	if err != nil {
		return 0, 0, err
	}
	return l, u, nil
}

func parseIndexedTopics(event abi.Event, topics []string) ([]common.Hash, error) {
	indexedCount := len(indexedArguments(event.Inputs))
	if len(topics) != indexedCount+1 {
		return nil, fmt.Errorf("expected %d topics, got %d", indexedCount+1, len(topics))
	}
	return parseTopicHashes(topics[1:])
}

func parseTopicHashes(topics []string) ([]common.Hash, error) {
	out := make([]common.Hash, 0, len(topics))
	for _, topic := range topics {
		data, err := hexutil.Decode(topic)
		if err != nil {
			return nil, fmt.Errorf("invalid topic: %w", err)
		}
		if len(data) > 32 {
			return nil, fmt.Errorf("topic length %d", len(data))
		}
		out = append(out, common.BytesToHash(data))
	}
	return out, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func unpackNonIndexed(event abi.Event, dataHex string) ([]interface{}, error) {
	data, err := hexutil.Decode(dataHex)
	if err != nil {
		return nil, fmt.Errorf("invalid data: %w", err)
	}
	values, err := event.Inputs.NonIndexed().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	return values, nil
}
