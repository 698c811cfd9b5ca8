package dex

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"liquidityEngine/internal/model"
)

var (
	enginePool  = common.HexToAddress("0x4444444444444444444444444444444444444444")
	engineMintA = common.HexToAddress("0x000000000000000000000000000000000000000a")
	engineMintB = common.HexToAddress("0x000000000000000000000000000000000000000b")
	engineUser  = common.HexToAddress("0x5555555555555555555555555555555555555555")
)

func newEngineCodec(t *testing.T) (*EventEncoder, *EngineDecoder) {
	t.Helper()
	enc, err := NewEventEncoder(31337)
	require.NoError(t, err)
	dec, err := NewEngineDecoder()
	require.NoError(t, err)
	return enc, dec
}

func TestEngineEventsRoundTrip(t *testing.T) {
	enc, dec := newEngineCodec(t)
	cache := NewPoolMetaCache()
	ctx := DecodeContext{PoolMetaCache: cache, Logger: zap.NewNop()}
	ts := time.Unix(1700000000, 0)
	price, _ := new(big.Int).SetString("18446744073709551616", 10)

	rec, err := enc.PoolInitialized(EventMeta{Pool: enginePool, Sequence: 1, Timestamp: ts}, engineMintA, engineMintB, 10, price, 0)
	require.NoError(t, err)
	require.Equal(t, uint64(1), rec.BlockNumber)
	require.Equal(t, uint64(1700000000), rec.Timestamp)

	ev, err := dec.Decode(rec, ctx)
	require.NoError(t, err)
	require.Equal(t, model.SourceEngine, ev.Source)
	require.Equal(t, model.PoolInitializedData{
		MintA:       engineMintA.Hex(),
		MintB:       engineMintB.Hex(),
		TickSpacing: 10,
		SqrtPrice:   price.String(),
		Tick:        0,
	}, ev.Decoded)

	meta, ok := cache.Get(enginePool)
	require.True(t, ok)
	require.Equal(t, int32(10), meta.TickSpacing)

	change := LiquidityChange{
		Owner:     engineUser,
		TickLower: -100,
		TickUpper: 100,
		Liquidity: big.NewInt(200500),
		AmountA:   1000,
		AmountB:   1000,
		Shares:    1000,
		ReserveA:  1000,
		ReserveB:  1000,
	}
	for _, name := range []string{model.EventLiquidityAdded, model.EventLiquidityWithdrawn} {
		var rec model.LogRecord
		if name == model.EventLiquidityAdded {
			rec, err = enc.LiquidityAdded(EventMeta{Pool: enginePool, Sequence: 2, Timestamp: ts}, change)
		} else {
			rec, err = enc.LiquidityWithdrawn(EventMeta{Pool: enginePool, Sequence: 3, Timestamp: ts}, change)
		}
		require.NoError(t, err)

		ev, err := dec.Decode(rec, ctx)
		require.NoError(t, err, name)
		require.Equal(t, name, ev.EventName)
		require.Equal(t, engineMintA.Hex(), ev.PoolMeta.MintA)
		require.Equal(t, model.LiquidityEventData{
			Owner:     engineUser.Hex(),
			TickLower: -100,
			TickUpper: 100,
			Liquidity: "200500",
			AmountA:   "1000",
			AmountB:   "1000",
			Shares:    "1000",
			ReserveA:  "1000",
			ReserveB:  "1000",
		}, ev.Decoded)
	}

	rec, err = enc.Swap(EventMeta{Pool: enginePool, Sequence: 4, Timestamp: ts}, SwapExecuted{
		Trader:       engineUser,
		AToB:         true,
		AmountIn:     100,
		AmountOut:    99,
		SqrtPrice:    big.NewInt(123456789),
		Tick:         -9,
		Liquidity:    big.NewInt(200500),
		TicksCrossed: 2,
		ReserveA:     1100,
		ReserveB:     901,
	})
	require.NoError(t, err)
	ev, err = dec.Decode(rec, ctx)
	require.NoError(t, err)
	require.Equal(t, model.EngineSwapData{
		Trader:       engineUser.Hex(),
		AToB:         true,
		AmountIn:     "100",
		AmountOut:    "99",
		SqrtPrice:    "123456789",
		Tick:         -9,
		Liquidity:    "200500",
		TicksCrossed: 2,
		ReserveA:     "1100",
		ReserveB:     "901",
	}, ev.Decoded)
}

func TestEventTxHashIsUniquePerSequence(t *testing.T) {
	enc, _ := newEngineCodec(t)
	price := big.NewInt(1 << 62)
	a, err := enc.PoolInitialized(EventMeta{Pool: enginePool, Sequence: 7}, engineMintA, engineMintB, 1, price, 0)
	require.NoError(t, err)
	b, err := enc.PoolInitialized(EventMeta{Pool: enginePool, Sequence: 8}, engineMintA, engineMintB, 1, price, 0)
	require.NoError(t, err)
	require.NotEqual(t, a.TxHash, b.TxHash)
	require.Equal(t, a.Topic0(), b.Topic0())
}

func TestDecoderSetDispatch(t *testing.T) {
	enc, engineDec := newEngineCodec(t)
	v3Dec, err := NewV3PoolDecoder(DecoderConfig{})
	require.NoError(t, err)
	set := DecoderSet{engineDec, v3Dec}

	// Both ABIs declare a Swap event; the signatures differ.
	engineABI, err := EngineABI()
	require.NoError(t, err)
	poolABI, err := V3PoolABI()
	require.NoError(t, err)
	require.NotEqual(t, engineABI.Events["Swap"].ID, poolABI.Events["Swap"].ID)

	require.True(t, set.CanDecode(engineABI.Events["Swap"].ID.Hex()))
	require.True(t, set.CanDecode(poolABI.Events["Mint"].ID.Hex()))
	require.False(t, set.CanDecode(common.Hash{}.Hex()))

	rec, err := enc.Swap(EventMeta{Pool: enginePool, Sequence: 1}, SwapExecuted{
		Trader:    engineUser,
		SqrtPrice: big.NewInt(1),
		Liquidity: big.NewInt(0),
	})
	require.NoError(t, err)
	ev, err := set.Decode(rec, DecodeContext{})
	require.NoError(t, err)
	require.Equal(t, model.SourceEngine, ev.Source)

	rec.Topics[0] = common.Hash{}.Hex()
	_, err = set.Decode(rec, DecodeContext{})
	require.Error(t, err)
}

type fakeCaller struct {
	outputs map[string][]byte
	calls   int
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.calls++
	poolABI, err := V3PoolABI()
	if err != nil {
		return nil, err
	}
	method, err := poolABI.MethodById(msg.Data[:4])
	if err != nil {
		return nil, err
	}
	return f.outputs[method.Name], nil
}

func newFakeCaller(t *testing.T) *fakeCaller {
	t.Helper()
	poolABI, err := V3PoolABI()
	require.NoError(t, err)
	pack := func(method string, values ...interface{}) []byte {
		out, err := poolABI.Methods[method].Outputs.Pack(values...)
		require.NoError(t, err)
		return out
	}
	sqrtX96 := new(big.Int).Lsh(big.NewInt(1), 96)
	return &fakeCaller{outputs: map[string][]byte{
		"token0":      pack("token0", engineMintA),
		"token1":      pack("token1", engineMintB),
		"fee":         pack("fee", big.NewInt(3000)),
		"tickSpacing": pack("tickSpacing", big.NewInt(60)),
		"liquidity":   pack("liquidity", big.NewInt(777)),
		"slot0":       pack("slot0", sqrtX96, big.NewInt(-5), uint16(0), uint16(1), uint16(1), uint8(0), true),
	}}
}

func TestFetchPoolMeta(t *testing.T) {
	caller := newFakeCaller(t)
	meta, err := FetchPoolMeta(context.Background(), caller, enginePool)
	require.NoError(t, err)
	require.Equal(t, model.PoolMeta{
		MintA:       engineMintA.Hex(),
		MintB:       engineMintB.Hex(),
		TickSpacing: 60,
		Fee:         3000,
	}, meta)

	state, err := FetchPoolState(context.Background(), caller, enginePool, 0)
	require.NoError(t, err)
	require.Equal(t, int32(-5), state.Tick)
	require.Equal(t, "777", state.Liquidity.String())
	require.Equal(t, new(big.Int).Lsh(big.NewInt(1), 64), SqrtPriceX96ToQ64(state.SqrtPriceX96))
}

func TestV3DecoderFetchesMetaOnce(t *testing.T) {
	caller := newFakeCaller(t)
	dec, err := NewV3PoolDecoder(DecoderConfig{})
	require.NoError(t, err)
	poolABI, err := V3PoolABI()
	require.NoError(t, err)

	data, err := poolABI.Events["Burn"].Inputs.NonIndexed().Pack(big.NewInt(1), big.NewInt(2), big.NewInt(3))
	require.NoError(t, err)
	rec := buildLogRecord(enginePool, poolABI.Events["Burn"].ID, data, []common.Hash{
		topicFromAddress(engineUser), topicFromInt24(-60), topicFromInt24(60),
	})

	ctx := DecodeContext{Context: context.Background(), Chain: caller, PoolMetaCache: NewPoolMetaCache()}
	_, err = dec.Decode(rec, ctx)
	require.NoError(t, err)
	calls := caller.calls
	ev, err := dec.Decode(rec, ctx)
	require.NoError(t, err)
	require.Equal(t, calls, caller.calls)
	require.Equal(t, uint32(3000), ev.PoolMeta.Fee)
	require.Nil(t, ev.PoolMeta.State)

	ctx.IncludeLiveMeta = true
	ev, err = dec.Decode(rec, ctx)
	require.NoError(t, err)
	require.NotNil(t, ev.PoolMeta.State)
	require.Equal(t, int32(-5), ev.PoolMeta.State.Tick)
	require.Equal(t, "777", ev.PoolMeta.Liquidity)
}
