package indexer

import (
	"context"
	"errors"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"liquidityEngine/internal/clmm"
	"liquidityEngine/internal/dex"
	"liquidityEngine/internal/model"
)

var (
	chainPool = common.HexToAddress("0x7777777777777777777777777777777777777777")
	token0    = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	token1    = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	owner     = common.HexToAddress("0x0000000000000000000000000000000000000001")
)

type fakeChain struct {
	t         *testing.T
	logs      []types.Log
	liquidity *big.Int
	failures  int
	fetched   []BlockRange
}

func (f *fakeChain) GetChainID(context.Context) (*big.Int, error) {
	return big.NewInt(56), nil
}

func (f *fakeChain) LatestBlockNumber(context.Context) (uint64, error) {
	return 100, nil
}

func (f *fakeChain) BlockTimestamp(_ context.Context, number uint64) (uint64, error) {
	return 1700000000 + number*3, nil
}

func (f *fakeChain) FilterLogs(_ context.Context, from, to uint64, addresses []common.Address, topics []common.Hash) ([]types.Log, error) {
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("rate limited")
	}
	require.Equal(f.t, []common.Address{chainPool}, addresses)
	require.Len(f.t, topics, 2)
	f.fetched = append(f.fetched, BlockRange{From: from, To: to})
	var out []types.Log
	for _, l := range f.logs {
		if l.BlockNumber >= from && l.BlockNumber <= to {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeChain) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	poolABI, err := dex.V3PoolABI()
	require.NoError(f.t, err)
	method, err := poolABI.MethodById(msg.Data[:4])
	require.NoError(f.t, err)

	var values []interface{}
	switch method.Name {
	case "token0":
		values = []interface{}{token0}
	case "token1":
		values = []interface{}{token1}
	case "fee":
		values = []interface{}{big.NewInt(500)}
	case "tickSpacing":
		values = []interface{}{big.NewInt(60)}
	case "liquidity":
		values = []interface{}{f.liquidity}
	case "slot0":
		values = []interface{}{new(big.Int).Lsh(big.NewInt(1), 96), big.NewInt(0), uint16(0), uint16(1), uint16(1), uint8(0), true}
	}
	return method.Outputs.Pack(values...)
}

type captureSink struct {
	pools []*clmm.Pool
}

func (s *captureSink) ImportPool(_ context.Context, p *clmm.Pool) error {
	s.pools = append(s.pools, p)
	return nil
}

type rawSink struct {
	logs []model.LogRecord
}

func (s *rawSink) PutLogBatch(logs []model.LogRecord) error {
	s.logs = append(s.logs, logs...)
	return nil
}

func int24Topic(v int32) common.Hash {
	n := big.NewInt(int64(v))
	if v < 0 {
		n.Add(n, new(big.Int).Lsh(big.NewInt(1), 256))
	}
	return common.BigToHash(n)
}

func liquidityLog(t *testing.T, event string, block uint64, index uint, lower, upper int32, amount int64) types.Log {
	t.Helper()
	poolABI, err := dex.V3PoolABI()
	require.NoError(t, err)
	var data []byte
	if event == "Mint" {
		data, err = poolABI.Events[event].Inputs.NonIndexed().Pack(owner, big.NewInt(amount), big.NewInt(1), big.NewInt(1))
	} else {
		data, err = poolABI.Events[event].Inputs.NonIndexed().Pack(big.NewInt(amount), big.NewInt(1), big.NewInt(1))
	}
	require.NoError(t, err)
	return types.Log{
		Address:     chainPool,
		Topics:      []common.Hash{poolABI.Events[event].ID, common.BytesToHash(owner.Bytes()), int24Topic(lower), int24Topic(upper)},
		Data:        data,
		BlockNumber: block,
		TxHash:      common.BigToHash(new(big.Int).SetUint64(block)),
		Index:       index,
	}
}

func newFakeChain(t *testing.T) *fakeChain {
	return &fakeChain{
		t: t,
		logs: []types.Log{
			liquidityLog(t, "Mint", 5, 0, -120, 120, 1000),
			liquidityLog(t, "Mint", 12, 0, 60, 180, 500),
			liquidityLog(t, "Burn", 30, 1, -120, 120, 400),
			liquidityLog(t, "Mint", 40, 0, -887220, 887220, 50),
		},
		liquidity: big.NewInt(650),
	}
}

func TestRunnerReplaysLiquidity(t *testing.T) {
	chain := newFakeChain(t)
	chain.failures = 1
	sink := &captureSink{}
	raw := &rawSink{}

	r := NewRunner(RunConfig{Pool: chainPool, FromBlock: 1, ToBlock: 50, BatchSize: 20, MaxRetries: 2, RetryBackoff: 1}, chain, sink, raw, nil)
	pool, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, sink.pools, 1)
	require.Len(t, raw.logs, 4)

	require.Equal(t, clmm.DerivePoolAddresses(token0, token1).Pool, pool.Address)
	require.Equal(t, uint16(60), pool.TickSpacing)
	require.Equal(t, int32(0), pool.CurrentTick)
	require.Equal(t, "650", pool.ActiveLiquidity.Dec())

	nets := map[int32]string{}
	for _, tick := range pool.Ticks.Ticks() {
		nets[tick.Index] = tick.LiquidityNet.String()
	}
	require.Equal(t, map[int32]string{
		-443580: "50",
		-120:    "600",
		60:      "500",
		120:     "-600",
		180:     "-500",
		443580:  "-50",
	}, nets)
	require.NoError(t, pool.Validate())
}

func TestRunnerResumesFromCheckpoint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mirror.json")
	cfg := RunConfig{Pool: chainPool, FromBlock: 1, ToBlock: 20, BatchSize: 10, CheckpointPath: path, CheckpointEnabled: true}

	first := newFakeChain(t)
	_, err := NewRunner(cfg, first, &captureSink{}, nil, nil).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []BlockRange{{From: 1, To: 10}, {From: 11, To: 20}}, first.fetched)

	cp, ok, err := NewCheckpointStore(path, true).Load()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(20), cp.LastProcessedBlock)
	require.Equal(t, "1000", cp.Nets[-120])

	cfg.ToBlock = 0
	second := newFakeChain(t)
	sink := &captureSink{}
	pool, err := NewRunner(cfg, second, sink, nil, nil).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, BlockRange{From: 21, To: 30}, second.fetched[0])
	require.Equal(t, "650", pool.ActiveLiquidity.Dec())

	other := cfg
	other.Pool = common.HexToAddress("0x8888888888888888888888888888888888888888")
	_, err = NewRunner(other, newFakeChain(t), sink, nil, nil).Run(context.Background())
	require.Error(t, err)
}

func TestRunnerRequiresCreationBlock(t *testing.T) {
	chain := newFakeChain(t)
	_, err := NewRunner(RunConfig{Pool: chainPool, FromBlock: 20, ToBlock: 35, BatchSize: 100}, chain, &captureSink{}, nil, nil).Run(context.Background())
	require.ErrorIs(t, err, clmm.ErrArithmeticOverflow)
}

func TestClampTick(t *testing.T) {
	require.Equal(t, int32(-443580), clampTick(-887220, 60))
	require.Equal(t, int32(443580), clampTick(887220, 60))
	require.Equal(t, int32(-443636), clampTick(-443636, 1))
	require.Equal(t, int32(120), clampTick(120, 60))
}
