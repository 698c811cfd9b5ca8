package indexer

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"liquidityEngine/internal/clmm"
	"liquidityEngine/internal/dex"
	"liquidityEngine/internal/model"
	"liquidityEngine/internal/storage"
)

// LogSource is the chain access the mirror needs. *chain.Client satisfies it.
type LogSource interface {
	dex.Caller
	GetChainID(ctx context.Context) (*big.Int, error)
	LatestBlockNumber(ctx context.Context) (uint64, error)
	BlockTimestamp(ctx context.Context, number uint64) (uint64, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error)
}

// PoolSink receives the mirrored pool. *engine.Engine satisfies it.
type PoolSink interface {
	ImportPool(ctx context.Context, p *clmm.Pool) error
}

// RunConfig holds runtime settings for the mirror.
type RunConfig struct {
	Pool              common.Address
	FromBlock         uint64
	ToBlock           uint64
	BatchSize         uint64
	CheckpointPath    string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration
}

// Runner replays the Mint and Burn logs of one chain pool into a tick
// registry and hands the resulting pool to a PoolSink.
type Runner struct {
	cfg        RunConfig
	chain      LogSource
	sink       PoolSink
	raw        storage.Storage
	logger     *zap.Logger
	seen       map[string]struct{}
	checkpoint *CheckpointStore
}

// NewRunner builds a Runner. raw is optional and receives every fetched log.
func NewRunner(cfg RunConfig, chainClient LogSource, sink PoolSink, raw storage.Storage, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:        cfg,
		chain:      chainClient,
		sink:       sink,
		raw:        raw,
		logger:     logger,
		seen:       make(map[string]struct{}),
		checkpoint: NewCheckpointStore(cfg.CheckpointPath, cfg.CheckpointEnabled),
	}
}

// Run syncs the pool up to ToBlock (latest when zero) and imports it.
func (r *Runner) Run(ctx context.Context) (*clmm.Pool, error) {
	if r.chain == nil {
		return nil, fmt.Errorf("chain client is nil")
	}
	if r.sink == nil {
		return nil, fmt.Errorf("pool sink is nil")
	}
	if r.cfg.BatchSize == 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}
	if r.cfg.Pool == (common.Address{}) {
		return nil, fmt.Errorf("pool address is required")
	}

	chainID, err := withRetry(ctx, r, "chain id", r.chain.GetChainID)
	if err != nil {
		return nil, fmt.Errorf("get chain id: %w", err)
	}
	if !chainID.IsUint64() {
		return nil, fmt.Errorf("chain id does not fit in uint64: %s", chainID)
	}

	meta, err := withRetry(ctx, r, "pool meta", func(ctx context.Context) (model.PoolMeta, error) {
		return dex.FetchPoolMeta(ctx, r.chain, r.cfg.Pool)
	})
	if err != nil {
		return nil, fmt.Errorf("pool metadata: %w", err)
	}
	if meta.TickSpacing <= 0 || meta.TickSpacing > 1<<16-1 {
		return nil, fmt.Errorf("pool %s: unsupported tick spacing %d", r.cfg.Pool.Hex(), meta.TickSpacing)
	}

	replay, err := newReplay(r.cfg.Pool, meta)
	if err != nil {
		return nil, err
	}

	to := r.cfg.ToBlock
	if to == 0 {
		to, err = withRetry(ctx, r, "latest block", r.chain.LatestBlockNumber)
		if err != nil {
			return nil, fmt.Errorf("get latest block: %w", err)
		}
	}

	from, err := r.resume(replay)
	if err != nil {
		return nil, err
	}

	if from <= to {
		if err := r.sync(ctx, chainID.Uint64(), replay, from, to); err != nil {
			return nil, err
		}
	} else {
		r.logger.Info("nothing to sync", zap.Uint64("from", from), zap.Uint64("to", to))
	}

	state, err := withRetry(ctx, r, "pool state", func(ctx context.Context) (dex.V3PoolState, error) {
		return dex.FetchPoolState(ctx, r.chain, r.cfg.Pool, to)
	})
	if err != nil {
		return nil, fmt.Errorf("pool state: %w", err)
	}

	pool, err := replay.build(state)
	if err != nil {
		return nil, err
	}
	if pool.ActiveLiquidity.ToBig().Cmp(state.Liquidity) != 0 {
		r.logger.Warn("replayed liquidity differs from chain",
			zap.String("replayed", pool.ActiveLiquidity.Dec()),
			zap.String("chain", state.Liquidity.String()),
			zap.Int32("chain_tick", state.Tick),
			zap.Int32("tick", pool.CurrentTick),
		)
	}
	if err := r.sink.ImportPool(ctx, pool); err != nil {
		return nil, fmt.Errorf("import pool: %w", err)
	}

	r.logger.Info("pool mirrored",
		zap.String("chain_pool", r.cfg.Pool.Hex()),
		zap.String("pool", pool.Address.Hex()),
		zap.Int("ticks", pool.Ticks.Len()),
		zap.Int32("tick", pool.CurrentTick),
		zap.String("liquidity", pool.ActiveLiquidity.Dec()),
	)
	return pool, nil
}

func (r *Runner) resume(replay *replay) (uint64, error) {
	from := r.cfg.FromBlock
	cp, ok, err := r.checkpoint.Load()
	if err != nil {
		return 0, err
	}
	if !ok {
		return from, nil
	}
	if cp.Pool != r.cfg.Pool.Hex() {
		return 0, fmt.Errorf("checkpoint belongs to pool %s", cp.Pool)
	}
	if cp.LastProcessedBlock < from {
		return from, nil
	}
	if err := replay.restore(cp.Nets); err != nil {
		return 0, fmt.Errorf("restore checkpoint: %w", err)
	}
	r.logger.Info("resume from checkpoint", zap.Uint64("last_processed", cp.LastProcessedBlock), zap.Int("ticks", len(cp.Nets)))
	return cp.LastProcessedBlock + 1, nil
}

func (r *Runner) sync(ctx context.Context, chainID uint64, replay *replay, from, to uint64) error {
	ranges, err := SplitRange(from, to, r.cfg.BatchSize)
	if err != nil {
		return err
	}
	poolABI, err := dex.V3PoolABI()
	if err != nil {
		return err
	}
	topics := []common.Hash{poolABI.Events["Mint"].ID, poolABI.Events["Burn"].ID}
	addresses := []common.Address{r.cfg.Pool}

	for _, blockRange := range ranges {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		r.logger.Info("fetch logs", zap.Stringer("range", blockRange))
		logs, err := withRetry(ctx, r, "filter logs", func(ctx context.Context) ([]types.Log, error) {
			return r.chain.FilterLogs(ctx, blockRange.From, blockRange.To, addresses, topics)
		})
		if err != nil {
			return fmt.Errorf("filter logs: %w", err)
		}

		records, err := r.toRecords(ctx, chainID, logs)
		if err != nil {
			return err
		}
		for _, rec := range records {
			if err := replay.apply(rec); err != nil {
				return fmt.Errorf("replay %s:%d: %w", rec.TxHash, rec.LogIndex, err)
			}
		}

		if r.raw != nil {
			if err := r.raw.PutLogBatch(records); err != nil {
				return fmt.Errorf("store logs: %w", err)
			}
		}
		if err := r.checkpoint.Save(Checkpoint{Pool: r.cfg.Pool.Hex(), LastProcessedBlock: blockRange.To, Nets: replay.snapshot()}); err != nil {
			return err
		}
		r.logger.Info("batch complete", zap.Int("logs", len(records)), zap.Stringer("range", blockRange))
	}
	return nil
}

// withRetry runs fn until it succeeds or the retry budget is spent, doubling
// the delay after each failure.
func withRetry[T any](ctx context.Context, r *Runner, op string, fn func(context.Context) (T, error)) (T, error) {
	maxRetries := r.cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	delay := r.cfg.RetryBackoff
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}

	for attempt := 0; ; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if attempt >= maxRetries {
			return v, err
		}
		r.logger.Warn("rpc call failed", zap.String("op", op), zap.Int("attempt", attempt+1), zap.Error(err))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			var zero T
			return zero, ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}
}

// replay accumulates net liquidity per tick from decoded Mint and Burn logs.
type replay struct {
	chainPool common.Address
	meta      model.PoolMeta
	spacing   uint16
	decoder   *dex.V3PoolDecoder
	ctx       dex.DecodeContext
	nets      map[int32]*big.Int
}

func newReplay(chainPool common.Address, meta model.PoolMeta) (*replay, error) {
	decoder, err := dex.NewV3PoolDecoder(dex.DecoderConfig{})
	if err != nil {
		return nil, err
	}
	cache := dex.NewPoolMetaCache()
	cache.Set(chainPool, meta)
	return &replay{
		chainPool: chainPool,
		meta:      meta,
		spacing:   uint16(meta.TickSpacing),
		decoder:   decoder,
		ctx:       dex.DecodeContext{PoolMetaCache: cache},
		nets:      make(map[int32]*big.Int),
	}, nil
}

func (rp *replay) apply(rec model.LogRecord) error {
	ev, err := rp.decoder.Decode(rec, rp.ctx)
	if err != nil {
		return err
	}
	var lower, upper int32
	var amount string
	sign := 1
	switch data := ev.Decoded.(type) {
	case model.MintEventData:
		lower, upper, amount = data.TickLower, data.TickUpper, data.Amount
	case model.BurnEventData:
		lower, upper, amount = data.TickLower, data.TickUpper, data.Amount
		sign = -1
	default:
		return fmt.Errorf("unexpected %s event", ev.EventName)
	}

	delta, ok := new(big.Int).SetString(amount, 10)
	if !ok {
		return fmt.Errorf("invalid liquidity amount %q", amount)
	}
	if sign < 0 {
		delta.Neg(delta)
	}
	rp.add(clampTick(lower, rp.spacing), delta)
	rp.add(clampTick(upper, rp.spacing), new(big.Int).Neg(delta))
	return nil
}

func (rp *replay) add(tick int32, delta *big.Int) {
	net, ok := rp.nets[tick]
	if !ok {
		net = new(big.Int)
		rp.nets[tick] = net
	}
	net.Add(net, delta)
}

func (rp *replay) snapshot() map[int32]string {
	out := make(map[int32]string, len(rp.nets))
	for tick, net := range rp.nets {
		out[tick] = net.String()
	}
	return out
}

func (rp *replay) restore(nets map[int32]string) error {
	for tick, s := range nets {
		net, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return fmt.Errorf("tick %d: invalid net %q", tick, s)
		}
		rp.nets[tick] = net
	}
	return nil
}

// build prices the pool from the chain's slot0 and installs the replayed ticks.
func (rp *replay) build(state dex.V3PoolState) (*clmm.Pool, error) {
	if !common.IsHexAddress(rp.meta.MintA) || !common.IsHexAddress(rp.meta.MintB) {
		return nil, fmt.Errorf("pool %s: invalid token addresses", rp.chainPool.Hex())
	}
	price, overflow := uint256.FromBig(dex.SqrtPriceX96ToQ64(state.SqrtPriceX96))
	if overflow {
		return nil, clmm.ErrArithmeticOverflow.Wrap("chain price")
	}
	pool, err := clmm.NewPool(common.HexToAddress(rp.meta.MintA), common.HexToAddress(rp.meta.MintB), price, rp.spacing)
	if err != nil {
		return nil, err
	}

	for index, net := range rp.nets {
		if net.Sign() == 0 {
			continue
		}
		tick, err := pool.Ticks.Touch(index)
		if err != nil {
			return nil, err
		}
		tick.LiquidityNet = new(big.Int).Set(net)
	}
	pool.ActiveLiquidity, err = pool.Ticks.ActiveLiquidityAt(pool.CurrentTick)
	if err != nil {
		return nil, fmt.Errorf("replayed ticks are incomplete, sync from the pool's creation block: %w", err)
	}
	if err := pool.Validate(); err != nil {
		return nil, err
	}
	return pool, nil
}

// clampTick moves a chain tick outside the engine's codec range onto the
// nearest aligned tick inside it.
func clampTick(tick int32, spacing uint16) int32 {
	s := int32(spacing)
	switch {
	case tick < clmm.MinTick:
		return clmm.MinTick - clmm.MinTick%s
	case tick > clmm.MaxTick:
		return clmm.MaxTick - clmm.MaxTick%s
	default:
		return tick
	}
}
