package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"liquidityEngine/internal/clmm"
	"liquidityEngine/internal/dex"
	"liquidityEngine/internal/ledger"
	"liquidityEngine/internal/model"
	"liquidityEngine/internal/storage"
)

// Config holds engine settings.
type Config struct {
	// ChainID is stamped on emitted event records.
	ChainID uint64
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Engine serializes pool operations and commits each one to its store
// together with the ledger instructions it issues.
type Engine struct {
	cfg     Config
	store   storage.PoolStore
	events  storage.Storage
	encoder *dex.EventEncoder
	metrics *Metrics
	logger  *zap.Logger

	mu    sync.Mutex
	pools map[common.Address]*clmm.Pool
}

// New builds an Engine and loads every pool held by store. events and metrics
// may be nil.
func New(ctx context.Context, cfg Config, store storage.PoolStore, events storage.Storage, metrics *Metrics, logger *zap.Logger) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("pool store is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	encoder, err := dex.NewEventEncoder(cfg.ChainID)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:     cfg,
		store:   store,
		events:  events,
		encoder: encoder,
		metrics: metrics,
		logger:  logger,
		pools:   make(map[common.Address]*clmm.Pool),
	}

	records, err := store.LoadPools(ctx)
	if err != nil {
		return nil, fmt.Errorf("load pools: %w", err)
	}
	for _, r := range records {
		p, err := DecodePool(r)
		if err != nil {
			return nil, err
		}
		e.pools[p.Address] = p
		e.metrics.setPool(p)
	}
	if metrics != nil {
		metrics.PoolsTotal.Set(float64(len(e.pools)))
	}
	logger.Debug("pools loaded", zap.Int("pools", len(e.pools)))
	return e, nil
}

// Pool returns a copy of the pool at address.
func (e *Engine) Pool(address common.Address) (*clmm.Pool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, err := e.pool(address)
	if err != nil {
		return nil, err
	}
	return p.Clone(), nil
}

// Pools returns copies of every pool ordered by address.
func (e *Engine) Pools() []*clmm.Pool {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*clmm.Pool, 0, len(e.pools))
	for _, p := range e.pools {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address.Hex() < out[j].Address.Hex() })
	return out
}

// Reserves reports the vault balances of the pool at address.
func (e *Engine) Reserves(ctx context.Context, address common.Address) (clmm.Reserves, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, err := e.pool(address)
	if err != nil {
		return clmm.Reserves{}, err
	}
	return e.reserves(ctx, p)
}

// Shares reports the liquidity shares owner holds in the pool at address.
func (e *Engine) Shares(ctx context.Context, address, owner common.Address) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, err := e.pool(address)
	if err != nil {
		return 0, err
	}
	return e.store.Balance(ctx, p.LPMint, owner)
}

// ImportPool stores a pool built outside the engine, replacing any pool at
// the same address. The pool's vaults are left as they are.
func (e *Engine) ImportPool(ctx context.Context, p *clmm.Pool) error {
	start := time.Now()
	err := e.importPool(ctx, p)
	e.finish("import", start, err, p.Address)
	return err
}

func (e *Engine) importPool(ctx context.Context, p *clmm.Pool) error {
	if err := p.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	imported := p.Clone()
	if err := e.store.Commit(ctx, EncodePool(imported), nil); err != nil {
		return fmt.Errorf("save pool: %w", err)
	}
	e.pools[imported.Address] = imported
	e.metrics.setPool(imported)
	if e.metrics != nil {
		e.metrics.PoolsTotal.Set(float64(len(e.pools)))
	}
	return nil
}

func (e *Engine) pool(address common.Address) (*clmm.Pool, error) {
	p, ok := e.pools[address]
	if !ok {
		return nil, clmm.ErrPoolNotFound.Wrapf("pool %s", address.Hex())
	}
	return p, nil
}

func (e *Engine) reserves(ctx context.Context, p *clmm.Pool) (clmm.Reserves, error) {
	a, err := e.store.Balance(ctx, p.MintA, p.VaultA)
	if err != nil {
		return clmm.Reserves{}, fmt.Errorf("vault A balance: %w", err)
	}
	b, err := e.store.Balance(ctx, p.MintB, p.VaultB)
	if err != nil {
		return clmm.Reserves{}, fmt.Errorf("vault B balance: %w", err)
	}
	return clmm.Reserves{A: a, B: b}, nil
}

// commit persists next with batch and replaces the in-memory pool. The
// in-memory pool is untouched when the store rejects the commit.
func (e *Engine) commit(ctx context.Context, next *clmm.Pool, batch []ledger.Instruction) error {
	if err := e.store.Commit(ctx, EncodePool(next), batch); err != nil {
		return err
	}
	e.pools[next.Address] = next
	e.metrics.setPool(next)
	return nil
}

// emit records one event. The operation is already committed, so failures
// are logged rather than returned.
func (e *Engine) emit(ctx context.Context, pool common.Address, build func(dex.EventMeta) (model.LogRecord, error)) {
	if e.events == nil {
		return
	}
	seq, err := e.store.NextSequence(ctx)
	if err != nil {
		e.logger.Error("event sequence", zap.String("pool", pool.Hex()), zap.Error(err))
		return
	}
	rec, err := build(dex.EventMeta{Pool: pool, Sequence: seq, Timestamp: e.cfg.Clock()})
	if err != nil {
		e.logger.Error("encode event", zap.String("pool", pool.Hex()), zap.Uint64("seq", seq), zap.Error(err))
		return
	}
	if err := e.events.PutLogBatch([]model.LogRecord{rec}); err != nil {
		e.logger.Error("store event", zap.String("pool", pool.Hex()), zap.Uint64("seq", seq), zap.Error(err))
	}
}

func (e *Engine) finish(op string, start time.Time, err error, pool common.Address) {
	e.metrics.observe(op, start, err)
	if err != nil {
		e.logger.Warn("operation rejected", zap.String("op", op), zap.String("pool", pool.Hex()), zap.Error(err))
	}
}
