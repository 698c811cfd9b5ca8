package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"liquidityEngine/internal/ledger"
	"liquidityEngine/internal/model"
)

//go:embed schema.sql
var schemaSQL string

// Store provides Postgres persistence for pools, balances and metrics.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// EnsureSchema creates missing tables.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) Balance(ctx context.Context, mint, owner common.Address) (uint64, error) {
	return readBalance(ctx, s.pool, ledger.Account{Mint: mint, Owner: owner}, false)
}

func (s *Store) Supply(ctx context.Context, mint common.Address) (uint64, error) {
	return readBalance(ctx, s.pool, ledger.SupplyAccount(mint), false)
}

func (s *Store) Execute(ctx context.Context, batch []ledger.Instruction) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		return applyBatch(ctx, tx, batch)
	})
}

// Commit executes batch and upserts the pool with its ticks in one transaction.
func (s *Store) Commit(ctx context.Context, pool model.Pool, batch []ledger.Instruction) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		if err := applyBatch(ctx, tx, batch); err != nil {
			return err
		}
		return savePool(ctx, tx, pool)
	})
}

func (s *Store) NextSequence(ctx context.Context) (uint64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT nextval('engine_event_seq')`).Scan(&n); err != nil {
		return 0, fmt.Errorf("next sequence: %w", err)
	}
	return uint64(n), nil
}

// LoadPools returns every pool with its ticks ordered by index.
func (s *Store) LoadPools(ctx context.Context) ([]model.Pool, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT pool_address, mint_a, mint_b, vault_a, vault_b, lp_mint, authority,
			sqrt_price::text, current_tick, active_liquidity::text, total_lp_issued::text, tick_spacing
		FROM engine_pools ORDER BY pool_address
	`)
	if err != nil {
		return nil, fmt.Errorf("query pools: %w", err)
	}
	var pools []model.Pool
	index := make(map[string]int)
	for rows.Next() {
		var p model.Pool
		var supply string
		var spacing int32
		if err := rows.Scan(&p.Address, &p.MintA, &p.MintB, &p.VaultA, &p.VaultB, &p.LPMint, &p.Authority,
			&p.SqrtPrice, &p.CurrentTick, &p.ActiveLiquidity, &supply, &spacing); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan pool: %w", err)
		}
		if p.TotalLPIssued, err = strconv.ParseUint(supply, 10, 64); err != nil {
			rows.Close()
			return nil, fmt.Errorf("pool %s supply: %w", p.Address, err)
		}
		p.TickSpacing = uint16(spacing)
		index[p.Address] = len(pools)
		pools = append(pools, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.pool.Query(ctx, `
		SELECT pool_address, tick_index, sqrt_price::text, liquidity_net::text
		FROM engine_ticks ORDER BY pool_address, tick_index
	`)
	if err != nil {
		return nil, fmt.Errorf("query ticks: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var addr string
		var t model.Tick
		if err := rows.Scan(&addr, &t.Index, &t.SqrtPrice, &t.LiquidityNet); err != nil {
			return nil, fmt.Errorf("scan tick: %w", err)
		}
		i, ok := index[addr]
		if !ok {
			continue
		}
		pools[i].Ticks = append(pools[i].Ticks, t)
	}
	return pools, rows.Err()
}

// UpsertWindowMetrics inserts or updates window metrics.
func (s *Store) UpsertWindowMetrics(ctx context.Context, metrics []model.PoolWindowMetrics) error {
	if len(metrics) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, m := range metrics {
		batch.Queue(`
			INSERT INTO pool_window_metrics (
				chain_id, pool_address, source, window_size_seconds, window_start_ts, window_end_ts,
				swap_count, volume_a, volume_b, ticks_crossed, liquidity_adds, withdrawals,
				open_sqrt_price, close_sqrt_price, open_tick, close_tick, reserve_a, reserve_b,
				created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,now(),now())
			ON CONFLICT (chain_id, pool_address, window_size_seconds, window_start_ts)
			DO UPDATE SET
				source = EXCLUDED.source,
				window_end_ts = EXCLUDED.window_end_ts,
				swap_count = EXCLUDED.swap_count,
				volume_a = EXCLUDED.volume_a,
				volume_b = EXCLUDED.volume_b,
				ticks_crossed = EXCLUDED.ticks_crossed,
				liquidity_adds = EXCLUDED.liquidity_adds,
				withdrawals = EXCLUDED.withdrawals,
				open_sqrt_price = EXCLUDED.open_sqrt_price,
				close_sqrt_price = EXCLUDED.close_sqrt_price,
				open_tick = EXCLUDED.open_tick,
				close_tick = EXCLUDED.close_tick,
				reserve_a = EXCLUDED.reserve_a,
				reserve_b = EXCLUDED.reserve_b,
				updated_at = now()
		`,
			int64(m.ChainID),
			m.PoolAddress,
			m.Source,
			m.WindowSizeSecs,
			m.WindowStart,
			m.WindowEnd,
			int64(m.SwapCount),
			m.VolumeA,
			m.VolumeB,
			int64(m.TicksCrossed),
			int64(m.LiquidityAdds),
			int64(m.Withdrawals),
			m.OpenSqrtPrice,
			m.CloseSqrtPrice,
			m.OpenTick,
			m.CloseTick,
			m.ReserveA,
			m.ReserveB,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range metrics {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadState returns last_processed_ts for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var ts int64
	row := s.pool.QueryRow(ctx, `SELECT last_processed_ts FROM indexer_state WHERE name=$1`, name)
	if err := row.Scan(&ts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(ts), true, nil
}

// SaveState upserts last_processed_ts for a name.
func (s *Store) SaveState(ctx context.Context, name string, ts uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO indexer_state (name, last_processed_ts, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed_ts = EXCLUDED.last_processed_ts, updated_at = now()
	`, name, int64(ts))
	return err
}

func (s *Store) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func readBalance(ctx context.Context, q querier, acc ledger.Account, lock bool) (uint64, error) {
	query := `SELECT amount::text FROM ledger_balances WHERE mint=$1 AND owner=$2`
	if lock {
		query += ` FOR UPDATE`
	}
	var amount string
	if err := q.QueryRow(ctx, query, acc.Mint.Hex(), acc.Owner.Hex()).Scan(&amount); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("read balance: %w", err)
	}
	return strconv.ParseUint(amount, 10, 64)
}

func applyBatch(ctx context.Context, tx pgx.Tx, batch []ledger.Instruction) error {
	next, err := ledger.Resolve(batch, func(acc ledger.Account) (uint64, error) {
		return readBalance(ctx, tx, acc, true)
	})
	if err != nil {
		return err
	}
	for acc, v := range next {
		_, err := tx.Exec(ctx, `
			INSERT INTO ledger_balances (mint, owner, amount, updated_at)
			VALUES ($1, $2, $3, now())
			ON CONFLICT (mint, owner) DO UPDATE
			SET amount = EXCLUDED.amount, updated_at = now()
		`, acc.Mint.Hex(), acc.Owner.Hex(), strconv.FormatUint(v, 10))
		if err != nil {
			return fmt.Errorf("write balance: %w", err)
		}
	}
	return nil
}

func savePool(ctx context.Context, tx pgx.Tx, p model.Pool) error {
	batch := &pgx.Batch{}
	batch.Queue(`
		INSERT INTO engine_pools (
			pool_address, mint_a, mint_b, vault_a, vault_b, lp_mint, authority,
			sqrt_price, current_tick, active_liquidity, total_lp_issued, tick_spacing, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,now(),now())
		ON CONFLICT (pool_address) DO UPDATE SET
			sqrt_price = EXCLUDED.sqrt_price,
			current_tick = EXCLUDED.current_tick,
			active_liquidity = EXCLUDED.active_liquidity,
			total_lp_issued = EXCLUDED.total_lp_issued,
			updated_at = now()
	`,
		p.Address, p.MintA, p.MintB, p.VaultA, p.VaultB, p.LPMint, p.Authority,
		p.SqrtPrice, p.CurrentTick, p.ActiveLiquidity, strconv.FormatUint(p.TotalLPIssued, 10), int32(p.TickSpacing),
	)
	for _, t := range p.Ticks {
		batch.Queue(`
			INSERT INTO engine_ticks (pool_address, tick_index, sqrt_price, liquidity_net)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (pool_address, tick_index) DO UPDATE SET liquidity_net = EXCLUDED.liquidity_net
		`, p.Address, t.Index, t.SqrtPrice, t.LiquidityNet)
	}

	br := tx.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("save pool %s: %w", p.Address, err)
		}
	}
	return nil
}
