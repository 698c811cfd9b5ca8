package aggregate

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"liquidityEngine/internal/model"
)

// Config controls aggregation behavior.
type Config struct {
	WindowSeconds uint64
	BatchSize     int
	RecomputeFrom uint64
	StateStore    StateStore
}

// MetricsStore receives finished windows.
type MetricsStore interface {
	UpsertWindowMetrics(ctx context.Context, metrics []model.PoolWindowMetrics) error
}

// Aggregator folds typed events into pool window metrics.
type Aggregator struct {
	cfg          Config
	store        MetricsStore
	logger       *zap.Logger
	accumulators map[string]*Accumulator
}

func NewAggregator(cfg Config, store MetricsStore, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Aggregator{
		cfg:          cfg,
		store:        store,
		logger:       logger,
		accumulators: make(map[string]*Accumulator),
	}
}

// Run executes aggregation over a typed events JSONL file.
func (a *Aggregator) Run(ctx context.Context, inputPath string) error {
	file, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer file.Close()

	return a.Consume(ctx, file)
}

// Consume aggregates typed events read as JSONL from r.
func (a *Aggregator) Consume(ctx context.Context, r io.Reader) error {
	if a.store == nil {
		return fmt.Errorf("store is nil")
	}
	if a.cfg.WindowSeconds == 0 {
		return fmt.Errorf("window seconds must be > 0")
	}
	if a.cfg.BatchSize <= 0 {
		a.cfg.BatchSize = 1000
	}

	startTs, err := a.loadStartTimestamp(ctx)
	if err != nil {
		return err
	}

	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	batch := make([]model.PoolWindowMetrics, 0, a.cfg.BatchSize)
	maxTs := startTs
	var total, windows, skipped, failed int

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		total++

		var record model.TypedEventRecord
		if err := json.Unmarshal(line, &record); err != nil {
			failed++
			a.logger.Warn("decode typed event", zap.Error(err))
			continue
		}

		if record.Timestamp <= startTs {
			skipped++
			continue
		}

		start := windowStart(record.Timestamp, a.cfg.WindowSeconds)
		key := poolKey(record.Address)
		acc := a.accumulators[key]
		if acc != nil && acc.WindowStart != start {
			batch = append(batch, a.finish(acc))
			windows++
			acc = nil
		}
		if acc == nil {
			acc = NewAccumulator(record, start, start+a.cfg.WindowSeconds)
			a.accumulators[key] = acc
		}

		if err := acc.AddEvent(record); err != nil {
			failed++
			a.logger.Warn("aggregate event", zap.Error(err), zap.String("pool", record.Address), zap.String("event", record.EventName))
			continue
		}

		if record.Timestamp > maxTs {
			maxTs = record.Timestamp
		}

		if len(batch) >= a.cfg.BatchSize {
			if err := a.store.UpsertWindowMetrics(ctx, batch); err != nil {
				return fmt.Errorf("upsert window metrics: %w", err)
			}
			batch = batch[:0]

			if err := a.saveState(ctx); err != nil {
				return err
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan input: %w", err)
	}

	for _, acc := range a.accumulators {
		batch = append(batch, a.finish(acc))
		windows++
	}
	a.accumulators = make(map[string]*Accumulator)

	if len(batch) > 0 {
		if err := a.store.UpsertWindowMetrics(ctx, batch); err != nil {
			return fmt.Errorf("upsert window metrics: %w", err)
		}
	}

	a.cfg.RecomputeFrom = maxTs
	if err := a.saveState(ctx); err != nil {
		return err
	}

	a.logger.Info("aggregate complete",
		zap.Int("total", total),
		zap.Int("windows", windows),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
	)

	return nil
}

func (a *Aggregator) loadStartTimestamp(ctx context.Context) (uint64, error) {
	if a.cfg.RecomputeFrom > 0 {
		return a.cfg.RecomputeFrom - 1, nil
	}
	if a.cfg.StateStore == nil {
		return 0, nil
	}
	last, ok, err := a.cfg.StateStore.Load(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return last, nil
}

// saveState never moves past the oldest window still open, so a restart
// recomputes it from scratch.
func (a *Aggregator) saveState(ctx context.Context) error {
	if a.cfg.StateStore == nil {
		return nil
	}

	if len(a.accumulators) == 0 {
		return a.cfg.StateStore.Save(ctx, a.cfg.RecomputeFrom)
	}

	safeTs := minOpenWindowStart(a.accumulators)
	if safeTs > 0 {
		safeTs = safeTs - 1
	}
	if safeTs == 0 {
		safeTs = a.cfg.RecomputeFrom
	}
	return a.cfg.StateStore.Save(ctx, safeTs)
}

func (a *Aggregator) finish(acc *Accumulator) model.PoolWindowMetrics {
	return model.PoolWindowMetrics{
		ChainID:        acc.ChainID,
		PoolAddress:    acc.PoolAddress,
		Source:         acc.Source,
		WindowSizeSecs: int64(a.cfg.WindowSeconds),
		WindowStart:    time.Unix(int64(acc.WindowStart), 0).UTC(),
		WindowEnd:      time.Unix(int64(acc.WindowEnd), 0).UTC(),
		SwapCount:      acc.SwapCount,
		VolumeA:        acc.VolumeA.String(),
		VolumeB:        acc.VolumeB.String(),
		TicksCrossed:   acc.TicksCrossed,
		LiquidityAdds:  acc.LiquidityAdds,
		Withdrawals:    acc.Withdrawals,
		OpenSqrtPrice:  acc.OpenSqrtPrice,
		CloseSqrtPrice: acc.CloseSqrtPrice,
		OpenTick:       acc.OpenTick,
		CloseTick:      acc.CloseTick,
		ReserveA:       acc.ReserveA,
		ReserveB:       acc.ReserveB,
	}
}
