package engine

import (
	"math/big"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"liquidityEngine/internal/clmm"
)

// Metrics holds the engine's Prometheus collectors.
type Metrics struct {
	Operations      *prometheus.CounterVec
	OperationTime   *prometheus.HistogramVec
	SwapVolume      *prometheus.CounterVec
	TicksCrossed    *prometheus.CounterVec
	LiquidityEvents *prometheus.CounterVec

	ActiveLiquidity *prometheus.GaugeVec
	LPSupply        *prometheus.GaugeVec
	CurrentTick     *prometheus.GaugeVec
	PoolsTotal      prometheus.Gauge
}

// NewMetrics creates the engine collectors and registers them on reg. A nil
// reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "clmm",
				Subsystem: "engine",
				Name:      "operations_total",
				Help:      "Engine operations by kind and outcome",
			},
			[]string{"op", "status"},
		),
		OperationTime: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "clmm",
				Subsystem: "engine",
				Name:      "operation_seconds",
				Help:      "Engine operation latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		SwapVolume: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "clmm",
				Subsystem: "engine",
				Name:      "swap_volume_total",
				Help:      "Swapped base units by pool, mint and side",
			},
			[]string{"pool", "mint", "side"},
		),
		TicksCrossed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "clmm",
				Subsystem: "engine",
				Name:      "ticks_crossed_total",
				Help:      "Tick boundaries crossed by swaps",
			},
			[]string{"pool"},
		),
		LiquidityEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "clmm",
				Subsystem: "engine",
				Name:      "liquidity_events_total",
				Help:      "Range opens and closes by pool",
			},
			[]string{"pool", "kind"},
		),
		ActiveLiquidity: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "clmm",
				Subsystem: "pool",
				Name:      "active_liquidity",
				Help:      "In-range liquidity at the current tick",
			},
			[]string{"pool"},
		),
		LPSupply: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "clmm",
				Subsystem: "pool",
				Name:      "lp_supply",
				Help:      "Outstanding liquidity shares",
			},
			[]string{"pool"},
		),
		CurrentTick: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "clmm",
				Subsystem: "pool",
				Name:      "current_tick",
				Help:      "Current tick of the pool",
			},
			[]string{"pool"},
		),
		PoolsTotal: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "clmm",
				Subsystem: "engine",
				Name:      "pools",
				Help:      "Pools held by the engine",
			},
		),
	}
}

func (m *Metrics) observe(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.Operations.WithLabelValues(op, status).Inc()
	m.OperationTime.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *Metrics) setPool(p *clmm.Pool) {
	if m == nil {
		return
	}
	addr := p.Address.Hex()
	liquidity, _ := new(big.Float).SetInt(p.ActiveLiquidity.ToBig()).Float64()
	m.ActiveLiquidity.WithLabelValues(addr).Set(liquidity)
	m.LPSupply.WithLabelValues(addr).Set(float64(p.TotalLPIssued))
	m.CurrentTick.WithLabelValues(addr).Set(float64(p.CurrentTick))
}

func (m *Metrics) swap(p *clmm.Pool, res *clmm.SwapResult) {
	if m == nil {
		return
	}
	addr := p.Address.Hex()
	in, out := p.MintA, p.MintB
	if res.Direction == clmm.BToA {
		in, out = out, in
	}
	m.SwapVolume.WithLabelValues(addr, in.Hex(), "in").Add(float64(res.AmountIn))
	m.SwapVolume.WithLabelValues(addr, out.Hex(), "out").Add(float64(res.AmountOut))
	m.TicksCrossed.WithLabelValues(addr).Add(float64(len(res.TicksCrossed)))
}
