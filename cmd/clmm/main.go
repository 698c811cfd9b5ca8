package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "clmm",
		Short:        "Concentrated-liquidity pool engine",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().String("store", "badger", "pool store (badger, postgres, memory)")
	root.PersistentFlags().String("badger-dir", "./data/badger", "badger data directory")
	root.PersistentFlags().String("pg-dsn", "", "Postgres DSN")

	root.AddCommand(
		newInitPoolCmd(),
		newMintCmd(),
		newAddLiquidityCmd(),
		newWithdrawLiquidityCmd(),
		newSwapCmd(),
		newQuoteCmd(),
		newShowCmd(),
		newSyncCmd(),
		newDecodeCmd(),
		newAggregateCmd(),
	)
	return root
}

// engineFlags are the flags of every command that opens the engine.
func engineFlags(cmd *cobra.Command) {
	cmd.Flags().Uint64("chain-id", 31337, "chain id stamped on emitted events")
	cmd.Flags().String("events", "./data/events.jsonl", "event log JSONL path (empty disables)")
	cmd.Flags().String("metrics-file", "", "write Prometheus metrics to this file on exit")
}

func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Mirror the liquidity of an on-chain V3 pool into the store",
		RunE:  runSync,
	}
	cmd.Flags().String("rpc", "", "RPC URL")
	cmd.Flags().String("pool", "", "V3 pool address")
	cmd.Flags().Uint64("from", 0, "start block (inclusive); use the pool's creation block")
	cmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	cmd.Flags().Uint64("batch-size", 2000, "blocks per batch")
	cmd.Flags().String("out", "", "optional raw logs JSONL path")
	cmd.Flags().String("checkpoint", "./data/sync_checkpoint.json", "checkpoint file path")
	cmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	cmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	cmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	return cmd
}

func newDecodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode raw logs into typed events",
		RunE:  runDecode,
	}
	cmd.Flags().String("rpc", "", "RPC URL for V3 pool metadata (optional for engine events)")
	cmd.Flags().String("in", "./data/events.jsonl", "input raw logs JSONL")
	cmd.Flags().String("out", "./data/typed_events.jsonl", "output typed events JSONL")
	cmd.Flags().String("errors", "./data/decode_errors.jsonl", "decode errors JSONL")
	cmd.Flags().StringSlice("pool", nil, "only decode logs of these addresses (comma-separated)")
	cmd.Flags().String("topic0-map", "", "extra topic0->event mappings (comma-separated key=value)")
	cmd.Flags().Bool("include-live-meta", false, "include slot0/liquidity for V3 logs (requires archive RPC for historical accuracy)")
	return cmd
}

func newAggregateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Aggregate typed events into window metrics",
		RunE:  runAggregate,
	}
	cmd.Flags().String("in", "./data/typed_events.jsonl", "input typed events JSONL")
	cmd.Flags().String("window", "5m", "aggregation window (e.g. 1m, 5m, 1h)")
	cmd.Flags().Int("batch-size", 1000, "batch size for DB writes")
	cmd.Flags().String("state-file", "", "optional local state file for progress tracking")
	cmd.Flags().String("recompute-from", "", "recompute from timestamp (unix seconds or RFC3339)")
	return cmd
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
