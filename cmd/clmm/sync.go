package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityEngine/internal/chain"
	"liquidityEngine/internal/config"
	"liquidityEngine/internal/engine"
	"liquidityEngine/internal/indexer"
	"liquidityEngine/internal/storage"
)

func runSync(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	poolAddr, err := indexer.ParseAddress(cfg.Pool)
	if err != nil {
		return fmt.Errorf("pool: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	if err := chainClient.EnsureContract(ctx, poolAddr); err != nil {
		return err
	}
	chainID, err := chainClient.GetChainID(ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}

	store, err := openStore(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	eng, err := engine.New(ctx, engine.Config{ChainID: chainID.Uint64()}, store, nil, nil, logger)
	if err != nil {
		return err
	}

	var raw storage.Storage
	if cfg.Out != "" {
		raw = storage.NewJsonlStorage(cfg.Out)
	}

	runner := indexer.NewRunner(indexer.RunConfig{
		Pool:              poolAddr,
		FromBlock:         cfg.FromBlock,
		ToBlock:           cfg.ToBlock,
		BatchSize:         cfg.BatchSize,
		CheckpointPath:    cfg.Checkpoint,
		CheckpointEnabled: cfg.CheckpointEnabled,
		MaxRetries:        cfg.MaxRetries,
		RetryBackoff:      cfg.RetryBackoff,
	}, chainClient, eng, raw, logger)

	logger.Info("sync start",
		zap.String("rpc", cfg.RPCURL),
		zap.String("pool", poolAddr.Hex()),
		zap.Uint64("from", cfg.FromBlock),
		zap.Uint64("to", cfg.ToBlock),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.String("out", cfg.Out),
		zap.Bool("checkpoint_enabled", cfg.CheckpointEnabled),
		zap.String("checkpoint", cfg.Checkpoint),
	)

	pool, err := runner.Run(ctx)
	if err != nil {
		return err
	}
	return printJSON(cmd, engine.EncodePool(pool))
}
