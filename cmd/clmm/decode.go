package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityEngine/internal/chain"
	"liquidityEngine/internal/config"
	"liquidityEngine/internal/dex"
	"liquidityEngine/internal/indexer"
	"liquidityEngine/internal/model"
	"liquidityEngine/internal/storage"
)

func runDecode(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadDecode(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.In == "" {
		return fmt.Errorf("input path is required")
	}
	if cfg.Out == "" {
		return fmt.Errorf("output path is required")
	}
	if cfg.Errors == "" {
		return fmt.Errorf("errors path is required")
	}

	pools, err := indexer.ParseAddresses(cfg.Pools)
	if err != nil {
		return err
	}
	only := make(map[string]struct{}, len(pools))
	for _, p := range pools {
		only[strings.ToLower(p.Hex())] = struct{}{}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	decodeCtx := dex.DecodeContext{
		Context:         ctx,
		PoolMetaCache:   dex.NewPoolMetaCache(),
		Logger:          logger,
		IncludeLiveMeta: cfg.IncludeLiveMeta,
	}
	if cfg.RPCURL != "" {
		chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
		if err != nil {
			return fmt.Errorf("connect rpc: %w", err)
		}
		defer chainClient.Close()
		decodeCtx.Chain = chainClient
	}

	engineDecoder, err := dex.NewEngineDecoder()
	if err != nil {
		return err
	}
	v3Decoder, err := dex.NewV3PoolDecoder(dex.DecoderConfig{Topic0Map: cfg.Topic0Map})
	if err != nil {
		return err
	}
	decoder := dex.DecoderSet{engineDecoder, v3Decoder}

	outWriter, err := storage.NewJSONLWriter(cfg.Out, false)
	if err != nil {
		return err
	}
	defer outWriter.Close()

	errWriter, err := storage.NewJSONLWriter(cfg.Errors, false)
	if err != nil {
		return err
	}
	defer errWriter.Close()

	logger.Info("decode start",
		zap.Bool("rpc", decodeCtx.Chain != nil),
		zap.String("in", cfg.In),
		zap.String("out", cfg.Out),
		zap.String("errors", cfg.Errors),
		zap.Int("pools", len(only)),
		zap.Bool("include_live_meta", cfg.IncludeLiveMeta),
	)

	var total, decoded, skipped, failed int
	err = storage.ScanJSONL(cfg.In, func(line []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		total++

		var record model.LogRecord
		if err := json.Unmarshal(line, &record); err != nil {
			failed++
			writeDecodeError(errWriter, model.DecodeError{Error: err.Error()})
			return nil
		}
		if len(only) > 0 {
			if _, ok := only[strings.ToLower(record.Address)]; !ok {
				skipped++
				return nil
			}
		}
		if record.Topic0() == "" {
			failed++
			writeDecodeError(errWriter, decodeErrorFromRecord(record, fmt.Errorf("missing topic0")))
			return nil
		}
		if !decoder.CanDecode(record.Topic0()) {
			skipped++
			return nil
		}

		event, err := decoder.Decode(record, decodeCtx)
		if err != nil {
			failed++
			writeDecodeError(errWriter, decodeErrorFromRecord(record, err))
			return nil
		}
		if err := outWriter.Write(event); err != nil {
			return err
		}
		decoded++
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info("decode complete",
		zap.Int("total", total),
		zap.Int("decoded", decoded),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
	)
	return nil
}

func decodeErrorFromRecord(record model.LogRecord, err error) model.DecodeError {
	return model.DecodeError{
		ChainID:     record.ChainID,
		BlockNumber: record.BlockNumber,
		TxHash:      record.TxHash,
		LogIndex:    record.LogIndex,
		Address:     record.Address,
		Topic0:      record.Topic0(),
		Error:       err.Error(),
	}
}

func writeDecodeError(writer *storage.JSONLWriter, errRecord model.DecodeError) {
	if writer == nil {
		return
	}
	_ = writer.Write(errRecord)
}
