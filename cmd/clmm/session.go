package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityEngine/internal/config"
	"liquidityEngine/internal/engine"
	"liquidityEngine/internal/storage"
	"liquidityEngine/internal/storage/badgerstore"
	"liquidityEngine/internal/storage/postgres"
)

// session is an engine opened for one command invocation.
type session struct {
	ctx      context.Context
	stop     context.CancelFunc
	cfg      config.EngineConfig
	logger   *zap.Logger
	store    storage.PoolStore
	engine   *engine.Engine
	registry *prometheus.Registry
}

func openSession(cmd *cobra.Command) (*session, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadEngine(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	store, err := openStore(ctx, cfg.Store, logger)
	if err != nil {
		stop()
		return nil, err
	}

	var events storage.Storage
	if cfg.Events != "" {
		events = storage.NewJsonlStorage(cfg.Events)
	}

	registry := prometheus.NewRegistry()
	eng, err := engine.New(ctx, engine.Config{ChainID: cfg.ChainID}, store, events, engine.NewMetrics(registry), logger)
	if err != nil {
		store.Close()
		stop()
		return nil, err
	}

	return &session{
		ctx:      ctx,
		stop:     stop,
		cfg:      cfg,
		logger:   logger,
		store:    store,
		engine:   eng,
		registry: registry,
	}, nil
}

func (s *session) Close() {
	if s.cfg.MetricsFile != "" {
		if err := prometheus.WriteToTextfile(s.cfg.MetricsFile, s.registry); err != nil {
			s.logger.Warn("write metrics", zap.String("path", s.cfg.MetricsFile), zap.Error(err))
		}
	}
	if err := s.store.Close(); err != nil {
		s.logger.Warn("close store", zap.Error(err))
	}
	s.stop()
	_ = s.logger.Sync()
}

func openStore(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (storage.PoolStore, error) {
	switch cfg.Kind {
	case "", "badger":
		logger.Debug("open store", zap.String("store", "badger"), zap.String("dir", cfg.BadgerDir))
		return badgerstore.Open(cfg.BadgerDir)
	case "postgres":
		logger.Debug("open store", zap.String("store", "postgres"), zap.String("pg_dsn", redactDSN(cfg.PGDSN)))
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, err
		}
		return store, nil
	case "memory":
		logger.Warn("memory store does not persist between commands")
		return storage.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Kind)
	}
}

func printJSON(cmd *cobra.Command, value interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}
