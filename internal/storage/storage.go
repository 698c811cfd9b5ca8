package storage

import (
	"context"

	"liquidityEngine/internal/ledger"
	"liquidityEngine/internal/model"
)

// Storage defines a sink for log records.
type Storage interface {
	PutLogBatch(logs []model.LogRecord) error
}

// PoolStore persists pool snapshots next to the token balances they hold.
type PoolStore interface {
	ledger.Ledger

	LoadPools(ctx context.Context) ([]model.Pool, error)
	// Commit executes batch and saves pool in one transaction.
	Commit(ctx context.Context, pool model.Pool, batch []ledger.Instruction) error
	// NextSequence returns a strictly increasing event sequence number.
	NextSequence(ctx context.Context) (uint64, error)
	Close() error
}
