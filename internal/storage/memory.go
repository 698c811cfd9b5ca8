package storage

import (
	"context"
	"sort"
	"sync"

	"liquidityEngine/internal/ledger"
	"liquidityEngine/internal/model"
)

// MemoryStore is a PoolStore that lives for the duration of the process.
type MemoryStore struct {
	*ledger.Memory

	mu    sync.Mutex
	pools map[string]model.Pool
	seq   uint64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{Memory: ledger.NewMemory(), pools: make(map[string]model.Pool)}
}

func (s *MemoryStore) LoadPools(_ context.Context) ([]model.Pool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Pool, 0, len(s.pools))
	for _, p := range s.pools {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out, nil
}

func (s *MemoryStore) Commit(ctx context.Context, pool model.Pool, batch []ledger.Instruction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Memory.ExecuteWith(ctx, batch, func() error {
		s.pools[pool.Address] = pool
		return nil
	})
}

func (s *MemoryStore) NextSequence(_ context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
