package ledger

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Memory is an in-process Ledger.
type Memory struct {
	mu       sync.RWMutex
	balances map[Account]uint64
}

func NewMemory() *Memory {
	return &Memory{balances: make(map[Account]uint64)}
}

func (m *Memory) Balance(_ context.Context, mint, owner common.Address) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.balances[Account{Mint: mint, Owner: owner}], nil
}

func (m *Memory) Supply(_ context.Context, mint common.Address) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.balances[SupplyAccount(mint)], nil
}

func (m *Memory) Execute(ctx context.Context, batch []Instruction) error {
	return m.ExecuteWith(ctx, batch, nil)
}

// ExecuteWith resolves batch, then runs then while still holding the lock.
// Balances change only when both succeed.
func (m *Memory) ExecuteWith(ctx context.Context, batch []Instruction, then func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	next, err := Resolve(batch, func(acc Account) (uint64, error) {
		return m.balances[acc], nil
	})
	if err != nil {
		return err
	}
	if then != nil {
		if err := then(); err != nil {
			return err
		}
	}
	for acc, v := range next {
		if v == 0 {
			delete(m.balances, acc)
			continue
		}
		m.balances[acc] = v
	}
	return nil
}
