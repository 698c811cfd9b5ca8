package badgerstore

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/ethereum/go-ethereum/common"

	"liquidityEngine/internal/ledger"
	"liquidityEngine/internal/model"
)

var (
	poolPrefix    = []byte("pool/")
	balancePrefix = []byte("bal/")
	sequenceKey   = []byte("seq/events")
)

// sequenceLease is how many event numbers are reserved per lease. Unused
// numbers of a lease are skipped after a restart.
const sequenceLease = 100

// Store keeps pools and ledger balances in one badger database.
type Store struct {
	db  *badger.DB
	seq *badger.Sequence
}

// Open opens the database in dir, or an in-memory database when dir is empty.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	seq, err := db.GetSequence(sequenceKey, sequenceLease)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("event sequence: %w", err)
	}
	return &Store{db: db, seq: seq}, nil
}

func (s *Store) Close() error {
	var errs []error
	if s.seq != nil {
		errs = append(errs, s.seq.Release())
	}
	if s.db != nil {
		errs = append(errs, s.db.Close())
	}
	return errors.Join(errs...)
}

func (s *Store) Balance(_ context.Context, mint, owner common.Address) (uint64, error) {
	var out uint64
	err := s.db.View(func(txn *badger.Txn) error {
		v, err := readBalance(txn, ledger.Account{Mint: mint, Owner: owner})
		out = v
		return err
	})
	return out, err
}

func (s *Store) Supply(ctx context.Context, mint common.Address) (uint64, error) {
	return s.Balance(ctx, mint, ledger.SupplyAccount(mint).Owner)
}

func (s *Store) Execute(ctx context.Context, batch []ledger.Instruction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return applyBatch(txn, batch)
	})
}

func (s *Store) Commit(ctx context.Context, pool model.Pool, batch []ledger.Instruction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(pool)
	if err != nil {
		return fmt.Errorf("marshal pool: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if err := applyBatch(txn, batch); err != nil {
			return err
		}
		return txn.Set(poolKey(pool.Address), data)
	})
}

func (s *Store) LoadPools(_ context.Context) ([]model.Pool, error) {
	var pools []model.Pool
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: poolPrefix, PrefetchValues: true, PrefetchSize: 16})
		defer it.Close()
		for it.Seek(poolPrefix); it.ValidForPrefix(poolPrefix); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				var p model.Pool
				if err := json.Unmarshal(val, &p); err != nil {
					return fmt.Errorf("decode pool %s: %w", bytes.TrimPrefix(item.Key(), poolPrefix), err)
				}
				pools = append(pools, p)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return pools, err
}

func (s *Store) NextSequence(_ context.Context) (uint64, error) {
	n, err := s.seq.Next()
	if err != nil {
		return 0, fmt.Errorf("next sequence: %w", err)
	}
	// badger sequences start at zero.
	return n + 1, nil
}

func applyBatch(txn *badger.Txn, batch []ledger.Instruction) error {
	next, err := ledger.Resolve(batch, func(acc ledger.Account) (uint64, error) {
		return readBalance(txn, acc)
	})
	if err != nil {
		return err
	}
	for acc, v := range next {
		key := balanceKey(acc)
		if v == 0 {
			if err := txn.Delete(key); err != nil {
				return err
			}
			continue
		}
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], v)
		if err := txn.Set(key, buf[:]); err != nil {
			return err
		}
	}
	return nil
}

func readBalance(txn *badger.Txn, acc ledger.Account) (uint64, error) {
	item, err := txn.Get(balanceKey(acc))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var out uint64
	err = item.Value(func(val []byte) error {
		if len(val) != 8 {
			return fmt.Errorf("balance %s: %d bytes", item.Key(), len(val))
		}
		out = binary.BigEndian.Uint64(val)
		return nil
	})
	return out, err
}

func poolKey(address string) []byte {
	return append(append([]byte{}, poolPrefix...), strings.ToLower(address)...)
}

func balanceKey(acc ledger.Account) []byte {
	key := append([]byte{}, balancePrefix...)
	key = append(key, acc.Mint.Bytes()...)
	return append(key, acc.Owner.Bytes()...)
}
