package dex

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"liquidityEngine/internal/model"
)

// Caller executes read-only contract calls. *chain.Client satisfies it.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// PoolMetaCache caches pool metadata by address.
type PoolMetaCache struct {
	mu   sync.RWMutex
	data map[common.Address]model.PoolMeta
}

func NewPoolMetaCache() *PoolMetaCache {
	return &PoolMetaCache{data: make(map[common.Address]model.PoolMeta)}
}

func (c *PoolMetaCache) Get(address common.Address) (model.PoolMeta, bool) {
	c.mu.RLock()
	meta, ok := c.data[address]
	c.mu.RUnlock()
	return meta, ok
}

func (c *PoolMetaCache) Set(address common.Address, meta model.PoolMeta) {
	c.mu.Lock()
	c.data[address] = meta
	c.mu.Unlock()
}

// V3PoolState is the mutable state of a chain pool at one block.
type V3PoolState struct {
	SqrtPriceX96 *big.Int
	Tick         int32
	Liquidity    *big.Int
}

// FetchPoolMeta loads immutable pool metadata from chain.
func FetchPoolMeta(ctx context.Context, caller Caller, pool common.Address) (model.PoolMeta, error) {
	if caller == nil {
		return model.PoolMeta{}, fmt.Errorf("chain client is nil")
	}
	poolABI, err := V3PoolABI()
	if err != nil {
		return model.PoolMeta{}, fmt.Errorf("parse pool abi: %w", err)
	}

	var meta model.PoolMeta
	for _, method := range []string{"token0", "token1"} {
		values, err := callPoolMethod(ctx, caller, pool, poolABI, method, nil)
		if err != nil {
			return model.PoolMeta{}, err
		}
		token, err := asAddress(values[0])
		if err != nil {
			return model.PoolMeta{}, fmt.Errorf("%s: %w", method, err)
		}
		if method == "token0" {
			meta.MintA = token.Hex()
		} else {
			meta.MintB = token.Hex()
		}
	}

	values, err := callPoolMethod(ctx, caller, pool, poolABI, "fee", nil)
	if err != nil {
		return model.PoolMeta{}, err
	}
	fee, err := asBigInt(values[0])
	if err != nil {
		return model.PoolMeta{}, fmt.Errorf("fee: %w", err)
	}
	meta.Fee = uint32(fee.Uint64())

	values, err = callPoolMethod(ctx, caller, pool, poolABI, "tickSpacing", nil)
	if err != nil {
		return model.PoolMeta{}, err
	}
	spacingInt, err := asBigInt(values[0])
	if err != nil {
		return model.PoolMeta{}, fmt.Errorf("tick spacing: %w", err)
	}
	if meta.TickSpacing, err = int24FromBig(spacingInt); err != nil {
		return model.PoolMeta{}, fmt.Errorf("tick spacing: %w", err)
	}
	return meta, nil
}

// FetchPoolState reads slot0 and liquidity at blockNumber; zero means latest.
func FetchPoolState(ctx context.Context, caller Caller, pool common.Address, blockNumber uint64) (V3PoolState, error) {
	if caller == nil {
		return V3PoolState{}, fmt.Errorf("chain client is nil")
	}
	poolABI, err := V3PoolABI()
	if err != nil {
		return V3PoolState{}, fmt.Errorf("parse pool abi: %w", err)
	}

	var block *big.Int
	if blockNumber > 0 {
		block = new(big.Int).SetUint64(blockNumber)
	}

	values, err := callPoolMethod(ctx, caller, pool, poolABI, "slot0", block)
	if err != nil {
		return V3PoolState{}, err
	}
	if len(values) < 2 {
		return V3PoolState{}, fmt.Errorf("slot0: %d values", len(values))
	}
	sqrt, err := asBigInt(values[0])
	if err != nil {
		return V3PoolState{}, fmt.Errorf("slot0 price: %w", err)
	}
	tickInt, err := asBigInt(values[1])
	if err != nil {
		return V3PoolState{}, fmt.Errorf("slot0 tick: %w", err)
	}
	tick, err := int24FromBig(tickInt)
	if err != nil {
		return V3PoolState{}, fmt.Errorf("slot0 tick: %w", err)
	}

	values, err = callPoolMethod(ctx, caller, pool, poolABI, "liquidity", block)
	if err != nil {
		return V3PoolState{}, err
	}
	liquidity, err := asBigInt(values[0])
	if err != nil {
		return V3PoolState{}, fmt.Errorf("liquidity: %w", err)
	}
	return V3PoolState{SqrtPriceX96: sqrt, Tick: tick, Liquidity: liquidity}, nil
}

// SqrtPriceX96ToQ64 rescales a Q64.96 square-root price to Q64.64, truncating.
func SqrtPriceX96ToQ64(x *big.Int) *big.Int {
	return new(big.Int).Rsh(x, 32)
}

func callPoolMethod(ctx context.Context, caller Caller, pool common.Address, poolABI abi.ABI, method string, block *big.Int) ([]interface{}, error) {
	data, err := poolABI.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &pool, Data: data}
	resp, err := caller.CallContract(ctx, msg, block)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := poolABI.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("unpack %s: no values", method)
	}
	return values, nil
}

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case int8:
		return big.NewInt(int64(v)), nil
	case int16:
		return big.NewInt(int64(v)), nil
	case int32:
		return big.NewInt(int64(v)), nil
	case int64:
		return big.NewInt(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

func int24FromBig(value *big.Int) (int32, error) {
	min := big.NewInt(-1 << 23)
	max := big.NewInt((1 << 23) - 1)
	if value.Cmp(min) < 0 || value.Cmp(max) > 0 {
		return 0, fmt.Errorf("int24 overflow: %s", value.String())
	}
	return int32(value.Int64()), nil
}
