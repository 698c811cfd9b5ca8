package dex

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const v3PoolABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "sender", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "recipient", "type": "address"},
      {"indexed": false, "internalType": "int256", "name": "amount0", "type": "int256"},
      {"indexed": false, "internalType": "int256", "name": "amount1", "type": "int256"},
      {"indexed": false, "internalType": "uint160", "name": "sqrtPriceX96", "type": "uint160"},
      {"indexed": false, "internalType": "uint128", "name": "liquidity", "type": "uint128"},
      {"indexed": false, "internalType": "int24", "name": "tick", "type": "int24"}
    ],
    "name": "Swap",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": false, "internalType": "address", "name": "sender", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "owner", "type": "address"},
      {"indexed": true, "internalType": "int24", "name": "tickLower", "type": "int24"},
      {"indexed": true, "internalType": "int24", "name": "tickUpper", "type": "int24"},
      {"indexed": false, "internalType": "uint128", "name": "amount", "type": "uint128"},
      {"indexed": false, "internalType": "uint256", "name": "amount0", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "amount1", "type": "uint256"}
    ],
    "name": "Mint",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "owner", "type": "address"},
      {"indexed": true, "internalType": "int24", "name": "tickLower", "type": "int24"},
      {"indexed": true, "internalType": "int24", "name": "tickUpper", "type": "int24"},
      {"indexed": false, "internalType": "uint128", "name": "amount", "type": "uint128"},
      {"indexed": false, "internalType": "uint256", "name": "amount0", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "amount1", "type": "uint256"}
    ],
    "name": "Burn",
    "type": "event"
  },
  {
    "inputs": [],
    "name": "token0",
    "outputs": [{"internalType": "address", "name": "", "type": "address"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "token1",
    "outputs": [{"internalType": "address", "name": "", "type": "address"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "fee",
    "outputs": [{"internalType": "uint24", "name": "", "type": "uint24"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "tickSpacing",
    "outputs": [{"internalType": "int24", "name": "", "type": "int24"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "liquidity",
    "outputs": [{"internalType": "uint128", "name": "", "type": "uint128"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "slot0",
    "outputs": [
      {"internalType": "uint160", "name": "sqrtPriceX96", "type": "uint160"},
      {"internalType": "int24", "name": "tick", "type": "int24"},
      {"internalType": "uint16", "name": "observationIndex", "type": "uint16"},
      {"internalType": "uint16", "name": "observationCardinality", "type": "uint16"},
      {"internalType": "uint16", "name": "observationCardinalityNext", "type": "uint16"},
      {"internalType": "uint8", "name": "feeProtocol", "type": "uint8"},
      {"internalType": "bool", "name": "unlocked", "type": "bool"}
    ],
    "stateMutability": "view",
    "type": "function"
  }
]`

const engineABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "name": "mintA", "type": "address"},
      {"indexed": true, "name": "mintB", "type": "address"},
      {"indexed": false, "name": "tickSpacing", "type": "uint16"},
      {"indexed": false, "name": "sqrtPrice", "type": "uint128"},
      {"indexed": false, "name": "tick", "type": "int32"}
    ],
    "name": "PoolInitialized",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "name": "owner", "type": "address"},
      {"indexed": false, "name": "tickLower", "type": "int32"},
      {"indexed": false, "name": "tickUpper", "type": "int32"},
      {"indexed": false, "name": "liquidity", "type": "uint128"},
      {"indexed": false, "name": "amountA", "type": "uint64"},
      {"indexed": false, "name": "amountB", "type": "uint64"},
      {"indexed": false, "name": "shares", "type": "uint64"},
      {"indexed": false, "name": "reserveA", "type": "uint64"},
      {"indexed": false, "name": "reserveB", "type": "uint64"}
    ],
    "name": "LiquidityAdded",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "name": "owner", "type": "address"},
      {"indexed": false, "name": "tickLower", "type": "int32"},
      {"indexed": false, "name": "tickUpper", "type": "int32"},
      {"indexed": false, "name": "liquidity", "type": "uint128"},
      {"indexed": false, "name": "amountA", "type": "uint64"},
      {"indexed": false, "name": "amountB", "type": "uint64"},
      {"indexed": false, "name": "shares", "type": "uint64"},
      {"indexed": false, "name": "reserveA", "type": "uint64"},
      {"indexed": false, "name": "reserveB", "type": "uint64"}
    ],
    "name": "LiquidityWithdrawn",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "name": "trader", "type": "address"},
      {"indexed": false, "name": "aToB", "type": "bool"},
      {"indexed": false, "name": "amountIn", "type": "uint64"},
      {"indexed": false, "name": "amountOut", "type": "uint64"},
      {"indexed": false, "name": "sqrtPrice", "type": "uint128"},
      {"indexed": false, "name": "tick", "type": "int32"},
      {"indexed": false, "name": "liquidity", "type": "uint128"},
      {"indexed": false, "name": "ticksCrossed", "type": "uint32"},
      {"indexed": false, "name": "reserveA", "type": "uint64"},
      {"indexed": false, "name": "reserveB", "type": "uint64"}
    ],
    "name": "Swap",
    "type": "event"
  }
]`

var (
	v3PoolABI     abi.ABI
	v3PoolABIOnce sync.Once
	v3PoolABIErr  error

	engineABI     abi.ABI
	engineABIOnce sync.Once
	engineABIErr  error
)

// V3PoolABI returns the parsed Uniswap-V3 pool ABI.
func V3PoolABI() (abi.ABI, error) {
	v3PoolABIOnce.Do(func() {
		v3PoolABI, v3PoolABIErr = abi.JSON(strings.NewReader(v3PoolABIJSON))
	})
	return v3PoolABI, v3PoolABIErr
}

// EngineABI returns the parsed ABI of the events the engine emits.
func EngineABI() (abi.ABI, error) {
	engineABIOnce.Do(func() {
		engineABI, engineABIErr = abi.JSON(strings.NewReader(engineABIJSON))
	})
	return engineABI, engineABIErr
}
