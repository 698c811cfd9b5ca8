package chain

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

const maxCachedTimestamps = 4096

// Client is the read-only RPC view of a chain that the pool mirror needs.
type Client struct {
	rpcClient *rpc.Client
	ethClient *ethclient.Client

	mu         sync.RWMutex
	timestamps map[uint64]uint64
}

// NewClient dials rpcURL.
func NewClient(ctx context.Context, rpcURL string) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	return NewClientFromRPC(rpcClient), nil
}

// NewClientFromRPC wraps an already connected RPC client.
func NewClientFromRPC(rpcClient *rpc.Client) *Client {
	return &Client{
		rpcClient:  rpcClient,
		ethClient:  ethclient.NewClient(rpcClient),
		timestamps: make(map[uint64]uint64),
	}
}

func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

func (c *Client) GetChainID(ctx context.Context) (*big.Int, error) {
	return c.ethClient.ChainID(ctx)
}

func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	return c.ethClient.BlockNumber(ctx)
}

// EnsureContract fails when address has no code at the latest block.
func (c *Client) EnsureContract(ctx context.Context, address common.Address) error {
	code, err := c.ethClient.CodeAt(ctx, address, nil)
	if err != nil {
		return fmt.Errorf("get code: %w", err)
	}
	if len(code) == 0 {
		return fmt.Errorf("no contract at %s", address.Hex())
	}
	return nil
}

// BlockTimestamp returns the block timestamp. Results are cached until the
// cache holds maxCachedTimestamps entries, then it starts over.
func (c *Client) BlockTimestamp(ctx context.Context, number uint64) (uint64, error) {
	c.mu.RLock()
	ts, ok := c.timestamps[number]
	c.mu.RUnlock()
	if ok {
		return ts, nil
	}

	header, err := c.ethClient.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	if len(c.timestamps) >= maxCachedTimestamps {
		c.timestamps = make(map[uint64]uint64)
	}
	c.timestamps[number] = header.Time
	c.mu.Unlock()

	return header.Time, nil
}

// FilterLogs returns logs in [fromBlock, toBlock] emitted by addresses whose
// topic0 is one of topic0.
func (c *Client) FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: addresses,
	}
	if len(topic0) > 0 {
		query.Topics = [][]common.Hash{topic0}
	}
	return c.ethClient.FilterLogs(ctx, query)
}

// CallContract performs an eth_call; a nil blockNumber means latest.
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return c.ethClient.CallContract(ctx, msg, blockNumber)
}
