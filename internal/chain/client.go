// Package chain wraps the go-ethereum RPC client with the narrow surface
// the ownership indexer needs: head polling, log filtering, and the raw
// contract calls the classifier uses to probe ERC-165 support.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

// Client wraps an Ethereum JSON-RPC connection.
type Client struct {
	eth      *ethclient.Client
	rpc      *rpc.Client
	endpoint string
	logger   *zap.Logger
}

// Config holds client configuration.
type Config struct {
	Endpoint string
	Timeout  time.Duration
	Logger   *zap.Logger
}

// NewClient dials the RPC endpoint and verifies it is reachable before
// returning.
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx := context.Background()
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	rpcClient, err := rpc.DialContext(ctx, cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC endpoint: %w", err)
	}

	ethClient := ethclient.NewClient(rpcClient)
	c := &Client{
		eth:      ethClient,
		rpc:      rpcClient,
		endpoint: cfg.Endpoint,
		logger:   logger,
	}

	if err := c.Ping(ctx); err != nil {
		rpcClient.Close()
		return nil, fmt.Errorf("failed to ping RPC endpoint: %w", err)
	}

	logger.Info("connected to chain RPC", zap.String("endpoint", cfg.Endpoint))
	return c, nil
}

// Ping verifies the connection is alive.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.eth.ChainID(ctx)
	return err
}

// Close releases the underlying connections.
func (c *Client) Close() {
	if c.eth != nil {
		c.eth.Close()
	}
}

// BlockNumber returns the latest block number known to the node.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	n, err := c.eth.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get latest block number: %w", err)
	}
	return n, nil
}

// FilterLogs retrieves logs matching the given address/topic filter over
// an inclusive block range.
func (c *Client) FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topics [][]common.Hash) ([]types.Log, error) {
	q := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: addresses,
		Topics:    topics,
	}
	logs, err := c.eth.FilterLogs(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to filter logs [%d,%d]: %w", fromBlock, toBlock, err)
	}
	return logs, nil
}

// CallContract performs a raw eth_call, used by the classifier to probe
// ERC-165 support.
func (c *Client) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	result, err := c.eth.CallContract(ctx, call, blockNumber)
	if err != nil {
		return nil, fmt.Errorf("eth_call to %s failed: %w", call.To.Hex(), err)
	}
	return result, nil
}
