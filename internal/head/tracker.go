// Package head maintains the chain head number as observed by polling
// eth_blockNumber, publishing it to a shared cell the log processor reads
// without blocking on an RPC round trip of its own.
package head

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/0xmhha/ownershipworker/internal/retry"
)

// Cell is a concurrency-safe single-value cache for the latest observed
// head block number.
type Cell struct {
	mu  sync.RWMutex
	val uint64
	set bool
}

// Set publishes a new head value.
func (c *Cell) Set(block uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.val = block
	c.set = true
}

// Get returns the last published head and whether one has ever been set.
func (c *Cell) Get() (uint64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.val, c.set
}

// ChainClient is the subset of the chain client the tracker needs.
type ChainClient interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

// Tracker polls ChainClient for the latest block number and publishes it
// to a Cell on a fixed interval.
type Tracker struct {
	client   ChainClient
	cell     *Cell
	interval time.Duration
	logger   *zap.Logger
	limiter  *retry.Limiter
}

// NewTracker builds a Tracker. interval defaults to 60s if zero, matching
// the cadence at which new blocks arrive on mainnet-class chains.
func NewTracker(client ChainClient, cell *Cell, interval time.Duration, logger *zap.Logger, limiter *retry.Limiter) *Tracker {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{client: client, cell: cell, interval: interval, logger: logger, limiter: limiter}
}

// Run polls until ctx is cancelled. A failed poll is logged and retried
// immediately (subject to the configured retry limiter) rather than
// waiting out the full interval, so a transient RPC error doesn't stall
// head tracking for a whole interval.
func (t *Tracker) Run(ctx context.Context) error {
	for {
		block, err := t.client.BlockNumber(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			t.logger.Warn("head poll failed, retrying", zap.Error(err))
			if werr := t.limiter.Wait(ctx); werr != nil {
				return werr
			}
			continue
		}

		t.cell.Set(block)
		t.logger.Debug("head updated", zap.Uint64("block", block))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(t.interval):
		}
	}
}
