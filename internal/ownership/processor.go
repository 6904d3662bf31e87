// Package ownership drives the block-cursor state machine: for each
// block from the cursor up to the observed chain head it fetches transfer
// logs, classifies the emitting contract, decodes the event, and mutates
// the materialised ownership view.
package ownership

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/0xmhha/ownershipworker/internal/apperrors"
	"github.com/0xmhha/ownershipworker/internal/classify"
	"github.com/0xmhha/ownershipworker/internal/retry"
)

// LogFetcher retrieves transfer-shaped logs for a single block.
type LogFetcher interface {
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topics [][]common.Hash) ([]types.Log, error)
}

// HeadSource exposes the latest head observed by the HeadTracker.
type HeadSource interface {
	Get() (uint64, bool)
}

// CursorStore persists the processor's resume point across restarts.
// A nil CursorStore disables persistence; the processor always starts
// from genesis in that case, matching the base specification.
type CursorStore interface {
	GetCursor(ctx context.Context) (uint64, bool, error)
	SaveCursor(ctx context.Context, nextBlock uint64) error
}

// Config tunes Processor timing and the reorg/persistence enhancements.
type Config struct {
	GenesisBlock      uint64
	ConfirmationDepth uint64
	IdleWait          time.Duration
	FetchRetryWait    time.Duration
}

// Processor implements the LogProcessor component: the cursor state
// machine over WaitingForHead / Processing(b) / Idle.
type Processor struct {
	fetcher     LogFetcher
	classifier  *classify.Classifier
	store       OwnershipStore
	cursorStore CursorStore
	head        HeadSource
	logger      *zap.Logger
	limiter     *retry.Limiter
	cfg         Config
	topics      []common.Hash
}

// New builds a Processor. cursorStore may be nil to disable persisted
// cursor resume.
func New(fetcher LogFetcher, classifier *classify.Classifier, store OwnershipStore, cursorStore CursorStore, head HeadSource, cfg Config, logger *zap.Logger, limiter *retry.Limiter) *Processor {
	if cfg.IdleWait <= 0 {
		cfg.IdleWait = 5 * time.Second
	}
	if cfg.FetchRetryWait <= 0 {
		cfg.FetchRetryWait = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		fetcher:     fetcher,
		classifier:  classifier,
		store:       store,
		cursorStore: cursorStore,
		head:        head,
		logger:      logger,
		limiter:     limiter,
		cfg:         cfg,
		topics:      []common.Hash{classify.SigTransfer, classify.SigTransferSingle, classify.SigTransferBatch},
	}
}

// Run drives the cursor forward until ctx is cancelled, or returns a
// fatal error (decode or store failure) that should terminate the
// process.
func (p *Processor) Run(ctx context.Context) error {
	cursor := p.cfg.GenesisBlock
	if p.cursorStore != nil {
		if saved, ok, err := p.cursorStore.GetCursor(ctx); err != nil {
			return fmt.Errorf("load persisted cursor: %w", err)
		} else if ok {
			cursor = saved
		}
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		head, ok := p.head.Get()
		if !ok {
			if err := p.sleep(ctx, p.cfg.IdleWait); err != nil {
				return err
			}
			continue
		}

		effectiveHead := head
		if p.cfg.ConfirmationDepth > 0 && p.cfg.ConfirmationDepth <= head {
			effectiveHead = head - p.cfg.ConfirmationDepth
		} else if p.cfg.ConfirmationDepth > head {
			effectiveHead = 0
		}

		if cursor > effectiveHead {
			if err := p.sleep(ctx, p.cfg.IdleWait); err != nil {
				return err
			}
			continue
		}

		logs, err := p.fetchLogsWithRetry(ctx, cursor)
		if err != nil {
			return err
		}

		for _, lg := range logs {
			if err := p.processLog(ctx, lg); err != nil {
				return err
			}
		}

		cursor++
		if p.cursorStore != nil {
			if err := p.cursorStore.SaveCursor(ctx, cursor); err != nil {
				return fmt.Errorf("%w: persist cursor: %v", apperrors.ErrStoreUnavailable, err)
			}
		}
	}
}

// fetchLogsWithRetry re-fetches the same block forever on a transient
// RPC error, per the Processing(b) -> Processing(b) retry transition.
// It only returns an error when ctx is cancelled.
func (p *Processor) fetchLogsWithRetry(ctx context.Context, block uint64) ([]types.Log, error) {
	for {
		logs, err := p.fetcher.FilterLogs(ctx, block, block, nil, [][]common.Hash{p.topics})
		if err == nil {
			return logs, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		p.logger.Warn("log fetch failed, retrying block", zap.Uint64("block", block), zap.Error(err))
		if werr := p.limiter.Wait(ctx); werr != nil {
			return nil, werr
		}
	}
}

// processLog classifies the emitting contract and, on a positive
// classification, decodes and applies the corresponding mutation.
func (p *Processor) processLog(ctx context.Context, lg types.Log) error {
	if len(lg.Topics) == 0 {
		return nil
	}
	topic0 := lg.Topics[0]

	standard, ok, err := p.classifier.Classify(ctx, lg.Address, topic0, len(lg.Topics))
	if err != nil {
		return fmt.Errorf("%w: classify %s: %v", apperrors.ErrStoreUnavailable, lg.Address.Hex(), err)
	}
	if !ok {
		return nil
	}

	switch standard {
	case classify.StandardERC20:
		return p.applyERC20(ctx, lg.Address, lg)
	case classify.StandardERC721:
		return p.applyERC721(ctx, lg.Address, lg)
	case classify.StandardERC1155:
		return p.applyERC1155(ctx, lg.Address, lg, topic0 == classify.SigTransferSingle)
	default:
		return nil
	}
}

func (p *Processor) sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
