// Package classify determines which token standard a contract implements
// from the shape of the event it just emitted, confirming ambiguous cases
// with an ERC-165 supportsInterface probe, and caches positive results so
// a classified contract is not probed again. A contract whose probe does
// not confirm a standard is not cached and is probed on every sighting.
package classify

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

// Standard identifies a recognised token standard.
type Standard string

const (
	StandardERC20   Standard = "erc20"
	StandardERC721  Standard = "erc721"
	StandardERC1155 Standard = "erc1155"
)

const (
	interfaceIDERC721  = "0x80ac58cd"
	interfaceIDERC1155 = "0xd9b67a26"
	selectorSupportsIf = "01ffc9a7"
)

var (
	// SigTransfer is shared by ERC-20 `Transfer(address,address,uint256)`
	// and ERC-721 `Transfer(address,address,uint256)` -- the two are
	// distinguished by topic count (3 topics vs. 4).
	SigTransfer = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))
	// SigTransferSingle is the ERC-1155 single-transfer event.
	SigTransferSingle = crypto.Keccak256Hash([]byte("TransferSingle(address,address,address,uint256,uint256)"))
	// SigTransferBatch is the ERC-1155 batch-transfer event.
	SigTransferBatch = crypto.Keccak256Hash([]byte("TransferBatch(address,address,address,uint256[],uint256[])"))
)

// Classification is a resolved (address, standard) pair.
type Classification struct {
	Address  common.Address
	Standard Standard
}

// Cache persists positive classifications so a classified contract's
// standard is not probed again.
type Cache interface {
	Get(ctx context.Context, address common.Address) (Standard, bool, error)
	Upsert(ctx context.Context, c Classification) error
}

// EthClient is the subset of chain access the classifier needs to run an
// ERC-165 probe.
type EthClient interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Classifier resolves a contract's token standard from an observed log.
type Classifier struct {
	client EthClient
	cache  Cache
	logger *zap.Logger
}

// New builds a Classifier.
func New(client EthClient, cache Cache, logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{client: client, cache: cache, logger: logger}
}

// Classify resolves the token standard for address given the signature
// hash and topic count of the log that triggered the lookup. It returns
// ("", false, nil) when the log's shape does not correspond to a
// recognised standard or the supportsInterface probe does not confirm it
// -- the caller should skip the log, not treat this as an error.
func (c *Classifier) Classify(ctx context.Context, address common.Address, topic0 common.Hash, topicCount int) (Standard, bool, error) {
	if cached, ok, err := c.cache.Get(ctx, address); err != nil {
		return "", false, fmt.Errorf("classification cache lookup: %w", err)
	} else if ok {
		return cached, true, nil
	}

	var (
		standard Standard
		matched  bool
	)

	switch {
	case topic0 == SigTransfer && topicCount == 3:
		standard, matched = StandardERC20, true
	case topic0 == SigTransfer && topicCount == 4:
		if c.supportsInterface(ctx, address, interfaceIDERC721) {
			standard, matched = StandardERC721, true
		}
	case topic0 == SigTransferSingle || topic0 == SigTransferBatch:
		if c.supportsInterface(ctx, address, interfaceIDERC1155) {
			standard, matched = StandardERC1155, true
		}
	}

	if !matched {
		return "", false, nil
	}

	if err := c.cache.Upsert(ctx, Classification{Address: address, Standard: standard}); err != nil {
		return "", false, fmt.Errorf("upsert classification for %s: %w", address.Hex(), err)
	}

	c.logger.Info("classified contract",
		zap.String("address", address.Hex()),
		zap.String("standard", string(standard)))

	return standard, true, nil
}

// supportsInterface runs the ERC-165 supportsInterface(bytes4) probe.
// Any failure -- call reverted, node error, malformed response -- is
// treated as "unsupported" rather than propagated, matching how contracts
// that don't implement ERC-165 at all behave on this call.
func (c *Classifier) supportsInterface(ctx context.Context, address common.Address, interfaceID string) bool {
	idBytes, err := hex.DecodeString(strings.TrimPrefix(interfaceID, "0x"))
	if err != nil {
		return false
	}

	selectorBytes, _ := hex.DecodeString(selectorSupportsIf)
	callData := make([]byte, 36)
	copy(callData[0:4], selectorBytes)
	copy(callData[4:8], idBytes)

	result, err := c.client.CallContract(ctx, ethereum.CallMsg{To: &address, Data: callData}, nil)
	if err != nil {
		c.logger.Debug("supportsInterface call failed",
			zap.String("address", address.Hex()),
			zap.String("interfaceID", interfaceID),
			zap.Error(err))
		return false
	}

	if len(result) < 32 {
		return false
	}
	return result[31] == 1
}
