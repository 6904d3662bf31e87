package ownership

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"

	"github.com/0xmhha/ownershipworker/internal/apperrors"
)

// OwnershipStore is the materialised-view side of the document store: the
// token_ownerships collection.
type OwnershipStore interface {
	// IncBalance applies an upsert-create, $inc-update to the row keyed
	// by (contract, owner, tokenID). tokenID is "" for ERC-20 rows.
	IncBalance(ctx context.Context, contract, owner common.Address, tokenID string, delta decimal.Decimal) error

	// UpsertERC721Owner sets the sole owner of an ERC-721 (contract,
	// tokenID), creating the row with quantity 1 if absent.
	UpsertERC721Owner(ctx context.Context, contract common.Address, tokenID string, owner common.Address) error

	// DeleteMany removes every row matching (contract, tokenID) and,
	// when owner is non-nil, additionally scoped to that owner.
	DeleteMany(ctx context.Context, contract common.Address, owner *common.Address, tokenID string) error
}

var zeroAddress common.Address

func isZeroAddress(addr common.Address) bool {
	return addr == zeroAddress
}

func bigToDecimal(v *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(v, 0)
}

// applyERC20 implements the signature-A/3-topic mutation rule: a mint
// (from == 0) is a documented no-op; everything else is a signed
// $inc pair.
func (p *Processor) applyERC20(ctx context.Context, contract common.Address, lg types.Log) error {
	if len(lg.Topics) != 3 {
		return fmt.Errorf("%w: erc20 transfer expects 3 topics, got %d", apperrors.ErrDecodeLog, len(lg.Topics))
	}
	from := common.BytesToAddress(lg.Topics[1].Bytes())
	to := common.BytesToAddress(lg.Topics[2].Bytes())

	value, err := decodeERC20Value(lg.Data)
	if err != nil {
		return err
	}

	if isZeroAddress(from) {
		return nil
	}

	dec := bigToDecimal(value)
	if err := p.store.IncBalance(ctx, contract, from, "", dec.Neg()); err != nil {
		return fmt.Errorf("%w: erc20 debit: %v", apperrors.ErrStoreUnavailable, err)
	}
	if err := p.store.IncBalance(ctx, contract, to, "", dec); err != nil {
		return fmt.Errorf("%w: erc20 credit: %v", apperrors.ErrStoreUnavailable, err)
	}
	return nil
}

// applyERC721 implements the 4-topic Transfer rule: normal transfer
// reassigns the single owning row, burn deletes it outright, mint is a
// documented no-op.
func (p *Processor) applyERC721(ctx context.Context, contract common.Address, lg types.Log) error {
	if len(lg.Topics) != 4 {
		return fmt.Errorf("%w: erc721 transfer expects 4 topics, got %d", apperrors.ErrDecodeLog, len(lg.Topics))
	}
	from := common.BytesToAddress(lg.Topics[1].Bytes())
	to := common.BytesToAddress(lg.Topics[2].Bytes())
	tokenID := tokenIDFromTopic(lg.Topics[3]).String()

	switch {
	case isZeroAddress(to):
		if err := p.store.DeleteMany(ctx, contract, nil, tokenID); err != nil {
			return fmt.Errorf("%w: erc721 burn: %v", apperrors.ErrStoreUnavailable, err)
		}
	case isZeroAddress(from):
		return nil
	default:
		if err := p.store.DeleteMany(ctx, contract, &from, tokenID); err != nil {
			return fmt.Errorf("%w: erc721 prior-owner delete: %v", apperrors.ErrStoreUnavailable, err)
		}
		if err := p.store.UpsertERC721Owner(ctx, contract, tokenID, to); err != nil {
			return fmt.Errorf("%w: erc721 owner upsert: %v", apperrors.ErrStoreUnavailable, err)
		}
	}
	return nil
}

// applyERC1155Pair applies one (id, value) mutation, symmetrically for
// both TransferSingle and TransferBatch.
func (p *Processor) applyERC1155Pair(ctx context.Context, contract, from, to common.Address, id, value *big.Int) error {
	switch {
	case !isZeroAddress(from) && !isZeroAddress(to) && value.Sign() > 0:
		dec := bigToDecimal(value)
		tokenID := id.String()
		if err := p.store.IncBalance(ctx, contract, from, tokenID, dec.Neg()); err != nil {
			return fmt.Errorf("%w: erc1155 debit: %v", apperrors.ErrStoreUnavailable, err)
		}
		if err := p.store.IncBalance(ctx, contract, to, tokenID, dec); err != nil {
			return fmt.Errorf("%w: erc1155 credit: %v", apperrors.ErrStoreUnavailable, err)
		}
	case isZeroAddress(to) && !isZeroAddress(from):
		if err := p.store.DeleteMany(ctx, contract, nil, id.String()); err != nil {
			return fmt.Errorf("%w: erc1155 burn: %v", apperrors.ErrStoreUnavailable, err)
		}
	}
	return nil
}

// applyERC1155 decodes either a TransferSingle or TransferBatch log and
// applies every (id, value) pair it carries.
func (p *Processor) applyERC1155(ctx context.Context, contract common.Address, lg types.Log, single bool) error {
	if len(lg.Topics) != 4 {
		return fmt.Errorf("%w: erc1155 transfer expects 4 topics, got %d", apperrors.ErrDecodeLog, len(lg.Topics))
	}
	from := common.BytesToAddress(lg.Topics[2].Bytes())
	to := common.BytesToAddress(lg.Topics[3].Bytes())

	if single {
		id, value, err := decodeERC1155Single(lg.Data)
		if err != nil {
			return err
		}
		return p.applyERC1155Pair(ctx, contract, from, to, id, value)
	}

	ids, values, err := decodeERC1155Batch(lg.Data)
	if err != nil {
		return err
	}
	for i := range ids {
		if err := p.applyERC1155Pair(ctx, contract, from, to, ids[i], values[i]); err != nil {
			return err
		}
	}
	return nil
}
