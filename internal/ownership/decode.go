package ownership

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/0xmhha/ownershipworker/internal/apperrors"
)

var (
	uint256Type, _      = abi.NewType("uint256", "", nil)
	uint256ArrayType, _ = abi.NewType("uint256[]", "", nil)

	erc20ValueArgs = abi.Arguments{{Type: uint256Type}}

	erc1155SingleArgs = abi.Arguments{
		{Type: uint256Type}, // id
		{Type: uint256Type}, // value
	}

	erc1155BatchArgs = abi.Arguments{
		{Type: uint256ArrayType}, // ids
		{Type: uint256ArrayType}, // values
	}
)

// tokenIDFromTopic interprets an indexed topic as a uint256 tokenId.
func tokenIDFromTopic(topic common.Hash) *big.Int {
	return new(big.Int).SetBytes(topic.Bytes())
}

// decodeERC20Value unpacks the non-indexed uint256 value field of a
// Transfer(address,address,uint256) log.
func decodeERC20Value(data []byte) (*big.Int, error) {
	values, err := erc20ValueArgs.Unpack(data)
	if err != nil || len(values) != 1 {
		return nil, fmt.Errorf("%w: erc20 value: %v", apperrors.ErrDecodeLog, err)
	}
	value, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%w: erc20 value not a uint256", apperrors.ErrDecodeLog)
	}
	return value, nil
}

// decodeERC1155Single unpacks the (id, value) pair of a TransferSingle log.
func decodeERC1155Single(data []byte) (id *big.Int, value *big.Int, err error) {
	values, err := erc1155SingleArgs.Unpack(data)
	if err != nil || len(values) != 2 {
		return nil, nil, fmt.Errorf("%w: erc1155 single: %v", apperrors.ErrDecodeLog, err)
	}
	id, ok := values[0].(*big.Int)
	if !ok {
		return nil, nil, fmt.Errorf("%w: erc1155 single id not a uint256", apperrors.ErrDecodeLog)
	}
	value, ok = values[1].(*big.Int)
	if !ok {
		return nil, nil, fmt.Errorf("%w: erc1155 single value not a uint256", apperrors.ErrDecodeLog)
	}
	return id, value, nil
}

// decodeERC1155Batch unpacks the (ids[], values[]) pair of a
// TransferBatch log. The two arrays must be equal length.
func decodeERC1155Batch(data []byte) (ids []*big.Int, values []*big.Int, err error) {
	decoded, err := erc1155BatchArgs.Unpack(data)
	if err != nil || len(decoded) != 2 {
		return nil, nil, fmt.Errorf("%w: erc1155 batch: %v", apperrors.ErrDecodeLog, err)
	}
	ids, ok := decoded[0].([]*big.Int)
	if !ok {
		return nil, nil, fmt.Errorf("%w: erc1155 batch ids not a uint256[]", apperrors.ErrDecodeLog)
	}
	values, ok = decoded[1].([]*big.Int)
	if !ok {
		return nil, nil, fmt.Errorf("%w: erc1155 batch values not a uint256[]", apperrors.ErrDecodeLog)
	}
	if len(ids) != len(values) {
		return nil, nil, fmt.Errorf("%w: erc1155 batch ids/values length mismatch (%d vs %d)", apperrors.ErrDecodeLog, len(ids), len(values))
	}
	return ids, values, nil
}
